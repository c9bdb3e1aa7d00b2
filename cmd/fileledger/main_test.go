package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileledger/api/server"
	"fileledger/core/chain"
	"fileledger/core/integrity"
)

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FILELEDGER_DIFFICULTY", "1")
	t.Setenv("FILELEDGER_MAX_NONCE", "")
	t.Setenv("FILELEDGER_STORE", "json")
	t.Setenv("FILELEDGER_DATA_FILE", filepath.Join(dir, "blockchain_data.json"))
	t.Setenv("FILELEDGER_DB_PATH", filepath.Join(dir, "db"))
	t.Setenv("FILELEDGER_DEK", "")
	t.Setenv("FILELEDGER_AUDIT_LOG", filepath.Join(dir, "audit.jsonl"))
	t.Setenv("FILELEDGER_UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")
	return dir
}

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--env-file", filepath.Join(dir, ".env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRegisterVerifyTamper(t *testing.T) {
	dir := testEnv(t)
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "hello")

	out, err := execute(t, dir, "register", path, "--uploader", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "registered in block 1")

	out, err = execute(t, dir, "verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[SUCCESS]")
	assert.Contains(t, out, "Uploader ID:    alice")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(" world")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err = execute(t, dir, "verify", path)
	require.ErrorIs(t, err, errTampered)
	assert.Contains(t, out, "[FAILURE]")

	out, err = execute(t, dir, "-o", "json", "verify", path)
	require.ErrorIs(t, err, errTampered)
	var report integrity.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, integrity.Tampered, report.Status)
	assert.Equal(t, int64(5), report.RecordedSize)
	assert.Equal(t, int64(11), report.CurrentSize)

	out, err = execute(t, dir, "-o", "json", "stats")
	require.NoError(t, err)
	var st chain.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 2, st.TotalBlocks)
	assert.Equal(t, 1, st.FilesTracked)
	assert.Equal(t, map[string]int{"FILE_REGISTERED": 1}, st.Actions)

	audit, err := os.ReadFile(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(audit)), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[3], `"eventType":"file_tampered"`)
}

func TestVerify_Errors(t *testing.T) {
	dir := testEnv(t)
	path := filepath.Join(dir, "never.txt")
	writeFile(t, path, "x")

	out, err := execute(t, dir, "verify", path)
	require.ErrorIs(t, err, integrity.ErrNoRecord)
	assert.Contains(t, out, "No blockchain record found")

	_, err = execute(t, dir, "register", filepath.Join(dir, "missing.txt"))
	require.ErrorIs(t, err, integrity.ErrFileNotFound)

	_, err = execute(t, dir, "verify")
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	dir := testEnv(t)
	path := filepath.Join(dir, "doc.txt")
	writeFile(t, path, "v1")
	_, err := execute(t, dir, "register", path, "--uploader", "bob", "--action", "FILE_CREATED")
	require.NoError(t, err)
	writeFile(t, path, "v2")
	_, err = execute(t, dir, "register", path, "--uploader", "bob", "--action", "FILE_MODIFIED")
	require.NoError(t, err)

	out, err := execute(t, dir, "history", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 entries)")
	assert.Contains(t, out, "FILE_MODIFIED")

	out, err = execute(t, dir, "-o", "json", "history", "--uploader", "bob")
	require.NoError(t, err)
	var blocks []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &blocks))
	assert.Len(t, blocks, 2)

	out, err = execute(t, dir, "history", filepath.Join(dir, "other.txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "No history found")

	_, err = execute(t, dir, "history")
	assert.Error(t, err)
	_, err = execute(t, dir, "history", path, "--uploader", "bob")
	assert.Error(t, err)
}

func TestShow(t *testing.T) {
	dir := testEnv(t)

	out, err := execute(t, dir, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "BLOCKCHAIN EXPLORER - Total Blocks: 1")

	out, err = execute(t, dir, "show", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Block Index: 0")
	assert.Contains(t, out, strings.Repeat("0", 64))

	out, err = execute(t, dir, "-o", "json", "show")
	require.NoError(t, err)
	var doc struct {
		Difficulty int               `json:"difficulty"`
		Blocks     []json.RawMessage `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 1, doc.Difficulty)
	assert.Len(t, doc.Blocks, 1)

	_, err = execute(t, dir, "show", "7")
	assert.ErrorContains(t, err, "block 7 not found")
	_, err = execute(t, dir, "show", "-1")
	assert.Error(t, err)
}

func TestValidate_DetectsEditedStore(t *testing.T) {
	dir := testEnv(t)
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "hello")
	_, err := execute(t, dir, "register", path)
	require.NoError(t, err)

	out, err := execute(t, dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Blockchain valid (2 blocks)")

	sum := sha256.Sum256([]byte("hello"))
	digest := hex.EncodeToString(sum[:])
	dataFile := filepath.Join(dir, "blockchain_data.json")
	raw, err := os.ReadFile(dataFile)
	require.NoError(t, err)
	require.Contains(t, string(raw), digest)
	edited := strings.Replace(string(raw), digest, strings.Repeat("f", 64), 1)
	require.NoError(t, os.WriteFile(dataFile, []byte(edited), 0o644))

	out, err = execute(t, dir, "validate")
	require.ErrorIs(t, err, chain.ErrValidationFailed)
	assert.Contains(t, out, "block 1 hash is corrupted")

	out, err = execute(t, dir, "-o", "json", "validate")
	require.ErrorIs(t, err, chain.ErrValidationFailed)
	var res validateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	require.NotNil(t, res.Index)
	assert.Equal(t, uint64(1), *res.Index)
	assert.Equal(t, string(chain.ReasonHashCorrupted), res.Reason)
}

func TestDemo(t *testing.T) {
	dir := testEnv(t)
	file := filepath.Join(dir, "important_document.txt")

	out, err := execute(t, dir, "demo", "--file", file)
	require.NoError(t, err)
	for _, want := range []string{"PHASE 1", "PHASE 4", "[FAILURE]", "PHASE 8", "Demo simulation completed"} {
		assert.Contains(t, out, want)
	}
	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(content), demoTamper))

	out, err = execute(t, dir, "-o", "json", "stats")
	require.NoError(t, err)
	var st chain.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 3, st.TotalBlocks)
	assert.Equal(t, map[string]int{"FILE_CREATED": 1, "FILE_MODIFIED": 1}, st.Actions)
	assert.Equal(t, 1, st.UniqueUploaders)
}

func TestLevelDBStore_Encrypted(t *testing.T) {
	dir := testEnv(t)
	t.Setenv("FILELEDGER_DEK", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)))
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "leveldb")

	_, err := execute(t, dir, "--store", "leveldb", "register", path)
	require.NoError(t, err)
	out, err := execute(t, dir, "--store", "leveldb", "verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[SUCCESS]")

	_, err = os.Stat(filepath.Join(dir, "blockchain_data.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFlagAndConfigErrors(t *testing.T) {
	dir := testEnv(t)

	_, err := execute(t, dir, "-o", "xml", "stats")
	assert.ErrorContains(t, err, "--output")

	_, err = execute(t, dir, "--store", "sqlite", "stats")
	assert.ErrorContains(t, err, "store")

	_, err = execute(t, dir, "--difficulty", "99", "stats")
	assert.ErrorContains(t, err, "difficulty")
}

func TestNodeCommands(t *testing.T) {
	dir := testEnv(t)
	c, err := chain.New(chain.Options{Difficulty: 1})
	require.NoError(t, err)
	_, err = c.CreateGenesis()
	require.NoError(t, err)
	srv, err := server.NewServer(server.Options{
		Service:   integrity.NewService(c),
		UploadDir: filepath.Join(dir, "uploads"),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	out, err := execute(t, dir, "node", "health", "--addr", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Node Health: healthy")
	assert.Contains(t, out, "Block Height: 1")

	out, err = execute(t, dir, "node", "readiness", "--addr", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Readiness: true")

	out, err = execute(t, dir, "-o", "json", "node", "status", "--addr", ts.URL)
	require.NoError(t, err)
	var st server.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, server.NodeVersion(), st.Version)
}
