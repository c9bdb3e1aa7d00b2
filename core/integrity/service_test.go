package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fileledger/core/audit"
	"fileledger/core/block"
	"fileledger/core/chain"
	"fileledger/core/metrics"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogEvent(event audit.AuditEvent) {
	m.Called(event)
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(ev audit.AuditEvent) bool { return ev.EventType == eventType })
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func newService(t *testing.T, difficulty int, opts ...Option) *Service {
	t.Helper()
	c, err := chain.New(chain.Options{Difficulty: difficulty})
	require.NoError(t, err)
	_, err = c.CreateGenesis()
	require.NoError(t, err)
	return NewService(c, opts...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileDigest(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	writeFile(t, p, "hello")

	d, n, err := FileDigest(p)
	require.NoError(t, err)
	assert.Equal(t, sum("hello"), d)
	assert.Equal(t, int64(5), n)

	_, _, err = FileDigest(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	// A directory opens but cannot be read as a stream.
	_, _, err = FileDigest(dir)
	assert.ErrorIs(t, err, ErrFileUnreadable)
}

func TestRegisterVerifyTamperReregister(t *testing.T) {
	au := &MockAuditLogger{}
	au.On("LogEvent", eventOfType(audit.EventFileRegistered)).Twice()
	au.On("LogEvent", eventOfType(audit.EventFileVerified)).Twice()
	au.On("LogEvent", eventOfType(audit.EventFileTampered)).Once()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := newService(t, 2, WithAudit(au), WithMetrics(m))
	path := filepath.Join(t.TempDir(), "a.txt")

	writeFile(t, path, "original contents")
	b1, err := s.RegisterFile(path, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b1.Index())
	ev := block.FileEventFromPayload(b1.Data())
	assert.Equal(t, sum("original contents"), ev.FileHash)
	assert.Equal(t, block.ActionFileRegistered, ev.Action)

	r, err := s.VerifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, Verified, r.Status)
	assert.Equal(t, uint64(1), r.BlockIndex)
	assert.True(t, r.SizeMatches)
	assert.Equal(t, "alice", r.UploaderID)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(" plus tampering")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err = s.VerifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, Tampered, r.Status)
	assert.False(t, r.Verified())
	assert.Equal(t, sum("original contents"), r.RecordedHash)
	assert.Equal(t, sum("original contents plus tampering"), r.CurrentHash)
	assert.False(t, r.SizeMatches)
	assert.Equal(t, uint64(1), r.BlockIndex)

	b2, err := s.RegisterFile(path, "alice", block.ActionFileModified)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b2.Index())

	r, err = s.VerifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, Verified, r.Status)
	assert.Equal(t, uint64(2), r.BlockIndex)
	assert.Equal(t, b2.Time(), r.BlockTime)

	assert.Len(t, s.Chain().HistoryForFile(path), 2)
	assert.NoError(t, s.Chain().Validate())
	au.AssertExpectations(t)

	expected := `
# HELP fileledger_file_verifications_total File verifications, by verdict
# TYPE fileledger_file_verifications_total counter
fileledger_file_verifications_total{result="tampered"} 1
fileledger_file_verifications_total{result="verified"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fileledger_file_verifications_total"))
}

func TestRegisterFile_Defaults(t *testing.T) {
	s := newService(t, 0)
	path := filepath.Join(t.TempDir(), "b.bin")
	writeFile(t, path, "x")

	b, err := s.RegisterFile(path, "", "")
	require.NoError(t, err)
	ev := block.FileEventFromPayload(b.Data())
	assert.Equal(t, DefaultUploader, ev.UploaderID)
	assert.Equal(t, block.ActionFileRegistered, ev.Action)
	assert.Equal(t, path, ev.Filename)
	assert.Equal(t, int64(1), ev.FileSize)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestRegisterContent_RecordsFilename(t *testing.T) {
	s := newService(t, 0)
	dir := t.TempDir()
	staged := filepath.Join(dir, ".upload-123")
	writeFile(t, staged, "staged body")

	b, err := s.RegisterContent("a.txt", staged, "alice", "")
	require.NoError(t, err)
	ev := block.FileEventFromPayload(b.Data())
	assert.Equal(t, "a.txt", ev.Filename)
	assert.Equal(t, sum("staged body"), ev.FileHash)

	_, ok := s.Chain().FindLatestForFile(staged)
	assert.False(t, ok)

	rep, err := s.VerifyContent("a.txt", staged)
	require.NoError(t, err)
	assert.Equal(t, Verified, rep.Status)
}

func TestRegisterFile_Errors(t *testing.T) {
	s := newService(t, 0)
	_, err := s.RegisterFile(filepath.Join(t.TempDir(), "nope.txt"), "alice", "")
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, 1, s.Chain().Len())

	if runtime.GOOS != "windows" && os.Geteuid() != 0 {
		locked := filepath.Join(t.TempDir(), "locked.txt")
		writeFile(t, locked, "secret")
		require.NoError(t, os.Chmod(locked, 0))
		_, err = s.RegisterFile(locked, "alice", "")
		assert.ErrorIs(t, err, ErrFileUnreadable)
	}
}

func TestRegisterFile_AppendFailure(t *testing.T) {
	c, err := chain.New(chain.Options{})
	require.NoError(t, err)
	s := NewService(c)
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, "x")

	_, err = s.RegisterFile(path, "alice", "")
	assert.ErrorIs(t, err, ErrAppendFailed)
	assert.ErrorIs(t, err, chain.ErrInvalidState)
}

func TestVerifyFile_NoRecord(t *testing.T) {
	s := newService(t, 0)
	path := filepath.Join(t.TempDir(), "unknown.txt")
	writeFile(t, path, "x")

	_, err := s.VerifyFile(path)
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestVerifyFile_DeletedAfterRegister(t *testing.T) {
	s := newService(t, 0)
	path := filepath.Join(t.TempDir(), "gone.txt")
	writeFile(t, path, "x")
	_, err := s.RegisterFile(path, "alice", "")
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = s.VerifyFile(path)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
