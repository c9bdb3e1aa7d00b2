package storage

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileledger/core/block"
	"fileledger/core/genesis"
	"fileledger/types/ids"
)

func testSnapshot(t *testing.T, n int) Snapshot {
	t.Helper()
	now := time.Unix(1700000000, 250000000)
	g, err := genesis.NewBlock(now)
	require.NoError(t, err)
	blocks := []*block.Block{g}
	for i := 1; i < n; i++ {
		ev := block.FileEvent{
			Filename:   "a.txt",
			FileHash:   ids.NewID([]byte{byte(i)}).String(),
			FileSize:   int64(i * 10),
			UploaderID: "alice",
			Action:     block.ActionFileModified,
			Timestamp:  now,
		}
		prev := blocks[len(blocks)-1]
		b, err := block.New(uint64(i), prev.Hash(), prev.Timestamp()+0.5, ev.Payload(), 1, 0)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	return Snapshot{Difficulty: 1, Blocks: blocks}
}

func assertSameChain(t *testing.T, want, got Snapshot) {
	t.Helper()
	assert.Equal(t, want.Difficulty, got.Difficulty)
	require.Len(t, got.Blocks, len(want.Blocks))
	for i := range want.Blocks {
		w, g := want.Blocks[i], got.Blocks[i]
		assert.Equal(t, w.Index(), g.Index())
		assert.Equal(t, w.Timestamp(), g.Timestamp())
		assert.Equal(t, w.PreviousHash(), g.PreviousHash())
		assert.Equal(t, w.Nonce(), g.Nonce())
		assert.Equal(t, w.Difficulty(), g.Difficulty())
		assert.Equal(t, w.Hash(), g.Hash())
		// Restored payload must re-hash to the stored digest.
		assert.Equal(t, g.Hash(), g.ContentHash(), "block %d", i)
	}
}

func TestEncodeDecode_PreservesHashes(t *testing.T) {
	snap := testSnapshot(t, 4)
	raw, err := Encode(snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"difficulty\": 1")

	got, err := Decode("mem", raw)
	require.NoError(t, err)
	assertSameChain(t, snap, got)
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"difficulty": 2, "blocks": [`,
		"missing hash":  `{"difficulty": 2, "blocks": [{"index": 0, "timestamp": 1, "data": {}, "previous_hash": "0", "nonce": 0}]}`,
		"blocks absent": `{"difficulty": 2}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode("mem", []byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLoad)
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, "mem", le.Source)
		})
	}
}

func TestJSONFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blockchain_data.json")
	s := NewJSONFileStore(path)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	snap := testSnapshot(t, 3)
	require.NoError(t, s.Save(snap))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")

	got, err := s.Load()
	require.NoError(t, err)
	assertSameChain(t, snap, got)
	assert.NoError(t, s.Close())
}

func TestJSONFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err := NewJSONFileStore(path).Load()
	assert.ErrorIs(t, err, ErrLoad)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLevelStore_RoundTrip(t *testing.T) {
	s, err := NewLevelStore(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	snap := testSnapshot(t, 4)
	require.NoError(t, s.Save(snap))
	got, err := s.Load()
	require.NoError(t, err)
	assertSameChain(t, snap, got)

	h, err := s.Height()
	require.NoError(t, err)
	assert.Equal(t, 4, h)
}

func TestLevelStore_ShrinkDropsStaleBlocks(t *testing.T) {
	s, err := NewLevelStore(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(testSnapshot(t, 5)))
	short := testSnapshot(t, 2)
	require.NoError(t, s.Save(short))

	got, err := s.Load()
	require.NoError(t, err)
	assertSameChain(t, short, got)
}

func TestLevelStore_Encrypted(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "db")
	s, err := NewLevelStore(dir, c)
	require.NoError(t, err)
	snap := testSnapshot(t, 3)
	require.NoError(t, s.Save(snap))
	require.NoError(t, s.Close())

	s, err = NewLevelStore(dir, c)
	require.NoError(t, err)
	got, err := s.Load()
	require.NoError(t, err)
	assertSameChain(t, snap, got)
	require.NoError(t, s.Close())

	// Reading without the key fails as a load error, not as "missing".
	plain, err := NewLevelStore(dir, nil)
	require.NoError(t, err)
	defer plain.Close()
	_, err = plain.Load()
	assert.ErrorIs(t, err, ErrLoad)
}

func TestCipher(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)

	c, err := CipherFromBase64("")
	require.NoError(t, err)
	assert.Nil(t, c)
	out, err := c.Encrypt([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)

	_, err = CipherFromBase64("!!notbase64")
	assert.Error(t, err)

	c, err = CipherFromBase64("MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=")
	require.NoError(t, err)
	ct, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("secret"), ct)
	pt, err := c.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), pt)

	_, err = c.Decrypt([]byte{1})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("json", filepath.Join(dir, "c.json"), "", nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONFileStore{}, s)

	s, err = Open("leveldb", "", filepath.Join(dir, "db"), nil)
	require.NoError(t, err)
	assert.IsType(t, &LevelStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("mongo", "", "", nil)
	assert.Error(t, err)
}
