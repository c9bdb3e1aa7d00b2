package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	blockPrefix   = "block:"
	difficultyKey = "meta:difficulty"
	heightKey     = "meta:height"
)

// blockKey zero-pads the index so LevelDB's key order is chain order.
func blockKey(index int) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockPrefix, index))
}

// LevelStore keeps one LevelDB entry per block plus chain metadata. Block
// values are optionally encrypted at rest.
type LevelStore struct {
	db     *leveldb.DB
	cipher *Cipher
	path   string
}

func NewLevelStore(path string, c *Cipher) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelStore{db: db, cipher: c, path: path}, nil
}

// Save writes every block and the metadata in one synced batch, and drops
// block keys beyond the snapshot's length.
func (s *LevelStore) Save(snap Snapshot) error {
	batch := new(leveldb.Batch)
	for i, b := range snap.Blocks {
		raw, err := b.Serialize()
		if err != nil {
			return fmt.Errorf("serialize block %d: %w", b.Index(), err)
		}
		enc, err := s.cipher.Encrypt(raw)
		if err != nil {
			return fmt.Errorf("encrypt block %d: %w", b.Index(), err)
		}
		batch.Put(blockKey(i), enc)
	}

	stale := s.db.NewIterator(&util.Range{Start: blockKey(len(snap.Blocks)), Limit: util.BytesPrefix([]byte(blockPrefix)).Limit}, nil)
	for stale.Next() {
		batch.Delete(append([]byte{}, stale.Key()...))
	}
	stale.Release()
	if err := stale.Error(); err != nil {
		return err
	}

	batch.Put([]byte(difficultyKey), []byte(strconv.Itoa(snap.Difficulty)))
	batch.Put([]byte(heightKey), []byte(strconv.Itoa(len(snap.Blocks))))
	return s.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// Load reassembles the stored document and runs it through Decode, so a
// LevelDB store is held to the same schema as the JSON file.
func (s *LevelStore) Load() (Snapshot, error) {
	diffRaw, err := s.db.Get([]byte(difficultyKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Snapshot{}, fmt.Errorf("%s: %w", s.path, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, &LoadError{Source: s.path, Err: err}
	}
	difficulty, err := strconv.Atoi(string(diffRaw))
	if err != nil {
		return Snapshot{}, &LoadError{Source: s.path, Err: fmt.Errorf("difficulty: %w", err)}
	}

	var blocks []json.RawMessage
	iter := s.db.NewIterator(util.BytesPrefix([]byte(blockPrefix)), nil)
	for iter.Next() {
		dec, err := s.cipher.Decrypt(iter.Value())
		if err != nil {
			iter.Release()
			return Snapshot{}, &LoadError{Source: s.path, Err: fmt.Errorf("decrypt %s: %w", iter.Key(), err)}
		}
		if !json.Valid(dec) {
			iter.Release()
			return Snapshot{}, &LoadError{Source: s.path, Err: fmt.Errorf("block %s is not valid JSON", iter.Key())}
		}
		blocks = append(blocks, json.RawMessage(bytes.Clone(dec)))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return Snapshot{}, &LoadError{Source: s.path, Err: err}
	}

	doc, err := json.Marshal(struct {
		Difficulty int               `json:"difficulty"`
		Blocks     []json.RawMessage `json:"blocks"`
	}{difficulty, blocks})
	if err != nil {
		return Snapshot{}, &LoadError{Source: s.path, Err: err}
	}
	return Decode(s.path, doc)
}

// Height returns the block count recorded by the last Save.
func (s *LevelStore) Height() (int, error) {
	raw, err := s.db.Get([]byte(heightKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(raw))
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

// Open returns the store named by kind: "json" or "leveldb".
func Open(kind, dataFile, dbPath string, c *Cipher) (Store, error) {
	switch kind {
	case "", "json":
		return NewJSONFileStore(dataFile), nil
	case "leveldb":
		return NewLevelStore(dbPath, c)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
