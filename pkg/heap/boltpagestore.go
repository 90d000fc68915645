package heap

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/shardbridge/pkg/catalog"
	bolt "go.etcd.io/bbolt"
)

// fieldValue is the JSON-at-rest shape of one tuple field: the raw Go value
// (round-tripped through encoding/json, so custom scalar types must be
// JSON-marshalable) plus its null flag.
type fieldValue struct {
	Value any
	Null  bool
}

type tupleRecord struct {
	FromBackend bool
	Fields      []fieldValue
}

// BoltPageStore durably persists a buffer's pages, grounded directly on
// pkg/storage/boltdb.go's bucket-per-entity pattern: one bucket per buffer
// number, one JSON record per HTP (spec §4.E, SPEC_FULL.md's domain-stack
// wiring of bbolt to the heap-buffer page store). It does not replace
// BufferTable's in-memory pages — it is the write-behind/recovery path a
// backend adapter or the transaction manager consults when a buffer's
// contents must survive a process restart.
type BoltPageStore struct {
	db *bolt.DB
}

// OpenBoltPageStore opens (creating if absent) a heap page database under
// dataDir/heap.db.
func OpenBoltPageStore(dataDir string) (*BoltPageStore, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "heap.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("heap: failed to open page store: %w", err)
	}
	return &BoltPageStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltPageStore) Close() error {
	return s.db.Close()
}

// Release implements memscope.Releaser.
func (s *BoltPageStore) Release() error {
	return s.Close()
}

func bucketName(buf HeapBufferNo) []byte {
	return []byte(fmt.Sprintf("buffer-%d", buf))
}

func keyName(ptr HTP) []byte {
	return []byte(fmt.Sprintf("%020d", uint64(ptr)))
}

// SaveTuple persists one tuple's current field values under its HTP.
func (s *BoltPageStore) SaveTuple(t *Tuple) error {
	rec := tupleRecord{FromBackend: t.FromBackend}
	for i := range t.Def.Fields {
		rec.Fields = append(rec.Fields, fieldValue{Value: t.values[i], Null: t.nulls[i]})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	buf, _, _ := t.Pointer.Unpack()
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(buf))
		if err != nil {
			return err
		}
		return b.Put(keyName(t.Pointer), data)
	})
}

// LoadTuple reconstructs a tuple previously saved under ptr, against def.
func (s *BoltPageStore) LoadTuple(ptr HTP, def *catalog.TupleDef) (*Tuple, error) {
	var rec tupleRecord
	buf, _, _ := ptr.Unpack()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(buf))
		if b == nil {
			return fmt.Errorf("heap: no persisted pages for buffer %d", buf)
		}
		data := b.Get(keyName(ptr))
		if data == nil {
			return fmt.Errorf("heap: no persisted tuple at %v", ptr)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}

	t := &Tuple{
		Pointer:     ptr,
		Def:         def,
		FromBackend: rec.FromBackend,
		values:      make([]any, len(rec.Fields)),
		nulls:       make([]bool, len(rec.Fields)),
	}
	for i, fv := range rec.Fields {
		t.values[i] = fv.Value
		t.nulls[i] = fv.Null
	}
	return t, nil
}

// DeleteTuple removes a persisted tuple record.
func (s *BoltPageStore) DeleteTuple(ptr HTP) error {
	buf, _, _ := ptr.Unpack()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(buf))
		if b == nil {
			return nil
		}
		return b.Delete(keyName(ptr))
	})
}
