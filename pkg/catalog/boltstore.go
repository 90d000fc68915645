package catalog

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketTypes  = []byte("types")
	bucketTables = []byte("tables")
)

// typeRecord and fieldRecord are the JSON-at-rest shapes persisted for a
// Type and a HeapField respectively — access-method function values are not
// serializable, so a BoltCatalogStore only durably records the metadata a
// process needs to re-register the same Types against freshly constructed
// Go closures at startup (name/id/size/align/variable/inner).
type typeRecord struct {
	ID       TypeID
	Name     string
	Size     int
	Align    int
	Variable bool
	Inner    InnerPolicy
}

type fieldRecord struct {
	Name      string
	Stack     []string
	NullOrd   int
	Offset    int
}

type tableRecord struct {
	Name       string
	Version    int
	Fields     []fieldRecord
	PrimaryKey []string
}

// BoltCatalogStore persists Type and TupleDef metadata across restarts,
// grounded directly on the teacher's pkg/storage.BoltStore: one bucket per
// entity kind, JSON-encoded records keyed by name.
type BoltCatalogStore struct {
	db *bolt.DB
}

// OpenBoltCatalogStore opens (creating if absent) a catalog database under
// dataDir/catalog.db.
func OpenBoltCatalogStore(dataDir string) (*BoltCatalogStore, error) {
	dbPath := filepath.Join(dataDir, "catalog.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open catalog store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTypes, bucketTables} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("catalog: failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltCatalogStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltCatalogStore) Close() error {
	return s.db.Close()
}

// Release implements memscope.Releaser so a BoltCatalogStore can be tracked
// by the scope that owns it.
func (s *BoltCatalogStore) Release() error {
	return s.Close()
}

// SaveType persists a Type's metadata (not its function values).
func (s *BoltCatalogStore) SaveType(t *Type) error {
	rec := typeRecord{ID: t.ID, Name: t.Name, Size: t.Size, Align: t.Align, Variable: t.Variable, Inner: t.Inner}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTypes).Put([]byte(t.Name), data)
	})
}

// ListTypeNames returns every persisted type name, for diagnostics and
// startup reconciliation against the in-memory Registry.
func (s *BoltCatalogStore) ListTypeNames() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTypes).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// SaveTable persists a TupleDef's field layout metadata.
func (s *BoltCatalogStore) SaveTable(td *TupleDef) error {
	rec := tableRecord{Name: td.Name, Version: td.Version, PrimaryKey: td.PrimaryKey}
	for _, f := range td.Fields {
		names := make([]string, len(f.Stack))
		for i, t := range f.Stack {
			names[i] = t.Name
		}
		rec.Fields = append(rec.Fields, fieldRecord{Name: f.Name, Stack: names, NullOrd: f.NullOrd, Offset: f.Offset})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTables).Put([]byte(td.Name), data)
	})
}

// LoadTable reconstructs a TupleDef's field layout from the store, resolving
// each field's type stack through registry.
func (s *BoltCatalogStore) LoadTable(name string, registry *Registry) (*TupleDef, error) {
	var rec tableRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTables).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("catalog: table %q not found in store", name)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}

	td := NewTupleDef(rec.Name, false)
	for _, f := range rec.Fields {
		stack, err := registry.BuildStack(f.Stack...)
		if err != nil {
			return nil, err
		}
		if _, err := td.AddField(f.Name, stack); err != nil {
			return nil, err
		}
	}
	if len(rec.PrimaryKey) > 0 {
		if err := td.SetPrimaryKey(rec.PrimaryKey...); err != nil {
			return nil, err
		}
	}
	td.Publish()
	return td, nil
}
