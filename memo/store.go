package memo

import (
	"errors"
	"fmt"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/on-the-ground/wrapkit/callkey"
)

// Store is the key→result map behind a Cache.
// Implementations serialize their own mutations; a Cache never holds a lock
// across a compute call.
type Store interface {
	Get(key callkey.Key) (value any, ok bool, err error)
	Set(key callkey.Key, value any) error
	Clear() error
}

// NamespaceClearer is implemented by stores that can drop one namespace.
type NamespaceClearer interface {
	ClearNamespace(namespace string) (removed int, err error)
}

// Sizer is implemented by stores that can count their entries.
type Sizer interface {
	Len() (int, error)
}

var ErrUnsupported = errors.New("operation not supported by store")

const (
	entryTable     = "memo"
	idIndex        = "id"
	namespaceIndex = "namespace"
)

type entry struct {
	ID        string
	Namespace string
	Value     any
}

var _ Store = MemDBStore{}
var _ NamespaceClearer = MemDBStore{}
var _ Sizer = MemDBStore{}

// MemDBStore keeps every entry until cleared. Reads run on immutable
// snapshots; writes go through memdb's single writer lock, which is held only
// for the insert or delete itself.
type MemDBStore struct {
	db *memdb.MemDB
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			entryTable: {
				Name: entryTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					namespaceIndex: {
						Name:         namespaceIndex,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "Namespace"},
					},
				},
			},
		},
	}
}

// NewMemDBStore creates an empty, unbounded store.
func NewMemDBStore() (MemDBStore, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return MemDBStore{}, fmt.Errorf("memo: create memdb: %w", err)
	}
	return MemDBStore{db: db}, nil
}

func entryID(key callkey.Key) string {
	return key.Namespace + "\x1f" + key.Canonical()
}

func (m MemDBStore) Get(key callkey.Key) (any, bool, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(entryTable, idIndex, entryID(key))
	if err != nil || raw == nil {
		return nil, false, err
	}
	return raw.(*entry).Value, true, nil
}

func (m MemDBStore) Set(key callkey.Key, value any) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(entryTable, &entry{
		ID:        entryID(key),
		Namespace: key.Namespace,
		Value:     value,
	}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Clear drops all namespaces in one write transaction.
func (m MemDBStore) Clear() error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(entryTable, idIndex+"_prefix", ""); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (m MemDBStore) ClearNamespace(namespace string) (int, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	n, err := txn.DeleteAll(entryTable, namespaceIndex, namespace)
	if err != nil {
		return 0, err
	}
	txn.Commit()
	return n, nil
}

func (m MemDBStore) Len() (int, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(entryTable, idIndex+"_prefix", "")
	if err != nil {
		return 0, err
	}
	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n, nil
}
