package catalog

import (
	"github.com/2x3systems/golift/golift"
	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

// GraphSet records graph fingerprints seen so far, e.g. to skip repeated inputs within one run.
type GraphSet interface {

	// TryAdd adds graphID and returns true, or returns false if graphID was already added.
	TryAdd(graphID golift.GraphID) (bool, error)

	// Len returns the number of fingerprints added.
	Len() int

	// Close discards the set.
	Close()
}

// NewGraphSet returns an empty GraphSet held in an in-memory badger db.
func NewGraphSet() (GraphSet, error) {
	dbOpts := badger.DefaultOptions("").WithInMemory(true)
	dbOpts.Logger = nil
	dbOpts.MetricsEnabled = false

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, errors.Wrap(err, "opening graph set")
	}
	return &graphSet{db: db}, nil
}

type graphSet struct {
	db    *badger.DB
	count int
}

func (set *graphSet) TryAdd(graphID golift.GraphID) (bool, error) {
	if set.db == nil {
		return false, golift.ErrCatalogClosed
	}

	added := false
	err := set.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(graphID[:])
		if err != badger.ErrKeyNotFound {
			return err
		}
		added = true
		return txn.Set(graphID[:], nil)
	})
	if err != nil {
		return false, err
	}
	if added {
		set.count++
	}
	return added, nil
}

func (set *graphSet) Len() int {
	return set.count
}

func (set *graphSet) Close() {
	if set.db != nil {
		set.db.Close()
		set.db = nil
	}
}
