package catalog

import (
	"runtime"
	"sync"

	"github.com/2x3systems/golift/golift"
	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

/***

Catalog database format:

	gCatalogStateKey                => catalogState
	gRecordPrefix, GraphID          => LiftRecord

GraphID is the fingerprint of a factor graph's complete definition, so a graph whose argument order or tables
differ in any way gets its own record.

***/

var (
	gCatalogStateKey = []byte{0x00, 0x00, 0x01}
	gRecordPrefix    = []byte{0x01}
)

const (
	catalogMajorVers = 2024
	catalogMinorVers = 1
)

// catalog is a db wrapper for a store of colour passing outcomes
type catalog struct {
	mu         sync.Mutex
	ctx        golift.CatalogContext
	readOnly   bool
	stateDirty bool
	state      catalogState
	db         *badger.DB
}

func OpenCatalog(ctx golift.CatalogContext, opts golift.CatalogOpts) (golift.Catalog, error) {
	cat := &catalog{
		ctx:      ctx,
		readOnly: opts.ReadOnly,
	}

	dbOpts := badger.DefaultOptions(opts.DbPathName)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false // not needed so disable for performance
	dbOpts.Logger = nil
	dbOpts.MetricsEnabled = false

	// Badger for windows currently does not support read-only mode
	if runtime.GOOS == "windows" {
		dbOpts.ReadOnly = false
	}

	if len(opts.DbPathName) == 0 {
		if opts.ReadOnly {
			return nil, errors.Wrap(golift.ErrBadCatalogParam, "DbPathName must be specified for read-only catalog")
		}
		dbOpts.InMemory = true
	}

	var err error
	cat.db, err = badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}

	// Once the db is open, we consider the catalog ctx blocked until the catalog closes
	ctx.AttachCatalog(cat)

	err = cat.loadState()
	if err == badger.ErrKeyNotFound {
		err = nil
		cat.stateDirty = !cat.readOnly
		cat.state.MajorVers = catalogMajorVers
		cat.state.MinorVers = catalogMinorVers
	}

	if err == nil && (cat.state.MajorVers != catalogMajorVers || cat.state.MinorVers != catalogMinorVers) {
		err = errors.Errorf("catalog version %d.%d is incompatible", cat.state.MajorVers, cat.state.MinorVers)
	}

	if err != nil {
		cat.Close()
		return nil, err
	}

	klog.V(2).Infof("opened catalog %q (%d entries)", opts.DbPathName, cat.state.NumEntries)
	return cat, nil
}

func (cat *catalog) loadState() error {
	return cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gCatalogStateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cat.state.Unmarshal(val)
		})
	})
}

func (cat *catalog) flushState() error {
	if !cat.stateDirty {
		return nil
	}
	err := cat.db.Update(func(txn *badger.Txn) error {
		return txn.Set(gCatalogStateKey, cat.state.Marshal())
	})
	if err == nil {
		cat.stateDirty = false
	}
	return err
}

func (cat *catalog) Close() error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	var err error
	if cat.db != nil {
		err = cat.flushState()
		cat.db.Close()
		cat.db = nil
		cat.ctx.DetachCatalog(cat)
		cat.ctx = nil
	}
	return err
}

func (cat *catalog) IsReadOnly() bool {
	return cat.readOnly
}

func (cat *catalog) NumEntries() int64 {
	cat.mu.Lock()
	defer cat.mu.Unlock()
	return int64(cat.state.NumEntries)
}

func formRecordKey(key []byte, graphID golift.GraphID) []byte {
	key = append(key, gRecordPrefix...)
	key = append(key, graphID[:]...)
	return key
}

func (cat *catalog) Lookup(graphID golift.GraphID) (*golift.LiftRecord, error) {
	var keyBuf [32]byte
	key := formRecordKey(keyBuf[:0], graphID)

	cat.mu.Lock()
	defer cat.mu.Unlock()
	if cat.db == nil {
		return nil, golift.ErrCatalogClosed
	}

	var rec *golift.LiftRecord
	err := cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return errors.Wrapf(golift.ErrNotFound, "graph %v", graphID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = unmarshalRecord(val)
			return err
		})
	})
	return rec, err
}

func (cat *catalog) Store(graphID golift.GraphID, rec *golift.LiftRecord) error {
	if cat.readOnly {
		return golift.ErrCatalogReadOnly
	}

	var keyBuf [32]byte
	key := formRecordKey(keyBuf[:0], graphID)
	val := marshalRecord(rec)

	cat.mu.Lock()
	defer cat.mu.Unlock()
	if cat.db == nil {
		return golift.ErrCatalogClosed
	}

	added := false
	err := cat.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			added = true
		} else if err != nil {
			return err
		}
		return txn.Set(key, val)
	})
	if err != nil {
		return err
	}

	if added {
		cat.state.NumEntries++
		cat.stateDirty = true
	}
	return nil
}
