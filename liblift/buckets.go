package liblift

import (
	"sort"
	"sync"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/libfg"
)

// BucketKey counts how often each value index appears across an assignment.
//
// A permutation of a factor's arguments never changes the BucketKey of an entry, so two exchangeable factors
// always have the same keys, each holding the same multiset of potential values.
type BucketKey [golift.MaxDomainSize]uint8

// KeyOf returns the BucketKey of the given assignment.
func KeyOf(a libfg.Assignment) BucketKey {
	var key BucketKey
	for _, val := range a {
		key[val]++
	}
	return key
}

// Bucket holds all entries of a factor's table sharing a BucketKey.
type Bucket struct {
	Key    BucketKey
	Values []float64          // potential of each entry, same order as Rows
	Rows   []libfg.Assignment // full assignment of each entry
	DoF    uint64             // product over distinct values v in Values of count(v)

	sorted []float64 // Values, ascending
}

// SortedValues returns the bucket's potential values in ascending order.  The caller must not modify the returned slice.
func (b *Bucket) SortedValues() []float64 {
	return b.sorted
}

// IsConstant returns true if every entry in the bucket has the same potential.
func (b *Bucket) IsConstant() bool {
	return len(b.sorted) == 0 || b.sorted[0] == b.sorted[len(b.sorted)-1]
}

// BucketTable partitions a factor's table entries by BucketKey.
type BucketTable struct {
	ByKey map[BucketKey]*Bucket
	Order []BucketKey // first-seen in table order, or ascending DoF if built sorted
}

// Bucket returns the bucket for the given key, or nil.
func (bt *BucketTable) Bucket(key BucketKey) *Bucket {
	return bt.ByKey[key]
}

// Buckets returns the buckets in table order.
func (bt *BucketTable) Buckets() []*Bucket {
	buckets := make([]*Bucket, len(bt.Order))
	for i, key := range bt.Order {
		buckets[i] = bt.ByKey[key]
	}
	return buckets
}

// BuildBuckets partitions f's potential table by BucketKey.
//
// If sorted is set, Order ranks buckets by ascending degree of freedom (stable w.r.t. first-seen order).
// The factor is not modified.  Returns ErrIncompletePotential if an entry is unset.
func BuildBuckets(f *libfg.Factor, sorted bool) (*BucketTable, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	bt := &BucketTable{
		ByKey: make(map[BucketKey]*Bucket),
	}

	f.ForEachAssignment(func(idx int, a libfg.Assignment, w float64) bool {
		key := KeyOf(a)
		b := bt.ByKey[key]
		if b == nil {
			b = &Bucket{
				Key: key,
			}
			bt.ByKey[key] = b
			bt.Order = append(bt.Order, key)
		}
		b.Values = append(b.Values, w)
		b.Rows = append(b.Rows, a.Clone())
		return true
	})

	for _, b := range bt.ByKey {
		b.sorted = append([]float64(nil), b.Values...)
		sort.Float64s(b.sorted)
		b.DoF = degreeOfFreedom(b.sorted)
	}

	if sorted {
		sort.SliceStable(bt.Order, func(i, j int) bool {
			return bt.ByKey[bt.Order[i]].DoF < bt.ByKey[bt.Order[j]].DoF
		})
	}

	return bt, nil
}

// degreeOfFreedom multiplies the run lengths of the given ascending values.
func degreeOfFreedom(sorted []float64) uint64 {
	dof := uint64(1)
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		dof *= uint64(j - i)
		i = j
	}
	return dof
}

// PositionsByValue maps each value occurring in the given assignment to the argument positions holding it.
func PositionsByValue(a libfg.Assignment) map[libfg.Value][]int {
	positions := make(map[libfg.Value][]int, 2)
	for i, val := range a {
		positions[val] = append(positions[val], i)
	}
	return positions
}

// BucketCache holds the bucket tables of factors for the duration of one colour-passing run.
//
// Each table is computed at most once per factor per ordering, including under concurrent callers.
// Entries are keyed by factor identity, so detached copies of a factor get their own entries.
type BucketCache struct {
	mu      sync.Mutex
	entries map[bucketCacheKey]*bucketEntry
}

type bucketCacheKey struct {
	f      *libfg.Factor
	sorted bool
}

type bucketEntry struct {
	once  sync.Once
	table *BucketTable
	err   error
}

func NewBucketCache() *BucketCache {
	return &BucketCache{
		entries: make(map[bucketCacheKey]*bucketEntry),
	}
}

// Get returns the bucket table of f, building it if needed.
// A nil cache builds a fresh table every call.
func (cache *BucketCache) Get(f *libfg.Factor, sorted bool) (*BucketTable, error) {
	if cache == nil {
		return BuildBuckets(f, sorted)
	}

	key := bucketCacheKey{f, sorted}
	cache.mu.Lock()
	entry := cache.entries[key]
	if entry == nil {
		entry = &bucketEntry{}
		cache.entries[key] = entry
	}
	cache.mu.Unlock()

	entry.once.Do(func() {
		entry.table, entry.err = BuildBuckets(f, sorted)
		metrics.bucketTablesBuilt.Inc()
	})
	return entry.table, entry.err
}

// Invalidate drops both cached tables of f, called after f's table is rewritten.
func (cache *BucketCache) Invalidate(f *libfg.Factor) {
	if cache == nil {
		return
	}
	cache.mu.Lock()
	delete(cache.entries, bucketCacheKey{f, false})
	delete(cache.entries, bucketCacheKey{f, true})
	cache.mu.Unlock()
}

// Len returns the number of cached tables.
func (cache *BucketCache) Len() int {
	if cache == nil {
		return 0
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.entries)
}
