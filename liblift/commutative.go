package liblift

import (
	"sync"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/libfg"
	"github.com/plan-systems/klog"
)

// maxCandidateSets bounds the number of candidate position sets tracked while walking a factor's buckets.
const maxCandidateSets = 64

// CommutativeArguments returns the largest set of f's arguments that can be freely permuted without changing
// f's table, in argument order.  The result is empty if no two arguments commute; it never has size 1.
func CommutativeArguments(f *libfg.Factor, cache *BucketCache) ([]libfg.VarID, error) {
	mask, err := commutativePositions(f, cache)
	if err != nil || mask == 0 {
		return nil, err
	}
	args := make([]libfg.VarID, 0, mask.Count())
	for _, pos := range mask.Positions() {
		args = append(args, f.Arg(pos).ID())
	}
	return args, nil
}

// commutativePositions returns the argument positions of f that form its largest commutative set.
//
// The bucket walk proposes candidate sets: within a bucket, entries sharing a potential value show that the
// positions varying across them may be exchangeable.  Each candidate is then split into classes of positions
// whose pairwise swaps leave the table invariant.  Transpositions generate every permutation of a class, so
// the largest class is commutative as a whole.
func commutativePositions(f *libfg.Factor, cache *BucketCache) (posMask, error) {
	N := f.NumArgs()
	if N < 2 {
		return 0, nil
	}

	bt, err := cache.Get(f, false)
	if err != nil {
		return 0, err
	}

	candidates := newMaskSet(allPositions(N))
	for _, key := range bt.Order {
		b := bt.ByKey[key]
		if len(b.Rows) < 2 {
			continue
		}

		groups := varyingPositionsByValue(b)
		if len(groups) == 0 {
			continue
		}

		next := newMaskSet()
		for _, c := range candidates.Masks() {
			for _, g := range groups {
				if m := c & g; m.Count() > 1 {
					next.AddMaximal(m)
				}
			}
		}
		if next.Empty() {
			return 0, nil
		}
		for next.Size() > maxCandidateSets {
			masks := next.Masks()
			next.Remove(masks[len(masks)-1])
		}
		candidates = next
	}

	var best posMask
	for _, c := range candidates.Masks() {
		if c.Count() <= best.Count() {
			break
		}
		for _, class := range swapClasses(f, c) {
			if class.Count() > best.Count() {
				best = class
			}
		}
	}
	if best.Count() < 2 {
		return 0, nil
	}
	klog.V(3).Infof("%v: commutative positions %v", f, best.Positions())
	return best, nil
}

// varyingPositionsByValue groups a bucket's entries by potential value and returns, for each group of two or
// more entries, the positions whose value is not constant across the group.
func varyingPositionsByValue(b *Bucket) []posMask {
	type group struct {
		first   libfg.Assignment
		varying posMask
		count   int
	}
	byValue := make(map[float64]*group)
	order := make([]float64, 0, len(b.Values))
	for i, w := range b.Values {
		g := byValue[w]
		if g == nil {
			byValue[w] = &group{
				first: b.Rows[i],
				count: 1,
			}
			order = append(order, w)
			continue
		}
		g.count++
		for pos, val := range b.Rows[i] {
			if val != g.first[pos] {
				g.varying |= maskOf(pos)
			}
		}
	}

	var groups []posMask
	for _, w := range order {
		if g := byValue[w]; g.count > 1 {
			groups = append(groups, g.varying)
		}
	}
	return groups
}

// swapClasses partitions the positions of c into classes of positions that pairwise commute.
// Only positions of the same domain can commute.
func swapClasses(f *libfg.Factor, c posMask) []posMask {
	var classes []posMask
	for _, pos := range c.Positions() {
		placed := false
		for ci, class := range classes {
			rep := class.Positions()[0]
			if f.Arg(rep).Domain().SameAs(f.Arg(pos).Domain()) && swapInvariant(f, rep, pos) {
				classes[ci] |= maskOf(pos)
				placed = true
				break
			}
		}
		if !placed {
			classes = append(classes, maskOf(pos))
		}
	}
	return classes
}

// swapInvariant returns true if exchanging the values at positions i and j never changes the potential.
func swapInvariant(f *libfg.Factor, i, j int) bool {
	invariant := true
	var buf [golift.MaxFactorArity]libfg.Value
	swapped := libfg.Assignment(buf[:f.NumArgs()])
	f.ForEachAssignment(func(idx int, a libfg.Assignment, w float64) bool {
		if a[i] == a[j] {
			return true
		}
		copy(swapped, a)
		swapped[i], swapped[j] = a[j], a[i]
		other, err := f.Index(swapped)
		if err != nil || f.PotentialAt(other) != w {
			invariant = false
		}
		return invariant
	})
	return invariant
}

// CommutativeCache holds the commutative argument positions of factors for the duration of one colour-passing run.
type CommutativeCache struct {
	buckets *BucketCache
	mu      sync.Mutex
	entries map[*libfg.Factor]*commutativeEntry
}

type commutativeEntry struct {
	once sync.Once
	mask posMask
	err  error
}

// NewCommutativeCache returns a cache that builds bucket tables through the given BucketCache (which may be nil).
func NewCommutativeCache(buckets *BucketCache) *CommutativeCache {
	return &CommutativeCache{
		buckets: buckets,
		entries: make(map[*libfg.Factor]*commutativeEntry),
	}
}

func (cache *CommutativeCache) positions(f *libfg.Factor) (posMask, error) {
	cache.mu.Lock()
	entry := cache.entries[f]
	if entry == nil {
		entry = &commutativeEntry{}
		cache.entries[f] = entry
	}
	cache.mu.Unlock()

	entry.once.Do(func() {
		entry.mask, entry.err = commutativePositions(f, cache.buckets)
	})
	return entry.mask, entry.err
}

// Positions returns the argument positions of f's commutative set, computing it if needed.
func (cache *CommutativeCache) Positions(f *libfg.Factor) ([]int, error) {
	mask, err := cache.positions(f)
	if err != nil || mask == 0 {
		return nil, err
	}
	return mask.Positions(), nil
}

// Arguments is CommutativeArguments() served from this cache.
func (cache *CommutativeCache) Arguments(f *libfg.Factor) ([]libfg.VarID, error) {
	positions, err := cache.Positions(f)
	if err != nil {
		return nil, err
	}
	var args []libfg.VarID
	for _, pos := range positions {
		args = append(args, f.Arg(pos).ID())
	}
	return args, nil
}

// Invalidate drops the cached set of f, called after f's argument order is rewritten.
func (cache *CommutativeCache) Invalidate(f *libfg.Factor) {
	cache.mu.Lock()
	delete(cache.entries, f)
	cache.mu.Unlock()
	cache.buckets.Invalidate(f)
}
