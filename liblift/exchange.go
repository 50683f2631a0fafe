package liblift

import (
	"math"
	"sort"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/libfg"
	"github.com/plan-systems/klog"
)

// ExchangeOpts tunes the exchangeability check.
type ExchangeOpts struct {

	// UseAlpha allows f1 and f2 to be exchangeable up to a positive scalar.
	UseAlpha bool

	// SearchDepth is the number of lowest degree-of-freedom buckets used to prune candidate argument swaps.
	// Zero means golift.DefaultSearchDepth and a negative value means every bucket.
	// A shallow search never accepts a false match (every result is verified) but may miss a true one.
	SearchDepth int
}

func (opts ExchangeOpts) searchDepth() int {
	switch {
	case opts.SearchDepth == 0:
		return golift.DefaultSearchDepth
	case opts.SearchDepth < 0:
		return math.MaxInt32
	}
	return opts.SearchDepth
}

// Match describes how f2 was rewritten to match f1.
type Match struct {

	// Perm moves f2's argument at old position p to position Perm[p].
	Perm []int

	// Alpha relates the two tables: f1 = Alpha * f2 (after permuting f2).  Always 1 without UseAlpha.
	Alpha float64
}

// IsIdentity returns true if the match left f2's argument order unchanged.
func (m Match) IsIdentity() bool {
	for p, q := range m.Perm {
		if p != q {
			return false
		}
	}
	return true
}

// IsExchangeable reports whether f2's arguments can be reordered so that its table equals f1's (up to a
// positive scalar if useAlpha is set).  On success f2 is rewritten in place to f1's argument layout.
func IsExchangeable(f1, f2 *libfg.Factor, cache *BucketCache, useAlpha bool) (bool, error) {
	_, ok, err := Exchange(f1, f2, cache, ExchangeOpts{UseAlpha: useAlpha})
	return ok, err
}

// Exchange is IsExchangeable that also returns the permutation and scalar relating f2 to f1.
//
// A false result is a normal outcome (mismatched arity or domains, inconsistent alpha, no verified permutation)
// and leaves f2 unmodified.  An error is returned only for malformed input, e.g. ErrIncompletePotential.
func Exchange(f1, f2 *libfg.Factor, cache *BucketCache, opts ExchangeOpts) (Match, bool, error) {
	metrics.exchangeChecks.Inc()

	N := f1.NumArgs()
	if N != f2.NumArgs() || f1.TableSize() != f2.TableSize() {
		return Match{}, false, nil
	}

	bt1, err := cache.Get(f1, false)
	if err != nil {
		return Match{}, false, err
	}
	bt2, err := cache.Get(f2, true)
	if err != nil {
		return Match{}, false, err
	}

	probe := exchangeProbe{
		f1: f1,
		f2: f2,
	}
	if !opts.UseAlpha {
		probe.scale = exactScale
	}

	// Each position of f2 may only go to a position of f1 with the same domain.
	cands := make([]posMask, N)
	{
		var matched posMask
		for p := 0; p < N; p++ {
			d2 := f2.Arg(p).Domain()
			for q := 0; q < N; q++ {
				if !matched.Has(q) && f1.Arg(q).Domain().SameAs(d2) {
					matched |= maskOf(q)
					break
				}
			}
			for q := 0; q < N; q++ {
				if f1.Arg(q).Domain().SameAs(d2) {
					cands[p] |= maskOf(q)
				}
			}
		}
		if matched != allPositions(N) {
			return Match{}, false, nil
		}
	}

	depth := opts.searchDepth()
	for bi, key := range bt2.Order {
		if bi >= depth {
			break
		}
		b2 := bt2.ByKey[key]
		b1 := bt1.ByKey[key]
		if b1 == nil || len(b1.Values) != len(b2.Values) {
			return Match{}, false, nil
		}

		if opts.UseAlpha && !probe.scale.fixScale(b1, b2) {
			klog.V(3).Infof("%v vs %v: inconsistent alpha in bucket %v", f1, f2, key)
			return Match{}, false, nil
		}

		if !probe.scale.sameValues(b1.sorted, b2.sorted) {
			return Match{}, false, nil
		}

		if b2.IsConstant() {
			continue
		}

		if !probe.narrow(cands, b1, b2) {
			klog.V(3).Infof("%v vs %v: no candidate swaps after bucket %v", f1, f2, key)
			return Match{}, false, nil
		}
	}

	if opts.UseAlpha && !probe.scale.fixed {
		probe.scale.fixFromTables(f1, f2)
	}

	// Most constrained positions first
	order := make([]int, N)
	for p := range order {
		order[p] = p
	}
	sort.SliceStable(order, func(i, j int) bool {
		return cands[order[i]].Count() < cands[order[j]].Count()
	})

	perm := make([]int, N)
	Fp, err := probe.search(cands, order, 0, perm, 0)
	if err != nil || Fp == nil {
		return Match{}, false, err
	}
	metrics.exchangeHits.Inc()

	m := Match{
		Perm:  perm,
		Alpha: probe.scale.ratio(),
	}
	if !m.IsIdentity() {
		f2.AssignFrom(Fp)
		cache.Invalidate(f2)
	}
	klog.V(3).Infof("%v matches %v: perm %v alpha %v", f2, f1, m.Perm, m.Alpha)
	return m, true, nil
}

// exchangeProbe holds the two factors under comparison.  Only scale is altered, and only before the search.
type exchangeProbe struct {
	f1, f2 *libfg.Factor
	scale  scaleFactor
}

// narrow intersects the candidate swaps implied by a pair of matching buckets into cands.
//
// For entry r2 of f2's bucket and every entry r1 of f1's bucket with an equal value, position p of f2 may go to
// any position q where r1[q] == r2[p].  The union over r1 is intersected across the r2 entries.
func (probe *exchangeProbe) narrow(cands []posMask, b1, b2 *Bucket) bool {
	N := len(cands)
	var implied [golift.MaxFactorArity]posMask
	var byValue [golift.MaxDomainSize]posMask

	for i, r2 := range b2.Rows {
		var perEntry [golift.MaxFactorArity]posMask
		for j, r1 := range b1.Rows {
			if !probe.scale.equal(b1.Values[j], b2.Values[i]) {
				continue
			}
			for v := range byValue {
				byValue[v] = 0
			}
			for q, val := range r1 {
				byValue[val] |= maskOf(q)
			}
			for p, val := range r2 {
				perEntry[p] |= byValue[val]
			}
		}
		for p := 0; p < N; p++ {
			if i == 0 {
				implied[p] = perEntry[p]
			} else {
				implied[p] &= perEntry[p]
			}
		}
	}

	for p := 0; p < N; p++ {
		cands[p] &= implied[p]
		if cands[p] == 0 {
			return false
		}
	}
	return true
}

// search assigns a distinct target position to each of order[depth:], recursing in order, and returns the
// verified permuted copy of f2 at the first leaf that matches f1 (or nil if none does).
// perm[order[:depth]] and used hold the partial assignment so far.
func (probe *exchangeProbe) search(cands []posMask, order []int, depth int, perm []int, used posMask) (*libfg.Factor, error) {
	if depth == len(order) {
		return probe.verify(perm)
	}

	p := order[depth]
	free := cands[p] &^ used
	for _, q := range free.Positions() {
		perm[p] = q
		Fp, err := probe.search(cands, order, depth+1, perm, used|maskOf(q))
		if err != nil || Fp != nil {
			return Fp, err
		}
	}
	return nil, nil
}

// verify applies perm to a copy of f2 and compares every entry against f1.
func (probe *exchangeProbe) verify(perm []int) (*libfg.Factor, error) {
	metrics.verifiedLeaves.Inc()

	Fp, err := probe.f2.ApplyPermutation(perm)
	if err != nil {
		return nil, err
	}
	for idx, sz := 0, Fp.TableSize(); idx < sz; idx++ {
		if !probe.scale.equal(probe.f1.PotentialAt(idx), Fp.PotentialAt(idx)) {
			return nil, nil
		}
	}
	return Fp, nil
}

// alphaTolerance is the relative difference under which two scaled potentials are considered equal.
const alphaTolerance = 1e-9

// scaleFactor compares f1 values against f2 values, scaling the smaller side up by alpha >= 1.
type scaleFactor struct {
	fixed   bool
	exact   bool
	alpha   float64
	scaleF2 bool // if set, f1 = alpha * f2; otherwise alpha * f1 = f2
}

var exactScale = scaleFactor{
	fixed: true,
	exact: true,
	alpha: 1,
}

// ratio returns f1 / f2.
func (s *scaleFactor) ratio() float64 {
	if !s.fixed || s.alpha == 0 {
		return 1
	}
	if s.scaleF2 {
		return s.alpha
	}
	return 1 / s.alpha
}

func (s *scaleFactor) set(max1, max2 float64) {
	s.fixed = true
	if max1 >= max2 {
		s.alpha = max1 / max2
		s.scaleF2 = true
	} else {
		s.alpha = max2 / max1
		s.scaleF2 = false
	}
}

// fixScale derives alpha from the max values of two matching buckets, returning false if it contradicts an
// alpha already fixed.  Two all-zero buckets leave alpha open.
func (s *scaleFactor) fixScale(b1, b2 *Bucket) bool {
	max1 := b1.sorted[len(b1.sorted)-1]
	max2 := b2.sorted[len(b2.sorted)-1]
	if max1 == 0 || max2 == 0 {
		return max1 == max2
	}

	trial := scaleFactor{}
	trial.set(max1, max2)
	if !s.fixed {
		*s = trial
		return true
	}
	return approxEqual(s.ratio(), trial.ratio())
}

// fixFromTables fixes alpha from the max entries of both tables (1 if both are all zero).
func (s *scaleFactor) fixFromTables(f1, f2 *libfg.Factor) {
	max1, max2 := 0.0, 0.0
	for idx, sz := 0, f1.TableSize(); idx < sz; idx++ {
		max1 = math.Max(max1, f1.PotentialAt(idx))
		max2 = math.Max(max2, f2.PotentialAt(idx))
	}
	if max1 == 0 || max2 == 0 {
		s.fixed = true
		s.alpha = 1
		s.scaleF2 = true
		return
	}
	s.set(max1, max2)
}

// equal compares a value of f1 with a value of f2.
func (s *scaleFactor) equal(v1, v2 float64) bool {
	if s.exact {
		return v1 == v2
	}
	if s.scaleF2 {
		v2 *= s.alpha
	} else {
		v1 *= s.alpha
	}
	return approxEqual(v1, v2)
}

// sameValues compares two ascending value lists of equal length.
func (s *scaleFactor) sameValues(vals1, vals2 []float64) bool {
	if len(vals1) != len(vals2) {
		return false
	}
	for i := range vals1 {
		if !s.equal(vals1[i], vals2[i]) {
			return false
		}
	}
	return true
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= alphaTolerance*math.Max(math.Abs(a), math.Abs(b))
}
