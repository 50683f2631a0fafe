package liblift

import (
	"math/bits"

	"github.com/emirpasic/gods/sets/treeset"
)

// posMask is a set of factor argument positions, bit i set for position i.
type posMask uint32

func maskOf(positions ...int) posMask {
	var m posMask
	for _, pos := range positions {
		m |= 1 << uint(pos)
	}
	return m
}

// allPositions returns the set {0 .. N-1}.
func allPositions(N int) posMask {
	return posMask(uint64(1)<<uint(N) - 1)
}

func (m posMask) Has(pos int) bool {
	return m&(1<<uint(pos)) != 0
}

func (m posMask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// Positions returns the members of this set in ascending order.
func (m posMask) Positions() []int {
	positions := make([]int, 0, m.Count())
	for m != 0 {
		pos := bits.TrailingZeros32(uint32(m))
		positions = append(positions, pos)
		m &^= 1 << uint(pos)
	}
	return positions
}

// largestFirst orders position sets by descending size, then ascending by lowest positions.
func largestFirst(a, b interface{}) int {
	A := a.(posMask)
	B := b.(posMask)
	if d := B.Count() - A.Count(); d != 0 {
		return d
	}
	switch {
	case bits.Reverse32(uint32(A)) > bits.Reverse32(uint32(B)):
		return -1
	case A == B:
		return 0
	default:
		return 1
	}
}

// maskSet is an ordered, duplicate-free collection of position sets, largest set first.
type maskSet struct {
	*treeset.Set
}

func newMaskSet(masks ...posMask) maskSet {
	set := maskSet{treeset.NewWith(largestFirst)}
	for _, m := range masks {
		set.Add(m)
	}
	return set
}

// Masks returns the members of this collection, largest first.
func (set maskSet) Masks() []posMask {
	vals := set.Values()
	masks := make([]posMask, len(vals))
	for i, v := range vals {
		masks[i] = v.(posMask)
	}
	return masks
}

// AddMaximal adds m unless it is a subset of a member, removing any members that are a subset of m.
func (set maskSet) AddMaximal(m posMask) {
	for _, other := range set.Masks() {
		if m&other == m {
			return
		}
		if m&other == other {
			set.Remove(other)
		}
	}
	set.Add(m)
}
