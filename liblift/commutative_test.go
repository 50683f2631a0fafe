package liblift_test

import (
	"testing"

	"github.com/2x3systems/golift/liblift"
	"github.com/2x3systems/golift/libfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commutativeGraph = `
	domain Colour = { red, green, blue }
	var A, B, C, D
	var X : Colour
	var Y : Colour
	factor sym(A, B) = [1, 2, 2, 3]
	factor asym(A, B) = [1, 2, 3, 4]
	factor all3(A, B, C) = [1, 2, 2, 3, 2, 3, 3, 4]
	factor first2(A, B, C) = [1, 2, 3, 4, 3, 4, 5, 6]
	factor last2(A, B, C) = [1, 2, 2, 3, 4, 5, 5, 6]
	factor flat(A, B, C, D) = [1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1]
	factor mixed(X, A) = [1, 1, 1, 1, 1, 1]
	factor colours(X, Y) = [1, 2, 3, 2, 4, 5, 3, 5, 6]
	factor single(A) = [1, 2]
`

func TestCommutativeArguments(t *testing.T) {
	fg := mustParse(t, commutativeGraph)
	cache := liblift.NewBucketCache()

	ids := func(names ...string) []libfg.VarID {
		var out []libfg.VarID
		for _, name := range names {
			out = append(out, fg.VarByName(name).ID())
		}
		return out
	}

	for _, tc := range []struct {
		factor string
		want   []libfg.VarID
	}{
		{"sym", ids("A", "B")},
		{"asym", nil},
		{"all3", ids("A", "B", "C")},
		{"first2", ids("A", "B")},
		{"last2", ids("B", "C")},
		{"flat", ids("A", "B", "C", "D")},
		{"mixed", nil},
		{"colours", ids("X", "Y")},
		{"single", nil},
	} {
		f := fg.FactorByName(tc.factor)
		got, err := liblift.CommutativeArguments(f, cache)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.factor)
		assert.NotEqual(t, 1, len(got), tc.factor)
	}
}

// TestCommutativeSoundness checks that swapping any two returned positions never changes a potential.
func TestCommutativeSoundness(t *testing.T) {
	fg := mustParse(t, commutativeGraph)
	cache := liblift.NewCommutativeCache(liblift.NewBucketCache())

	for _, f := range fg.Factors() {
		args, err := cache.Arguments(f)
		require.NoError(t, err)

		positions := make([]int, len(args))
		for i, vi := range args {
			positions[i] = f.PositionOf(vi)
		}
		cached, err := cache.Positions(f)
		require.NoError(t, err)
		if len(args) == 0 {
			assert.Empty(t, cached)
		} else {
			assert.Equal(t, positions, cached)
		}

		swapped := make(libfg.Assignment, f.NumArgs())
		for _, i := range positions {
			for _, j := range positions {
				f.ForEachAssignment(func(idx int, a libfg.Assignment, w float64) bool {
					copy(swapped, a)
					swapped[i], swapped[j] = a[j], a[i]
					ws, err := f.Potential(swapped)
					require.NoError(t, err)
					require.Equal(t, w, ws, "%v swap %d %d at %v", f, i, j, a)
					return true
				})
			}
		}
	}
}

func TestCommutativeCacheInvalidate(t *testing.T) {
	fg := mustParse(t, commutativeGraph)
	buckets := liblift.NewBucketCache()
	cache := liblift.NewCommutativeCache(buckets)

	f := fg.FactorByName("last2")
	positions, err := cache.Positions(f)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions)

	// Move C to the front: B and C now sit at positions 0 and 2
	moved, err := f.ApplyPermutation([]int{1, 2, 0})
	require.NoError(t, err)
	f.AssignFrom(moved)
	cache.Invalidate(f)

	positions, err = cache.Positions(f)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, positions)
	args, err := cache.Arguments(f)
	require.NoError(t, err)
	assert.Equal(t, []libfg.VarID{fg.VarByName("C").ID(), fg.VarByName("B").ID()}, args)
}
