package liblift_test

import (
	"math/rand"
	"testing"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/liblift"
	"github.com/2x3systems/golift/libfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeGraph = `
	domain Colour = { red, green, blue }
	var A, B, C, D, E, F
	var X : Colour
	var Y : Colour
	factor f1(A, B) = [1, 2, 3, 4]
	factor f2(C, D) = [1, 3, 2, 4]
	factor sym(A, B) = [1, 2, 2, 3]
	factor tri(A, B, C) = [1, 2, 2, 3, 3, 4, 6, 5]
	factor f5(X, A) = [1, 2, 3, 4, 5, 6]
	factor f6(B, Y) = [1, 3, 5, 2, 4, 6]
	factor f7(A, B, C) = [1, 1, 1, 1, 1, 1, 1, 1]
	factor f8(A, X) = [1, 2, 3, 4, 5, 6]
`

// newFactorOver returns a detached factor over the named variables with the given table.
func newFactorOver(t *testing.T, fg *libfg.FactorGraph, name string, table []float64, argNames ...string) *libfg.Factor {
	t.Helper()
	args := make([]*libfg.RandomVariable, len(argNames))
	for i, argName := range argNames {
		args[i] = fg.VarByName(argName)
		require.NotNil(t, args[i], argName)
	}
	f, err := libfg.NewFactor(name, args)
	require.NoError(t, err)
	require.NoError(t, f.SetTable(table))
	return f
}

func scaled(table []float64, k float64) []float64 {
	out := make([]float64, len(table))
	for i, w := range table {
		out[i] = k * w
	}
	return out
}

func TestReflexivity(t *testing.T) {
	fg := mustParse(t, exchangeGraph)
	cache := liblift.NewBucketCache()

	for _, f := range fg.Factors() {
		for _, useAlpha := range []bool{false, true} {
			g := f.MakeCopy()
			ok, err := liblift.IsExchangeable(f, g, cache, useAlpha)
			require.NoError(t, err)
			assert.True(t, ok, "%v alpha=%v", f, useAlpha)
			assert.Equal(t, f.Table(), g.Table(), "%v", f)
		}

		// The same object, too
		m, ok, err := liblift.Exchange(f, f, cache, liblift.ExchangeOpts{})
		require.NoError(t, err)
		assert.True(t, ok, "%v", f)
		assert.Equal(t, 1.0, m.Alpha)
	}
}

func TestSwappedArgs(t *testing.T) {
	fg := mustParse(t, exchangeGraph)
	f1 := fg.FactorByName("f1")
	f2 := fg.FactorByName("f2")

	m, ok, err := liblift.Exchange(f1, f2, liblift.NewBucketCache(), liblift.ExchangeOpts{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 0}, m.Perm)
	assert.False(t, m.IsIdentity())
	assert.Equal(t, "f2(D, C)", f2.String())
	assert.Equal(t, f1.Table(), f2.Table())

	// Mixed domains: only the Colour arguments can map onto each other
	f5 := fg.FactorByName("f5")
	f6 := fg.FactorByName("f6")
	m, ok, err = liblift.Exchange(f5, f6, nil, liblift.ExchangeOpts{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 0}, m.Perm)
	assert.Equal(t, "f6(Y, B)", f6.String())
	assert.Equal(t, f5.Table(), f6.Table())
}

func TestNotExchangeable(t *testing.T) {
	fg := mustParse(t, exchangeGraph)
	cache := liblift.NewBucketCache()

	for _, pair := range [][2]string{
		{"f1", "sym"},  // same buckets keys, different values
		{"f1", "tri"},  // arity
		{"f1", "f5"},   // domains
		{"f5", "f8"},   // same domains, different tables after any swap
		{"tri", "f7"},  // bucket values
		{"sym", "f1"},  // and the other way around
	} {
		f1 := fg.FactorByName(pair[0])
		f2 := fg.FactorByName(pair[1])
		before := f2.MakeCopy()

		ok, err := liblift.IsExchangeable(f1, f2, cache, true)
		require.NoError(t, err)
		assert.False(t, ok, "%v", pair)
		assert.Equal(t, before.Table(), f2.Table(), "%v unmodified", pair)
		assert.Equal(t, before.String(), f2.String(), "%v unmodified", pair)
	}
}

func TestAlphaCorrectness(t *testing.T) {
	fg := mustParse(t, exchangeGraph)

	for _, name := range []string{"f1", "sym", "tri", "f5"} {
		f := fg.FactorByName(name)
		argNames := make([]string, f.NumArgs())
		for i, rv := range f.Args() {
			argNames[i] = rv.Name()
		}

		for _, k := range []float64{2, 0.5, 3.7, 1e-3, 1} {
			cache := liblift.NewBucketCache()

			g := newFactorOver(t, fg, "g", scaled(f.Table(), k), argNames...)
			ok, err := liblift.IsExchangeable(f, g, cache, false)
			require.NoError(t, err)
			assert.Equal(t, k == 1, ok, "%v k=%v without alpha", f, k)

			g = newFactorOver(t, fg, "g", scaled(f.Table(), k), argNames...)
			m, ok, err := liblift.Exchange(f, g, cache, liblift.ExchangeOpts{UseAlpha: true})
			require.NoError(t, err)
			require.True(t, ok, "%v k=%v with alpha", f, k)
			assert.InEpsilon(t, 1/k, m.Alpha, 1e-9)
		}
	}
}

func TestAlphaAllZeroBuckets(t *testing.T) {
	fg := mustParse(t, `
		var A, B, C, D
		factor f1(A, B) = [0, 2, 3, 0]
		factor f2(C, D) = [0, 9, 6, 0]
	`)
	m, ok, err := liblift.Exchange(fg.FactorByName("f1"), fg.FactorByName("f2"), nil, liblift.ExchangeOpts{UseAlpha: true})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 0}, m.Perm)
	assert.InEpsilon(t, 1/3.0, m.Alpha, 1e-9)
}

func TestPermutationRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))

	fg := libfg.NewFactorGraph()
	names := []string{"A", "B", "C", "D", "P", "Q", "R", "S"}
	for _, name := range names {
		_, err := fg.AddVariable(name, nil, "")
		require.NoError(t, err)
	}

	for trial := 0; trial < 40; trial++ {
		table := make([]float64, 16)
		for i := range table {
			table[i] = float64(rng.Intn(4) + 1)
		}
		f1 := newFactorOver(t, fg, "f1", table, "A", "B", "C", "D")

		perm := rng.Perm(4)
		Fp, err := f1.ApplyPermutation(perm)
		require.NoError(t, err)

		useAlpha := trial%2 == 1
		k := 1.0
		if useAlpha {
			k = 0.25 + 4*rng.Float64()
		}
		f2 := newFactorOver(t, fg, "f2", scaled(Fp.Table(), k), "P", "Q", "R", "S")
		orig := f2.MakeCopy()

		for _, depth := range []int{1, 0, -1} {
			trialF2 := orig.MakeCopy()
			m, ok, err := liblift.Exchange(f1, trialF2, liblift.NewBucketCache(), liblift.ExchangeOpts{
				UseAlpha:    useAlpha,
				SearchDepth: depth,
			})
			require.NoError(t, err)
			require.True(t, ok, "trial %d depth %d", trial, depth)

			replayed, err := orig.ApplyPermutation(m.Perm)
			require.NoError(t, err)
			assert.Equal(t, replayed.Table(), trialF2.Table())
			assert.Equal(t, replayed.String(), trialF2.String())
			for idx, w := range f1.Table() {
				assert.InDelta(t, w, m.Alpha*replayed.PotentialAt(idx), 1e-9*w)
			}
		}
	}
}

func TestExchangeIncomplete(t *testing.T) {
	fg := mustParse(t, exchangeGraph)
	f1 := fg.FactorByName("f1")

	partial, err := libfg.NewFactor("partial", []*libfg.RandomVariable{fg.VarByName("A"), fg.VarByName("B")})
	require.NoError(t, err)
	require.NoError(t, partial.SetPotential(libfg.Assignment{libfg.True, libfg.True}, 1))

	_, err = liblift.IsExchangeable(f1, partial, nil, false)
	assert.ErrorIs(t, err, golift.ErrIncompletePotential)
}
