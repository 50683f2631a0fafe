package liblift_test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/liblift"
	"github.com/2x3systems/golift/libfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colourPass(t *testing.T, graphExpr string, opts liblift.ColourPassOpts) *liblift.Lifting {
	t.Helper()
	lift, err := liblift.ColourPass(context.Background(), mustParse(t, graphExpr), opts)
	require.NoError(t, err)
	checkColourRanges(t, lift)
	return lift
}

// checkColourRanges checks variable colours are in [1, NumVars] and factor colours lie above them.
func checkColourRanges(t *testing.T, lift *liblift.Lifting) {
	t.Helper()
	Nv := golift.Colour(lift.Graph.NumVars())
	for _, c := range lift.VarColours {
		require.True(t, c >= 1 && c <= Nv, "var colour %d", c)
	}
	for _, c := range lift.FactorColours {
		require.True(t, c > Nv, "factor colour %d", c)
	}
}

const scenarioA = `
	var A, B, C
	factor f1(A, B) { TT: 1, TF: 2, FT: 3, FF: 4 }
	factor f2(C, B) { TT: 1, TF: 2, FT: 3, FF: 4 }
`

func TestScenarioA(t *testing.T) {
	for _, useAlpha := range []bool{false, true} {
		lift := colourPass(t, scenarioA, liblift.ColourPassOpts{UseAlpha: useAlpha})

		assert.True(t, lift.SameFactorColour("f1", "f2"))
		assert.True(t, lift.SameVarColour("A", "C"))
		assert.False(t, lift.SameVarColour("A", "B"))

		assert.Equal(t, [][]libfg.VarID{{0, 2}, {1}}, lift.VarGroups())
		assert.Equal(t, [][]libfg.FactorID{{0, 1}}, lift.FactorGroups())
		assert.Equal(t, []float64{1, 1}, lift.Alphas)

		rec := lift.ToRecord()
		assert.Equal(t, 2, rec.NumVarGroups())
		assert.Equal(t, 1, rec.NumFactorGroups())
		assert.Equal(t, useAlpha, rec.UseAlpha)
		assert.Equal(t, int32(golift.DefaultSearchDepth), rec.SearchDepth)
	}
}

const scenarioB = `
	var A, B, C
	factor f1(A, B) = [1, 2, 3, 4]
	factor f2(C, B) = [2, 4, 6, 8]
`

func TestScenarioB(t *testing.T) {
	lift := colourPass(t, scenarioB, liblift.ColourPassOpts{UseAlpha: false})
	assert.False(t, lift.SameFactorColour("f1", "f2"))
	assert.False(t, lift.SameVarColour("A", "C"))

	lift = colourPass(t, scenarioB, liblift.ColourPassOpts{UseAlpha: true})
	assert.True(t, lift.SameFactorColour("f1", "f2"))
	assert.True(t, lift.SameVarColour("A", "C"))
	assert.False(t, lift.SameVarColour("A", "B"))
	assert.InEpsilon(t, 2.0, lift.Alphas[1], 1e-9)
}

func TestScenarioC(t *testing.T) {
	fg := mustParse(t, `
		var A, B
		factor sym(A, B) { TT: 1, TF: 2, FT: 2, FF: 3 }
		factor asym(A, B) { TT: 1, TF: 2, FT: 3, FF: 4 }
	`)
	cache := liblift.NewBucketCache()

	args, err := liblift.CommutativeArguments(fg.FactorByName("sym"), cache)
	require.NoError(t, err)
	assert.Equal(t, []libfg.VarID{fg.VarByName("A").ID(), fg.VarByName("B").ID()}, args)

	args, err = liblift.CommutativeArguments(fg.FactorByName("asym"), cache)
	require.NoError(t, err)
	assert.Empty(t, args)
}

// f3 is f1 with its arguments swapped, scaled by 2; f2 is symmetric.
const scenarioD = `
	var A, B, C, D
	factor f1(A, B) = [1, 2, 3, 4]
	factor f2(B, C) = [5, 6, 6, 7]
	factor f3(C, D) = [2, 6, 4, 8]
`

func TestScenarioD(t *testing.T) {
	lift := colourPass(t, scenarioD, liblift.ColourPassOpts{UseAlpha: true})
	fg := lift.Graph

	// The chain reads the same from either end
	assert.Equal(t, [][]libfg.VarID{{0, 3}, {1, 2}}, lift.VarGroups())
	assert.Equal(t, [][]libfg.FactorID{{0, 2}, {1}}, lift.FactorGroups())
	assert.Equal(t, "f3(D, C)", fg.FactorByName("f3").String())
	assert.Equal(t, []float64{2, 4, 6, 8}, fg.FactorByName("f3").Table())
	assert.InEpsilon(t, 2.0, lift.Alphas[2], 1e-9)

	args, err := lift.CommutativeArgs(fg.FactorByName("f2").ID())
	require.NoError(t, err)
	assert.Equal(t, []libfg.VarID{1, 2}, args)

	// Without alpha f3 stands alone and nothing pairs up
	lift = colourPass(t, scenarioD, liblift.ColourPassOpts{UseAlpha: false})
	assert.Equal(t, [][]libfg.VarID{{0}, {1}, {2}, {3}}, lift.VarGroups())
	assert.Equal(t, [][]libfg.FactorID{{0}, {1}, {2}}, lift.FactorGroups())
	assert.Equal(t, "f3(C, D)", lift.Graph.FactorByName("f3").String())
}

func TestEvidence(t *testing.T) {
	lift := colourPass(t, `
		var A, B, C
		var E = true
		var F = true
		var G = false
		factor f1(A, E) = [1, 2, 3, 4]
		factor f2(B, F) = [1, 2, 3, 4]
		factor f3(C, G) = [1, 2, 3, 4]
	`, liblift.ColourPassOpts{})

	assert.True(t, lift.SameFactorColour("f1", "f2"))
	assert.False(t, lift.SameFactorColour("f1", "f3"))
	assert.True(t, lift.SameVarColour("A", "B"))
	assert.True(t, lift.SameVarColour("E", "F"))
	assert.False(t, lift.SameVarColour("A", "C"))
	assert.False(t, lift.SameVarColour("A", "E"))
	assert.False(t, lift.SameVarColour("F", "G"))
}

func TestEvidencePinsColour(t *testing.T) {
	// E and F sit in unrelated factors but share their evidence
	lift := colourPass(t, `
		var A, B
		var E = true
		var F = true
		factor f1(A, E) = [1, 2, 3, 4]
		factor f2(B, F) = [5, 6, 7, 9]
	`, liblift.ColourPassOpts{})

	assert.True(t, lift.SameVarColour("E", "F"))
	assert.False(t, lift.SameFactorColour("f1", "f2"))
	assert.False(t, lift.SameVarColour("A", "B"))
	assert.False(t, lift.SameVarColour("A", "E"))
}

func TestCommutativePositionsIgnored(t *testing.T) {
	// A and B are bound to the symmetric factor in different positions yet stay together
	lift := colourPass(t, `
		var A, B, C, D
		factor s1(A, B) = [5, 6, 6, 7]
		factor s2(C, D) = [5, 6, 6, 7]
	`, liblift.ColourPassOpts{})

	assert.True(t, lift.SameFactorColour("s1", "s2"))
	assert.Equal(t, [][]libfg.VarID{{0, 1, 2, 3}}, lift.VarGroups())
}

func TestFactorKeyKeepsArgumentOrder(t *testing.T) {
	// f1 sees (A, B) and f2 sees (C, D), whose colours come in the opposite order
	lift := colourPass(t, `
		var A, B, C, D
		factor f1(A, B) = [5, 6, 6, 7]
		factor f2(C, D) = [5, 6, 6, 7]
		factor g1(A) = [1, 2]
		factor g2(B) = [3, 4]
		factor g3(C) = [3, 4]
		factor g4(D) = [1, 2]
	`, liblift.ColourPassOpts{})

	assert.False(t, lift.SameFactorColour("f1", "f2"))
	assert.False(t, lift.SameVarColour("A", "B"))
	assert.False(t, lift.SameVarColour("A", "D"))

	args, err := lift.CommutativeArgs(lift.Graph.FactorByName("f1").ID())
	require.NoError(t, err)
	assert.Equal(t, []libfg.VarID{0, 1}, args)
}

// randomGraph returns a graph of Nv variables and Nf pairwise factors drawn from a few related tables.
func randomGraph(rng *rand.Rand, Nv, Nf int) string {
	tables := []string{
		"[1, 2, 3, 4]",
		"[1, 3, 2, 4]", // swapped args
		"[2, 4, 6, 8]", // scaled
		"[5, 6, 6, 7]", // symmetric
	}

	b := strings.Builder{}
	for vi := 0; vi < Nv; vi++ {
		fmt.Fprintf(&b, "var V%d", vi)
		if rng.Intn(6) == 0 {
			b.WriteString(" = false")
		}
		b.WriteByte('\n')
	}
	for fi := 0; fi < Nf; fi++ {
		v1 := rng.Intn(Nv)
		v2 := (v1 + 1 + rng.Intn(Nv-1)) % Nv
		fmt.Fprintf(&b, "factor f%d(V%d, V%d) = %s\n", fi, v1, v2, tables[rng.Intn(len(tables))])
	}
	return b.String()
}

func TestMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(77))

	for trial := 0; trial < 10; trial++ {
		graphExpr := randomGraph(rng, 12, 16)

		var passes [][]golift.Colour
		var factorPasses [][]golift.Colour
		lift := colourPass(t, graphExpr, liblift.ColourPassOpts{
			UseAlpha: trial%2 == 0,
			Workers:  3,
			OnPass: func(pass int, varColours, factorColours []golift.Colour) {
				require.Equal(t, len(passes)+1, pass)
				passes = append(passes, varColours)
				factorPasses = append(factorPasses, factorColours)
			},
		})
		require.Equal(t, lift.Passes, len(passes))
		assert.Equal(t, lift.VarColours, passes[len(passes)-1])

		// Each class of pass k+1 lies within one class of pass k
		for k := 1; k < len(passes); k++ {
			checkRefines(t, passes[k-1], passes[k])
			checkRefines(t, factorPasses[k-1], factorPasses[k])
		}
	}
}

func checkRefines(t *testing.T, coarse, fine []golift.Colour) {
	t.Helper()
	parent := make(map[golift.Colour]golift.Colour)
	for i, c := range fine {
		if prev, exists := parent[c]; exists {
			require.Equal(t, prev, coarse[i], "class %d merges", c)
		} else {
			parent[c] = coarse[i]
		}
	}
}

func TestIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	for _, graphExpr := range []string{scenarioA, scenarioD, randomGraph(rng, 10, 12), randomGraph(rng, 20, 30)} {
		for _, useAlpha := range []bool{false, true} {
			fg := mustParse(t, graphExpr)
			opts := liblift.ColourPassOpts{UseAlpha: useAlpha}
			lift, err := liblift.ColourPass(context.Background(), fg, opts)
			require.NoError(t, err)

			again, err := liblift.Recolour(context.Background(), fg, lift, opts)
			require.NoError(t, err)
			assert.Equal(t, 1, again.Passes)
			assert.Equal(t, lift.VarColours, again.VarColours)
			assert.Equal(t, lift.FactorColours, again.FactorColours)
		}
	}
}

func TestColourPassErrors(t *testing.T) {
	_, err := liblift.ColourPass(context.Background(), nil, liblift.ColourPassOpts{})
	assert.ErrorIs(t, err, golift.ErrNilGraph)

	fg := libfg.NewFactorGraph()
	_, err = fg.AddVariable("A", nil, "")
	require.NoError(t, err)
	_, err = fg.AddFactor("f", []string{"A"}, []float64{1, 2})
	require.NoError(t, err)
	_, err = liblift.ColourPass(context.Background(), fg, liblift.ColourPassOpts{})
	assert.ErrorIs(t, err, golift.ErrMissingEdge)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = liblift.ColourPass(ctx, mustParse(t, scenarioA), liblift.ColourPassOpts{})
	assert.ErrorIs(t, err, context.Canceled)

	lift := colourPass(t, scenarioA, liblift.ColourPassOpts{})
	_, err = liblift.Recolour(context.Background(), mustParse(t, scenarioD), lift, liblift.ColourPassOpts{})
	assert.ErrorIs(t, err, golift.ErrBadAssignment)

	// A table left incomplete after colouring fails the next refinement
	f1 := lift.Graph.FactorByName("f1")
	partial, err := libfg.NewFactor("f1", f1.Args())
	require.NoError(t, err)
	require.NoError(t, partial.SetPotential(libfg.Assignment{libfg.True, libfg.True}, 1))
	f1.AssignFrom(partial)
	lift.Commutative.Invalidate(f1)
	_, err = liblift.Recolour(context.Background(), lift.Graph, lift, liblift.ColourPassOpts{})
	assert.ErrorIs(t, err, golift.ErrIncompletePotential)
}

func TestEmptyGraph(t *testing.T) {
	lift, err := liblift.ColourPass(context.Background(), libfg.NewFactorGraph(), liblift.ColourPassOpts{})
	require.NoError(t, err)
	assert.Empty(t, lift.VarGroups())
	assert.Empty(t, lift.FactorGroups())
	assert.Equal(t, 1, lift.Passes)
}
