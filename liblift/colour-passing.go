package liblift

import (
	"context"
	"runtime"
	"time"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/libfg"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"golang.org/x/sync/errgroup"
)

// ColourPassOpts tunes a colour passing run.
type ColourPassOpts struct {

	// UseAlpha groups factors exchangeable up to a positive scalar.
	UseAlpha bool

	// SearchDepth is passed to Exchange (see ExchangeOpts).
	SearchDepth int

	// Workers bounds how many factors have their bucket tables and commutative sets built concurrently.
	// Zero means GOMAXPROCS.
	Workers int

	// OnPass, if set, is called after every refinement pass with that pass's colour maps.
	// The slices are copies and may be retained.
	OnPass func(pass int, varColours, factorColours []golift.Colour)
}

func (opts *ColourPassOpts) exchangeOpts() ExchangeOpts {
	return ExchangeOpts{
		UseAlpha:    opts.UseAlpha,
		SearchDepth: opts.SearchDepth,
	}
}

// ResolvedSearchDepth returns the bucket search depth a run under opts uses, as stored in Lifting.SearchDepth.
func (opts *ColourPassOpts) ResolvedSearchDepth() int {
	return opts.exchangeOpts().searchDepth()
}

func (opts *ColourPassOpts) workers() int {
	if opts.Workers > 0 {
		return opts.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ColourPass partitions fg's variables and factors into colour classes of indistinguishable nodes.
//
// Factors are first grouped by exchangeability, which may rewrite a factor's argument order and table to match
// its group's representative.  Colours are then refined from neighbourhood signatures until no class splits.
// Cancelling ctx stops the run between passes and returns ctx's error.
func ColourPass(ctx context.Context, fg *libfg.FactorGraph, opts ColourPassOpts) (*Lifting, error) {
	if fg == nil {
		return nil, golift.ErrNilGraph
	}
	if err := fg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	buckets := NewBucketCache()
	lift := &Lifting{
		Graph:       fg,
		UseAlpha:    opts.UseAlpha,
		SearchDepth: opts.ResolvedSearchDepth(),
		Buckets:     buckets,
		Commutative: NewCommutativeCache(buckets),
	}

	err := forEachFactor(ctx, fg, opts.workers(), func(f *libfg.Factor) error {
		if _, err := buckets.Get(f, false); err != nil {
			return err
		}
		_, err := buckets.Get(f, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	lift.initVarColours()
	if err = lift.initFactorColours(opts.exchangeOpts()); err != nil {
		return nil, err
	}
	klog.V(2).Infof("colour passing %d vars, %d factors: %d initial factor groups",
		fg.NumVars(), fg.NumFactors(), countColours(lift.FactorColours))

	if err = lift.refine(ctx, &opts); err != nil {
		return nil, err
	}

	metrics.colourPassDuration.Observe(time.Since(start).Seconds())
	return lift, nil
}

// Recolour runs refinement passes starting from the colour maps of a previous run over the same graph.
// A stable Lifting reproduces identical colour maps in a single pass.
func Recolour(ctx context.Context, fg *libfg.FactorGraph, prev *Lifting, opts ColourPassOpts) (*Lifting, error) {
	if fg == nil {
		return nil, golift.ErrNilGraph
	}
	if prev == nil || len(prev.VarColours) != fg.NumVars() || len(prev.FactorColours) != fg.NumFactors() {
		return nil, errors.Wrap(golift.ErrBadAssignment, "colour maps do not match graph")
	}

	lift := &Lifting{
		Graph:         fg,
		UseAlpha:      prev.UseAlpha,
		SearchDepth:   prev.SearchDepth,
		VarColours:    append([]golift.Colour(nil), prev.VarColours...),
		FactorColours: append([]golift.Colour(nil), prev.FactorColours...),
		Alphas:        append([]float64(nil), prev.Alphas...),
		Buckets:       prev.Buckets,
		Commutative:   prev.Commutative,
	}
	if lift.Buckets == nil {
		lift.Buckets = NewBucketCache()
	}
	if lift.Commutative == nil {
		lift.Commutative = NewCommutativeCache(lift.Buckets)
	}

	if err := lift.refine(ctx, &opts); err != nil {
		return nil, err
	}
	return lift, nil
}

// forEachFactor calls fn for every factor of fg, at most workers at a time.
func forEachFactor(ctx context.Context, fg *libfg.FactorGraph, workers int, fn func(f *libfg.Factor) error) error {
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for _, f := range fg.Factors() {
		f := f
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			return fn(f)
		})
	}
	return grp.Wait()
}

// initVarColours colours variables by domain and evidence.
func (lift *Lifting) initVarColours() {
	fg := lift.Graph
	kb := colourKeyer{}
	alloc := newColourAllocator(1, fg.NumVars())

	lift.VarColours = make([]golift.Colour, fg.NumVars())
	for _, rv := range fg.Vars() {
		lift.VarColours[rv.ID()] = alloc.colourOf(kb.varInitKey(rv))
	}
}

// factorGroup is a set of mutually exchangeable factors, all rewritten to the layout of rep.
type factorGroup struct {
	rep    *libfg.Factor
	colour golift.Colour
}

// initFactorColours matches each factor, in insertion order, against the representative of each group with the
// same argument domains.  The first match joins that group; otherwise the factor founds a new one.
func (lift *Lifting) initFactorColours(opts ExchangeOpts) error {
	fg := lift.Graph
	kb := colourKeyer{}
	next := lift.factorColourBase()

	lift.FactorColours = make([]golift.Colour, fg.NumFactors())
	lift.Alphas = make([]float64, fg.NumFactors())
	groupsByDomains := make(map[string][]*factorGroup)

	for _, f := range fg.Factors() {
		domainsKey := kb.factorDomainsKey(f)
		var found *factorGroup
		alpha := 1.0
		for _, grp := range groupsByDomains[domainsKey] {
			m, ok, err := Exchange(grp.rep, f, lift.Buckets, opts)
			if err != nil {
				return errors.Wrapf(err, "matching factor %q", f.Name())
			}
			if ok {
				found = grp
				alpha = 1 / m.Alpha
				break
			}
		}

		if found == nil {
			found = &factorGroup{
				rep:    f,
				colour: next,
			}
			next++
			groupsByDomains[domainsKey] = append(groupsByDomains[domainsKey], found)
		} else {
			klog.V(2).Infof("factor %v joins group of %v (alpha %v)", f, found.rep, alpha)
		}
		lift.FactorColours[f.ID()] = found.colour
		lift.Alphas[f.ID()] = alpha
	}
	return nil
}

// factorColourBase is the lowest factor colour, above every possible variable colour.
func (lift *Lifting) factorColourBase() golift.Colour {
	return golift.Colour(lift.Graph.NumVars() + 1)
}

// refine runs passes until a pass splits no class.
func (lift *Lifting) refine(ctx context.Context, opts *ColourPassOpts) error {
	fg := lift.Graph

	// Commutative sets are taken after any exchange has rewritten factor layouts
	err := forEachFactor(ctx, fg, opts.workers(), func(f *libfg.Factor) error {
		_, err := lift.Commutative.positions(f)
		return err
	})
	if err != nil {
		return err
	}

	commutative := make([]posMask, fg.NumFactors())
	for _, f := range fg.Factors() {
		if commutative[f.ID()], err = lift.Commutative.positions(f); err != nil {
			return err
		}
	}

	maxPasses := fg.NumVars() + fg.NumFactors() + 1
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pass > maxPasses {
			return errors.Errorf("colour passing did not converge in %d passes", maxPasses)
		}

		factorsSplit := lift.refineFactors()
		varsSplit := lift.refineVars(commutative)
		lift.Passes = pass
		metrics.colourPasses.Inc()

		klog.V(2).Infof("pass %d: %d var colours, %d factor colours",
			pass, countColours(lift.VarColours), countColours(lift.FactorColours))

		if opts.OnPass != nil {
			opts.OnPass(pass,
				append([]golift.Colour(nil), lift.VarColours...),
				append([]golift.Colour(nil), lift.FactorColours...))
		}

		if !factorsSplit && !varsSplit {
			return nil
		}
	}
}

// refineFactors recolours factors by their arguments' colours and returns true if any class split.
func (lift *Lifting) refineFactors() bool {
	fg := lift.Graph
	kb := colourKeyer{}
	alloc := newColourAllocator(lift.factorColourBase(), fg.NumFactors())
	before := countColours(lift.FactorColours)

	colours := make([]golift.Colour, fg.NumFactors())
	for _, f := range fg.Factors() {
		fi := f.ID()
		colours[fi] = alloc.colourOf(kb.factorSignature(f, lift.VarColours, lift.FactorColours[fi]))
	}
	lift.FactorColours = colours
	return alloc.NumColours() > before
}

// refineVars recolours unobserved variables by their incident factors and returns true if any class split.
func (lift *Lifting) refineVars(commutative []posMask) bool {
	fg := lift.Graph
	kb := colourKeyer{}
	alloc := newColourAllocator(1, fg.NumVars())
	before := countColours(lift.VarColours)

	colours := make([]golift.Colour, fg.NumVars())
	var incs []incidence
	for _, rv := range fg.Vars() {
		// Evidence pins a variable to its initial class
		if _, observed := rv.Observed(); observed {
			colours[rv.ID()] = alloc.colourOf(kb.varInitKey(rv))
			continue
		}
		incs = incs[:0]
		for _, fi := range fg.FactorsOf(rv.ID()) {
			pos := fg.Factor(fi).PositionOf(rv.ID())
			inc := incidence{
				colour: lift.FactorColours[fi],
			}
			if !commutative[fi].Has(pos) {
				inc.pos = pos + 1
			}
			incs = append(incs, inc)
		}
		colours[rv.ID()] = alloc.colourOf(kb.varSignature(incs, lift.VarColours[rv.ID()]))
	}
	lift.VarColours = colours
	return alloc.NumColours() > before
}

func countColours(colours []golift.Colour) int {
	seen := make(map[golift.Colour]struct{}, len(colours))
	for _, c := range colours {
		seen[c] = struct{}{}
	}
	return len(seen)
}
