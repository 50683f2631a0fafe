package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/liblift"
	"github.com/2x3systems/golift/liblift/catalog"
	"github.com/2x3systems/golift/libfg"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"github.com/spf13/cobra"
)

type liftFlags struct {
	configPath  string
	catalogPath string
	useAlpha    bool
	searchDepth int
	workers     int
}

func liftCmd() *cobra.Command {
	var flags liftFlags

	cmd := &cobra.Command{
		Use:   "lift <graph-file>...",
		Short: "Colour pass each given factor graph and print its colour classes",
		Long: `Each file holds one factor graph, for example:

    domain Colour = { red, green, blue }
    var A, B
    var X : Colour = red
    factor f(A, B) = [1, 2, 3, 4]
    factor g(B, X) { (true, red): 1, (true, green): 2, (true, blue): 3, (false, red): 4, ... }

Repeated graphs are only coloured once.  With a catalog, graphs coloured by an earlier run
under the same settings are read back instead of recoloured.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("alpha") {
				cfg.Engine.UseAlpha = flags.useAlpha
			}
			if cmd.Flags().Changed("depth") {
				cfg.Engine.SearchDepth = flags.searchDepth
			}
			if cmd.Flags().Changed("workers") {
				cfg.Engine.Workers = flags.workers
			}
			if cmd.Flags().Changed("catalog") {
				cfg.Catalog.Path = flags.catalogPath
			}
			if err = cfg.Validate(); err != nil {
				return err
			}

			lifter := &graphLifter{
				opts: cfg.ColourPassOpts(),
				out:  cmd.OutOrStdout(),
			}
			if lifter.seen, err = catalog.NewGraphSet(); err != nil {
				return err
			}
			defer lifter.seen.Close()

			if catOpts, hasCatalog := cfg.CatalogOpts(); hasCatalog {
				catCtx := golift.NewCatalogContext()
				defer func() {
					catCtx.Close()
					<-catCtx.Done()
				}()
				if lifter.cat, err = catalog.OpenCatalog(catCtx, catOpts); err != nil {
					return err
				}
			}

			for _, pathname := range args {
				if err = lifter.liftFile(cmd.Context(), pathname); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "config file path (YAML)")
	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "catalog db directory")
	cmd.Flags().BoolVar(&flags.useAlpha, "alpha", false, "group factors that match up to a positive scalar")
	cmd.Flags().IntVar(&flags.searchDepth, "depth", golift.DefaultSearchDepth, "buckets used to prune argument swaps (-1 = all)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "per-factor preprocessing workers (0 = one per CPU)")

	return cmd
}

type graphLifter struct {
	opts liblift.ColourPassOpts
	seen catalog.GraphSet
	cat  golift.Catalog
	out  io.Writer
}

func (lifter *graphLifter) liftFile(ctx context.Context, pathname string) error {
	graphExpr, err := os.ReadFile(pathname)
	if err != nil {
		return err
	}
	fg, err := libfg.ParseFactorGraph(string(graphExpr))
	if err != nil {
		return errors.Wrapf(err, "%s", pathname)
	}

	graphID := fg.Fingerprint()
	added, err := lifter.seen.TryAdd(graphID)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(lifter.out, "%s: repeats an earlier graph (%v)\n", pathname, graphID)
		return nil
	}

	rec, cached, err := lifter.lookup(graphID)
	if err != nil {
		return err
	}
	if !cached {
		lift, err := liblift.ColourPass(ctx, fg, lifter.opts)
		if err != nil {
			return errors.Wrapf(err, "%s", pathname)
		}
		rec = lift.ToRecord()
		if lifter.cat != nil && !lifter.cat.IsReadOnly() {
			if err = lifter.cat.Store(graphID, rec); err != nil {
				return err
			}
		}
	}

	source := "coloured"
	if cached {
		source = "from catalog"
	}
	fmt.Fprintf(lifter.out, "%s: %d variables in %d classes, %d factors in %d classes, %d passes (%s)\n",
		pathname, fg.NumVars(), rec.NumVarGroups(), fg.NumFactors(), rec.NumFactorGroups(), rec.Passes, source)

	varName := func(i int) string { return fg.Var(libfg.VarID(i)).Name() }
	factorName := func(i int) string { return fg.Factor(libfg.FactorID(i)).Name() }
	for _, names := range colourClasses(rec.VarColours, varName) {
		fmt.Fprintf(lifter.out, "    vars    {%s}\n", strings.Join(names, ", "))
	}
	for _, names := range colourClasses(rec.FactorColours, factorName) {
		fmt.Fprintf(lifter.out, "    factors {%s}\n", strings.Join(names, ", "))
	}
	return nil
}

// lookup returns the catalog's record for graphID if it was coloured under the current settings.
func (lifter *graphLifter) lookup(graphID golift.GraphID) (*golift.LiftRecord, bool, error) {
	if lifter.cat == nil {
		return nil, false, nil
	}
	rec, err := lifter.cat.Lookup(graphID)
	if errors.Is(err, golift.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	depth := lifter.opts.ResolvedSearchDepth()
	if rec.UseAlpha != lifter.opts.UseAlpha || int(rec.SearchDepth) != depth {
		klog.V(1).Infof("catalog entry for %v was coloured with alpha=%v depth=%d; recolouring", graphID, rec.UseAlpha, rec.SearchDepth)
		return nil, false, nil
	}
	return rec, true, nil
}

// colourClasses returns the names of each colour class in ascending colour order.
func colourClasses(colours []golift.Colour, nameOf func(i int) string) [][]string {
	classes := treemap.NewWithIntComparator()
	for i, c := range colours {
		var names []string
		if prev, found := classes.Get(int(c)); found {
			names = prev.([]string)
		}
		classes.Put(int(c), append(names, nameOf(i)))
	}

	out := make([][]string, 0, classes.Size())
	for _, names := range classes.Values() {
		out = append(out, names.([]string))
	}
	return out
}
