package liblift

import (
	"github.com/prometheus/client_golang/prometheus"
)

type liftMetrics struct {
	exchangeChecks     prometheus.Counter
	exchangeHits       prometheus.Counter
	verifiedLeaves     prometheus.Counter
	bucketTablesBuilt  prometheus.Counter
	colourPasses       prometheus.Counter
	colourPassDuration prometheus.Summary
}

var metrics liftMetrics

// registry creates and registers metrics with R.
type registry struct {
	R prometheus.Registerer
}

func (mr registry) NewCounter(c prometheus.CounterOpts) prometheus.Counter {
	pm := prometheus.NewCounter(c)
	mr.R.MustRegister(pm)
	return pm
}

func (mr registry) NewSummary(s prometheus.SummaryOpts) prometheus.Summary {
	pm := prometheus.NewSummary(s)
	mr.R.MustRegister(pm)
	return pm
}

func init() {
	mr := registry{R: prometheus.DefaultRegisterer}
	metrics = liftMetrics{
		exchangeChecks: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "golift",
			Subsystem: "deft",
			Name:      "checks_total",
			Help:      `The number of factor pairs tested for exchangeability.`,
		}),
		exchangeHits: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "golift",
			Subsystem: "deft",
			Name:      "matches_total",
			Help:      `The number of factor pairs found exchangeable.`,
		}),
		verifiedLeaves: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "golift",
			Subsystem: "deft",
			Name:      "verified_permutations_total",
			Help: `The number of complete argument permutations verified against a full table.

A high rate relative to checks_total means bucket pruning leaves many candidate swaps open;
raising the search depth trades bucket work for fewer verifications.
`,
		}),
		bucketTablesBuilt: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "golift",
			Subsystem: "buckets",
			Name:      "tables_built_total",
			Help:      `The number of factor bucket tables built (cache misses).`,
		}),
		colourPasses: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "golift",
			Subsystem: "colour",
			Name:      "passes_total",
			Help:      `The number of colour refinement passes run.`,
		}),
		colourPassDuration: mr.NewSummary(prometheus.SummaryOpts{
			Namespace:  "golift",
			Subsystem:  "colour",
			Name:       "run_duration_seconds",
			Help:       `The time it takes to colour a factor graph, from bucket building to the stable pass.`,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
}
