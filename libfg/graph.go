package libfg

import (
	"github.com/2x3systems/golift/golift"
	"github.com/pkg/errors"
)

// FactorGraph is a bipartite incidence structure of random variables and factors.
//
// Variables and factors live in insertion-ordered arenas addressed by VarID and FactorID.
// Incidence is kept as index lists in both directions, so no object holds a back-pointer to its owner.
// A FactorGraph is built up before colour passing and is not restructured by it.
type FactorGraph struct {
	vars          []*RandomVariable
	factors       []*Factor
	varsByName    map[string]VarID
	factorsByName map[string]FactorID
	varFactors    [][]FactorID // factors incident to each variable, in edge insertion order
	factorVars    [][]VarID    // variables incident to each factor, in edge insertion order
	edges         map[edgeKey]struct{}
}

type edgeKey struct {
	v VarID
	f FactorID
}

func NewFactorGraph() *FactorGraph {
	return &FactorGraph{
		varsByName:    make(map[string]VarID),
		factorsByName: make(map[string]FactorID),
		edges:         make(map[edgeKey]struct{}),
	}
}

// AddVariable adds a variable with the given domain (nil for Boolean) and optional evidence label.
func (fg *FactorGraph) AddVariable(name string, domain *Domain, evidence string) (*RandomVariable, error) {
	if _, exists := fg.varsByName[name]; exists {
		return nil, errors.Wrapf(golift.ErrDuplicateVar, "variable %q", name)
	}
	if len(name) == 0 {
		return nil, errors.Wrap(golift.ErrMissingVar, "empty variable name")
	}
	if domain == nil {
		domain = BoolDomain
	}
	if domain.Size() == 0 || domain.Size() > golift.MaxDomainSize {
		return nil, errors.Wrapf(golift.ErrBadDomain, "variable %q", name)
	}

	rv := &RandomVariable{
		id:     VarID(len(fg.vars)),
		name:   name,
		domain: domain,
	}
	if len(evidence) > 0 {
		val, ok := domain.ValueOf(evidence)
		if !ok {
			return nil, errors.Wrapf(golift.ErrBadEvidence, "variable %q evidence %q", name, evidence)
		}
		rv.observed = val
		rv.hasEvidence = true
	}

	fg.vars = append(fg.vars, rv)
	fg.varFactors = append(fg.varFactors, nil)
	fg.varsByName[name] = rv.id
	return rv, nil
}

// AddFactor adds a factor over the named arguments with the given dense table (in table order).
// No incidence edges are added; see AddFactorWithEdges.
func (fg *FactorGraph) AddFactor(name string, argNames []string, table []float64) (*Factor, error) {
	f, err := fg.newFactor(name, argNames)
	if err != nil {
		return nil, err
	}
	if err = f.SetTable(table); err != nil {
		return nil, err
	}
	return fg.AttachFactor(f)
}

// AddFactorWithEdges is AddFactor followed by AddEdge for every argument.
func (fg *FactorGraph) AddFactorWithEdges(name string, argNames []string, table []float64) (*Factor, error) {
	f, err := fg.AddFactor(name, argNames, table)
	if err != nil {
		return nil, err
	}
	fg.addEdges(f)
	return f, nil
}

// newFactor returns a detached factor over the named variables of this graph, for use with AttachFactor.
func (fg *FactorGraph) newFactor(name string, argNames []string) (*Factor, error) {
	if _, exists := fg.factorsByName[name]; exists {
		return nil, errors.Wrapf(golift.ErrDuplicateFactor, "factor %q", name)
	}
	args := make([]*RandomVariable, len(argNames))
	for i, argName := range argNames {
		rv := fg.VarByName(argName)
		if rv == nil {
			return nil, errors.Wrapf(golift.ErrMissingVar, "factor %q argument %q", name, argName)
		}
		args[i] = rv
	}
	return NewFactor(name, args)
}

// AttachFactor adds a factor (built with NewFactor over this graph's variables) to the graph.
// The factor's table must be complete.
func (fg *FactorGraph) AttachFactor(f *Factor) (*Factor, error) {
	if f.id >= 0 {
		return nil, errors.Wrapf(golift.ErrDuplicateFactor, "factor %q already attached", f.name)
	}
	if _, exists := fg.factorsByName[f.name]; exists {
		return nil, errors.Wrapf(golift.ErrDuplicateFactor, "factor %q", f.name)
	}
	for _, rv := range f.args {
		if int(rv.id) >= len(fg.vars) || fg.vars[rv.id] != rv {
			return nil, errors.Wrapf(golift.ErrMissingVar, "factor %q argument %q", f.name, rv.name)
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.id = FactorID(len(fg.factors))
	fg.factors = append(fg.factors, f)
	fg.factorVars = append(fg.factorVars, nil)
	fg.factorsByName[f.name] = f.id
	return f, nil
}

// AddEdge adds the incidence edge between an existing variable and an existing factor that has it as an argument.
func (fg *FactorGraph) AddEdge(varName, factorName string) error {
	rv := fg.VarByName(varName)
	if rv == nil {
		return errors.Wrapf(golift.ErrMissingVar, "edge %q-%q", varName, factorName)
	}
	f := fg.FactorByName(factorName)
	if f == nil {
		return errors.Wrapf(golift.ErrMissingFactor, "edge %q-%q", varName, factorName)
	}
	key := edgeKey{rv.id, f.id}
	if _, exists := fg.edges[key]; exists {
		return errors.Wrapf(golift.ErrDuplicateEdge, "edge %q-%q", varName, factorName)
	}
	if f.PositionOf(rv.id) < 0 {
		return errors.Wrapf(golift.ErrArgNotInFactor, "edge %q-%q", varName, factorName)
	}
	fg.addEdge(key)
	return nil
}

func (fg *FactorGraph) addEdges(f *Factor) {
	for _, rv := range f.args {
		key := edgeKey{rv.id, f.id}
		if _, exists := fg.edges[key]; !exists {
			fg.addEdge(key)
		}
	}
}

func (fg *FactorGraph) addEdge(key edgeKey) {
	fg.edges[key] = struct{}{}
	fg.varFactors[key.v] = append(fg.varFactors[key.v], key.f)
	fg.factorVars[key.f] = append(fg.factorVars[key.f], key.v)
}

// Validate checks that every factor argument has its incidence edge.
func (fg *FactorGraph) Validate() error {
	for _, f := range fg.factors {
		for _, rv := range f.args {
			if _, exists := fg.edges[edgeKey{rv.id, f.id}]; !exists {
				return errors.Wrapf(golift.ErrMissingEdge, "edge %q-%q", rv.name, f.name)
			}
		}
	}
	return nil
}

func (fg *FactorGraph) NumVars() int {
	return len(fg.vars)
}

func (fg *FactorGraph) NumFactors() int {
	return len(fg.factors)
}

func (fg *FactorGraph) NumEdges() int {
	return len(fg.edges)
}

// Vars returns all variables in insertion order.  The caller must not modify the returned slice.
func (fg *FactorGraph) Vars() []*RandomVariable {
	return fg.vars
}

// Factors returns all factors in insertion order.  The caller must not modify the returned slice.
func (fg *FactorGraph) Factors() []*Factor {
	return fg.factors
}

func (fg *FactorGraph) Var(id VarID) *RandomVariable {
	return fg.vars[id]
}

func (fg *FactorGraph) Factor(id FactorID) *Factor {
	return fg.factors[id]
}

func (fg *FactorGraph) VarByName(name string) *RandomVariable {
	if id, ok := fg.varsByName[name]; ok {
		return fg.vars[id]
	}
	return nil
}

func (fg *FactorGraph) FactorByName(name string) *Factor {
	if id, ok := fg.factorsByName[name]; ok {
		return fg.factors[id]
	}
	return nil
}

// FactorsOf returns the factors incident to the given variable.  The caller must not modify the returned slice.
func (fg *FactorGraph) FactorsOf(id VarID) []FactorID {
	return fg.varFactors[id]
}

// VarsOf returns the variables incident to the given factor, in edge insertion order.
// For a factor's argument order, see Factor.Args().
func (fg *FactorGraph) VarsOf(id FactorID) []VarID {
	return fg.factorVars[id]
}

// HasEdge returns true if the given variable and factor are incident.
func (fg *FactorGraph) HasEdge(v VarID, f FactorID) bool {
	_, exists := fg.edges[edgeKey{v, f}]
	return exists
}
