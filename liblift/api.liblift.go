package liblift

import (
	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/libfg"
	"github.com/emirpasic/gods/maps/treemap"
)

// Lifting is the outcome of colour passing over a FactorGraph.
//
// VarColours and FactorColours are indexed by VarID and FactorID.  Variable colours are in [1, NumVars] and
// factor colours start at NumVars+1, so the two never collide.
type Lifting struct {
	Graph         *libfg.FactorGraph
	UseAlpha      bool
	SearchDepth   int
	VarColours    []golift.Colour
	FactorColours []golift.Colour
	Alphas        []float64 // f = Alphas[f] * (f's group representative); 1 for the representative itself
	Passes        int       // refinement passes run, including the final pass that split nothing

	// Caches built during the run, for use by whatever builds the lifted model.
	Buckets     *BucketCache
	Commutative *CommutativeCache
}

// VarGroups returns the variable colour classes in ascending colour order, each in VarID order.
func (lift *Lifting) VarGroups() [][]libfg.VarID {
	classes := treemap.NewWithIntComparator()
	for vi, c := range lift.VarColours {
		var members []libfg.VarID
		if prev, found := classes.Get(int(c)); found {
			members = prev.([]libfg.VarID)
		}
		classes.Put(int(c), append(members, libfg.VarID(vi)))
	}

	groups := make([][]libfg.VarID, 0, classes.Size())
	for _, members := range classes.Values() {
		groups = append(groups, members.([]libfg.VarID))
	}
	return groups
}

// FactorGroups returns the factor colour classes in ascending colour order, each in FactorID order.
func (lift *Lifting) FactorGroups() [][]libfg.FactorID {
	classes := treemap.NewWithIntComparator()
	for fi, c := range lift.FactorColours {
		var members []libfg.FactorID
		if prev, found := classes.Get(int(c)); found {
			members = prev.([]libfg.FactorID)
		}
		classes.Put(int(c), append(members, libfg.FactorID(fi)))
	}

	groups := make([][]libfg.FactorID, 0, classes.Size())
	for _, members := range classes.Values() {
		groups = append(groups, members.([]libfg.FactorID))
	}
	return groups
}

// SameVarColour returns true if the two named variables share a colour.
func (lift *Lifting) SameVarColour(a, b string) bool {
	A := lift.Graph.VarByName(a)
	B := lift.Graph.VarByName(b)
	return A != nil && B != nil && lift.VarColours[A.ID()] == lift.VarColours[B.ID()]
}

// SameFactorColour returns true if the two named factors share a colour.
func (lift *Lifting) SameFactorColour(a, b string) bool {
	A := lift.Graph.FactorByName(a)
	B := lift.Graph.FactorByName(b)
	return A != nil && B != nil && lift.FactorColours[A.ID()] == lift.FactorColours[B.ID()]
}

// CommutativeArgs returns the commutative arguments of the given factor as found during the run.
func (lift *Lifting) CommutativeArgs(fi libfg.FactorID) ([]libfg.VarID, error) {
	return lift.Commutative.Arguments(lift.Graph.Factor(fi))
}

// ToRecord returns the colour maps in their persisted form.
func (lift *Lifting) ToRecord() *golift.LiftRecord {
	return &golift.LiftRecord{
		UseAlpha:      lift.UseAlpha,
		SearchDepth:   int32(lift.SearchDepth),
		Passes:        int32(lift.Passes),
		VarColours:    append([]golift.Colour(nil), lift.VarColours...),
		FactorColours: append([]golift.Colour(nil), lift.FactorColours...),
		Alphas:        append([]float64(nil), lift.Alphas...),
	}
}
