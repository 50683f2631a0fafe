package libfg

// RandomVariable is an immutable node of a FactorGraph.
type RandomVariable struct {
	id          VarID
	name        string
	domain      *Domain
	observed    Value
	hasEvidence bool
}

func (rv *RandomVariable) ID() VarID {
	return rv.id
}

func (rv *RandomVariable) Name() string {
	return rv.name
}

func (rv *RandomVariable) Domain() *Domain {
	return rv.domain
}

// Observed returns the variable's evidence, if any.
func (rv *RandomVariable) Observed() (Value, bool) {
	return rv.observed, rv.hasEvidence
}

func (rv *RandomVariable) String() string {
	if rv.hasEvidence {
		return rv.name + "=" + rv.domain.Label(rv.observed)
	}
	return rv.name
}
