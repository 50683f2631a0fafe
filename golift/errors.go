package golift

import "errors"

// Errors
var (
	ErrDuplicateVar        = errors.New("random variable already exists")
	ErrDuplicateFactor     = errors.New("factor already exists")
	ErrDuplicateEdge       = errors.New("edge already exists")
	ErrMissingVar          = errors.New("random variable not found")
	ErrMissingFactor       = errors.New("factor not found")
	ErrArgNotInFactor      = errors.New("random variable is not an argument of factor")
	ErrDuplicateArg        = errors.New("random variable appears more than once in factor arguments")
	ErrBadDomain           = errors.New("bad random variable domain")
	ErrBadEvidence         = errors.New("evidence is not a value of the variable's domain")
	ErrBadAssignment       = errors.New("assignment does not match factor arguments")
	ErrBadPotential        = errors.New("potential must be a finite non-negative number")
	ErrIncompletePotential = errors.New("potential table has no entry for an assignment")
	ErrArityExceeded       = errors.New("factor has too many arguments")
	ErrBadPermutation      = errors.New("not a permutation of factor argument positions")
	ErrMissingEdge         = errors.New("factor argument has no incidence edge")
	ErrNilGraph            = errors.New("nil factor graph")
	ErrUnmarshal           = errors.New("unmarshal failed")
	ErrBadCatalogParam     = errors.New("bad catalog param")
	ErrCatalogReadOnly     = errors.New("catalog is read-only")
	ErrCatalogClosed       = errors.New("catalog is closed")
	ErrNotFound            = errors.New("not found")
)
