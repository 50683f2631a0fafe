package libfg

import (
	"math"
	"sync"

	"github.com/2x3systems/golift/golift"
	"github.com/pkg/errors"
)

// Factor is a discrete potential over an ordered list of random variables.
//
// The potential table is dense and mixed-radix indexed with the first argument most significant,
// so for two Boolean arguments the table order is TT, TF, FT, FF.
// Unset entries hold NaN until assigned.
//
// A Factor's argument order and table are rewritten in place when DEFT commits an argument permutation.
// The RandomVariables themselves are never altered.
type Factor struct {
	mu    sync.Mutex
	id    FactorID
	name  string
	args  []*RandomVariable
	table []float64
}

var unset = math.NaN()

// NewFactor returns a factor over the given arguments with every table entry unset.
// The returned factor has no FactorID until added to a FactorGraph.
func NewFactor(name string, args []*RandomVariable) (*Factor, error) {
	if len(args) > golift.MaxFactorArity {
		return nil, errors.Wrapf(golift.ErrArityExceeded, "factor %q", name)
	}
	size := 1
	for i, rv := range args {
		if rv == nil {
			return nil, errors.Wrapf(golift.ErrMissingVar, "factor %q argument %d", name, i)
		}
		for _, prev := range args[:i] {
			if prev == rv {
				return nil, errors.Wrapf(golift.ErrDuplicateArg, "factor %q argument %q", name, rv.name)
			}
		}
		size *= rv.domain.Size()
	}

	f := &Factor{
		id:    -1,
		name:  name,
		args:  append([]*RandomVariable(nil), args...),
		table: make([]float64, size),
	}
	for i := range f.table {
		f.table[i] = unset
	}
	return f, nil
}

func (f *Factor) ID() FactorID {
	return f.id
}

func (f *Factor) Name() string {
	return f.name
}

func (f *Factor) NumArgs() int {
	return len(f.args)
}

func (f *Factor) Arg(pos int) *RandomVariable {
	return f.args[pos]
}

// Args returns the factor's current argument order.  The caller must not modify the returned slice.
func (f *Factor) Args() []*RandomVariable {
	return f.args
}

// PositionOf returns the argument position of the given variable, or -1.
func (f *Factor) PositionOf(id VarID) int {
	for i, rv := range f.args {
		if rv.id == id {
			return i
		}
	}
	return -1
}

// TableSize is the number of entries in the factor's potential table.
func (f *Factor) TableSize() int {
	return len(f.table)
}

// Dims appends the domain size of each argument.
func (f *Factor) Dims(dst []int) []int {
	for _, rv := range f.args {
		dst = append(dst, rv.domain.Size())
	}
	return dst
}

// Index returns the table index of the given assignment.
func (f *Factor) Index(a Assignment) (int, error) {
	if len(a) != len(f.args) {
		return -1, errors.Wrapf(golift.ErrBadAssignment, "factor %q expects %d values, got %d", f.name, len(f.args), len(a))
	}
	idx := 0
	for i, rv := range f.args {
		dim := rv.domain.Size()
		if int(a[i]) >= dim {
			return -1, errors.Wrapf(golift.ErrBadAssignment, "factor %q argument %q", f.name, rv.name)
		}
		idx = idx*dim + int(a[i])
	}
	return idx, nil
}

// AssignmentAt writes the assignment for the given table index into dst (resized as needed).
func (f *Factor) AssignmentAt(idx int, dst Assignment) Assignment {
	N := len(f.args)
	if cap(dst) < N {
		dst = make(Assignment, N)
	}
	dst = dst[:N]
	for i := N - 1; i >= 0; i-- {
		dim := f.args[i].domain.Size()
		dst[i] = Value(idx % dim)
		idx /= dim
	}
	return dst
}

// Potential returns the weight of the given assignment.
func (f *Factor) Potential(a Assignment) (float64, error) {
	idx, err := f.Index(a)
	if err != nil {
		return 0, err
	}
	w := f.table[idx]
	if math.IsNaN(w) {
		return 0, errors.Wrapf(golift.ErrIncompletePotential, "factor %q entry %v", f.name, a)
	}
	return w, nil
}

// PotentialAt returns the raw weight at the given table index (NaN if unset).
func (f *Factor) PotentialAt(idx int) float64 {
	return f.table[idx]
}

func (f *Factor) SetPotential(a Assignment, w float64) error {
	if err := checkPotential(f.name, w); err != nil {
		return err
	}
	idx, err := f.Index(a)
	if err != nil {
		return err
	}
	f.table[idx] = w
	return nil
}

// SetTable assigns every entry of the table, given in table order.
func (f *Factor) SetTable(weights []float64) error {
	if len(weights) != len(f.table) {
		return errors.Wrapf(golift.ErrIncompletePotential, "factor %q has %d entries, got %d", f.name, len(f.table), len(weights))
	}
	for _, w := range weights {
		if err := checkPotential(f.name, w); err != nil {
			return err
		}
	}
	copy(f.table, weights)
	return nil
}

// Table returns a copy of the potential table in table order.
func (f *Factor) Table() []float64 {
	return append([]float64(nil), f.table...)
}

func checkPotential(name string, w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return errors.Wrapf(golift.ErrBadPotential, "factor %q weight %v", name, w)
	}
	return nil
}

// Validate returns ErrIncompletePotential if any table entry was never assigned.
func (f *Factor) Validate() error {
	for idx, w := range f.table {
		if math.IsNaN(w) {
			return errors.Wrapf(golift.ErrIncompletePotential, "factor %q entry %v", f.name, f.AssignmentAt(idx, nil))
		}
	}
	return nil
}

// ForEachAssignment calls fn for every table entry in table order until fn returns false.
// The Assignment passed to fn is reused between calls.
func (f *Factor) ForEachAssignment(fn func(idx int, a Assignment, w float64) bool) {
	N := len(f.args)
	a := make(Assignment, N)
	var dimsBuf [golift.MaxFactorArity]int
	dims := f.Dims(dimsBuf[:0])

	for idx, w := range f.table {
		if !fn(idx, a, w) {
			return
		}

		// Increment a, least significant (last) argument first
		for i := N - 1; i >= 0; i-- {
			a[i]++
			if int(a[i]) < dims[i] {
				break
			}
			a[i] = 0
		}
	}
}

// MakeCopy returns a detached copy of this factor (same ID and name).
func (f *Factor) MakeCopy() *Factor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Factor{
		id:    f.id,
		name:  f.name,
		args:  append([]*RandomVariable(nil), f.args...),
		table: append([]float64(nil), f.table...),
	}
}

// ApplyPermutation returns a copy of this factor where the argument at old position p is moved to position perm[p].
// Every entry of the table is relabelled accordingly, so Potential() of the copy at the permuted assignment equals
// Potential() of the original at the original assignment.
func (f *Factor) ApplyPermutation(perm []int) (*Factor, error) {
	N := len(f.args)
	if len(perm) != N {
		return nil, errors.Wrapf(golift.ErrBadPermutation, "factor %q", f.name)
	}
	var seenBuf [golift.MaxFactorArity]bool
	seen := seenBuf[:N]
	for _, q := range perm {
		if q < 0 || q >= N || seen[q] {
			return nil, errors.Wrapf(golift.ErrBadPermutation, "factor %q: %v", f.name, perm)
		}
		seen[q] = true
	}

	Fp := &Factor{
		id:    f.id,
		name:  f.name,
		args:  make([]*RandomVariable, N),
		table: make([]float64, len(f.table)),
	}
	for p, q := range perm {
		Fp.args[q] = f.args[p]
	}

	dst := make(Assignment, N)
	var err error
	f.ForEachAssignment(func(idx int, a Assignment, w float64) bool {
		for p, q := range perm {
			dst[q] = a[p]
		}
		var newIdx int
		newIdx, err = Fp.Index(dst)
		if err != nil {
			return false
		}
		Fp.table[newIdx] = w
		return true
	})
	if err != nil {
		return nil, err
	}
	return Fp, nil
}

// AssignFrom overwrites this factor's argument order and potential table with those of src.
// src must range over the same set of variables.
func (f *Factor) AssignFrom(src *Factor) {
	args := append([]*RandomVariable(nil), src.args...)
	table := append([]float64(nil), src.table...)

	f.mu.Lock()
	f.args = args
	f.table = table
	f.mu.Unlock()
}

func (f *Factor) String() string {
	b := make([]byte, 0, 64)
	b = append(b, f.name...)
	b = append(b, '(')
	for i, rv := range f.args {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, rv.name...)
	}
	b = append(b, ')')
	return string(b)
}
