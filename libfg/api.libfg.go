package libfg

import (
	"strings"

	"github.com/2x3systems/golift/golift"
)

// VarID is the arena index of a RandomVariable within its FactorGraph (zero-based, insertion order).
type VarID int32

// FactorID is the arena index of a Factor within its FactorGraph (zero-based, insertion order).
type FactorID int32

// Value is the index of a value within a Domain.
type Value uint8

// Assignment holds one domain Value per factor argument, in argument order.
type Assignment []Value

func (a Assignment) Clone() Assignment {
	return append(Assignment(nil), a...)
}

// Domain is a named, ordered set of values a random variable can take.
type Domain struct {
	Name   string
	Labels []string
}

// BoolDomain is the default domain: index 0 is true and index 1 is false.
var BoolDomain = &Domain{
	Name:   "Boolean",
	Labels: []string{"true", "false"},
}

const (
	True  Value = 0
	False Value = 1
)

// NewDomain returns a domain of the given (distinct) labels.
func NewDomain(name string, labels ...string) (*Domain, error) {
	if len(name) == 0 || len(labels) == 0 || len(labels) > golift.MaxDomainSize {
		return nil, golift.ErrBadDomain
	}
	for i, li := range labels {
		for _, lj := range labels[:i] {
			if li == lj {
				return nil, golift.ErrBadDomain
			}
		}
	}
	return &Domain{
		Name:   name,
		Labels: append([]string(nil), labels...),
	}, nil
}

func (d *Domain) Size() int {
	return len(d.Labels)
}

func (d *Domain) Label(v Value) string {
	if int(v) >= len(d.Labels) {
		return "?"
	}
	return d.Labels[v]
}

// ValueOf returns the Value of the given label.
// The Boolean domain also accepts "T" and "F".
func (d *Domain) ValueOf(label string) (Value, bool) {
	for i, li := range d.Labels {
		if li == label {
			return Value(i), true
		}
	}
	if d.IsBool() {
		switch label {
		case "T":
			return True, true
		case "F":
			return False, true
		}
	}
	return 0, false
}

func (d *Domain) IsBool() bool {
	return d == BoolDomain || d.SameAs(BoolDomain)
}

// SameAs returns true if both domains have the same name and labels.
func (d *Domain) SameAs(other *Domain) bool {
	if d == other {
		return true
	}
	if other == nil || d.Name != other.Name || len(d.Labels) != len(other.Labels) {
		return false
	}
	for i := range d.Labels {
		if d.Labels[i] != other.Labels[i] {
			return false
		}
	}
	return true
}

// Key returns a string that is equal for two domains iff SameAs() is true.
func (d *Domain) Key() string {
	b := strings.Builder{}
	b.WriteString(d.Name)
	for _, li := range d.Labels {
		b.WriteByte(0)
		b.WriteString(li)
	}
	return b.String()
}
