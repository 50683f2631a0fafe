package liblift

import (
	"sort"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/libfg"
	"github.com/gogo/protobuf/proto"
)

// keyTag names the kind of a colour key so keys of different shapes never compare equal.
type keyTag byte

const (
	tagVarInit keyTag = iota + 1
	tagFactorDomains
	tagFactorSignature
	tagVarSignature
)

// colourKeyer encodes colour keys as tagged varint strings, usable as map keys.
type colourKeyer struct {
	buf proto.Buffer
}

func (kb *colourKeyer) begin(tag keyTag) {
	kb.buf.Reset()
	kb.buf.EncodeVarint(uint64(tag))
}

func (kb *colourKeyer) putInt(x int64) {
	kb.buf.EncodeZigzag64(uint64(x))
}

func (kb *colourKeyer) putString(s string) {
	kb.buf.EncodeStringBytes(s)
}

func (kb *colourKeyer) key() string {
	return string(kb.buf.Bytes())
}

// varInitKey: domain and evidence (0 if none).
func (kb *colourKeyer) varInitKey(rv *libfg.RandomVariable) string {
	kb.begin(tagVarInit)
	kb.putString(rv.Domain().Key())
	if val, observed := rv.Observed(); observed {
		kb.putInt(1 + int64(val))
	} else {
		kb.putInt(0)
	}
	return kb.key()
}

// factorDomainsKey: the multiset of argument domains.
func (kb *colourKeyer) factorDomainsKey(f *libfg.Factor) string {
	keys := make([]string, f.NumArgs())
	for i, rv := range f.Args() {
		keys[i] = rv.Domain().Key()
	}
	sort.Strings(keys)

	kb.begin(tagFactorDomains)
	for _, key := range keys {
		kb.putString(key)
	}
	return kb.key()
}

// factorSignature: argument colours in argument order followed by the factor's previous colour.
func (kb *colourKeyer) factorSignature(f *libfg.Factor, vars []golift.Colour, prev golift.Colour) string {
	kb.begin(tagFactorSignature)
	for _, rv := range f.Args() {
		kb.putInt(int64(vars[rv.ID()]))
	}
	kb.putInt(int64(prev))
	return kb.key()
}

// incidence is a variable's view of one incident factor.
type incidence struct {
	colour golift.Colour
	pos    int // 1 + argument position, or 0 if the position is commutative
}

// varSignature: sorted incidences followed by the variable's previous colour.
func (kb *colourKeyer) varSignature(incs []incidence, prev golift.Colour) string {
	sort.Slice(incs, func(i, j int) bool {
		if incs[i].colour != incs[j].colour {
			return incs[i].colour < incs[j].colour
		}
		return incs[i].pos < incs[j].pos
	})

	kb.begin(tagVarSignature)
	kb.putInt(int64(len(incs)))
	for _, inc := range incs {
		kb.putInt(int64(inc.colour))
		kb.putInt(int64(inc.pos))
	}
	kb.putInt(int64(prev))
	return kb.key()
}

// colourAllocator hands out colours to keys in first-appearance order.
type colourAllocator struct {
	first   golift.Colour
	colours map[string]golift.Colour
}

func newColourAllocator(first golift.Colour, sizeHint int) colourAllocator {
	return colourAllocator{
		first:   first,
		colours: make(map[string]golift.Colour, sizeHint),
	}
}

func (alloc *colourAllocator) colourOf(key string) golift.Colour {
	c, exists := alloc.colours[key]
	if !exists {
		c = alloc.first + golift.Colour(len(alloc.colours))
		alloc.colours[key] = c
	}
	return c
}

func (alloc *colourAllocator) NumColours() int {
	return len(alloc.colours)
}
