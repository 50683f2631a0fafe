package libfg

import (
	"encoding/binary"
	"math"

	"github.com/2x3systems/golift/golift"
	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns an order-sensitive hash of this graph's complete definition:
// names, domains, evidence, argument order, potential tables and incidence.
//
// A factor's argument order is part of its definition, so a graph fingerprinted after colour passing
// (which may permute factor arguments) differs from the same graph fingerprinted before.
func (fg *FactorGraph) Fingerprint() golift.GraphID {
	h := newFingerprinter()

	h.writeInt(int64(len(fg.vars)))
	for _, rv := range fg.vars {
		h.writeString(rv.name)
		h.writeString(rv.domain.Key())
		if rv.hasEvidence {
			h.writeInt(1 + int64(rv.observed))
		} else {
			h.writeInt(0)
		}
	}

	h.writeInt(int64(len(fg.factors)))
	for _, f := range fg.factors {
		h.writeString(f.name)
		h.writeInt(int64(len(f.args)))
		for _, rv := range f.args {
			h.writeInt(int64(rv.id))
		}
		for _, w := range f.table {
			h.writeInt(int64(math.Float64bits(w)))
		}
		for _, vi := range fg.factorVars[f.id] {
			h.writeInt(int64(vi))
		}
	}

	return h.sum()
}

// fingerprinter feeds one stream into two independently salted 64 bit lanes.
type fingerprinter struct {
	lanes [2]*xxhash.Digest
	buf   [binary.MaxVarintLen64]byte
}

func newFingerprinter() *fingerprinter {
	h := &fingerprinter{}
	for i := range h.lanes {
		h.lanes[i] = xxhash.New()
		h.lanes[i].Write([]byte{0x2a, byte(i)})
	}
	return h
}

func (h *fingerprinter) write(b []byte) {
	for _, lane := range h.lanes {
		lane.Write(b)
	}
}

func (h *fingerprinter) writeInt(x int64) {
	n := binary.PutVarint(h.buf[:], x)
	h.write(h.buf[:n])
}

// writeString writes s length-prefixed, so adjacent strings cannot run together.
func (h *fingerprinter) writeString(s string) {
	h.writeInt(int64(len(s)))
	for _, lane := range h.lanes {
		lane.WriteString(s)
	}
}

func (h *fingerprinter) sum() golift.GraphID {
	var uid golift.GraphID
	binary.LittleEndian.PutUint64(uid[0:8], h.lanes[0].Sum64())
	binary.LittleEndian.PutUint64(uid[8:16], h.lanes[1].Sum64())
	return uid
}
