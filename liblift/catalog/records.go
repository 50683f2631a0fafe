package catalog

import (
	"math"

	"github.com/2x3systems/golift/golift"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

// catalogState is stored under gCatalogStateKey.
type catalogState struct {
	MajorVers  uint64
	MinorVers  uint64
	NumEntries uint64
}

func (state *catalogState) Marshal() []byte {
	buf := proto.NewBuffer(make([]byte, 0, 16))
	buf.EncodeVarint(state.MajorVers)
	buf.EncodeVarint(state.MinorVers)
	buf.EncodeVarint(state.NumEntries)
	return buf.Bytes()
}

func (state *catalogState) Unmarshal(val []byte) error {
	buf := proto.NewBuffer(val)
	var err error
	if state.MajorVers, err = buf.DecodeVarint(); err != nil {
		return errors.Wrap(golift.ErrUnmarshal, "catalog state")
	}
	if state.MinorVers, err = buf.DecodeVarint(); err != nil {
		return errors.Wrap(golift.ErrUnmarshal, "catalog state")
	}
	if state.NumEntries, err = buf.DecodeVarint(); err != nil {
		return errors.Wrap(golift.ErrUnmarshal, "catalog state")
	}
	return nil
}

/*
LiftRecord encoding:

	flags          varint (bit 0: UseAlpha)
	SearchDepth    zigzag
	Passes         varint
	len(VarColours), VarColours...          varint
	len(FactorColours), FactorColours...    varint
	len(Alphas), Alphas...                  fixed64 (float bits)
*/

func marshalRecord(rec *golift.LiftRecord) []byte {
	buf := proto.NewBuffer(make([]byte, 0, 16+2*len(rec.VarColours)+10*len(rec.FactorColours)))

	flags := uint64(0)
	if rec.UseAlpha {
		flags |= 1
	}
	buf.EncodeVarint(flags)
	buf.EncodeZigzag64(uint64(rec.SearchDepth))
	buf.EncodeVarint(uint64(rec.Passes))

	buf.EncodeVarint(uint64(len(rec.VarColours)))
	for _, c := range rec.VarColours {
		buf.EncodeVarint(uint64(c))
	}
	buf.EncodeVarint(uint64(len(rec.FactorColours)))
	for _, c := range rec.FactorColours {
		buf.EncodeVarint(uint64(c))
	}
	buf.EncodeVarint(uint64(len(rec.Alphas)))
	for _, alpha := range rec.Alphas {
		buf.EncodeFixed64(math.Float64bits(alpha))
	}
	return buf.Bytes()
}

func unmarshalRecord(val []byte) (*golift.LiftRecord, error) {
	buf := proto.NewBuffer(val)
	rec := &golift.LiftRecord{}

	next := func() uint64 {
		x, err := buf.DecodeVarint()
		if err != nil {
			panic(err)
		}
		return x
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrapf(golift.ErrUnmarshal, "lift record: %v", r)
			}
		}()

		flags := next()
		rec.UseAlpha = flags&1 != 0
		depth, derr := buf.DecodeZigzag64()
		if derr != nil {
			panic(derr)
		}
		rec.SearchDepth = int32(depth)
		rec.Passes = int32(next())

		rec.VarColours = decodeColours(next, len(val))
		rec.FactorColours = decodeColours(next, len(val))

		N := next()
		if N > uint64(len(val)) {
			panic("bad alpha count")
		}
		rec.Alphas = make([]float64, N)
		for i := range rec.Alphas {
			bits, derr := buf.DecodeFixed64()
			if derr != nil {
				panic(derr)
			}
			rec.Alphas[i] = math.Float64frombits(bits)
		}
	}()

	if err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeColours(next func() uint64, maxLen int) []golift.Colour {
	N := next()
	if N > uint64(maxLen) {
		panic("bad colour count")
	}
	colours := make([]golift.Colour, N)
	for i := range colours {
		colours[i] = golift.Colour(next())
	}
	return colours
}
