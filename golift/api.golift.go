package golift

import (
	"encoding/base32"
)

const (

	// MaxDomainSize is the max number of values a random variable's domain may hold.
	MaxDomainSize = 8

	// MaxFactorArity is the max number of arguments a factor may have.
	// A factor's potential table is dense, so its size is the product of its argument domain sizes.
	MaxFactorArity = 24

	// DefaultSearchDepth is the number of lowest degree-of-freedom buckets DEFT uses to prune candidate argument swaps.
	DefaultSearchDepth = 5

	// GraphIDSz is the byte length of a GraphID
	GraphIDSz = 16
)

// Colour is an opaque equivalence class label.  Only equality between colours is meaningful.
type Colour int32

// GraphID is an order-sensitive fingerprint of a factor graph's complete definition.
type GraphID [GraphIDSz]byte

func (uid GraphID) String() string {
	return Base32Encoding.EncodeToString(uid[:])
}

// GeohashBase32Alphabet is the alphabet used for Base32Encoding
const GeohashBase32Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

var (
	// Base32Encoding is used to encode/decode binary buffer to/from base 32
	Base32Encoding = base32.NewEncoding(GeohashBase32Alphabet).WithPadding(base32.NoPadding)
)

// LiftRecord is the persisted outcome of a colour passing run over a factor graph.
//
// VarColours and FactorColours are indexed by the graph's insertion-ordered variable and factor IDs.
type LiftRecord struct {
	UseAlpha      bool
	SearchDepth   int32
	Passes        int32
	VarColours    []Colour
	FactorColours []Colour
	Alphas        []float64 // per factor scalar relating it to its group representative (1 for exact matches)
}

// NumVarGroups returns the number of distinct variable colours.
func (rec *LiftRecord) NumVarGroups() int {
	return countDistinct(rec.VarColours)
}

// NumFactorGroups returns the number of distinct factor colours.
func (rec *LiftRecord) NumFactorGroups() int {
	return countDistinct(rec.FactorColours)
}

func countDistinct(colours []Colour) int {
	seen := make(map[Colour]struct{}, len(colours))
	for _, c := range colours {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// CatalogContext is a container for open / active Catalog instances.
type CatalogContext interface {

	// Attaches the given Catalog to this context.
	AttachCatalog(cat Catalog)

	// Detaches the given Catalog from this context.
	DetachCatalog(cat Catalog)

	// Closes all open catalogs then closes.
	Close()

	// Signals when Close() completed and all open Catalogs have been closed
	Done() <-chan struct{}
}

// CatalogOpts specifies params for opening a Catalog
type CatalogOpts struct {
	DbPathName string // omit for in-memory db
	ReadOnly   bool   // open in read-only mode
}

// Catalog wraps a database of colour passing outcomes, keyed by GraphID.
type Catalog interface {

	// Returns true if this catalog was opened for read-only access.
	IsReadOnly() bool

	// Lookup returns the record stored for the given graph, or ErrNotFound.
	Lookup(graphID GraphID) (*LiftRecord, error)

	// Store places (or replaces) the record for the given graph.
	Store(graphID GraphID, rec *LiftRecord) error

	// NumEntries returns the number of records in this catalog.
	NumEntries() int64

	Close() error
}
