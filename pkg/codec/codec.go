// Package codec converts between the neutral Value model and the JSON wire
// format exchanged with the Amoskeag engine.
//
// JSON has no symbol kind, so symbols are round-tripped through a reserved
// single-key object: the symbol foo travels as {"__symbol__":"foo"}. On
// decode, any object holding exactly that one key with a string value is a
// symbol; every other object is a map.
//
// All three entry points (FromHost, Encode, Decode) re-enter the bounds
// guard on every recursive descent, so depth and cardinality ceilings hold
// for nested containers, not only at the top level.
package codec

// SymbolKey is the reserved object key carrying a symbol name across the
// wire. A host-supplied map holding this literal string key is passed
// through untouched and will read back as a symbol: a known, low-probability
// collision inherited from the wire format.
const SymbolKey = "__symbol__"
