// Package bounds enforces the defensive resource ceilings applied at every
// host/engine boundary crossing.
//
// The engine and the wire format are otherwise unbounded: without these
// ceilings a buggy or malicious caller can exhaust memory or overflow the
// stack during recursive traversal. Every check failure is reported as a
// limit error from the taxonomy in pkg/types.
package bounds

import "github.com/durable-oss/amoskeag/pkg/types"

// Default ceilings. These are policy constants; callers needing different
// policy build their own Limits.
const (
	DefaultMaxSourceBytes = 10 << 20  // 10 MiB of expression source
	DefaultMaxResultBytes = 100 << 20 // 100 MiB of JSON payload
	DefaultMaxSymbols     = 10000
	DefaultMaxArrayLen    = 1000000
	DefaultMaxMapLen      = 100000
	DefaultMaxDepth       = 100
)

// Limits holds the ceilings applied during encode, decode and at API entry.
// The zero value is unusable; start from Default.
type Limits struct {
	MaxSourceBytes int // expression source size
	MaxResultBytes int // JSON payload size on decode
	MaxSymbols     int // symbol list cardinality
	MaxArrayLen    int // elements per array
	MaxMapLen      int // entries per map
	MaxDepth       int // container nesting depth on the encode path
}

// Default returns the standard ceilings.
func Default() Limits {
	return Limits{
		MaxSourceBytes: DefaultMaxSourceBytes,
		MaxResultBytes: DefaultMaxResultBytes,
		MaxSymbols:     DefaultMaxSymbols,
		MaxArrayLen:    DefaultMaxArrayLen,
		MaxMapLen:      DefaultMaxMapLen,
		MaxDepth:       DefaultMaxDepth,
	}
}

// CheckSource validates the size of expression source text.
func (l Limits) CheckSource(n int) error {
	if n > l.MaxSourceBytes {
		return types.Errorf(types.ErrLimit, "source too large: %d bytes (max: %d)", n, l.MaxSourceBytes)
	}
	return nil
}

// CheckPayload validates the size of a JSON payload before it is decoded.
func (l Limits) CheckPayload(n int) error {
	if n > l.MaxResultBytes {
		return types.Errorf(types.ErrLimit, "JSON payload too large: %d bytes (max: %d)", n, l.MaxResultBytes)
	}
	return nil
}

// CheckSymbols validates the cardinality of a symbol list.
func (l Limits) CheckSymbols(n int) error {
	if n > l.MaxSymbols {
		return types.Errorf(types.ErrLimit, "too many symbols: %d (max: %d)", n, l.MaxSymbols)
	}
	return nil
}

// CheckArray validates the element count of a single array.
func (l Limits) CheckArray(n int) error {
	if n > l.MaxArrayLen {
		return types.Errorf(types.ErrLimit, "array too large: %d elements (max: %d)", n, l.MaxArrayLen)
	}
	return nil
}

// CheckMap validates the entry count of a single map.
func (l Limits) CheckMap(n int) error {
	if n > l.MaxMapLen {
		return types.Errorf(types.ErrLimit, "map too large: %d entries (max: %d)", n, l.MaxMapLen)
	}
	return nil
}

// CheckDepth validates the container nesting depth. depth counts enclosing
// containers, so the outermost container sits at depth 1.
func (l Limits) CheckDepth(depth int) error {
	if depth > l.MaxDepth {
		return types.Errorf(types.ErrLimit, "data structure too deeply nested (max depth: %d)", l.MaxDepth)
	}
	return nil
}
