// Package amoskeag binds the Amoskeag expression engine to Go.
//
// Amoskeag is a small expression language whose compiler and evaluator live
// in a separately built native library. This package is the marshalling and
// lifecycle layer over that black box: it stages host data across the
// boundary as JSON (round-tripping symbols through a reserved marker),
// enforces defensive resource ceilings at every crossing, owns the opaque
// program handles the engine returns, and translates native failure signals
// into a typed error taxonomy.
//
// # Quick Start
//
//	// Load the engine once per process (or per worker).
//	ask, err := amoskeag.New(ctx, engineWASM)
//	defer ask.Close(ctx)
//
//	// Compile once, evaluate many times.
//	prog, err := ask.Compile(ctx, "x + y", []string{"x", "y"})
//	defer prog.Close()
//	result, err := prog.Evaluate(ctx, map[string]any{"x": 2, "y": 3})
//
//	// Or in one step, with optional program caching.
//	result, err := ask.EvalExpression(ctx, "x + y", data, []string{"x", "y"})
//
// # Concurrency
//
// Calls into one engine instance are serialized; the engine's behaviour
// under concurrent evaluation of a shared handle is not guaranteed. Load
// independent engines for parallel evaluation.
//
// # More Information
//
// For detailed documentation, see:
//   - Engine ABI: github.com/durable-oss/amoskeag/pkg/engine
//   - Value model: github.com/durable-oss/amoskeag/pkg/types
//   - Wire codec: github.com/durable-oss/amoskeag/pkg/codec
//   - Resource ceilings: github.com/durable-oss/amoskeag/pkg/bounds
package amoskeag

import (
	"context"
	"fmt"
	"sync"

	"github.com/durable-oss/amoskeag/pkg/bounds"
	"github.com/durable-oss/amoskeag/pkg/cache"
	"github.com/durable-oss/amoskeag/pkg/engine"
	"github.com/durable-oss/amoskeag/pkg/program"
	"github.com/durable-oss/amoskeag/pkg/types"
)

// Version returns the current version of the binding.
func Version() string {
	return "v0.1.0-dev"
}

// Amoskeag is the binding facade: an engine plus the policy applied at its
// boundary. Safe for concurrent use; native calls are serialized by the
// engine underneath.
type Amoskeag struct {
	mu     sync.Mutex
	native engine.Native
	owned  *engine.Module // set when New loaded the engine itself
	limits bounds.Limits
	cache  *cache.Cache
	closed bool
}

// Option configures New and NewWithNative.
type Option func(*Amoskeag, *options)

type options struct {
	caching   bool
	cacheSize int
}

// WithLimits replaces the default resource ceilings.
func WithLimits(l bounds.Limits) Option {
	return func(a *Amoskeag, _ *options) { a.limits = l }
}

// WithCaching enables the program cache used by EvalExpression, so repeated
// sources skip recompilation.
func WithCaching(enabled bool) Option {
	return func(_ *Amoskeag, o *options) { o.caching = enabled }
}

// WithCacheSize sets the program cache capacity and implies WithCaching.
func WithCacheSize(n int) Option {
	return func(_ *Amoskeag, o *options) {
		o.caching = true
		o.cacheSize = n
	}
}

// New loads the engine from its WebAssembly bytes and returns a facade that
// owns it. Release with Close.
func New(ctx context.Context, engineWASM []byte, opts ...Option) (*Amoskeag, error) {
	mod, err := engine.Load(ctx, engineWASM)
	if err != nil {
		return nil, err
	}
	a := newFacade(mod, opts...)
	a.owned = mod
	return a, nil
}

// NewWithNative wraps an already-loaded engine. The caller keeps ownership
// of the engine's lifetime; Close only releases cached programs.
func NewWithNative(native engine.Native, opts ...Option) *Amoskeag {
	return newFacade(native, opts...)
}

func newFacade(native engine.Native, opts ...Option) *Amoskeag {
	a := &Amoskeag{native: native, limits: bounds.Default()}
	var o options
	for _, opt := range opts {
		opt(a, &o)
	}
	if o.caching {
		a.cache = cache.New(o.cacheSize)
	}
	return a
}

// Compile builds a program from source. symbols optionally lists the names
// the expression may reference; nil means none.
func (a *Amoskeag) Compile(ctx context.Context, source string, symbols []string) (*program.Program, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return program.Compile(ctx, a.native, source, symbols, a.limits)
}

// MustCompile is like Compile but panics if the source cannot be compiled.
// It simplifies safe initialization of program variables.
func (a *Amoskeag) MustCompile(ctx context.Context, source string, symbols []string) *program.Program {
	prog, err := a.Compile(ctx, source, symbols)
	if err != nil {
		panic(fmt.Sprintf("amoskeag: Compile(%q): %v", source, err))
	}
	return prog
}

// Evaluate runs a compiled program against a map-shaped data context.
func (a *Amoskeag) Evaluate(ctx context.Context, prog *program.Program, data any) (any, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, types.NewError(types.ErrArgument, "program cannot be nil")
	}
	return prog.Evaluate(ctx, data)
}

// EvalExpression compiles and evaluates in one step. Without caching the
// transient program is disposed on every exit path, including errors; with
// caching the cache owns it for reuse.
func (a *Amoskeag) EvalExpression(ctx context.Context, source string, data any, symbols []string) (any, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	if c := a.cache; c != nil {
		prog, err := c.GetOrCompile(cache.Key(source, symbols), func() (*program.Program, error) {
			return program.Compile(ctx, a.native, source, symbols, a.limits)
		})
		if err != nil {
			return nil, err
		}
		return prog.Evaluate(ctx, data)
	}

	prog, err := program.Compile(ctx, a.native, source, symbols, a.limits)
	if err != nil {
		return nil, err
	}
	defer prog.Close()
	return prog.Evaluate(ctx, data)
}

// Close disposes cached programs and, when New loaded the engine, the
// engine itself. Idempotent.
func (a *Amoskeag) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.cache != nil {
		a.cache.Clear()
	}
	if a.owned != nil {
		return a.owned.Close(ctx)
	}
	return nil
}

func (a *Amoskeag) ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return types.NewError(types.ErrContract, "binding has been closed")
	}
	if a.native == nil {
		return types.NewError(types.ErrArgument, "engine cannot be nil")
	}
	return nil
}
