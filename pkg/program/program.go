// Package program owns compiled Amoskeag programs on the host side.
//
// A Program wraps the engine's opaque handle with exclusive ownership: the
// handle is released exactly once, either by an explicit Close or by the
// garbage collector through a cleanup when the wrapper becomes unreachable.
// After disposal the internal handle is nulled, so a stray reference fails
// locally with a contract error instead of reaching the engine as a
// use-after-free.
package program

import (
	"context"
	"runtime"
	"sync"

	"github.com/durable-oss/amoskeag/pkg/bounds"
	"github.com/durable-oss/amoskeag/pkg/codec"
	"github.com/durable-oss/amoskeag/pkg/engine"
	"github.com/durable-oss/amoskeag/pkg/types"
)

// Fallback messages used when the engine fails without producing one.
const (
	fallbackCompileMessage = "compilation failed"
	fallbackEvalMessage    = "evaluation failed"
)

// Program is a compiled expression bound to the engine that produced it.
// Native calls on one Program are serialized; for parallel evaluation
// compile independent programs.
type Program struct {
	st      *state
	cleanup runtime.Cleanup
	limits  bounds.Limits
}

// state is split from Program so the GC cleanup can release the handle
// without keeping the wrapper itself alive.
type state struct {
	mu       sync.Mutex
	native   engine.Native
	handle   engine.Handle
	disposed bool
}

// Compile builds a program from source with an optional list of symbol
// names the expression may reference.
func Compile(ctx context.Context, native engine.Native, source string, symbols []string, limits bounds.Limits) (*Program, error) {
	if native == nil {
		return nil, types.NewError(types.ErrArgument, "engine cannot be nil")
	}
	if source == "" {
		return nil, types.NewError(types.ErrArgument, "source cannot be empty")
	}
	if err := limits.CheckSource(len(source)); err != nil {
		return nil, err
	}

	symbolsJSON := ""
	if len(symbols) > 0 {
		if err := limits.CheckSymbols(len(symbols)); err != nil {
			return nil, err
		}
		v, err := codec.FromHost(symbols, limits)
		if err != nil {
			return nil, err
		}
		data, err := codec.Encode(v, limits)
		if err != nil {
			return nil, err
		}
		symbolsJSON = string(data)
	}

	h, errStr, err := native.Compile(ctx, source, symbolsJSON)
	if err != nil {
		return nil, wrapNative(err, types.ErrCompile, "compile")
	}
	if h == 0 {
		msg := engine.TakeMessage(ctx, native, errStr, fallbackCompileMessage)
		return nil, types.NewError(types.ErrCompile, msg)
	}
	// A message alongside a valid handle is unexpected; release it anyway.
	native.FreeString(ctx, errStr)

	st := &state{native: native, handle: h}
	p := &Program{st: st, limits: limits}
	p.cleanup = runtime.AddCleanup(p, func(st *state) {
		st.dispose(context.Background())
	}, st)
	return p, nil
}

// Evaluate runs the program against a map-shaped data context and returns
// the decoded host value.
func (p *Program) Evaluate(ctx context.Context, data any) (any, error) {
	if p == nil || p.st == nil {
		return nil, types.NewError(types.ErrArgument, "program cannot be nil")
	}
	if data == nil {
		return nil, types.NewError(types.ErrArgument, "data cannot be nil")
	}

	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	if p.st.disposed {
		return nil, types.NewError(types.ErrContract, "program has been disposed")
	}

	v, err := codec.FromHost(data, p.limits)
	if err != nil {
		return nil, err
	}
	if v.Kind() != types.KindMap {
		return nil, types.Errorf(types.ErrArgument, "data must be a map, got %s", v.Kind())
	}
	payload, err := codec.Encode(v, p.limits)
	if err != nil {
		return nil, err
	}

	result, errStr, err := p.st.native.Evaluate(ctx, p.st.handle, string(payload))
	if err != nil {
		return nil, wrapNative(err, types.ErrEval, "evaluate")
	}
	if result == 0 {
		msg := engine.TakeMessage(ctx, p.st.native, errStr, fallbackEvalMessage)
		return nil, types.NewError(types.ErrEval, msg)
	}
	p.st.native.FreeString(ctx, errStr)

	text, err := engine.TakeString(ctx, p.st.native, result)
	if err != nil {
		return nil, wrapNative(err, types.ErrEval, "read result")
	}
	if text == "" {
		// An empty string is not valid JSON; the engine must not hand back
		// a zero-length success payload.
		return nil, types.NewError(types.ErrEval, "evaluation returned empty result")
	}
	out, err := codec.Decode([]byte(text), p.limits)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// Close releases the native handle. Idempotent: further calls and a later
// GC cleanup are no-ops.
func (p *Program) Close() error {
	if p == nil || p.st == nil {
		return nil
	}
	p.cleanup.Stop()
	p.st.dispose(context.Background())
	return nil
}

// Disposed reports whether the native handle has been released.
func (p *Program) Disposed() bool {
	if p == nil || p.st == nil {
		return true
	}
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	return p.st.disposed
}

func (st *state) dispose(ctx context.Context) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.disposed {
		return
	}
	st.disposed = true
	h := st.handle
	st.handle = 0
	st.native.FreeProgram(ctx, h)
}

// wrapNative passes through errors already carrying a taxonomy code and
// classifies raw transport failures (a trap inside the engine) under the
// given code.
func wrapNative(err error, code types.ErrorCode, op string) error {
	if types.CodeOf(err) != "" {
		return err
	}
	return types.Errorf(code, "engine failure during %s: %v", op, err).WithCause(err)
}
