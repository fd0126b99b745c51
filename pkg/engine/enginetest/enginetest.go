// Package enginetest provides a scriptable in-memory implementation of
// engine.Native for testing the binding without a WebAssembly engine.
//
// The fake tracks every string and program it hands out, so tests can
// assert the ownership contract: nothing leaks, nothing is freed twice,
// nothing is read after release.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/durable-oss/amoskeag/pkg/engine"
)

// CompileReply scripts one response of the fake's compile entry point.
type CompileReply struct {
	OK     bool
	ErrMsg string // used when !OK; empty models an engine with no message
}

// EvalReply scripts one response of the fake's evaluate entry point.
type EvalReply struct {
	OK     bool
	Result string // used when OK; may be empty to model a zero-length payload
	ErrMsg string // used when !OK; empty models an engine with no message
}

// Fake is a scriptable engine.Native. The zero value compiles everything
// and evaluates everything to "null"; set CompileFunc/EvaluateFunc to
// script other behaviour. Safe for concurrent use.
type Fake struct {
	CompileFunc  func(source, symbolsJSON string) CompileReply
	EvaluateFunc func(h engine.Handle, dataJSON string) EvalReply

	mu          sync.Mutex
	nextStr     engine.Str
	nextHandle  engine.Handle
	strings     map[engine.Str]string
	freedStr    map[engine.Str]int
	progFrees   map[engine.Handle]int
	compileN    int
	evaluateN   int
	lastSymbols string
	lastData    string
}

// Compile implements engine.Native.
func (f *Fake) Compile(_ context.Context, source, symbolsJSON string) (engine.Handle, engine.Str, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compileN++
	f.lastSymbols = symbolsJSON

	reply := CompileReply{OK: true}
	if f.CompileFunc != nil {
		reply = f.CompileFunc(source, symbolsJSON)
	}
	if !reply.OK {
		return 0, f.newStrLocked(reply.ErrMsg), nil
	}
	f.nextHandle++
	return f.nextHandle, 0, nil
}

// Evaluate implements engine.Native.
func (f *Fake) Evaluate(_ context.Context, h engine.Handle, dataJSON string) (engine.Str, engine.Str, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluateN++
	f.lastData = dataJSON

	reply := EvalReply{OK: true, Result: "null"}
	if f.EvaluateFunc != nil {
		reply = f.EvaluateFunc(h, dataJSON)
	}
	if !reply.OK {
		return 0, f.newStrLocked(reply.ErrMsg), nil
	}
	return f.mustNewStrLocked(reply.Result), 0, nil
}

// FreeProgram implements engine.Native, recording every release so tests
// can assert at-most-once semantics.
func (f *Fake) FreeProgram(_ context.Context, h engine.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progFrees == nil {
		f.progFrees = make(map[engine.Handle]int)
	}
	f.progFrees[h]++
}

// FreeString implements engine.Native.
func (f *Fake) FreeString(_ context.Context, s engine.Str) {
	if s == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.freedStr == nil {
		f.freedStr = make(map[engine.Str]int)
	}
	f.freedStr[s]++
	delete(f.strings, s)
}

// ReadString implements engine.Native. Reading a freed or unknown string
// fails, mirroring a real use-after-free.
func (f *Fake) ReadString(s engine.Str) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.strings[s]
	if !ok {
		return "", fmt.Errorf("read of unknown or freed string %d", s)
	}
	return text, nil
}

// newStrLocked allocates a string, or returns the zero Str for an empty
// message (an engine that produced no error text).
func (f *Fake) newStrLocked(s string) engine.Str {
	if s == "" {
		return 0
	}
	return f.mustNewStrLocked(s)
}

// mustNewStrLocked allocates a string even when empty, modelling an engine
// returning a zero-length success payload.
func (f *Fake) mustNewStrLocked(s string) engine.Str {
	if f.strings == nil {
		f.strings = make(map[engine.Str]string)
	}
	f.nextStr++
	f.strings[f.nextStr] = s
	return f.nextStr
}

// CompileCalls returns how many times Compile was invoked.
func (f *Fake) CompileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compileN
}

// EvaluateCalls returns how many times Evaluate was invoked.
func (f *Fake) EvaluateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evaluateN
}

// LastSymbolsJSON returns the symbols payload of the most recent Compile.
func (f *Fake) LastSymbolsJSON() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSymbols
}

// LastDataJSON returns the data payload of the most recent Evaluate.
func (f *Fake) LastDataJSON() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastData
}

// ProgramFrees returns how often the given handle was released.
func (f *Fake) ProgramFrees(h engine.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progFrees[h]
}

// LiveStrings returns the number of engine strings not yet released. A
// nonzero value after a completed operation is a leak.
func (f *Fake) LiveStrings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.strings)
}

// DoubleFrees returns the number of strings released more than once.
func (f *Fake) DoubleFrees() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.freedStr {
		if c > 1 {
			n++
		}
	}
	return n
}
