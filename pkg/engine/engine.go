// Package engine reaches the Amoskeag expression engine through its
// four-entry-point ABI.
//
// The engine is a black box: a WASI build of the native library exporting
// the C interface below plus the conventional malloc/free pair the host
// uses to stage strings into linear memory. This package drives it with
// wazero. The Native interface mirrors the ABI so tests can substitute a
// stub engine without any WebAssembly involved.
package engine

import "context"

// Exported function names of the engine module.
const (
	// ExportCompile compiles source with optional symbols.
	// Signature: amoskeag_compile(source: i32, symbols_json: i32, error_out: i32) -> i32 (program, 0 on error)
	ExportCompile = "amoskeag_compile"

	// ExportEvaluate evaluates a compiled program against a data context.
	// Signature: amoskeag_evaluate(program: i32, data_json: i32, error_out: i32) -> i32 (result string, 0 on error)
	ExportEvaluate = "amoskeag_evaluate"

	// ExportFreeProgram releases a compiled program.
	// Signature: amoskeag_program_free(program: i32) -> void
	ExportFreeProgram = "amoskeag_program_free"

	// ExportFreeString releases a string returned by the engine.
	// Signature: amoskeag_string_free(s: i32) -> void
	ExportFreeString = "amoskeag_string_free"

	// ExportMalloc allocates engine linear memory for host-staged strings.
	// Signature: malloc(size: i32) -> i32 (pointer, 0 on failure)
	ExportMalloc = "malloc"

	// ExportFree releases memory allocated through ExportMalloc.
	// Signature: free(ptr: i32) -> void
	ExportFree = "free"
)

// Handle identifies a compiled program inside the engine. Zero is never a
// valid handle: it is the ABI's failure signal.
type Handle uint64

// Str points at a NUL-terminated string in engine memory. Zero means the
// engine returned no string. A Str is owned by the caller from the moment
// it is returned and must be released through FreeString exactly once.
type Str uint32

// Native is the boundary interface of the expression engine. Every call is
// synchronous and blocks until the engine returns.
//
// Compile and Evaluate return a non-nil error only for host-side transport
// failures (a trap, a closed engine); engine-side failures are signalled by
// a zero handle or result, optionally paired with an error Str the caller
// must take ownership of.
type Native interface {
	// Compile builds a program from source. symbolsJSON is a JSON array of
	// symbol names, or empty for none.
	Compile(ctx context.Context, source, symbolsJSON string) (Handle, Str, error)

	// Evaluate runs a compiled program against a JSON object payload and
	// returns the result string.
	Evaluate(ctx context.Context, h Handle, dataJSON string) (result Str, errStr Str, err error)

	// FreeProgram releases a program. Safe to call at most once per handle.
	FreeProgram(ctx context.Context, h Handle)

	// FreeString releases a string returned by the engine. Safe to call at
	// most once per Str; a zero Str is a no-op.
	FreeString(ctx context.Context, s Str)

	// ReadString copies the NUL-terminated string at s out of engine
	// memory. It does not release s.
	ReadString(s Str) (string, error)
}
