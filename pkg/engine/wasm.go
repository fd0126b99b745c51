package engine

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/durable-oss/amoskeag/pkg/types"
)

// defaultMaxScanBytes caps how far ReadString scans for a terminator when
// the engine hands back a corrupt, unterminated buffer.
const defaultMaxScanBytes = 100 << 20

// readChunk is the granularity at which ReadString pulls engine memory.
const readChunk = 4096

// Module is a wazero-backed implementation of Native over a WASI build of
// the Amoskeag engine. A Module serializes all ABI calls internally: one
// WebAssembly instance is not reentrant. Callers wanting parallel
// evaluation load independent Modules.
type Module struct {
	mu           sync.Mutex
	runtime      wazero.Runtime
	mod          api.Module
	compile      api.Function
	evaluate     api.Function
	freeProgram  api.Function
	freeString   api.Function
	malloc       api.Function
	free         api.Function
	maxScanBytes uint32
	closed       bool
}

// LoadOption configures Load.
type LoadOption func(*Module)

// WithMaxStringBytes caps the size of any single string read out of engine
// memory. The default matches the payload ceiling of the bounds guard.
func WithMaxStringBytes(n uint32) LoadOption {
	return func(m *Module) {
		if n > 0 {
			m.maxScanBytes = n
		}
	}
}

// Load instantiates the engine from its WebAssembly bytes and resolves the
// six exports of the ABI. The returned Module owns the wazero runtime;
// release it with Close.
func Load(ctx context.Context, wasm []byte, opts ...LoadOption) (*Module, error) {
	if len(wasm) == 0 {
		return nil, types.NewError(types.ErrArgument, "engine module bytes are empty")
	}

	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	mod, err := r.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().
		WithName("amoskeag").
		WithStartFunctions("_initialize"))
	if err != nil {
		_ = r.Close(ctx)
		return nil, types.Errorf(types.ErrArgument, "cannot instantiate engine module: %v", err).WithCause(err)
	}

	m := &Module{
		runtime:      r,
		mod:          mod,
		maxScanBytes: defaultMaxScanBytes,
	}
	for _, opt := range opts {
		opt(m)
	}

	exports := []struct {
		name string
		dst  *api.Function
	}{
		{ExportCompile, &m.compile},
		{ExportEvaluate, &m.evaluate},
		{ExportFreeProgram, &m.freeProgram},
		{ExportFreeString, &m.freeString},
		{ExportMalloc, &m.malloc},
		{ExportFree, &m.free},
	}
	for _, e := range exports {
		fn := mod.ExportedFunction(e.name)
		if fn == nil {
			_ = r.Close(ctx)
			return nil, types.Errorf(types.ErrArgument, "engine module does not export %q", e.name)
		}
		*e.dst = fn
	}
	return m, nil
}

// Close releases the wazero runtime and every program still held by the
// engine. Idempotent.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.runtime.Close(ctx)
}

// Compile implements Native.
func (m *Module) Compile(ctx context.Context, source, symbolsJSON string) (Handle, Str, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, 0, types.NewError(types.ErrContract, "engine is closed")
	}

	srcPtr, err := m.writeCString(ctx, source)
	if err != nil {
		return 0, 0, err
	}
	defer m.freeHost(ctx, srcPtr)

	var symPtr uint32
	if symbolsJSON != "" {
		symPtr, err = m.writeCString(ctx, symbolsJSON)
		if err != nil {
			return 0, 0, err
		}
		defer m.freeHost(ctx, symPtr)
	}

	errOut, err := m.allocErrOut(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer m.freeHost(ctx, errOut)

	res, callErr := m.compile.Call(ctx, uint64(srcPtr), uint64(symPtr), uint64(errOut))
	if callErr != nil {
		return 0, 0, callErr
	}
	errPtr, _ := m.mod.Memory().ReadUint32Le(errOut)
	return Handle(uint32(res[0])), Str(errPtr), nil
}

// Evaluate implements Native.
func (m *Module) Evaluate(ctx context.Context, h Handle, dataJSON string) (Str, Str, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, 0, types.NewError(types.ErrContract, "engine is closed")
	}

	dataPtr, err := m.writeCString(ctx, dataJSON)
	if err != nil {
		return 0, 0, err
	}
	defer m.freeHost(ctx, dataPtr)

	errOut, err := m.allocErrOut(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer m.freeHost(ctx, errOut)

	res, callErr := m.evaluate.Call(ctx, uint64(h), uint64(dataPtr), uint64(errOut))
	if callErr != nil {
		return 0, 0, callErr
	}
	errPtr, _ := m.mod.Memory().ReadUint32Le(errOut)
	return Str(uint32(res[0])), Str(errPtr), nil
}

// FreeProgram implements Native.
func (m *Module) FreeProgram(ctx context.Context, h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || h == 0 {
		return
	}
	_, _ = m.freeProgram.Call(ctx, uint64(h))
}

// FreeString implements Native.
func (m *Module) FreeString(ctx context.Context, s Str) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || s == 0 {
		return
	}
	_, _ = m.freeString.Call(ctx, uint64(s))
}

// ReadString implements Native.
func (m *Module) ReadString(s Str) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", types.NewError(types.ErrContract, "engine is closed")
	}
	if s == 0 {
		return "", types.NewError(types.ErrArgument, "nil engine string")
	}

	mem := m.mod.Memory()
	var b strings.Builder
	ptr := uint32(s)
	for uint32(b.Len()) < m.maxScanBytes {
		n := uint32(readChunk)
		if remaining := m.maxScanBytes - uint32(b.Len()); n > remaining {
			n = remaining
		}
		chunk, ok := mem.Read(ptr, n)
		if !ok {
			// Shrink at the memory edge before declaring the read bad.
			if size := mem.Size(); ptr < size {
				chunk, ok = mem.Read(ptr, size-ptr)
			}
			if !ok {
				return "", types.NewError(types.ErrFormat, "engine string out of memory range")
			}
		}
		if idx := bytes.IndexByte(chunk, 0); idx >= 0 {
			b.Write(chunk[:idx])
			return b.String(), nil
		}
		b.Write(chunk)
		ptr += uint32(len(chunk))
		if uint32(len(chunk)) < n {
			return "", types.NewError(types.ErrFormat, "unterminated engine string")
		}
	}
	return "", types.Errorf(types.ErrLimit, "engine string exceeds %d bytes", m.maxScanBytes)
}

// writeCString stages s into engine memory as a NUL-terminated string and
// returns its pointer. The caller releases it with freeHost.
func (m *Module) writeCString(ctx context.Context, s string) (uint32, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return 0, types.NewError(types.ErrArgument, "string contains a NUL byte")
	}
	ptr, err := m.alloc(ctx, uint32(len(s))+1)
	if err != nil {
		return 0, err
	}
	mem := m.mod.Memory()
	if !mem.Write(ptr, []byte(s)) || !mem.WriteByte(ptr+uint32(len(s)), 0) {
		m.freeHost(ctx, ptr)
		return 0, types.NewError(types.ErrAlloc, "engine memory write out of range")
	}
	return ptr, nil
}

// allocErrOut stages a zeroed char** cell for the ABI's error_out channel.
func (m *Module) allocErrOut(ctx context.Context) (uint32, error) {
	ptr, err := m.alloc(ctx, 4)
	if err != nil {
		return 0, err
	}
	if !m.mod.Memory().WriteUint32Le(ptr, 0) {
		m.freeHost(ctx, ptr)
		return 0, types.NewError(types.ErrAlloc, "engine memory write out of range")
	}
	return ptr, nil
}

func (m *Module) alloc(ctx context.Context, n uint32) (uint32, error) {
	res, err := m.malloc.Call(ctx, uint64(n))
	if err != nil {
		return 0, types.Errorf(types.ErrAlloc, "engine malloc failed: %v", err).WithCause(err)
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, types.Errorf(types.ErrAlloc, "engine out of memory allocating %d bytes", n)
	}
	return ptr, nil
}

func (m *Module) freeHost(ctx context.Context, ptr uint32) {
	if ptr == 0 {
		return
	}
	_, _ = m.free.Call(ctx, uint64(ptr))
}
