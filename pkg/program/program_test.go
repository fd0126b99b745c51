package program_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durable-oss/amoskeag/pkg/bounds"
	"github.com/durable-oss/amoskeag/pkg/engine"
	"github.com/durable-oss/amoskeag/pkg/engine/enginetest"
	"github.com/durable-oss/amoskeag/pkg/program"
	"github.com/durable-oss/amoskeag/pkg/types"
)

func compile(t *testing.T, fake *enginetest.Fake, source string, symbols []string) *program.Program {
	t.Helper()
	prog, err := program.Compile(context.Background(), fake, source, symbols, bounds.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Close() })
	return prog
}

func TestCompileEvaluateHappyPath(t *testing.T) {
	fake := &enginetest.Fake{
		EvaluateFunc: func(_ engine.Handle, dataJSON string) enginetest.EvalReply {
			require.Equal(t, `{"x":2,"y":3}`, dataJSON)
			return enginetest.EvalReply{OK: true, Result: "5"}
		},
	}
	prog := compile(t, fake, "x + y", []string{"x", "y"})
	require.Equal(t, `["x","y"]`, fake.LastSymbolsJSON())

	result, err := prog.Evaluate(context.Background(), map[string]any{"x": 2, "y": 3})
	require.NoError(t, err)
	require.Equal(t, int64(5), result)

	require.Zero(t, fake.LiveStrings(), "engine strings leaked")
	require.Zero(t, fake.DoubleFrees())
}

func TestCompileEmptySource(t *testing.T) {
	fake := &enginetest.Fake{}
	_, err := program.Compile(context.Background(), fake, "", nil, bounds.Default())
	require.True(t, types.IsCode(err, types.ErrArgument), "got %v", err)
	require.Zero(t, fake.CompileCalls(), "empty source must be rejected before the engine")
}

func TestCompileNilEngine(t *testing.T) {
	_, err := program.Compile(context.Background(), nil, "x", nil, bounds.Default())
	require.True(t, types.IsCode(err, types.ErrArgument), "got %v", err)
}

func TestCompileSourceCeiling(t *testing.T) {
	fake := &enginetest.Fake{}
	limits := bounds.Default()
	limits.MaxSourceBytes = 4
	_, err := program.Compile(context.Background(), fake, "12345", nil, limits)
	require.True(t, types.IsCode(err, types.ErrLimit), "got %v", err)
	require.Zero(t, fake.CompileCalls())
}

func TestCompileSymbolsCeiling(t *testing.T) {
	symbols := make([]string, bounds.DefaultMaxSymbols+1)
	for i := range symbols {
		symbols[i] = "s"
	}
	fake := &enginetest.Fake{}
	_, err := program.Compile(context.Background(), fake, "x", symbols, bounds.Default())
	require.True(t, types.IsCode(err, types.ErrLimit), "got %v", err)
	require.Zero(t, fake.CompileCalls())
}

func TestCompileFailureCarriesNativeMessage(t *testing.T) {
	fake := &enginetest.Fake{
		CompileFunc: func(string, string) enginetest.CompileReply {
			return enginetest.CompileReply{ErrMsg: "unexpected token '+' at position 4"}
		},
	}
	_, err := program.Compile(context.Background(), fake, "x +", nil, bounds.Default())
	require.True(t, types.IsCode(err, types.ErrCompile), "got %v", err)
	require.Contains(t, err.Error(), "unexpected token '+' at position 4")
	require.Zero(t, fake.LiveStrings(), "error string leaked")
}

func TestCompileFailureWithoutMessage(t *testing.T) {
	fake := &enginetest.Fake{
		CompileFunc: func(string, string) enginetest.CompileReply {
			return enginetest.CompileReply{} // failure, no message
		},
	}
	_, err := program.Compile(context.Background(), fake, "x", nil, bounds.Default())
	require.True(t, types.IsCode(err, types.ErrCompile), "got %v", err)
	require.Contains(t, err.Error(), "compilation failed")
}

func TestEvaluateAfterDispose(t *testing.T) {
	fake := &enginetest.Fake{}
	prog := compile(t, fake, "x", nil)
	require.False(t, prog.Disposed())
	require.NoError(t, prog.Close())
	require.True(t, prog.Disposed())

	_, err := prog.Evaluate(context.Background(), map[string]any{"x": 1})
	require.True(t, types.IsCode(err, types.ErrContract), "got %v", err)
	require.Zero(t, fake.EvaluateCalls(), "disposed handle must never reach the engine")
}

func TestIdempotentDispose(t *testing.T) {
	fake := &enginetest.Fake{}
	prog := compile(t, fake, "x", nil)
	require.NoError(t, prog.Close())
	require.NoError(t, prog.Close())
	require.NoError(t, prog.Close())
	require.Equal(t, 1, fake.ProgramFrees(1), "handle must be released exactly once")
}

func TestEvaluateEmptyResult(t *testing.T) {
	fake := &enginetest.Fake{
		EvaluateFunc: func(engine.Handle, string) enginetest.EvalReply {
			return enginetest.EvalReply{OK: true, Result: ""}
		},
	}
	prog := compile(t, fake, "x", nil)
	_, err := prog.Evaluate(context.Background(), map[string]any{})
	require.True(t, types.IsCode(err, types.ErrEval), "got %v", err)
	require.Contains(t, err.Error(), "empty result")
	require.Zero(t, fake.LiveStrings(), "result string leaked")
}

func TestEvaluateFailureCarriesNativeMessage(t *testing.T) {
	fake := &enginetest.Fake{
		EvaluateFunc: func(engine.Handle, string) enginetest.EvalReply {
			return enginetest.EvalReply{ErrMsg: "undefined symbol: z"}
		},
	}
	prog := compile(t, fake, "z", nil)
	_, err := prog.Evaluate(context.Background(), map[string]any{})
	require.True(t, types.IsCode(err, types.ErrEval), "got %v", err)
	require.Contains(t, err.Error(), "undefined symbol: z")
	require.Zero(t, fake.LiveStrings())
}

func TestEvaluateFailureWithoutMessage(t *testing.T) {
	fake := &enginetest.Fake{
		EvaluateFunc: func(engine.Handle, string) enginetest.EvalReply {
			return enginetest.EvalReply{}
		},
	}
	prog := compile(t, fake, "x", nil)
	_, err := prog.Evaluate(context.Background(), map[string]any{})
	require.True(t, types.IsCode(err, types.ErrEval), "got %v", err)
	require.Contains(t, err.Error(), "evaluation failed")
}

func TestEvaluateArgumentChecks(t *testing.T) {
	fake := &enginetest.Fake{}
	prog := compile(t, fake, "x", nil)

	_, err := prog.Evaluate(context.Background(), nil)
	require.True(t, types.IsCode(err, types.ErrArgument), "nil data: got %v", err)

	_, err = prog.Evaluate(context.Background(), []any{1, 2})
	require.True(t, types.IsCode(err, types.ErrArgument), "non-map data: got %v", err)

	_, err = prog.Evaluate(context.Background(), map[any]any{3: "x"})
	require.True(t, types.IsCode(err, types.ErrType), "bad key: got %v", err)

	require.Zero(t, fake.EvaluateCalls(), "invalid data must be rejected before the engine")
}

func TestEvaluateDecodesSymbols(t *testing.T) {
	fake := &enginetest.Fake{
		EvaluateFunc: func(engine.Handle, string) enginetest.EvalReply {
			return enginetest.EvalReply{OK: true, Result: `{"status":{"__symbol__":"active"},"count":2}`}
		},
	}
	prog := compile(t, fake, "x", nil)
	result, err := prog.Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)

	m, ok := result.(map[string]any)
	require.True(t, ok, "result is %T", result)
	require.Equal(t, types.Symbol("active"), m["status"])
	require.Equal(t, int64(2), m["count"])
}

func TestEvaluateEncodesSymbolsInData(t *testing.T) {
	fake := &enginetest.Fake{}
	prog := compile(t, fake, "x", nil)
	_, err := prog.Evaluate(context.Background(), map[string]any{
		"role": types.Symbol("admin"),
	})
	require.NoError(t, err)
	require.Equal(t, `{"role":{"__symbol__":"admin"}}`, fake.LastDataJSON())
}

func TestEvaluateMalformedEngineResult(t *testing.T) {
	fake := &enginetest.Fake{
		EvaluateFunc: func(engine.Handle, string) enginetest.EvalReply {
			return enginetest.EvalReply{OK: true, Result: `{"broken":`}
		},
	}
	prog := compile(t, fake, "x", nil)
	_, err := prog.Evaluate(context.Background(), map[string]any{})
	require.True(t, types.IsCode(err, types.ErrFormat), "got %v", err)
	require.Zero(t, fake.LiveStrings())
}
