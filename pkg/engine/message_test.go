package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durable-oss/amoskeag/pkg/engine"
)

// recorder is a minimal Native capturing string ownership traffic for the
// translator tests. Compile/Evaluate are never called here.
type recorder struct {
	strings map[engine.Str]string
	freed   map[engine.Str]int
	readErr error
}

func newRecorder() *recorder {
	return &recorder{
		strings: make(map[engine.Str]string),
		freed:   make(map[engine.Str]int),
	}
}

func (r *recorder) put(s engine.Str, text string) {
	r.strings[s] = text
}

func (r *recorder) Compile(context.Context, string, string) (engine.Handle, engine.Str, error) {
	panic("not used")
}

func (r *recorder) Evaluate(context.Context, engine.Handle, string) (engine.Str, engine.Str, error) {
	panic("not used")
}

func (r *recorder) FreeProgram(context.Context, engine.Handle) {}

func (r *recorder) FreeString(_ context.Context, s engine.Str) {
	if s == 0 {
		return
	}
	r.freed[s]++
	delete(r.strings, s)
}

func (r *recorder) ReadString(s engine.Str) (string, error) {
	if r.readErr != nil {
		return "", r.readErr
	}
	text, ok := r.strings[s]
	if !ok {
		return "", errors.New("unknown string")
	}
	return text, nil
}

func TestTakeMessageReadsBeforeRelease(t *testing.T) {
	r := newRecorder()
	r.put(7, "syntax error at position 3")

	msg := engine.TakeMessage(context.Background(), r, 7, "fallback")
	require.Equal(t, "syntax error at position 3", msg)
	require.Equal(t, 1, r.freed[7])
}

func TestTakeMessageZeroStr(t *testing.T) {
	r := newRecorder()
	msg := engine.TakeMessage(context.Background(), r, 0, "compilation failed")
	require.Equal(t, "compilation failed", msg)
	require.Empty(t, r.freed)
}

func TestTakeMessageUnreadable(t *testing.T) {
	r := newRecorder()
	r.put(3, "lost")
	r.readErr = errors.New("memory fault")

	// The fallback replaces the unreadable message, and the release still
	// happens exactly once.
	msg := engine.TakeMessage(context.Background(), r, 3, "evaluation failed")
	require.Equal(t, "evaluation failed", msg)
	require.Equal(t, 1, r.freed[3])
}

func TestTakeMessageEmptyMessage(t *testing.T) {
	r := newRecorder()
	r.put(9, "")

	msg := engine.TakeMessage(context.Background(), r, 9, "fallback")
	require.Equal(t, "fallback", msg)
	require.Equal(t, 1, r.freed[9])
}

func TestTakeStringReleasesOnSuccess(t *testing.T) {
	r := newRecorder()
	r.put(4, `{"ok":true}`)

	text, err := engine.TakeString(context.Background(), r, 4)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, text)
	require.Equal(t, 1, r.freed[4])
}

func TestTakeStringReleasesOnReadFailure(t *testing.T) {
	r := newRecorder()
	r.put(5, "result")
	r.readErr = errors.New("memory fault")

	_, err := engine.TakeString(context.Background(), r, 5)
	require.Error(t, err)
	require.Equal(t, 1, r.freed[5])
}
