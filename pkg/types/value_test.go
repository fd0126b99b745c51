package types_test

import (
	"testing"

	"github.com/durable-oss/amoskeag/pkg/types"
)

func TestKindNames(t *testing.T) {
	cases := map[types.Kind]string{
		types.KindNull:   "null",
		types.KindBool:   "bool",
		types.KindInt:    "int",
		types.KindFloat:  "float",
		types.KindString: "string",
		types.KindSymbol: "symbol",
		types.KindArray:  "array",
		types.KindMap:    "map",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		a, b types.Value
		want bool
	}{
		{types.Null(), types.Null(), true},
		{types.Null(), types.Bool(false), false},
		{types.Int(5), types.Int(5), true},
		{types.Int(5), types.Float(5), false}, // kinds never cross
		{types.String("a"), types.Sym("a"), false},
		{types.Sym("a"), types.Sym("a"), true},
		{
			types.Array(types.Int(1), types.Int(2)),
			types.Array(types.Int(1), types.Int(2)),
			true,
		},
		{
			types.Array(types.Int(1)),
			types.Array(types.Int(1), types.Int(2)),
			false,
		},
		{
			types.Map(types.StringKey("a", types.Int(1))),
			types.Map(types.StringKey("a", types.Int(1))),
			true,
		},
		{
			types.Map(types.StringKey("a", types.Int(1))),
			types.Map(types.SymbolKey("a", types.Int(1))),
			false, // key kinds differ
		},
	}
	for _, c := range cases {
		if got := c.a.Equal(c.b); got != c.want {
			t.Errorf("%s.Equal(%s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestInterface(t *testing.T) {
	v := types.Map(
		types.StringKey("n", types.Int(3)),
		types.StringKey("f", types.Float(0.5)),
		types.StringKey("s", types.Sym("sym")),
		types.StringKey("items", types.Array(types.String("x"), types.Null())),
	)
	got, ok := v.Interface().(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", v.Interface())
	}
	if got["n"] != int64(3) {
		t.Errorf("n = %#v", got["n"])
	}
	if got["f"] != 0.5 {
		t.Errorf("f = %#v", got["f"])
	}
	if got["s"] != types.Symbol("sym") {
		t.Errorf("s = %#v", got["s"])
	}
	items, ok := got["items"].([]any)
	if !ok || len(items) != 2 || items[0] != "x" || items[1] != nil {
		t.Errorf("items = %#v", got["items"])
	}
}

func TestLen(t *testing.T) {
	if got := types.Array(types.Int(1), types.Int(2)).Len(); got != 2 {
		t.Errorf("array len = %d", got)
	}
	if got := types.Map(types.StringKey("a", types.Null())).Len(); got != 1 {
		t.Errorf("map len = %d", got)
	}
	if got := types.Int(7).Len(); got != 0 {
		t.Errorf("scalar len = %d", got)
	}
}

func TestDebugString(t *testing.T) {
	v := types.Map(types.StringKey("a", types.Array(types.Sym("b"), types.Int(1))))
	if got := v.String(); got != `{"a":[:b,1]}` {
		t.Fatalf("debug string = %s", got)
	}
}
