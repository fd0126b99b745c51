package codec

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/durable-oss/amoskeag/pkg/bounds"
	"github.com/durable-oss/amoskeag/pkg/types"
)

// FromHost converts a host value into the neutral Value model, applying the
// bounds guard on the way down. Every host-specific type check of the
// binding lives here: past this point only Value kinds exist.
//
// Accepted host types: nil, bool, all signed and unsigned integer kinds,
// float32/float64, json.Number, string, types.Symbol, types.Value, []any,
// []string, map[string]any, map[types.Symbol]any and map[any]any with
// string/symbol keys. Map keys are sorted so the wire output is
// deterministic. Anything else is a type error naming the offending Go
// type.
func FromHost(v any, limits bounds.Limits) (types.Value, error) {
	return fromHost(v, limits, 0)
}

func fromHost(v any, limits bounds.Limits, depth int) (types.Value, error) {
	switch x := v.(type) {
	case nil:
		return types.Null(), nil
	case types.Value:
		return x, nil
	case bool:
		return types.Bool(x), nil
	case int:
		return types.Int(int64(x)), nil
	case int8:
		return types.Int(int64(x)), nil
	case int16:
		return types.Int(int64(x)), nil
	case int32:
		return types.Int(int64(x)), nil
	case int64:
		return types.Int(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return types.Int(int64(x)), nil
	case uint16:
		return types.Int(int64(x)), nil
	case uint32:
		return types.Int(int64(x)), nil
	case uint64:
		return uintValue(x)
	case float32:
		return types.Float(float64(x)), nil
	case float64:
		return types.Float(x), nil
	case json.Number:
		return numberValue(x)
	case string:
		return types.String(x), nil
	case types.Symbol:
		return types.Sym(string(x)), nil
	case []any:
		d := depth + 1
		if err := limits.CheckDepth(d); err != nil {
			return types.Value{}, err
		}
		if err := limits.CheckArray(len(x)); err != nil {
			return types.Value{}, err
		}
		items := make([]types.Value, len(x))
		for i, el := range x {
			iv, err := fromHost(el, limits, d)
			if err != nil {
				return types.Value{}, err
			}
			items[i] = iv
		}
		return types.Array(items...), nil
	case []string:
		d := depth + 1
		if err := limits.CheckDepth(d); err != nil {
			return types.Value{}, err
		}
		if err := limits.CheckArray(len(x)); err != nil {
			return types.Value{}, err
		}
		items := make([]types.Value, len(x))
		for i, s := range x {
			items[i] = types.String(s)
		}
		return types.Array(items...), nil
	case map[string]any:
		d := depth + 1
		if err := limits.CheckDepth(d); err != nil {
			return types.Value{}, err
		}
		if err := limits.CheckMap(len(x)); err != nil {
			return types.Value{}, err
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]types.Entry, 0, len(keys))
		for _, k := range keys {
			ev, err := fromHost(x[k], limits, d)
			if err != nil {
				return types.Value{}, err
			}
			entries = append(entries, types.StringKey(k, ev))
		}
		return types.Map(entries...), nil
	case map[types.Symbol]any:
		d := depth + 1
		if err := limits.CheckDepth(d); err != nil {
			return types.Value{}, err
		}
		if err := limits.CheckMap(len(x)); err != nil {
			return types.Value{}, err
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		entries := make([]types.Entry, 0, len(keys))
		for _, k := range keys {
			ev, err := fromHost(x[types.Symbol(k)], limits, d)
			if err != nil {
				return types.Value{}, err
			}
			entries = append(entries, types.SymbolKey(k, ev))
		}
		return types.Map(entries...), nil
	case map[any]any:
		return mixedKeyMap(x, limits, depth)
	default:
		return types.Value{}, types.Errorf(types.ErrType, "unsupported type for encoding: %T", v)
	}
}

// mixedKeyMap handles map[any]any, where each key must turn out to be a
// string or a symbol at runtime.
func mixedKeyMap(x map[any]any, limits bounds.Limits, depth int) (types.Value, error) {
	d := depth + 1
	if err := limits.CheckDepth(d); err != nil {
		return types.Value{}, err
	}
	if err := limits.CheckMap(len(x)); err != nil {
		return types.Value{}, err
	}
	type pair struct {
		name   string
		symbol bool
		val    any
	}
	pairs := make([]pair, 0, len(x))
	for k, v := range x {
		switch key := k.(type) {
		case string:
			pairs = append(pairs, pair{name: key, val: v})
		case types.Symbol:
			pairs = append(pairs, pair{name: string(key), symbol: true, val: v})
		default:
			return types.Value{}, types.Errorf(types.ErrType, "map key must be string or symbol, got %T", k)
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })
	entries := make([]types.Entry, 0, len(pairs))
	for _, p := range pairs {
		ev, err := fromHost(p.val, limits, d)
		if err != nil {
			return types.Value{}, err
		}
		if p.symbol {
			entries = append(entries, types.SymbolKey(p.name, ev))
		} else {
			entries = append(entries, types.StringKey(p.name, ev))
		}
	}
	return types.Map(entries...), nil
}

func uintValue(u uint64) (types.Value, error) {
	if u > math.MaxInt64 {
		return types.Value{}, types.Errorf(types.ErrType, "unsigned integer %d overflows int64", u)
	}
	return types.Int(int64(u)), nil
}

func numberValue(n json.Number) (types.Value, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return types.Int(i), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return types.Value{}, types.Errorf(types.ErrType, "invalid numeric literal %q", string(n))
	}
	return types.Float(f), nil
}
