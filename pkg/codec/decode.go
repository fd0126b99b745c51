package codec

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/durable-oss/amoskeag/pkg/bounds"
	"github.com/durable-oss/amoskeag/pkg/types"
)

// Decode parses JSON text returned by the engine into a Value. Object entry
// order is preserved. Numbers become integers when they parse exactly as
// int64, floats otherwise. An object holding exactly the reserved symbol
// key with a string value decodes to a symbol; the reserved key with a
// non-string value is a format error.
func Decode(data []byte, limits bounds.Limits) (types.Value, error) {
	if len(data) == 0 {
		return types.Value{}, types.NewError(types.ErrFormat, "empty JSON payload")
	}
	if err := limits.CheckPayload(len(data)); err != nil {
		return types.Value{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec, limits, 0)
	if err != nil {
		return types.Value{}, err
	}
	if dec.More() {
		return types.Value{}, types.NewError(types.ErrFormat, "trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, limits bounds.Limits, depth int) (types.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return types.Value{}, types.Errorf(types.ErrFormat, "invalid JSON: %v", err).WithCause(err)
	}
	return decodeToken(dec, tok, limits, depth)
}

func decodeToken(dec *json.Decoder, tok json.Token, limits bounds.Limits, depth int) (types.Value, error) {
	switch t := tok.(type) {
	case nil:
		return types.Null(), nil
	case bool:
		return types.Bool(t), nil
	case string:
		return types.String(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return types.Int(i), nil
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return types.Value{}, types.Errorf(types.ErrFormat, "invalid number %q", string(t))
		}
		return types.Float(f), nil
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec, limits, depth)
		case '{':
			return decodeObject(dec, limits, depth)
		}
	}
	return types.Value{}, types.Errorf(types.ErrFormat, "unexpected JSON token %v", tok)
}

func decodeArray(dec *json.Decoder, limits bounds.Limits, depth int) (types.Value, error) {
	d := depth + 1
	if err := limits.CheckDepth(d); err != nil {
		return types.Value{}, err
	}
	var items []types.Value
	for dec.More() {
		item, err := decodeValue(dec, limits, d)
		if err != nil {
			return types.Value{}, err
		}
		items = append(items, item)
		if err := limits.CheckArray(len(items)); err != nil {
			return types.Value{}, err
		}
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return types.Value{}, types.Errorf(types.ErrFormat, "invalid JSON: %v", err).WithCause(err)
	}
	return types.Array(items...), nil
}

func decodeObject(dec *json.Decoder, limits bounds.Limits, depth int) (types.Value, error) {
	d := depth + 1
	if err := limits.CheckDepth(d); err != nil {
		return types.Value{}, err
	}
	var entries []types.Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return types.Value{}, types.Errorf(types.ErrFormat, "invalid JSON: %v", err).WithCause(err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return types.Value{}, types.Errorf(types.ErrFormat, "object key is not a string: %v", keyTok)
		}
		val, err := decodeValue(dec, limits, d)
		if err != nil {
			return types.Value{}, err
		}
		entries = append(entries, types.StringKey(key, val))
		if err := limits.CheckMap(len(entries)); err != nil {
			return types.Value{}, err
		}
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return types.Value{}, types.Errorf(types.ErrFormat, "invalid JSON: %v", err).WithCause(err)
	}

	// A single reserved entry is the symbol marker, never a map.
	if len(entries) == 1 && entries[0].Key.Str() == SymbolKey {
		val := entries[0].Val
		if val.Kind() != types.KindString {
			return types.Value{}, types.Errorf(types.ErrFormat, "%s value must be a string, got %s", SymbolKey, val.Kind())
		}
		return types.Sym(val.Str()), nil
	}
	return types.Map(entries...), nil
}
