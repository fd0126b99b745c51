package codec

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/durable-oss/amoskeag/pkg/bounds"
	"github.com/durable-oss/amoskeag/pkg/types"
)

// Encode serializes a Value to JSON text for the engine. Containers are
// walked depth-first with the bounds guard applied at every level; symbols
// become the reserved marker object; symbol map keys flatten to their name,
// exactly as string keys do.
func Encode(v types.Value, limits bounds.Limits) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v, limits, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v types.Value, limits bounds.Limits, depth int) error {
	switch v.Kind() {
	case types.KindNull:
		buf.WriteString("null")
	case types.KindBool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case types.KindInt:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case types.KindFloat:
		return encodeFloat(buf, v.Float())
	case types.KindString:
		return encodeString(buf, v.Str())
	case types.KindSymbol:
		buf.WriteString(`{"` + SymbolKey + `":`)
		if err := encodeString(buf, v.Str()); err != nil {
			return err
		}
		buf.WriteByte('}')
	case types.KindArray:
		d := depth + 1
		if err := limits.CheckDepth(d); err != nil {
			return err
		}
		if err := limits.CheckArray(v.Len()); err != nil {
			return err
		}
		buf.WriteByte('[')
		for i, item := range v.Items() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item, limits, d); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case types.KindMap:
		d := depth + 1
		if err := limits.CheckDepth(d); err != nil {
			return err
		}
		if err := limits.CheckMap(v.Len()); err != nil {
			return err
		}
		buf.WriteByte('{')
		for i, e := range v.Entries() {
			if i > 0 {
				buf.WriteByte(',')
			}
			switch e.Key.Kind() {
			case types.KindString, types.KindSymbol:
				if err := encodeString(buf, e.Key.Str()); err != nil {
					return err
				}
			default:
				return types.Errorf(types.ErrType, "map key must be string or symbol, got %s", e.Key.Kind())
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, e.Val, limits, d); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return types.Errorf(types.ErrType, "unsupported value kind %d", v.Kind())
	}
	return nil
}

// encodeFloat writes a float in a form that decodes back to a float: whole
// values keep one fractional digit so they are not misread as integers.
func encodeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return types.NewError(types.ErrType, "cannot encode non-finite float")
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatFloat(f, 'f', 1, 64))
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return types.Errorf(types.ErrType, "cannot encode string: %v", err)
	}
	buf.Write(data)
	return nil
}
