package llsd

import (
	"encoding/base64"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/google/uuid"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeJSON renders a Value as the tagged JSON wire form used over
// capability HTTP bodies: every node is `{"k":<kind>,"v":<payload>}` so
// that int/real/uuid/uri/binary survive a round trip instead of
// collapsing into plain JSON's untyped number/string.
func EncodeJSON(v Value) ([]byte, error) {
	return jsonAPI.Marshal(toWire(v))
}

// DecodeJSON parses the tagged JSON wire form back into a Value.
func DecodeJSON(data []byte) (Value, error) {
	var wire interface{}
	if err := jsonAPI.Unmarshal(data, &wire); err != nil {
		return Value{}, err
	}
	return fromWire(wire)
}

func toWire(v Value) map[string]interface{} {
	switch v.Kind {
	case KindUndef:
		return map[string]interface{}{"k": "undef"}
	case KindBool:
		return map[string]interface{}{"k": "bool", "v": v.Bool}
	case KindInt:
		return map[string]interface{}{"k": "int", "v": v.Int}
	case KindReal:
		return map[string]interface{}{"k": "real", "v": v.Real}
	case KindUUID:
		return map[string]interface{}{"k": "uuid", "v": v.UUID.String()}
	case KindString:
		return map[string]interface{}{"k": "string", "v": v.Str}
	case KindURI:
		return map[string]interface{}{"k": "uri", "v": v.Str}
	case KindBinary:
		return map[string]interface{}{"k": "binary", "v": v.Binary}
	case KindArray:
		arr := make([]interface{}, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = toWire(e)
		}
		return map[string]interface{}{"k": "array", "v": arr}
	case KindMap:
		m := make(map[string]interface{}, len(v.Map))
		for key, e := range v.Map {
			m[key] = toWire(e)
		}
		return map[string]interface{}{"k": "map", "v": m}
	default:
		return map[string]interface{}{"k": "undef"}
	}
}

func fromWire(x interface{}) (Value, error) {
	obj, ok := x.(map[string]interface{})
	if !ok {
		return Value{}, fmt.Errorf("llsd: expected a tagged object, got %T", x)
	}
	kind, _ := obj["k"].(string)
	payload := obj["v"]

	switch kind {
	case "undef":
		return Undef(), nil
	case "bool":
		b, _ := payload.(bool)
		return Bool(b), nil
	case "int":
		n, ok := payload.(float64)
		if !ok {
			return Value{}, fmt.Errorf("llsd: int payload not a number")
		}
		return Int(int32(n)), nil
	case "real":
		n, ok := payload.(float64)
		if !ok {
			return Value{}, fmt.Errorf("llsd: real payload not a number")
		}
		return Real(n), nil
	case "uuid":
		s, _ := payload.(string)
		id, err := uuid.Parse(s)
		if err != nil {
			return Value{}, fmt.Errorf("llsd: bad uuid %q: %w", s, err)
		}
		return UUID(id), nil
	case "string":
		s, _ := payload.(string)
		return String(s), nil
	case "uri":
		s, _ := payload.(string)
		return URI(s), nil
	case "binary":
		s, ok := payload.(string)
		if !ok {
			return Value{}, fmt.Errorf("llsd: binary payload not a base64 string")
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("llsd: bad base64 binary: %w", err)
		}
		return Binary(b), nil
	case "array":
		raw, _ := payload.([]interface{})
		out := make([]Value, len(raw))
		for i, e := range raw {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Array(out...), nil
	case "map":
		raw, _ := payload.(map[string]interface{})
		out := make(map[string]Value, len(raw))
		for key, e := range raw {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, err
			}
			out[key] = v
		}
		return Map(out), nil
	default:
		return Value{}, fmt.Errorf("llsd: unknown kind %q", kind)
	}
}

