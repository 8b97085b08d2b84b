package llsd

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"
)

// EncodeBinary renders a Value in a compact binary notation, used for
// persisted blobs (script/session state) rather than the JSON wire
// dialect capability bodies use. Built directly on msgp's low-level
// writer, matching script/persist.go's envelope codec rather than
// generating per-type (En|De)codeMsg methods for a handful of variant
// shapes.
func EncodeBinary(v Value) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := encodeBinary(w, v); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBinary reverses EncodeBinary.
func DecodeBinary(raw []byte) (Value, error) {
	r := msgp.NewReader(bytes.NewReader(raw))
	return decodeBinary(r)
}

func encodeBinary(w *msgp.Writer, v Value) error {
	if err := w.WriteByte(byte(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case KindUndef:
		return nil
	case KindBool:
		return w.WriteBool(v.Bool)
	case KindInt:
		return w.WriteInt32(v.Int)
	case KindReal:
		return w.WriteFloat64(v.Real)
	case KindUUID:
		return w.WriteBytes(v.UUID[:])
	case KindString, KindURI:
		return w.WriteString(v.Str)
	case KindBinary:
		return w.WriteBytes(v.Binary)
	case KindArray:
		if err := w.WriteArrayHeader(uint32(len(v.Arr))); err != nil {
			return err
		}
		for _, e := range v.Arr {
			if err := encodeBinary(w, e); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		if err := w.WriteMapHeader(uint32(len(v.Map))); err != nil {
			return err
		}
		for k, e := range v.Map {
			if err := w.WriteString(k); err != nil {
				return err
			}
			if err := encodeBinary(w, e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("llsd: cannot encode kind %v", v.Kind)
	}
}

func decodeBinary(r *msgp.Reader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	kind := Kind(tag)
	switch kind {
	case KindUndef:
		return Undef(), nil
	case KindBool:
		b, err := r.ReadBool()
		return Bool(b), err
	case KindInt:
		n, err := r.ReadInt32()
		return Int(n), err
	case KindReal:
		f, err := r.ReadFloat64()
		return Real(f), err
	case KindUUID:
		b, err := r.ReadBytes(nil)
		if err != nil {
			return Value{}, err
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return Value{}, err
		}
		return UUID(id), nil
	case KindString:
		s, err := r.ReadString()
		return String(s), err
	case KindURI:
		s, err := r.ReadString()
		return URI(s), err
	case KindBinary:
		b, err := r.ReadBytes(nil)
		return Binary(b), err
	case KindArray:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, n)
		for i := uint32(0); i < n; i++ {
			e, err := decodeBinary(r)
			if err != nil {
				return Value{}, err
			}
			out[i] = e
		}
		return Array(out...), nil
	case KindMap:
		n, err := r.ReadMapHeader()
		if err != nil {
			return Value{}, err
		}
		out := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			k, err := r.ReadString()
			if err != nil {
				return Value{}, err
			}
			e, err := decodeBinary(r)
			if err != nil {
				return Value{}, err
			}
			out[k] = e
		}
		return Map(out), nil
	default:
		return Value{}, fmt.Errorf("llsd: unknown binary kind tag %d", tag)
	}
}
