package script

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"
)

// envelope frames one script's persisted state: its identity plus the
// VM-opaque blob from Script.VM.Save(). The simstate writer (package
// persist) embeds this as the payload of one SCRIPT_V1 record per loaded
// script.
type envelope struct {
	ID     uuid.UUID
	PrimID uuid.UUID
	ItemID uuid.UUID
	Blob   []byte
}

// EncodeEnvelope writes a script's save state using msgp's low-level
// writer directly, rather than generated (DecodeMsg/EncodeMsg) methods,
// since the envelope shape is small and fixed.
func EncodeEnvelope(id, primID, itemID uuid.UUID, blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := w.WriteMapHeader(4); err != nil {
		return nil, err
	}
	for _, kv := range []struct {
		key string
		val []byte
	}{
		{"id", id[:]},
		{"prim_id", primID[:]},
		{"item_id", itemID[:]},
	} {
		if err := w.WriteString(kv.key); err != nil {
			return nil, err
		}
		if err := w.WriteBytes(kv.val); err != nil {
			return nil, err
		}
	}
	if err := w.WriteString("blob"); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(blob); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEnvelope reverses EncodeEnvelope.
func DecodeEnvelope(raw []byte) (env envelope, err error) {
	r := msgp.NewReader(bytes.NewReader(raw))
	n, err := r.ReadMapHeader()
	if err != nil {
		return env, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return env, err
		}
		switch key {
		case "id":
			b, err := r.ReadBytes(nil)
			if err != nil {
				return env, err
			}
			env.ID, err = uuid.FromBytes(b)
			if err != nil {
				return env, err
			}
		case "prim_id":
			b, err := r.ReadBytes(nil)
			if err != nil {
				return env, err
			}
			env.PrimID, err = uuid.FromBytes(b)
			if err != nil {
				return env, err
			}
		case "item_id":
			b, err := r.ReadBytes(nil)
			if err != nil {
				return env, err
			}
			env.ItemID, err = uuid.FromBytes(b)
			if err != nil {
				return env, err
			}
		case "blob":
			env.Blob, err = r.ReadBytes(nil)
			if err != nil {
				return env, err
			}
		default:
			if err := r.Skip(); err != nil {
				return env, err
			}
		}
	}
	return env, nil
}

// SaveAll walks every loaded script and returns one encoded envelope per
// script, for the persist writer to frame into simstate records.
func (h *Host) SaveAll() (map[uuid.UUID][]byte, error) {
	h.mu.Lock()
	ids := make([]uuid.UUID, 0, len(h.scripts))
	for id, s := range h.scripts {
		ids = append(ids, id)
		_ = s
	}
	h.mu.Unlock()

	out := make(map[uuid.UUID][]byte, len(ids))
	for _, id := range ids {
		blob, err := h.SaveScript(id)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		s := h.scripts[id]
		h.mu.Unlock()
		if s == nil {
			continue
		}
		enc, err := EncodeEnvelope(s.ID, s.PrimID, s.ItemID, blob)
		if err != nil {
			return nil, err
		}
		out[id] = enc
	}
	return out, nil
}

// RestoreAll loads a batch of previously encoded envelopes, each becoming
// a RESTORE_SCRIPT message; every restored script gets the implicit
// changed(REGION_START) event queued by handleIncoming.
func (h *Host) RestoreAll(raws [][]byte) error {
	for _, raw := range raws {
		env, err := DecodeEnvelope(raw)
		if err != nil {
			return err
		}
		h.RestoreScript(env.ID, env.Blob)
	}
	return nil
}
