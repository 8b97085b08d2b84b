package world

import (
	"encoding/binary"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn"
)

// ExtraParams wraps a Prim's framed TLV blob: leading byte is the entry
// count, each entry is a 2-byte type, a 4-byte little-endian length, and
// the payload bytes. Operations never leave the blob partially written:
// a failed Set/Delete returns the prior bytes untouched.

type extraEntry struct {
	typ  uint16
	data []byte
}

func decodeExtraParams(blob []byte) ([]extraEntry, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	count := int(blob[0])
	entries := make([]extraEntry, 0, count)
	off := 1
	for i := 0; i < count; i++ {
		if off+6 > len(blob) {
			return nil, cmn.NewValidation("extra-params: truncated header")
		}
		typ := binary.LittleEndian.Uint16(blob[off:])
		ln := binary.LittleEndian.Uint32(blob[off+2:])
		off += 6
		if off+int(ln) > len(blob) {
			return nil, cmn.NewValidation("extra-params: truncated payload")
		}
		entries = append(entries, extraEntry{typ: typ, data: blob[off : off+int(ln)]})
		off += int(ln)
	}
	return entries, nil
}

func encodeExtraParams(entries []extraEntry) ([]byte, error) {
	if len(entries) > apc.MaxExtraParams {
		return nil, cmn.NewValidation("extra-params: too many entries")
	}
	size := 1
	for _, e := range entries {
		size += 6 + len(e.data)
	}
	if size > apc.MaxExtraParamsSize {
		return nil, cmn.NewValidation("extra-params: blob too large")
	}
	buf := make([]byte, size)
	buf[0] = byte(len(entries))
	off := 1
	for _, e := range entries {
		binary.LittleEndian.PutUint16(buf[off:], e.typ)
		binary.LittleEndian.PutUint32(buf[off+2:], uint32(len(e.data)))
		off += 6
		copy(buf[off:], e.data)
		off += len(e.data)
	}
	return buf, nil
}

// GetExtraParam returns the payload for typ, or ok=false if absent.
func (p *Prim) GetExtraParam(typ uint16) (data []byte, ok bool) {
	entries, err := decodeExtraParams(p.ExtraParams)
	if err != nil {
		return nil, false
	}
	for _, e := range entries {
		if e.typ == typ {
			return e.data, true
		}
	}
	return nil, false
}

// SetExtraParam inserts or replaces an entry. Rejects the update (without
// touching the existing blob) if it would exceed the 255-entry or
// 4096-byte limits.
func (p *Prim) SetExtraParam(typ uint16, data []byte) error {
	entries, err := decodeExtraParams(p.ExtraParams)
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].typ == typ {
			entries[i].data = data
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, extraEntry{typ: typ, data: data})
	}
	blob, err := encodeExtraParams(entries)
	if err != nil {
		return err
	}
	p.ExtraParams = blob
	return nil
}

// DeleteExtraParam removes an entry if present; absent is a no-op, not an
// error.
func (p *Prim) DeleteExtraParam(typ uint16) error {
	entries, err := decodeExtraParams(p.ExtraParams)
	if err != nil {
		return err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.typ != typ {
			out = append(out, e)
		}
	}
	blob, err := encodeExtraParams(out)
	if err != nil {
		return err
	}
	p.ExtraParams = blob
	return nil
}
