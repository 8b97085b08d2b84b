// Package persist implements the simstate file layout: one file per
// region, a length-delimited stream of tagged, fixed-field binary
// records (prim/inventory/asset). The exact field layout — magic
// prefix, big-endian multi-byte integers, floats reinterpreted as u32 —
// is dictated by the original `cajeput_world.c` writer this format is
// ported from, so the low-level encoding here is a direct byte-for-byte
// port using stdlib `encoding/binary` rather than a general-purpose
// serialization library: no third-party codec in the retrieved pack
// speaks this exact magic-prefixed fixed-slot layout, and introducing
// one to write 8 field types would cost more than the straight port.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package persist

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/rezsim/rez/world"
)

// Magic values, big-endian u32, as specified by the original record
// layout.
const (
	MagicPrimV3 uint32 = 0x7385ad03
	MagicInvV1  uint32 = 0x45892401
	MagicAssetV1 uint32 = 0x2e3b6501
	magicEnd    uint32 = 0 // terminates a prim's inventory record run
)

// Writer is the low-level field writer every record type is built from.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Err returns the first error encountered by any Write call.
func (w *Writer) Err() error { return w.err }

func (w *Writer) WriteU8(v uint8) {
	if w.err != nil {
		return
	}
	_, err := w.w.Write([]byte{v})
	w.fail(err)
}

func (w *Writer) WriteU16(v uint16) {
	if w.err != nil {
		return
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.w.Write(buf[:])
	w.fail(err)
}

func (w *Writer) WriteU32(v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.w.Write(buf[:])
	w.fail(err)
}

func (w *Writer) WriteInt32(v int32) { w.WriteU32(uint32(v)) }

func (w *Writer) WriteFloat32(v float32) { w.WriteU32(math.Float32bits(v)) }

func (w *Writer) WriteVector3(v world.Vector3) {
	w.WriteFloat32(float32(v.X))
	w.WriteFloat32(float32(v.Y))
	w.WriteFloat32(float32(v.Z))
}

func (w *Writer) WriteQuat(q world.Quat) {
	w.WriteFloat32(float32(q.X))
	w.WriteFloat32(float32(q.Y))
	w.WriteFloat32(float32(q.Z))
	w.WriteFloat32(float32(q.W))
}

func (w *Writer) WriteUUID(id uuid.UUID) {
	if w.err != nil {
		return
	}
	_, err := w.w.Write(id[:])
	w.fail(err)
}

func (w *Writer) WriteString(s string) {
	w.WriteU16(uint16(len(s)))
	if w.err != nil {
		return
	}
	_, err := io.WriteString(w.w, s)
	w.fail(err)
}

func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	if w.err != nil {
		return
	}
	_, err := w.w.Write(b)
	w.fail(err)
}

// Reader is the symmetric low-level field reader.
type Reader struct {
	r   io.Reader
	err error
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) ReadU8() uint8 {
	if r.err != nil {
		return 0
	}
	var buf [1]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.fail(err)
		return 0
	}
	return buf[0]
}

func (r *Reader) ReadU16() uint16 {
	if r.err != nil {
		return 0
	}
	var buf [2]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.fail(err)
		return 0
	}
	return binary.BigEndian.Uint16(buf[:])
}

func (r *Reader) ReadU32() uint32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.fail(err)
		return 0
	}
	return binary.BigEndian.Uint32(buf[:])
}

func (r *Reader) ReadInt32() int32 { return int32(r.ReadU32()) }

func (r *Reader) ReadFloat32() float32 { return math.Float32frombits(r.ReadU32()) }

func (r *Reader) ReadVector3() world.Vector3 {
	x := r.ReadFloat32()
	y := r.ReadFloat32()
	z := r.ReadFloat32()
	return world.Vector3{X: float64(x), Y: float64(y), Z: float64(z)}
}

func (r *Reader) ReadQuat() world.Quat {
	x := r.ReadFloat32()
	y := r.ReadFloat32()
	z := r.ReadFloat32()
	w := r.ReadFloat32()
	return world.Quat{X: float64(x), Y: float64(y), Z: float64(z), W: float64(w)}
}

func (r *Reader) ReadUUID() uuid.UUID {
	var id uuid.UUID
	if r.err != nil {
		return id
	}
	if _, err := io.ReadFull(r.r, id[:]); err != nil {
		r.fail(err)
	}
	return id
}

func (r *Reader) ReadString() string {
	n := r.ReadU16()
	if r.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(err)
		return ""
	}
	return string(buf)
}

func (r *Reader) ReadBytes() []byte {
	n := r.ReadU32()
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(err)
		return nil
	}
	return buf
}

// ReadMagic consumes the next 4-byte record magic, used by the prim
// record reader to tell the 0-magic end-of-inventory sentinel apart from
// another nested inventory record.
func ReadMagic(r *Reader) (uint32, error) {
	m := r.ReadU32()
	if r.err != nil {
		return 0, fmt.Errorf("persist: reading magic: %w", r.err)
	}
	return m, nil
}
