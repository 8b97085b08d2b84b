// Package cos ("common OS/utility helpers") collects small utilities shared
// across rez, in the spirit of AIStore's cmn/cos package.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

// Module name constants, mirroring cos.Smodule* used for FastV gating.
const (
	SmoduleWorld    = "world"
	SmoduleScript   = "script"
	SmodulePhysics  = "physics"
	SmoduleSession  = "session"
	SmoduleFed      = "fed"
	SmoduleCaps     = "caps"
	SmodulePersist  = "persist"
)

// NewStableID mints a 128-bit stable object identity that never changes
// for the life of the object.
func NewStableID() uuid.UUID { return uuid.New() }

// NewLocalID mints a random 32-bit local id. Local ids are ephemeral:
// callers must tolerate a fresh value every time an object is (re)inserted
// into the world.
func NewLocalID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	v := binary.BigEndian.Uint32(b[:])
	if v == 0 {
		v = 1
	}
	return v
}

// NewCapabilitySegment mints an unguessable URL path segment for the
// capability router.
func NewCapabilitySegment() (string, error) {
	return shortid.Generate()
}

// Checksum32 returns the xxhash32 checksum of a byte slice, used for
// the integrity trailer on persisted simstate backup shards.
func Checksum32(b []byte) uint32 {
	h := xxhash.New32()
	_, _ = h.Write(b)
	return h.Sum32()
}

// ChecksumReader streams a reader through xxhash32, for large asset
// payloads that should not be buffered twice.
func ChecksumReader(r io.Reader) (uint32, error) {
	h := xxhash.New32()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// Clamp clamps a float64 into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
