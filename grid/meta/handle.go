// Package meta holds the grid's addressing types, mirroring AIStore's
// cluster/meta package (its meta.Bck is the bucket identity that rez's
// Handle plays here).
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package meta

import "fmt"

// Handle is a region handle: a 64-bit value encoding a region's grid
// coordinates as x<<32 | y.
type Handle uint64

func NewHandle(x, y uint32) Handle {
	return Handle(uint64(x)<<32 | uint64(y))
}

func (h Handle) XY() (x, y uint32) {
	return uint32(h >> 32), uint32(h)
}

func (h Handle) String() string {
	x, y := h.XY()
	return fmt.Sprintf("%d,%d", x, y)
}

// RegionInfo is what the grid map knows about a peer region: its network
// endpoint and the seed capability a teleporting avatar will be handed.
type RegionInfo struct {
	Handle     Handle
	Name       string
	IP         string
	Port       uint16
	HTTPPort   uint16
	SeedCapURL string
}

func (r RegionInfo) Addr() string {
	return fmt.Sprintf("%s:%d", r.IP, r.Port)
}
