// Package mono gives monotonic timestamps, in the style of AIStore's
// cmn/mono package.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since package init; always
// increasing, immune to wall-clock adjustment.
func NanoTime() int64 { return time.Since(start).Nanoseconds() }

// Since returns the duration elapsed since a NanoTime() reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
