// Package debug provides cheap, runtime-gated assertions in the style of
// AIStore's cmn/debug package.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package debug

import "fmt"

// Enabled toggles assertion checks at runtime; it defaults to true in
// every build. Kept as a var (rather than a build tag pair) so tests can
// flip it without a separate build.
var Enabled = true

func Assert(cond bool) {
	if Enabled && !cond {
		panic("assertion failed")
	}
}

func Assertf(cond bool, format string, a ...any) {
	if Enabled && !cond {
		panic(fmt.Sprintf(format, a...))
	}
}

func AssertNoErr(err error) {
	if Enabled && err != nil {
		panic("unexpected error: " + err.Error())
	}
}

func AssertMsg(cond bool, msg string) {
	if Enabled && !cond {
		panic(msg)
	}
}
