package llsd

import "github.com/rezsim/rez/cmn/nlog"

// ParseLegacyBoolean parses an LLSD XML `<boolean>` text node using
// standard semantics ("1"/"true" => true, "0"/"false"/"" => false)
// rather than the original implementation's inverted v1 parsing ("0" was
// treated as true, "1" as false). A single text node cannot tell a
// legacy inverted document apart, so "0" and "1" always take the
// standard reading and are not logged; only text in neither form logs a
// warning, and it parses as false.
func ParseLegacyBoolean(text string) bool {
	switch text {
	case "1", "true", "True", "TRUE":
		return true
	case "0", "false", "False", "FALSE", "":
		return false
	default:
		nlog.Warningf("llsd: boolean text %q is neither standard form; defaulting to false", text)
		return false
	}
}
