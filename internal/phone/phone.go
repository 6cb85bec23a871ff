// Package phone normalizes raw phone numbers into directory lookup keys.
package phone

import "strings"

// NormalizeKey converts a raw phone-number string into the canonical
// E.164-style key used for directory lookups.
//
// A bare 10-digit number is assumed to be North American and gains a +1
// prefix. A number without a leading + (or an 11-character number) gains a
// bare + prefix. Anything else passes through unchanged; malformed input
// surfaces later as a directory miss rather than an error here.
func NormalizeKey(raw string) string {
	switch {
	case len(raw) == 10 && allDigits(raw):
		return "+1" + raw
	case !strings.Contains(raw, "+") || len(raw) == 11:
		return "+" + raw
	default:
		return raw
	}
}

// NormalizeKeys maps NormalizeKey over raw numbers, preserving order and
// dropping empty entries.
func NormalizeKeys(raws []string) []string {
	keys := make([]string, 0, len(raws))
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		keys = append(keys, NormalizeKey(raw))
	}
	return keys
}

func allDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
