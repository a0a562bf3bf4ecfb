// Package phone normalizes outbound destination numbers.
package phone

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

const defaultCountryCode = "91"

// strip drops whitespace and the separators people type into numbers.
func strip(r rune) rune {
	if unicode.IsSpace(r) || r == '(' || r == ')' || r == '-' {
		return -1
	}
	return r
}

// Normalize strips separators and applies the default-country policy: numbers
// without a leading '+' get "+91", or only "+" when they already start with "91".
//
// The policy is narrow: a non-Indian number missing its country code is misrouted.
// It is kept as is for compatibility with stored numbers.
func Normalize(raw string) string {
	n := strings.Map(strip, raw)
	if n == "" || strings.HasPrefix(n, "+") {
		return n
	}
	if strings.HasPrefix(n, defaultCountryCode) {
		return "+" + n
	}
	return "+" + defaultCountryCode + n
}

// Region returns the ISO-3166 region of an E.164 number, or "" when unknown.
func Region(e164 string) string {
	if !strings.HasPrefix(e164, "+") {
		return ""
	}
	parsed, err := phonenumbers.Parse(e164, "ZZ")
	if err != nil {
		return ""
	}
	region := phonenumbers.GetRegionCodeForNumber(parsed)
	if region == "ZZ" {
		return ""
	}
	return region
}
