// Package wifiqr parses the WIFI: text payload encoded in network-join QR codes,
// e.g. WIFI:S:MyNetwork;P:Secret123;T:WPA;;
package wifiqr

import (
	"strings"

	"wifi-qr-scanner/internal/domain"
)

// Prefix marks a decoded QR text as a WiFi payload candidate.
const Prefix = "WIFI:"

// IsCandidate reports whether text should be handed to Parse.
func IsCandidate(text string) bool {
	return strings.HasPrefix(text, Prefix)
}

// Parse extracts the S (SSID) and P (password) fields. Values end at their
// first unescaped ';' and backslash escapes are removed. It reports false when
// the prefix is missing or either field is absent or unterminated.
func Parse(text string) (domain.Credential, bool) {
	if !IsCandidate(text) {
		return domain.Credential{}, false
	}

	var cred domain.Credential
	var haveSSID, havePassword bool
	for _, f := range splitFields(text[len(Prefix):]) {
		switch {
		case f.key == "S" && !haveSSID:
			cred.SSID = f.value
			haveSSID = true
		case f.key == "P" && !havePassword:
			cred.Password = f.value
			havePassword = true
		}
	}

	if !haveSSID || !havePassword {
		return domain.Credential{}, false
	}
	return cred, true
}

type field struct {
	key   string
	value string
}

// splitFields returns every ';'-terminated KEY:VALUE field. A trailing
// unterminated field is dropped.
func splitFields(body string) []field {
	var fields []field
	var current strings.Builder
	escaped := false

	for _, r := range body {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ';':
			if f, ok := splitKey(current.String()); ok {
				fields = append(fields, f)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return fields
}

// splitKey cuts a raw field at its first colon.
func splitKey(raw string) (field, bool) {
	key, value, ok := strings.Cut(raw, ":")
	if !ok || key == "" {
		return field{}, false
	}
	return field{key: key, value: value}, true
}
