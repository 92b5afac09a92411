// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package logging

import "strings"

// RedactToken masks a token, showing only the first and last 4 characters.
// Example: "eyJhbGciOiJIUzI1NiJ9.abc.def" -> "eyJh...def"
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// RedactPAN masks a primary account number down to its last four digits.
// Non-digit separators are dropped. Inputs with fewer than 8 digits are
// fully masked.
func RedactPAN(pan string) string {
	var digits strings.Builder
	for _, r := range pan {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 8 {
		return "****"
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}

// sensitiveKeys are field names whose values never reach a log line unmasked.
var sensitiveKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"authorization": true,
	"secret":        true,
	"password":      true,
	"pin":           true,
	"api_key":       true,
	"pan":           true,
	"card_number":   true,
	"track_data":    true,
}

// RedactValue masks a value based on its key name.
func RedactValue(key, value string) string {
	k := strings.ToLower(key)
	if !sensitiveKeys[k] {
		return value
	}
	switch k {
	case "pan", "card_number":
		return RedactPAN(value)
	case "track_data", "pin":
		return "***"
	default:
		return RedactToken(value)
	}
}
