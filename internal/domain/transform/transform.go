// Package transform shapes source platform records into target platform
// payload values: registration status translation, e-mail normalization,
// and phone formatting.
package transform

import (
	"strings"
	"unicode"
)

// Target platform RSVP statuses.
const (
	RSVPAttending  = "Attending"
	RSVPDeclined   = "Declined"
	RSVPNoResponse = "NoResponse"
)

// minPhoneDigits is the shortest number the target platform accepts.
const minPhoneDigits = 7

// rsvpByStatus translates normalized source registration statuses into the
// target platform's RSVP vocabulary. Unknown statuses fall back to
// RSVPNoResponse.
var rsvpByStatus = map[string]string{
	"approved":        RSVPAttending,
	"registered":      RSVPAttending,
	"accepted":        RSVPAttending,
	"waitingapproval": RSVPAttending,
	"declined":        RSVPDeclined,
	"cancelled":       RSVPDeclined,
	"withdrawn":       RSVPDeclined,
	"draft":           RSVPDeclined,
}

// RSVPStatus maps a source registration status to a target RSVP status.
// Matching is case- and whitespace-insensitive.
func RSVPStatus(status string) string {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if rsvp, ok := rsvpByStatus[normalized]; ok {
		return rsvp
	}
	return RSVPNoResponse
}

// NormalizeEmail lowercases and trims an address for exact-equality matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FormatPhone strips formatting characters and reports whether enough digits
// remain to be a dialable number.
func FormatPhone(phone string) (string, bool) {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < minPhoneDigits {
		return "", false
	}
	return digits, true
}
