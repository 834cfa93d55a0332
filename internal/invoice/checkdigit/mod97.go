// Package checkdigit implements the ISO 7064 mod 97-10 scheme used by IBANs
// and ISO 11649 creditor references.
package checkdigit

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	ibanPattern   = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)
	nonAlnum      = regexp.MustCompile(`[^A-Z0-9]`)
	maxRefPayload = 21
)

// Mod97 returns the remainder of the numeric expansion of s (A=10 … Z=35).
// ok is false when s holds characters outside [0-9A-Z].
func Mod97(s string) (rem int, ok bool) {
	for _, r := range s {
		var digits int
		var width int
		switch {
		case r >= '0' && r <= '9':
			digits, width = int(r-'0'), 10
		case r >= 'A' && r <= 'Z':
			digits, width = int(r-'A')+10, 100
		default:
			return 0, false
		}
		rem = (rem*width + digits) % 97
	}
	return rem, true
}

// NormalizeIBAN strips spaces and upper-cases the account number.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}

// ValidIBAN checks the shape and mod-97 checksum of an IBAN.
func ValidIBAN(iban string) bool {
	iban = NormalizeIBAN(iban)
	if !ibanPattern.MatchString(iban) {
		return false
	}
	rem, ok := Mod97(iban[4:] + iban[:4])
	return ok && rem == 1
}

// CreditorReference derives an RF creditor reference from free text, keeping
// at most 21 alphanumeric characters. It returns "" when nothing usable remains.
func CreditorReference(text string) string {
	payload := nonAlnum.ReplaceAllString(strings.ToUpper(text), "")
	if len(payload) > maxRefPayload {
		payload = payload[len(payload)-maxRefPayload:]
	}
	if payload == "" {
		return ""
	}
	rem, _ := Mod97(payload + "RF00")
	return fmt.Sprintf("RF%02d%s", 98-rem, payload)
}
