package services

import (
	"errors"
	"math"
	"strings"
)

const countryCode = "254"

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizeMSISDN converts a phone number to the provider's required
// international format: digits only, prefixed with the country code. A
// local number keeps its last nine digits ("0712345678" -> "254712345678");
// an already-prefixed number passes through unchanged.
func NormalizeMSISDN(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) < 9 {
		return "", ErrInvalidPhone
	}
	if strings.HasPrefix(digits, countryCode) && len(digits) == 12 {
		return digits, nil
	}
	return countryCode + digits[len(digits)-9:], nil
}

// WholeAmount rounds up to the nearest whole currency unit. The provider
// only accepts integer amounts; rounding up is deliberate policy.
func WholeAmount(amount float64) int64 {
	return int64(math.Ceil(amount))
}
