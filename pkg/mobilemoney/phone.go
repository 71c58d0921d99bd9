package mobilemoney

import (
	"strings"

	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
)

// NormalizePhone converts a subscriber number into canonical international
// form ("+<countryCode><subscriber>"). Accepted inputs, after stripping
// non-digits:
//
//	<countryCode><subscriber>  kept as-is
//	<trunkPrefix><subscriber>  trunk prefix replaced with the country code
//	<subscriber>               country code prepended
func NormalizePhone(raw, countryCode, trunkPrefix string, localDigits int) (string, error) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}

	switch {
	case strings.HasPrefix(digits, countryCode) && len(digits) == len(countryCode)+localDigits:
		return "+" + digits, nil
	case strings.HasPrefix(digits, trunkPrefix) && len(digits) == len(trunkPrefix)+localDigits:
		return "+" + countryCode + digits[len(trunkPrefix):], nil
	case len(digits) == localDigits:
		return "+" + countryCode + digits, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number is not a valid subscriber number").
			WithDetails(map[string]string{"phone_number": "unrecognized format"})
	}
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
