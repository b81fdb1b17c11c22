package accepton

import (
	"strconv"
	"strings"
	"time"
)

// CardBrand is the card network detected from a card number.
type CardBrand string

const (
	CardBrandVisa       CardBrand = "visa"
	CardBrandAmex       CardBrand = "amex"
	CardBrandDiscover   CardBrand = "discover"
	CardBrandMasterCard CardBrand = "master_card"
	CardBrandUnknown    CardBrand = "unknown"
)

// CardValidator answers the card-specific validity questions the form
// validator delegates. The checks are positional: the number is validated
// first so a brand is known, expiry next, and the CVC against the detected
// brand. The default implementation can be swapped with [WithCardValidator]
// to defer to a processor SDK instead.
type CardValidator interface {
	BrandForNumber(number string) CardBrand
	ValidateNumber(number string) bool
	ValidateExpMonth(month string) bool
	// ValidateExpYear validates the year jointly with the month it is
	// paired with; a current-year expiry is only valid for months that
	// have not passed.
	ValidateExpYear(year, month string) bool
	ValidateCVC(cvc string, brand CardBrand) bool
}

// stdCardValidator mirrors the checks the Stripe mobile validator performs.
type stdCardValidator struct {
	now func() time.Time
}

func (v stdCardValidator) BrandForNumber(number string) CardBrand {
	digits := normalizeCardNumber(number)
	switch {
	case strings.HasPrefix(digits, "4"):
		return CardBrandVisa
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return CardBrandAmex
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"):
		return CardBrandDiscover
	case inMasterCardRange(digits):
		return CardBrandMasterCard
	default:
		return CardBrandUnknown
	}
}

func (v stdCardValidator) ValidateNumber(number string) bool {
	digits := normalizeCardNumber(number)
	if digits == "" || !allDigits(digits) {
		return false
	}
	brand := v.BrandForNumber(digits)
	if !brandLengthValid(brand, len(digits)) {
		return false
	}
	return luhnValid(digits)
}

func (v stdCardValidator) ValidateExpMonth(month string) bool {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return false
	}
	return m >= 1 && m <= 12
}

func (v stdCardValidator) ValidateExpYear(year, month string) bool {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return false
	}
	now := v.now()
	// Two-digit years are interpreted within the current century.
	if y < 100 {
		y += (now.Year() / 100) * 100
	}
	if y < now.Year() {
		return false
	}
	if y > now.Year() {
		return true
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		// An unusable month leaves only the year to judge.
		return true
	}
	return m >= int(now.Month())
}

func (v stdCardValidator) ValidateCVC(cvc string, brand CardBrand) bool {
	cvc = strings.TrimSpace(cvc)
	if !allDigits(cvc) || cvc == "" {
		return false
	}
	if brand == CardBrandAmex {
		return len(cvc) == 4
	}
	return len(cvc) == 3
}

func normalizeCardNumber(number string) string {
	return strings.ReplaceAll(strings.TrimSpace(number), " ", "")
}

func inMasterCardRange(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	if two, err := strconv.Atoi(digits[:2]); err == nil && two >= 51 && two <= 55 {
		return true
	}
	if len(digits) < 4 {
		return false
	}
	four, err := strconv.Atoi(digits[:4])
	return err == nil && four >= 2221 && four <= 2720
}

func brandLengthValid(brand CardBrand, length int) bool {
	switch brand {
	case CardBrandVisa:
		return length == 13 || length == 16
	case CardBrandAmex:
		return length == 15
	case CardBrandDiscover, CardBrandMasterCard:
		return length == 16
	default:
		return false
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
