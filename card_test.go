package accepton

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedNowValidator() stdCardValidator {
	return stdCardValidator{now: func() time.Time {
		return time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)
	}}
}

func TestBrandForNumber(t *testing.T) {
	tests := []struct {
		number string
		want   CardBrand
	}{
		{"4242424242424242", CardBrandVisa},
		{"4", CardBrandVisa},
		{"378282246310005", CardBrandAmex},
		{"341111111111111", CardBrandAmex},
		{"6011111111111117", CardBrandDiscover},
		{"6511111111111119", CardBrandDiscover},
		{"5555555555554444", CardBrandMasterCard},
		{"5105105105105100", CardBrandMasterCard},
		{"2223003122003222", CardBrandMasterCard},
		{"2720991111111111", CardBrandMasterCard},
		{"2121111111111111", CardBrandUnknown},
		{"9999999999999999", CardBrandUnknown},
		{"", CardBrandUnknown},
		{"4242 4242 4242 4242", CardBrandVisa},
	}
	v := fixedNowValidator()
	for _, tt := range tests {
		assert.Equal(t, tt.want, v.BrandForNumber(tt.number), "number %q", tt.number)
	}
}

func TestValidateNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{"visa 16", "4242424242424242", true},
		{"visa 13", "4222222222222", true},
		{"visa with spaces", "4242 4242 4242 4242", true},
		{"visa bad luhn", "4242424242424241", false},
		{"visa 14 digits", "42424242424242", false},
		{"amex", "378282246310005", true},
		{"amex 16 digits", "3782822463100051", false},
		{"discover", "6011111111111117", true},
		{"mastercard", "5555555555554444", true},
		{"mastercard 2-series", "2223003122003222", true},
		{"unknown brand", "9999999999999995", false},
		{"letters", "4242abcd42424242", false},
		{"empty", "", false},
	}
	v := fixedNowValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ValidateNumber(tt.number))
		})
	}
}

func TestValidateExpMonth(t *testing.T) {
	v := fixedNowValidator()
	assert.True(t, v.ValidateExpMonth("1"))
	assert.True(t, v.ValidateExpMonth("09"))
	assert.True(t, v.ValidateExpMonth("12"))
	assert.False(t, v.ValidateExpMonth("0"))
	assert.False(t, v.ValidateExpMonth("13"))
	assert.False(t, v.ValidateExpMonth(""))
	assert.False(t, v.ValidateExpMonth("jan"))
}

func TestValidateExpYear(t *testing.T) {
	tests := []struct {
		name  string
		year  string
		month string
		want  bool
	}{
		{"future year", "2030", "1", true},
		{"past year", "2025", "12", false},
		{"current year later month", "2026", "12", true},
		{"current year current month", "2026", "9", true},
		{"current year past month", "2026", "8", false},
		{"two digit future", "30", "1", true},
		{"two digit past", "25", "1", false},
		{"two digit current with past month", "26", "3", false},
		{"garbage year", "20xx", "1", false},
		{"current year garbage month", "2026", "nope", true},
	}
	v := fixedNowValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ValidateExpYear(tt.year, tt.month))
		})
	}
}

func TestValidateCVC(t *testing.T) {
	v := fixedNowValidator()
	assert.True(t, v.ValidateCVC("123", CardBrandVisa))
	assert.True(t, v.ValidateCVC("123", CardBrandUnknown))
	assert.True(t, v.ValidateCVC("1234", CardBrandAmex))
	assert.False(t, v.ValidateCVC("1234", CardBrandVisa))
	assert.False(t, v.ValidateCVC("123", CardBrandAmex))
	assert.False(t, v.ValidateCVC("12a", CardBrandVisa))
	assert.False(t, v.ValidateCVC("", CardBrandVisa))
}
