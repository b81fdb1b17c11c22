package accepton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormOptions(t *testing.T, applePayReady bool) *FormOptions {
	t.Helper()
	info, err := ParsePaymentMethodsConfig(sampleConfig())
	require.NoError(t, err)
	token := &TransactionToken{ID: "txn_1", AmountInCents: 349, Description: "Coffee"}
	return newFormOptions(token, info, nil, applePayReady)
}

func TestFormOptionsSurfaces(t *testing.T) {
	opts := testFormOptions(t, true)

	assert.Equal(t, "Coffee", opts.ItemDescription())
	assert.Equal(t, 349, opts.AmountInCents())
	assert.True(t, opts.HasCreditCardForm())
	assert.True(t, opts.HasPaypalButton())
	assert.True(t, opts.HasApplePay())
}

func TestHasApplePayRequiresDeviceReadiness(t *testing.T) {
	opts := testFormOptions(t, false)
	assert.True(t, opts.PaymentMethods().SupportsApplePay())
	assert.False(t, opts.HasApplePay())
}

func TestUIAmount(t *testing.T) {
	tests := []struct {
		cents int
		want  string
	}{
		{349, "$3.49"},
		{100, "$1.00"},
		{5, "$0.05"},
		{0, "$0.00"},
		{123456, "$1234.56"},
	}
	info, err := ParsePaymentMethodsConfig(sampleConfig())
	require.NoError(t, err)
	for _, tt := range tests {
		opts := newFormOptions(&TransactionToken{AmountInCents: tt.cents}, info, nil, false)
		assert.Equal(t, tt.want, opts.UIAmount())
	}
}

func TestNeedsExtraFields(t *testing.T) {
	assert.False(t, (*OptionalUserInfo)(nil).needsExtraFields())
	assert.False(t, (&OptionalUserInfo{EmailAutofillHint: "a@b.co"}).needsExtraFields())
	assert.True(t, (&OptionalUserInfo{RequestsAndRequiresBillingAddress: true}).needsExtraFields())
	assert.True(t, (&OptionalUserInfo{RequestsAndRequiresShippingAddress: true}).needsExtraFields())
}

func TestExtraFieldsMetadataToMetadata(t *testing.T) {
	same := true
	meta := (&ExtraFieldsMetadata{
		Email:                 "buyer@example.com",
		BillingAddress:        &Address{Line1: "1 Main St"},
		BillingSameAsShipping: &same,
	}).ToMetadata()

	assert.Equal(t, "buyer@example.com", meta["email"])
	assert.Equal(t, map[string]any{"line1": "1 Main St"}, meta["billing_address"])
	assert.Equal(t, true, meta["billing_same_as_shipping"])
	assert.NotContains(t, meta, "shipping_address")

	assert.Empty(t, (*ExtraFieldsMetadata)(nil).ToMetadata())
}
