package accepton

import "github.com/shopspring/decimal"

// FormOptions is the read model handed to drivers and the presentation
// layer once the begin sequence finishes. It aggregates the transaction
// token, the enabled payment methods, caller-supplied user info, and the
// metadata collected as the flow progresses. The [UIMachine] owns it and
// is the only mutator; drivers treat it as a snapshot.
type FormOptions struct {
	token          *TransactionToken
	paymentMethods *PaymentMethodsInfo
	userInfo       *OptionalUserInfo

	// CreditCardParams is populated exactly once, when a fully validated
	// card form is submitted.
	CreditCardParams *CreditCardParams

	// Metadata accumulates extra-fields results and caller metadata; it is
	// sent verbatim with the charge.
	Metadata map[string]any

	applePayReady bool
}

func newFormOptions(token *TransactionToken, paymentMethods *PaymentMethodsInfo, userInfo *OptionalUserInfo, applePayReady bool) *FormOptions {
	return &FormOptions{
		token:          token,
		paymentMethods: paymentMethods,
		userInfo:       userInfo,
		Metadata:       map[string]any{},
		applePayReady:  applePayReady,
	}
}

// Token returns the transaction token this checkout runs against.
func (o *FormOptions) Token() *TransactionToken {
	return o.token
}

// PaymentMethods exposes the processor configuration for this checkout.
func (o *FormOptions) PaymentMethods() *PaymentMethodsInfo {
	return o.paymentMethods
}

// ItemDescription returns the free-text description the token was created with.
func (o *FormOptions) ItemDescription() string {
	return o.token.Description
}

// AmountInCents returns the charge amount in minor currency units.
func (o *FormOptions) AmountInCents() int {
	return o.token.AmountInCents
}

// HasCreditCardForm reports whether the credit-card form section applies.
func (o *FormOptions) HasCreditCardForm() bool {
	return o.paymentMethods.SupportsCreditCard()
}

// HasPaypalButton reports whether the PayPal button applies.
func (o *FormOptions) HasPaypalButton() bool {
	return o.paymentMethods.SupportsPaypal()
}

// HasApplePay reports whether Apple Pay is both configured server-side and
// available on the device.
func (o *FormOptions) HasApplePay() bool {
	return o.paymentMethods.SupportsApplePay() && o.applePayReady
}

// UIAmount converts AmountInCents into a $xx.xx style display string,
// e.g. 349 -> "$3.49".
func (o *FormOptions) UIAmount() string {
	cents := decimal.NewFromInt(int64(o.token.AmountInCents))
	return "$" + cents.Div(decimal.NewFromInt(100)).StringFixed(2)
}

// OptionalUserInfo carries information about the buyer that the integrator
// already knows, used for autofill and for demanding address collection.
type OptionalUserInfo struct {
	// EmailAutofillHint pre-populates the credit-card email field.
	EmailAutofillHint string

	// RequestsAndRequiresBillingAddress forces the extra-fields step to
	// collect a billing address before any transaction starts.
	RequestsAndRequiresBillingAddress bool
	BillingAddressAutofillHints       *Address

	// RequestsAndRequiresShippingAddress forces shipping collection. For
	// payment systems that demand shipping costs, shipping is reported as
	// included at no charge.
	RequestsAndRequiresShippingAddress bool
	ShippingAddressAutofillHints       *Address

	// ExtraMetadata is passed through into FormOptions.Metadata untouched.
	ExtraMetadata map[string]any
}

// needsExtraFields reports whether the extra-fields dialog must run before
// a driver may start.
func (u *OptionalUserInfo) needsExtraFields() bool {
	if u == nil {
		return false
	}
	return u.RequestsAndRequiresBillingAddress || u.RequestsAndRequiresShippingAddress
}

// ExtraFieldsMetadata is what the presentation layer hands back when the
// extra-fields step completes.
type ExtraFieldsMetadata struct {
	Email                 string
	BillingAddress        *Address
	ShippingAddress       *Address
	BillingSameAsShipping *bool
}

// ToMetadata serializes the collected values for the charge metadata map.
func (m *ExtraFieldsMetadata) ToMetadata() map[string]any {
	out := map[string]any{}
	if m == nil {
		return out
	}
	if m.Email != "" {
		out["email"] = m.Email
	}
	if m.BillingAddress != nil {
		out["billing_address"] = m.BillingAddress.ToMetadata()
	}
	if m.ShippingAddress != nil {
		out["shipping_address"] = m.ShippingAddress.ToMetadata()
	}
	if m.BillingSameAsShipping != nil {
		out["billing_same_as_shipping"] = *m.BillingSameAsShipping
	}
	return out
}
