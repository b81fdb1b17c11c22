package accepton

import (
	"encoding/json"
	"errors"
)

// TransactionToken identifies one checkout attempt. It is created once per
// [UIMachine] by the token endpoint and immutable afterwards.
type TransactionToken struct {
	ID            string
	AmountInCents int
	Description   string
}

// ParseTokenResponse converts the raw token endpoint response into a
// [TransactionToken]. All three fields are required.
func ParseTokenResponse(res map[string]any) (*TransactionToken, error) {
	id, ok := res["id"].(string)
	if !ok || id == "" {
		return nil, errors.New("token response is missing an id")
	}
	amount, ok := jsonInt(res["amount"])
	if !ok {
		return nil, errors.New("token response is missing an amount")
	}
	desc, ok := res["description"].(string)
	if !ok {
		return nil, errors.New("token response is missing a description")
	}
	return &TransactionToken{ID: id, AmountInCents: amount, Description: desc}, nil
}

// PaymentMethodsInfo describes which processors are enabled for a
// transaction token and carries their processor-specific configuration.
// Build one with [ParsePaymentMethodsConfig]; a value built any other way
// reports support for nothing.
type PaymentMethodsInfo struct {
	config map[string]any
}

// ParsePaymentMethodsConfig validates the `config` object returned by the
// form-configure endpoint. A config lacking either the payment-methods list
// or the processor-information map is rejected outright; there is no
// partially valid result.
func ParsePaymentMethodsConfig(config map[string]any) (*PaymentMethodsInfo, error) {
	info := &PaymentMethodsInfo{config: config}
	if info.PaymentMethods() == nil {
		return nil, errors.New("config is missing payment_methods")
	}
	if info.processorInfo() == nil {
		return nil, errors.New("config is missing processor_information")
	}
	return info, nil
}

// PaymentMethods lists the accepted method names, e.g. "credit-card", "paypal".
func (p *PaymentMethodsInfo) PaymentMethods() []string {
	raw, ok := p.config["payment_methods"].([]any)
	if !ok {
		return nil
	}
	methods := make([]string, 0, len(raw))
	for _, m := range raw {
		if s, ok := m.(string); ok {
			methods = append(methods, s)
		}
	}
	return methods
}

// SupportsCreditCard reports whether card transactions are enabled.
func (p *PaymentMethodsInfo) SupportsCreditCard() bool {
	for _, m := range p.PaymentMethods() {
		if m == "credit-card" {
			return true
		}
	}
	return false
}

// SupportsPaypal reports whether a resolvable paypal_rest client id exists.
func (p *PaymentMethodsInfo) SupportsPaypal() bool {
	return p.PaypalRestClientID() != ""
}

// SupportsStripe reports whether a Stripe publishable key is configured.
func (p *PaymentMethodsInfo) SupportsStripe() bool {
	return p.StripePublishableKey() != ""
}

// SupportsBraintree reports whether Braintree processor info is present.
func (p *PaymentMethodsInfo) SupportsBraintree() bool {
	return p.braintreeInfo() != nil
}

// SupportsApplePay reports whether Stripe Apple Pay config is present. The
// machine additionally gates Apple Pay on device availability.
func (p *PaymentMethodsInfo) SupportsApplePay() bool {
	return p.stripeApplePayInfo() != nil
}

// StripePublishableKey returns the Stripe key used for card tokenization,
// or "" when Stripe is not configured.
func (p *PaymentMethodsInfo) StripePublishableKey() string {
	key, _ := p.stripeInfo()["publishable_key"].(string)
	return key
}

// StripeApplePayMerchantID returns the Apple Pay merchant identifier, or "".
func (p *PaymentMethodsInfo) StripeApplePayMerchantID() string {
	id, _ := p.stripeApplePayInfo()["merchant_id"].(string)
	return id
}

// PaypalRestClientID returns the PayPal REST client id, or "".
func (p *PaymentMethodsInfo) PaypalRestClientID() string {
	paypalInfo, _ := p.creditCardProcessorInfo()["paypal_rest"].(map[string]any)
	id, _ := paypalInfo["client_id"].(string)
	return id
}

// BraintreeMerchantID returns the Braintree merchant id, or "".
func (p *PaymentMethodsInfo) BraintreeMerchantID() string {
	id, _ := p.braintreeInfo()["merchantId"].(string)
	return id
}

func (p *PaymentMethodsInfo) processorInfo() map[string]any {
	m, _ := p.config["processor_information"].(map[string]any)
	return m
}

func (p *PaymentMethodsInfo) creditCardProcessorInfo() map[string]any {
	m, _ := p.processorInfo()["credit-card"].(map[string]any)
	return m
}

func (p *PaymentMethodsInfo) stripeInfo() map[string]any {
	m, _ := p.creditCardProcessorInfo()["stripe"].(map[string]any)
	return m
}

func (p *PaymentMethodsInfo) stripeApplePayInfo() map[string]any {
	m, _ := p.stripeInfo()["apple_pay"].(map[string]any)
	return m
}

func (p *PaymentMethodsInfo) braintreeInfo() map[string]any {
	m, _ := p.creditCardProcessorInfo()["braintree"].(map[string]any)
	return m
}

// CreditCardParams carries raw card input between "pay clicked" and driver
// handoff. Values are ephemeral: drivers discard them as soon as
// tokenization settles.
type CreditCardParams struct {
	Number   string `json:"number" validate:"required"`
	ExpMonth string `json:"exp_month" validate:"required,numeric"`
	ExpYear  string `json:"exp_year" validate:"required,numeric"`
	CVC      string `json:"security_code" validate:"required,numeric"`
	Email    string `json:"-" validate:"omitempty,email"`
}

// ChargeInfo is the outbound charge payload: processor nonce tokens keyed
// by processor name, or raw card parameters, plus email and metadata.
// Construct a fresh value per charge attempt.
type ChargeInfo struct {
	CardTokens map[string]string
	RawCard    *CreditCardParams
	Email      string
	Metadata   map[string]any
}

// MarshalJSON serializes the charge fields the way the charge and verify
// endpoints expect them. A lone paypal_payment_id token is promoted to the
// top-level payment_id field used by PayPal verification.
func (c ChargeInfo) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"card_tokens": map[string]string{},
		"email":       c.Email,
		"metadata":    map[string]any{},
	}
	if c.Metadata != nil {
		out["metadata"] = c.Metadata
	}
	if len(c.CardTokens) > 0 {
		if pid, ok := c.CardTokens["paypal_payment_id"]; ok {
			out["payment_id"] = pid
		} else {
			out["card_tokens"] = c.CardTokens
		}
	} else if c.RawCard != nil {
		out["card"] = map[string]string{
			"number":        c.RawCard.Number,
			"exp_month":     c.RawCard.ExpMonth,
			"exp_year":      c.RawCard.ExpYear,
			"security_code": c.RawCard.CVC,
		}
	}
	return json.Marshal(out)
}

// Validate rejects charge payloads that carry neither nonce tokens nor a
// raw card.
func (c ChargeInfo) Validate() error {
	if len(c.CardTokens) == 0 && c.RawCard == nil {
		return errors.New("charge requires card tokens or raw card parameters")
	}
	if c.RawCard != nil {
		if err := validate.Struct(c.RawCard); err != nil {
			return normalizeValidationError(err)
		}
	}
	return nil
}

// ChargeResult is the charge endpoint's response, passed through verbatim.
type ChargeResult map[string]any

// ID returns the charge identifier, or "" when absent.
func (r ChargeResult) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Status returns the charge status string, or "" when absent.
func (r ChargeResult) Status() string {
	status, _ := r["status"].(string)
	return status
}

// Address is a billing or shipping address collected through the
// extra-fields step.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ToMetadata flattens the address into the metadata representation the
// charge endpoint expects, omitting empty fields.
func (a Address) ToMetadata() map[string]any {
	out := map[string]any{}
	if a.Line1 != "" {
		out["line1"] = a.Line1
	}
	if a.Line2 != "" {
		out["line2"] = a.Line2
	}
	if a.City != "" {
		out["city"] = a.City
	}
	if a.Region != "" {
		out["region"] = a.Region
	}
	if a.PostalCode != "" {
		out["postalCode"] = a.PostalCode
	}
	if a.Country != "" {
		out["country"] = a.Country
	}
	return out
}

// jsonInt tolerates the number representations encoding/json can produce.
func jsonInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
