package accepton

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v72"
	stripeclient "github.com/stripe/stripe-go/v72/client"
)

// CardTokenizer converts raw card parameters into a processor nonce. One
// implementation per processor; the credit-card driver runs every
// registered tokenizer and collects whatever nonces come back. Braintree
// and other processors whose tokenization only exists inside their mobile
// SDKs are wired in by the integrator through this interface.
type CardTokenizer interface {
	// Name keys the resulting nonce in the charge payload, e.g. "stripe".
	Name() string
	Tokenize(ctx context.Context, methods *PaymentMethodsInfo, card CreditCardParams) (string, error)
}

// PaymentTokenExchanger converts a platform wallet payment (the opaque
// payload Apple Pay authorization produces) into a processor nonce.
type PaymentTokenExchanger interface {
	ExchangePlatformPayment(ctx context.Context, methods *PaymentMethodsInfo, platformPayment []byte) (string, error)
}

// StripeTokenizer tokenizes cards against the Stripe Tokens API using the
// publishable key from the transaction's payment-methods config.
type StripeTokenizer struct {
	// backend overrides the Stripe backend in tests.
	backend stripe.Backend
}

// NewStripeTokenizer builds the stock Stripe card tokenizer.
func NewStripeTokenizer() *StripeTokenizer {
	return &StripeTokenizer{}
}

// Name implements [CardTokenizer].
func (t *StripeTokenizer) Name() string {
	return "stripe"
}

// Tokenize implements [CardTokenizer].
func (t *StripeTokenizer) Tokenize(ctx context.Context, methods *PaymentMethodsInfo, card CreditCardParams) (string, error) {
	key := methods.StripePublishableKey()
	if key == "" {
		return "", errors.New("Stripe could not be configured")
	}
	sc := &stripeclient.API{}
	var backends *stripe.Backends
	if t.backend != nil {
		backends = &stripe.Backends{API: t.backend, Connect: t.backend, Uploads: t.backend}
	}
	sc.Init(key, backends)

	params := &stripe.TokenParams{
		Params: stripe.Params{Context: ctx},
		Card: &stripe.CardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.String(card.ExpMonth),
			ExpYear:  stripe.String(card.ExpYear),
			CVC:      stripe.String(card.CVC),
		},
	}
	tok, err := sc.Tokens.New(params)
	if err != nil {
		return "", err
	}
	return tok.ID, nil
}
