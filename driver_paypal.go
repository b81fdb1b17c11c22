package accepton

import "context"

// paypalDriver runs the PayPal wallet flow. PayPal hands back a payment id
// rather than a card nonce, and the backend confirms it through the
// dedicated verify endpoint instead of the generic charge endpoint.
type paypalDriver struct {
	baseDriver
	authorizer WalletAuthorizer
}

func newPaypalDriver(deps driverDeps) PaymentDriver {
	return &paypalDriver{
		baseDriver: newBaseDriver(PaymentMethodPaypal, deps),
		authorizer: deps.cfg.paypal,
	}
}

// BeginTransaction implements [PaymentDriver].
func (d *paypalDriver) BeginTransaction(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.setCancel(cancel)

	session := &walletSession{
		driver:     d,
		base:       &d.baseDriver,
		authorizer: d.authorizer,
		request: WalletPaymentRequest{
			AmountInCents: d.opts.AmountInCents(),
			Currency:      "USD",
			Description:   d.opts.ItemDescription(),
			ClientID:      d.opts.PaymentMethods().PaypalRestClientID(),
		},
		complete: d.completeAuthorization,
	}
	session.run(ctx)
}

func (d *paypalDriver) completeAuthorization(ctx context.Context, auth WalletAuthorization) TransactionOutcome {
	if auth.Nonce == "" {
		return failedOutcome("Could not decode the payment id from PayPal's response")
	}
	d.addNonce("paypal_payment_id", auth.Nonce)
	return d.completeWith(ctx, d.api.VerifyPayPal)
}
