package accepton

import "context"

// applePayDriver runs the Apple Pay wallet flow. Apple's authorization
// produces a platform payment blob, not a processor nonce, so an extra
// token-exchange step (Stripe, by default config) sits between the wallet
// authorization and the backend charge. The wallet session's sub-state
// machine covers the extra stage: Apple fires its completion callback once
// regardless of why, and the driver must remember which terminal outcome
// to relay to it.
type applePayDriver struct {
	baseDriver
	authorizer WalletAuthorizer
	exchanger  PaymentTokenExchanger
}

func newApplePayDriver(deps driverDeps) PaymentDriver {
	return &applePayDriver{
		baseDriver: newBaseDriver(PaymentMethodApplePay, deps),
		authorizer: deps.cfg.applePay,
		exchanger:  deps.cfg.exchanger,
	}
}

// BeginTransaction implements [PaymentDriver].
func (d *applePayDriver) BeginTransaction(ctx context.Context) {
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
			MerchantID:    d.opts.PaymentMethods().StripeApplePayMerchantID(),
		},
		complete: d.completeAuthorization,
	}
	session.run(ctx)
}

func (d *applePayDriver) completeAuthorization(ctx context.Context, auth WalletAuthorization) TransactionOutcome {
	nonce := auth.Nonce
	if nonce == "" {
		if d.exchanger == nil {
			return failedOutcome("No processor is configured to exchange Apple Pay payments")
		}
		exchanged, err := d.exchanger.ExchangePlatformPayment(ctx, d.opts.PaymentMethods(), auth.PlatformPayment)
		if err != nil {
			return failedOutcome(err.Error())
		}
		nonce = exchanged
	}
	d.addNonce("stripe", nonce)
	return d.readyToCompleteTransaction(ctx)
}
