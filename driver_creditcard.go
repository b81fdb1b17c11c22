package accepton

import (
	"context"
	"sync"
)

// creditCardDriver tokenizes raw card parameters through every registered
// processor tokenizer, then charges with whichever nonces came back. A
// tokenizer failing is not fatal on its own; the charge proceeds as long
// as at least one processor produced a nonce.
type creditCardDriver struct {
	baseDriver
	tokenizers []CardTokenizer
	schedule   func(fn func())
}

func newCreditCardDriver(deps driverDeps) PaymentDriver {
	return &creditCardDriver{
		baseDriver: newBaseDriver(PaymentMethodCreditCard, deps),
		tokenizers: deps.cfg.tokenizers,
		schedule:   deps.cfg.schedule,
	}
}

// BeginTransaction implements [PaymentDriver]. It requires that
// FormOptions.CreditCardParams was populated by a validated pay click.
func (d *creditCardDriver) BeginTransaction(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.setCancel(cancel)

	card := d.opts.CreditCardParams
	if card == nil {
		d.finish(d, failedOutcome("No credit card details were provided"))
		return
	}
	d.email = card.Email

	var wg sync.WaitGroup
	for _, tokenizer := range d.tokenizers {
		wg.Add(1)
		t := tokenizer
		d.schedule(func() {
			defer wg.Done()
			nonce, err := t.Tokenize(ctx, d.opts.PaymentMethods(), *card)
			if err != nil {
				// A single processor failing is survivable; the
				// zero-nonce check below catches the case where every
				// one of them did.
				return
			}
			d.addNonce(t.Name(), nonce)
		})
	}
	wg.Wait()

	d.finish(d, d.readyToCompleteTransaction(ctx))
}
