package accepton

import "context"

// WalletAvailability reports whether a platform wallet can be used on this
// device at all.
type WalletAvailability string

const (
	// WalletNotSupported means the wallet cannot run here (parental
	// controls, unsupported hardware, missing SDK).
	WalletNotSupported WalletAvailability = "not_supported"
	// WalletNeedToSetup means the wallet runs but has no cards enrolled.
	WalletNeedToSetup WalletAvailability = "need_to_setup"
	// WalletReady means a payment can be attempted.
	WalletReady WalletAvailability = "ready"
)

// WalletEventKind tags the signals a platform wallet SDK can emit.
type WalletEventKind string

const (
	// WalletAuthorized delivers the tokenized payment. At most one per flow.
	WalletAuthorized WalletEventKind = "authorized"
	// WalletFailed reports that authorization errored before a nonce existed.
	WalletFailed WalletEventKind = "failed"
	// WalletDismissed reports the SDK UI closing, for any reason. Exactly
	// one per flow, always the last event.
	WalletDismissed WalletEventKind = "dismissed"
)

// WalletAuthorization is the payload of a WalletAuthorized event.
type WalletAuthorization struct {
	// Nonce is a processor-ready token (PayPal delivers the payment id here).
	Nonce string
	// PlatformPayment is raw platform payment data that still needs a
	// processor token exchange (Apple Pay delivers its payment blob here).
	PlatformPayment []byte
}

// WalletEvent is one signal from a platform wallet SDK.
type WalletEvent struct {
	Kind          WalletEventKind
	Authorization WalletAuthorization
	Err           error
}

// WalletPaymentRequest describes the payment the wallet UI should present.
type WalletPaymentRequest struct {
	AmountInCents int
	Currency      string
	Description   string
	// ClientID carries the PayPal REST client id when applicable.
	ClientID string
	// MerchantID carries the Apple Pay merchant identifier when applicable.
	MerchantID string
}

// WalletAuthorizer adapts one platform wallet SDK (PayPal, Apple Pay).
// BeginAuthorization opens the wallet UI and streams events: zero or one
// Authorized/Failed event followed by exactly one Dismissed event, after
// which the channel closes. The UI-dismissal callback and the backend
// charge confirmation race; the wallet drivers reconcile them.
type WalletAuthorizer interface {
	Availability() WalletAvailability
	BeginAuthorization(ctx context.Context, req WalletPaymentRequest) (<-chan WalletEvent, error)
}

// walletState is the wallet drivers' internal sub-state. Boolean flags are
// not enough here: the SDK's dismissal signal and the backend confirmation
// can interleave in either order, and the dismissal handler must know
// which terminal outcome to relay.
type walletState int

const (
	walletWaitingForAuthorization walletState = iota
	walletCompletingWithBackend
	walletTerminal
)

// walletSession runs the shared wallet driver loop. complete is invoked
// once authorization lands and must produce the terminal outcome (token
// exchange plus backend charge). The outcome is relayed when the wallet UI
// has dismissed, mirroring how the native SDKs hold their UI open until
// the backend answers.
type walletSession struct {
	driver     PaymentDriver
	base       *baseDriver
	authorizer WalletAuthorizer
	request    WalletPaymentRequest
	complete   func(ctx context.Context, auth WalletAuthorization) TransactionOutcome
}

func (s *walletSession) run(ctx context.Context) {
	if s.authorizer == nil {
		s.base.finish(s.driver, failedOutcome("No wallet SDK is configured for "+string(s.driver.Name())))
		return
	}
	if s.authorizer.Availability() != WalletReady {
		s.base.finish(s.driver, failedOutcome("This device cannot make payments with "+string(s.driver.Name())))
		return
	}

	events, err := s.authorizer.BeginAuthorization(ctx, s.request)
	if err != nil {
		s.base.finish(s.driver, failedOutcome(err.Error()))
		return
	}

	backendDone := make(chan TransactionOutcome, 1)
	state := walletWaitingForAuthorization
	dismissed := false
	var terminal TransactionOutcome

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Channel closed without a dismissal event; treat as one.
				events = nil
				ev = WalletEvent{Kind: WalletDismissed}
			}
			switch ev.Kind {
			case WalletAuthorized:
				if state != walletWaitingForAuthorization {
					continue
				}
				state = walletCompletingWithBackend
				auth := ev.Authorization
				go func() {
					backendDone <- s.complete(ctx, auth)
				}()
			case WalletFailed:
				if state != walletWaitingForAuthorization {
					continue
				}
				state = walletTerminal
				terminal = failedOutcome(walletFailureMessage(ev.Err))
				if dismissed {
					s.base.finish(s.driver, terminal)
					return
				}
			case WalletDismissed:
				dismissed = true
				switch state {
				case walletWaitingForAuthorization:
					// UI closed before any nonce existed: a user abort.
					s.base.finish(s.driver, cancelledOutcome())
					return
				case walletCompletingWithBackend:
					// The charge is already in flight and cannot be
					// stopped; hold the relay until the backend answers.
				case walletTerminal:
					s.base.finish(s.driver, terminal)
					return
				}
			}
		case outcome := <-backendDone:
			state = walletTerminal
			terminal = outcome
			if dismissed {
				s.base.finish(s.driver, terminal)
				return
			}
		case <-ctx.Done():
			if state == walletCompletingWithBackend {
				// The charge is already in flight and cannot be stopped.
				// Its outcome decides the transaction; reporting a timeout
				// here would hide a charge that went through.
				s.base.finish(s.driver, <-backendDone)
				return
			}
			s.base.finish(s.driver, failedOutcome("The payment timed out"))
			return
		}
	}
}

func walletFailureMessage(err error) string {
	if err == nil {
		return "The payment could not be authorized"
	}
	return err.Error()
}
