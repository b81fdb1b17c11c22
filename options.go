package accepton

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/accepton/accepton-go/signature"
)

const (
	stagingEndpointURL    = "https://staging-checkout.accepton.com"
	productionEndpointURL = "https://checkout.accepton.com"

	defaultRequestTimeout = 30 * time.Second
	defaultDriverTimeout  = 30 * time.Second
)

type clientConfig struct {
	endpoint       string
	httpClient     *http.Client
	requestTimeout time.Duration
	signer         signature.Signer
	logger         *slog.Logger
	clock          func() time.Time
}

// ClientOption customizes the API client.
type ClientOption func(*clientConfig)

// WithProduction points the client at the production endpoint instead of staging.
func WithProduction() ClientOption {
	return func(cfg *clientConfig) {
		cfg.endpoint = productionEndpointURL
	}
}

// WithEndpoint overrides the API base URL entirely. Intended for tests and
// self-hosted gateways.
func WithEndpoint(endpoint string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.endpoint = endpoint
	}
}

// WithHTTPClient substitutes the underlying *http.Client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		if httpClient != nil {
			cfg.httpClient = httpClient
		}
	}
}

// WithRequestTimeout bounds every API call. The hosted SDKs this package
// descends from had no request timeout at all; the 30s default here is new
// behavior.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	if timeout <= 0 {
		panic("accepton: request timeout must be positive")
	}
	return func(cfg *clientConfig) {
		cfg.requestTimeout = timeout
	}
}

// WithRequestSigner enables Signature/Timestamp headers on outbound charge
// and verify requests.
func WithRequestSigner(signer signature.Signer) ClientOption {
	return func(cfg *clientConfig) {
		cfg.signer = signer
	}
}

// WithClientLogger attaches a structured logger. Logging is off by default.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// clientWithClock provides deterministic time in tests.
func clientWithClock(fn func() time.Time) ClientOption {
	return func(cfg *clientConfig) {
		cfg.clock = fn
	}
}

type machineConfig struct {
	userInfo        *OptionalUserInfo
	driverTimeout   time.Duration
	affordanceDelay time.Duration
	tokenizers      []CardTokenizer
	paypal          WalletAuthorizer
	applePay        WalletAuthorizer
	exchanger       PaymentTokenExchanger
	cardValidator   CardValidator
	logger          *slog.Logger

	// schedule runs work off the caller's goroutine; after schedules it
	// with a delay. Tests substitute synchronous versions.
	schedule func(fn func())
	after    func(d time.Duration, fn func())
}

// MachineOption customizes a [UIMachine].
type MachineOption func(*machineConfig)

// WithUserInfo supplies autofill hints, address-collection requirements,
// and extra metadata for the checkout.
func WithUserInfo(userInfo *OptionalUserInfo) MachineOption {
	return func(cfg *machineConfig) {
		cfg.userInfo = userInfo
	}
}

// WithDriverTimeout bounds how long a payment driver may wait on external
// SDK interaction plus the final charge call. New behavior; the original
// SDK waited forever.
func WithDriverTimeout(timeout time.Duration) MachineOption {
	if timeout <= 0 {
		panic("accepton: driver timeout must be positive")
	}
	return func(cfg *machineConfig) {
		cfg.driverTimeout = timeout
	}
}

// WithAffordanceDelay inserts a pause between a wallet button click and the
// driver starting, so a host UI has time to show a loading state. Defaults
// to zero.
func WithAffordanceDelay(delay time.Duration) MachineOption {
	if delay < 0 {
		panic("accepton: affordance delay cannot be negative")
	}
	return func(cfg *machineConfig) {
		cfg.affordanceDelay = delay
	}
}

// WithCardTokenizers replaces the set of processor tokenizers used for
// credit-card transactions.
func WithCardTokenizers(tokenizers ...CardTokenizer) MachineOption {
	return func(cfg *machineConfig) {
		cfg.tokenizers = nil
		for _, t := range tokenizers {
			if t == nil {
				continue
			}
			cfg.tokenizers = append(cfg.tokenizers, t)
		}
	}
}

// WithPayPalAuthorizer wires the platform PayPal SDK.
func WithPayPalAuthorizer(authorizer WalletAuthorizer) MachineOption {
	return func(cfg *machineConfig) {
		cfg.paypal = authorizer
	}
}

// WithApplePayAuthorizer wires the platform Apple Pay SDK.
func WithApplePayAuthorizer(authorizer WalletAuthorizer) MachineOption {
	return func(cfg *machineConfig) {
		cfg.applePay = authorizer
	}
}

// WithPaymentTokenExchanger wires the processor that converts platform
// wallet payments (Apple Pay blobs) into charge nonces.
func WithPaymentTokenExchanger(exchanger PaymentTokenExchanger) MachineOption {
	return func(cfg *machineConfig) {
		cfg.exchanger = exchanger
	}
}

// WithCardValidator substitutes the processor-supplied card validator used
// for number, expiry, and CVC checks.
func WithCardValidator(v CardValidator) MachineOption {
	return func(cfg *machineConfig) {
		if v != nil {
			cfg.cardValidator = v
		}
	}
}

// WithMachineLogger attaches a structured logger. Logging is off by default.
func WithMachineLogger(logger *slog.Logger) MachineOption {
	return func(cfg *machineConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// withScheduler provides deterministic execution in tests.
func withScheduler(schedule func(fn func()), after func(d time.Duration, fn func())) MachineOption {
	return func(cfg *machineConfig) {
		cfg.schedule = schedule
		cfg.after = after
	}
}

func defaultMachineConfig() machineConfig {
	return machineConfig{
		driverTimeout: defaultDriverTimeout,
		cardValidator: stdCardValidator{now: time.Now},
		schedule:      func(fn func()) { go fn() },
		after: func(d time.Duration, fn func()) {
			if d <= 0 {
				go fn()
				return
			}
			time.AfterFunc(d, fn)
		},
		logger: discardLogger(),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
