package accepton

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChargeAPI records charge and verify submissions and answers with a
// canned result.
type fakeChargeAPI struct {
	mu       sync.Mutex
	charges  []*ChargeInfo
	verifies []*ChargeInfo
	tokenIDs []string

	res ChargeResult
	err error

	// delay stalls every charge call, simulating a slow backend that
	// answers regardless of the caller's deadline.
	delay time.Duration
}

func newFakeChargeAPI() *fakeChargeAPI {
	return &fakeChargeAPI{res: ChargeResult{"id": "chg_1", "status": "paid"}}
}

func (f *fakeChargeAPI) Charge(_ context.Context, tokenID string, chargeInfo *ChargeInfo) (ChargeResult, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, chargeInfo)
	f.tokenIDs = append(f.tokenIDs, tokenID)
	return f.res, f.err
}

func (f *fakeChargeAPI) VerifyPayPal(_ context.Context, tokenID string, chargeInfo *ChargeInfo) (ChargeResult, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies = append(f.verifies, chargeInfo)
	f.tokenIDs = append(f.tokenIDs, tokenID)
	return f.res, f.err
}

func (f *fakeChargeAPI) chargeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.charges)
}

// outcomeRecorder implements driverDelegate for driver-level tests.
type outcomeRecorder struct {
	outcomes chan TransactionOutcome
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{outcomes: make(chan TransactionOutcome, 4)}
}

func (r *outcomeRecorder) transactionDidFinish(_ PaymentDriver, outcome TransactionOutcome) {
	r.outcomes <- outcome
}

func (r *outcomeRecorder) wait(t *testing.T) TransactionOutcome {
	t.Helper()
	select {
	case outcome := <-r.outcomes:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("no transaction outcome was reported")
		return TransactionOutcome{}
	}
}

type fakeTokenizer struct {
	name  string
	nonce string
	err   error
}

func (f fakeTokenizer) Name() string { return f.name }

func (f fakeTokenizer) Tokenize(context.Context, *PaymentMethodsInfo, CreditCardParams) (string, error) {
	return f.nonce, f.err
}

// manualAuthorizer hands the test direct control over the wallet event
// stream.
type manualAuthorizer struct {
	availability WalletAvailability
	events       chan WalletEvent
	beginErr     error

	mu  sync.Mutex
	req WalletPaymentRequest
}

func newManualAuthorizer() *manualAuthorizer {
	return &manualAuthorizer{
		availability: WalletReady,
		events:       make(chan WalletEvent, 4),
	}
}

func (m *manualAuthorizer) Availability() WalletAvailability { return m.availability }

func (m *manualAuthorizer) BeginAuthorization(_ context.Context, req WalletPaymentRequest) (<-chan WalletEvent, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.mu.Lock()
	m.req = req
	m.mu.Unlock()
	return m.events, nil
}

func (m *manualAuthorizer) request() WalletPaymentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.req
}

func syncMachineConfig() machineConfig {
	cfg := defaultMachineConfig()
	cfg.schedule = func(fn func()) { fn() }
	cfg.after = func(_ time.Duration, fn func()) { fn() }
	return cfg
}

func testDriverDeps(t *testing.T, api *fakeChargeAPI, recorder *outcomeRecorder, cfg *machineConfig) driverDeps {
	t.Helper()
	opts := testFormOptions(t, true)
	opts.CreditCardParams = &CreditCardParams{
		Number:   "4242424242424242",
		ExpMonth: "12",
		ExpYear:  "2030",
		CVC:      "123",
		Email:    "buyer@example.com",
	}
	return driverDeps{opts: opts, api: api, delegate: recorder, cfg: cfg}
}

func TestCreditCardDriverTokenizesAndCharges(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	cfg.tokenizers = []CardTokenizer{
		fakeTokenizer{name: "stripe", nonce: "tok_stripe"},
		fakeTokenizer{name: "braintree", nonce: "tok_braintree"},
	}

	driver := newCreditCardDriver(testDriverDeps(t, api, recorder, &cfg))
	driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionSucceeded, outcome.Status)
	assert.Equal(t, "chg_1", outcome.Charge.ID())

	require.Len(t, api.charges, 1)
	assert.Equal(t, "txn_1", api.tokenIDs[0])
	assert.Equal(t, map[string]string{
		"stripe":    "tok_stripe",
		"braintree": "tok_braintree",
	}, api.charges[0].CardTokens)
	assert.Equal(t, "buyer@example.com", api.charges[0].Email)
}

func TestCreditCardDriverSurvivesOneTokenizerFailure(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	cfg.tokenizers = []CardTokenizer{
		fakeTokenizer{name: "stripe", err: errors.New("stripe is down")},
		fakeTokenizer{name: "braintree", nonce: "tok_braintree"},
	}

	driver := newCreditCardDriver(testDriverDeps(t, api, recorder, &cfg))
	driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionSucceeded, outcome.Status)
	require.Len(t, api.charges, 1)
	assert.Equal(t, map[string]string{"braintree": "tok_braintree"}, api.charges[0].CardTokens)
}

func TestCreditCardDriverFailsWithoutAnyNonce(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	cfg.tokenizers = []CardTokenizer{
		fakeTokenizer{name: "stripe", err: errors.New("stripe is down")},
	}

	driver := newCreditCardDriver(testDriverDeps(t, api, recorder, &cfg))
	driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "Could not connect to any payment processing services", outcome.Message)
	assert.Zero(t, api.chargeCount())
}

func TestCreditCardDriverRequiresCardParams(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()

	deps := testDriverDeps(t, api, recorder, &cfg)
	deps.opts.CreditCardParams = nil

	driver := newCreditCardDriver(deps)
	driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "No credit card details were provided", outcome.Message)
}

func TestPaypalDriverVerifiesPaymentID(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	authorizer.events <- WalletEvent{Kind: WalletAuthorized, Authorization: WalletAuthorization{Nonce: "PAY-123"}}
	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionSucceeded, outcome.Status)

	require.Len(t, api.verifies, 1)
	assert.Empty(t, api.charges)
	assert.Equal(t, map[string]string{"paypal_payment_id": "PAY-123"}, api.verifies[0].CardTokens)
	assert.Equal(t, "paypal-client-id", authorizer.request().ClientID)
	assert.Equal(t, 349, authorizer.request().AmountInCents)
}

func TestPaypalDriverRejectsEmptyPaymentID(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	authorizer.events <- WalletEvent{Kind: WalletAuthorized}
	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "Could not decode the payment id from PayPal's response", outcome.Message)
	assert.Empty(t, api.verifies)
}

func TestWalletDismissalBeforeAuthorizationCancels(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionCancelled, outcome.Status)
	assert.Zero(t, api.chargeCount())
}

func TestWalletFailureIsReportedAfterDismissal(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	authorizer.events <- WalletEvent{Kind: WalletFailed, Err: errors.New("card was declined")}

	// The wallet UI is still up; no outcome may be relayed yet.
	select {
	case <-recorder.outcomes:
		t.Fatal("outcome was relayed before the wallet UI dismissed")
	case <-time.After(50 * time.Millisecond):
	}

	authorizer.events <- WalletEvent{Kind: WalletDismissed}
	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "card was declined", outcome.Message)
}

func TestWalletHoldsBackendOutcomeUntilDismissal(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	authorizer.events <- WalletEvent{Kind: WalletAuthorized, Authorization: WalletAuthorization{Nonce: "PAY-123"}}

	// Let the backend verification land while the UI is still presented.
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.verifies) == 1
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-recorder.outcomes:
		t.Fatal("outcome was relayed before the wallet UI dismissed")
	case <-time.After(50 * time.Millisecond):
	}

	authorizer.events <- WalletEvent{Kind: WalletDismissed}
	outcome := recorder.wait(t)
	assert.Equal(t, TransactionSucceeded, outcome.Status)
}

func TestWalletClosedChannelCountsAsDismissal(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	close(authorizer.events)

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionCancelled, outcome.Status)
}

func TestWalletUnavailableDeviceFails(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	authorizer.availability = WalletNeedToSetup
	cfg.paypal = authorizer

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "This device cannot make payments with paypal", outcome.Message)
}

func TestWalletMissingAuthorizerFails(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "No wallet SDK is configured for paypal", outcome.Message)
}

func TestWalletTimesOutWithContext(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(ctx)

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "The payment timed out", outcome.Message)
}

func TestWalletTimeoutDuringBackendCompletionWaitsForTheCharge(t *testing.T) {
	api := newFakeChargeAPI()
	api.delay = 150 * time.Millisecond
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.paypal = authorizer

	authorizer.events <- WalletEvent{Kind: WalletAuthorized, Authorization: WalletAuthorization{Nonce: "PAY-123"}}
	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	driver := newPaypalDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(ctx)

	// The deadline expires mid-verification, but the charge completes on
	// the backend. That completion, not the timeout, is the outcome.
	outcome := recorder.wait(t)
	assert.Equal(t, TransactionSucceeded, outcome.Status)
	assert.Equal(t, "chg_1", outcome.Charge.ID())
	require.Len(t, api.verifies, 1)

	select {
	case extra := <-recorder.outcomes:
		t.Fatalf("a second outcome %q was reported", extra.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplePayDriverExchangesPlatformPayment(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.applePay = authorizer
	cfg.exchanger = fakeExchanger{nonce: "tok_exchanged"}

	authorizer.events <- WalletEvent{Kind: WalletAuthorized, Authorization: WalletAuthorization{PlatformPayment: []byte("pk-payment")}}
	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	driver := newApplePayDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionSucceeded, outcome.Status)

	require.Len(t, api.charges, 1)
	assert.Equal(t, map[string]string{"stripe": "tok_exchanged"}, api.charges[0].CardTokens)
	assert.Equal(t, "merchant.com.example", authorizer.request().MerchantID)
}

func TestApplePayDriverWithoutExchangerFails(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.applePay = authorizer

	authorizer.events <- WalletEvent{Kind: WalletAuthorized, Authorization: WalletAuthorization{PlatformPayment: []byte("pk-payment")}}
	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	driver := newApplePayDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "No processor is configured to exchange Apple Pay payments", outcome.Message)
	assert.Zero(t, api.chargeCount())
}

func TestApplePayDriverReportsExchangeFailure(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.applePay = authorizer
	cfg.exchanger = fakeExchanger{err: errors.New("stripe rejected the payment")}

	authorizer.events <- WalletEvent{Kind: WalletAuthorized, Authorization: WalletAuthorization{PlatformPayment: []byte("pk-payment")}}
	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	driver := newApplePayDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionFailed, outcome.Status)
	assert.Equal(t, "stripe rejected the payment", outcome.Message)
	assert.Zero(t, api.chargeCount())
}

func TestApplePayDriverUsesDirectNonce(t *testing.T) {
	api := newFakeChargeAPI()
	recorder := newOutcomeRecorder()
	cfg := syncMachineConfig()
	authorizer := newManualAuthorizer()
	cfg.applePay = authorizer

	authorizer.events <- WalletEvent{Kind: WalletAuthorized, Authorization: WalletAuthorization{Nonce: "tok_direct"}}
	authorizer.events <- WalletEvent{Kind: WalletDismissed}

	driver := newApplePayDriver(testDriverDeps(t, api, recorder, &cfg))
	go driver.BeginTransaction(context.Background())

	outcome := recorder.wait(t)
	assert.Equal(t, TransactionSucceeded, outcome.Status)
	require.Len(t, api.charges, 1)
	assert.Equal(t, map[string]string{"stripe": "tok_direct"}, api.charges[0].CardTokens)
}

func TestDriverRegistryRejectsUnknownMethod(t *testing.T) {
	registry := defaultDriverRegistry()
	_, err := registry.build(PaymentMethod("carrier_pigeon"), driverDeps{})
	assert.Error(t, err)
}

type fakeExchanger struct {
	nonce string
	err   error
}

func (f fakeExchanger) ExchangePlatformPayment(context.Context, *PaymentMethodsInfo, []byte) (string, error) {
	return f.nonce, f.err
}
