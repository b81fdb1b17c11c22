package accepton

import (
	"context"
	"fmt"
	"sync"
)

// PaymentMethod names one payment flow a driver can run.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodPaypal     PaymentMethod = "paypal"
	PaymentMethodApplePay   PaymentMethod = "apple_pay"
)

// TransactionStatus tags the terminal outcome of a driver's transaction.
type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionFailed    TransactionStatus = "failed"
	// TransactionCancelled means the user aborted the external SDK UI
	// before a nonce was produced. Distinct from failure: there is no
	// error message worth surfacing.
	TransactionCancelled TransactionStatus = "cancelled"
)

// TransactionOutcome is the tagged result a driver reports exactly once.
type TransactionOutcome struct {
	Status  TransactionStatus
	Charge  ChargeResult // set when Status is TransactionSucceeded
	Message string       // set when Status is TransactionFailed
}

func succeededOutcome(charge ChargeResult) TransactionOutcome {
	return TransactionOutcome{Status: TransactionSucceeded, Charge: charge}
}

func failedOutcome(message string) TransactionOutcome {
	return TransactionOutcome{Status: TransactionFailed, Message: message}
}

func cancelledOutcome() TransactionOutcome {
	return TransactionOutcome{Status: TransactionCancelled}
}

// ChargeAPI is the slice of [Client] the drivers need.
type ChargeAPI interface {
	Charge(ctx context.Context, tokenID string, chargeInfo *ChargeInfo) (ChargeResult, error)
	VerifyPayPal(ctx context.Context, tokenID string, chargeInfo *ChargeInfo) (ChargeResult, error)
}

// driverDelegate receives each driver's single terminal outcome. The
// machine implements it and reconciles stale reports.
type driverDelegate interface {
	transactionDidFinish(driver PaymentDriver, outcome TransactionOutcome)
}

// PaymentDriver encapsulates one payment method's tokenization and charge
// flow. BeginTransaction must eventually cause exactly one outcome report;
// Cancel aborts any in-flight external interaction.
type PaymentDriver interface {
	Name() PaymentMethod
	BeginTransaction(ctx context.Context)
	Cancel()
}

// baseDriver carries the machinery shared by every driver: the form
// snapshot, collected nonce tokens, the charge call, and single-shot
// outcome reporting.
type baseDriver struct {
	method   PaymentMethod
	opts     *FormOptions
	api      ChargeAPI
	delegate driverDelegate

	mu          sync.Mutex
	nonceTokens map[string]string
	email       string

	finishOnce sync.Once
	cancel     context.CancelFunc
}

func newBaseDriver(method PaymentMethod, deps driverDeps) baseDriver {
	return baseDriver{
		method:      method,
		opts:        deps.opts,
		api:         deps.api,
		delegate:    deps.delegate,
		nonceTokens: map[string]string{},
	}
}

func (d *baseDriver) Name() PaymentMethod {
	return d.method
}

// Cancel aborts the driver's in-flight work. The eventual outcome is still
// reported through the delegate.
func (d *baseDriver) Cancel() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *baseDriver) setCancel(cancel context.CancelFunc) {
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
}

func (d *baseDriver) addNonce(name, nonce string) {
	d.mu.Lock()
	d.nonceTokens[name] = nonce
	d.mu.Unlock()
}

func (d *baseDriver) nonces() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.nonceTokens))
	for k, v := range d.nonceTokens {
		out[k] = v
	}
	return out
}

// readyToCompleteTransaction submits the collected nonce tokens to the
// backend. Zero collected nonces is always a failure, never a zero-cost
// success.
func (d *baseDriver) readyToCompleteTransaction(ctx context.Context) TransactionOutcome {
	return d.completeWith(ctx, d.api.Charge)
}

func (d *baseDriver) completeWith(ctx context.Context, charge func(context.Context, string, *ChargeInfo) (ChargeResult, error)) TransactionOutcome {
	tokens := d.nonces()
	if len(tokens) == 0 {
		return failedOutcome("Could not connect to any payment processing services")
	}
	chargeInfo := &ChargeInfo{
		CardTokens: tokens,
		Email:      d.email,
		Metadata:   d.opts.Metadata,
	}
	res, err := charge(ctx, d.opts.Token().ID, chargeInfo)
	if err != nil {
		return failedOutcome(err.Error())
	}
	return succeededOutcome(res)
}

// finish reports the terminal outcome exactly once; later calls are dropped.
func (d *baseDriver) finish(driver PaymentDriver, outcome TransactionOutcome) {
	d.finishOnce.Do(func() {
		d.delegate.transactionDidFinish(driver, outcome)
	})
}

// driverDeps is everything a driver factory needs to build an instance.
type driverDeps struct {
	opts     *FormOptions
	api      ChargeAPI
	delegate driverDelegate
	cfg      *machineConfig
}

type driverFactory func(deps driverDeps) PaymentDriver

// driverRegistry dispatches payment methods to driver factories.
type driverRegistry struct {
	factories map[PaymentMethod]driverFactory
}

func newDriverRegistry() *driverRegistry {
	return &driverRegistry{factories: map[PaymentMethod]driverFactory{}}
}

func (r *driverRegistry) register(method PaymentMethod, factory driverFactory) {
	r.factories[method] = factory
}

func (r *driverRegistry) build(method PaymentMethod, deps driverDeps) (PaymentDriver, error) {
	factory, ok := r.factories[method]
	if !ok {
		return nil, fmt.Errorf("no driver registered for payment method %q", method)
	}
	return factory(deps), nil
}

func defaultDriverRegistry() *driverRegistry {
	r := newDriverRegistry()
	r.register(PaymentMethodCreditCard, newCreditCardDriver)
	r.register(PaymentMethodPaypal, newPaypalDriver)
	r.register(PaymentMethodApplePay, newApplePayDriver)
	return r
}
