package accepton

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MachineState is the UIMachine's workflow state. Transitions are strictly
// forward-moving except WaitingForTransaction -> PaymentForm, the retry
// path taken when a driver cancels or fails.
type MachineState string

const (
	StateInitialized           MachineState = "Initialized"           // BeginForItem has not been called.
	StateBeginWasCalled        MachineState = "BeginWasCalled"        // Token and form configuration are loading.
	StatePaymentForm           MachineState = "PaymentForm"           // The form is interactive.
	StateExtraFields           MachineState = "ExtraFields"           // Awaiting additional user info.
	StateWaitingForTransaction MachineState = "WaitingForTransaction" // A driver owns the flow.
	StatePaymentComplete       MachineState = "PaymentComplete"       // Terminal; the charge went through.
)

// UIMachineDelegate is implemented by the presentation layer. Every method
// is required; implementations that do not care about an event leave the
// body empty.
type UIMachineDelegate interface {
	// DidFailBegin reports a non-recoverable begin failure. The machine is
	// dead; construct a new one to retry.
	DidFailBegin(err *Error)
	// DidFinishBeginWithFormOptions delivers the loaded form configuration.
	DidFinishBeginWithFormOptions(options *FormOptions)

	ShowValidationErrorForField(field FieldName, message string)
	EmphasizeValidationErrorForField(field FieldName, message string)
	HideValidationErrorForField(field FieldName)
	FieldUpdatedSuccessfully(field FieldName, value string)
	CreditCardBrandDidChange(brand CardBrand)
	DidSetInitialFieldValue(field FieldName, value string)

	PaymentIsProcessing(method PaymentMethod)
	PaymentDidAbort(method PaymentMethod)
	PaymentErrorWithMessage(message string)
	PaymentDidSucceed(charge ChargeResult)

	// RequestAdditionalUserInfo asks the presentation layer to collect
	// billing/shipping details. The machine suspends until completion is
	// invoked; cancelling aborts back to the payment form.
	RequestAdditionalUserInfo(userInfo *OptionalUserInfo, completion func(wasCancelled bool, info *ExtraFieldsMetadata))
}

// CheckoutAPI is the slice of [Client] the machine needs. Narrow on
// purpose so tests and self-hosted backends can stand in.
type CheckoutAPI interface {
	CreateTransactionToken(ctx context.Context, description string, amountInCents int) (*TransactionToken, error)
	GetAvailablePaymentMethods(ctx context.Context, tokenID string) (*PaymentMethodsInfo, error)
	ChargeAPI
}

// UIMachine owns the checkout workflow for exactly one transaction
// attempt: token creation, payment-method discovery, form validation,
// driver selection, optional extra-info collection, charge submission,
// and completion. All state transitions happen under one lock so user
// input events and asynchronous network callbacks cannot race.
type UIMachine struct {
	api      CheckoutAPI
	delegate UIMachineDelegate
	cfg      machineConfig
	registry *driverRegistry

	mu           sync.Mutex
	state        MachineState
	options      *FormOptions
	form         *creditCardForm
	focusedField FieldName
	hasFocus     bool
	activeDriver PaymentDriver
}

// NewUIMachine builds a machine for one checkout attempt. A machine is
// single-use: once its begin sequence fails or its payment completes, a
// fresh instance is required for the next attempt.
func NewUIMachine(api CheckoutAPI, delegate UIMachineDelegate, opts ...MachineOption) *UIMachine {
	if api == nil {
		panic("accepton: api is required")
	}
	if delegate == nil {
		panic("accepton: delegate is required")
	}
	cfg := defaultMachineConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &UIMachine{
		api:      api,
		delegate: delegate,
		cfg:      cfg,
		registry: defaultDriverRegistry(),
		state:    StateInitialized,
		form:     newCreditCardForm(cfg.cardValidator),
	}
}

// State returns the current workflow state.
func (m *UIMachine) State() MachineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FormOptions returns the loaded form configuration, or nil before the
// begin sequence finishes.
func (m *UIMachine) FormOptions() *FormOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options
}

// BeginForItem is the one-shot second-stage initializer: it requests a
// transaction token and the payment-method configuration for the item,
// then reports DidFinishBeginWithFormOptions. Calling it in any state but
// Initialized is a developer error reported through DidFailBegin, without
// touching the in-flight state or re-issuing any request.
func (m *UIMachine) BeginForItem(description string, amountInCents int) {
	m.mu.Lock()
	if m.state != StateInitialized {
		m.mu.Unlock()
		m.delegate.DidFailBegin(NewDeveloperError("You already called BeginForItem; it runs once per UIMachine. Construct a new UIMachine for a new checkout."))
		return
	}
	m.state = StateBeginWasCalled
	m.mu.Unlock()

	m.cfg.schedule(func() {
		m.runBegin(description, amountInCents)
	})
}

func (m *UIMachine) runBegin(description string, amountInCents int) {
	ctx := context.Background()

	token, err := m.api.CreateTransactionToken(ctx, description, amountInCents)
	if err != nil {
		// Non-recoverable; the caller starts over with a new machine.
		m.delegate.DidFailBegin(asSDKError(err))
		return
	}

	methods, err := m.api.GetAvailablePaymentMethods(ctx, token.ID)
	if err != nil {
		m.delegate.DidFailBegin(asSDKError(err))
		return
	}

	applePayReady := m.cfg.applePay != nil && m.cfg.applePay.Availability() == WalletReady

	m.mu.Lock()
	m.options = newFormOptions(token, methods, m.cfg.userInfo, applePayReady)
	m.state = StatePaymentForm
	options := m.options
	m.mu.Unlock()

	m.cfg.logger.Info("checkout form ready",
		"token", token.ID, "amount_cents", token.AmountInCents)
	m.delegate.DidFinishBeginWithFormOptions(options)
}

// CreditCardFieldDidFocus notes that a field gained focus. The field that
// previously held focus is validated. No-op outside PaymentForm.
func (m *UIMachine) CreditCardFieldDidFocus(name FieldName) {
	m.mu.Lock()
	if m.state != StatePaymentForm {
		m.mu.Unlock()
		return
	}
	var events []FieldEvent
	if m.hasFocus {
		_, events = m.form.validateField(m.focusedField)
	}
	m.focusedField = name
	m.hasFocus = true
	m.mu.Unlock()

	m.emitFieldEvents(events)
}

// CreditCardFieldDidLoseFocus validates the field that had focus. No-op
// outside PaymentForm.
func (m *UIMachine) CreditCardFieldDidLoseFocus() {
	m.mu.Lock()
	if m.state != StatePaymentForm || !m.hasFocus {
		m.mu.Unlock()
		return
	}
	field := m.focusedField
	m.hasFocus = false
	_, events := m.form.validateField(field)
	m.mu.Unlock()

	m.emitFieldEvents(events)
}

// CreditCardFieldDidUpdate stores a new field value, e.g. on every
// keystroke. Card-number updates report brand transitions immediately;
// everything else waits for focus loss or the pay click to validate.
// No-op outside PaymentForm.
func (m *UIMachine) CreditCardFieldDidUpdate(name FieldName, value string) {
	m.mu.Lock()
	if m.state != StatePaymentForm {
		m.mu.Unlock()
		return
	}
	events := m.form.update(name, value)
	m.mu.Unlock()

	m.emitFieldEvents(events)
}

// DidSwitchToCreditCardForm pre-populates the email field from the
// caller's autofill hint. Hosts with a payment-type chooser call this
// whenever the card form becomes visible.
func (m *UIMachine) DidSwitchToCreditCardForm() {
	userInfo := m.cfg.userInfo
	if userInfo == nil || userInfo.EmailAutofillHint == "" {
		return
	}

	m.mu.Lock()
	if m.state != StatePaymentForm {
		m.mu.Unlock()
		return
	}
	events := m.form.update(FieldEmail, userInfo.EmailAutofillHint)
	_, validationEvents := m.form.validateField(FieldEmail)
	events = append(events, validationEvents...)
	m.mu.Unlock()

	m.delegate.DidSetInitialFieldValue(FieldEmail, userInfo.EmailAutofillHint)
	m.emitFieldEvents(events)
}

// DidSwitchFromCreditCardForm clears all field values and error flags.
func (m *UIMachine) DidSwitchFromCreditCardForm() {
	m.mu.Lock()
	m.form.reset()
	m.mu.Unlock()
}

// CreditCardPayClicked validates every field unconditionally, so the UI
// can show all problems at once, and starts a credit-card transaction only
// when all five pass. No-op outside PaymentForm.
func (m *UIMachine) CreditCardPayClicked() {
	m.mu.Lock()
	if m.state != StatePaymentForm {
		m.mu.Unlock()
		return
	}
	ok, events := m.form.validateAll()
	if !ok {
		m.mu.Unlock()
		m.emitFieldEvents(events)
		return
	}
	m.options.CreditCardParams = m.form.params()
	m.mu.Unlock()

	m.emitFieldEvents(events)
	m.startTransaction(PaymentMethodCreditCard, 0)
}

// PaypalClicked starts a PayPal transaction. No-op outside PaymentForm.
func (m *UIMachine) PaypalClicked() {
	m.startTransaction(PaymentMethodPaypal, m.cfg.affordanceDelay)
}

// ApplePayClicked starts an Apple Pay transaction. No-op outside PaymentForm.
func (m *UIMachine) ApplePayClicked() {
	m.startTransaction(PaymentMethodApplePay, m.cfg.affordanceDelay)
}

// startTransaction is the shared transaction-start sequence: claim the
// form, announce processing, collect extra fields when the caller demanded
// them, then hand the form snapshot to the method's driver. The
// PaymentForm check and the ExtraFields transition form one critical
// section so concurrent clicks cannot both start a driver.
func (m *UIMachine) startTransaction(method PaymentMethod, delay time.Duration) {
	m.mu.Lock()
	if m.state != StatePaymentForm {
		m.mu.Unlock()
		return
	}
	m.state = StateExtraFields
	m.mu.Unlock()

	m.delegate.PaymentIsProcessing(method)

	run := func() {
		m.mu.Lock()
		if m.state != StateExtraFields {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		m.collectExtraFieldsAndBegin(method)
	}
	if delay <= 0 {
		m.cfg.schedule(run)
		return
	}
	m.cfg.after(delay, run)
}

func (m *UIMachine) collectExtraFieldsAndBegin(method PaymentMethod) {
	userInfo := m.cfg.userInfo

	m.mu.Lock()
	if userInfo != nil {
		for k, v := range userInfo.ExtraMetadata {
			m.options.Metadata[k] = v
		}
	}
	m.mu.Unlock()

	if !userInfo.needsExtraFields() {
		m.beginDriver(method)
		return
	}

	m.delegate.RequestAdditionalUserInfo(userInfo, func(wasCancelled bool, info *ExtraFieldsMetadata) {
		m.mu.Lock()
		if m.state != StateExtraFields {
			m.mu.Unlock()
			return
		}
		if wasCancelled {
			m.state = StatePaymentForm
			m.mu.Unlock()
			m.delegate.PaymentDidAbort(method)
			return
		}
		for k, v := range info.ToMetadata() {
			m.options.Metadata[k] = v
		}
		m.mu.Unlock()
		m.beginDriver(method)
	})
}

// beginDriver instantiates the method's driver with the current form
// snapshot and begins it. Exactly one driver is active at a time; the
// state checks above prevent a second transaction from starting.
func (m *UIMachine) beginDriver(method PaymentMethod) {
	m.mu.Lock()
	driver, err := m.registry.build(method, driverDeps{
		opts:     m.options,
		api:      m.api,
		delegate: m,
		cfg:      &m.cfg,
	})
	if err != nil {
		m.state = StatePaymentForm
		m.mu.Unlock()
		m.delegate.PaymentDidAbort(method)
		m.delegate.PaymentErrorWithMessage(err.Error())
		return
	}
	m.state = StateWaitingForTransaction
	m.activeDriver = driver
	m.mu.Unlock()

	m.cfg.logger.Info("transaction started", "method", string(method))
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.driverTimeout)
	m.cfg.schedule(func() {
		defer cancel()
		driver.BeginTransaction(ctx)
	})
}

// transactionDidFinish implements driverDelegate. Cancel and failure are
// honored only while the reporting driver is still the active one in
// WaitingForTransaction; stale reports from a superseded driver are
// discarded. Success is honored unconditionally, even late: dropping it
// would silently lose confirmation of a charge that went through. That
// policy carries a known double-charge review flag from the original
// design and is preserved deliberately.
func (m *UIMachine) transactionDidFinish(driver PaymentDriver, outcome TransactionOutcome) {
	switch outcome.Status {
	case TransactionSucceeded:
		m.mu.Lock()
		m.state = StatePaymentComplete
		m.activeDriver = nil
		if m.options != nil {
			m.options.CreditCardParams = nil
		}
		m.mu.Unlock()
		m.cfg.logger.Info("payment succeeded", "method", string(driver.Name()))
		m.delegate.PaymentDidSucceed(outcome.Charge)

	case TransactionFailed:
		if !m.resetAfterDriver(driver) {
			return
		}
		m.cfg.logger.Info("payment failed", "method", string(driver.Name()), "message", outcome.Message)
		m.delegate.PaymentDidAbort(driver.Name())
		m.delegate.PaymentErrorWithMessage(outcome.Message)

	case TransactionCancelled:
		if !m.resetAfterDriver(driver) {
			return
		}
		m.cfg.logger.Info("payment cancelled", "method", string(driver.Name()))
		m.delegate.PaymentDidAbort(driver.Name())
	}
}

// resetAfterDriver returns the machine to the interactive form if the
// report came from the active driver during WaitingForTransaction.
func (m *UIMachine) resetAfterDriver(driver PaymentDriver) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateWaitingForTransaction || m.activeDriver != driver {
		return false
	}
	m.state = StatePaymentForm
	m.activeDriver = nil
	m.options.CreditCardParams = nil
	return true
}

func (m *UIMachine) emitFieldEvents(events []FieldEvent) {
	for _, ev := range events {
		switch ev.Kind {
		case FieldEventShow:
			m.delegate.ShowValidationErrorForField(ev.Field, ev.Message)
		case FieldEventEmphasize:
			m.delegate.EmphasizeValidationErrorForField(ev.Field, ev.Message)
		case FieldEventHide:
			m.delegate.HideValidationErrorForField(ev.Field)
		case FieldEventUpdatedOK:
			m.delegate.FieldUpdatedSuccessfully(ev.Field, ev.Value)
		case FieldEventBrandChanged:
			m.delegate.CreditCardBrandDidChange(ev.Brand)
		}
	}
}

// asSDKError coerces any error into the SDK's typed error for delegate
// delivery.
func asSDKError(err error) *Error {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr
	}
	return NewNetworkError(err.Error(), err)
}
