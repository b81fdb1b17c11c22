package accepton

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldName identifies one of the five credit-card form fields.
type FieldName string

const (
	FieldEmail    FieldName = "email"
	FieldCardNum  FieldName = "cardNum"
	FieldExpMonth FieldName = "expMonth"
	FieldExpYear  FieldName = "expYear"
	FieldSecurity FieldName = "security"
)

var allFields = []FieldName{FieldEmail, FieldCardNum, FieldExpMonth, FieldExpYear, FieldSecurity}

// FieldEventKind distinguishes the minimum set of UI events a presentation
// layer needs to render validation feedback.
type FieldEventKind string

const (
	// FieldEventShow fires the first time a field fails validation.
	FieldEventShow FieldEventKind = "show"
	// FieldEventEmphasize fires when an already-failing field fails again,
	// so the UI can use a less disruptive animation for "still wrong".
	FieldEventEmphasize FieldEventKind = "emphasize"
	// FieldEventHide fires exactly once when a failing field recovers.
	FieldEventHide FieldEventKind = "hide"
	// FieldEventUpdatedOK fires when a field validates cleanly.
	FieldEventUpdatedOK FieldEventKind = "updated"
	// FieldEventBrandChanged fires when the detected card brand differs
	// from the previously reported one.
	FieldEventBrandChanged FieldEventKind = "brand_changed"
)

// FieldEvent is one validation event for the presentation layer.
type FieldEvent struct {
	Kind    FieldEventKind
	Field   FieldName
	Message string
	Brand   CardBrand
	Value   string
}

// formSnapshot is the immutable per-pass view the validation rules run
// against.
type formSnapshot struct {
	values map[FieldName]string
}

func (s formSnapshot) get(name FieldName) string {
	return s.values[name]
}

// creditCardForm tracks per-field values and validation-error state for
// the fixed set of credit-card fields.
type creditCardForm struct {
	values   map[FieldName]string
	hasError map[FieldName]bool
	brand    CardBrand
	cards    CardValidator
}

func newCreditCardForm(cards CardValidator) *creditCardForm {
	return &creditCardForm{
		values:   map[FieldName]string{},
		hasError: map[FieldName]bool{},
		brand:    CardBrandUnknown,
		cards:    cards,
	}
}

// update stores a trimmed field value. Card-number updates additionally
// re-detect the brand and report transitions.
func (f *creditCardForm) update(name FieldName, value string) []FieldEvent {
	f.values[name] = strings.TrimSpace(value)

	var events []FieldEvent
	if name == FieldCardNum {
		brand := f.cards.BrandForNumber(f.values[name])
		if brand != f.brand {
			f.brand = brand
			events = append(events, FieldEvent{Kind: FieldEventBrandChanged, Field: FieldCardNum, Brand: brand})
		}
	}
	return events
}

// validateField runs one field's rules and converts the outcome into
// show/emphasize/hide events based on the field's previous error state.
func (f *creditCardForm) validateField(name FieldName) (bool, []FieldEvent) {
	msg := fieldError(f.snapshot(), name, f.cards)

	var events []FieldEvent
	if msg != "" {
		if !f.hasError[name] {
			f.hasError[name] = true
			events = append(events, FieldEvent{Kind: FieldEventShow, Field: name, Message: msg})
		} else {
			events = append(events, FieldEvent{Kind: FieldEventEmphasize, Field: name, Message: msg})
		}
		return false, events
	}

	if f.hasError[name] {
		f.hasError[name] = false
		events = append(events, FieldEvent{Kind: FieldEventHide, Field: name})
	}
	events = append(events, FieldEvent{Kind: FieldEventUpdatedOK, Field: name, Value: f.values[name]})
	return true, events
}

// validateAll evaluates every field even when earlier ones fail, so the
// caller gets a complete picture of every invalid field in one pass.
func (f *creditCardForm) validateAll() (bool, []FieldEvent) {
	ok := true
	var events []FieldEvent
	for _, name := range allFields {
		fieldOK, fieldEvents := f.validateField(name)
		events = append(events, fieldEvents...)
		if !fieldOK {
			ok = false
		}
	}
	return ok, events
}

// params captures the current values as the charge-time card parameters.
func (f *creditCardForm) params() *CreditCardParams {
	return &CreditCardParams{
		Number:   f.values[FieldCardNum],
		ExpMonth: f.values[FieldExpMonth],
		ExpYear:  f.values[FieldExpYear],
		CVC:      f.values[FieldSecurity],
		Email:    f.values[FieldEmail],
	}
}

// reset clears all values and error flags, e.g. when the user switches
// away from the credit-card form.
func (f *creditCardForm) reset() {
	f.values = map[FieldName]string{}
	f.hasError = map[FieldName]bool{}
	f.brand = CardBrandUnknown
}

func (f *creditCardForm) snapshot() formSnapshot {
	values := make(map[FieldName]string, len(f.values))
	for k, v := range f.values {
		values[k] = v
	}
	return formSnapshot{values: values}
}

// fieldError is the pure validation rule set: given a snapshot it returns
// the user-facing error message for one field, or "" when valid. The card
// checks are positional: number first for brand detection, then expiry,
// then CVC against the detected brand.
func fieldError(s formSnapshot, name FieldName, cards CardValidator) string {
	switch name {
	case FieldEmail:
		email := s.get(FieldEmail)
		if email == "" {
			return "Please enter an email"
		}
		if err := validate.Var(email, "email"); err != nil {
			return "Please check your email"
		}
	case FieldCardNum:
		num := s.get(FieldCardNum)
		if num == "" {
			return "Please enter a card number"
		}
		if !cards.ValidateNumber(num) {
			return "Please check your card number"
		}
	case FieldExpMonth:
		month := s.get(FieldExpMonth)
		if month == "" {
			return "Please enter the expiration month"
		}
		if !cards.ValidateExpMonth(month) {
			return "Please check your expiration month"
		}
	case FieldExpYear:
		year := s.get(FieldExpYear)
		if year == "" {
			return "Please enter the expiration year"
		}
		if !cards.ValidateExpYear(year, s.get(FieldExpMonth)) {
			return "Please check your expiration year"
		}
	case FieldSecurity:
		cvc := s.get(FieldSecurity)
		if cvc == "" {
			return "Please enter the security code"
		}
		if !cards.ValidateCVC(cvc, cards.BrandForNumber(s.get(FieldCardNum))) {
			return "Please check your security code"
		}
	}
	return ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	first := validationErrs[0]
	return fmt.Errorf("%s %s", first.Field(), validationMessage(first))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must contain digits only"
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
