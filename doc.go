// Package accepton is a headless Go port of the AcceptOn checkout SDK.
// It drives a single checkout attempt end to end: issuing a transaction
// token, discovering which payment methods are enabled for it, validating
// credit-card form input, tokenizing payment credentials through processor
// SDKs, and submitting the final charge.
//
// # UIMachine
//
// [UIMachine] owns the workflow for exactly one transaction attempt. Build
// one with [NewUIMachine], attach a [UIMachineDelegate], and call
// [UIMachine.BeginForItem] once. The machine reports form configuration,
// field-level validation events, and the final payment outcome through the
// delegate. A machine whose begin sequence failed cannot be restarted;
// construct a new one.
//
// # Drivers
//
// Each payment method is handled by a driver implementing [PaymentDriver].
// Credit-card transactions tokenize the raw card through every registered
// [CardTokenizer] (Stripe ships in-tree, see [NewStripeTokenizer]); wallet
// methods (PayPal, Apple Pay) interact with a platform SDK through the
// [WalletAuthorizer] interface and reconcile the SDK's UI-dismissal signal
// with the backend charge confirmation.
//
// # API client
//
// [Client] wraps the AcceptOn HTTP API: token creation, payment-method
// discovery, charges, PayPal verification, and refunds. Requests can be
// signed with [signature.HMACSigner] via [WithRequestSigner].
package accepton
