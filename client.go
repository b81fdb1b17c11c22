package accepton

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// Client talks to the AcceptOn checkout API. The zero value is unusable;
// construct one with [NewClient]. A public key is sufficient for the whole
// checkout flow; a secret key additionally unlocks refunds.
type Client struct {
	accessKey string
	cfg       clientConfig
}

// NewClient builds an API client against the staging endpoint. Pass
// [WithProduction] for live transactions.
func NewClient(accessKey string, opts ...ClientOption) *Client {
	if accessKey == "" {
		panic("accepton: access key is required")
	}
	cfg := clientConfig{
		endpoint:       stagingEndpointURL,
		httpClient:     http.DefaultClient,
		requestTimeout: defaultRequestTimeout,
		clock:          time.Now,
		logger:         discardLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &Client{accessKey: accessKey, cfg: cfg}
}

// Endpoint returns the base URL the client is configured against.
func (c *Client) Endpoint() string {
	return c.cfg.endpoint
}

// CreateTransactionToken starts a checkout attempt for an item. The
// returned token identifies the transaction in every subsequent call.
func (c *Client) CreateTransactionToken(ctx context.Context, description string, amountInCents int) (*TransactionToken, error) {
	body, err := json.Marshal(map[string]any{
		"access_token": c.accessKey,
		"amount":       strconv.Itoa(amountInCents),
		"description":  description,
	})
	if err != nil {
		return nil, NewDeveloperError(fmt.Sprintf("could not encode token request: %v", err))
	}
	res, err := c.postJSON(ctx, "/v1/tokens", body, requestOptions{})
	if err != nil {
		return nil, err
	}
	token, parseErr := ParseTokenResponse(res)
	if parseErr != nil {
		return nil, NewMalformedResponseError(fmt.Sprintf("the token response for %q was not a Transaction Token Object: %v", description, parseErr))
	}
	return token, nil
}

// GetAvailablePaymentMethods fetches the form configuration for a
// transaction token: which payment methods are enabled and the processor
// configuration each one needs.
func (c *Client) GetAvailablePaymentMethods(ctx context.Context, tokenID string) (*PaymentMethodsInfo, error) {
	query := url.Values{}
	query.Set("access_token", c.accessKey)
	query.Set("token_id", tokenID)
	res, err := c.getJSON(ctx, "/v1/form/configure", query)
	if err != nil {
		return nil, err
	}
	config, ok := res["config"].(map[string]any)
	if !ok {
		return nil, NewMalformedResponseError("the form configuration response did not contain a config object")
	}
	info, parseErr := ParsePaymentMethodsConfig(config)
	if parseErr != nil {
		return nil, NewMalformedResponseError(fmt.Sprintf("couldn't parse the payment methods configuration: %v", parseErr))
	}
	return info, nil
}

// Charge submits the collected nonce tokens (or raw card) against a
// transaction token. This is the terminal call of every non-PayPal driver.
func (c *Client) Charge(ctx context.Context, tokenID string, chargeInfo *ChargeInfo) (ChargeResult, error) {
	return c.submitCharge(ctx, "/v1/charges", tokenID, chargeInfo)
}

// VerifyPayPal confirms a PayPal payment id against a transaction token.
// PayPal's handshake requires this distinct backend path instead of the
// generic charge endpoint.
func (c *Client) VerifyPayPal(ctx context.Context, tokenID string, chargeInfo *ChargeInfo) (ChargeResult, error) {
	return c.submitCharge(ctx, "/v1/mobile/paypal/verify", tokenID, chargeInfo)
}

func (c *Client) submitCharge(ctx context.Context, path, tokenID string, chargeInfo *ChargeInfo) (ChargeResult, error) {
	if chargeInfo == nil {
		return nil, NewDeveloperError("chargeInfo is required")
	}
	if err := chargeInfo.Validate(); err != nil {
		return nil, NewDeveloperError(err.Error())
	}
	base, err := json.Marshal(map[string]any{
		"access_token": c.accessKey,
		"token":        tokenID,
	})
	if err != nil {
		return nil, NewDeveloperError(fmt.Sprintf("could not encode charge request: %v", err))
	}
	chargeFields, err := json.Marshal(chargeInfo)
	if err != nil {
		return nil, NewDeveloperError(fmt.Sprintf("could not encode charge info: %v", err))
	}
	body, err := runtime.JSONMerge(base, chargeFields)
	if err != nil {
		return nil, NewDeveloperError(fmt.Sprintf("could not assemble charge request: %v", err))
	}
	res, err := c.postJSON(ctx, path, body, requestOptions{
		idempotencyKey: uuid.NewString(),
		sign:           true,
	})
	if err != nil {
		return nil, err
	}
	return ChargeResult(res), nil
}

// RefundCharge refunds part or all of a completed charge. Requires a
// secret-key client.
func (c *Client) RefundCharge(ctx context.Context, tokenID, chargeID string, amountInCents int) (map[string]any, error) {
	query := url.Values{}
	query.Set("access_token", c.accessKey)
	query.Set("token", tokenID)
	query.Set("charge_id", chargeID)
	query.Set("amount", strconv.Itoa(amountInCents))
	return c.getJSON(ctx, "/v1/refunds", query)
}
