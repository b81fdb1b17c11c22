package accepton

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/accepton/accepton-go/signature"
)

// requestOptions tweaks per-call transport behavior.
type requestOptions struct {
	// idempotencyKey is attached to charge-like requests so a retried
	// submission cannot double-charge.
	idempotencyKey string
	// sign requests Signature/Timestamp headers when a signer is configured.
	sign bool
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	return c.doRequest(ctx, http.MethodGet, path, query, nil, requestOptions{})
}

func (c *Client) postJSON(ctx context.Context, path string, body json.RawMessage, opts requestOptions) (map[string]any, error) {
	return c.doRequest(ctx, http.MethodPost, path, nil, body, opts)
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body json.RawMessage, opts requestOptions) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.requestTimeout)
	defer cancel()

	fullURL := c.cfg.endpoint + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, NewNetworkError("could not build the API request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", opts.idempotencyKey)
	}
	if opts.sign && c.cfg.signer != nil {
		if err := c.signRequest(ctx, req, body); err != nil {
			return nil, err
		}
	}

	c.cfg.logger.DebugContext(ctx, "accepton api request",
		"method", method, "path", path)

	res, err := c.cfg.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("could not connect to the network: %v", err), err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := errorForStatus(res.StatusCode)
		c.cfg.logger.DebugContext(ctx, "accepton api error",
			"path", path, "status", res.StatusCode, "kind", string(apiErr.Kind))
		return nil, apiErr
	}

	payload, err := decodeJSONObject(res.Body)
	if err != nil {
		return nil, NewMalformedResponseError("AcceptOn's API returned data that could not be converted into JSON. It may be blank or malformed JSON.")
	}
	return payload, nil
}

func (c *Client) signRequest(ctx context.Context, req *http.Request, body json.RawMessage) error {
	canonicalBody, err := signature.CanonicalizeJSONBody(body)
	if err != nil {
		return NewDeveloperError(fmt.Sprintf("request body could not be canonicalized for signing: %v", err))
	}
	ts := c.cfg.clock().UTC()
	sig, err := c.cfg.signer.Sign(ctx, signature.Material{
		Timestamp:     ts,
		CanonicalBody: canonicalBody,
		Method:        req.Method,
		Path:          req.URL.Path,
	})
	if err != nil {
		return NewDeveloperError(fmt.Sprintf("request signer failed: %v", err))
	}
	req.Header.Set("Signature", sig)
	req.Header.Set("Timestamp", ts.Format(time.RFC3339Nano))
	return nil
}

func decodeJSONObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
