package backendsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doJSON performs a JSON request against the backend. The API key header is
// always set; token, when non-empty, is sent as the bearer credential so the
// backend applies the caller's row-level permissions. A nil target discards
// the response body after error checking.
func (c *Client) doJSON(
	ctx context.Context,
	method, path string,
	token string,
	payload any,
	target any,
) error {
	return c.doJSONWithHeaders(ctx, method, path, token, payload, target, nil)
}

// doJSONWithHeaders is doJSON with extra request headers, used by the query
// builder for representation and single-object negotiation.
func (c *Client) doJSONWithHeaders(
	ctx context.Context,
	method, path string,
	token string,
	payload any,
	target any,
	headers map[string]string,
) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	bearer := token
	if bearer == "" {
		// Unauthenticated calls still authenticate as the public API role.
		bearer = c.APIKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if apiErr := parseErrorResponse(resp, bodyBytes); apiErr != nil {
		return apiErr
	}

	if target == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
