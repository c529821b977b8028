package backendsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes reported by the backend auth API.
const (
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeUserAlreadyExists  = "user_already_exists"
	ErrorCodeSessionMissing     = "session_missing"
	ErrorCodeServerError        = "server_error"
)

// APIError represents an error response from the backend. It implements the
// error interface and preserves the backend's error code and description so
// callers can map it into their own taxonomy.
type APIError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int `json:"-"`

	// Code is the backend error code (e.g. "invalid_credentials")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// IsAuthFailure reports whether the error is a credential or account
// failure, as opposed to the backend being unreachable or broken.
func (e *APIError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusBadRequest ||
		e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusUnprocessableEntity ||
		e.StatusCode == http.StatusConflict
}

// AsAPIError unwraps err into an *APIError if it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// parseErrorResponse turns a non-2xx backend response into a typed error.
// The auth API answers {"error","error_description"}; the query API answers
// {"code","message"}; anything else degrades to a status-code error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		desc := errResp.ErrorDescription
		if desc == "" {
			desc = errResp.Msg
		}
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: desc,
		}
	}

	var queryErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &queryErr); err == nil && queryErr.Message != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        queryErr.Code,
			Description: queryErr.Message,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
