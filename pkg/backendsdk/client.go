package backendsdk

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every remote call made through the client. The
// backend is a hosted service; a hung call must fail as a network error
// rather than stall the caller indefinitely.
const DefaultTimeout = 10 * time.Second

// Client is a client for the hosted backend. One Client is shared by the
// whole process; per-user state lives in Auth values created from it.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a backend client. baseURL and apiKey select the backend
// project and its public API key; both are required.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backendsdk: base URL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("backendsdk: API key is required")
	}

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

// Auth creates a new auth handle bound to this client. Each browser session
// owns its own Auth value; they do not share token state.
func (c *Client) Auth() *Auth {
	return &Auth{client: c, listeners: make(map[int]AuthChangeHandler)}
}
