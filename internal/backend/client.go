// Package backend is a minimal client for the venue landing/registration API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"venuepass/internal/domain"
)

const (
	eventPath       = "web/landing/registration/event/%s"
	verifyPhonePath = "web/landing/registration/verify-phone"
	registerPath    = "web/landing/registration/register"
	listEventsPath  = "web/landing/events/all"
)

// Client talks JSON over HTTP. The zero Timeout means no client-side limit.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses that do not carry a response envelope.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetEvent fetches one event. A decoded envelope with success=false is
// returned without error.
func (c *Client) GetEvent(ctx context.Context, eventID string) (domain.EventResponse, error) {
	var resp domain.EventResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf(eventPath, url.PathEscape(eventID)), nil, &resp)
	return resp, err
}

// ListEvents fetches the bucketed listing.
func (c *Client) ListEvents(ctx context.Context) (domain.EventListResponse, error) {
	var resp domain.EventListResponse
	err := c.do(ctx, http.MethodGet, listEventsPath, nil, &resp)
	return resp, err
}

func (c *Client) VerifyPhone(ctx context.Context, req domain.VerifyPhoneRequest) (domain.VerifyPhoneResponse, error) {
	var resp domain.VerifyPhoneResponse
	err := c.do(ctx, http.MethodPost, verifyPhonePath, req, &resp)
	return resp, err
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error) {
	var resp domain.RegisterResponse
	err := c.do(ctx, http.MethodPost, registerPath, req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		// Business failures come back as envelopes with a 4xx status.
		if out != nil && isEnvelope(b) {
			return json.Unmarshal(b, out)
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
	}
	return nil
}

func isEnvelope(b []byte) bool {
	var probe struct {
		Success *bool `json:"success"`
	}
	return json.Unmarshal(b, &probe) == nil && probe.Success != nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
