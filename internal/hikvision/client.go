// Package hikvision is the outbound client for the access-control vendor
// API: token exchange and person privilege pushes.
package hikvision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	TokenPath           = "/api/v1/oauth/token"
	PersonPrivilegePath = "/api/v1/person/privileges"

	codeSuccess      = "0"
	codeTokenInvalid = "401"

	// Vendor replies are small; anything larger is treated as garbage.
	maxResponseBody = 64 << 10
)

var ErrTokenRejected = errors.New("hikvision: token rejected")

// APIError is a non-success reply from the vendor, either an HTTP error
// status or a non-zero envelope code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hikvision: status=%d code=%s msg=%s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match token rejections with errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Code == codeTokenInvalid {
		return ErrTokenRejected
	}
	return nil
}

type Client struct {
	httpClient *http.Client
}

// NewClient returns a client whose every call is bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// ExchangeToken trades application credentials for a bearer token.
func (c *Client) ExchangeToken(ctx context.Context, baseURL, appKey, appSecret string) (TokenResponse, error) {
	var out TokenResponse
	err := c.post(ctx, baseURL+TokenPath, "", TokenRequest{AppKey: appKey, SecretKey: appSecret}, &out)
	if err != nil {
		return TokenResponse{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return TokenResponse{}, &APIError{Status: http.StatusOK, Code: "empty_token", Message: "token response without accessToken"}
	}
	return out, nil
}

// PushPersonPrivileges sends the complete privilege set for one person.
func (c *Client) PushPersonPrivileges(ctx context.Context, baseURL, token string, req PersonPrivilegeRequest) error {
	if req.Doors == nil {
		req.Doors = []string{}
	}
	return c.post(ctx, baseURL+PersonPrivilegePath, token, req, nil)
}

func (c *Client) post(ctx context.Context, url, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("hikvision: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("hikvision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hikvision: request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("hikvision: read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Msg}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("hikvision: decode response: %w", decodeErr)
	}
	if env.Code != codeSuccess {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("hikvision: decode data: %w", err)
		}
	}
	return nil
}
