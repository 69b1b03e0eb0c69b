// Package uma is the client for the external UMA deprovisioning API:
// bearer-token JSON over HTTP. This suite consumes the protocol, it does
// not own it.
package uma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"testex/config"
)

var (
	// ErrNotFound maps a 404 for a client, service, or purge job.
	ErrNotFound = errors.New("uma: not found")
	// ErrUnauthorized maps a 401 (bad or missing API key).
	ErrUnauthorized = errors.New("uma: unauthorized")
)

// Client mirrors the remote customer object.
type Client struct {
	ClientID    string         `json:"clientId"`
	Name        string         `json:"name"`
	Status      string         `json:"status"`
	CreatedDate string         `json:"createdDate"`
	Settings    map[string]any `json:"settings"`
	Services    []string       `json:"services"`
}

// PurgeJob tracks an asynchronous deep-delete.
type PurgeJob struct {
	PurgeID   string `json:"purgeId"`
	ClientID  string `json:"clientId"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// LogEntry is one remote activity record.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// API is the HTTP client. A fixed per-request timeout applies to every call.
type API struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewAPI(cfg config.UMA) *API {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &API{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *API) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("uma: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("uma: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uma: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("uma: %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("uma: decode response: %w", err)
	}
	return nil
}

// Health probes the unauthenticated health endpoint.
func (c *API) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return err
	}
	if status.Status != "healthy" {
		return fmt.Errorf("uma: unhealthy: %q", status.Status)
	}
	return nil
}

// GetClient fetches the remote customer object; nil means absent.
func (c *API) GetClient(ctx context.Context, clientID string) (*Client, error) {
	var client Client
	err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID), nil, &client)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

// RemoveService deletes one service entitlement from the customer.
func (c *API) RemoveService(ctx context.Context, clientID, service string) error {
	path := fmt.Sprintf("/clients/%s/services/%s", url.PathEscape(clientID), url.PathEscape(service))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Disable disables the customer account.
func (c *API) Disable(ctx context.Context, clientID, reason string) error {
	body := map[string]string{"disabledBy": "testex", "reason": reason}
	return c.do(ctx, http.MethodPost, "/clients/"+url.PathEscape(clientID)+"/disable", body, nil)
}

// UpdateStatus sets the remote customer status.
func (c *API) UpdateStatus(ctx context.Context, clientID, status, notes string) error {
	body := map[string]string{"status": status, "updatedBy": "testex", "notes": notes}
	return c.do(ctx, http.MethodPut, "/clients/"+url.PathEscape(clientID)+"/status", body, nil)
}

// GetLogs fetches recent remote activity for the customer.
func (c *API) GetLogs(ctx context.Context, clientID string) ([]LogEntry, error) {
	var out struct {
		Logs  []LogEntry `json:"logs"`
		Total int        `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID)+"/logs", nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

// StartPurge initiates the asynchronous deep-delete and returns the job id
// immediately; callers poll PurgeStatus separately.
func (c *API) StartPurge(ctx context.Context, clientID string, force bool) (string, error) {
	body := map[string]any{"requestedBy": "testex", "force": force}
	var out struct {
		PurgeID string `json:"purgeId"`
	}
	if err := c.do(ctx, http.MethodPost, "/clients/"+url.PathEscape(clientID)+"/purge", body, &out); err != nil {
		return "", err
	}
	return out.PurgeID, nil
}

// PurgeStatus queries a previously started purge job.
func (c *API) PurgeStatus(ctx context.Context, purgeID string) (*PurgeJob, error) {
	var job PurgeJob
	if err := c.do(ctx, http.MethodGet, "/purge/"+url.PathEscape(purgeID)+"/status", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
