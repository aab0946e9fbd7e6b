// Package client is the typed wrapper over the leaddesk REST contract
// shared by the widget, console and admin clients. Idempotent reads get
// a bounded retry with backoff; writes fail fast and leave retry policy
// to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"leaddesk/internal/models"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 3
	retryBase      = 500 * time.Millisecond
)

type Client struct {
	base    string
	http    *http.Client
	retries int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		retries: defaultRetries,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope is the common response wrapper; success=false means error
// regardless of HTTP status.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError is a response the server produced deliberately (success=false
// or a malformed body). Deterministic: retrying would only repeat it.
type APIError struct {
	Method string
	Path   string
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Msg)
}

type SaveCustomerResult struct {
	CustomerID int64  `json:"customer_id"`
	SessionID  string `json:"session_id"`
}

type BotReply struct {
	Response             string `json:"response"`
	ContextUsed          bool   `json:"context_used"`
	KnowledgeBaseResults int    `json:"knowledge_base_results"`
	ModelUsed            string `json:"model_used"`
}

func (c *Client) SaveCustomer(ctx context.Context, name, contact, source string, dev models.DeviceInfo, timeSpentSec int) (*SaveCustomerResult, error) {
	body := map[string]any{
		"name":        name,
		"contact":     contact,
		"source":      source,
		"device_info": dev,
		"time_spent":  timeSpentSec,
	}
	var out struct {
		envelope
		SaveCustomerResult
	}
	if err := c.postJSON(ctx, "/api/customer/save", body, &out); err != nil {
		return nil, err
	}
	return &out.SaveCustomerResult, nil
}

func (c *Client) UpdateTime(ctx context.Context, customerID int64, timeSpentSec int) error {
	q := url.Values{}
	q.Set("customer_id", strconv.FormatInt(customerID, 10))
	q.Set("time_spent", strconv.Itoa(timeSpentSec))
	var out envelope
	return c.postParams(ctx, "/api/customer/update-time", q, &out)
}

func (c *Client) RequestAgent(ctx context.Context, customerID int64, sessionID string) error {
	q := url.Values{}
	q.Set("customer_id", strconv.FormatInt(customerID, 10))
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	var out envelope
	return c.postParams(ctx, "/api/customer/request-agent", q, &out)
}

func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	q := url.Values{}
	q.Set("session_id", sessionID)
	var out envelope
	return c.postParams(ctx, "/api/customer/end-session", q, &out)
}

func (c *Client) BotMessage(ctx context.Context, message string) (*BotReply, error) {
	var out struct {
		envelope
		BotReply
	}
	if err := c.postJSON(ctx, "/api/chatbot/message", map[string]string{"message": message}, &out); err != nil {
		return nil, err
	}
	return &out.BotReply, nil
}

func (c *Client) SaveMessage(ctx context.Context, customerID int64, sessionID, text, sender string) error {
	q := url.Values{}
	q.Set("customer_id", strconv.FormatInt(customerID, 10))
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	q.Set("message", text)
	q.Set("sender", sender)
	var out envelope
	return c.postParams(ctx, "/api/chat/save-message", q, &out)
}

func (c *Client) Messages(ctx context.Context, customerID int64) ([]models.Message, error) {
	var out struct {
		envelope
		Messages []models.Message `json:"messages"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/customers/%d/messages", customerID), &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) AgentQueue(ctx context.Context) ([]models.Lead, error) {
	var out struct {
		envelope
		Queue []models.Lead `json:"queue"`
	}
	if err := c.get(ctx, "/api/agent/queue", &out); err != nil {
		return nil, err
	}
	return out.Queue, nil
}

func (c *Client) AgentSendMessage(ctx context.Context, customerID int64, text string) error {
	q := url.Values{}
	q.Set("customer_id", strconv.FormatInt(customerID, 10))
	q.Set("message", text)
	var out envelope
	return c.postParams(ctx, "/api/agent/send-message", q, &out)
}

func (c *Client) Customers(ctx context.Context) ([]models.Lead, error) {
	var out struct {
		envelope
		Customers []models.Lead `json:"customers"`
	}
	if err := c.get(ctx, "/api/customers/all", &out); err != nil {
		return nil, err
	}
	return out.Customers, nil
}

func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var out struct {
		envelope
		Stats models.Stats `json:"stats"`
	}
	if err := c.get(ctx, "/api/customers/stats", &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

func (c *Client) PriorityQueue(ctx context.Context) ([]models.Lead, error) {
	var out struct {
		envelope
		Leads []models.Lead `json:"leads"`
	}
	if err := c.get(ctx, "/api/customers/priority-queue", &out); err != nil {
		return nil, err
	}
	return out.Leads, nil
}

func (c *Client) SetStatus(ctx context.Context, customerID int64, status string) error {
	q := url.Values{}
	q.Set("status", status)
	var out envelope
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/customers/%d/status", customerID), q, nil, &out)
}

func (c *Client) Notes(ctx context.Context, customerID int64) (string, error) {
	var out struct {
		envelope
		Notes string `json:"notes"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/customers/%d/notes", customerID), &out); err != nil {
		return "", err
	}
	return out.Notes, nil
}

func (c *Client) SaveNotes(ctx context.Context, customerID int64, notes string) error {
	q := url.Values{}
	q.Set("notes", notes)
	var out envelope
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/customers/%d/notes", customerID), q, nil, &out)
}

// DeleteCustomer cascades to the lead's sessions and messages.
func (c *Client) DeleteCustomer(ctx context.Context, customerID int64) error {
	q := url.Values{}
	q.Set("confirm", "true")
	var out envelope
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/customers/%d", customerID), q, nil, &out)
}

// ---------------------------------------------------------------------
// transport
// ---------------------------------------------------------------------

// get retries transport failures with square backoff; reads are
// idempotent so a duplicate fetch is harmless. Application errors
// (success=false) come back unchanged on every attempt, so they return
// immediately.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * retryBase):
			}
		}
		err := c.do(ctx, http.MethodGet, path, nil, nil, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("failed after %d attempts: %w", c.retries, lastErr)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, out)
}

func (c *Client) postParams(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, q, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode,
			Msg: fmt.Sprintf("status %d: malformed response", resp.StatusCode)}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Msg: msg}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
