// Package client implements the bank entry and invoice store contract over
// the REST API.
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
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/bankrecon/internal/api"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

const fallbackMessage = "request failed"

// Error is a failed request. StatusCode is 0 when no response arrived.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Unwrap maps 404 to store.ErrNotFound.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	return nil
}

// errorMessage picks the most specific description of a failure: the
// structured message, then the raw body, then the transport error.
func errorMessage(body []byte, transportErr error) string {
	if len(body) > 0 {
		var eb api.ErrorBody
		if err := json.Unmarshal(body, &eb); err == nil && strings.TrimSpace(eb.Message) != "" {
			return eb.Message
		}
		var s string
		if err := json.Unmarshal(body, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		if !json.Valid(body) {
			if raw := strings.TrimSpace(string(body)); raw != "" {
				return raw
			}
		}
	}
	if transportErr != nil && transportErr.Error() != "" {
		return transportErr.Error()
	}
	return fallbackMessage
}

// Client talks to a bankrecon server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + api.BasePath,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

var _ store.Store = (*Client)(nil)

// BulkInsert uploads entries.
func (c *Client) BulkInsert(ctx context.Context, entries []model.BankEntry) (store.BulkResult, error) {
	var res store.BulkResult
	data, err := c.do(ctx, http.MethodPost, "/bank-entries/bulk", nil, entries)
	if err != nil {
		return res, err
	}
	return res, decode(data, &res)
}

// ListEntries fetches one page of entries.
func (c *Client) ListEntries(ctx context.Context, f store.EntryFilter) (store.Page[model.BankEntry], error) {
	data, err := c.do(ctx, http.MethodGet, "/bank-entries", api.EntryQuery(f), nil)
	if err != nil {
		return store.Page[model.BankEntry]{}, err
	}
	env, err := api.DecodeEnvelope[model.BankEntry](data)
	if err != nil {
		return store.Page[model.BankEntry]{}, err
	}
	return env.Page(), nil
}

// GetEntry fetches one entry.
func (c *Client) GetEntry(ctx context.Context, entryID string) (model.BankEntry, error) {
	var e model.BankEntry
	data, err := c.do(ctx, http.MethodGet, "/bank-entries/"+url.PathEscape(entryID), nil, nil)
	if err != nil {
		return e, err
	}
	return e, decode(data, &e)
}

// AttachedInvoices fetches an entry's linked invoices.
func (c *Client) AttachedInvoices(ctx context.Context, entryID string) ([]model.AttachedInvoice, error) {
	var out []model.AttachedInvoice
	data, err := c.do(ctx, http.MethodGet, "/bank-entries/"+url.PathEscape(entryID)+"/invoices", nil, nil)
	if err != nil {
		return nil, err
	}
	return out, decode(data, &out)
}

// Reconcile replaces an entry's links.
func (c *Client) Reconcile(ctx context.Context, entryID string, req store.ReconcileRequest) error {
	if req.Invoices == nil {
		req.Invoices = []store.Allocation{}
	}
	if req.Mode == "" {
		req.Mode = store.ModeReplace
	}
	_, err := c.do(ctx, http.MethodPost, "/bank-entries/"+url.PathEscape(entryID)+"/reconcile", nil, req)
	return err
}

// ListInvoices fetches one page of invoices.
func (c *Client) ListInvoices(ctx context.Context, f store.InvoiceFilter) (store.Page[model.Invoice], error) {
	data, err := c.do(ctx, http.MethodGet, "/invoices", api.InvoiceQuery(f), nil)
	if err != nil {
		return store.Page[model.Invoice]{}, err
	}
	env, err := api.DecodeEnvelope[model.Invoice](data)
	if err != nil {
		return store.Page[model.Invoice]{}, err
	}
	return env.Page(), nil
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (api.Health, error) {
	var h api.Health
	data, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return h, err
	}
	return h, decode(data, &h)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("http request", "method", method, "url", target)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Message: errorMessage(nil, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: errorMessage(nil, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{StatusCode: resp.StatusCode, Message: errorMessage(data, nil)}
		c.logger.Debug("http error", "method", method, "url", target, "status", resp.StatusCode, "msg", e.Message)
		return nil, e
	}
	return data, nil
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == status
}
