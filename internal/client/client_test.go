package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrecon/internal/api"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

func TestErrorMessage_Priority(t *testing.T) {
	transport := errors.New("dial tcp: connection refused")
	tests := []struct {
		name      string
		body      string
		transport error
		want      string
	}{
		{"structured message", `{"message":"bankCode is required"}`, transport, "bankCode is required"},
		{"blank message and no transport", `{"message":"  "}`, nil, fallbackMessage},
		{"json string body", `"  entry locked  "`, transport, "entry locked"},
		{"plain text body", "  upstream timeout\n", transport, "upstream timeout"},
		{"transport error", "", transport, "dial tcp: connection refused"},
		{"whitespace body uses transport", "   ", transport, "dial tcp: connection refused"},
		{"nothing", "", nil, fallbackMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage([]byte(tt.body), tt.transport))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := error(&Error{StatusCode: http.StatusNotFound, Message: "entry BE-1: not found"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Equal(t, "404 Not Found: entry BE-1: not found", err.Error())

	assert.NotErrorIs(t, &Error{StatusCode: http.StatusBadRequest}, store.ErrNotFound)
	assert.Equal(t, "request failed", (&Error{Message: "request failed"}).Error())
}

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithTimeout(5*time.Second))
}

func TestListEntries(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bank-entries", r.URL.Path)
		assert.Equal(t, "BCA", r.URL.Query().Get(api.ParamBankCode))
		assert.Equal(t, "CR", r.URL.Query().Get(api.ParamAmountType))
		_, _ = io.WriteString(w, `{"items":[{"id":"BE-1","transactionDate":"2025-01-02","description":"SETORAN","amount":"150","amountType":"CR","bankCode":"BCA"}],
			"pagination":{"total":3,"limit":1,"offset":0,"hasNext":true,"nextOffset":1}}`)
	})

	page, err := c.ListEntries(context.Background(), store.EntryFilter{BankCode: "BCA", AmountType: model.AmountTypeCredit, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "BE-1", page.Items[0].ID)
	assert.True(t, page.Items[0].Amount.Equal(decimal.NewFromInt(150)))
	assert.True(t, page.HasNext())
}

func TestListInvoices_MalformedEnvelope(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"INV-1"}]`)
	})
	_, err := c.ListInvoices(context.Background(), store.InvoiceFilter{})
	assert.ErrorIs(t, err, api.ErrMalformedEnvelope)
}

func TestGetEntry_NotFound(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorBody{Message: "entry BE-9: not found"})
	})
	_, err := c.GetEntry(context.Background(), "BE-9")
	assert.ErrorIs(t, err, store.ErrNotFound)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "entry BE-9: not found", cerr.Message)
}

func TestReconcile_SendsReplace(t *testing.T) {
	var got store.ReconcileRequest
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/bank-entries/BE-1/reconcile", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(api.StatusOK)
	})

	err := c.Reconcile(context.Background(), "BE-1", store.ReconcileRequest{
		Invoices: []store.Allocation{{InvoiceID: "INV-1", Amount: decimal.NewFromInt(40)}},
		Note:     "partial",
	})
	require.NoError(t, err)
	assert.Equal(t, store.ModeReplace, got.Mode)
	require.Len(t, got.Invoices, 1)
	assert.Equal(t, "INV-1", got.Invoices[0].InvoiceID)
}

func TestReconcile_NoneSendsEmptyList(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(api.StatusOK)
	})
	require.NoError(t, c.Reconcile(context.Background(), "BE-1", store.ReconcileRequest{}))
	assert.Equal(t, "[]", string(raw["invoices"]))
}

func TestDo_ServerErrorText(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
	})
	_, err := c.BulkInsert(context.Background(), nil)
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, http.StatusInternalServerError, cerr.StatusCode)
	assert.Equal(t, "database unavailable", cerr.Message)
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(srv.URL)
	_, err := c.Health(context.Background())
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Zero(t, cerr.StatusCode)
	assert.NotEqual(t, fallbackMessage, cerr.Message)
}
