// Package api holds the JSON shapes shared by the HTTP server and client.
package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

// BasePath prefixes every route.
const BasePath = "/api/v1"

// ErrMalformedEnvelope is returned when a list response lacks items or
// pagination.
var ErrMalformedEnvelope = errors.New("malformed list envelope")

// Pagination describes one page of a list response.
type Pagination struct {
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasNext    bool `json:"hasNext"`
	NextOffset int  `json:"nextOffset"`
}

// Envelope wraps every list response.
type Envelope[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewEnvelope converts a store page to its wire form.
func NewEnvelope[T any](p store.Page[T]) Envelope[T] {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return Envelope[T]{
		Items: items,
		Pagination: Pagination{
			Total:      p.Total,
			Limit:      p.Limit,
			Offset:     p.Offset,
			HasNext:    p.HasNext(),
			NextOffset: p.NextOffset(),
		},
	}
}

// Page converts the envelope back to a store page.
func (e Envelope[T]) Page() store.Page[T] {
	return store.Page[T]{
		Items:  e.Items,
		Total:  e.Pagination.Total,
		Limit:  e.Pagination.Limit,
		Offset: e.Pagination.Offset,
	}
}

// DecodeEnvelope parses a list response. Both top-level keys must be
// present and items must be an array.
func DecodeEnvelope[T any](data []byte) (Envelope[T], error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope[T]{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	items, ok := raw["items"]
	if !ok || string(items) == "null" {
		return Envelope[T]{}, fmt.Errorf("%w: missing items", ErrMalformedEnvelope)
	}
	pagination, ok := raw["pagination"]
	if !ok || string(pagination) == "null" {
		return Envelope[T]{}, fmt.Errorf("%w: missing pagination", ErrMalformedEnvelope)
	}

	var env Envelope[T]
	if err := json.Unmarshal(items, &env.Items); err != nil {
		return Envelope[T]{}, fmt.Errorf("%w: items: %w", ErrMalformedEnvelope, err)
	}
	if err := json.Unmarshal(pagination, &env.Pagination); err != nil {
		return Envelope[T]{}, fmt.Errorf("%w: pagination: %w", ErrMalformedEnvelope, err)
	}
	return env, nil
}

// ErrorBody is returned with every non-2xx status.
type ErrorBody struct {
	Message string `json:"message"`
}

// Health is the health check response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ParseResult is the response of a statement upload.
type ParseResult struct {
	Strategy     string              `json:"strategy"`
	Skipped      int                 `json:"skipped"`
	Transactions []model.Transaction `json:"transactions"`
	Entries      []model.BankEntry   `json:"entries"`
}

// Status is a bare acknowledgement.
type Status struct {
	Status string `json:"status"`
}

// StatusOK acknowledges a successful write.
var StatusOK = Status{Status: "ok"}

// Query parameter names.
const (
	ParamBankCode         = "bankCode"
	ParamAmountType       = "amountType"
	ParamMonth            = "month"
	ParamBranch           = "branch"
	ParamDescription      = "desc"
	ParamStartDate        = "startDate"
	ParamEndDate          = "endDate"
	ParamLimit            = "limit"
	ParamOffset           = "offset"
	ParamExcludeFullyPaid = "excludeFullyPaid"
	ParamIncludeIDs       = "includeIds"
	ParamStatus           = "status"
	ParamCustomerID       = "customerId"
	ParamInvoiceNo        = "invoiceNo"
	ParamCompanyCode      = "companyCode"
)
