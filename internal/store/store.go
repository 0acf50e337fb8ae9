package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrecon/internal/model"
)

// ErrNotFound is returned when an entry or invoice does not exist.
var ErrNotFound = errors.New("not found")

// ModeReplace supersedes an entry's existing invoice links.
const ModeReplace = "replace"

// Pagination bounds shared by every list operation.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// BankEntries persists bank entries and their invoice links.
type BankEntries interface {
	BulkInsert(ctx context.Context, entries []model.BankEntry) (BulkResult, error)
	ListEntries(ctx context.Context, f EntryFilter) (Page[model.BankEntry], error)
	GetEntry(ctx context.Context, id string) (model.BankEntry, error)
	AttachedInvoices(ctx context.Context, entryID string) ([]model.AttachedInvoice, error)
	Reconcile(ctx context.Context, entryID string, req ReconcileRequest) error
}

// Invoices lists invoices that bank entries can be matched to.
type Invoices interface {
	ListInvoices(ctx context.Context, f InvoiceFilter) (Page[model.Invoice], error)
}

// InvoiceWriter loads invoices into a store. Existing ids are overwritten.
type InvoiceWriter interface {
	UpsertInvoices(ctx context.Context, invoices []model.Invoice) (int, error)
}

// Store is the full contract the reconciliation core consumes.
type Store interface {
	BankEntries
	Invoices
}

// BulkResult reports the outcome of a bulk insert.
type BulkResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// Allocation is one invoice link in a reconcile request.
type Allocation struct {
	InvoiceID string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ReconcileRequest replaces an entry's invoice links.
type ReconcileRequest struct {
	Invoices []Allocation `json:"invoices"`
	Note     string       `json:"note,omitempty"`
	Mode     string       `json:"mode"`
}

// Validate checks the request shape. Invoice existence is checked by stores.
func (r ReconcileRequest) Validate() error {
	if r.Mode != "" && r.Mode != ModeReplace {
		return &ValidationError{Field: "mode", Description: fmt.Sprintf("unsupported mode %q", r.Mode)}
	}
	seen := make(map[string]bool, len(r.Invoices))
	for i, a := range r.Invoices {
		if strings.TrimSpace(a.InvoiceID) == "" {
			return &ValidationError{Index: i, Field: "invoices.id", Description: "missing invoice id"}
		}
		if seen[a.InvoiceID] {
			return &ValidationError{Index: i, Field: "invoices.id", Description: fmt.Sprintf("duplicate invoice %s", a.InvoiceID)}
		}
		seen[a.InvoiceID] = true
		if a.Amount.IsNegative() {
			return &ValidationError{Index: i, Field: "invoices.amount", Description: "amount must not be negative"}
		}
	}
	return nil
}

// MatchedTotal sums the request's allocations.
func (r ReconcileRequest) MatchedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Invoices {
		total = total.Add(a.Amount)
	}
	return total
}

// Page is one offset/limit slice of a larger result.
type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}

// HasNext reports whether items remain after this page.
func (p Page[T]) HasNext() bool {
	return p.Offset+len(p.Items) < p.Total
}

// NextOffset is the offset of the following page.
func (p Page[T]) NextOffset() int {
	return p.Offset + len(p.Items)
}

// Paginate slices all by offset and limit.
func Paginate[T any](all []T, limit, offset int) Page[T] {
	limit, offset = NormalizePaging(limit, offset)
	page := Page[T]{Items: []T{}, Total: len(all), Limit: limit, Offset: offset}
	if offset >= len(all) {
		return page
	}
	end := min(offset+limit, len(all))
	page.Items = append(page.Items, all[offset:end]...)
	return page
}

// NormalizePaging applies the default and maximum limit and floors offset at 0.
func NormalizePaging(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// EntryFilter narrows a bank entry listing. Zero fields do not filter.
type EntryFilter struct {
	BankCode    string
	AmountType  model.AmountType
	Month       string // YYYY-MM
	Branch      string
	Description string // case-insensitive substring
	StartDate   model.Date
	EndDate     model.Date
	Limit       int
	Offset      int
}

// Matches reports whether e passes the filter.
func (f EntryFilter) Matches(e model.BankEntry) bool {
	if f.BankCode != "" && !strings.EqualFold(f.BankCode, e.BankCode) {
		return false
	}
	if f.AmountType != "" && f.AmountType != e.AmountType {
		return false
	}
	if f.Month != "" && e.TransactionDate.MonthKey() != f.Month {
		return false
	}
	if f.Branch != "" && f.Branch != e.Branch {
		return false
	}
	if f.Description != "" && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(f.Description)) {
		return false
	}
	if !f.StartDate.IsZero() && e.TransactionDate.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsZero() && e.TransactionDate.After(f.EndDate.Time) {
		return false
	}
	return true
}

// InvoiceFilter narrows an invoice listing. IncludeIDs bypass every other
// filter, including ExcludeFullyPaid, and sort ahead of the rest.
type InvoiceFilter struct {
	ExcludeFullyPaid bool
	IncludeIDs       []string
	Status           string
	CustomerID       string
	InvoiceNo        string
	CompanyCode      string
	StartDate        model.Date
	EndDate          model.Date
	Limit            int
	Offset           int
}

// Includes reports whether id is forced into the result.
func (f InvoiceFilter) Includes(id string) bool {
	for _, inc := range f.IncludeIDs {
		if inc == id {
			return true
		}
	}
	return false
}

// Matches reports whether inv passes the filter, ignoring IncludeIDs.
func (f InvoiceFilter) Matches(inv model.Invoice) bool {
	if f.ExcludeFullyPaid && inv.FullyPaid() {
		return false
	}
	if f.Status != "" && f.Status != inv.Status {
		return false
	}
	if f.CustomerID != "" && f.CustomerID != inv.CustomerID {
		return false
	}
	if f.InvoiceNo != "" && !strings.Contains(strings.ToLower(inv.InvoiceNo), strings.ToLower(f.InvoiceNo)) {
		return false
	}
	if f.CompanyCode != "" && f.CompanyCode != inv.CompanyCode {
		return false
	}
	if !f.StartDate.IsZero() && inv.InvoiceDate.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsZero() && inv.InvoiceDate.After(f.EndDate.Time) {
		return false
	}
	return true
}
