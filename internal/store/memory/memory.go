// Package memory is an in-process store used by tests and by the CLI when no
// database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrecon/internal/id"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

type link struct {
	invoiceID string
	amount    decimal.Decimal
	note      string
}

// Store keeps entries, invoices and links in maps guarded by one RWMutex.
type Store struct {
	mu           sync.RWMutex
	entries      map[string]model.BankEntry
	fingerprints map[string]string
	invoices     map[string]model.Invoice
	links        map[string][]link
	now          func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries:      make(map[string]model.BankEntry),
		fingerprints: make(map[string]string),
		invoices:     make(map[string]model.Invoice),
		links:        make(map[string][]link),
		now:          time.Now,
	}
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.InvoiceWriter = (*Store)(nil)
)

// BulkInsert stores valid entries that are not already present by
// fingerprint.
func (s *Store) BulkInsert(_ context.Context, entries []model.BankEntry) (store.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := store.BulkResult{Total: len(entries)}
	for i, e := range entries {
		if len(store.ValidateEntry(i, e)) > 0 {
			res.Skipped++
			continue
		}
		e.Fingerprint = model.ComputeFingerprint(e)
		if _, dup := s.fingerprints[e.Fingerprint]; dup {
			res.Skipped++
			continue
		}
		if e.ID == "" {
			e.ID = id.NewEntryID()
		}
		if _, taken := s.entries[e.ID]; taken {
			res.Skipped++
			continue
		}
		e.AttachedCount = 0
		e.MatchedTotal = decimal.Zero
		e.ReconciledAt = nil
		e.ReconcileNote = ""
		s.entries[e.ID] = e
		s.fingerprints[e.Fingerprint] = e.ID
		res.Inserted++
	}
	return res, nil
}

// ListEntries returns entries newest first.
func (s *Store) ListEntries(_ context.Context, f store.EntryFilter) (store.Page[model.BankEntry], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.BankEntry
	for _, e := range s.entries {
		if f.Matches(e) {
			matched = append(matched, s.hydrateEntry(e))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.TransactionDate.Equal(b.TransactionDate.Time) {
			return a.TransactionDate.After(b.TransactionDate.Time)
		}
		return a.ID > b.ID
	})
	return store.Paginate(matched, f.Limit, f.Offset), nil
}

// GetEntry returns one entry with current aggregates.
func (s *Store) GetEntry(_ context.Context, entryID string) (model.BankEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[entryID]
	if !ok {
		return model.BankEntry{}, fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}
	return s.hydrateEntry(e), nil
}

// AttachedInvoices returns the invoices linked to an entry in link order.
func (s *Store) AttachedInvoices(_ context.Context, entryID string) ([]model.AttachedInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entries[entryID]; !ok {
		return nil, fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}
	paid := s.paidByInvoice()
	out := []model.AttachedInvoice{}
	for _, l := range s.links[entryID] {
		inv := s.invoices[l.invoiceID]
		inv.PaidAmount = paid[inv.ID]
		out = append(out, model.AttachedInvoice{Invoice: inv, MatchedAmount: l.amount, Note: l.note})
	}
	return out, nil
}

// Reconcile replaces an entry's links. Nothing changes when any part of the
// request is invalid.
func (s *Store) Reconcile(_ context.Context, entryID string, req store.ReconcileRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}
	links := make([]link, 0, len(req.Invoices))
	for i, a := range req.Invoices {
		if _, ok := s.invoices[a.InvoiceID]; !ok {
			return &store.ValidationError{Index: i, Field: "invoices.id", Description: fmt.Sprintf("unknown invoice %s", a.InvoiceID)}
		}
		links = append(links, link{invoiceID: a.InvoiceID, amount: a.Amount, note: req.Note})
	}

	now := s.now().UTC()
	e.ReconciledAt = &now
	e.ReconcileNote = req.Note
	s.entries[entryID] = e
	s.links[entryID] = links
	return nil
}

// ListInvoices returns IncludeIDs first, then matching invoices newest first.
func (s *Store) ListInvoices(_ context.Context, f store.InvoiceFilter) (store.Page[model.Invoice], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paid := s.paidByInvoice()
	var included, rest []model.Invoice
	seen := make(map[string]bool)
	for _, invID := range f.IncludeIDs {
		inv, ok := s.invoices[invID]
		if !ok || seen[invID] {
			continue
		}
		seen[invID] = true
		inv.PaidAmount = paid[invID]
		included = append(included, inv)
	}
	for _, inv := range s.invoices {
		if seen[inv.ID] {
			continue
		}
		inv.PaidAmount = paid[inv.ID]
		if f.Matches(inv) {
			rest = append(rest, inv)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		a, b := rest[i], rest[j]
		if !a.InvoiceDate.Equal(b.InvoiceDate.Time) {
			return a.InvoiceDate.After(b.InvoiceDate.Time)
		}
		return a.ID < b.ID
	})
	return store.Paginate(append(included, rest...), f.Limit, f.Offset), nil
}

// UpsertInvoices stores invoices, replacing any with the same id. PaidAmount
// is derived from links and ignored on input.
func (s *Store) UpsertInvoices(_ context.Context, invoices []model.Invoice) (int, error) {
	for i, inv := range invoices {
		if errs := store.ValidateInvoice(i, inv); len(errs) > 0 {
			return 0, &errs[0]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range invoices {
		inv.PaidAmount = decimal.Zero
		s.invoices[inv.ID] = inv
	}
	return len(invoices), nil
}

func (s *Store) hydrateEntry(e model.BankEntry) model.BankEntry {
	links := s.links[e.ID]
	e.AttachedCount = len(links)
	e.MatchedTotal = decimal.Zero
	for _, l := range links {
		e.MatchedTotal = e.MatchedTotal.Add(l.amount)
	}
	return e
}

func (s *Store) paidByInvoice() map[string]decimal.Decimal {
	paid := make(map[string]decimal.Decimal)
	for _, links := range s.links {
		for _, l := range links {
			paid[l.invoiceID] = paid[l.invoiceID].Add(l.amount)
		}
	}
	return paid
}
