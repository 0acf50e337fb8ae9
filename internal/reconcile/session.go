package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrecon/internal/auditlog"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

// State is a session's position in its lifecycle.
type State int

const (
	StateUnopened State = iota
	StateLoaded
	StateEdited
	StateSaved
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateLoaded:
		return "loaded"
	case StateEdited:
		return "edited"
	case StateSaved:
		return "saved"
	case StateAbandoned:
		return "abandoned"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Summary is the allocation total for the current selection.
type Summary struct {
	InvoiceSum decimal.Decimal `json:"invoiceSum"`
	Delta      decimal.Decimal `json:"delta"`
	Settled    bool            `json:"settled"`
}

// Session edits the invoice allocation of one bank entry. It is not safe for
// concurrent use.
type Session struct {
	alloc *Allocator
	state State

	entry      model.BankEntry
	attached   []model.AttachedInvoice
	candidates store.Page[model.Invoice]

	known    map[string]model.Invoice
	selected []string
	explicit map[string]decimal.Decimal
	// defaults holds the remaining amount each invoice had when first
	// selected.
	defaults map[string]decimal.Decimal
}

func newSession(a *Allocator, entry model.BankEntry) *Session {
	return &Session{
		alloc:    a,
		entry:    entry,
		known:    make(map[string]model.Invoice),
		explicit: make(map[string]decimal.Decimal),
		defaults: make(map[string]decimal.Decimal),
	}
}

// seed selects attached invoices with their matched amounts.
func (s *Session) seed(attached []model.AttachedInvoice) {
	s.attached = attached
	s.selected = s.selected[:0]
	clear(s.explicit)
	clear(s.defaults)
	for _, a := range attached {
		s.known[a.ID] = a.Invoice
		s.selected = append(s.selected, a.ID)
		s.explicit[a.ID] = a.MatchedAmount
	}
}

func (s *Session) setCandidates(page store.Page[model.Invoice]) {
	s.candidates = page
	for _, inv := range page.Items {
		s.known[inv.ID] = inv
	}
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Entry returns the bank entry as last fetched.
func (s *Session) Entry() model.BankEntry { return s.entry }

// Attached returns the invoices linked to the entry as last fetched.
func (s *Session) Attached() []model.AttachedInvoice { return s.attached }

// CandidatePage returns the last loaded page of candidate invoices.
func (s *Session) CandidatePage() store.Page[model.Invoice] { return s.candidates }

// Selected returns the selected invoice ids in selection order.
func (s *Session) Selected() []string {
	out := make([]string, len(s.selected))
	copy(out, s.selected)
	return out
}

// IsSelected reports whether invoiceID is selected.
func (s *Session) IsSelected(invoiceID string) bool {
	return s.indexOf(invoiceID) >= 0
}

// Invoice returns a loaded invoice.
func (s *Session) Invoice(invoiceID string) (model.Invoice, bool) {
	inv, ok := s.known[invoiceID]
	return inv, ok
}

// Allocation returns the amount that would be saved for invoiceID.
func (s *Session) Allocation(invoiceID string) decimal.Decimal {
	if amt, ok := s.explicit[invoiceID]; ok {
		return amt
	}
	if amt, ok := s.defaults[invoiceID]; ok {
		return amt
	}
	return s.known[invoiceID].Remaining()
}

// SelectInvoice adds a loaded invoice to the selection. Fully paid invoices
// can only be kept, not newly selected.
func (s *Session) SelectInvoice(invoiceID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	inv, ok := s.known[invoiceID]
	if !ok {
		return fmt.Errorf("invoice %q: %w", invoiceID, ErrUnknownInvoice)
	}
	if s.IsSelected(invoiceID) {
		s.state = StateEdited
		return nil
	}
	if !inv.PaidAmount.LessThan(inv.TotalAmount) {
		return fmt.Errorf("invoice %q: %w", invoiceID, ErrNotSelectable)
	}
	s.selected = append(s.selected, invoiceID)
	if _, ok := s.defaults[invoiceID]; !ok {
		s.defaults[invoiceID] = inv.Remaining()
	}
	s.state = StateEdited
	s.publish()
	return nil
}

// DeselectInvoice removes an invoice from the selection. An explicit
// allocation is kept for a later reselect.
func (s *Session) DeselectInvoice(invoiceID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	i := s.indexOf(invoiceID)
	if i < 0 {
		if _, ok := s.known[invoiceID]; !ok {
			return fmt.Errorf("invoice %q: %w", invoiceID, ErrUnknownInvoice)
		}
		return nil
	}
	s.selected = append(s.selected[:i], s.selected[i+1:]...)
	s.state = StateEdited
	s.publish()
	return nil
}

// SetAllocation overrides the amount for invoiceID. Negative amounts become
// zero.
func (s *Session) SetAllocation(invoiceID string, amount decimal.Decimal) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, ok := s.known[invoiceID]; !ok {
		return fmt.Errorf("invoice %q: %w", invoiceID, ErrUnknownInvoice)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	s.explicit[invoiceID] = amount
	s.state = StateEdited
	s.publish()
	return nil
}

// Recompute sums the selection against the entry amount.
func (s *Session) Recompute() Summary {
	sum := decimal.Zero
	for _, invID := range s.selected {
		sum = sum.Add(s.Allocation(invID))
	}
	delta := s.entry.Amount.Abs().Sub(sum)
	return Summary{
		InvoiceSum: sum,
		Delta:      delta,
		Settled:    delta.Abs().LessThan(settleEpsilon),
	}
}

// Candidates loads another page of candidate invoices. The current selection
// is always included.
func (s *Session) Candidates(ctx context.Context, limit, offset int) (store.Page[model.Invoice], error) {
	if err := s.checkOpen(); err != nil {
		return store.Page[model.Invoice]{}, err
	}
	if limit <= 0 {
		limit = s.alloc.pageSize
	}
	page, err := s.alloc.store.ListInvoices(ctx, store.InvoiceFilter{
		ExcludeFullyPaid: true,
		IncludeIDs:       s.Selected(),
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		return page, fmt.Errorf("loading candidate invoices: %w", err)
	}
	s.setCandidates(page)
	return page, nil
}

// Save replaces the entry's links with the current selection.
func (s *Session) Save(ctx context.Context, note string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	allocs := make([]store.Allocation, 0, len(s.selected))
	for _, invID := range s.selected {
		allocs = append(allocs, store.Allocation{InvoiceID: invID, Amount: s.Allocation(invID)})
	}
	return s.save(ctx, allocs, note, auditlog.ActionSave)
}

// SaveNone records that the entry deliberately matches no invoice.
func (s *Session) SaveNone(ctx context.Context, note string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.save(ctx, []store.Allocation{}, note, auditlog.ActionSaveNone)
}

func (s *Session) save(ctx context.Context, allocs []store.Allocation, note, action string) error {
	a := s.alloc
	req := store.ReconcileRequest{Invoices: allocs, Note: note, Mode: store.ModeReplace}
	if err := a.store.Reconcile(ctx, s.entry.ID, req); err != nil {
		s.state = StateEdited
		return err
	}

	a.cache.Invalidate(s.entry.ID)
	ids := make([]string, len(allocs))
	for i, al := range allocs {
		ids[i] = al.InvoiceID
	}
	a.record(auditlog.Entry{
		Timestamp:    a.now(),
		EntryID:      s.entry.ID,
		Action:       action,
		Invoices:     ids,
		MatchedTotal: req.MatchedTotal(),
		Note:         note,
	})
	s.state = StateSaved
	a.logger.Info("saved reconciliation", "entry", s.entry.ID, "invoices", len(ids), "matched", req.MatchedTotal().String())

	if err := s.refresh(ctx, ids); err != nil {
		return fmt.Errorf("%w: %w", ErrStaleView, err)
	}
	return nil
}

// refresh replaces the session view with the stored state.
func (s *Session) refresh(ctx context.Context, savedIDs []string) error {
	a := s.alloc
	entry, err := a.store.GetEntry(ctx, s.entry.ID)
	if err != nil {
		return fmt.Errorf("fetching entry: %w", err)
	}
	attached, err := a.store.AttachedInvoices(ctx, s.entry.ID)
	if err != nil {
		return fmt.Errorf("fetching attached invoices: %w", err)
	}
	page, err := a.store.ListInvoices(ctx, store.InvoiceFilter{
		ExcludeFullyPaid: true,
		IncludeIDs:       savedIDs,
		Limit:            a.pageSize,
	})
	if err != nil {
		return fmt.Errorf("fetching candidate invoices: %w", err)
	}

	s.entry = entry
	clear(s.known)
	s.seed(attached)
	s.setCandidates(page)
	return nil
}

// Abandon discards unsaved edits.
func (s *Session) Abandon() {
	if s.state == StateSaved || s.state == StateAbandoned {
		return
	}
	s.state = StateAbandoned
	s.alloc.cache.Invalidate(s.entry.ID)
}

// publish caches the working delta so listings show it until the session
// is saved or abandoned.
func (s *Session) publish() {
	s.alloc.cache.Put(s.entry.ID, s.Recompute().Delta)
}

func (s *Session) checkOpen() error {
	if s.state == StateSaved || s.state == StateAbandoned {
		return fmt.Errorf("%s session: %w", s.state, ErrSessionClosed)
	}
	return nil
}

func (s *Session) indexOf(invoiceID string) int {
	for i, sel := range s.selected {
		if sel == invoiceID {
			return i
		}
	}
	return -1
}
