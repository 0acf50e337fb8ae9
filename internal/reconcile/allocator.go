// Package reconcile matches persisted bank entries to invoices through
// editable allocation sessions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrecon/internal/auditlog"
	"github.com/cleared-dev/bankrecon/internal/id"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

var (
	// ErrUnsupportedTarget is returned when opening an entry that was never
	// persisted.
	ErrUnsupportedTarget = errors.New("entry is not persisted")
	// ErrNotSelectable is returned when selecting a fully paid invoice.
	ErrNotSelectable = errors.New("invoice is fully paid")
	// ErrUnknownInvoice is returned for ids the session has not loaded.
	ErrUnknownInvoice = errors.New("unknown invoice")
	// ErrSessionClosed is returned by operations on a saved or abandoned
	// session.
	ErrSessionClosed = errors.New("session closed")
	// ErrStaleView wraps a re-fetch failure after a successful save.
	ErrStaleView = errors.New("saved but view is stale")
)

// DefaultPageSize is the candidate page size when none is configured.
const DefaultPageSize = 20

// settleEpsilon is the largest absolute delta still treated as settled.
var settleEpsilon = decimal.New(1, -4)

// Recorder receives one entry per successful save.
type Recorder interface {
	Record(e auditlog.Entry) error
}

// Allocator opens reconciliation sessions against a store.
type Allocator struct {
	store    store.Store
	cache    *Cache
	logger   *log.Logger
	audit    Recorder
	pageSize int
	now      func() time.Time
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithCache shares a delta cache.
func WithCache(c *Cache) Option {
	return func(a *Allocator) { a.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithAudit records saves to r.
func WithAudit(r Recorder) Option {
	return func(a *Allocator) { a.audit = r }
}

// WithPageSize sets the candidate page size.
func WithPageSize(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// NewAllocator creates an Allocator over st.
func NewAllocator(st store.Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:    st,
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = NewCache(DefaultCacheTTL)
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard)
	}
	return a
}

// Cache returns the allocator's delta cache.
func (a *Allocator) Cache() *Cache {
	return a.cache
}

// Open loads an entry's attached invoices and first candidate page.
func (a *Allocator) Open(ctx context.Context, entry model.BankEntry) (*Session, error) {
	if !id.IsPersisted(entry.ID) {
		return nil, fmt.Errorf("entry %q: %w", entry.ID, ErrUnsupportedTarget)
	}

	s := newSession(a, entry)
	if entry.AttachedCount > 0 {
		attached, err := a.store.AttachedInvoices(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("loading attached invoices: %w", err)
		}
		s.seed(attached)
	}
	page, err := a.store.ListInvoices(ctx, store.InvoiceFilter{
		ExcludeFullyPaid: true,
		IncludeIDs:       s.Selected(),
		Limit:            a.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("loading candidate invoices: %w", err)
	}
	s.setCandidates(page)
	s.state = StateLoaded
	s.publish()

	a.logger.Debug("opened session", "entry", entry.ID, "attached", len(s.attached), "candidates", page.Total)
	return s, nil
}

// OpenID fetches an entry by id and opens it.
func (a *Allocator) OpenID(ctx context.Context, entryID string) (*Session, error) {
	if !id.IsPersisted(entryID) {
		return nil, fmt.Errorf("entry %q: %w", entryID, ErrUnsupportedTarget)
	}
	entry, err := a.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return a.Open(ctx, entry)
}

// Delta returns the working delta of an open session on e when one is
// cached, else the stored delta.
func (a *Allocator) Delta(e model.BankEntry) decimal.Decimal {
	if d, ok := a.cache.Get(e.ID); ok {
		return d
	}
	return e.Delta()
}

// Pending reports whether an open session holds unsaved edits for e.
func (a *Allocator) Pending(e model.BankEntry) bool {
	d, ok := a.cache.Get(e.ID)
	return ok && !d.Equal(e.Delta())
}

func (a *Allocator) record(e auditlog.Entry) {
	if a.audit == nil {
		return
	}
	if err := a.audit.Record(e); err != nil {
		a.logger.Warn("writing audit log", "entry", e.EntryID, "err", err)
	}
}
