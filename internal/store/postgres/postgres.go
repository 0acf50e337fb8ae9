// Package postgres implements the store contract on PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrecon/internal/id"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

//go:embed schema.sql
var schema string

// bulkBatchSize bounds the statements sent in one round trip.
const bulkBatchSize = 200

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	URL         string
	MaxConns    int32
	MinConns    int32
	MaxConnIdle time.Duration
}

// Connect opens and pings a pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdle > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// Store is the PostgreSQL-backed store.
type Store struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// New wraps an open pool.
func New(pool *pgxpool.Pool, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{pool: pool, logger: logger}
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.InvoiceWriter = (*Store)(nil)
)

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

const insertEntrySQL = `INSERT INTO bank_entries
	(id, transaction_date, description, branch, amount, amount_type, balance, bank_code, fingerprint)
	VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric, $8, $9)
	ON CONFLICT DO NOTHING`

// BulkInsert inserts valid entries in batches. Conflicts on fingerprint or id
// count as skipped.
func (s *Store) BulkInsert(ctx context.Context, entries []model.BankEntry) (store.BulkResult, error) {
	res := store.BulkResult{Total: len(entries)}

	var valid []model.BankEntry
	for i, e := range entries {
		if errs := store.ValidateEntry(i, e); len(errs) > 0 {
			s.logger.Debug("skipping invalid entry", "index", i, "reason", errs[0].Description)
			res.Skipped++
			continue
		}
		if e.ID == "" {
			e.ID = id.NewEntryID()
		}
		e.Fingerprint = model.ComputeFingerprint(e)
		valid = append(valid, e)
	}

	for start := 0; start < len(valid); start += bulkBatchSize {
		chunk := valid[start:min(start+bulkBatchSize, len(valid))]
		batch := &pgx.Batch{}
		for _, e := range chunk {
			batch.Queue(insertEntrySQL, e.ID, e.TransactionDate.Time, e.Description, e.Branch,
				e.Amount.String(), string(e.AmountType), e.Balance.String(), e.BankCode, e.Fingerprint)
		}

		br := s.pool.SendBatch(ctx, batch)
		for range chunk {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return res, fmt.Errorf("inserting bank entries: %w", err)
			}
			if tag.RowsAffected() == 1 {
				res.Inserted++
			} else {
				res.Skipped++
			}
		}
		if err := br.Close(); err != nil {
			return res, fmt.Errorf("closing batch: %w", err)
		}
	}

	s.logger.Info("bulk insert", "inserted", res.Inserted, "skipped", res.Skipped, "total", res.Total)
	return res, nil
}

// ListEntries returns entries newest first.
func (s *Store) ListEntries(ctx context.Context, f store.EntryFilter) (store.Page[model.BankEntry], error) {
	limit, offset := store.NormalizePaging(f.Limit, f.Offset)
	page := store.Page[model.BankEntry]{Items: []model.BankEntry{}, Limit: limit, Offset: offset}

	query, count, args := listEntriesSQL(f)
	if err := s.pool.QueryRow(ctx, count, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("counting bank entries: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("listing bank entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, e)
	}
	return page, rows.Err()
}

// GetEntry returns one entry with current aggregates.
func (s *Store) GetEntry(ctx context.Context, entryID string) (model.BankEntry, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s %s WHERE e.id = $1", entryColumns, entryFrom), entryID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BankEntry{}, fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}
	return e, err
}

// AttachedInvoices returns the invoices linked to an entry in save order.
func (s *Store) AttachedInvoices(ctx context.Context, entryID string) ([]model.AttachedInvoice, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM bank_entries WHERE id = $1)", entryID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking entry %s: %w", entryID, err)
	}
	if !exists {
		return nil, fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s, l.matched_amount::text, l.note
		FROM bank_entry_invoices l
		JOIN invoices i ON i.id = l.invoice_id
		LEFT JOIN (
			SELECT invoice_id, SUM(matched_amount) AS paid
			FROM bank_entry_invoices GROUP BY invoice_id
		) p ON p.invoice_id = i.id
		WHERE l.bank_entry_id = $1
		ORDER BY l.position`, invoiceColumns), entryID)
	if err != nil {
		return nil, fmt.Errorf("listing attached invoices: %w", err)
	}
	defer rows.Close()

	out := []model.AttachedInvoice{}
	for rows.Next() {
		var (
			a       model.AttachedInvoice
			matched string
		)
		inv, err := scanInvoice(rows, &matched, &a.Note)
		if err != nil {
			return nil, err
		}
		a.Invoice = inv
		if a.MatchedAmount, err = decimal.NewFromString(matched); err != nil {
			return nil, fmt.Errorf("parsing matched amount %q: %w", matched, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Reconcile replaces an entry's links inside one transaction. The entry row
// is locked so concurrent saves apply one after the other; the last one wins.
func (s *Store) Reconcile(ctx context.Context, entryID string, req store.ReconcileRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning reconcile: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, "SELECT id FROM bank_entries WHERE id = $1 FOR UPDATE", entryID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("locking entry %s: %w", entryID, err)
	}

	ids := make([]string, len(req.Invoices))
	for i, a := range req.Invoices {
		ids[i] = a.InvoiceID
	}
	known, err := existingInvoices(ctx, tx, ids)
	if err != nil {
		return err
	}
	for i, a := range req.Invoices {
		if !known[a.InvoiceID] {
			return &store.ValidationError{Index: i, Field: "invoices.id", Description: fmt.Sprintf("unknown invoice %s", a.InvoiceID)}
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM bank_entry_invoices WHERE bank_entry_id = $1", entryID); err != nil {
		return fmt.Errorf("clearing links: %w", err)
	}
	for i, a := range req.Invoices {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bank_entry_invoices (bank_entry_id, invoice_id, matched_amount, note, position)
			 VALUES ($1, $2, $3::numeric, $4, $5)`,
			entryID, a.InvoiceID, a.Amount.String(), req.Note, i); err != nil {
			return fmt.Errorf("linking invoice %s: %w", a.InvoiceID, err)
		}
	}
	if _, err := tx.Exec(ctx,
		"UPDATE bank_entries SET reconciled_at = now(), reconcile_note = $2 WHERE id = $1",
		entryID, req.Note); err != nil {
		return fmt.Errorf("marking entry reconciled: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reconcile: %w", err)
	}
	s.logger.Info("reconciled entry", "entry", entryID, "invoices", len(req.Invoices), "matched", req.MatchedTotal().String())
	return nil
}

func existingInvoices(ctx context.Context, tx pgx.Tx, ids []string) (map[string]bool, error) {
	known := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	rows, err := tx.Query(ctx, "SELECT id FROM invoices WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("checking invoices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var invID string
		if err := rows.Scan(&invID); err != nil {
			return nil, fmt.Errorf("scanning invoice id: %w", err)
		}
		known[invID] = true
	}
	return known, rows.Err()
}

// ListInvoices returns IncludeIDs first, then matching invoices newest first.
func (s *Store) ListInvoices(ctx context.Context, f store.InvoiceFilter) (store.Page[model.Invoice], error) {
	limit, offset := store.NormalizePaging(f.Limit, f.Offset)
	page := store.Page[model.Invoice]{Items: []model.Invoice{}, Limit: limit, Offset: offset}

	query, count, args := listInvoicesSQL(f)
	if err := s.pool.QueryRow(ctx, count, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("counting invoices: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, inv)
	}
	return page, rows.Err()
}

// UpsertInvoices inserts or updates invoices in one transaction.
func (s *Store) UpsertInvoices(ctx context.Context, invoices []model.Invoice) (int, error) {
	for i, inv := range invoices {
		if errs := store.ValidateInvoice(i, inv); len(errs) > 0 {
			return 0, &errs[0]
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("beginning invoice upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, inv := range invoices {
		var invDate *time.Time
		if !inv.InvoiceDate.IsZero() {
			invDate = &inv.InvoiceDate.Time
		}
		if _, err := tx.Exec(ctx, `INSERT INTO invoices
			(id, invoice_no, invoice_date, customer_id, customer_name, company_code, status, total_amount, total_tax)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric)
			ON CONFLICT (id) DO UPDATE SET
				invoice_no = EXCLUDED.invoice_no,
				invoice_date = EXCLUDED.invoice_date,
				customer_id = EXCLUDED.customer_id,
				customer_name = EXCLUDED.customer_name,
				company_code = EXCLUDED.company_code,
				status = EXCLUDED.status,
				total_amount = EXCLUDED.total_amount,
				total_tax = EXCLUDED.total_tax`,
			inv.ID, inv.InvoiceNo, invDate, inv.CustomerID, inv.CustomerName, inv.CompanyCode,
			inv.Status, inv.TotalAmount.String(), inv.TotalTax.String()); err != nil {
			return 0, fmt.Errorf("upserting invoice %s: %w", inv.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing invoices: %w", err)
	}
	return len(invoices), nil
}

func scanEntry(row pgx.Row) (model.BankEntry, error) {
	var (
		e                             model.BankEntry
		txDate                        time.Time
		amountType                    string
		amount, balance, matchedTotal string
	)
	if err := row.Scan(&e.ID, &txDate, &e.Description, &e.Branch, &amount, &amountType,
		&balance, &e.BankCode, &e.Fingerprint, &e.AttachedCount, &matchedTotal,
		&e.ReconciledAt, &e.ReconcileNote); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scanning bank entry: %w", err)
	}
	e.TransactionDate = model.DateOf(txDate)
	e.AmountType = model.AmountType(amountType)

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if e.Balance, err = decimal.NewFromString(balance); err != nil {
		return e, fmt.Errorf("parsing balance %q: %w", balance, err)
	}
	if e.MatchedTotal, err = decimal.NewFromString(matchedTotal); err != nil {
		return e, fmt.Errorf("parsing matched total %q: %w", matchedTotal, err)
	}
	return e, nil
}

// scanInvoice reads invoiceColumns followed by any extra destinations.
func scanInvoice(row pgx.Row, extra ...any) (model.Invoice, error) {
	var (
		inv              model.Invoice
		invDate          *time.Time
		total, tax, paid string
	)
	dest := append([]any{&inv.ID, &inv.InvoiceNo, &invDate, &inv.CustomerID, &inv.CustomerName,
		&inv.CompanyCode, &inv.Status, &total, &tax, &paid}, extra...)
	if err := row.Scan(dest...); err != nil {
		return inv, fmt.Errorf("scanning invoice: %w", err)
	}
	if invDate != nil {
		inv.InvoiceDate = model.DateOf(*invDate)
	}

	var err error
	if inv.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return inv, fmt.Errorf("parsing total %q: %w", total, err)
	}
	if inv.TotalTax, err = decimal.NewFromString(tax); err != nil {
		return inv, fmt.Errorf("parsing tax %q: %w", tax, err)
	}
	if inv.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return inv, fmt.Errorf("parsing paid %q: %w", paid, err)
	}
	return inv, nil
}
