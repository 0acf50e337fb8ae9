package postgres

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/bankrecon/internal/store"
)

const entryColumns = `e.id, e.transaction_date, e.description, e.branch, e.amount::text, e.amount_type,
	e.balance::text, e.bank_code, e.fingerprint, COALESCE(l.cnt, 0), COALESCE(l.total, 0)::text,
	e.reconciled_at, e.reconcile_note`

const entryFrom = `FROM bank_entries e
	LEFT JOIN (
		SELECT bank_entry_id, COUNT(*) AS cnt, SUM(matched_amount) AS total
		FROM bank_entry_invoices GROUP BY bank_entry_id
	) l ON l.bank_entry_id = e.id`

const invoiceColumns = `i.id, i.invoice_no, i.invoice_date, i.customer_id, i.customer_name, i.company_code,
	i.status, i.total_amount::text, i.total_tax::text, COALESCE(p.paid, 0)::text`

const invoiceFrom = `FROM invoices i
	LEFT JOIN (
		SELECT invoice_id, SUM(matched_amount) AS paid
		FROM bank_entry_invoices GROUP BY invoice_id
	) p ON p.invoice_id = i.id`

// where collects AND-ed conditions with positional arguments. A "?" in a
// condition becomes the next $n.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *where) conj() string {
	if len(w.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(w.clauses, " AND ")
}

func entryWhere(f store.EntryFilter) *where {
	w := &where{}
	if f.BankCode != "" {
		w.add("UPPER(e.bank_code) = UPPER(?)", f.BankCode)
	}
	if f.AmountType != "" {
		w.add("e.amount_type = ?", string(f.AmountType))
	}
	if f.Month != "" {
		w.add("to_char(e.transaction_date, 'YYYY-MM') = ?", f.Month)
	}
	if f.Branch != "" {
		w.add("e.branch = ?", f.Branch)
	}
	if f.Description != "" {
		w.add("e.description ILIKE ?", "%"+f.Description+"%")
	}
	if !f.StartDate.IsZero() {
		w.add("e.transaction_date >= ?", f.StartDate.Time)
	}
	if !f.EndDate.IsZero() {
		w.add("e.transaction_date <= ?", f.EndDate.Time)
	}
	return w
}

func listEntriesSQL(f store.EntryFilter) (query, count string, args []any) {
	limit, offset := store.NormalizePaging(f.Limit, f.Offset)
	w := entryWhere(f)
	cond := w.conj()
	count = "SELECT COUNT(*) FROM bank_entries e WHERE " + cond
	query = fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY e.transaction_date DESC, e.id DESC LIMIT %d OFFSET %d",
		entryColumns, entryFrom, cond, limit, offset)
	return query, count, w.args
}

// invoiceWhere keeps the include list as $1 so that ids in it bypass the
// other conditions and sort first, in list order.
func invoiceWhere(f store.InvoiceFilter) *where {
	include := f.IncludeIDs
	if include == nil {
		include = []string{}
	}
	w := &where{args: []any{include}}
	if f.ExcludeFullyPaid {
		w.clauses = append(w.clauses, "COALESCE(p.paid, 0) < i.total_amount")
	}
	if f.Status != "" {
		w.add("i.status = ?", f.Status)
	}
	if f.CustomerID != "" {
		w.add("i.customer_id = ?", f.CustomerID)
	}
	if f.InvoiceNo != "" {
		w.add("i.invoice_no ILIKE ?", "%"+f.InvoiceNo+"%")
	}
	if f.CompanyCode != "" {
		w.add("i.company_code = ?", f.CompanyCode)
	}
	if !f.StartDate.IsZero() {
		w.add("i.invoice_date >= ?", f.StartDate.Time)
	}
	if !f.EndDate.IsZero() {
		w.add("i.invoice_date <= ?", f.EndDate.Time)
	}
	return w
}

func listInvoicesSQL(f store.InvoiceFilter) (query, count string, args []any) {
	limit, offset := store.NormalizePaging(f.Limit, f.Offset)
	w := invoiceWhere(f)
	cond := fmt.Sprintf("(i.id = ANY($1) OR (%s))", w.conj())
	count = fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", invoiceFrom, cond)
	query = fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY array_position($1::text[], i.id), i.invoice_date DESC NULLS LAST, i.id LIMIT %d OFFSET %d",
		invoiceColumns, invoiceFrom, cond, limit, offset)
	return query, count, w.args
}
