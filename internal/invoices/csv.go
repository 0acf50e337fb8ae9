// Package invoices reads and writes invoice CSV files and loads them into a
// store.
package invoices

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

const (
	numFields       = 9
	colID           = 0
	colInvoiceNo    = 1
	colInvoiceDate  = 2
	colCustomerID   = 3
	colCustomerName = 4
	colCompanyCode  = 5
	colStatus       = 6
	colTotalAmount  = 7
	colTotalTax     = 8
)

// Header is the first row of an invoice CSV.
var Header = []string{"id", "invoice_no", "invoice_date", "customer_id", "customer_name", "company_code", "status", "total_amount", "total_tax"}

// ReadInvoices reads an invoice CSV with a header row.
func ReadInvoices(r io.Reader) ([]model.Invoice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading invoices CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var invoices []model.Invoice
	for i, rec := range records[1:] {
		inv, err := UnmarshalInvoice(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// WriteInvoices writes invoices with a header row.
func WriteInvoices(w io.Writer, invoices []model.Invoice) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, inv := range invoices {
		if err := cw.Write(MarshalInvoice(inv)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalInvoice converts an Invoice to a CSV row. PaidAmount is derived and
// not written.
func MarshalInvoice(inv model.Invoice) []string {
	row := make([]string, numFields)
	row[colID] = inv.ID
	row[colInvoiceNo] = inv.InvoiceNo
	row[colInvoiceDate] = inv.InvoiceDate.String()
	row[colCustomerID] = inv.CustomerID
	row[colCustomerName] = inv.CustomerName
	row[colCompanyCode] = inv.CompanyCode
	row[colStatus] = inv.Status
	row[colTotalAmount] = inv.TotalAmount.StringFixed(2)
	row[colTotalTax] = inv.TotalTax.StringFixed(2)
	return row
}

// UnmarshalInvoice converts a CSV row to an Invoice.
func UnmarshalInvoice(record []string) (model.Invoice, error) {
	if len(record) != numFields {
		return model.Invoice{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	var invDate model.Date
	if s := strings.TrimSpace(record[colInvoiceDate]); s != "" {
		d, err := model.StatementDate(s)
		if err != nil {
			return model.Invoice{}, fmt.Errorf("parsing invoice_date: %w", err)
		}
		invDate = d
	}

	total, err := parseAmount(record[colTotalAmount])
	if err != nil {
		return model.Invoice{}, fmt.Errorf("parsing total_amount %q: %w", record[colTotalAmount], err)
	}
	tax, err := parseAmount(record[colTotalTax])
	if err != nil {
		return model.Invoice{}, fmt.Errorf("parsing total_tax %q: %w", record[colTotalTax], err)
	}

	return model.Invoice{
		ID:           strings.TrimSpace(record[colID]),
		InvoiceNo:    record[colInvoiceNo],
		InvoiceDate:  invDate,
		CustomerID:   record[colCustomerID],
		CustomerName: record[colCustomerName],
		CompanyCode:  record[colCompanyCode],
		Status:       record[colStatus],
		TotalAmount:  total,
		TotalTax:     tax,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Import reads the CSV at path and upserts every invoice into w.
func Import(ctx context.Context, w store.InvoiceWriter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening invoices: %w", err)
	}
	defer f.Close()

	invoices, err := ReadInvoices(f)
	if err != nil {
		return 0, err
	}
	return w.UpsertInvoices(ctx, invoices)
}
