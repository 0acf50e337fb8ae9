package model

import (
	"github.com/shopspring/decimal"
)

// Invoice is a receivable that bank entries can settle. PaidAmount is the sum
// of amounts matched to it across all entries.
type Invoice struct {
	ID           string          `json:"id"`
	InvoiceNo    string          `json:"invoiceNo"`
	InvoiceDate  Date            `json:"invoiceDate"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	CompanyCode  string          `json:"companyCode"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	TotalTax     decimal.Decimal `json:"totalTax"`
	PaidAmount   decimal.Decimal `json:"paidAmount"`
}

// Remaining is the payable amount still open, never negative.
func (inv Invoice) Remaining() decimal.Decimal {
	r := inv.TotalAmount.Sub(inv.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// FullyPaid reports whether nothing remains payable.
func (inv Invoice) FullyPaid() bool {
	return inv.PaidAmount.GreaterThanOrEqual(inv.TotalAmount)
}

// AttachedInvoice is an invoice linked to one bank entry.
type AttachedInvoice struct {
	Invoice
	MatchedAmount decimal.Decimal `json:"matchedAmount"`
	Note          string          `json:"note,omitempty"`
}
