package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/bankrecon/internal/id"
	"github.com/cleared-dev/bankrecon/internal/model"
)

// ValidationError describes one rejected field of a request item.
type ValidationError struct {
	Index       int
	Field       string
	Description string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d [%s]: %s", e.Index, e.Field, e.Description)
}

// ValidateEntry lists the reasons e cannot be stored. Bulk inserts skip
// entries with any violation.
func ValidateEntry(index int, e model.BankEntry) []ValidationError {
	var errs []ValidationError
	add := func(field, desc string) {
		errs = append(errs, ValidationError{Index: index, Field: field, Description: desc})
	}

	if e.ID != "" && !id.IsPersisted(e.ID) {
		add("id", fmt.Sprintf("%q is not a bank entry id; leave it empty to assign one", e.ID))
	}
	if e.TransactionDate.IsZero() {
		add("transactionDate", "missing date")
	}
	if strings.TrimSpace(e.Description) == "" {
		add("description", "missing description")
	}
	if strings.TrimSpace(e.BankCode) == "" {
		add("bankCode", "missing bank code")
	}
	if !e.AmountType.Valid() {
		add("amountType", fmt.Sprintf("amount type %q is not CR or DB", e.AmountType))
	}
	if e.Amount.IsNegative() {
		add("amount", "amount must be unsigned")
	}
	if e.Amount.IsZero() {
		add("amount", "amount must not be zero")
	}
	return errs
}

// ValidateInvoice lists the reasons inv cannot be stored.
func ValidateInvoice(index int, inv model.Invoice) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(inv.ID) == "" {
		errs = append(errs, ValidationError{Index: index, Field: "id", Description: "missing invoice id"})
	}
	if inv.TotalAmount.IsNegative() {
		errs = append(errs, ValidationError{Index: index, Field: "totalAmount", Description: "total must not be negative"})
	}
	return errs
}

// ValidMonth reports whether s is a YYYY-MM month key.
func ValidMonth(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}
