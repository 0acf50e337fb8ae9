package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountType marks a persisted entry as credit or debit.
type AmountType string

const (
	AmountTypeCredit AmountType = "CR"
	AmountTypeDebit  AmountType = "DB"
)

// Valid reports whether t is CR or DB.
func (t AmountType) Valid() bool {
	return t == AmountTypeCredit || t == AmountTypeDebit
}

// BankEntry is a persisted statement line. AttachedCount, MatchedTotal and
// the reconcile fields are maintained by the store.
type BankEntry struct {
	ID              string          `json:"id"`
	TransactionDate Date            `json:"transactionDate"`
	Description     string          `json:"description"`
	Branch          string          `json:"branch"`
	Amount          decimal.Decimal `json:"amount"` // unsigned
	AmountType      AmountType      `json:"amountType"`
	Balance         decimal.Decimal `json:"balance"`
	BankCode        string          `json:"bankCode"`
	Fingerprint     string          `json:"fingerprint,omitempty"`
	AttachedCount   int             `json:"attachedCount"`
	MatchedTotal    decimal.Decimal `json:"matchedTotal"`
	ReconciledAt    *time.Time      `json:"reconciledAt,omitempty"`
	ReconcileNote   string          `json:"reconcileNote,omitempty"`
}

// Signed returns the amount with the sign implied by AmountType.
func (e BankEntry) Signed() decimal.Decimal {
	if e.AmountType == AmountTypeDebit {
		return e.Amount.Abs().Neg()
	}
	return e.Amount.Abs()
}

// Delta is the unsettled remainder of the entry against its stored matches.
func (e BankEntry) Delta() decimal.Decimal {
	return e.Amount.Abs().Sub(e.MatchedTotal)
}

// Reconciled reports whether a reconciliation, possibly empty, was saved.
func (e BankEntry) Reconciled() bool {
	return e.ReconciledAt != nil
}

// ComputeFingerprint hashes the identifying fields of an entry. Two uploads of
// the same statement line produce the same fingerprint.
func ComputeFingerprint(e BankEntry) string {
	base := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(e.TransactionDate.String())),
		strings.ToLower(strings.TrimSpace(e.Description)),
		strings.TrimSpace(e.Branch),
		e.Amount.StringFixed(2),
		strings.TrimSpace(string(e.AmountType)),
		strings.TrimSpace(e.BankCode),
	}, "|")
	h := sha256.Sum256([]byte(base))
	return hex.EncodeToString(h[:])
}

// ToBankEntry projects a parsed transaction into a persistable entry.
func ToBankEntry(t Transaction, bankCode string) (BankEntry, error) {
	d, err := StatementDate(t.Date)
	if err != nil {
		return BankEntry{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}

	amountType := AmountTypeCredit
	if t.Amount.IsNegative() {
		amountType = AmountTypeDebit
	}

	balance := decimal.Zero
	if t.Balance != nil {
		balance = *t.Balance
	}

	branch := strings.TrimSpace(t.Branch)
	if branch == "" {
		branch = UnknownBranch
	}

	return BankEntry{
		TransactionDate: d,
		Description:     t.Description,
		Branch:          branch,
		Amount:          t.Amount.Abs(),
		AmountType:      amountType,
		Balance:         balance,
		BankCode:        bankCode,
	}, nil
}

// StatementDate converts a statement date cell to a Date. Day-first
// "D/M/YYYY" is tried before ISO and RFC3339.
func StatementDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) == 3 {
		iso := fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
		t, err := time.Parse(DateLayout, iso)
		if err != nil {
			return Date{}, fmt.Errorf("invalid statement date %q", s)
		}
		return DateOf(t), nil
	}
	return ParseDate(s)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
