package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestToBankEntry_AmountType(t *testing.T) {
	tests := []struct {
		amount   string
		wantType AmountType
		wantAmt  string
	}{
		{"1500.00", AmountTypeCredit, "1500.00"},
		{"-250.50", AmountTypeDebit, "250.50"},
		{"0", AmountTypeCredit, "0.00"},
	}
	for _, tt := range tests {
		e, err := ToBankEntry(Transaction{ID: 1, Date: "02/01/2025", Amount: dec(tt.amount)}, "BCA")
		require.NoError(t, err)
		assert.Equal(t, tt.wantType, e.AmountType, "amount %s", tt.amount)
		assert.Equal(t, tt.wantAmt, e.Amount.StringFixed(2), "amount %s", tt.amount)
		assert.Equal(t, "BCA", e.BankCode)
	}
}

func TestToBankEntry_Defaults(t *testing.T) {
	e, err := ToBankEntry(Transaction{ID: 3, Date: "5/1/2025", Branch: "  ", Amount: dec("10")}, "BCA")
	require.NoError(t, err)
	assert.Equal(t, UnknownBranch, e.Branch)
	assert.True(t, e.Balance.IsZero())
	assert.Equal(t, "2025-01-05", e.TransactionDate.String())

	bal := dec("99.10")
	e, err = ToBankEntry(Transaction{ID: 4, Date: "2025-03-09", Branch: "0123", Amount: dec("10"), Balance: &bal}, "BCA")
	require.NoError(t, err)
	assert.Equal(t, "0123", e.Branch)
	assert.True(t, e.Balance.Equal(bal))
	assert.Equal(t, "2025-03-09", e.TransactionDate.String())
}

func TestToBankEntry_BadDate(t *testing.T) {
	_, err := ToBankEntry(Transaction{ID: 7, Date: "PEND", Amount: dec("10")}, "BCA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction 7")
}

func TestStatementDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"31/12/2024", "2024-12-31", false},
		{"1/2/2025", "2025-02-01", false},
		{"2025-02-01", "2025-02-01", false},
		{"2025-02-01T10:00:00Z", "2025-02-01", false},
		{"32/01/2025", "", true},
		{"yesterday", "", true},
	}
	for _, tt := range tests {
		got, err := StatementDate(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}
}

func TestComputeFingerprint(t *testing.T) {
	base := BankEntry{
		TransactionDate: NewDate(2025, time.January, 2),
		Description:     "TRSF E-BANKING CR",
		Branch:          "0998",
		Amount:          dec("1500000"),
		AmountType:      AmountTypeCredit,
		BankCode:        "BCA",
	}
	fp := ComputeFingerprint(base)
	assert.Len(t, fp, 64)

	same := base
	same.Description = "  trsf e-banking cr "
	same.Amount = dec("1500000.00")
	assert.Equal(t, fp, ComputeFingerprint(same), "case, whitespace and scale are normalized")

	other := base
	other.AmountType = AmountTypeDebit
	assert.NotEqual(t, fp, ComputeFingerprint(other))
}

func TestBankEntry_DeltaAndSigned(t *testing.T) {
	e := BankEntry{Amount: dec("100"), AmountType: AmountTypeDebit, MatchedTotal: dec("40")}
	assert.Equal(t, "-100", e.Signed().String())
	assert.Equal(t, "60", e.Delta().String())
	assert.False(t, e.Reconciled())
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2025-04-30"}`), &v))
	assert.Equal(t, "2025-04", v.D.MonthKey())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-04-30"}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"d":""}`), &v))
	assert.True(t, v.D.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"30/04/2025"}`), &v))
}

func TestInvoice_Remaining(t *testing.T) {
	tests := []struct {
		total, paid string
		want        string
		fullyPaid   bool
	}{
		{"100", "0", "100", false},
		{"100", "40", "60", false},
		{"100", "100", "0", true},
		{"100", "120", "0", true},
	}
	for _, tt := range tests {
		inv := Invoice{TotalAmount: dec(tt.total), PaidAmount: dec(tt.paid)}
		assert.Equal(t, tt.want, inv.Remaining().String())
		assert.Equal(t, tt.fullyPaid, inv.FullyPaid())
	}
}
