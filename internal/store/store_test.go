package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrecon/internal/id"
	"github.com/cleared-dev/bankrecon/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) model.Date {
	return model.NewDate(y, m, d)
}

func TestNormalizePaging(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultLimit, 0},
		{-3, -1, DefaultLimit, 0},
		{10, 20, 10, 20},
		{MaxLimit + 1, 0, MaxLimit, 0},
	}
	for _, tt := range tests {
		l, o := NormalizePaging(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, l)
		assert.Equal(t, tt.wantOffset, o)
	}
}

func TestPaginate(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	p := Paginate(all, 2, 0)
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.Equal(t, 5, p.Total)
	assert.True(t, p.HasNext())
	assert.Equal(t, 2, p.NextOffset())

	p = Paginate(all, 2, 4)
	assert.Equal(t, []int{5}, p.Items)
	assert.False(t, p.HasNext())

	p = Paginate(all, 2, 10)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.False(t, p.HasNext())
}

func TestReconcileRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ReconcileRequest
		wantErr string
	}{
		{"empty replace", ReconcileRequest{Mode: ModeReplace}, ""},
		{"mode defaults", ReconcileRequest{Invoices: []Allocation{{InvoiceID: "A", Amount: dec("1")}}}, ""},
		{"merge rejected", ReconcileRequest{Mode: "merge"}, `unsupported mode "merge"`},
		{"missing id", ReconcileRequest{Invoices: []Allocation{{Amount: dec("1")}}}, "missing invoice id"},
		{"duplicate", ReconcileRequest{Invoices: []Allocation{{InvoiceID: "A"}, {InvoiceID: "A"}}}, "duplicate invoice A"},
		{"negative", ReconcileRequest{Invoices: []Allocation{{InvoiceID: "A", Amount: dec("-1")}}}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReconcileRequest_MatchedTotal(t *testing.T) {
	req := ReconcileRequest{Invoices: []Allocation{
		{InvoiceID: "A", Amount: dec("10.25")},
		{InvoiceID: "B", Amount: dec("4.75")},
	}}
	assert.Equal(t, "15", req.MatchedTotal().String())
}

func TestEntryFilter_Matches(t *testing.T) {
	e := model.BankEntry{
		TransactionDate: date(2025, time.January, 15),
		Description:     "TRSF E-BANKING CR PT MAJU",
		Branch:          "0998",
		AmountType:      model.AmountTypeCredit,
		BankCode:        "BCA",
	}
	tests := []struct {
		name string
		f    EntryFilter
		want bool
	}{
		{"empty", EntryFilter{}, true},
		{"bank case-insensitive", EntryFilter{BankCode: "bca"}, true},
		{"other bank", EntryFilter{BankCode: "CIMB"}, false},
		{"type", EntryFilter{AmountType: model.AmountTypeDebit}, false},
		{"month", EntryFilter{Month: "2025-01"}, true},
		{"other month", EntryFilter{Month: "2025-02"}, false},
		{"branch", EntryFilter{Branch: "0998"}, true},
		{"description", EntryFilter{Description: "pt maju"}, true},
		{"before start", EntryFilter{StartDate: date(2025, time.January, 16)}, false},
		{"on end", EntryFilter{EndDate: date(2025, time.January, 15)}, true},
		{"after end", EntryFilter{EndDate: date(2025, time.January, 14)}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.f.Matches(e), tt.name)
	}
}

func TestInvoiceFilter_Matches(t *testing.T) {
	paid := model.Invoice{ID: "A", InvoiceNo: "SI/2025/0001", TotalAmount: dec("100"), PaidAmount: dec("100"), Status: "open", InvoiceDate: date(2025, time.March, 1)}
	open := model.Invoice{ID: "B", InvoiceNo: "SI/2025/0002", TotalAmount: dec("100"), PaidAmount: dec("20"), Status: "open", CompanyCode: "CMP1"}

	f := InvoiceFilter{ExcludeFullyPaid: true, IncludeIDs: []string{"A"}}
	assert.False(t, f.Matches(paid))
	assert.True(t, f.Includes("A"))
	assert.False(t, f.Includes("B"))
	assert.True(t, f.Matches(open))

	assert.True(t, InvoiceFilter{InvoiceNo: "0002"}.Matches(open))
	assert.False(t, InvoiceFilter{CompanyCode: "CMP2"}.Matches(open))
	assert.False(t, InvoiceFilter{StartDate: date(2025, time.April, 1)}.Matches(paid))
}

func TestValidateEntry(t *testing.T) {
	good := model.BankEntry{
		TransactionDate: date(2025, time.January, 2),
		Description:     "SETORAN",
		Amount:          dec("10"),
		AmountType:      model.AmountTypeCredit,
		BankCode:        "BCA",
	}
	assert.Empty(t, ValidateEntry(0, good))

	bad := model.BankEntry{Amount: dec("-1"), AmountType: "XX"}
	errs := ValidateEntry(3, bad)
	var fields []string
	for _, e := range errs {
		assert.Equal(t, 3, e.Index)
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"transactionDate", "description", "bankCode", "amountType", "amount"}, fields)
}

func TestValidateEntry_ID(t *testing.T) {
	e := model.BankEntry{
		TransactionDate: date(2025, time.January, 2),
		Description:     "SETORAN",
		Amount:          dec("10"),
		AmountType:      model.AmountTypeCredit,
		BankCode:        "BCA",
	}

	e.ID = id.NewEntryID()
	assert.Empty(t, ValidateEntry(0, e))

	for _, bad := range []string{"7", "TXN-1", "BE-nope"} {
		e.ID = bad
		errs := ValidateEntry(0, e)
		require.Len(t, errs, 1, bad)
		assert.Equal(t, "id", errs[0].Field)
	}
}

func TestValidMonth(t *testing.T) {
	assert.True(t, ValidMonth("2025-01"))
	assert.False(t, ValidMonth("2025-13"))
	assert.False(t, ValidMonth("01/2025"))
}
