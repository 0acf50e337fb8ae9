package invoices

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
	"github.com/cleared-dev/bankrecon/internal/store/memory"
)

func TestRoundTrip(t *testing.T) {
	invoices := []model.Invoice{
		{ID: "INV-1", InvoiceNo: "SI/1", InvoiceDate: model.NewDate(2025, time.January, 2), CustomerID: "C-1",
			CustomerName: "PT MAJU, TBK", Status: "open", TotalAmount: decimal.RequireFromString("1500000"), TotalTax: decimal.RequireFromString("148648.65")},
		{ID: "INV-2", InvoiceNo: "SI/2", TotalAmount: decimal.RequireFromString("10.5")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInvoices(&buf, invoices))

	got, err := ReadInvoices(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "PT MAJU, TBK", got[0].CustomerName)
	assert.Equal(t, "2025-01-02", got[0].InvoiceDate.String())
	assert.True(t, got[0].TotalTax.Equal(invoices[0].TotalTax))
	assert.True(t, got[1].InvoiceDate.IsZero())
	assert.Equal(t, "10.50", got[1].TotalAmount.StringFixed(2))
}

func TestUnmarshalInvoice(t *testing.T) {
	inv, err := UnmarshalInvoice([]string{"INV-9", "SI/9", "5/1/2025", "", "", "", "", "1,250.00", ""})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-05", inv.InvoiceDate.String())
	assert.Equal(t, "1250", inv.TotalAmount.String())
	assert.True(t, inv.TotalTax.IsZero())

	_, err = UnmarshalInvoice([]string{"INV-9"})
	assert.ErrorContains(t, err, "expected 9 fields")

	_, err = UnmarshalInvoice([]string{"INV-9", "", "someday", "", "", "", "", "1", "0"})
	assert.ErrorContains(t, err, "invoice_date")

	_, err = UnmarshalInvoice([]string{"INV-9", "", "", "", "", "", "", "lots", "0"})
	assert.ErrorContains(t, err, "total_amount")
}

func TestReadInvoices_BadRow(t *testing.T) {
	in := strings.Join(Header, ",") + "\nINV-1,,,,,,,x,0\n"
	_, err := ReadInvoices(strings.NewReader(in))
	assert.ErrorContains(t, err, "row 2")
}

func TestImport_Testdata(t *testing.T) {
	mem := memory.New()
	n, err := Import(context.Background(), mem, "../../testdata/invoices.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := mem.ListInvoices(context.Background(), store.InvoiceFilter{CustomerID: "C-01"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "INV-003", page.Items[0].ID, "newest first")
}

func TestImport_MissingFile(t *testing.T) {
	_, err := Import(context.Background(), memory.New(), "nope.csv")
	assert.ErrorContains(t, err, "opening invoices")
}
