package importer

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrecon/internal/model"
)

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestResolve_BCADialect(t *testing.T) {
	r := NewResolver(DefaultRegistry())
	res := r.Resolve("BCA", Tokenize(readTestdata(t, "bca_statement.csv")))

	assert.Equal(t, "BCA", res.Strategy)
	require.Len(t, res.Transactions, 4)
	// zero amount row and two footer rows
	assert.Equal(t, 3, res.Skipped)

	first := res.Transactions[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "02/01/2025", first.Date)
	assert.Equal(t, "TRSF E-BANKING CR 0201/FTSCY/WS95031 PT MAJU", first.Description)
	assert.Equal(t, "0998", first.Branch)
	assert.Equal(t, "1500000.00", first.Amount.StringFixed(2))
	assert.Equal(t, model.DirectionIn, first.Direction)
	require.NotNil(t, first.Balance)
	assert.Equal(t, "11500000.00", first.Balance.StringFixed(2))
	assert.Equal(t, model.StatusPosted, first.Status)

	debit := res.Transactions[1]
	assert.Equal(t, "-15000.00", debit.Amount.StringFixed(2))
	assert.Equal(t, model.DirectionOut, debit.Direction)

	unknown := res.Transactions[2]
	assert.Equal(t, model.UnknownBranch, unknown.Branch)
	assert.Equal(t, `KR OTOMATIS LLG-ANTAR BANK "PT SINAR"`, unknown.Description)

	pending := res.Transactions[3]
	assert.Equal(t, "PEND", pending.Date)
	assert.Nil(t, pending.Balance)

	for i, txn := range res.Transactions {
		assert.Equal(t, i+1, txn.ID, "ids are sequential")
	}
}

func TestResolve_HeaderAnyCase(t *testing.T) {
	rows := []RawRow{
		{"TANGGAL", "KETERANGAN", "CABANG", "JUMLAH", "SALDO"},
		{"01/01/2025", "x", "1", "10 CR", "10"},
	}
	assert.True(t, BCA.IsHeader(rows[0]))
	assert.True(t, BCA.IsHeader(RawRow{"Tanggal", "Keterangan", "Cabang", "Jumlah", "Saldo"}))
	assert.False(t, BCA.IsHeader(RawRow{"Tanggal", "Keterangan", "Cabang", "Jumlah"}))
	assert.False(t, BCA.IsHeader(RawRow{"Keterangan", "Tanggal", "Cabang", "Jumlah", "Saldo"}))

	res := NewResolver(DefaultRegistry()).Resolve("bca", rows)
	assert.Equal(t, "BCA", res.Strategy)
	assert.Len(t, res.Transactions, 1)
}

func TestResolve_GenericForBankWithoutDialect(t *testing.T) {
	r := NewResolver(DefaultRegistry())
	res := r.Resolve("CIMB", Tokenize(readTestdata(t, "bca_statement.csv")))

	assert.Equal(t, StrategyGeneric, res.Strategy)
	require.Len(t, res.Transactions, 3)
	assert.Equal(t, 9, res.Skipped)
	assert.Equal(t, "05/01/2025", res.Transactions[2].Date)
}

func TestResolve_GenericWhenHeaderMissing(t *testing.T) {
	txns, skipped := Parse("BCA", readTestdata(t, "generic_statement.csv"))
	require.Len(t, txns, 2)
	assert.Equal(t, 3, skipped)

	assert.Equal(t, "2000.00", txns[0].Amount.StringFixed(2))
	require.NotNil(t, txns[0].Balance)
	assert.Equal(t, "5000", txns[0].Balance.String())

	assert.Equal(t, "1/2/2025", txns[1].Date)
	assert.Equal(t, model.UnknownBranch, txns[1].Branch)
	assert.Equal(t, "-10.00", txns[1].Amount.StringFixed(2))
	assert.Nil(t, txns[1].Balance)
}

const nearMissStatement = `Tanggal,Keterangan,Cabang,Jumlah,Saldo
01/03/2025,x,001,"0.00",1
05/03/2025,"late row",002,"7.50 CR"
`

func TestResolve_ZeroResultFallback(t *testing.T) {
	rows := Tokenize(nearMissStatement)

	res := NewResolver(DefaultRegistry()).Resolve("BCA", rows)
	assert.Equal(t, StrategyGeneric, res.Strategy)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "7.50", res.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, 2, res.Skipped)

	strict := NewResolver(DefaultRegistry(), WithPolicy(FallbackStrict)).Resolve("BCA", rows)
	assert.Equal(t, "BCA", strict.Strategy)
	assert.Empty(t, strict.Transactions)
	assert.Equal(t, 2, strict.Skipped)
}

func TestResolve_GenericDatePattern(t *testing.T) {
	tests := []struct {
		date string
		ok   bool
	}{
		{"01/02/2025", true},
		{"1/2/2025", true},
		{"001/02/2025", false},
		{"01/02/25", false},
		{"2025/01/02", false},
		{"01-02-2025", false},
	}
	for _, tt := range tests {
		res := NewResolver(NewRegistry()).Resolve("ANY", []RawRow{{tt.date, "d", "b", "1 CR"}})
		assert.Equal(t, tt.ok, len(res.Transactions) == 1, "date %q", tt.date)
	}
}

func TestResolve_EmptyInput(t *testing.T) {
	txns, skipped := Parse("BCA", "")
	assert.Empty(t, txns)
	assert.Zero(t, skipped)
}

func TestResolve_IDsRestartPerRun(t *testing.T) {
	r := NewResolver(DefaultRegistry())
	text := readTestdata(t, "bca_statement.csv")
	a, _ := r.Parse("BCA", text)
	b, _ := r.Parse("BCA", text)
	require.NotEmpty(t, a)
	assert.Equal(t, 1, a[0].ID)
	assert.Equal(t, 1, b[0].ID)
}

func TestParseFallbackPolicy(t *testing.T) {
	p, err := ParseFallbackPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FallbackGeneric, p)

	p, err = ParseFallbackPolicy(" Strict ")
	require.NoError(t, err)
	assert.Equal(t, FallbackStrict, p)

	_, err = ParseFallbackPolicy("guess")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fallback policy")
}

func TestResolver_ParseFileCSV(t *testing.T) {
	r := NewResolver(DefaultRegistry())
	res, err := r.ParseFile("BCA", "statement.CSV", []byte(readTestdata(t, "bca_statement.csv")))
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 4)
}

func TestResolver_ParseFileBadSpreadsheet(t *testing.T) {
	r := NewResolver(DefaultRegistry())
	_, err := r.ParseFile("BCA", "statement.xlsx", []byte(strings.Repeat("x", 32)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening xlsx")
}
