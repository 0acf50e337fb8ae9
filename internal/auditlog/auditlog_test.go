package auditlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:    testTime,
		EntryID:      "BE-7f1c",
		Action:       ActionSave,
		Invoices:     []string{"INV-001", "INV-002"},
		MatchedTotal: decimal.RequireFromString("1250000"),
		Note:         "transfer, january",
	}
}

func TestRecord_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.csv")
	l := New(path)
	require.NoError(t, l.Record(testEntry()))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BE-7f1c", entries[0].EntryID)
	assert.Equal(t, []string{"INV-001", "INV-002"}, entries[0].Invoices)
	assert.Equal(t, "transfer, january", entries[0].Note)
	assert.True(t, entries[0].Timestamp.Equal(testTime))
}

func TestRecord_AppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	l := New(path)
	require.NoError(t, l.Record(testEntry()))

	none := testEntry()
	none.Action = ActionSaveNone
	none.Invoices = nil
	none.MatchedTotal = decimal.Zero
	require.NoError(t, l.Record(none))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionSaveNone, entries[1].Action)
	assert.Empty(t, entries[1].Invoices)
	assert.True(t, entries[1].MatchedTotal.IsZero())
}

func TestRecord_Disabled(t *testing.T) {
	assert.NoError(t, New("").Record(testEntry()))

	var l *Log
	assert.NoError(t, l.Record(testEntry()))
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	_, err := UnmarshalEntry([]string{"a"})
	assert.ErrorContains(t, err, "expected 6 fields")

	row := MarshalEntry(testEntry())
	row[colTimestamp] = "yesterday"
	_, err = UnmarshalEntry(row)
	assert.ErrorContains(t, err, "parsing timestamp")

	row = MarshalEntry(testEntry())
	row[colMatchedTotal] = "lots"
	_, err = UnmarshalEntry(row)
	assert.ErrorContains(t, err, "parsing matched_total")
}
