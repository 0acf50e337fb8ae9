// Package auditlog appends one CSV row per reconciliation save.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Action names written to the log.
const (
	ActionSave     = "save"
	ActionSaveNone = "save_none"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp    time.Time
	EntryID      string
	Action       string
	Invoices     []string
	MatchedTotal decimal.Decimal
	Note         string
}

// Header is the CSV header of the audit log.
const Header = "timestamp,entry_id,action,invoices,matched_total,note"

const (
	numFields       = 6
	colTimestamp    = 0
	colEntryID      = 1
	colAction       = 2
	colInvoices     = 3
	colMatchedTotal = 4
	colNote         = 5

	invoiceSep = ";"
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colEntryID] = e.EntryID
	row[colAction] = e.Action
	row[colInvoices] = strings.Join(e.Invoices, invoiceSep)
	row[colMatchedTotal] = e.MatchedTotal.StringFixed(2)
	row[colNote] = e.Note
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	total, err := decimal.NewFromString(record[colMatchedTotal])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing matched_total %q: %w", record[colMatchedTotal], err)
	}

	var invoices []string
	if record[colInvoices] != "" {
		invoices = strings.Split(record[colInvoices], invoiceSep)
	}

	return Entry{
		Timestamp:    ts,
		EntryID:      record[colEntryID],
		Action:       record[colAction],
		Invoices:     invoices,
		MatchedTotal: total,
		Note:         record[colNote],
	}, nil
}

// Log appends entries to a CSV file. The zero path disables it.
type Log struct {
	mu   sync.Mutex
	path string
}

// New returns a Log writing to path. An empty path gives a no-op log.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the file the log writes to.
func (l *Log) Path() string {
	return l.path
}

// Record appends one entry, creating the file and header if needed.
func (l *Log) Record(e Entry) error {
	if l == nil || l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return Append(l.path, []Entry{e})
}

// Append writes entries to path, creating parent dirs and the header if
// needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries in path. A missing file yields no entries.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
