package importer

import "strings"

// Column roles of a dialect header, in file order.
const (
	colDate = iota
	colDesc
	colBranch
	colAmount
	colBalance
	dialectNumFields
)

// Dialect is a bank-specific statement layout recognised by its header row.
type Dialect struct {
	Bank string
	// Markers are lowercase substrings expected in the date, description,
	// branch, amount and balance header cells.
	Markers [dialectNumFields]string
}

// BCA is the Bank Central Asia e-statement export.
var BCA = Dialect{
	Bank:    "BCA",
	Markers: [dialectNumFields]string{"tanggal", "keterangan", "cabang", "jumlah", "saldo"},
}

// IsHeader reports whether row is this dialect's header.
func (d Dialect) IsHeader(row RawRow) bool {
	if len(row) < dialectNumFields {
		return false
	}
	for i, marker := range d.Markers {
		if !strings.Contains(strings.ToLower(row[i]), marker) {
			return false
		}
	}
	return true
}

// HeaderIndex returns the index of the first header row, or -1.
func (d Dialect) HeaderIndex(rows []RawRow) int {
	for i, row := range rows {
		if d.IsHeader(row) {
			return i
		}
	}
	return -1
}

// Registry holds dialects keyed by bank code.
type Registry struct {
	dialects map[string]*Dialect
}

// NewRegistry creates an empty dialect registry.
func NewRegistry() *Registry {
	return &Registry{dialects: make(map[string]*Dialect)}
}

// Register adds a dialect. Panics on duplicate bank code.
func (r *Registry) Register(d Dialect) {
	key := strings.ToLower(d.Bank)
	if _, ok := r.dialects[key]; ok {
		panic("duplicate dialect for bank: " + key)
	}
	r.dialects[key] = &d
}

// Get returns the dialect for bank, or nil.
func (r *Registry) Get(bank string) *Dialect {
	return r.dialects[strings.ToLower(strings.TrimSpace(bank))]
}

// Banks returns the registered bank codes.
func (r *Registry) Banks() []string {
	banks := make([]string, 0, len(r.dialects))
	for _, d := range r.dialects {
		banks = append(banks, d.Bank)
	}
	return banks
}

// DefaultRegistry returns a registry with all built-in dialects.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(BCA)
	return r
}
