package importer

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/bankrecon/internal/model"
)

// StrategyGeneric names results produced by the date-sniffing fallback.
const StrategyGeneric = "generic"

const genericMinFields = 4

var genericDate = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

// FallbackPolicy decides what happens when a dialect header is found but no
// row under it parses.
type FallbackPolicy string

const (
	// FallbackGeneric re-parses the file with the generic strategy.
	FallbackGeneric FallbackPolicy = "generic"
	// FallbackStrict returns the empty dialect result.
	FallbackStrict FallbackPolicy = "strict"
)

// ParseFallbackPolicy validates a policy name. Empty means FallbackGeneric.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FallbackGeneric, nil
	case FallbackGeneric, FallbackStrict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q (want generic or strict)", s)
	}
}

// Result is the outcome of one parse run.
type Result struct {
	Transactions []model.Transaction
	// Skipped counts rows the chosen strategy looked at and rejected.
	Skipped  int
	Strategy string
}

// Resolver picks a parsing strategy per bank and turns rows into
// transactions.
type Resolver struct {
	registry *Registry
	policy   FallbackPolicy
	logger   *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the zero-result fallback policy.
func WithPolicy(p FallbackPolicy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithLogger attaches a logger for skipped-row diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver over reg.
func NewResolver(reg *Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: reg,
		policy:   FallbackGeneric,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve parses rows for bank. The bank's dialect is tried first when one is
// registered; otherwise, or when its header is missing, the generic strategy
// runs.
func (r *Resolver) Resolve(bank string, rows []RawRow) Result {
	if d := r.registry.Get(bank); d != nil {
		if res, found := r.parseDialect(*d, rows); found {
			if len(res.Transactions) > 0 || r.policy == FallbackStrict {
				return res
			}
			r.logger.Debug("dialect header found but no rows parsed, using generic", "bank", d.Bank, "skipped", res.Skipped)
		}
	}
	return r.parseGeneric(rows)
}

// Parse tokenizes text and resolves it. Rows that could not be used are
// reported in skipped, never as an error.
func (r *Resolver) Parse(bank, text string) (txns []model.Transaction, skipped int) {
	res := r.Resolve(bank, Tokenize(text))
	return res.Transactions, res.Skipped
}

// ParseFile reads a statement file of any supported format and resolves it.
func (r *Resolver) ParseFile(bank, name string, data []byte) (Result, error) {
	rows, err := ReadRows(name, data)
	if err != nil {
		return Result{}, err
	}
	return r.Resolve(bank, rows), nil
}

// Parse runs the built-in dialects with the default fallback policy.
func Parse(bank, text string) ([]model.Transaction, int) {
	return NewResolver(DefaultRegistry()).Parse(bank, text)
}

func (r *Resolver) parseDialect(d Dialect, rows []RawRow) (Result, bool) {
	headerIdx := d.HeaderIndex(rows)
	if headerIdx < 0 {
		return Result{}, false
	}

	n := newNormalizer(r.logger)
	for i, row := range rows[headerIdx+1:] {
		rowNo := headerIdx + i + 2
		if len(row) < dialectNumFields {
			n.skip(rowNo, "too few fields")
			continue
		}
		n.add(rowNo, row[colDate], row[colDesc], row[colBranch], row[colAmount], row[colBalance])
	}
	return n.result(d.Bank), true
}

func (r *Resolver) parseGeneric(rows []RawRow) Result {
	n := newNormalizer(r.logger)
	for i, row := range rows {
		rowNo := i + 1
		if len(row) < genericMinFields {
			n.skip(rowNo, "too few fields")
			continue
		}
		if !genericDate.MatchString(row[colDate]) {
			n.skip(rowNo, "no leading date")
			continue
		}
		balance := ""
		if len(row) > colBalance {
			balance = row[colBalance]
		}
		n.add(rowNo, row[colDate], row[colDesc], row[colBranch], row[colAmount], balance)
	}
	return n.result(StrategyGeneric)
}

// normalizer assigns sequential ids and defaults to accepted rows.
type normalizer struct {
	logger  *log.Logger
	nextID  int
	txns    []model.Transaction
	skipped int
}

func newNormalizer(logger *log.Logger) *normalizer {
	return &normalizer{logger: logger, nextID: 1}
}

func (n *normalizer) add(rowNo int, date, desc, branch, amountRaw, balanceRaw string) {
	dir, magnitude, ok := Classify(amountRaw)
	if !ok {
		n.skip(rowNo, "no amount")
		return
	}

	branch = strings.TrimSpace(branch)
	if branch == "" {
		branch = model.UnknownBranch
	}

	txn := model.Transaction{
		ID:          n.nextID,
		Date:        date,
		Description: desc,
		Branch:      branch,
		Amount:      SignedAmount(dir, magnitude),
		Direction:   dir,
		Status:      model.StatusPosted,
	}
	if bal, ok := ParseMagnitude(balanceRaw); ok {
		txn.Balance = &bal
	}

	n.txns = append(n.txns, txn)
	n.nextID++
}

func (n *normalizer) skip(rowNo int, reason string) {
	n.skipped++
	n.logger.Debug("skipping row", "row", rowNo, "reason", reason)
}

func (n *normalizer) result(strategy string) Result {
	return Result{Transactions: n.txns, Skipped: n.skipped, Strategy: strategy}
}
