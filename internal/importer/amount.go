package importer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrecon/internal/model"
)

const (
	creditMarker = "CR"
	debitMarker  = "DB"
	// debitMarkerAlt is the other spelling some banks print for debits.
	debitMarkerAlt = "DR"
)

var nonNumeric = regexp.MustCompile(`[^0-9.,\-]`)

// numericPrefix is the leading number of a cleaned cell. Anything after it,
// such as a trailing period, is ignored.
var numericPrefix = regexp.MustCompile(`^-?(?:\d+(?:\.\d+)?|\.\d+)`)

// Classify infers direction and magnitude from an amount cell such as
// "1,500,000.00 CR". ok is false when the magnitude is unparseable or zero;
// such rows are not ledger events and must be dropped.
func Classify(raw string) (dir model.Direction, magnitude decimal.Decimal, ok bool) {
	dir = DetectDirection(raw)
	magnitude, ok = ParseMagnitude(raw)
	if !ok || magnitude.IsZero() {
		return dir, decimal.Zero, false
	}
	return dir, magnitude, true
}

// DetectDirection looks for the credit marker first, then either debit marker.
func DetectDirection(raw string) model.Direction {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, creditMarker):
		return model.DirectionIn
	case strings.Contains(upper, debitMarkerAlt), strings.Contains(upper, debitMarker):
		return model.DirectionOut
	default:
		return model.DirectionUnset
	}
}

// ParseMagnitude keeps digits, separators and minus signs, drops thousands
// commas and parses the leading number. Zero is a valid result here.
func ParseMagnitude(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(nonNumeric.ReplaceAllString(raw, ""), ",", "")
	num := numericPrefix.FindString(cleaned)
	if num == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SignedAmount applies dir to a magnitude: outbound is negative, anything
// else positive.
func SignedAmount(dir model.Direction, magnitude decimal.Decimal) decimal.Decimal {
	if dir == model.DirectionOut {
		return magnitude.Abs().Neg()
	}
	return magnitude.Abs()
}
