package model

import (
	"github.com/shopspring/decimal"
)

// Direction is the money flow inferred from a statement amount cell.
type Direction string

const (
	DirectionIn    Direction = "in"
	DirectionOut   Direction = "out"
	DirectionUnset Direction = ""
)

// Status is the lifecycle state of a parsed transaction.
type Status string

const (
	StatusPosted Status = "posted"
	// StatusPending is reserved; the parser never produces it.
	StatusPending Status = "pending"
)

// UnknownBranch replaces a blank branch cell.
const UnknownBranch = "UNKNOWN"

// Transaction is one normalized statement row. It lives only for the parse
// run that produced it.
type Transaction struct {
	ID          int              `json:"id"`
	Date        string           `json:"date"` // source format, not ISO
	Description string           `json:"description"`
	Branch      string           `json:"branch"`
	Amount      decimal.Decimal  `json:"amount"` // negative = outbound
	Direction   Direction        `json:"direction,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Status      Status           `json:"status"`
}
