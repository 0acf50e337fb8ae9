package importer

import (
	"github.com/cleared-dev/bankrecon/internal/model"
)

// ToEntries converts parsed transactions to bank entries for bankCode.
// Transactions whose date cannot be normalized are counted in rejected.
func ToEntries(txns []model.Transaction, bankCode string) (entries []model.BankEntry, rejected int) {
	entries = make([]model.BankEntry, 0, len(txns))
	for _, t := range txns {
		e, err := model.ToBankEntry(t, bankCode)
		if err != nil {
			rejected++
			continue
		}
		entries = append(entries, e)
	}
	return entries, rejected
}
