package ledgerxgo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is an id-keyed record holding authentication material and a
// non-negative currency balance. IDs are immutable once created and
// accounts are never deleted. Balance only moves through the transfer
// path; there is no direct balance setter anywhere in this package.
type Account struct {
	ID         string          `json:"id"`
	Credential string          `json:"-"`
	Balance    decimal.Decimal `json:"balance"`
}

// LedgerEntry is one completed transfer. Seq and Timestamp are assigned
// by the store at append time; entries are immutable once written and the
// ledger has no update or delete path.
type LedgerEntry struct {
	Seq       int64           `json:"seq"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
