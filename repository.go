package ledgerxgo

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository is the combined account and ledger store. Implementations
// must serialize conflicting mutations on the same account id so that the
// sequence of observed balances for any one account is linearizable.
type Repository interface {
	CreateAccount(ctx context.Context, acct Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	UpdateCredential(ctx context.Context, id, credential string) error

	// LedgerFor returns every entry where id is sender or recipient,
	// newest first. The slice is fully materialized; a concurrent append
	// may or may not be visible but a half-written entry never is.
	LedgerFor(ctx context.Context, id string) ([]LedgerEntry, error)

	// WithinTx runs fn as one all-or-nothing unit over both stores.
	// When fn returns an error every mutation made through the Tx is
	// rolled back; otherwise the unit commits before WithinTx returns.
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the mutating surface available inside a unit of work.
type Tx interface {
	// DebitIfSufficient decrements id's balance by amount only when the
	// current balance covers it, returning the new balance. It returns
	// ErrNotFound for a missing account and ErrInsufficientBalance when
	// the balance falls short. The check and the decrement are a single
	// indivisible operation with respect to other mutations on id.
	DebitIfSufficient(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error)

	// Credit increments id's balance by amount. ErrNotFound when the
	// account does not exist.
	Credit(ctx context.Context, id string, amount decimal.Decimal) error

	// AppendEntry writes one ledger entry and returns it with the
	// store-assigned sequence id and timestamp filled in.
	AppendEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
}
