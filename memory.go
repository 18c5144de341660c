package ledgerxgo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MemEndpoint is an in-memory Repository. A single mutex serializes every
// unit of work, so all the contract's ordering guarantees hold trivially;
// an undo log restores pre-transaction state when a unit fails. Ledger
// sequence ids come from a snowflake node, which generates strictly
// increasing ids under the lock.
//
// It backs tests and callers embedding the core without a database.
type MemEndpoint struct {
	mu      sync.Mutex
	accts   map[string]*Account
	entries []LedgerEntry
	node    *snowflake.Node
}

var (
	_ Repository = (*MemEndpoint)(nil)
)

func NewMemEndpoint() (*MemEndpoint, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	return &MemEndpoint{
		accts: make(map[string]*Account),
		node:  node,
	}, nil
}

func (m *MemEndpoint) CreateAccount(ctx context.Context, acct Account) error {
	if acct.Balance.IsNegative() {
		return ErrBadRequest{Fields: map[string]string{"balance": "must not be negative"}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accts[acct.ID]; ok {
		return ErrAlreadyExists{ID: acct.ID}
	}
	cp := acct
	m.accts[acct.ID] = &cp
	return nil
}

func (m *MemEndpoint) GetAccount(ctx context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accts[id]
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemEndpoint) UpdateCredential(ctx context.Context, id, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accts[id]
	if !ok {
		return ErrNotFound{ID: id}
	}
	a.Credential = credential
	return nil
}

func (m *MemEndpoint) LedgerFor(ctx context.Context, id string) ([]LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LedgerEntry
	for _, e := range m.entries {
		if e.Sender == id || e.Recipient == id {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq > out[j].Seq
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemEndpoint) WithinTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memTx struct {
	m    *MemEndpoint
	undo []func()
}

var (
	_ Tx = (*memTx)(nil)
)

func (t *memTx) DebitIfSufficient(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	a, ok := t.m.accts[id]
	if !ok {
		return decimal.Zero, ErrNotFound{ID: id}
	}
	if a.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientBalance
	}
	prev := a.Balance
	a.Balance = a.Balance.Sub(amount)
	t.undo = append(t.undo, func() { a.Balance = prev })
	return a.Balance, nil
}

func (t *memTx) Credit(ctx context.Context, id string, amount decimal.Decimal) error {
	a, ok := t.m.accts[id]
	if !ok {
		return ErrNotFound{ID: id}
	}
	prev := a.Balance
	a.Balance = a.Balance.Add(amount)
	t.undo = append(t.undo, func() { a.Balance = prev })
	return nil
}

func (t *memTx) AppendEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	entry.Seq = t.m.node.Generate().Int64()
	entry.Timestamp = time.Now().UTC()
	t.m.entries = append(t.m.entries, entry)
	t.undo = append(t.undo, func() { t.m.entries = t.m.entries[:len(t.m.entries)-1] })
	return entry, nil
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
