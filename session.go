package ledgerxgo

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Session mirrors one authenticated account for display purposes: the
// last balance read from the store plus a holdings map (instrument symbol
// to owned quantity) maintained by external collaborators and never
// persisted here.
//
// The mirror is advisory. The cached balance is never written back to the
// store; every balance change goes through Service.Transfer, and the
// mirror is refreshed from the store afterwards. Pushing a locally
// mutated balance would silently overwrite a concurrent transfer's
// result, which is exactly the race the transfer path exists to prevent.
//
// A Session belongs to the one caller that created it. Two sessions may
// mirror the same account id; each resolves staleness by refreshing after
// any mutating call.
type Session struct {
	svc Service

	mu       sync.Mutex
	acct     Account
	holdings map[string]int64
}

// NewSession authenticates (creating the account on first login) and
// returns a session mirroring it.
func NewSession(ctx context.Context, svc Service, req AuthReq) (*Session, error) {
	acct, err := svc.AuthenticateOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Session{
		svc:      svc,
		acct:     *acct,
		holdings: make(map[string]int64),
	}, nil
}

// AccountID returns the mirrored account's id.
func (s *Session) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acct.ID
}

// Balance returns the cached balance. It may be stale the moment another
// session moves funds on the same account; Refresh before relying on it.
func (s *Session) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acct.Balance
}

// Refresh re-reads the authoritative account record from the store.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	id := s.acct.ID
	s.mu.Unlock()

	acct, err := s.svc.Account(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.acct = *acct
	s.mu.Unlock()
	return nil
}

// Transfer moves amount to recipient through the transactional path and
// refreshes the mirror from the store before returning.
func (s *Session) Transfer(ctx context.Context, recipient string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	sender := s.acct.ID
	s.mu.Unlock()

	_, err := s.svc.Transfer(ctx, TransferReq{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if err = s.Refresh(ctx); err != nil {
		return decimal.Zero, err
	}
	return s.Balance(), nil
}

// UpdateCredential changes the credential through the store and then
// updates the mirror. Credentials have no concurrent-writer risk beyond
// the owner, so mirroring after the write is safe.
func (s *Session) UpdateCredential(ctx context.Context, credential string) error {
	s.mu.Lock()
	id := s.acct.ID
	s.mu.Unlock()

	if err := s.svc.UpdateCredential(ctx, id, credential); err != nil {
		return err
	}
	s.mu.Lock()
	s.acct.Credential = credential
	s.mu.Unlock()
	return nil
}

// Holding returns the cached quantity for symbol.
func (s *Session) Holding(symbol string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdings[symbol]
}

// Holdings returns a copy of the holdings map.
func (s *Session) Holdings() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.holdings))
	for k, v := range s.holdings {
		out[k] = v
	}
	return out
}

// SetHolding records an owned quantity in the mirror only. Holdings are
// owned by an external collaborator and are not persisted by this core;
// a zero quantity removes the symbol.
func (s *Session) SetHolding(symbol string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if qty == 0 {
		delete(s.holdings, symbol)
		return
	}
	s.holdings[symbol] = qty
}
