package ledgerxgo

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

type Middleware func(Service) Service

//
// Request validation
//

type validationMiddleware struct {
	next Service
}

var (
	_ Service = (*validationMiddleware)(nil)
)

func NewValidationMiddleware() Middleware {
	return func(svc Service) Service {
		return &validationMiddleware{next: svc}
	}
}

func (v *validationMiddleware) AuthenticateOrCreate(ctx context.Context, req AuthReq) (*Account, error) {
	fields := map[string]string{}
	if req.AccountID == "" {
		fields["account_id"] = "must not be empty"
	}
	if req.Credential == "" {
		fields["credential"] = "must not be empty"
	}
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.AuthenticateOrCreate(ctx, req)
}

func (v *validationMiddleware) Transfer(ctx context.Context, req TransferReq) (*decimal.Decimal, error) {
	fields := map[string]string{}
	if req.Sender == "" {
		fields["sender"] = "must not be empty"
	}
	if req.Recipient == "" {
		fields["recipient"] = "must not be empty"
	}
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.Transfer(ctx, req)
}

func (v *validationMiddleware) Account(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, ErrBadRequest{Fields: map[string]string{"account_id": "must not be empty"}}
	}
	return v.next.Account(ctx, id)
}

func (v *validationMiddleware) Ledger(ctx context.Context, id string) ([]LedgerEntry, error) {
	if id == "" {
		return nil, ErrBadRequest{Fields: map[string]string{"account_id": "must not be empty"}}
	}
	return v.next.Ledger(ctx, id)
}

func (v *validationMiddleware) UpdateCredential(ctx context.Context, id, credential string) error {
	fields := map[string]string{}
	if id == "" {
		fields["account_id"] = "must not be empty"
	}
	if credential == "" {
		fields["credential"] = "must not be empty"
	}
	if len(fields) > 0 {
		return ErrBadRequest{Fields: fields}
	}
	return v.next.UpdateCredential(ctx, id, credential)
}

func (v *validationMiddleware) Statement(ctx context.Context, w io.Writer, id string) error {
	if id == "" {
		return ErrBadRequest{Fields: map[string]string{"account_id": "must not be empty"}}
	}
	return v.next.Statement(ctx, w, id)
}

//
// Rate limiting middlewares
//

// limitMiddleware limits the number of in-flight requests to the service by
// using a weighted semaphore, i.e., x/sync/semaphore.Weighted with an
// acquisition timeout. Limits are static; a request that cannot acquire a
// token before the timeout is shed with ErrUnavailable.
type limitMiddleware struct {
	next    Service
	limits  *ServiceLimits
	timeout time.Duration
}

var (
	_ Service = (*limitMiddleware)(nil)
)

type ServiceLimits struct {
	AuthenticateOrCreate *semaphore.Weighted
	Transfer             *semaphore.Weighted
	Account              *semaphore.Weighted
	Ledger               *semaphore.Weighted
	UpdateCredential     *semaphore.Weighted
	Statement            *semaphore.Weighted
}

const defaultAcquireTimeout = 3 * time.Second

func NewLimitMiddleware(limits *ServiceLimits) Middleware {
	return func(next Service) Service {
		return &limitMiddleware{
			next:    next,
			limits:  limits,
			timeout: defaultAcquireTimeout,
		}
	}
}

func (l *limitMiddleware) acquire(ctx context.Context, sem *semaphore.Weighted) (func(), error) {
	if sem == nil {
		return func() {}, nil
	}
	actx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := sem.Acquire(actx, 1); err != nil {
		return nil, ErrUnavailable
	}
	return func() { sem.Release(1) }, nil
}

func (l *limitMiddleware) AuthenticateOrCreate(ctx context.Context, req AuthReq) (*Account, error) {
	release, err := l.acquire(ctx, l.limits.AuthenticateOrCreate)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.AuthenticateOrCreate(ctx, req)
}

func (l *limitMiddleware) Transfer(ctx context.Context, req TransferReq) (*decimal.Decimal, error) {
	release, err := l.acquire(ctx, l.limits.Transfer)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Transfer(ctx, req)
}

func (l *limitMiddleware) Account(ctx context.Context, id string) (*Account, error) {
	release, err := l.acquire(ctx, l.limits.Account)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Account(ctx, id)
}

func (l *limitMiddleware) Ledger(ctx context.Context, id string) ([]LedgerEntry, error) {
	release, err := l.acquire(ctx, l.limits.Ledger)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Ledger(ctx, id)
}

func (l *limitMiddleware) UpdateCredential(ctx context.Context, id, credential string) error {
	release, err := l.acquire(ctx, l.limits.UpdateCredential)
	if err != nil {
		return err
	}
	defer release()
	return l.next.UpdateCredential(ctx, id, credential)
}

func (l *limitMiddleware) Statement(ctx context.Context, w io.Writer, id string) error {
	release, err := l.acquire(ctx, l.limits.Statement)
	if err != nil {
		return err
	}
	defer release()
	return l.next.Statement(ctx, w, id)
}

type ServiceBreaker struct {
	AuthenticateOrCreate *gobreaker.TwoStepCircuitBreaker[*Account]
	Transfer             *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Account              *gobreaker.TwoStepCircuitBreaker[*Account]
	Ledger               *gobreaker.TwoStepCircuitBreaker[[]LedgerEntry]
	UpdateCredential     *gobreaker.TwoStepCircuitBreaker[interface{}]
	Statement            *gobreaker.TwoStepCircuitBreaker[interface{}]
}

// circuitBreakMiddleware implements the circuit breaker pattern over the
// service. Domain failures (unknown account, insufficient balance, bad
// input) are admissions working as intended and count as successes; only
// infrastructural errors trip a breaker.
type circuitBreakMiddleware struct {
	next  Service
	brkrs *ServiceBreaker
}

var (
	_ Service = (*circuitBreakMiddleware)(nil)
)

func NewCircuitBreakMiddleware(brkrs *ServiceBreaker) Middleware {
	return func(next Service) Service {
		return &circuitBreakMiddleware{
			next:  next,
			brkrs: brkrs,
		}
	}
}

func isDomainErr(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrUnknownSender),
		errors.Is(err, ErrUnknownRecipient),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrWrongCredential):
		return true
	}
	var (
		nf ErrNotFound
		br ErrBadRequest
		ae ErrAlreadyExists
	)
	return errors.As(err, &nf) || errors.As(err, &br) || errors.As(err, &ae)
}

func (c *circuitBreakMiddleware) AuthenticateOrCreate(ctx context.Context, req AuthReq) (*Account, error) {
	if c.brkrs.AuthenticateOrCreate == nil {
		return c.next.AuthenticateOrCreate(ctx, req)
	}
	done, err := c.brkrs.AuthenticateOrCreate.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	acct, err := c.next.AuthenticateOrCreate(ctx, req)
	done(isDomainErr(err))
	return acct, err
}

func (c *circuitBreakMiddleware) Transfer(ctx context.Context, req TransferReq) (*decimal.Decimal, error) {
	if c.brkrs.Transfer == nil {
		return c.next.Transfer(ctx, req)
	}
	done, err := c.brkrs.Transfer.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	bal, err := c.next.Transfer(ctx, req)
	done(isDomainErr(err))
	return bal, err
}

func (c *circuitBreakMiddleware) Account(ctx context.Context, id string) (*Account, error) {
	if c.brkrs.Account == nil {
		return c.next.Account(ctx, id)
	}
	done, err := c.brkrs.Account.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	acct, err := c.next.Account(ctx, id)
	done(isDomainErr(err))
	return acct, err
}

func (c *circuitBreakMiddleware) Ledger(ctx context.Context, id string) ([]LedgerEntry, error) {
	if c.brkrs.Ledger == nil {
		return c.next.Ledger(ctx, id)
	}
	done, err := c.brkrs.Ledger.Allow()
	if err != nil {
		return nil, ErrUnavailable
	}
	entries, err := c.next.Ledger(ctx, id)
	done(isDomainErr(err))
	return entries, err
}

func (c *circuitBreakMiddleware) UpdateCredential(ctx context.Context, id, credential string) error {
	if c.brkrs.UpdateCredential == nil {
		return c.next.UpdateCredential(ctx, id, credential)
	}
	done, err := c.brkrs.UpdateCredential.Allow()
	if err != nil {
		return ErrUnavailable
	}
	err = c.next.UpdateCredential(ctx, id, credential)
	done(isDomainErr(err))
	return err
}

func (c *circuitBreakMiddleware) Statement(ctx context.Context, w io.Writer, id string) error {
	if c.brkrs.Statement == nil {
		return c.next.Statement(ctx, w, id)
	}
	done, err := c.brkrs.Statement.Allow()
	if err != nil {
		return ErrUnavailable
	}
	err = c.next.Statement(ctx, w, id)
	done(isDomainErr(err))
	return err
}
