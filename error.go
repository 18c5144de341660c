package ledgerxgo

import (
	"errors"
	"fmt"
)

var (
	ErrInternalServer = errors.New("internal server error")

	// transfer failure modes; each means no mutation is visible
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrSameAccount         = errors.New("sender and recipient are the same account")
	ErrUnknownSender       = errors.New("sender account does not exist")
	ErrUnknownRecipient    = errors.New("recipient account does not exist")
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrWrongCredential = errors.New("credential does not match")
	ErrUnavailable     = errors.New("service unavailable")
)

type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

type ErrNotFound struct {
	ID string `json:"id"`
}

func (e ErrNotFound) Error() string {
	return "record not found"
}

type ErrAlreadyExists struct {
	ID string `json:"id"`
}

func (e ErrAlreadyExists) Error() string {
	return "record already exists"
}

// CommitError marks an infrastructural failure during a unit of work. All
// effects of the unit have been rolled back by the time it surfaces.
type CommitError struct {
	Err error
}

func (e CommitError) Error() string {
	return fmt.Sprintf("unit of work aborted: %v", e.Err)
}

func (e CommitError) Unwrap() error {
	return e.Err
}
