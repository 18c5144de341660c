package ledgerxgo

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type TransferReq struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

type AuthReq struct {
	AccountID  string `json:"account_id"`
	Credential string `json:"credential"`
}

type Service interface {
	// AuthenticateOrCreate resolves an account by id, creating it with
	// the seed balance on first login. A mismatched credential on an
	// existing account returns ErrWrongCredential.
	AuthenticateOrCreate(ctx context.Context, req AuthReq) (*Account, error)

	// Transfer atomically moves req.Amount from sender to recipient and
	// records the movement in the ledger, returning the sender's new
	// balance. Either all three effects are durably visible or none are.
	Transfer(ctx context.Context, req TransferReq) (*decimal.Decimal, error)

	Account(ctx context.Context, id string) (*Account, error)
	Ledger(ctx context.Context, id string) ([]LedgerEntry, error)
	UpdateCredential(ctx context.Context, id, credential string) error

	// Statement renders the account's ledger as a PDF to w.
	Statement(ctx context.Context, w io.Writer, id string) error
}

// DefaultSeedBalance is credited to an account on first login.
var DefaultSeedBalance = decimal.NewFromInt(10000)

func NewService(repo Repository, pub Publisher, log *zerolog.Logger) *serviceImpl {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &serviceImpl{
		repo: repo,
		pub:  pub,
		seed: DefaultSeedBalance,
		log:  log,
	}
}

type serviceImpl struct {
	repo Repository
	pub  Publisher
	seed decimal.Decimal
	log  *zerolog.Logger
}

var (
	_ Service = (*serviceImpl)(nil)
)

// SetSeedBalance overrides the balance credited on first login.
func (s *serviceImpl) SetSeedBalance(seed decimal.Decimal) {
	s.seed = seed
}

func (s *serviceImpl) AuthenticateOrCreate(ctx context.Context, req AuthReq) (*Account, error) {
	acct, err := s.repo.GetAccount(ctx, req.AccountID)
	var nf ErrNotFound
	if errors.As(err, &nf) {
		acct = &Account{
			ID:         req.AccountID,
			Credential: req.Credential,
			Balance:    s.seed,
		}
		err = s.repo.CreateAccount(ctx, *acct)
		var ae ErrAlreadyExists
		if errors.As(err, &ae) {
			// lost the create race; fall through to the stored record
			acct, err = s.repo.GetAccount(ctx, req.AccountID)
		} else if err == nil {
			s.log.Info().Str("account", acct.ID).Msg("account created on first login")
			return acct, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(acct.Credential), []byte(req.Credential)) != 1 {
		return nil, ErrWrongCredential
	}
	return acct, nil
}

func (s *serviceImpl) Transfer(ctx context.Context, req TransferReq) (*decimal.Decimal, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Sender == req.Recipient {
		return nil, ErrSameAccount
	}

	var (
		newBal decimal.Decimal
		entry  LedgerEntry
	)
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		bal, err := tx.DebitIfSufficient(ctx, req.Sender, req.Amount)
		var nf ErrNotFound
		if errors.As(err, &nf) {
			return ErrUnknownSender
		}
		if err != nil {
			return err
		}
		if err = tx.Credit(ctx, req.Recipient, req.Amount); err != nil {
			if errors.As(err, &nf) {
				return ErrUnknownRecipient
			}
			return err
		}
		entry, err = tx.AppendEntry(ctx, LedgerEntry{
			Sender:    req.Sender,
			Recipient: req.Recipient,
			Amount:    req.Amount,
		})
		if err != nil {
			return err
		}
		newBal = bal
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownSender),
			errors.Is(err, ErrUnknownRecipient),
			errors.Is(err, ErrInsufficientBalance):
			return nil, err
		}
		s.log.Err(err).
			Str("sender", req.Sender).
			Str("recipient", req.Recipient).
			Msg("transfer rolled back")
		return nil, CommitError{Err: err}
	}

	if perr := s.pub.Publish(ctx, NewTransferCompleted(entry)); perr != nil {
		// best effort only; the transfer has already committed
		s.log.Warn().Err(perr).Int64("seq", entry.Seq).Msg("transfer event not published")
	}
	return &newBal, nil
}

func (s *serviceImpl) Account(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *serviceImpl) Ledger(ctx context.Context, id string) ([]LedgerEntry, error) {
	return s.repo.LedgerFor(ctx, id)
}

func (s *serviceImpl) UpdateCredential(ctx context.Context, id, credential string) error {
	if credential == "" {
		return ErrBadRequest{Fields: map[string]string{"credential": "must not be empty"}}
	}
	return s.repo.UpdateCredential(ctx, id, credential)
}

func (s *serviceImpl) Statement(ctx context.Context, w io.Writer, id string) error {
	acct, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	entries, err := s.repo.LedgerFor(ctx, id)
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Account statement - %s", acct.ID))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Balance: %s", acct.Balance.StringFixed(2)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(50, 8, "Timestamp", "1", 0, "", false, 0, "")
	pdf.CellFormat(45, 8, "Sender", "1", 0, "", false, 0, "")
	pdf.CellFormat(45, 8, "Recipient", "1", 0, "", false, 0, "")
	pdf.CellFormat(40, 8, "Amount", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, e := range entries {
		pdf.CellFormat(50, 8, e.Timestamp.Format(time.DateTime), "1", 0, "", false, 0, "")
		pdf.CellFormat(45, 8, e.Sender, "1", 0, "", false, 0, "")
		pdf.CellFormat(45, 8, e.Recipient, "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 8, e.Amount.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	return pdf.Output(w)
}
