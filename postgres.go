package ledgerxgo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	pgInsertAcctSQL = `
		INSERT INTO accounts (id, credential, balance)
		VALUES ($1, $2, $3);
	`

	pgSelectAcctSQL = `
		SELECT credential, balance
		FROM accounts
		WHERE id = $1;
	`

	pgUpdateCredentialSQL = `
		UPDATE accounts
		SET credential = $1
		WHERE id = $2;
	`

	// the conditional decrement; the WHERE clause makes the balance check
	// and the update one indivisible statement under the row lock
	pgDebitSQL = `
		UPDATE accounts
		SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
		RETURNING balance;
	`

	pgAcctExistsSQL = `
		SELECT 1 FROM accounts WHERE id = $1;
	`

	pgCreditSQL = `
		UPDATE accounts
		SET balance = balance + $1
		WHERE id = $2;
	`

	pgAppendEntrySQL = `
		INSERT INTO ledger (sender, recipient, amount)
		VALUES ($1, $2, $3)
		RETURNING seq, ts;
	`

	pgLedgerForSQL = `
		SELECT seq, sender, recipient, amount, ts
		FROM ledger
		WHERE sender = $1 OR recipient = $1
		ORDER BY ts DESC, seq DESC;
	`
)

// PostgresEndpoint keeps accounts and ledger in one engine so a unit of
// work maps to a single database transaction, as in the original schema.
type PostgresEndpoint struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

var (
	_ Repository = (*PostgresEndpoint)(nil)
)

func NewPostgresEndpoint(connStr string, log *zerolog.Logger) (*PostgresEndpoint, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	endpt := &PostgresEndpoint{
		pool: pool,
		log:  log,
	}
	return endpt, err
}

func (pg *PostgresEndpoint) Close() {
	pg.pool.Close()
}

func (pg *PostgresEndpoint) CreateAccount(ctx context.Context, acct Account) error {
	_, err := pg.pool.Exec(ctx, pgInsertAcctSQL, acct.ID, acct.Credential, acct.Balance)
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return ErrAlreadyExists{ID: acct.ID}
	}
	return err
}

func (pg *PostgresEndpoint) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := pg.pool.QueryRow(ctx, pgSelectAcctSQL, id)
	acct := Account{ID: id}
	if err := row.Scan(&acct.Credential, &acct.Balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound{ID: id}
		}
		return nil, err
	}
	return &acct, nil
}

func (pg *PostgresEndpoint) UpdateCredential(ctx context.Context, id, credential string) error {
	ct, err := pg.pool.Exec(ctx, pgUpdateCredentialSQL, credential, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound{ID: id}
	}
	return nil
}

func (pg *PostgresEndpoint) LedgerFor(ctx context.Context, id string) ([]LedgerEntry, error) {
	rows, err := pg.pool.Query(ctx, pgLedgerForSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err = rows.Scan(&e.Seq, &e.Sender, &e.Recipient, &e.Amount, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (pg *PostgresEndpoint) WithinTx(ctx context.Context, fn func(Tx) error) error {
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}

	if err = fn(&pgTx{tx: tx}); err != nil {
		if rberr := tx.Rollback(ctx); rberr != nil && !errors.Is(rberr, pgx.ErrTxClosed) {
			pg.log.Err(rberr).Msg("transaction rollback fail")
		}
		return err
	}

	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

var (
	_ Tx = (*pgTx)(nil)
)

func (t *pgTx) DebitIfSufficient(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	row := t.tx.QueryRow(ctx, pgDebitSQL, amount, id)
	var bal decimal.Decimal
	err := row.Scan(&bal)
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, err
	}

	// 0 rows updated: either the account is missing or the balance fell
	// short; an in-tx existence check tells the two apart
	var one int
	err = t.tx.QueryRow(ctx, pgAcctExistsSQL, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound{ID: id}
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, ErrInsufficientBalance
}

func (t *pgTx) Credit(ctx context.Context, id string, amount decimal.Decimal) error {
	ct, err := t.tx.Exec(ctx, pgCreditSQL, amount, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound{ID: id}
	}
	return nil
}

func (t *pgTx) AppendEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	row := t.tx.QueryRow(ctx, pgAppendEntrySQL, entry.Sender, entry.Recipient, entry.Amount)
	if err := row.Scan(&entry.Seq, &entry.Timestamp); err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}
