package ledgerxgo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LocalHelper provisions a local database for development and tests:
// schema creation, teardown, and demo account seeding.
type LocalHelper struct {
	Conn  *pgx.Conn
	Seeds map[string]decimal.Decimal
}

func NewLocalHelper(cfg *Config) (*LocalHelper, error) {
	conn, err := pgx.Connect(context.Background(), cfg.Database.ConnectionString)
	if err != nil {
		return nil, err
	}

	seeds := make(map[string]decimal.Decimal, len(cfg.Database.SeedAccounts))
	for id, bal := range cfg.Database.SeedAccounts {
		d, err := decimal.NewFromString(bal)
		if err != nil {
			return nil, fmt.Errorf("seed account %q: %w", id, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("seed account %q: negative balance", id)
		}
		seeds[id] = d
	}
	return &LocalHelper{
		Conn:  conn,
		Seeds: seeds,
	}, nil
}

func (lh *LocalHelper) InitDB() (func(), error) {
	initSQLpath := filepath.Join("testdata", "init_db.sql")
	bits, err := os.ReadFile(initSQLpath)
	if err != nil {
		return nil, err
	}
	if _, err = lh.Conn.Exec(context.Background(), string(bits)); err != nil {
		return nil, err
	}
	return lh.teardownDB(), err
}

func (lh *LocalHelper) SeedAccounts() error {
	seedPath := filepath.Join("testdata", "seed_accounts.tmpl")
	bits, err := os.ReadFile(seedPath)
	if err != nil {
		return err
	}
	tmpl, err := template.New("seed_accounts").Parse(string(bits))
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err = tmpl.Execute(buf, lh.Seeds); err != nil {
		return err
	}

	if _, err = lh.Conn.Exec(context.Background(), buf.String()); err != nil {
		return err
	}

	return err
}

func (lh *LocalHelper) teardownDB() func() {
	return func() {
		defer lh.Conn.Close(context.Background())

		tearSQLpath := filepath.Join("testdata", "teardown_db.sql")
		bits, err := os.ReadFile(tearSQLpath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup read teardown sql: %s", err.Error())
			return
		}
		if _, err = lh.Conn.Exec(context.Background(), string(bits)); err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup exec teardown sql: %s", err.Error())
			return
		}
	}
}
