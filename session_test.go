package ledgerxgo_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/ledgerxgo"
)

func newSessionFixture(t *testing.T) (ledgerxgo.Service, *ledgerxgo.MemEndpoint) {
	t.Helper()
	nooplog := zerolog.Nop()
	mem, err := ledgerxgo.NewMemEndpoint()
	require.New(t).Nil(err)
	return ledgerxgo.NewService(mem, nil, &nooplog), mem
}

func TestSessionLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("first login creates the account with the seed balance", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc, mem := newSessionFixture(tt)

		sess, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
		reqrd.Nil(err)
		as.Equal("alice", sess.AccountID())
		as.True(sess.Balance().Equal(ledgerxgo.DefaultSeedBalance))

		acct, err := mem.GetAccount(ctx, "alice")
		reqrd.Nil(err)
		as.True(acct.Balance.Equal(ledgerxgo.DefaultSeedBalance))
	})

	t.Run("a wrong credential yields no session", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc, _ := newSessionFixture(tt)

		_, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
		reqrd.Nil(err)
		sess, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "wrong"})
		as.Nil(sess)
		as.ErrorIs(err, ledgerxgo.ErrWrongCredential)
	})
}

func TestSessionTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("transfer refreshes the mirror from the store", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc, mem := newSessionFixture(tt)
		seedAccount(tt, mem, "bob", 0)

		sess, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
		reqrd.Nil(err)

		bal, err := sess.Transfer(ctx, "bob", decimal.NewFromInt(2000))
		reqrd.Nil(err)
		as.True(bal.Equal(decimal.NewFromInt(8000)))
		as.True(sess.Balance().Equal(decimal.NewFromInt(8000)))
	})

	t.Run("a failed transfer leaves the mirror untouched", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc, mem := newSessionFixture(tt)
		seedAccount(tt, mem, "bob", 0)

		sess, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
		reqrd.Nil(err)

		_, err = sess.Transfer(ctx, "bob", decimal.NewFromInt(999999))
		as.ErrorIs(err, ledgerxgo.ErrInsufficientBalance)
		as.True(sess.Balance().Equal(ledgerxgo.DefaultSeedBalance))
	})

	t.Run("refresh picks up transfers made through another session", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc, _ := newSessionFixture(tt)

		sessA, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
		reqrd.Nil(err)
		other, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
		reqrd.Nil(err)
		_, err = ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "bob", Credential: "pw"})
		reqrd.Nil(err)

		_, err = other.Transfer(ctx, "bob", decimal.NewFromInt(3000))
		reqrd.Nil(err)

		// the first mirror is stale until refreshed
		as.True(sessA.Balance().Equal(ledgerxgo.DefaultSeedBalance))
		reqrd.Nil(sessA.Refresh(ctx))
		as.True(sessA.Balance().Equal(ledgerxgo.DefaultSeedBalance.Sub(decimal.NewFromInt(3000))))
	})
}

func TestSessionCredential(t *testing.T) {
	as := assert.New(t)
	reqrd := require.New(t)
	ctx := context.Background()
	svc, mem := newSessionFixture(t)

	sess, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
	reqrd.Nil(err)
	reqrd.Nil(sess.UpdateCredential(ctx, "rotated"))

	acct, err := mem.GetAccount(ctx, "alice")
	reqrd.Nil(err)
	as.Equal("rotated", acct.Credential)

	_, err = ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "rotated"})
	as.Nil(err)
}

func TestSessionHoldings(t *testing.T) {
	as := assert.New(t)
	reqrd := require.New(t)
	ctx := context.Background()
	svc, mem := newSessionFixture(t)

	sess, err := ledgerxgo.NewSession(ctx, svc, ledgerxgo.AuthReq{AccountID: "alice", Credential: "pw"})
	reqrd.Nil(err)

	sess.SetHolding("GOOG", 5)
	sess.SetHolding("AAPL", 3)
	as.Equal(int64(5), sess.Holding("GOOG"))

	all := sess.Holdings()
	as.Len(all, 2)
	all["GOOG"] = 100
	as.Equal(int64(5), sess.Holding("GOOG"), "Holdings must return a copy")

	sess.SetHolding("AAPL", 0)
	as.Zero(sess.Holding("AAPL"))
	as.Len(sess.Holdings(), 1)

	// holdings never touch the store
	acct, err := mem.GetAccount(ctx, "alice")
	reqrd.Nil(err)
	as.True(acct.Balance.Equal(ledgerxgo.DefaultSeedBalance))
}
