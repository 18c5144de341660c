package ledgerxgo_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/paydesk/ledgerxgo"
	"github.com/paydesk/ledgerxgo/mocks"
)

func TestHTTPLogin(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("login returns the account on success", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			AuthenticateOrCreate(gomock.Any(), gomock.AssignableToTypeOf(ledgerxgo.AuthReq{})).
			DoAndReturn(func(_ interface{}, r ledgerxgo.AuthReq) (*ledgerxgo.Account, error) {
				return &ledgerxgo.Account{ID: r.AccountID, Balance: decimal.NewFromInt(10000)}, nil
			}).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"account_id":"alice","credential":"s3cret"}`)
		req := httptest.NewRequest(http.MethodPost, "/login", body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		as.Nil(err)
		as.Equal("alice", resp["id"])
		as.Equal("10000", resp["balance"])
		as.NotContains(resp, "credential")
	})

	t.Run("login returns 401 on a wrong credential", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			AuthenticateOrCreate(gomock.Any(), gomock.Any()).
			Return(nil, ledgerxgo.ErrWrongCredential).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"account_id":"alice","credential":"nope"}`)
		req := httptest.NewRequest(http.MethodPost, "/login", body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusUnauthorized, w.Code)
	})

	t.Run("login returns error on malformed request body", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)

		body := bytes.NewBufferString(`{"account_id":"alice"`)
		req := httptest.NewRequest(http.MethodPost, "/login", body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusBadRequest, w.Code)
		resp := map[string]map[string]string{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		reqrd.Nil(err)
		as.Contains(resp, "fields")
		as.Contains(resp["fields"], "request body")
	})
}

func TestHTTPTransfer(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("transfer returns the remaining balance on success", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		bal := decimal.NewFromInt(8000)
		svc.EXPECT().
			Transfer(gomock.Any(), gomock.AssignableToTypeOf(ledgerxgo.TransferReq{})).
			DoAndReturn(func(_ interface{}, r ledgerxgo.TransferReq) (*decimal.Decimal, error) {
				as.Equal("alice", r.Sender)
				as.Equal("bob", r.Recipient)
				as.True(r.Amount.Equal(decimal.NewFromInt(2000)))
				return &bal, nil
			}).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"recipient":"bob","amount":2000}`)
		req := httptest.NewRequest(http.MethodPost, "/accounts/alice/transfers", body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		as.Nil(err)
		as.Equal("8000", resp["balance"])
	})

	t.Run("transfer returns error on malformed request body", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)

		body := bytes.NewBufferString(`{"recipient":"bob","amount":2000`)
		req := httptest.NewRequest(http.MethodPost, "/accounts/alice/transfers", body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusBadRequest, w.Code)
		resp := map[string]map[string]string{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		reqrd.Nil(err)
		as.Contains(resp, "fields")
		as.Contains(resp["fields"], "request body")
	})

	t.Run("transfer maps domain errors to status codes", func(tt *testing.T) {
		for _, tc := range []struct {
			err  error
			code int
		}{
			{ledgerxgo.ErrInsufficientBalance, http.StatusUnprocessableEntity},
			{ledgerxgo.ErrUnknownSender, http.StatusNotFound},
			{ledgerxgo.ErrUnknownRecipient, http.StatusNotFound},
			{ledgerxgo.ErrInvalidAmount, http.StatusBadRequest},
			{ledgerxgo.ErrSameAccount, http.StatusBadRequest},
			{ledgerxgo.ErrUnavailable, http.StatusServiceUnavailable},
			{ledgerxgo.CommitError{Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError},
		} {
			as := assert.New(tt)
			ctrl := gomock.NewController(tt)
			svc := mocks.NewMockService(ctrl)
			svc.EXPECT().
				Transfer(gomock.Any(), gomock.Any()).
				Return(nil, tc.err).
				Times(1)

			hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
			body := bytes.NewBufferString(`{"recipient":"bob","amount":2000}`)
			req := httptest.NewRequest(http.MethodPost, "/accounts/alice/transfers", body)
			w := httptest.NewRecorder()
			hndlr.ServeHTTP(w, req)

			as.Equal(tc.code, w.Code, "unexpected status for %v", tc.err)
		}
	})
}

func TestHTTPBalance(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("balance returns the current amount", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Account(gomock.Any(), "alice").
			Return(&ledgerxgo.Account{ID: "alice", Balance: decimal.NewFromFloat(123.45)}, nil).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/alice/balance", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		as.Nil(err)
		as.Equal("123.45", resp["balance"])
	})

	t.Run("balance returns 404 for a missing account", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Account(gomock.Any(), "ghost").
			Return(nil, ledgerxgo.ErrNotFound{ID: "ghost"}).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/ghost/balance", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusNotFound, w.Code)
	})
}

func TestHTTPLedger(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("ledger returns entries newest first", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		now := time.Now().UTC()
		svc.EXPECT().
			Ledger(gomock.Any(), "alice").
			Return([]ledgerxgo.LedgerEntry{
				{Seq: 2, Sender: "alice", Recipient: "bob", Amount: decimal.NewFromInt(500), Timestamp: now},
				{Seq: 1, Sender: "carol", Recipient: "alice", Amount: decimal.NewFromInt(300), Timestamp: now.Add(-time.Minute)},
			}, nil).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/alice/ledger", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		var resp []map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		reqrd.Nil(err)
		reqrd.Len(resp, 2)
		as.Equal("bob", resp[0]["recipient"])
		as.Equal("carol", resp[1]["sender"])
	})

	t.Run("ledger renders an empty history as a JSON array", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Ledger(gomock.Any(), "alice").
			Return(nil, nil).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/alice/ledger", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		as.Equal("[]\n", w.Body.String())
	})
}

func TestHTTPStatement(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("statement streams a PDF", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Statement(gomock.Any(), gomock.Any(), "alice").
			DoAndReturn(func(_ interface{}, w io.Writer, _ string) error {
				_, err := w.Write([]byte("%PDF-1.3 stub"))
				return err
			}).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/alice/statement", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		as.Equal("application/pdf", w.Header().Get("Content-Type"))
		as.True(bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("statement returns 404 for a missing account", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Statement(gomock.Any(), gomock.Any(), "ghost").
			Return(ledgerxgo.ErrNotFound{ID: "ghost"}).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/ghost/statement", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusNotFound, w.Code)
	})
}

func TestHTTPUpdateCredential(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("update credential returns OK on success", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			UpdateCredential(gomock.Any(), "alice", "rotated").
			Return(nil).
			Times(1)

		hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"credential":"rotated"}`)
		req := httptest.NewRequest(http.MethodPut, "/accounts/alice/credential", body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		as.Nil(err)
		as.Equal("OK", resp["status"])
	})
}

func TestHTTPUnknownRoute(t *testing.T) {
	as := assert.New(t)
	reqrd := require.New(t)
	nooplog := zerolog.Nop()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	hndlr := ledgerxgo.NewHTTPHandler(svc, &nooplog)

	req := httptest.NewRequest(http.MethodGet, "/accounts/alice/nope", nil)
	w := httptest.NewRecorder()
	hndlr.ServeHTTP(w, req)

	as.Equal(http.StatusNotFound, w.Code)
	resp := map[string]string{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	reqrd.Nil(err)
	as.Contains(resp, "path")
}
