package ledgerxgo

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type balanceJSONResp struct {
	Balance decimal.Decimal `json:"balance"`
}

func NewHTTPHandler(svc Service, log *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc: svc,
		Log: log,
	}
	mux := chi.NewMux()
	mux.NotFound(HTTPNotFound)
	mux.Post("/login", hndlr.Login)
	mux.Route("/accounts", func(r chi.Router) {
		r.Route("/{acctID}", func(rr chi.Router) {
			rr.Post("/transfers", hndlr.Transfer)
			rr.Get("/balance", hndlr.Balance)
			rr.Get("/ledger", hndlr.Ledger)
			rr.Get("/statement", hndlr.Statement)
			rr.Put("/credential", hndlr.UpdateCredential)
		})
	})

	return mux
}

type httpHandler struct {
	Svc Service
	Log *zerolog.Logger
}

func (h *httpHandler) Login(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", "login").Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return
	}
	var req AuthReq
	if err = json.Unmarshal(buf, &req); err != nil {
		h.Log.Err(err).Str("method", "login").Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return
	}
	acct, err := h.Svc.AuthenticateOrCreate(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(acct); err != nil {
		WriteHTTPError(w, err)
	}
}

type transferJSONReq struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *httpHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", "transfer").Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return
	}
	var body transferJSONReq
	if err = json.Unmarshal(buf, &body); err != nil {
		h.Log.Err(err).Str("method", "transfer").Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return
	}
	req := TransferReq{
		Sender:    chi.URLParam(r, "acctID"),
		Recipient: body.Recipient,
		Amount:    body.Amount,
	}
	bal, err := h.Svc.Transfer(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	resp := balanceJSONResp{Balance: *bal}
	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		WriteHTTPError(w, err)
	}
}

func (h *httpHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Svc.Account(r.Context(), chi.URLParam(r, "acctID"))
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	resp := balanceJSONResp{Balance: acct.Balance}
	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		WriteHTTPError(w, err)
	}
}

func (h *httpHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Svc.Ledger(r.Context(), chi.URLParam(r, "acctID"))
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	if entries == nil {
		entries = []LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(entries); err != nil {
		WriteHTTPError(w, err)
	}
}

func (h *httpHandler) Statement(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	if err := h.Svc.Statement(r.Context(), w, chi.URLParam(r, "acctID")); err != nil {
		w.Header().Del("Content-Type")
		WriteHTTPError(w, err)
	}
}

type credentialJSONReq struct {
	Credential string `json:"credential"`
}

func (h *httpHandler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", "update_credential").Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return
	}
	var body credentialJSONReq
	if err = json.Unmarshal(buf, &body); err != nil {
		h.Log.Err(err).Str("method", "update_credential").Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return
	}
	if err = h.Svc.UpdateCredential(r.Context(), chi.URLParam(r, "acctID"), body.Credential); err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"OK"}`))
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var ne error
	defer func() {
		if ne != nil {
			log.Error().
				Err(ne).
				Msg("error response encoding failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	writeMsg := func(code int) {
		w.WriteHeader(code)
		ne = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
	}

	errnf := &ErrNotFound{}
	errbr := &ErrBadRequest{}
	errae := &ErrAlreadyExists{}
	switch {
	case errors.As(err, errnf):
		w.WriteHeader(http.StatusNotFound)
		ne = json.NewEncoder(w).Encode(errnf)
	case errors.As(err, errbr):
		w.WriteHeader(http.StatusBadRequest)
		ne = json.NewEncoder(w).Encode(errbr)
	case errors.As(err, errae):
		w.WriteHeader(http.StatusConflict)
		ne = json.NewEncoder(w).Encode(errae)
	case errors.Is(err, ErrUnknownSender), errors.Is(err, ErrUnknownRecipient):
		writeMsg(http.StatusNotFound)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSameAccount):
		writeMsg(http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientBalance):
		writeMsg(http.StatusUnprocessableEntity)
	case errors.Is(err, ErrWrongCredential):
		writeMsg(http.StatusUnauthorized)
	case errors.Is(err, ErrUnavailable):
		writeMsg(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
		resp := map[string]string{
			"message": "server error",
		}
		ne = json.NewEncoder(w).Encode(resp)
	}
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]string{
		"path": r.URL.Path,
	}
	json.NewEncoder(w).Encode(resp)
}
