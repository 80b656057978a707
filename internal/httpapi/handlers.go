package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"showreg/internal/domain"
	"showreg/internal/service"
)

type API struct {
	Svc *service.AdminService
}

func (a *API) Register(m *mux.Router) {
	m.HandleFunc("/v1/registrations", a.handleListRegistrations).Methods(http.MethodGet)
	m.HandleFunc("/v1/registrations/{id}", a.handleGetRegistration).Methods(http.MethodGet)
	m.HandleFunc("/v1/registrations/{id}/approve", a.handleTransition(domain.ActionApprove)).Methods(http.MethodPost)
	m.HandleFunc("/v1/registrations/{id}/reject", a.handleTransition(domain.ActionReject)).Methods(http.MethodPost)
	m.HandleFunc("/v1/registrations/{id}/override", a.handleOverride).Methods(http.MethodPost)
	m.HandleFunc("/v1/dispatch", a.handleDispatch).Methods(http.MethodPost)
	m.HandleFunc("/v1/mail/test", a.handleTestSend).Methods(http.MethodPost)
	m.HandleFunc("/v1/mail/pool/stats", a.handlePoolStats).Methods(http.MethodGet)
}

type transitionRequest struct {
	Level int    `json:"level"`
	Note  string `json:"note,omitempty"`
	Actor string `json:"actor"`
}

func (a *API) handleTransition(action domain.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Actor == "" {
			http.Error(w, "missing actor", http.StatusBadRequest)
			return
		}

		var err error
		var reg any
		if action == domain.ActionApprove {
			reg, err = a.Svc.Approve(r.Context(), id, req.Level, req.Note, req.Actor)
		} else {
			reg, err = a.Svc.Reject(r.Context(), id, req.Level, req.Note, req.Actor)
		}
		if err != nil {
			writeErr(w, err, "transition failed", "id", id, "action", string(action))
			return
		}
		writeJSON(w, http.StatusOK, reg)
	}
}

type overrideRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	Actor  string `json:"actor"`
}

func (a *API) handleOverride(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Actor == "" || req.Status == "" {
		http.Error(w, "missing actor or status", http.StatusBadRequest)
		return
	}
	reg, err := a.Svc.Override(r.Context(), id, req.Status, req.Note, req.Actor)
	if err != nil {
		writeErr(w, err, "override failed", "id", id, "status", req.Status)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	reg, err := a.Svc.GetRegistration(r.Context(), id)
	if err != nil {
		writeErr(w, err, "get registration failed", "id", id)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	regs, err := a.Svc.ListRegistrations(r.Context(), q["status"], q["type"])
	if err != nil {
		writeErr(w, err, "list registrations failed")
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

type dispatchRequest struct {
	Actor string `json:"actor"`
	domain.DispatchJob
}

func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := a.Svc.SendBulk(r.Context(), req.DispatchJob, req.Actor)
	if err != nil {
		writeErr(w, err, "dispatch failed", "email_type", string(req.EmailType))
		return
	}
	// partial failure stays a 200: the caller sees "N of M sent"
	writeJSON(w, http.StatusOK, result)
}

type testSendRequest struct {
	Recipient string `json:"recipient"`
	AccountID string `json:"accountId,omitempty"`
}

func (a *API) handleTestSend(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Recipient == "" {
		http.Error(w, "missing recipient", http.StatusBadRequest)
		return
	}

	out := a.Svc.SendSingleTest(r.Context(), req.Recipient, req.AccountID)
	resp := map[string]any{
		"ok":       out.OK,
		"account":  out.AccountID,
		"attempts": out.Attempts,
	}
	if !out.OK {
		resp["reason"] = out.Reason
		if out.Err != nil {
			resp["error"] = out.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePoolStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.PoolStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error, msg string, args ...any) {
	status := statusFor(err)
	if status >= 500 {
		slog.Error(msg, append(args, "err", err)...)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrMissingNote),
		errors.Is(err, domain.ErrEmptyTarget):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPoolExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
