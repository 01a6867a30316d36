package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-notify-nosql/internal/application/devicetoken"
	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/pkg/validate"
	"github.com/go-notify-nosql/internal/transport/http/middleware"
)

// TokenHandler handles device-token endpoints. All routes carry the user id
// in the path; a mismatch with the authenticated user is Forbidden, so one
// user can never manage another's tokens.
type TokenHandler struct {
	svc devicetoken.Service
}

func NewTokenHandler(svc devicetoken.Service) *TokenHandler {
	return &TokenHandler{svc: svc}
}

// authorize extracts claims and checks the path user matches them.
func (h *TokenHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	if chi.URLParam(r, "userID") != claims.UserID {
		writeError(w, http.StatusForbidden, "user mismatch")
		return "", false
	}
	return claims.UserID, true
}

func (h *TokenHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req domain.RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	row, err := h.svc.Register(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TokenEnvelope{OK: true, ID: row.TokenID})
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	tokens, err := h.svc.List(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *TokenHandler) DeleteByToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req domain.DeleteTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := h.svc.DeleteByToken(r.Context(), userID, req.Token)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteCountEnvelope{OK: true, DeletedCount: count})
}

func (h *TokenHandler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteByID(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{OK: true})
}
