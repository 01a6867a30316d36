package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-notify-nosql/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// CreateEnvelope wraps the notification-creation response. Duplicated is
// surfaced as data, not as an error: the caller still gets a 202 and the
// original notification's ids.
type CreateEnvelope struct {
	Notification interface{} `json:"notification"`
	JobID        *string     `json:"job_id"`
	Duplicated   bool        `json:"duplicated"`
	Message      string      `json:"message"`
}

// NotificationListEnvelope wraps list responses with the unread badge count.
type NotificationListEnvelope struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
	Total         int                   `json:"total"`
}

// AuthEnvelope wraps register/login/refresh responses.
type AuthEnvelope struct {
	User         *domain.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
}

// TokenEnvelope wraps device-token registration responses.
type TokenEnvelope struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// DeleteCountEnvelope wraps delete-by-token responses.
type DeleteCountEnvelope struct {
	OK           bool `json:"ok"`
	DeletedCount int  `json:"deleted_count"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinel errors onto HTTP status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
