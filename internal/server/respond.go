package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"secure-file-share/internal/access"
)

type successResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
}

// maxJSONBody bounds request bodies of non-upload endpoints.
const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, successResponse{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: status})
}

// publicMessage strips the package prefix from a taxonomy error.
func publicMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "access: ")
}

// statusFor maps an error to its HTTP status and client-facing message.
// Unauthenticated outcomes share one message regardless of cause.
func statusFor(err error) (int, string) {
	switch {
	case access.IsUnauthenticated(err):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, access.ErrTokenExpired):
		return http.StatusGone, "share link has expired"
	case errors.Is(err, access.ErrTokenNotFound):
		return http.StatusNotFound, "share link not found"
	case errors.Is(err, access.ErrFileNotFound):
		return http.StatusNotFound, "file not found"
	case errors.Is(err, access.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, access.ErrUnknownGrantee), errors.Is(err, access.ErrInvalidInput):
		return http.StatusBadRequest, publicMessage(err)
	case errors.Is(err, access.ErrDuplicateEmail):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, access.ErrInvalidLogin):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, access.ErrStorage):
		return http.StatusBadGateway, "storage unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes the mapped error response; server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, msg)
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid request body", access.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid file id", access.ErrInvalidInput)
	}
	return id, nil
}
