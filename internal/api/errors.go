package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kelotduongvidainhat/ams/internal/auth"
	"github.com/kelotduongvidainhat/ams/internal/ledger"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// Error is the body of every non-2xx response.
//
// Message carries the human-readable cause; callers match substrings of it
// (for example "already exists"), so its wording is part of the contract.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInvalidOwner = "invalid_owner"
	ErrCodeLedger       = "ledger_commit_failed"
	ErrCodeLedgerDown   = "ledger_unavailable"
	ErrCodeAssetLocked  = "asset_locked"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Error:   http.StatusText(status),
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// errorStatus maps a domain error to its HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, transfer.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, transfer.ErrAlreadyExists), errors.Is(err, ledger.ErrAssetExists):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, transfer.ErrUnauthorized), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, transfer.ErrAssetLocked), errors.Is(err, ledger.ErrAssetLocked):
		return http.StatusConflict, ErrCodeAssetLocked
	case errors.Is(err, transfer.ErrInvalidOwner):
		return http.StatusBadRequest, ErrCodeInvalidOwner
	case errors.Is(err, transfer.ErrInvalidRequest):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, transfer.ErrLedgerCommit):
		return http.StatusBadGateway, ErrCodeLedger
	case errors.Is(err, transfer.ErrLedgerUnavailable):
		return http.StatusBadGateway, ErrCodeLedgerDown
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeDomainError writes err with the status its sentinel maps to.
// Unmapped errors are logged and reported without internal detail.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		message = "internal server error"
	}
	writeError(w, status, code, message)
}
