package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/picis-sec/picis/analysis"
	"github.com/picis-sec/picis/approval"
	"github.com/picis-sec/picis/roster"
	"github.com/picis-sec/picis/session"
	"github.com/picis-sec/picis/storage"
)

// Machine-readable error codes carried next to the message so clients can
// branch without parsing text.
const (
	codeReadOnly             = "read_only_mode"
	codeActionSessionExpired = "action_session_expired"
	codeSessionExpired       = "session_expired"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeCodedError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, approval.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, approval.ErrTerminalStatus):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, approval.ErrNoApprovers):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, approval.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrReadOnly):
		writeCodedError(w, http.StatusForbidden, codeReadOnly, err.Error())
	case errors.Is(err, session.ErrActionSessionExpired):
		writeCodedError(w, http.StatusForbidden, codeActionSessionExpired, err.Error())
	case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrNotStarted):
		writeCodedError(w, http.StatusUnauthorized, codeSessionExpired, err.Error())
	case errors.Is(err, analysis.ErrReportNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, analysis.ErrCommentLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, approval.ErrNotFound),
		errors.Is(err, roster.ErrNotFound),
		errors.Is(err, analysis.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
