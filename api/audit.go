package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess     AuditEvent = "login_success"
	AuditLoginFailure     AuditEvent = "login_failure"
	AuditLogout           AuditEvent = "logout"
	AuditReauthStarted    AuditEvent = "reauth_started"
	AuditReauthSuccess    AuditEvent = "reauth_success"
	AuditReauthFailure    AuditEvent = "reauth_failure"
	AuditReauthReset      AuditEvent = "reauth_reset"
	AuditRequestSubmitted AuditEvent = "request_submitted"
	AuditRequestApproved  AuditEvent = "request_approved"
	AuditRequestRejected  AuditEvent = "request_rejected"
	AuditRequestApplied   AuditEvent = "request_applied"
	AuditRequestUpdated   AuditEvent = "request_updated"
	AuditRequestDeleted   AuditEvent = "request_deleted"
	AuditEntityCreated    AuditEvent = "entity_created"
	AuditEntityUpdated    AuditEvent = "entity_updated"
	AuditEntityDeleted    AuditEvent = "entity_deleted"
	AuditAnalysisCreated  AuditEvent = "analysis_created"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logEvent is a convenience for events with a principal ID.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, principalID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("principal_id", principalID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed authentication attempt.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
