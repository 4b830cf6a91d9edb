package api

import (
	"context"
	"time"

	"github.com/picis-sec/picis/roster"
)

// SessionStore abstracts server-side session CRUD so sessions can live
// in-memory (default) or in Redis when several instances share state.
type SessionStore interface {
	// Get retrieves a session by token. Returns false if the session does
	// not exist, has expired, or has exceeded the idle timeout.
	Get(ctx context.Context, token string) (AuthSession, bool)
	// Put creates or updates a session for the given token.
	Put(ctx context.Context, token string, session AuthSession)
	// Delete removes a session by token.
	Delete(ctx context.Context, token string)
}

// AuthSession holds the server-side state for an authenticated principal.
// Reauthenticated and ReauthenticatedAt track the most recent re-auth
// handshake; consumers read them through the reauthentication-status
// endpoint and reset them one-shot.
type AuthSession struct {
	PrincipalID       string      `json:"principal_id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	Role              roster.Role `json:"role"`
	ExpiresAt         time.Time   `json:"expires_at"`
	LastAccessedAt    time.Time   `json:"last_accessed_at"`
	Reauthenticated   bool        `json:"reauthenticated,omitempty"`
	ReauthenticatedAt time.Time   `json:"reauthenticated_at,omitzero"`
}
