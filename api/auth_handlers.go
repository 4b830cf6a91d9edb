package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/picis-sec/picis/roster"
)

// GoogleLogin handles GET /auth/google.
// Redirects to the provider's consent screen with a signed state parameter.
func (a *API) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if a.oauth == nil {
		writeError(w, http.StatusNotFound, "oauth not configured")
		return
	}
	state, err := a.oauth.signState(flowLogin, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign state")
		return
	}
	http.Redirect(w, r, a.oauth.login.AuthCodeURL(state), http.StatusFound)
}

// GoogleLoginCallback handles GET /auth/google/callback.
// Exchanges the code, resolves the principal's role by email, opens the
// server-side session and starts the activity tracker.
func (a *API) GoogleLoginCallback(w http.ResponseWriter, r *http.Request) {
	if a.oauth == nil {
		writeError(w, http.StatusNotFound, "oauth not configured")
		return
	}
	if _, err := a.oauth.verifyState(r.URL.Query().Get("state"), flowLogin); err != nil {
		a.audit.logFailure(AuditLoginFailure, r, err.Error())
		http.Redirect(w, r, a.frontendOrigin+"/", http.StatusFound)
		return
	}

	info, err := a.oauth.fetchIdentity(r.Context(), a.oauth.login, r.URL.Query().Get("code"))
	if err != nil {
		a.audit.logFailure(AuditLoginFailure, r, err.Error())
		http.Redirect(w, r, a.frontendOrigin+"/", http.StatusFound)
		return
	}

	principal := a.principalForIdentity(info)

	now := time.Now()
	token := uuid.NewString()
	a.sessions.Put(r.Context(), token, AuthSession{
		PrincipalID:    principal.ID,
		Name:           principal.Name,
		Email:          principal.Email,
		Role:           principal.Role,
		ExpiresAt:      now.Add(a.sessionTTL),
		LastAccessedAt: now,
	})
	writeSessionCookie(w, r, token, now.Add(a.sessionTTL))

	if a.activity != nil {
		a.activity.Start(principal.ID, principal.Role.ClientFacing())
	}

	a.audit.logEvent(AuditLoginSuccess, r, principal.ID,
		slog.String("email", principal.Email),
		slog.String("role", string(principal.Role)),
	)
	http.Redirect(w, r, a.frontendOrigin+"/oauth-success", http.StatusFound)
}

// principalForIdentity resolves a verified identity to a roster principal.
// Unknown emails are admitted as analysts, the default role.
func (a *API) principalForIdentity(info userInfo) roster.Principal {
	if p, err := a.roster.ByEmail(info.Email); err == nil {
		return p
	}
	p := roster.Principal{
		ID:     uuid.NewString(),
		Name:   info.Name,
		Email:  info.Email,
		Role:   roster.RoleAnalyst,
		Active: true,
	}
	a.roster.Put(p)
	return p
}

// GoogleReauthenticate handles GET /auth/google/reauthenticate.
// Starts the re-auth flow for the already logged-in principal. The primary
// session is untouched; only the re-auth markers will change.
func (a *API) GoogleReauthenticate(w http.ResponseWriter, r *http.Request) {
	if a.oauth == nil {
		writeError(w, http.StatusNotFound, "oauth not configured")
		return
	}
	_, sess, ok := a.sessionFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	state, err := a.oauth.signState(flowReauth, sess.PrincipalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign state")
		return
	}
	a.audit.logEvent(AuditReauthStarted, r, sess.PrincipalID)
	http.Redirect(w, r, a.oauth.reauth.AuthCodeURL(state), http.StatusFound)
}

// GoogleReauthenticateCallback handles GET /auth/google/reauthenticate/callback.
// The reconfirmed identity must match the session's original principal;
// on success the session is stamped reauthenticated and the action session
// restarts.
func (a *API) GoogleReauthenticateCallback(w http.ResponseWriter, r *http.Request) {
	if a.oauth == nil {
		writeError(w, http.StatusNotFound, "oauth not configured")
		return
	}
	failed := a.frontendOrigin + "/reauthentication-failed"

	token, sess, ok := a.sessionFromRequest(r)
	if !ok {
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}

	claims, err := a.oauth.verifyState(r.URL.Query().Get("state"), flowReauth)
	if err != nil || claims.Subject != sess.PrincipalID {
		a.audit.logFailure(AuditReauthFailure, r, "state verification failed")
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}

	info, err := a.oauth.fetchIdentity(r.Context(), a.oauth.reauth, r.URL.Query().Get("code"))
	if err != nil {
		a.audit.logFailure(AuditReauthFailure, r, err.Error())
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}
	if info.Email != sess.Email {
		a.audit.logFailure(AuditReauthFailure, r, "identity mismatch",
			slog.String("expected", sess.Email),
		)
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}

	sess.Reauthenticated = true
	sess.ReauthenticatedAt = time.Now()
	a.sessions.Put(r.Context(), token, sess)

	if a.activity != nil {
		a.activity.Reset()
	}

	a.audit.logEvent(AuditReauthSuccess, r, sess.PrincipalID)
	http.Redirect(w, r, a.frontendOrigin+"/reauthentication-success", http.StatusFound)
}

// ReauthenticationStatus handles GET /auth/reauthentication-status.
// A re-authentication counts only while its validity window is open.
func (a *API) ReauthenticationStatus(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := a.sessionFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	authenticated := sess.Reauthenticated &&
		!sess.ReauthenticatedAt.IsZero() &&
		time.Since(sess.ReauthenticatedAt) < reauthWindow

	resp := ReauthStatusResponse{Authenticated: authenticated}
	if authenticated {
		at := sess.ReauthenticatedAt
		resp.ReauthenticatedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetReauthentication handles POST /auth/reset-reauthentication.
// One-shot consumption of the re-auth markers after a client has acted on
// them.
func (a *API) ResetReauthentication(w http.ResponseWriter, r *http.Request) {
	token, sess, ok := a.sessionFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	sess.Reauthenticated = false
	sess.ReauthenticatedAt = time.Time{}
	a.sessions.Put(r.Context(), token, sess)

	a.audit.logEvent(AuditReauthReset, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "reauthentication reset"})
}

// CurrentUser handles GET /api/user.
func (a *API) CurrentUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	_, sess, ok := a.sessionFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		ID:     sess.PrincipalID,
		Nombre: sess.Name,
		Correo: sess.Email,
		Rol:    sess.Role,
	})
}

// Logout handles GET /logout.
// Destroys the server-side session, clears the cookie and stops the
// activity tracker.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	token, sess, ok := a.sessionFromRequest(r)
	if ok {
		a.sessions.Delete(r.Context(), token)
		a.audit.logEvent(AuditLogout, r, sess.PrincipalID)
	}
	clearSessionCookie(w, r)

	if a.activity != nil {
		a.activity.End()
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "session closed"})
}
