package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/picis-sec/picis/roster"
)

// ListAnalyses handles GET /analyses with an optional ?grupo= filter.
func (a *API) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.tracker.List(r.URL.Query().Get("grupo")))
}

// GetAnalysis handles GET /analyses/{id}.
func (a *API) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	an, err := a.tracker.Get(chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, an)
}

// CreateAnalysis handles POST /analyses.
func (a *API) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var body CreateAnalysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	url := strings.TrimSpace(body.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	sess, _ := sessionFromContext(r.Context())
	groupID := a.groupFor(sess.PrincipalID)

	an := a.tracker.Create(url, groupID)
	a.audit.logEvent(AuditAnalysisCreated, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, an)
}

func (a *API) groupFor(principalID string) string {
	p, err := a.roster.ByID(principalID)
	if err != nil {
		return ""
	}
	return p.GroupID
}

// GetAnalysisReport handles GET /analyses/{id}/report.
func (a *API) GetAnalysisReport(w http.ResponseWriter, r *http.Request) {
	rep, err := a.tracker.Report(chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ListComments handles GET /analyses/{id}/comments.
func (a *API) ListComments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.tracker.Comments(chi.URLParam(r, "id")))
}

// AddComment handles POST /analyses/{id}/comments.
func (a *API) AddComment(w http.ResponseWriter, r *http.Request) {
	var body CommentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Contenido) == "" {
		writeError(w, http.StatusBadRequest, "contenido is required")
		return
	}

	sess, _ := sessionFromContext(r.Context())
	c, err := a.tracker.AddComment(chi.URLParam(r, "id"), sess.PrincipalID, sess.Name, body.Contenido)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// EditComment handles PUT /analyses/{id}/comments/{commentID}.
func (a *API) EditComment(w http.ResponseWriter, r *http.Request) {
	var body CommentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, _ := sessionFromContext(r.Context())
	c, err := a.tracker.EditComment(chi.URLParam(r, "commentID"), sess.PrincipalID, isSupervisorRole(sess.Role), body.Contenido)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteComment handles DELETE /analyses/{id}/comments/{commentID}.
func (a *API) DeleteComment(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	err := a.tracker.DeleteComment(chi.URLParam(r, "commentID"), sess.PrincipalID, isSupervisorRole(sess.Role))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "comentario eliminado"})
}

// isSupervisorRole reports whether the role gets the unrestricted
// own-comment edit window.
func isSupervisorRole(role roster.Role) bool {
	if role == roster.RoleSupervisor {
		return true
	}
	_, ok := role.Supervises()
	return ok
}
