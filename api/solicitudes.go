package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/picis-sec/picis/approval"
	"github.com/picis-sec/picis/storage"
)

// ListSolicitudes handles GET /solicitudes with an optional ?estado= filter.
func (a *API) ListSolicitudes(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.engine.List(r.Context(), approval.Status(r.URL.Query().Get("estado")))
	if err != nil {
		mapError(w, err)
		return
	}
	out := make([]SolicitudResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, solicitudResponse(req))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSolicitud handles GET /solicitudes/{id}.
func (a *API) GetSolicitud(w http.ResponseWriter, r *http.Request) {
	req, err := a.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, solicitudResponse(req))
}

// CreateSolicitud handles POST /solicitudes.
// Submitting is a mutating action: it goes through the action-session guard
// and is refused in read-only mode or after action expiry.
func (a *API) CreateSolicitud(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	if !sess.Role.CanSubmit() {
		writeError(w, http.StatusForbidden, "role cannot submit requests")
		return
	}

	var body CreateSolicitudRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var req *approval.Request
	err := a.guard("createSolicitud", func() error {
		var err error
		req, err = a.engine.Submit(r.Context(), approval.Type(body.Tipo), body.Detalle, approval.Requester{
			ID:   sess.PrincipalID,
			Name: sess.Name,
		})
		return err
	})
	if err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditRequestSubmitted, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, OKResponse{OK: true, DetalleID: req.ID, Message: "solicitud creada correctamente"})
}

// UpdateSolicitud handles PUT /solicitudes/{id}.
// The stored record is edited directly, as on the original CRUD surface;
// only the estado field is honored, so vote bookkeeping stays with the
// engine.
func (a *API) UpdateSolicitud(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, ok := decodeDoc(w, r)
	if !ok {
		return
	}
	estado, _ := doc["estado"].(string)
	status := approval.Status(estado)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "estado must be a known request status")
		return
	}

	err := a.guard("updateSolicitud", func() error {
		rec, err := a.repo.Get(storage.CollectionSolicitudes, id)
		if err != nil {
			return err
		}
		var req approval.Request
		if err := json.Unmarshal(rec.Data, &req); err != nil {
			return err
		}
		req.ID = rec.ID
		req.Status = status
		if rec.Data, err = json.Marshal(&req); err != nil {
			return err
		}
		rec.Estado = estado
		rec.UpdatedAt = time.Now().Unix()
		return a.repo.Put(storage.CollectionSolicitudes, id, rec)
	})
	if err != nil {
		mapError(w, err)
		return
	}

	sess, _ := sessionFromContext(r.Context())
	a.audit.logEvent(AuditRequestUpdated, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "actualizado correctamente"})
}

// DeleteSolicitud handles DELETE /solicitudes/{id}.
func (a *API) DeleteSolicitud(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := a.guard("deleteSolicitud", func() error {
		return a.repo.Delete(storage.CollectionSolicitudes, id)
	})
	if err != nil {
		mapError(w, err)
		return
	}

	sess, _ := sessionFromContext(r.Context())
	a.audit.logEvent(AuditRequestDeleted, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "solicitud eliminada correctamente"})
}

// ApproveSolicitud handles POST /solicitudes/{id}/approve.
func (a *API) ApproveSolicitud(w http.ResponseWriter, r *http.Request) {
	a.vote(w, r, true)
}

// RejectSolicitud handles POST /solicitudes/{id}/reject.
func (a *API) RejectSolicitud(w http.ResponseWriter, r *http.Request) {
	a.vote(w, r, false)
}

func (a *API) vote(w http.ResponseWriter, r *http.Request, approve bool) {
	sess, _ := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req *approval.Request
	action := "rejectSolicitud"
	if approve {
		action = "approveSolicitud"
	}
	err := a.guard(action, func() error {
		var err error
		if approve {
			req, err = a.engine.Approve(r.Context(), id, sess.PrincipalID)
		} else {
			req, err = a.engine.Reject(r.Context(), id, sess.PrincipalID)
		}
		return err
	})
	if err != nil {
		mapError(w, err)
		return
	}

	event := AuditRequestRejected
	if approve {
		event = AuditRequestApproved
	}
	a.audit.logEvent(event, r, sess.PrincipalID)
	if req.Status == approval.StatusApproved {
		a.audit.logEvent(AuditRequestApplied, r, sess.PrincipalID)
	}
	writeJSON(w, http.StatusOK, solicitudResponse(req))
}
