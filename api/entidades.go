package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/picis-sec/picis/storage"
)

const entidadEstadoActivo = "activo"

const maxEntityBodySize = 1 << 20

// decodeDoc reads a free-form JSON object body. Writes a 400 on failure.
func decodeDoc(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var doc map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBodySize))
	if err := dec.Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(doc) == 0 {
		writeError(w, http.StatusBadRequest, "empty document")
		return nil, false
	}
	return doc, true
}

func entidadResponse(rec *storage.Record) EntidadResponse {
	doc := map[string]any{}
	_ = json.Unmarshal(rec.Data, &doc)
	doc["estado"] = rec.Estado
	return EntidadResponse{ID: rec.ID, Doc: doc}
}

// ListEntidades handles GET /entidades with an optional ?estado= filter.
func (a *API) ListEntidades(w http.ResponseWriter, r *http.Request) {
	recs, err := a.repo.List(storage.CollectionEntidades, r.URL.Query().Get("estado"))
	if err != nil {
		mapError(w, err)
		return
	}
	out := make([]EntidadResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, entidadResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetEntidad handles GET /entidades/{id}.
func (a *API) GetEntidad(w http.ResponseWriter, r *http.Request) {
	rec, err := a.repo.Get(storage.CollectionEntidades, chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entidadResponse(rec))
}

// CreateEntidad handles POST /entidades.
func (a *API) CreateEntidad(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDoc(w, r)
	if !ok {
		return
	}

	var id string
	err := a.guard("createEntidad", func() error {
		var err error
		id, err = a.createEntity(doc)
		return err
	})
	if err != nil {
		mapError(w, err)
		return
	}

	sess, _ := sessionFromContext(r.Context())
	a.audit.logEvent(AuditEntityCreated, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, OKResponse{OK: true, DetalleID: id, Message: "entidad creada correctamente"})
}

// createEntity stores the document under an atomically allocated entidadN ID.
func (a *API) createEntity(doc map[string]any) (string, error) {
	estado, _ := doc["estado"].(string)
	if estado == "" {
		estado = entidadEstadoActivo
	}
	delete(doc, "estado")

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	now := time.Now().Unix()
	rec := &storage.Record{
		Estado:    estado,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return a.repo.Create(storage.CollectionEntidades, storage.PrefixEntidad, rec)
}

// UpdateEntidad handles PUT /entidades/{id}.
// Incoming fields are merged over the stored document.
func (a *API) UpdateEntidad(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, ok := decodeDoc(w, r)
	if !ok {
		return
	}

	err := a.guard("updateEntidad", func() error {
		rec, err := a.repo.Get(storage.CollectionEntidades, id)
		if err != nil {
			return err
		}
		merged := map[string]any{}
		_ = json.Unmarshal(rec.Data, &merged)
		for k, v := range doc {
			merged[k] = v
		}
		if estado, ok := merged["estado"].(string); ok {
			rec.Estado = estado
			delete(merged, "estado")
		}
		rec.Data, err = json.Marshal(merged)
		if err != nil {
			return err
		}
		rec.UpdatedAt = time.Now().Unix()
		return a.repo.Put(storage.CollectionEntidades, id, rec)
	})
	if err != nil {
		mapError(w, err)
		return
	}

	sess, _ := sessionFromContext(r.Context())
	a.audit.logEvent(AuditEntityUpdated, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "actualizado correctamente"})
}

// DeleteEntidad handles DELETE /entidades/{id}.
func (a *API) DeleteEntidad(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := a.guard("deleteEntidad", func() error {
		return a.repo.Delete(storage.CollectionEntidades, id)
	})
	if err != nil {
		mapError(w, err)
		return
	}

	sess, _ := sessionFromContext(r.Context())
	a.audit.logEvent(AuditEntityDeleted, r, sess.PrincipalID)
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "entidad eliminada correctamente"})
}
