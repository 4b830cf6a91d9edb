package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/picis-sec/picis/approval"
	"github.com/picis-sec/picis/storage"
)

// EntityApplier materializes fully approved requests against the entity
// store: add_* payloads become new entity records, edit_* payloads merge
// into the referenced record, delete_* payloads remove it.
type EntityApplier struct {
	repo storage.Repository
}

var _ approval.Applier = (*EntityApplier)(nil)

// NewEntityApplier creates an applier over the given repository.
func NewEntityApplier(repo storage.Repository) *EntityApplier {
	return &EntityApplier{repo: repo}
}

// Apply executes the approved request's payload. The engine calls it exactly
// once, on the responsible phase's final approval.
func (ea *EntityApplier) Apply(_ context.Context, req *approval.Request) error {
	doc := map[string]any{}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &doc); err != nil {
			return fmt.Errorf("decoding payload for %s: %w", req.ID, err)
		}
	}

	op := string(req.Type)
	switch {
	case strings.HasPrefix(op, "add_"):
		return ea.create(req, doc)
	case strings.HasPrefix(op, "edit_"):
		return ea.update(req, doc)
	case strings.HasPrefix(op, "delete_"):
		return ea.delete(req, doc)
	default:
		return fmt.Errorf("request %s: no apply rule for type %s", req.ID, req.Type)
	}
}

func (ea *EntityApplier) create(req *approval.Request, doc map[string]any) error {
	estado, _ := doc["estado"].(string)
	if estado == "" {
		estado = entidadEstadoActivo
	}
	delete(doc, "estado")
	doc["tipoOrigen"] = string(req.Type)

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	_, err = ea.repo.Create(storage.CollectionEntidades, storage.PrefixEntidad, &storage.Record{
		Estado:    estado,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return err
}

func (ea *EntityApplier) update(req *approval.Request, doc map[string]any) error {
	id, err := entityID(req, doc)
	if err != nil {
		return err
	}
	rec, err := ea.repo.Get(storage.CollectionEntidades, id)
	if err != nil {
		return err
	}

	merged := map[string]any{}
	_ = json.Unmarshal(rec.Data, &merged)
	for k, v := range doc {
		if k == "idEntidad" {
			continue
		}
		merged[k] = v
	}
	if estado, ok := merged["estado"].(string); ok {
		rec.Estado = estado
		delete(merged, "estado")
	}
	if rec.Data, err = json.Marshal(merged); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().Unix()
	return ea.repo.Put(storage.CollectionEntidades, id, rec)
}

func (ea *EntityApplier) delete(req *approval.Request, doc map[string]any) error {
	id, err := entityID(req, doc)
	if err != nil {
		return err
	}
	return ea.repo.Delete(storage.CollectionEntidades, id)
}

// entityID extracts the target entity reference carried in edit and delete
// payloads.
func entityID(req *approval.Request, doc map[string]any) (string, error) {
	if id, ok := doc["idEntidad"].(string); ok && id != "" {
		return id, nil
	}
	return "", fmt.Errorf("request %s: payload missing idEntidad", req.ID)
}
