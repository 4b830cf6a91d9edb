package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/picis-sec/picis/storage"
)

// RepositoryStore persists requests in the solicitudes collection of a
// storage.Repository, one record per request with the status mirrored into
// the record's estado field so list filtering stays cheap.
type RepositoryStore struct {
	repo storage.Repository
}

var _ RequestStore = (*RepositoryStore)(nil)

// NewRepositoryStore creates a RequestStore over the given repository.
func NewRepositoryStore(repo storage.Repository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

// Create allocates the solicitudN ID and stores the request in one atomic
// repository call, so concurrent submissions never collide on an ID.
func (s *RepositoryStore) Create(_ context.Context, req *Request) error {
	rec, err := encodeRequest(req)
	if err != nil {
		return err
	}
	id, err := s.repo.Create(storage.CollectionSolicitudes, storage.PrefixSolicitud, rec)
	if err != nil {
		return fmt.Errorf("creating request record: %w", err)
	}
	req.ID = id
	return nil
}

func (s *RepositoryStore) Get(_ context.Context, id string) (*Request, error) {
	rec, err := s.repo.Get(storage.CollectionSolicitudes, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return decodeRequest(rec)
}

func (s *RepositoryStore) Update(_ context.Context, req *Request) error {
	if req.ID == "" {
		return fmt.Errorf("request has no id: %w", ErrValidation)
	}
	return s.put(req)
}

func (s *RepositoryStore) List(_ context.Context, status Status) ([]*Request, error) {
	recs, err := s.repo.List(storage.CollectionSolicitudes, string(status))
	if err != nil {
		return nil, err
	}
	out := make([]*Request, 0, len(recs))
	for _, rec := range recs {
		req, err := decodeRequest(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *RepositoryStore) put(req *Request) error {
	rec, err := encodeRequest(req)
	if err != nil {
		return err
	}
	return s.repo.Put(storage.CollectionSolicitudes, req.ID, rec)
}

func encodeRequest(req *Request) (*storage.Record, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request %s: %w", req.ID, err)
	}
	return &storage.Record{
		ID:        req.ID,
		Estado:    string(req.Status),
		Data:      data,
		CreatedAt: req.CreatedAt.Unix(),
		UpdatedAt: req.CreatedAt.Unix(),
	}, nil
}

func decodeRequest(rec *storage.Record) (*Request, error) {
	var req Request
	if err := json.Unmarshal(rec.Data, &req); err != nil {
		return nil, fmt.Errorf("decoding request %s: %w", rec.ID, err)
	}
	// The record key is canonical: on Create the payload is encoded before
	// the ID exists.
	req.ID = rec.ID
	return &req, nil
}
