// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"sync"

	"github.com/picis-sec/picis/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.Record
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.Record)}
}

func cloneRecord(rec *storage.Record) *storage.Record {
	if rec == nil {
		return nil
	}
	out := *rec
	out.Data = append([]byte(nil), rec.Data...)
	return &out
}

func (r *Repository) Create(collection, prefix string, rec *storage.Record) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coll, ok := r.data[collection]
	if !ok {
		coll = make(map[string]*storage.Record)
		r.data[collection] = coll
	}
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	id := storage.NextSequentialID(prefix, ids)
	stored := cloneRecord(rec)
	stored.ID = id
	coll[id] = stored
	return id, nil
}

func (r *Repository) Put(collection, id string, rec *storage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[collection]; !ok {
		r.data[collection] = make(map[string]*storage.Record)
	}
	r.data[collection][id] = cloneRecord(rec)
	return nil
}

func (r *Repository) Get(collection, id string) (*storage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	coll, ok := r.data[collection]
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec, ok := coll[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (r *Repository) List(collection, estado string) ([]*storage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*storage.Record
	for _, rec := range r.data[collection] {
		if estado != "" && rec.Estado != estado {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (r *Repository) Delete(collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coll, ok := r.data[collection]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := coll[id]; !ok {
		return storage.ErrNotFound
	}
	delete(coll, id)
	return nil
}
