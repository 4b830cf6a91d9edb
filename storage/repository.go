// Package storage provides the storage abstraction layer for PICIS entity
// and request records.
package storage

import "errors"

// ErrNotFound is returned when a record does not exist in the collection.
var ErrNotFound = errors.New("record not found")

// Well-known collection names.
const (
	CollectionEntidades   = "entidades"
	CollectionSolicitudes = "solicitudes"
)

// ID prefixes used by Create for the well-known collections. IDs follow the
// scheme <prefix><n> with n starting at 1: entidad1, entidad2, solicitud1, ...
const (
	PrefixEntidad   = "entidad"
	PrefixSolicitud = "solicitud"
)

// Record is a schemaless JSON document stored in a collection. Estado is
// lifted out of the document body so list filtering does not need to decode
// every record.
type Record struct {
	ID        string `json:"id"`
	Estado    string `json:"estado,omitempty"`
	Data      []byte `json:"data"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Repository defines the interface for PICIS record storage. Implementations
// must be safe for concurrent use.
type Repository interface {
	// Create allocates the next sequential ID for a collection
	// (<prefix><max existing numeric suffix + 1>, starting at <prefix>1)
	// and stores the record under it in one atomic step, so concurrent
	// creators never share an ID. Returns the allocated ID; the stored
	// record's ID field is set to it.
	Create(collection, prefix string, rec *Record) (string, error)
	// Put creates or replaces a record under the given ID.
	Put(collection, id string, rec *Record) error
	// Get retrieves a record by ID, or ErrNotFound.
	Get(collection, id string) (*Record, error)
	// List returns all records in a collection, optionally filtered by
	// estado (empty string means no filter). Order is unspecified.
	List(collection, estado string) ([]*Record, error)
	// Delete removes a record, or returns ErrNotFound.
	Delete(collection, id string) error
}
