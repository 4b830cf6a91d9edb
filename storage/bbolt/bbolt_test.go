package bbolt

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picis-sec/picis/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewRepositoryFromFile(filepath.Join(t.TempDir(), "picis.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutGetDelete(t *testing.T) {
	store := newTestStore(t)

	rec := &storage.Record{ID: "entidad1", Estado: "activo", Data: []byte(`{"nombre":"Bot de Procesamiento"}`)}
	require.NoError(t, store.Put(storage.CollectionEntidades, "entidad1", rec))

	got, err := store.Get(storage.CollectionEntidades, "entidad1")
	require.NoError(t, err)
	assert.Equal(t, "entidad1", got.ID)
	assert.Equal(t, "activo", got.Estado)
	assert.JSONEq(t, `{"nombre":"Bot de Procesamiento"}`, string(got.Data))

	require.NoError(t, store.Delete(storage.CollectionEntidades, "entidad1"))
	_, err = store.Get(storage.CollectionEntidades, "entidad1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_GetMissingCollection(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("nothing-here", "entidad1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListFiltersByEstado(t *testing.T) {
	store := newTestStore(t)

	for _, rec := range []*storage.Record{
		{ID: "solicitud1", Estado: "pendiente", Data: []byte(`{}`)},
		{ID: "solicitud2", Estado: "aprobado", Data: []byte(`{}`)},
		{ID: "solicitud3", Estado: "pendiente", Data: []byte(`{}`)},
	} {
		require.NoError(t, store.Put(storage.CollectionSolicitudes, rec.ID, rec))
	}

	all, err := store.List(storage.CollectionSolicitudes, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := store.List(storage.CollectionSolicitudes, "pendiente")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestStore_Create(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Create(storage.CollectionSolicitudes, storage.PrefixSolicitud, &storage.Record{Data: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "solicitud1", id)

	got, err := store.Get(storage.CollectionSolicitudes, "solicitud1")
	require.NoError(t, err)
	assert.Equal(t, "solicitud1", got.ID)

	require.NoError(t, store.Put(storage.CollectionSolicitudes, "solicitud9", &storage.Record{ID: "solicitud9", Data: []byte(`{}`)}))

	id, err = store.Create(storage.CollectionSolicitudes, storage.PrefixSolicitud, &storage.Record{Data: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "solicitud10", id)
}

func TestStore_ConcurrentCreate(t *testing.T) {
	store := newTestStore(t)
	const n = 16

	start := make(chan struct{})
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, err := store.Create("concurrent", storage.PrefixSolicitud, &storage.Record{Data: []byte(`{}`)})
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	close(start)
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "id %s allocated twice", id)
		seen[id] = true
	}

	recs, err := store.List("concurrent", "")
	require.NoError(t, err)
	assert.Len(t, recs, n, "every created record must survive")
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picis.db")

	store, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(storage.CollectionEntidades, "entidad1", &storage.Record{ID: "entidad1", Data: []byte(`{}`)}))
	require.NoError(t, store.Close())

	store, err = NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(storage.CollectionEntidades, "entidad1")
	require.NoError(t, err)
	assert.Equal(t, "entidad1", got.ID)
}
