package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cobzariu/CarApp/internal/cache"
	"github.com/Cobzariu/CarApp/internal/logging"
	"github.com/Cobzariu/CarApp/internal/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeCache is an in-memory cache.Store.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return v, nil
}

func (f *fakeCache) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeCache) Keys(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeCache) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// fakeRemote is an in-memory remote.Client with a reachability switch.
type fakeRemote struct {
	mu      sync.Mutex
	offline bool
	nextID  int
	order   []string
	cars    map[string]*models.Car
}

var errUnreachable = errors.New("network unreachable")

func newFakeRemote() *fakeRemote {
	return &fakeRemote{cars: make(map[string]*models.Car)}
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

// seed installs a server-side record without going through Create.
func (f *fakeRemote) seed(car models.Car) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cars[car.ID] = &car
	f.order = append([]string{car.ID}, f.order...)
}

func (f *fakeRemote) List(ctx context.Context, token string) ([]models.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errUnreachable
	}
	out := make([]models.Car, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.cars[id])
	}
	return out, nil
}

func (f *fakeRemote) Create(ctx context.Context, token string, car *models.Car) (*models.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errUnreachable
	}
	f.nextID++
	saved := car.Clone()
	saved.ID = fmt.Sprintf("srv-%d", f.nextID)
	saved.Version = 1
	f.cars[saved.ID] = saved.Clone()
	f.order = append([]string{saved.ID}, f.order...)
	return saved, nil
}

func (f *fakeRemote) Update(ctx context.Context, token string, car *models.Car) (*models.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errUnreachable
	}
	existing, ok := f.cars[car.ID]
	if !ok {
		return nil, errors.New("not found")
	}
	saved := car.Clone()
	saved.Version = existing.Version + 1
	f.cars[car.ID] = saved.Clone()
	return saved, nil
}

func (f *fakeRemote) Erase(ctx context.Context, token string, car *models.Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errUnreachable
	}
	delete(f.cars, car.ID)
	for i, id := range f.order {
		if id == car.ID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeRemote) GetByID(ctx context.Context, token, id string) (*models.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errUnreachable
	}
	car, ok := f.cars[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return car.Clone(), nil
}

func (f *fakeRemote) Probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errUnreachable
	}
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakeCache, *fakeRemote) {
	t.Helper()
	fc := newFakeCache()
	fr := newFakeRemote()
	s := New(fc, fr, testLogger())
	s.SetToken("tok")
	return s, fc, fr
}

func ids(cars []models.Car) []string {
	out := make([]string, 0, len(cars))
	for _, c := range cars {
		out = append(out, c.ID)
	}
	return out
}

func TestLoad_ReplacesItemsWithServerList(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic", Version: 1})
	fr.seed(models.Car{ID: "b", Name: "Golf", Version: 1})

	s.Load(context.Background())

	assert.Equal(t, []string{"b", "a"}, ids(s.Items()))
	assert.False(t, s.Fetching())
	fetchErr, _, _ := s.Errors()
	assert.Empty(t, fetchErr)
}

func TestLoad_FallsBackToCacheWhenOffline(t *testing.T) {
	s, fc, fr := newTestStore(t)
	fr.setOffline(true)
	ctx := context.Background()

	require.NoError(t, fc.Set(ctx, "100", `{"_id":"100","name":"Civic","status":1}`))
	require.NoError(t, fc.Set(ctx, "200", `{"_id":"200","name":"Golf","status":2}`))
	require.NoError(t, fc.Set(ctx, "300", `not a record`))

	s.Load(ctx)

	// Only the modified record is visible: queued deletions are hidden
	// and garbage entries are skipped, not fatal.
	assert.Equal(t, []string{"100"}, ids(s.Items()))
	fetchErr, _, _ := s.Errors()
	assert.Empty(t, fetchErr)
}

func TestLoad_PopulatesErrorWhenNothingUsable(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.setOffline(true)

	s.Load(context.Background())

	assert.Empty(t, s.Items())
	fetchErr, _, _ := s.Errors()
	assert.Contains(t, fetchErr, "unreachable")
}

func TestLoad_BlankTokenFallsBackToCache(t *testing.T) {
	s, fc, _ := newTestStore(t)
	s.SetToken("   ")
	ctx := context.Background()
	require.NoError(t, fc.Set(ctx, "100", `{"_id":"100","name":"Civic","status":1}`))

	s.Load(ctx)

	assert.Equal(t, []string{"100"}, ids(s.Items()))
}

// blockingClient wraps fakeRemote and parks List calls until released.
type blockingClient struct {
	*fakeRemote
	release chan struct{}
}

func (b *blockingClient) List(ctx context.Context, token string) ([]models.Car, error) {
	<-b.release
	return b.fakeRemote.List(ctx, token)
}

func TestLoad_StaleResultDiscardedOnTokenChange(t *testing.T) {
	fc := newFakeCache()
	fr := newFakeRemote()
	fr.seed(models.Car{ID: "old", Name: "Stale"})
	bc := &blockingClient{fakeRemote: fr, release: make(chan struct{})}
	s := New(fc, bc, testLogger())
	s.SetToken("first")

	done := make(chan struct{})
	go func() {
		s.Load(context.Background())
		close(done)
	}()

	s.SetToken("second") // invalidates the in-flight load
	close(bc.release)
	<-done

	assert.Empty(t, s.Items(), "stale load result must be discarded")
}

func TestSave_OnlineCreateInsertsAtFront(t *testing.T) {
	s, fc, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Old"})
	s.Load(context.Background())

	saved, err := s.Save(context.Background(), &models.Car{Name: "Civic", Horsepower: 158}, true)
	require.NoError(t, err)

	assert.Equal(t, "srv-1", saved.ID)
	assert.Equal(t, models.Synced, saved.Status)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, []string{"srv-1", "a"}, ids(s.Items()))
	assert.Equal(t, 0, fc.len(), "online save must not touch the cache")
}

func TestSave_OnlineUpdateKeepsPosition(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "First", Version: 1})
	fr.seed(models.Car{ID: "b", Name: "Second", Version: 1})
	s.Load(context.Background())
	require.Equal(t, []string{"b", "a"}, ids(s.Items()))

	_, err := s.Save(context.Background(), &models.Car{ID: "a", Name: "First Edited"}, true)
	require.NoError(t, err)

	items := s.Items()
	assert.Equal(t, []string{"b", "a"}, ids(items))
	assert.Equal(t, "First Edited", items[1].Name)
	assert.Equal(t, 2, items[1].Version)
}

func TestSave_OfflineCreate(t *testing.T) {
	s, fc, _ := newTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, &models.Car{
		Name: "Civic", Horsepower: 158, Automatic: false, ReleaseDate: "2021-05-01",
	}, false)
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, models.ModifiedOffline, saved.Status)
	items := s.Items()
	require.NotEmpty(t, items)
	assert.Equal(t, saved.ID, items[0].ID, "offline create must land at the front")
	assert.True(t, fc.has(saved.ID), "pending record must be cached under its id")
}

func TestSave_TransportFailureFallsBackToOffline(t *testing.T) {
	s, fc, fr := newTestStore(t)
	fr.setOffline(true)

	// connected=true but the network is actually down: same outcome as
	// the explicit offline path.
	saved, err := s.Save(context.Background(), &models.Car{Name: "Civic"}, true)
	require.NoError(t, err)

	assert.Equal(t, models.ModifiedOffline, saved.Status)
	assert.True(t, fc.has(saved.ID))
}

func TestSave_OfflineEditOfSyncedRecord(t *testing.T) {
	s, fc, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic", Version: 1})
	s.Load(context.Background())

	saved, err := s.Save(context.Background(), &models.Car{ID: "a", Name: "Civic R", Version: 1}, false)
	require.NoError(t, err)

	assert.Equal(t, "a", saved.ID)
	assert.Equal(t, models.ModifiedOffline, saved.Status)
	assert.True(t, fc.has("a"))
	items := s.Items()
	assert.Equal(t, "Civic R", items[0].Name)
}

func TestDelete_OnlineRemovesExactlyOne(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic"})
	fr.seed(models.Car{ID: "b", Name: "Golf"})
	s.Load(context.Background())

	require.NoError(t, s.Delete(context.Background(), &models.Car{ID: "a"}, true))
	assert.Equal(t, []string{"b"}, ids(s.Items()))
}

func TestDelete_NonexistentIsNoop(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic"})
	s.Load(context.Background())

	require.NoError(t, s.Delete(context.Background(), &models.Car{ID: "ghost"}, true))
	assert.Equal(t, []string{"a"}, ids(s.Items()))
}

func TestDelete_OfflineHidesAndQueues(t *testing.T) {
	s, fc, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic"})
	s.Load(context.Background())

	require.NoError(t, s.Delete(context.Background(), &models.Car{ID: "a", Name: "Civic"}, false))

	assert.Empty(t, s.Items(), "queued deletion must be hidden immediately")
	require.True(t, fc.has("a"))
	value, err := fc.Get(context.Background(), "a")
	require.NoError(t, err)
	car, err := models.Decode([]byte(value))
	require.NoError(t, err)
	assert.Equal(t, models.DeletedOffline, car.Status)
}

func TestApplyRemoteEvent_Upserts(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic", Version: 1})
	s.Load(context.Background())

	s.ApplyRemoteEvent("created", &models.Car{ID: "b", Name: "Golf", Version: 1})
	assert.Equal(t, []string{"b", "a"}, ids(s.Items()))

	s.ApplyRemoteEvent("updated", &models.Car{ID: "a", Name: "Civic R", Version: 2})
	items := s.Items()
	assert.Equal(t, []string{"b", "a"}, ids(items))
	assert.Equal(t, "Civic R", items[1].Name)

	s.ApplyRemoteEvent("authorization", &models.Car{ID: "c", Name: "Ignored"})
	s.ApplyRemoteEvent("created", nil)
	s.ApplyRemoteEvent("created", &models.Car{Name: "No ID"})
	assert.Len(t, s.Items(), 2)
}

func TestCheckConflict_SetsAndClearsMarker(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic", Horsepower: 180, Version: 2})

	require.NoError(t, s.CheckConflict(context.Background(), "a", 1))
	conflict := s.Conflict()
	require.NotNil(t, conflict)
	assert.Equal(t, 2, conflict.Version)

	require.NoError(t, s.CheckConflict(context.Background(), "a", 2))
	assert.Nil(t, s.Conflict())
}

func TestCheckConflict_TwoWriterScenario(t *testing.T) {
	s, fc, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic", Horsepower: 158, Version: 1})
	s.Load(context.Background())

	// Another client edits online: server is now at version 2.
	_, err := fr.Update(context.Background(), "tok", &models.Car{ID: "a", Name: "Civic", Horsepower: 180})
	require.NoError(t, err)

	// This client edits offline, still believing version 1.
	_, err = s.Save(context.Background(), &models.Car{ID: "a", Name: "Civic", Horsepower: 200, Version: 1}, false)
	require.NoError(t, err)

	require.NoError(t, s.CheckConflict(context.Background(), "a", 1))

	conflict := s.Conflict()
	require.NotNil(t, conflict)
	assert.Equal(t, 180, conflict.Horsepower, "conflict payload must carry the server's value")

	// The pending local edit is untouched.
	local, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 200, local.Horsepower)
	assert.True(t, fc.has("a"))
}

func TestSaveSuccess_ClearsConflictForThatID(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Name: "Civic", Version: 2})

	require.NoError(t, s.CheckConflict(context.Background(), "a", 1))
	require.NotNil(t, s.Conflict())

	_, err := s.Save(context.Background(), &models.Car{ID: "a", Name: "Civic", Version: 2}, true)
	require.NoError(t, err)
	assert.Nil(t, s.Conflict())
}

func TestResolveConflict(t *testing.T) {
	s, _, fr := newTestStore(t)
	fr.seed(models.Car{ID: "a", Version: 5, Name: "Civic"})

	require.NoError(t, s.CheckConflict(context.Background(), "a", 1))
	require.NotNil(t, s.Conflict())

	s.ResolveConflict()
	assert.Nil(t, s.Conflict())
}
