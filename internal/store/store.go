// Package store implements the sync state store: the single owner of the
// in-memory car list, reconciling the remote store, the durable offline
// cache and realtime push events.
//
// All state transitions are applied atomically under one mutex while
// network and cache I/O runs outside it, so operations may overlap in
// flight but the last applied mutation wins.
package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Cobzariu/CarApp/internal/cache"
	"github.com/Cobzariu/CarApp/internal/logging"
	"github.com/Cobzariu/CarApp/internal/models"
	"github.com/Cobzariu/CarApp/internal/remote"
)

var errNoToken = errors.New("no auth token")

// Store holds the authoritative in-memory view. Construct with New; the
// cache and remote client are injected, never ambient.
type Store struct {
	cache  cache.Store
	client remote.Client
	logger logging.Logger

	mu      sync.Mutex
	token   string
	loadGen int

	// order keeps record ids front-to-back, most recently created first;
	// items maps id to the record. Updates keep their position.
	order []string
	items map[string]*models.Car

	fetching  bool
	saving    bool
	deleting  bool
	fetchErr  string
	saveErr   string
	deleteErr string

	conflict *models.Car
}

func New(c cache.Store, client remote.Client, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		cache:  c,
		client: client,
		logger: logger,
		items:  make(map[string]*models.Car),
	}
}

// SetToken records the active auth token (blank after trimming means
// unauthenticated) and invalidates any in-flight Load so its result is
// discarded rather than applied to the new session.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
	s.loadGen++
}

// Token returns the active auth token.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Items returns a snapshot of the visible records, front first.
func (s *Store) Items() []models.Car {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Car, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// Get returns a copy of the record with the given id, if visible.
func (s *Store) Get(id string) (*models.Car, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	car, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return car.Clone(), true
}

// Conflict returns the server's divergent copy when a conflict is pending.
func (s *Store) Conflict() *models.Car {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflict == nil {
		return nil
	}
	return s.conflict.Clone()
}

// ResolveConflict clears the conflict marker. The caller decides how the
// divergence was reconciled; the store only stops surfacing it.
func (s *Store) ResolveConflict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflict = nil
}

func (s *Store) Fetching() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.fetching }
func (s *Store) Saving() bool   { s.mu.Lock(); defer s.mu.Unlock(); return s.saving }
func (s *Store) Deleting() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.deleting }

// Errors returns the last fetch, save and delete error causes; empty
// strings mean the operation's last run resolved.
func (s *Store) Errors() (fetch, save, del string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchErr, s.saveErr, s.deleteErr
}

// Load replaces the view with the server's list. On any failure (blank
// token included) it rebuilds the view from cached pending records
// instead, excluding queued deletions; only when that also yields nothing
// is the fetch error populated. A Load started before a token change is
// stale and its result is discarded.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	token := s.token
	s.fetching = true
	s.fetchErr = ""
	s.mu.Unlock()

	listErr := errNoToken
	if token != "" {
		cars, err := s.client.List(ctx, token)
		if err == nil {
			s.mu.Lock()
			defer s.mu.Unlock()
			if gen != s.loadGen {
				s.fetching = false
				s.logger.Debug(ctx, "discarding stale load result")
				return
			}
			s.replaceItems(cars)
			s.fetching = false
			return
		}
		listErr = err
	}

	s.logger.Warn(ctx, "remote list unavailable, rebuilding view from cache", "err", listErr)
	var recovered []models.Car
	for _, e := range s.scanPending(ctx) {
		if e.car.Status != models.DeletedOffline {
			recovered = append(recovered, *e.car)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.loadGen {
		s.fetching = false
		s.logger.Debug(ctx, "discarding stale load result")
		return
	}
	s.fetching = false
	if len(recovered) == 0 {
		s.fetchErr = listErr.Error()
		return
	}
	s.replaceItems(recovered)
}

// Save persists the record remotely when connected, falling back to the
// offline queue on any transport failure; when not connected it skips the
// network outright. It resolves successfully on the offline path — the
// returned record reflects the visible state (server copy when synced,
// pending copy when queued). An error means a local failure with nothing
// left to fall back to.
func (s *Store) Save(ctx context.Context, car *models.Car, connected bool) (*models.Car, error) {
	saved, _, err := s.save(ctx, car, connected)
	return saved, err
}

func (s *Store) save(ctx context.Context, car *models.Car, connected bool) (*models.Car, bool, error) {
	s.mu.Lock()
	s.saving = true
	s.saveErr = ""
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	c := car.Clone()
	if connected {
		saved, err := s.saveRemote(ctx, c)
		if err == nil {
			s.mu.Lock()
			if models.IsClientID(c.ID) && saved.ID != c.ID {
				// Successful create round-trip: the temporary id is retired.
				s.removeItem(c.ID)
			}
			s.upsert(saved.Clone())
			if s.conflict != nil && (s.conflict.ID == saved.ID || s.conflict.ID == c.ID) {
				s.conflict = nil
			}
			s.mu.Unlock()
			return saved, true, nil
		}
		s.logger.Warn(ctx, "save failed, keeping record locally", "id", c.ID, "err", err)
	}

	c.Status = models.ModifiedOffline
	if c.ID == "" {
		c.ID = models.NewClientID()
	}
	value, err := c.Encode()
	if err == nil {
		err = s.cache.Set(ctx, c.ID, string(value))
	}
	if err != nil {
		s.mu.Lock()
		s.saveErr = err.Error()
		s.mu.Unlock()
		return nil, false, err
	}

	s.mu.Lock()
	s.upsert(c.Clone())
	s.mu.Unlock()
	s.logger.Info(ctx, "record saved locally", "id", c.ID)
	return c, false, nil
}

// saveRemote routes to create or update. Records carrying a temporary
// client id go through create so the server assigns the real id.
func (s *Store) saveRemote(ctx context.Context, c *models.Car) (*models.Car, error) {
	token := s.Token()

	out := c.Clone()
	out.Status = models.Synced

	var (
		saved *models.Car
		err   error
	)
	if out.ID == "" || models.IsClientID(out.ID) {
		out.ID = ""
		saved, err = s.client.Create(ctx, token, out)
	} else {
		saved, err = s.client.Update(ctx, token, out)
	}
	if err != nil {
		return nil, err
	}
	saved.Status = models.Synced
	return saved, nil
}

// Delete mirrors Save: online success removes the record outright; the
// offline path queues the deletion and hides the record immediately.
func (s *Store) Delete(ctx context.Context, car *models.Car, connected bool) error {
	_, err := s.delete(ctx, car, connected)
	return err
}

func (s *Store) delete(ctx context.Context, car *models.Car, connected bool) (bool, error) {
	s.mu.Lock()
	s.deleting = true
	s.deleteErr = ""
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.deleting = false
		s.mu.Unlock()
	}()

	c := car.Clone()
	if c.ID == "" {
		return false, nil
	}

	if connected {
		if err := s.client.Erase(ctx, s.Token(), c); err == nil {
			s.mu.Lock()
			s.removeItem(c.ID)
			s.mu.Unlock()
			return true, nil
		} else {
			s.logger.Warn(ctx, "delete failed, queueing locally", "id", c.ID, "err", err)
		}
	}

	c.Status = models.DeletedOffline
	value, err := c.Encode()
	if err == nil {
		err = s.cache.Set(ctx, c.ID, string(value))
	}
	if err != nil {
		s.mu.Lock()
		s.deleteErr = err.Error()
		s.mu.Unlock()
		return false, err
	}

	// Queued deletions are hidden from the view right away.
	s.mu.Lock()
	s.removeItem(c.ID)
	s.mu.Unlock()
	s.logger.Info(ctx, "record deletion queued locally", "id", c.ID)
	return false, nil
}

// ApplyRemoteEvent merges a realtime push. Created and updated events
// upsert with the same rule as a save success; anything else is ignored.
// No version check happens here — last writer wins.
func (s *Store) ApplyRemoteEvent(eventType string, car *models.Car) {
	if car == nil || car.ID == "" {
		return
	}
	if eventType != remote.EventCreated && eventType != remote.EventUpdated {
		return
	}
	c := car.Clone()
	c.Status = models.Synced

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(c)
}

// CheckConflict fetches the authoritative record and surfaces it as the
// pending conflict when its version differs from knownVersion; a matching
// version clears a previously surfaced conflict for the same id. Advisory
// only — the caller's pending edit is left untouched.
func (s *Store) CheckConflict(ctx context.Context, id string, knownVersion int) error {
	server, err := s.client.GetByID(ctx, s.Token(), id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if server.Version != knownVersion {
		s.logger.Info(ctx, "version conflict detected",
			"id", id, "known", knownVersion, "server", server.Version)
		s.conflict = server.Clone()
		return nil
	}
	if s.conflict != nil && s.conflict.ID == id {
		s.conflict = nil
	}
	return nil
}

// upsert inserts at the front for a new id and replaces in place for a
// known one. Callers hold s.mu.
func (s *Store) upsert(car *models.Car) {
	if _, ok := s.items[car.ID]; ok {
		s.items[car.ID] = car
		return
	}
	s.order = append([]string{car.ID}, s.order...)
	s.items[car.ID] = car
}

// removeItem drops a record; unknown ids are a no-op. Callers hold s.mu.
func (s *Store) removeItem(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// replaceItems swaps the whole view, preserving the given order. Callers
// hold s.mu.
func (s *Store) replaceItems(cars []models.Car) {
	s.order = s.order[:0]
	s.items = make(map[string]*models.Car, len(cars))
	for i := range cars {
		car := cars[i]
		if car.ID == "" {
			continue
		}
		if _, ok := s.items[car.ID]; ok {
			continue
		}
		s.order = append(s.order, car.ID)
		s.items[car.ID] = &car
	}
}
