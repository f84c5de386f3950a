package store

import (
	"context"
	"errors"

	"github.com/Cobzariu/CarApp/internal/cache"
	"github.com/Cobzariu/CarApp/internal/models"
)

type pendingEntry struct {
	key string
	car *models.Car
}

// scanPending is the single enumerate → decode-or-skip → classify pass
// shared by the offline Load fallback and ReplayPending. Each entry is
// re-read by key, so a save or delete dispatched while the scan runs is
// observed instead of a stale enumeration snapshot. Values that do not
// decode as car records are skipped and left in place for manual cleanup.
func (s *Store) scanPending(ctx context.Context) []pendingEntry {
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		s.logger.Error(ctx, "cache enumeration failed", "err", err)
		return nil
	}

	var entries []pendingEntry
	for _, key := range keys {
		value, err := s.cache.Get(ctx, key)
		if errors.Is(err, cache.ErrNotFound) {
			// Removed between enumeration and read.
			continue
		}
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable cache entry", "key", key, "err", err)
			continue
		}
		car, err := models.Decode([]byte(value))
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable cache entry", "key", key, "err", err)
			continue
		}
		entries = append(entries, pendingEntry{key: key, car: car})
	}
	return entries
}

// ReplayPending drains queued offline mutations through the remote store.
// Modified records replay as connected saves; a successful round-trip
// purges the cache entry (under its original key, even when the server
// re-keyed the record). Queued deletions replay as connected deletes and
// are purged after the attempt regardless of outcome — a failed deletion
// replay is not retried automatically. Operations on distinct ids are
// independent; nothing here depends on their relative order.
func (s *Store) ReplayPending(ctx context.Context) {
	entries := s.scanPending(ctx)
	if len(entries) == 0 {
		return
	}
	s.logger.Info(ctx, "replaying pending mutations", "count", len(entries))

	for _, e := range entries {
		switch e.car.Status {
		case models.ModifiedOffline:
			_, synced, err := s.save(ctx, e.car, true)
			if err != nil {
				s.logger.Error(ctx, "replay save failed locally", "key", e.key, "err", err)
				continue
			}
			if synced {
				if err := s.cache.Remove(ctx, e.key); err != nil {
					s.logger.Warn(ctx, "failed to purge replayed entry", "key", e.key, "err", err)
				}
			}
		case models.DeletedOffline:
			if _, err := s.delete(ctx, e.car, true); err != nil {
				s.logger.Error(ctx, "replay delete failed locally", "key", e.key, "err", err)
			}
			if err := s.cache.Remove(ctx, e.key); err != nil {
				s.logger.Warn(ctx, "failed to purge replayed entry", "key", e.key, "err", err)
			}
		default:
			// A synced record should never be cached; leave it alone.
			s.logger.Warn(ctx, "cache entry with unexpected status", "key", e.key,
				"status", e.car.Status.String())
		}
	}
}
