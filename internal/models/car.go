// Package models defines the Car record and its synchronization semantics.
package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"
)

// SyncStatus describes a record's relationship to the remote store.
//
// The numeric values are part of the wire and cache format and must not
// be reordered.
type SyncStatus int

const (
	// Synced means the record matches the server's copy as far as the
	// client knows. Synced records have no cache entry.
	Synced SyncStatus = iota
	// ModifiedOffline means the record carries a local create or edit
	// that has not reached the server yet.
	ModifiedOffline
	// DeletedOffline means the record was deleted locally and the
	// deletion is queued for replay.
	DeletedOffline
)

func (s SyncStatus) String() string {
	switch s {
	case Synced:
		return "synced"
	case ModifiedOffline:
		return "modified-offline"
	case DeletedOffline:
		return "deleted-offline"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Car is the synchronized record. JSON field names follow the server wire
// format; the same encoding is used for local cache values.
type Car struct {
	// ID is assigned by the server, or generated from a timestamp by
	// NewClientID when the record is created offline.
	ID          string     `json:"_id,omitempty"`
	Name        string     `json:"name"`
	Horsepower  int        `json:"horsepower"`
	Automatic   bool       `json:"automatic"`
	ReleaseDate string     `json:"releaseDate"`
	Status      SyncStatus `json:"status"`
	// Version is the optimistic-concurrency counter maintained by the
	// server. It is authoritative only for records fetched from or
	// acknowledged by the server.
	Version int `json:"version,omitempty"`
}

// Clone returns an independent copy of the record.
func (c *Car) Clone() *Car {
	cp := *c
	return &cp
}

var ErrInvalidRecord = errors.New("invalid car record")

// Validate reports whether the record is usable as a Car. It is the
// decode-or-skip criterion for cache entries: anything stored under a cache
// key that is not a car (or is empty) fails here and is skipped.
func (c *Car) Validate() error {
	if c.Name == "" {
		return ErrInvalidRecord
	}
	if c.ReleaseDate != "" {
		if _, err := time.Parse(time.DateOnly, c.ReleaseDate); err != nil {
			return ErrInvalidRecord
		}
	}
	return nil
}

// Decode parses a JSON cache value into a Car, rejecting values that do not
// look like car records.
func Decode(data []byte) (*Car, error) {
	var c Car
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode serializes the record for the cache.
func (c *Car) Encode() ([]byte, error) {
	return json.Marshal(c)
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NewClientID returns a temporary record id for cars created offline:
// a millisecond timestamp rendered as a decimal string, bumped if the
// clock has not advanced so ids stay strictly increasing in-process.
func NewClientID() string {
	idMu.Lock()
	defer idMu.Unlock()
	now := time.Now().UnixMilli()
	if now <= lastID {
		now = lastID + 1
	}
	lastID = now
	return strconv.FormatInt(now, 10)
}

// IsClientID reports whether id looks like a client-generated temporary id
// (all decimal digits). Server-assigned ids contain non-digit characters.
func IsClientID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
