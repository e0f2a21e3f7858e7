// Package session keeps server-side visitor state keyed by an opaque cookie id.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores when no live record exists for an id.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidRecord is returned when saving a record without an id.
	ErrInvalidRecord = errors.New("invalid session record")
)

// Data is the per-visitor authentication state.
type Data struct {
	Authenticated bool   `json:"authenticated"`
	UserEmail     string `json:"user_email,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	PreviewMode   bool   `json:"preview_mode,omitempty"`
}

// IsAuthenticated requires both the flag and the cached email.
func (d Data) IsAuthenticated() bool {
	return d.Authenticated && d.UserEmail != ""
}

// Record is what stores persist.
type Record struct {
	ID        string    `json:"id"`
	Data      Data      `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return r == nil || !r.ExpiresAt.After(now)
}

// Store persists session records.
type Store interface {
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, record *Record) error
	Delete(ctx context.Context, id string) error
}

// Purger is implemented by stores that need expired records removed explicitly.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}
