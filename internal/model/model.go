// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// MaxURLs is the capacity of a user's saved URL collection. The server
// enforces it on insert and the agent truncates its local cache to it;
// the two values must match or the two views diverge after a resync.
const MaxURLs = 50

// Source tells how a saved URL entered the collection.
type Source string

const (
	// SourceAuto marks URLs captured automatically from browsing activity.
	SourceAuto Source = "auto"
	// SourceManual marks URLs the user saved explicitly.
	SourceManual Source = "manual"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool { return s == SourceAuto || s == SourceManual }

// SavedURL is a single synced URL. Rows are never physically deleted;
// a set DeletedAt means the row is a tombstone, excluded from live queries.
type SavedURL struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	URL       string     `json:"url"` // normalized form, unique among live rows per user
	Title     string     `json:"title"`
	Source    Source     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// NewURL is a client submission before normalization.
type NewURL struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Source Source `json:"source"`
}

// Device is a registered client installation. The client caches the id it
// gets back from the first registration and presents it on later ones.
type Device struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Browser  string    `json:"browser"`
	Platform string    `json:"platform"`
	LastSeen time.Time `json:"last_seen"`
}

// DeviceInfo is the descriptor a client sends when registering.
type DeviceInfo struct {
	DeviceID *uuid.UUID `json:"deviceId,omitempty"` // nil on first registration
	Name     string     `json:"name"`
	Browser  string     `json:"browser"`
	Platform string     `json:"platform"`
}

// User represents an account resolved from the identity provider.
type User struct {
	ID        uuid.UUID
	Email     string // unique
	Provider  string // identity provider name, e.g. "google"
	CreatedAt time.Time
}

// Tokens collects an issued access token with its expiry.
type Tokens struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
