package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// Cache is the local mirror of the server state: an ordered, capacity-
// bounded copy of the URL collection (newest first) and the device roster,
// plus this installation's cached device id. It is a read cache, never an
// authority: a full resync overwrites it wholesale.
//
// All mutations run under one lock and persist to disk before returning,
// so an event applied mid-read is never lost across restarts.
type Cache struct {
	mu   sync.Mutex
	path string

	state cacheState
}

type cacheState struct {
	URLs     []model.SavedURL `json:"urls"`
	Devices  []model.Device   `json:"devices"`
	DeviceID *uuid.UUID       `json:"device_id,omitempty"`
}

// OpenCache loads the cache at path, starting empty if the file does not
// exist yet or does not parse (the next resync rebuilds it anyway).
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &c.state); err != nil {
		c.state = cacheState{}
	}
	return c, nil
}

func (c *Cache) persist() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// ReplaceAll is the full-resync path: discard everything and adopt the
// authoritative server state.
func (c *Cache) ReplaceAll(urls []model.SavedURL, devices []model.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.URLs = truncate(sortNewestFirst(urls))
	c.state.Devices = devices
	return c.persist()
}

// ApplyAdded merges freshly inserted rows: prepend, dedupe by id, re-sort
// newest first, truncate to capacity.
func (c *Cache) ApplyAdded(rows []model.SavedURL) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make([]model.SavedURL, 0, len(rows)+len(c.state.URLs))
	seen := make(map[uuid.UUID]struct{}, len(rows)+len(c.state.URLs))
	for _, u := range append(append([]model.SavedURL{}, rows...), c.state.URLs...) {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		merged = append(merged, u)
	}
	c.state.URLs = truncate(sortNewestFirst(merged))
	return c.persist()
}

// ApplyDeleted drops every entry whose id is in ids.
func (c *Cache) ApplyDeleted(ids []uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := c.state.URLs[:0]
	for _, u := range c.state.URLs {
		if _, gone := drop[u.ID]; !gone {
			kept = append(kept, u)
		}
	}
	c.state.URLs = kept
	return c.persist()
}

// ApplyDevice updates the matching device in place or prepends it.
func (c *Cache) ApplyDevice(d model.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.state.Devices {
		if c.state.Devices[i].ID == d.ID {
			c.state.Devices[i] = d
			return c.persist()
		}
	}
	c.state.Devices = append([]model.Device{d}, c.state.Devices...)
	return c.persist()
}

// SetDeviceID remembers the id the server assigned to this installation.
func (c *Cache) SetDeviceID(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.DeviceID = &id
	return c.persist()
}

// DeviceID returns the cached installation id, if any.
func (c *Cache) DeviceID() *uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.DeviceID == nil {
		return nil
	}
	id := *c.state.DeviceID
	return &id
}

// URLs returns a copy of the cached collection, newest first.
func (c *Cache) URLs() []model.SavedURL {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.SavedURL(nil), c.state.URLs...)
}

// Devices returns a copy of the cached roster.
func (c *Cache) Devices() []model.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Device(nil), c.state.Devices...)
}

func sortNewestFirst(urls []model.SavedURL) []model.SavedURL {
	sort.SliceStable(urls, func(i, j int) bool {
		return urls[i].CreatedAt.After(urls[j].CreatedAt)
	})
	return urls
}

func truncate(urls []model.SavedURL) []model.SavedURL {
	if len(urls) > model.MaxURLs {
		return urls[:model.MaxURLs]
	}
	return urls
}
