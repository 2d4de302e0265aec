// Package agent implements the client side of the sync protocol: one
// logical realtime connection, a persistent local cache, a full resync on
// every (re)connect and an exponential-backoff reconnect loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/event"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// State of the logical connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

const maxBackoff = 30 * time.Second

// backoffDelay computes min(1s * 2^attempt, 30s).
func backoffDelay(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// Config carries everything the agent needs to reach the server.
type Config struct {
	ServerURL string // http(s)://host[:port]
	Token     string
	Device    model.DeviceInfo // descriptor sent on every registration

	// OnChange, when set, runs after every applied event and resync.
	OnChange func()
}

// Agent owns the process-wide sync connection.
type Agent struct {
	cfg    Config
	api    *APIClient
	cache  *Cache
	log    *zap.Logger
	dialer *websocket.Dialer

	mu      sync.Mutex
	state   State
	attempt int
}

// New constructs an agent around an opened cache.
func New(cfg Config, cache *Cache, log *zap.Logger) *Agent {
	return &Agent{
		cfg:    cfg,
		api:    NewAPIClient(cfg.ServerURL, cfg.Token),
		cache:  cache,
		log:    log,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// API exposes the REST client, for user-initiated actions like manual adds.
func (a *Agent) API() *APIClient { return a.api }

// Cache exposes the local mirror for reads.
func (a *Agent) Cache() *Cache { return a.cache }

// State reports the current connection state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) wsURL() string {
	u := a.cfg.ServerURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws?token=" + a.cfg.Token
}

// Run drives the connection until ctx is done or the credential is
// rejected. Rejection is terminal: the caller drops the cached token and
// goes back to its unauthenticated flow instead of retrying.
func (a *Agent) Run(ctx context.Context) error {
	defer a.setState(StateDisconnected)
	for {
		if ctx.Err() != nil {
			return nil
		}

		a.setState(StateConnecting)
		conn, _, err := a.dialer.DialContext(ctx, a.wsURL(), nil)
		if err != nil {
			a.setState(StateDisconnected)
			a.log.Warn("connect failed", zap.Error(err))
			if !a.waitBackoff(ctx) {
				return nil
			}
			continue
		}

		a.mu.Lock()
		a.state = StateOpen
		a.attempt = 0
		a.mu.Unlock()
		a.log.Info("connected, starting full resync")

		if err := a.Resync(ctx); err != nil {
			_ = conn.Close()
			if errors.Is(err, errs.ErrUnauthorized) {
				return err
			}
			// Resync failure is transient: drop the transport and retry
			// the whole cycle, the next connect resyncs again.
			a.log.Warn("resync failed", zap.Error(err))
			a.setState(StateDisconnected)
			if !a.waitBackoff(ctx) {
				return nil
			}
			continue
		}

		err = a.readLoop(ctx, conn)
		_ = conn.Close()
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			return errs.ErrUnauthorized
		}
		if ctx.Err() != nil {
			return nil
		}
		a.log.Info("disconnected", zap.Error(err))
		a.setState(StateDisconnected)
		if !a.waitBackoff(ctx) {
			return nil
		}
	}
}

// waitBackoff sleeps for the current backoff slot. There is only ever one
// pending timer because Run is the only goroutine that schedules it.
func (a *Agent) waitBackoff(ctx context.Context) bool {
	a.mu.Lock()
	delay := backoffDelay(a.attempt)
	a.attempt++
	a.mu.Unlock()

	a.log.Info("reconnect scheduled", zap.Duration("delay", delay))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Resync fetches the authoritative state and overwrites the local cache
// wholesale, then re-registers this device. This is the sole recovery
// mechanism for events missed while disconnected.
func (a *Agent) Resync(ctx context.Context) error {
	urls, err := a.api.ListURLs(ctx)
	if err != nil {
		return fmt.Errorf("fetch urls: %w", err)
	}
	devices, err := a.api.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("fetch devices: %w", err)
	}
	if err := a.cache.ReplaceAll(urls, devices); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}

	info := a.cfg.Device
	info.DeviceID = a.cache.DeviceID()
	dev, err := a.api.RegisterDevice(ctx, info)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	if err := a.cache.SetDeviceID(dev.ID); err != nil {
		return err
	}

	a.notify()
	return nil
}

func (a *Agent) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := a.apply(data); err != nil {
			a.log.Warn("dropping unreadable event", zap.Error(err))
		}
	}
}

// apply merges one inbound event into the cache.
func (a *Agent) apply(data []byte) error {
	env, err := event.Decode(data)
	if err != nil {
		return err
	}
	switch env.Type {
	case event.TypeURLAdded:
		rows, err := env.URLs()
		if err != nil {
			return err
		}
		if err := a.cache.ApplyAdded(rows); err != nil {
			return err
		}
	case event.TypeURLDeleted:
		ids, err := env.IDs()
		if err != nil {
			return err
		}
		if err := a.cache.ApplyDeleted(ids); err != nil {
			return err
		}
	case event.TypeDeviceOnline:
		dev, err := env.Device()
		if err != nil {
			return err
		}
		if err := a.cache.ApplyDevice(dev); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	a.notify()
	return nil
}

func (a *Agent) notify() {
	if a.cfg.OnChange != nil {
		a.cfg.OnChange()
	}
}
