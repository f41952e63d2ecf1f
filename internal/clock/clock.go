package clock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ErrNoReading is returned while the server clock prefers upstream time but
// no reading has materialized yet. Callers treat it as a transient loading
// state, never a fatal condition.
var ErrNoReading = errors.New("clock: no trusted reading yet")

// Source selects how trusted time is produced.
type Source string

const (
	// SourceServer syncs once from the upstream time service and advances
	// the reading locally, one second per tick.
	SourceServer Source = "server"
	// SourceLocal ticks straight off the wall clock. Debug/developer mode.
	SourceLocal Source = "local"
)

// Clock produces a trusted "current time" for schedule decisions.
//
// Now returns the cached ticking reading. Fresh performs a new upstream read;
// the entry gate uses it so window checks never trust a stale baseline.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
	Fresh(ctx context.Context) (time.Time, error)
}

// timePayload is the wire shape of the upstream time service response.
type timePayload struct {
	ServerTime string `json:"server_time"`
}

// ServerClock implements Clock against an upstream time endpoint.
//
// On Start it fetches the upstream time once and stores it as a baseline,
// then advances the baseline by exactly one second per ticker tick. There is
// no re-sync beyond the initial fetch; Fresh exists for callers that need a
// new authoritative read. If the fetch fails the clock falls back to the wall
// clock. Exactly one reading style is active at any instant.
type ServerClock struct {
	endpoint string
	source   Source
	httpc    *http.Client
	wall     clockwork.Clock
	log      zerolog.Logger

	mu          sync.Mutex
	baseline    time.Time
	usingServer bool // baseline holds a server reading
	fellBack    bool // fetch failed, wall clock is authoritative
}

// New creates a ServerClock. wall is the underlying tick source; pass
// clockwork.NewRealClock() in production and a fake clock in tests.
func New(endpoint string, source Source, fetchTimeout time.Duration, wall clockwork.Clock, log zerolog.Logger) *ServerClock {
	if endpoint == "" {
		source = SourceLocal
	}
	return &ServerClock{
		endpoint: endpoint,
		source:   source,
		httpc:    &http.Client{Timeout: fetchTimeout},
		wall:     wall,
		log:      log.With().Str("component", "clock").Logger(),
	}
}

// Start begins the clock's lifecycle: an asynchronous initial fetch followed
// by the 1-second ticker loop. The loop stops when ctx is cancelled, on every
// exit path, so intervals never leak across restarts.
func (c *ServerClock) Start(ctx context.Context) {
	if c.source == SourceLocal {
		c.log.Info().Msg("Clock running off wall clock")
		return
	}

	go func() {
		t, err := c.fetch(ctx)

		c.mu.Lock()
		if err != nil {
			// Non-fatal: log and let the wall clock take over.
			c.fellBack = true
			c.mu.Unlock()
			c.log.Warn().Err(err).Msg("Time service unreachable, falling back to wall clock")
			return
		}
		c.baseline = t
		c.usingServer = true
		c.mu.Unlock()

		c.log.Info().Time("server_time", t).Msg("Server time synced")
		c.run(ctx)
	}()
}

// run advances the baseline one second per tick until ctx is cancelled.
func (c *ServerClock) run(ctx context.Context) {
	ticker := c.wall.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.mu.Lock()
			c.baseline = c.baseline.Add(time.Second)
			c.mu.Unlock()
		}
	}
}

// Now returns the current trusted time.
//
// While the server source is preferred and no reading exists yet, Now reports
// ErrNoReading — the caller renders a loading state rather than a stale or
// blended value.
func (c *ServerClock) Now(ctx context.Context) (time.Time, error) {
	if c.source == SourceLocal {
		return c.wall.Now(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.usingServer:
		return c.baseline, nil
	case c.fellBack:
		return c.wall.Now(), nil
	default:
		return time.Time{}, ErrNoReading
	}
}

// Fresh performs a new upstream read, bypassing the ticking baseline. In
// local mode it returns the wall clock directly.
func (c *ServerClock) Fresh(ctx context.Context) (time.Time, error) {
	if c.source == SourceLocal {
		return c.wall.Now(), nil
	}
	return c.fetch(ctx)
}

func (c *ServerClock) fetch(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("build time request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch server time: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("time service status %d", resp.StatusCode)
	}

	var payload timePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Time{}, fmt.Errorf("decode time payload: %w", err)
	}

	return parseServerTime(payload.ServerTime)
}

// parseServerTime accepts the timestamp shapes upstream services emit.
func parseServerTime(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized server time %q", raw)
}
