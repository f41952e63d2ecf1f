package clock

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

func timeService(t *testing.T, serverTime string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"server_time":"` + serverTime + `"}`))
	}))
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNowBeforeReading(t *testing.T) {
	wall := clockwork.NewFakeClock()
	c := New("http://unused.invalid/time", SourceServer, time.Second, wall, zerolog.Nop())

	// Start not called: prefer-server with no reading is a transient state.
	if _, err := c.Now(context.Background()); !errors.Is(err, ErrNoReading) {
		t.Fatalf("Now() error = %v, want ErrNoReading", err)
	}
}

func TestServerBaselineTicks(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	srv := timeService(t, base.Format(time.RFC3339), http.StatusOK)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wall := clockwork.NewFakeClock()
	c := New(srv.URL, SourceServer, time.Second, wall, zerolog.Nop())
	c.Start(ctx)

	// Wait for the initial fetch to land.
	waitFor(t, func() bool {
		now, err := c.Now(ctx)
		return err == nil && now.Equal(base)
	})

	// Wait for the ticker loop to register, then advance three ticks.
	if err := wall.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker never registered: %v", err)
	}
	for i := 0; i < 3; i++ {
		wall.Advance(time.Second)
	}

	want := base.Add(3 * time.Second)
	waitFor(t, func() bool {
		now, err := c.Now(ctx)
		return err == nil && now.Equal(want)
	})
}

func TestFetchFailureFallsBackToWall(t *testing.T) {
	srv := timeService(t, "", http.StatusInternalServerError)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wall := clockwork.NewFakeClock()
	c := New(srv.URL, SourceServer, time.Second, wall, zerolog.Nop())
	c.Start(ctx)

	waitFor(t, func() bool {
		now, err := c.Now(ctx)
		return err == nil && now.Equal(wall.Now())
	})
}

func TestLocalSource(t *testing.T) {
	wall := clockwork.NewFakeClock()
	c := New("", SourceServer, time.Second, wall, zerolog.Nop())

	// No endpoint degrades to local mode regardless of preference.
	now, err := c.Now(context.Background())
	if err != nil {
		t.Fatalf("Now() error = %v", err)
	}
	if !now.Equal(wall.Now()) {
		t.Fatalf("Now() = %v, want wall clock %v", now, wall.Now())
	}

	fresh, err := c.Fresh(context.Background())
	if err != nil {
		t.Fatalf("Fresh() error = %v", err)
	}
	if !fresh.Equal(wall.Now()) {
		t.Fatalf("Fresh() = %v, want wall clock %v", fresh, wall.Now())
	}
}

func TestFreshReadsUpstream(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	srv := timeService(t, base.Format(time.RFC3339), http.StatusOK)
	defer srv.Close()

	wall := clockwork.NewFakeClock()
	c := New(srv.URL, SourceServer, time.Second, wall, zerolog.Nop())

	got, err := c.Fresh(context.Background())
	if err != nil {
		t.Fatalf("Fresh() error = %v", err)
	}
	if !got.Equal(base) {
		t.Fatalf("Fresh() = %v, want %v", got, base)
	}
}

func TestParseServerTime(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "rfc3339", raw: "2026-03-10T09:00:00+07:00"},
		{name: "no zone", raw: "2026-03-10T09:00:00"},
		{name: "space separated", raw: "2026-03-10 09:00:00"},
		{name: "garbage", raw: "not-a-time", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseServerTime(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseServerTime(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}
