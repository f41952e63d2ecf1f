package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edupulse/portal-backend/internal/middleware"
	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/schedule"
	"github.com/edupulse/portal-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *stubClock) Now(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now, nil
}

func (s *stubClock) Fresh(ctx context.Context) (time.Time, error) {
	return s.Now(ctx)
}

func (s *stubClock) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

type stubFinder struct {
	exam schedule.ScheduledExam
}

func (s *stubFinder) FindScheduled(ctx context.Context, examID uuid.UUID) (schedule.ScheduledExam, error) {
	return s.exam, nil
}

type stubSignaler struct {
	signals int32
}

func (s *stubSignaler) SignalRefresh(ctx context.Context) error {
	atomic.AddInt32(&s.signals, 1)
	return nil
}

func scheduledExam(t *testing.T, start time.Time, minutes int) schedule.ScheduledExam {
	t.Helper()
	e := model.Exam{
		ExamID:        uuid.New(),
		ExamName:      "physics-final-b1",
		StartDate:     start.Format(model.DateLayout),
		StartTime:     start.Format(model.TimeLayout),
		TotalExamTime: minutes,
		Status:        model.ExamStatusPublished,
	}
	return schedule.ScheduledExam{
		Exam:   e,
		Window: model.ExamWindow{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)},
	}
}

// dialCountdown serves CountdownStream behind a test router with student
// claims pre-set and dials it.
func dialCountdown(t *testing.T, h *WSHandler, examID uuid.UUID) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/v1/student/exams/:exam_id/countdown", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: 42})
		h.CountdownStream(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/student/exams/" + examID.String() + "/countdown"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type countdownFrame struct {
	Event            string `json:"event"`
	ExamID           string `json:"exam_id"`
	ServerTime       string `json:"server_time"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Display          string `json:"display"`
}

func readFrame(t *testing.T, conn *websocket.Conn) countdownFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f countdownFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// Application pings arriving while tick frames stream must be answered on
// the same connection without corrupting either frame sequence.
func TestCountdownStreamAnswersPingsBetweenTicks(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := &stubClock{now: start.Add(-time.Hour)}
	wall := clockwork.NewFakeClock()
	signals := &stubSignaler{}
	exam := scheduledExam(t, start, 90)
	h := NewWSHandler(&stubFinder{exam: exam}, signals, clk, wall, zerolog.Nop(), nil)

	conn := dialCountdown(t, h, exam.ExamID)

	first := readFrame(t, conn)
	if first.Event != "tick" {
		t.Fatalf("first frame event = %q, want tick", first.Event)
	}
	if first.RemainingSeconds != 3600 {
		t.Errorf("RemainingSeconds = %d, want 3600", first.RemainingSeconds)
	}

	for i := 0; i < 3; i++ {
		if err := conn.WriteJSON(map[string]string{"action": "ping"}); err != nil {
			t.Fatalf("write ping %d: %v", i, err)
		}
		if f := readFrame(t, conn); f.Event != "pong" {
			t.Fatalf("frame after ping %d event = %q, want pong", i, f.Event)
		}
	}

	// The stream keeps ticking after the pings.
	if err := wall.BlockUntilContext(context.Background(), 2); err != nil {
		t.Fatalf("tickers never registered: %v", err)
	}
	clk.Set(start.Add(-59 * time.Minute))
	wall.Advance(time.Second)

	f := readFrame(t, conn)
	if f.Event != "tick" {
		t.Fatalf("frame after advance event = %q, want tick", f.Event)
	}
	if f.RemainingSeconds != 59*60 {
		t.Errorf("RemainingSeconds = %d, want %d", f.RemainingSeconds, 59*60)
	}
}

// Connecting to an exam that is already open gets one ended frame and a
// closed connection, with no schedule refresh enqueued: the lobby already
// categorized the exam as active.
func TestCountdownStreamExamAlreadyOpen(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := &stubClock{now: start.Add(time.Minute)}
	wall := clockwork.NewFakeClock()
	signals := &stubSignaler{}
	exam := scheduledExam(t, start, 90)
	h := NewWSHandler(&stubFinder{exam: exam}, signals, clk, wall, zerolog.Nop(), nil)

	conn := dialCountdown(t, h, exam.ExamID)

	f := readFrame(t, conn)
	if f.Event != "ended" {
		t.Fatalf("first frame event = %q, want ended", f.Event)
	}
	if f.ExamID != exam.ExamID.String() {
		t.Errorf("ExamID = %q, want %q", f.ExamID, exam.ExamID.String())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var discard countdownFrame
	if err := conn.ReadJSON(&discard); err == nil {
		t.Fatal("expected connection to close after ended frame")
	}
	if n := atomic.LoadInt32(&signals.signals); n != 0 {
		t.Errorf("refresh signals = %d, want 0 for an already-open exam", n)
	}
}

// A countdown that reaches zero mid-stream emits the ended frame and
// enqueues exactly one schedule refresh.
func TestCountdownStreamSignalsRefreshOnEnd(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := &stubClock{now: start.Add(-2 * time.Second)}
	wall := clockwork.NewFakeClock()
	signals := &stubSignaler{}
	exam := scheduledExam(t, start, 90)
	h := NewWSHandler(&stubFinder{exam: exam}, signals, clk, wall, zerolog.Nop(), nil)

	conn := dialCountdown(t, h, exam.ExamID)

	first := readFrame(t, conn)
	if first.Event != "tick" || first.RemainingSeconds != 2 {
		t.Fatalf("first frame = %+v, want tick with 2s remaining", first)
	}

	if err := wall.BlockUntilContext(context.Background(), 2); err != nil {
		t.Fatalf("tickers never registered: %v", err)
	}
	clk.Set(start)
	wall.Advance(time.Second)

	f := readFrame(t, conn)
	if f.Event != "ended" {
		t.Fatalf("frame after advance event = %q, want ended", f.Event)
	}

	// The server signals before closing, so a read error means it is done.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var discard countdownFrame
	if err := conn.ReadJSON(&discard); err == nil {
		t.Fatal("expected connection to close after ended frame")
	}
	if n := atomic.LoadInt32(&signals.signals); n != 1 {
		t.Errorf("refresh signals = %d, want 1", n)
	}
}

// A silent viewer is kept alive by server-initiated protocol pings.
func TestCountdownStreamKeepalivePing(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := &stubClock{now: start.Add(-6 * time.Hour)}
	wall := clockwork.NewFakeClock()
	signals := &stubSignaler{}
	exam := scheduledExam(t, start, 90)
	h := NewWSHandler(&stubFinder{exam: exam}, signals, clk, wall, zerolog.Nop(), nil)

	conn := dialCountdown(t, h, exam.ExamID)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	// Control frames only surface while reading; drain data frames.
	go func() {
		for {
			var f countdownFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
		}
	}()

	if err := wall.BlockUntilContext(context.Background(), 2); err != nil {
		t.Fatalf("tickers never registered: %v", err)
	}
	wall.Advance(pingPeriod)

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive ping within the ping period")
	}
}
