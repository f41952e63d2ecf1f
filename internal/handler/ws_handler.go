package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/edupulse/portal-backend/internal/clock"
	"github.com/edupulse/portal-backend/internal/countdown"
	"github.com/edupulse/portal-backend/internal/middleware"
	"github.com/edupulse/portal-backend/internal/schedule"
	ws "github.com/edupulse/portal-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	// pongWait is how long a silent connection stays alive after the last
	// protocol pong. pingPeriod must be shorter than pongWait so a healthy
	// client always answers in time; browsers reply to protocol pings
	// automatically, so idle viewers keep long countdowns open without
	// sending application messages.
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	writeWait  = 10 * time.Second
)

// ScheduleFinder resolves a published exam and its validated window by ID.
type ScheduleFinder interface {
	FindScheduled(ctx context.Context, examID uuid.UUID) (schedule.ScheduledExam, error)
}

// RefreshSignaler enqueues a schedule cache rebuild.
type RefreshSignaler interface {
	SignalRefresh(ctx context.Context) error
}

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live exam countdowns over WebSocket.
type WSHandler struct {
	schedules ScheduleFinder
	refresh   RefreshSignaler
	clk       clock.Clock
	wall      clockwork.Clock
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	schedules ScheduleFinder,
	refresh RefreshSignaler,
	clk clock.Clock,
	wall clockwork.Clock,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		schedules: schedules,
		refresh:   refresh,
		clk:       clk,
		wall:      wall,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// CountdownStream godoc
// WS /ws/v1/student/exams/:exam_id/countdown
// Streams one tick frame per second until the exam opens, then an ended
// frame, after which the connection closes. The client refreshes its lobby
// on the ended frame.
//
// The stream loop is the connection's only writer: the read pump forwards
// application pings over a channel instead of writing pongs itself, since
// gorilla/websocket permits at most one writing goroutine per connection.
func (h *WSHandler) CountdownStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	exam, err := h.schedules.FindScheduled(c.Request.Context(), examID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Msg("Countdown stream opened")

	// Keepalive: the stream loop pings every pingPeriod and protocol pongs
	// extend the read deadline, so a viewer that never sends application
	// messages is not torn down while the countdown runs.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Read pump: forward pings to the stream loop, detect close.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				return
			}
			if msg.Action == ws.ActionPing {
				// Coalesce: an undelivered ping already covers this one.
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ended := false
	emitter := countdown.NewEmitter(exam.Window.Start, func() {
		ended = true
	})

	ctx := c.Request.Context()
	ticker := h.wall.NewTicker(time.Second)
	defer ticker.Stop()
	pinger := h.wall.NewTicker(pingPeriod)
	defer pinger.Stop()

	// True once at least one pre-start tick went out. Ended-at-connect means
	// the lobby already categorized this exam as open, so no refresh signal
	// is owed.
	sawCountdown := false

	for {
		now, err := h.clk.Now(ctx)
		if err != nil {
			// Still syncing: hold the stream, tick again rather than guessing.
			wsLog.Debug().Msg("Clock not ready, skipping tick")
		} else {
			rem, display := emitter.Observe(now)
			if ended {
				ws.WriteTyped(conn, ws.EndedResponse{
					Event:   ws.EventEnded,
					ExamID:  examID.String(),
					Display: display,
				})
				if sawCountdown {
					if serr := h.refresh.SignalRefresh(ctx); serr != nil {
						wsLog.Warn().Err(serr).Msg("Failed to signal schedule refresh")
					}
				} else {
					wsLog.Debug().Msg("Exam already open at connect, skipping refresh signal")
				}
				wsLog.Info().Msg("Countdown ended, stream closing")
				return
			}
			sawCountdown = true

			if werr := ws.WriteTyped(conn, ws.TickResponse{
				Event:            ws.EventTick,
				ServerTime:       now.Format(time.RFC3339),
				RemainingSeconds: int64(rem.Seconds()),
				Display:          display,
			}); werr != nil {
				return
			}
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				wsLog.Debug().Msg("Client closed countdown stream")
				return
			case <-pings:
				if werr := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); werr != nil {
					return
				}
			case <-pinger.Chan():
				if werr := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); werr != nil {
					return
				}
			case <-ticker.Chan():
				break wait
			}
		}
	}
}
