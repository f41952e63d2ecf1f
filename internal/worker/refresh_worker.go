package worker

import (
	"context"
	"time"

	"github.com/edupulse/portal-backend/internal/config"
	"github.com/edupulse/portal-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RefreshWorker consumes schedule_refresh_queue and rebuilds the published
// schedule cache. Signals arrive when the exam window shifted under a student
// mid-flow, so lobbies stop serving the stale schedule as soon as possible.
type RefreshWorker struct {
	exams *service.ExamService
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewRefreshWorker creates a new RefreshWorker.
func NewRefreshWorker(exams *service.ExamService, rdb *redis.Client, log zerolog.Logger) *RefreshWorker {
	return &RefreshWorker{
		exams: exams,
		rdb:   rdb,
		log:   log.With().Str("component", "refresh_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *RefreshWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Honor signals already queued before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *RefreshWorker) processNext(ctx context.Context) {
	// BLPop blocks until a signal is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.ScheduleRefreshQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	// Coalesce bursts: one rebuild covers every queued signal.
	for {
		if _, err := w.rdb.LPop(ctx, config.WorkerKey.ScheduleRefreshQueue).Result(); err != nil {
			break
		}
	}

	if err := w.exams.WarmScheduleCache(ctx); err != nil {
		w.log.Error().Err(err).Msg("Schedule rebuild failed, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.ScheduleRefreshQueue, result[1])
		time.Sleep(5 * time.Second)
		return
	}

	w.log.Info().Msg("Published schedule cache rebuilt")
}

// drain handles signals still queued at shutdown.
func (w *RefreshWorker) drain(ctx context.Context) {
	if _, err := w.rdb.LPop(ctx, config.WorkerKey.ScheduleRefreshQueue).Result(); err != nil {
		return
	}
	// Any remaining signals collapse into one final rebuild.
	for {
		if _, err := w.rdb.LPop(ctx, config.WorkerKey.ScheduleRefreshQueue).Result(); err != nil {
			break
		}
	}
	if err := w.exams.WarmScheduleCache(ctx); err != nil {
		w.log.Error().Err(err).Msg("Drain rebuild failed")
		return
	}
	w.log.Info().Msg("Drained schedule refresh signals")
}
