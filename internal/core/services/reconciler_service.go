package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/batch"
	"camrelay/pkg/tracing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sweep names, as used by the reconciler CLI and scheduler.
const (
	SweepStaleOffers = "stale-offers"
	SweepHeartbeats  = "heartbeats"
	SweepOrphans     = "orphans"
	SweepReap        = "reap"
	SweepRecount     = "recount"
)

// ReconcilerConfig holds the age thresholds of each sweep.
type ReconcilerConfig struct {
	StaleOfferTimeout time.Duration
	HeartbeatTimeout  time.Duration
	OrphanTimeout     time.Duration
	ReapTimeout       time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		StaleOfferTimeout: 10 * time.Minute,
		HeartbeatTimeout:  2 * time.Minute,
		OrphanTimeout:     time.Hour,
		ReapTimeout:       time.Hour,
	}
}

// ReconcilerService runs the liveness sweeps. Every sweep is idempotent and
// can overlap with another run of itself. A failed query aborts the sweep
// and is returned; a failed write chunk only lowers the affected count.
type ReconcilerService struct {
	cameras  ports.CameraRepository
	sessions ports.SessionRepository
	cfg      ReconcilerConfig
	now      func() time.Time
	metrics  MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewReconcilerService(
	cameras ports.CameraRepository,
	sessions ports.SessionRepository,
	cfg ReconcilerConfig,
	metrics MetricsRecorder,
	logger *zap.SugaredLogger,
) *ReconcilerService {
	return &ReconcilerService{
		cameras:  cameras,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
	}
}

// WithClock replaces the clock sweeps measure ages against.
func (r *ReconcilerService) WithClock(now func() time.Time) *ReconcilerService {
	r.now = now
	return r
}

// SweepNames lists every sweep Run accepts.
func SweepNames() []string {
	return []string{SweepStaleOffers, SweepHeartbeats, SweepOrphans, SweepReap, SweepRecount}
}

// Run executes the named sweep.
func (r *ReconcilerService) Run(ctx context.Context, name string) (SweepReport, error) {
	switch name {
	case SweepStaleOffers:
		return r.SweepStaleOffers(ctx)
	case SweepHeartbeats:
		return r.SweepHeartbeats(ctx)
	case SweepOrphans:
		return r.SweepOrphans(ctx)
	case SweepReap:
		return r.ReapDisconnected(ctx)
	case SweepRecount:
		return r.RecountConnectedMonitors(ctx)
	}
	return SweepReport{Sweep: name}, fmt.Errorf("unknown sweep %q", name)
}

// SweepStaleOffers deletes waiting sessions nobody answered in time.
func (r *ReconcilerService) SweepStaleOffers(ctx context.Context) (SweepReport, error) {
	return r.run(ctx, SweepStaleOffers, func(ctx context.Context) ([]domain.SessionMutation, error) {
		stale, err := r.sessions.Query(ctx, domain.SessionQuery{
			Status:        domain.SessionWaiting,
			CreatedBefore: r.now().Add(-r.cfg.StaleOfferTimeout),
		})
		if err != nil {
			return nil, err
		}
		return mutationsFor(stale, domain.SessionDelete), nil
	})
}

// SweepHeartbeats disconnects connected sessions whose heartbeat is missing
// or strictly older than the timeout.
func (r *ReconcilerService) SweepHeartbeats(ctx context.Context) (SweepReport, error) {
	return r.run(ctx, SweepHeartbeats, func(ctx context.Context) ([]domain.SessionMutation, error) {
		connected, err := r.sessions.Query(ctx, domain.SessionQuery{Status: domain.SessionConnected})
		if err != nil {
			return nil, err
		}
		cutoff := r.now().Add(-r.cfg.HeartbeatTimeout)

		var expired []*domain.Session
		for _, s := range connected {
			if s.LastHeartbeat == nil || s.LastHeartbeat.Before(cutoff) {
				expired = append(expired, s)
			}
		}
		return mutationsFor(expired, domain.SessionSetStatus), nil
	})
}

// SweepOrphans deletes connected sessions whose camera has been offline for
// longer than the timeout, or no longer exists. These are sessions where
// both peers are gone and no heartbeat will ever arrive.
func (r *ReconcilerService) SweepOrphans(ctx context.Context) (SweepReport, error) {
	return r.run(ctx, SweepOrphans, func(ctx context.Context) ([]domain.SessionMutation, error) {
		connected, err := r.sessions.Query(ctx, domain.SessionQuery{Status: domain.SessionConnected})
		if err != nil {
			return nil, err
		}
		cutoff := r.now().Add(-r.cfg.OrphanTimeout)

		gone := make(map[domain.CameraID]bool)
		var orphaned []*domain.Session
		for _, s := range connected {
			isGone, seen := gone[s.CameraID]
			if !seen {
				camera, err := r.cameras.Get(ctx, s.CameraID)
				switch {
				case domain.IsNotFound(err):
					isGone = true
				case err != nil:
					r.logger.Warnw("skipping camera in orphan sweep", "camera_id", s.CameraID, "error", err)
				default:
					isGone = !camera.IsOnline && camera.LastSeen.Before(cutoff)
				}
				gone[s.CameraID] = isGone
			}
			if isGone {
				orphaned = append(orphaned, s)
			}
		}
		return mutationsFor(orphaned, domain.SessionDelete), nil
	})
}

// ReapDisconnected deletes disconnected sessions created before the timeout.
func (r *ReconcilerService) ReapDisconnected(ctx context.Context) (SweepReport, error) {
	return r.run(ctx, SweepReap, func(ctx context.Context) ([]domain.SessionMutation, error) {
		old, err := r.sessions.Query(ctx, domain.SessionQuery{
			Status:        domain.SessionDisconnected,
			CreatedBefore: r.now().Add(-r.cfg.ReapTimeout),
		})
		if err != nil {
			return nil, err
		}
		return mutationsFor(old, domain.SessionDelete), nil
	})
}

// RecountConnectedMonitors rewrites each camera's cached connected-monitor
// count from its connected sessions. Only cameras whose cache is wrong are written.
func (r *ReconcilerService) RecountConnectedMonitors(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	ctx, span := tracing.TraceSweep(ctx, SweepRecount)
	defer span.End()

	report := SweepReport{Sweep: SweepRecount}
	err := func() error {
		connected, err := r.sessions.Query(ctx, domain.SessionQuery{Status: domain.SessionConnected})
		if err != nil {
			return err
		}
		cameras, err := r.cameras.List(ctx)
		if err != nil {
			return err
		}

		counts := make(map[domain.CameraID]int)
		for _, s := range connected {
			counts[s.CameraID]++
		}
		for _, camera := range cameras {
			want := counts[camera.ID]
			if camera.ConnectedMonitors == want {
				continue
			}
			report.Matched++
			err := r.cameras.Update(ctx, camera.ID, domain.CameraUpdate{ConnectedMonitors: &want})
			if err != nil && !domain.IsNotFound(err) {
				report.FailedChunks++
				r.logger.Warnw("failed to update connected monitor count", "camera_id", camera.ID, "error", err)
				continue
			}
			report.Affected++
		}
		return nil
	}()

	return r.finish(ctx, report, start, err)
}

// run queries the sweep's match set and commits it in batches no larger
// than the store allows. Chunks are independent.
func (r *ReconcilerService) run(ctx context.Context, name string, match func(ctx context.Context) ([]domain.SessionMutation, error)) (SweepReport, error) {
	start := time.Now()
	ctx, span := tracing.TraceSweep(ctx, name)
	defer span.End()

	report := SweepReport{Sweep: name}
	mutations, err := match(ctx)
	if err != nil {
		return r.finish(ctx, report, start, fmt.Errorf("%s sweep query failed: %w", name, err))
	}

	report.Matched = len(mutations)
	res := batch.ForEachChunk(ctx, mutations, r.sessions.MaxBatchSize(), r.sessions.ApplyBatch)
	report.Affected = res.Committed
	report.FailedChunks = res.FailedChunks
	if res.FirstErr != nil {
		r.logger.Warnw("sweep chunk failed", "sweep", name, "error", res.FirstErr)
	}
	return r.finish(ctx, report, start, nil)
}

func (r *ReconcilerService) finish(ctx context.Context, report SweepReport, start time.Time, err error) (SweepReport, error) {
	report.Duration = time.Since(start)
	r.metrics.SweepCompleted(report, err)
	trace.SpanFromContext(ctx).SetAttributes(tracing.AffectedKey.Int(report.Affected))

	if err != nil {
		tracing.RecordError(ctx, err)
		r.logger.Errorw("sweep failed", "sweep", report.Sweep, "duration", report.Duration, "error", err)
		return report, err
	}
	r.logger.Infow("sweep completed",
		"sweep", report.Sweep,
		"matched", report.Matched,
		"affected", report.Affected,
		"failed_chunks", report.FailedChunks,
		"duration", report.Duration,
	)
	return report, nil
}

// mutationsFor builds one mutation per session, ordered by session path so
// chunk boundaries are reproducible between runs.
func mutationsFor(sessions []*domain.Session, kind domain.SessionMutationKind) []domain.SessionMutation {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Ref().String() < sessions[j].Ref().String()
	})
	mutations := make([]domain.SessionMutation, len(sessions))
	for i, s := range sessions {
		mutations[i] = domain.SessionMutation{Ref: s.Ref(), Kind: kind}
		if kind == domain.SessionSetStatus {
			mutations[i].Status = domain.SessionDisconnected
		}
	}
	return mutations
}
