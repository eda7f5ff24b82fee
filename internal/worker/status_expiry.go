package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/events"
	"github.com/spec-kit/referral-service/internal/observability"
)

const statusExpiryJob = "status_expiry"

// StaleReferralExpirer is the store operation the sweep relies on.
type StaleReferralExpirer interface {
	ExpireStale(ctx context.Context, from, to domain.ReferralStatus, cutoff, now time.Time) (int64, error)
}

// StatusExpiryConfig tunes the sweep schedule.
type StatusExpiryConfig struct {
	Interval     time.Duration
	StartupDelay time.Duration
	MaxAgeMonths int
	Timeout      time.Duration
}

// StatusExpiryJob cancels referrals left in MeetingHeld for too long. It runs once shortly
// after Start and then on every interval tick. A failed sweep is logged and retried on the next tick.
type StatusExpiryJob struct {
	store      StaleReferralExpirer
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        StatusExpiryConfig
	now        func() time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStatusExpiryJob builds the job. Zero config values fall back to hourly, 5s, 3 months.
func NewStatusExpiryJob(store StaleReferralExpirer, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger, cfg StatusExpiryConfig, now func() time.Time) *StatusExpiryJob {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	if cfg.MaxAgeMonths <= 0 {
		cfg.MaxAgeMonths = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &StatusExpiryJob{
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        now,
		done:       make(chan struct{}),
	}
}

// Start launches the schedule in the background.
func (j *StatusExpiryJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Info("status expiry job started",
		zap.Duration("interval", j.cfg.Interval),
		zap.Duration("startup_delay", j.cfg.StartupDelay))
}

// Stop ends the schedule and waits for an in-flight sweep to return.
func (j *StatusExpiryJob) Stop() {
	j.stopOnce.Do(func() { close(j.done) })
	j.wg.Wait()
	j.logger.Info("status expiry job stopped")
}

func (j *StatusExpiryJob) run() {
	defer j.wg.Done()

	startup := time.NewTimer(j.cfg.StartupDelay)
	defer startup.Stop()
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-startup.C:
			j.tick()
		case <-ticker.C:
			j.tick()
		}
	}
}

func (j *StatusExpiryJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()
	_, _ = j.Sweep(ctx)
}

// Sweep runs one pass: every MeetingHeld referral whose last status change is at or before
// now minus the max age moves to CancelledNoResponse stamped with now, in a single bulk update.
func (j *StatusExpiryJob) Sweep(ctx context.Context) (int64, error) {
	now := j.now()
	cutoff := now.AddDate(0, -j.cfg.MaxAgeMonths, 0)

	modified, err := j.store.ExpireStale(ctx,
		domain.ReferralStatusMeetingHeld,
		domain.ReferralStatusCancelledNoResponse,
		cutoff, now)
	if err != nil {
		j.metrics.RecordJob(statusExpiryJob, 0, true)
		j.logger.Error("status expiry sweep failed", zap.Error(err))
		return 0, err
	}
	j.metrics.RecordJob(statusExpiryJob, modified, false)

	if modified > 0 {
		j.logger.Info("referrals expired", zap.Int64("count", modified), zap.Time("cutoff", cutoff))
		if j.dispatcher != nil {
			if err := j.dispatcher.Publish(ctx, events.Event{
				Type:      events.EventReferralsExpired,
				Timestamp: now,
				Payload: events.ReferralsExpiredPayload{
					From:     domain.ReferralStatusMeetingHeld,
					To:       domain.ReferralStatusCancelledNoResponse,
					Cutoff:   cutoff,
					Modified: modified,
				},
			}); err != nil {
				j.logger.Warn("event handler failed", zap.String("event_type", string(events.EventReferralsExpired)), zap.Error(err))
			}
		}
	}
	return modified, nil
}
