package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wakala/exchangedesk/internal/dispatch"
)

const (
	DefaultTTL      = 12 * time.Hour
	DefaultSchedule = "@every 30m"
)

// Janitor periodically evicts sessions idle for longer than the TTL. The
// eviction itself runs in the correspondent's mailbox so it never tears a
// session that a handler is working on.
type Janitor struct {
	store    *Store
	submit   dispatch.Submitter
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewJanitor(store *Store, submit dispatch.Submitter, ttl time.Duration, schedule string, logger *slog.Logger) *Janitor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	logger = logger.With("component", "janitor")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Janitor{
		store:    store,
		submit:   submit,
		ttl:      ttl,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		logger:   logger,
	}
}

// Start registers the sweep and starts the cron scheduler.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.Sweep() }); err != nil {
		j.logger.Error("failed to schedule session sweep", "schedule", j.schedule, "error", err)
		return err
	}
	j.logger.Info("scheduled session sweep", "schedule", j.schedule, "ttl", j.ttl)
	j.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once a running
// sweep has finished.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// Sweep submits an eviction for every stale session and returns how many
// were submitted. Each eviction re-checks staleness inside the mailbox, so a
// session that became active in the meantime survives.
func (j *Janitor) Sweep() int {
	ids := j.store.Stale(j.ttl)
	submitted := 0
	for _, id := range ids {
		id := id
		err := j.submit.Submit(id, func(context.Context) {
			if j.store.EvictIfStale(id, j.ttl) {
				j.logger.Debug("session evicted", "correspondent_id", id)
			}
		})
		if err != nil {
			j.logger.Warn("session eviction not submitted", "correspondent_id", id, "error", err)
			continue
		}
		submitted++
	}
	if submitted > 0 {
		j.logger.Info("cleaned old sessions", "count", submitted)
	}
	return submitted
}
