// Package scheduler wires up the cron job that closes interviews which ran
// past their maxDuration.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const lockKey = "interview-service:expiry-lock"

// unlock deletes the lock only while it still carries this sweep's token.
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Expirer completes IN_PROGRESS interviews that are overdue at now.
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler wraps robfig/cron and runs the expiry sweep. When a Redis
// client is set, a short-lived lock keeps replicas from sweeping at the
// same time.
type Scheduler struct {
	cron    *cron.Cron
	rdb     *redis.Client
	expirer Expirer
	spec    string // cron spec, e.g. "@every 1m"
	lockTTL time.Duration
	now     func() time.Time
}

// New creates a Scheduler for spec. rdb may be nil.
func New(expirer Expirer, rdb *redis.Client, spec string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		rdb:     rdb,
		expirer: expirer,
		spec:    spec,
		lockTTL: 30 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the sweep and starts the cron loop. It returns an error
// for an invalid spec.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	log.Printf("[scheduler] Cron started, spec: %s", s.spec)
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[scheduler] Cron stopped")
}

// RunOnce performs one sweep and reports how many interviews it closed.
// It returns 0 without sweeping when another replica holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if s.rdb != nil {
		token := uuid.NewString()
		ok, err := s.rdb.SetNX(ctx, lockKey, token, s.lockTTL).Result()
		if err != nil {
			slog.Warn("expiry lock failed", "err", err)
			return 0
		}
		if !ok {
			return 0
		}
		defer func() {
			if err := unlock.Run(context.WithoutCancel(ctx), s.rdb, []string{lockKey}, token).Err(); err != nil {
				slog.Warn("expiry unlock failed", "err", err)
			}
		}()
	}

	n, err := s.expirer.ExpireOverdue(ctx, s.now())
	if err != nil {
		slog.Error("expiry sweep failed", "closed", n, "err", err)
		return n
	}
	if n > 0 {
		slog.Info("expired overdue interviews", "closed", n)
	}
	return n
}
