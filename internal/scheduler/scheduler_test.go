package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeExpirer struct {
	calls  []time.Time
	n      int
	err    error
	during func()
}

func (f *fakeExpirer) ExpireOverdue(_ context.Context, now time.Time) (int, error) {
	f.calls = append(f.calls, now)
	if f.during != nil {
		f.during()
	}
	return f.n, f.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRunOnce(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		held      bool
		expirer   *fakeExpirer
		wantN     int
		wantCalls int
	}{
		{"sweeps", false, &fakeExpirer{n: 3}, 3, 1},
		{"nothing overdue", false, &fakeExpirer{}, 0, 1},
		{"lock held elsewhere", true, &fakeExpirer{n: 3}, 0, 0},
		{"partial failure", false, &fakeExpirer{n: 1, err: errors.New("db down")}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, rdb := newRedis(t)
			if tt.held {
				mr.Set(lockKey, "other")
			}
			s := New(tt.expirer, rdb, "@every 1m")
			s.now = func() time.Time { return at }

			if got := s.RunOnce(context.Background()); got != tt.wantN {
				t.Errorf("RunOnce = %d, want %d", got, tt.wantN)
			}
			if len(tt.expirer.calls) != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", len(tt.expirer.calls), tt.wantCalls)
			}
			if tt.wantCalls > 0 && !tt.expirer.calls[0].Equal(at) {
				t.Errorf("now = %v, want %v", tt.expirer.calls[0], at)
			}
			if !tt.held && mr.Exists(lockKey) {
				t.Error("lock not released after sweep")
			}
		})
	}
}

func TestRunOnceKeepsLockTakenOverDuringSweep(t *testing.T) {
	mr, rdb := newRedis(t)
	exp := &fakeExpirer{n: 1}
	exp.during = func() {
		// our lock lapsed mid-sweep and another replica acquired it
		mr.FastForward(time.Minute)
		mr.Set(lockKey, "other-replica")
	}
	s := New(exp, rdb, "@every 1m")

	if got := s.RunOnce(context.Background()); got != 1 {
		t.Fatalf("RunOnce = %d, want 1", got)
	}
	if v, err := mr.Get(lockKey); err != nil || v != "other-replica" {
		t.Errorf("lock = %q, %v; the other replica's lock must survive", v, err)
	}
}

func TestRunOnceWithoutRedis(t *testing.T) {
	exp := &fakeExpirer{n: 2}
	s := New(exp, nil, "@every 1m")
	if got := s.RunOnce(context.Background()); got != 2 {
		t.Errorf("RunOnce = %d, want 2", got)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&fakeExpirer{}, nil, "every so often")
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid cron spec")
	}
}
