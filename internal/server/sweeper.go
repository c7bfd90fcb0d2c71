package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/safar-labs/safar/internal/agent"
	"github.com/safar-labs/safar/internal/store"
)

const sweepLockKey = "safar:sweep:lock"

// Sweeper force-fails runs that stopped making progress, e.g. after a server
// crash mid-pipeline, so their requirements do not stay wedged in IN_AGENT.
type Sweeper struct {
	Store  *store.Store
	Rdb    *redis.Client
	TTL    time.Duration
	Cron   string
	Stop   chan struct{}
	logger *log.Logger
}

// Start runs the sweep loop until Stop is closed. Invalid cron expressions fall back
// to hourly sweeps.
func (s *Sweeper) Start() {
	s.logger = log.New(log.Writer(), "[SWEEPER] ", log.LstdFlags)
	expr, err := cronexpr.Parse(s.Cron)
	if err != nil {
		s.logger.Printf("invalid sweep cron %q, falling back to @hourly: %v", s.Cron, err)
		expr = cronexpr.MustParse("@hourly")
	}
	go func() {
		for {
			next := expr.Next(time.Now())
			select {
			case <-s.Stop:
				return
			case <-time.After(time.Until(next)):
				s.sweep(context.Background())
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	// one sweeper across all replicas
	if s.Rdb != nil {
		ok, err := s.Rdb.SetNX(ctx, sweepLockKey, "1", 2*time.Minute).Result()
		if err != nil {
			s.logger.Printf("sweep lock: %v", err)
			return
		}
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, sweepLockKey)
	}

	cutoff := time.Now().Add(-s.TTL)
	stuck, err := s.Store.ListStuckRuns(ctx, cutoff)
	if err != nil {
		s.logger.Printf("listing stuck runs: %v", err)
		return
	}
	for _, run := range stuck {
		s.logger.Printf("force-failing run %s (no progress since %s)", run.ID, run.UpdatedAt.Format(time.RFC3339))
		run.Status = agent.RunFailed
		if run.Error == "" {
			run.Error = fmt.Sprintf("run force-failed after %s without progress", s.TTL)
		}
		run.UpdatedAt = time.Now()
		if err := s.Store.SaveAgentRun(ctx, &run); err != nil {
			s.logger.Printf("saving run %s: %v", run.ID, err)
			continue
		}
		if err := s.Store.SetRequirementAgentStatus(ctx, run.RequirementID, agent.AgentFailed); err != nil {
			s.logger.Printf("marking requirement %s failed: %v", run.RequirementID, err)
		}
	}
}
