/*
scheduler.go - Periodic tier sweep

PURPOSE:
  Periodically re-resolves every member's tier and reports carried-over
  tiers that are about to lapse. Tier status is never persisted, so the
  sweep changes nothing; it exists so officers can warn members before a
  previous-cycle tier falls back at the end of the current cycle.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps once immediately on start
  - Resolves members in parallel with a bounded errgroup
  - Keeps the last SweepReport for GET /api/admin/tier-sweep

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour, 0 disables)
  - ExpiryWindow:  How far ahead an expiry counts as "expiring" (default: 30 days)
  - Concurrency:   Parallel resolutions (default: 8)

USAGE:
  sweeper := NewTierSweepScheduler(store, resolver, clock, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: GetTierSweep / RunTierSweep endpoints
  - generic/resolver.go: Carryover rule
*/
package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/store/sqlite"
)

// ExpiringTier is a carried-over tier that lapses within the expiry window.
type ExpiringTier struct {
	MemberID   generic.MemberID
	Tier       generic.TierKey
	ExpiryDate time.Time

	// FallbackTo is the tier current-cycle points qualify for today.
	FallbackTo generic.TierKey

	// PointsToKeep is how many more current-cycle points keep Tier.
	PointsToKeep generic.Points
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	RanAt    time.Time
	Members  int
	Degraded int
	Failed   int
	Expiring []ExpiringTier
}

// TierSweepScheduler runs periodic tier sweeps.
type TierSweepScheduler struct {
	Store         *sqlite.Store
	Resolver      *generic.TierResolver
	Clock         generic.Clock
	Logger        *zap.Logger
	CheckInterval time.Duration
	ExpiryWindow  time.Duration
	Concurrency   int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	reportMu sync.RWMutex
	last     SweepReport
}

// NewTierSweepScheduler creates a new scheduler.
func NewTierSweepScheduler(store *sqlite.Store, resolver *generic.TierResolver, clock generic.Clock, logger *zap.Logger) *TierSweepScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TierSweepScheduler{
		Store:         store,
		Resolver:      resolver,
		Clock:         clock,
		Logger:        logger.Named("tier-sweep"),
		CheckInterval: 1 * time.Hour,
		ExpiryWindow:  30 * 24 * time.Hour,
		Concurrency:   8,
	}
}

// Start begins the scheduler. A zero CheckInterval leaves it disabled.
func (ts *TierSweepScheduler) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.CheckInterval <= 0 {
		ts.Logger.Info("disabled, not starting")
		return
	}
	if ts.ticker != nil {
		return
	}

	ts.ticker = time.NewTicker(ts.CheckInterval)
	ts.stop = make(chan struct{})
	ts.wg.Add(1)

	go ts.run(ts.ticker, ts.stop)

	ts.Logger.Info("started", zap.Duration("interval", ts.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (ts *TierSweepScheduler) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.ticker != nil {
		ts.ticker.Stop()
		close(ts.stop)
		ts.wg.Wait()
		ts.ticker = nil
		ts.Logger.Info("stopped")
	}
}

func (ts *TierSweepScheduler) run(ticker *time.Ticker, stop chan struct{}) {
	defer ts.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	ts.sweepAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			ts.sweepAndLog(ctx)
		case <-stop:
			return
		}
	}
}

func (ts *TierSweepScheduler) sweepAndLog(ctx context.Context) {
	report, err := ts.Sweep(ctx)
	if err != nil {
		if !generic.IsAbandoned(err) {
			ts.Logger.Error("sweep failed", zap.Error(err))
		}
		return
	}
	ts.Logger.Info("sweep completed",
		zap.Int("members", report.Members),
		zap.Int("expiring", len(report.Expiring)),
		zap.Int("degraded", report.Degraded),
		zap.Int("failed", report.Failed),
	)
}

// Sweep resolves every member's tier at the clock's now and records the
// report. Per-member failures are counted, not returned; only listing
// members or cancellation fails the sweep.
func (ts *TierSweepScheduler) Sweep(ctx context.Context) (SweepReport, error) {
	now := ts.Clock.Now()

	members, err := ts.Store.ListMembers(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{RanAt: now, Members: len(members)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if ts.Concurrency > 0 {
		g.SetLimit(ts.Concurrency)
	}
	for _, m := range members {
		memberID := generic.MemberID(m.ID)
		g.Go(func() error {
			status, err := ts.Resolver.ResolveActiveTier(gctx, memberID, now)
			if err != nil {
				if generic.IsAbandoned(err) {
					return err
				}
				ts.Logger.Warn("member resolution failed",
					zap.String("member_id", string(memberID)), zap.Error(err))
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if status.Degraded() {
				report.Degraded++
			}
			if e, ok := ts.expiring(status, now); ok {
				report.Expiring = append(report.Expiring, e)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepReport{}, err
	}

	sort.Slice(report.Expiring, func(i, j int) bool {
		a, b := report.Expiring[i], report.Expiring[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		return a.MemberID < b.MemberID
	})

	ts.reportMu.Lock()
	ts.last = report
	ts.reportMu.Unlock()
	return report, nil
}

func (ts *TierSweepScheduler) expiring(status generic.TierStatus, now time.Time) (ExpiringTier, bool) {
	if status.TierSource != generic.TierSourcePrevious {
		return ExpiringTier{}, false
	}
	if status.ExpiryDate.Sub(now) > ts.ExpiryWindow {
		return ExpiringTier{}, false
	}
	var keep generic.Points
	if th, ok := ts.Resolver.Table.Lookup(status.ActiveTier); ok {
		keep = (th.MinimumPoints - status.CurrentCycleEarnedPoints).Max(0)
	}
	return ExpiringTier{
		MemberID:     status.MemberID,
		Tier:         status.ActiveTier,
		ExpiryDate:   status.ExpiryDate,
		FallbackTo:   status.CurrentTier,
		PointsToKeep: keep,
	}, true
}

// LastReport returns the most recent sweep. RanAt is zero before the first.
func (ts *TierSweepScheduler) LastReport() SweepReport {
	ts.reportMu.RLock()
	defer ts.reportMu.RUnlock()
	return ts.last
}
