package tracker

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"pricewatch/internal/analytics"
	"pricewatch/internal/misc"
	"pricewatch/internal/model"

	"github.com/pkg/errors"
)

type scheduleKind int

const (
	scheduleEvery scheduleKind = iota
	scheduleDaily
	scheduleWeekly
)

// schedule describes when a tier fires: either on a fixed interval or at a
// fixed local wall-clock time.
type schedule struct {
	kind     scheduleKind
	interval time.Duration
	weekday  time.Weekday
	hour     int
	minute   int
}

func every(d time.Duration) schedule {
	return schedule{kind: scheduleEvery, interval: d}
}

func dailyAt(hour, minute int) schedule {
	return schedule{kind: scheduleDaily, hour: hour, minute: minute}
}

func weeklyAt(day time.Weekday, hour, minute int) schedule {
	return schedule{kind: scheduleWeekly, weekday: day, hour: hour, minute: minute}
}

func (s schedule) nextRun(now time.Time) time.Time {
	switch s.kind {
	case scheduleDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case scheduleWeekly:
		next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
		next = next.AddDate(0, 0, (int(s.weekday)-int(now.Weekday())+7)%7)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	default:
		return now.Add(s.interval)
	}
}

// tier is one of the engine's scheduling lanes. busy keeps a tier from
// overlapping itself; the lanes never block each other.
type tier struct {
	name  string
	sched schedule
	run   func(context.Context)
	busy  int32
}

func (t *tier) tryStart() bool {
	return atomic.CompareAndSwapInt32(&t.busy, 0, 1)
}

func (t *tier) done() {
	atomic.StoreInt32(&t.busy, 0)
}

// Run drives the scheduling tiers until ctx is canceled, then waits for
// every in-flight tier run and background job to finish before returning.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	tiers := []*tier{
		{name: "HighPriorityTick", sched: every(e.Config.HighInterval), run: e.runHighPriorityTick},
		{name: "RegularTick", sched: every(e.Config.RegularInterval), run: e.runRegularTick},
		{name: "WeeklyDeepScan", sched: weeklyAt(e.Config.WeeklyScanDay, e.Config.WeeklyScanHour, 0), run: e.runWeeklyDeepScan},
		{name: "DailyMaintenance", sched: dailyAt(e.Config.MaintenanceHour, 0), run: e.runDailyMaintenance},
	}
	e.Logger.Infof("Run: Scheduler starting, high: %s, regular: %s, deep scan: %s %02d:00, maintenance: %02d:00",
		e.Config.HighInterval, e.Config.RegularInterval, e.Config.WeeklyScanDay, e.Config.WeeklyScanHour, e.Config.MaintenanceHour)
	for _, t := range tiers {
		e.wg.Add(1)
		go e.runTier(ctx, t)
	}

	<-ctx.Done()
	e.Logger.Info("Run: Shutting down, waiting for in-flight work to finish")
	e.wg.Wait()
	e.Logger.Info("Run: Scheduler stopped")
}

func (e *Engine) runTier(ctx context.Context, t *tier) {
	defer e.wg.Done()
	for {
		timer := time.NewTimer(time.Until(t.sched.nextRun(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		e.startTierRun(ctx, t)
	}
}

func (e *Engine) startTierRun(ctx context.Context, t *tier) {
	if !t.tryStart() {
		e.Logger.Warnf("startTierRun: %s fired while the previous run is still in progress, skipping", t.name)
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer t.done()
		start := time.Now()
		e.Logger.Infof("startTierRun: %s starting", t.name)
		t.run(ctx)
		e.Logger.Infof("startTierRun: %s finished in %s", t.name, time.Since(start).Round(time.Millisecond))
	}()
}

func (e *Engine) runHighPriorityTick(ctx context.Context) {
	ps, err := e.selectDueProducts(ctx, model.TierHigh, e.Config.HighInterval)
	if err != nil {
		e.Logger.Errorf("runHighPriorityTick: Error selecting products, err: %v", err)
		return
	}
	e.checkBatch(ctx, "high-priority tick", ps, newJob("high-priority-tick", len(ps)))
}

func (e *Engine) runRegularTick(ctx context.Context) {
	ps, err := e.selectDueProducts(ctx, model.TierRegular, e.Config.RegularInterval)
	if err != nil {
		e.Logger.Errorf("runRegularTick: Error selecting products, err: %v", err)
		return
	}
	e.checkBatch(ctx, "regular tick", ps, newJob("regular-tick", len(ps)))
}

// selectDueProducts picks the active products in tier whose last check is
// older than interval. A product never checked is always due.
func (e *Engine) selectDueProducts(ctx context.Context, t model.PriorityTier, interval time.Duration) ([]model.Product, error) {
	ps, err := e.Store.ProductFindAllActive(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var due []model.Product
	for _, p := range ps {
		if p.CheckedWithin(now, interval) {
			continue
		}
		recs, err := e.Store.PriceRecordFindRecent(ctx, p.ID, e.Config.ClassifierWindow)
		if err != nil && !errors.Is(err, ErrNotFound) {
			e.Logger.Errorf("selectDueProducts: Error loading history for ProductID: %s, err: %v", p.ID, err)
			continue
		}
		if Classify(p, recs, now, e.classifierParams()) != t {
			continue
		}
		due = append(due, p)
	}
	e.Logger.Debugf("selectDueProducts: %d of %d active product(s) due in tier %s", len(due), len(ps), t)
	return due, nil
}

// runWeeklyDeepScan checks every active product regardless of tier or check
// age, then publishes the weekly volatility report to the log.
func (e *Engine) runWeeklyDeepScan(ctx context.Context) {
	ps, err := e.Store.ProductFindAllActive(ctx)
	if err != nil {
		e.Logger.Errorf("runWeeklyDeepScan: Error listing products, err: %v", err)
		return
	}
	e.checkBatch(ctx, "weekly deep scan", ps, newJob("weekly-deep-scan", len(ps)))
	e.weeklyReport(ctx, ps)
}

type productSpread struct {
	product model.Product
	spread  float64
}

// weeklyReport logs the products whose price moved around the most, by
// relative spread over the recent window.
func (e *Engine) weeklyReport(ctx context.Context, ps []model.Product) {
	var spreads []productSpread
	for _, p := range ps {
		recs, err := e.Store.PriceRecordFindRecent(ctx, p.ID, e.Config.TrendWindow)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				e.Logger.Errorf("weeklyReport: Error loading history for ProductID: %s, err: %v", p.ID, err)
			}
			continue
		}
		if s := analytics.SpreadVolatility(recs); s > 0 {
			spreads = append(spreads, productSpread{product: p, spread: s})
		}
	}
	if len(spreads) == 0 {
		e.Logger.Info("weeklyReport: No price movement to report this week")
		return
	}
	sort.Slice(spreads, func(i, j int) bool { return spreads[i].spread > spreads[j].spread })

	top := misc.Min(5, len(spreads))
	e.Logger.Infof("weeklyReport: Most volatile products this week (top %d of %d)", top, len(spreads))
	for i := 0; i < top; i++ {
		s := spreads[i]
		e.Logger.Infof("weeklyReport: #%d %s, ID: %s, price spread: %.1f%%",
			i+1, misc.StringLimit(s.product.Name, 45), s.product.ID, s.spread)
	}
}

// runDailyMaintenance prunes history and logs the tracking counters. It
// does no fetching and can run any number of times without changing the
// result.
func (e *Engine) runDailyMaintenance(ctx context.Context) {
	ps, err := e.Store.ProductFindAllActive(ctx)
	if err != nil {
		e.Logger.Errorf("runDailyMaintenance: Error listing products, err: %v", err)
		return
	}
	var pruned int64
	for _, p := range ps {
		n, err := e.Store.PriceRecordPrune(ctx, p.ID, e.Config.MaxHistoryEntries)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				e.Logger.Errorf("runDailyMaintenance: Error pruning history for ProductID: %s, err: %v", p.ID, err)
			}
			continue
		}
		pruned += n
	}
	if e.Config.HistoryRetention > 0 {
		n, err := e.Store.PriceRecordDeleteOlderThan(ctx, time.Now().Add(-e.Config.HistoryRetention))
		if err != nil {
			e.Logger.Errorf("runDailyMaintenance: Error deleting expired records, err: %v", err)
		} else {
			pruned += n
		}
	}

	stats, err := e.Store.TrackingStats(ctx)
	if err != nil {
		e.Logger.Errorf("runDailyMaintenance: Error reading tracking stats, err: %v", err)
	} else {
		e.Logger.Infof("runDailyMaintenance: Tracking %d product(s), %d active, checks: %d, changes: %d, checks last 24h: %d, change rate: %.3f",
			stats.TotalProducts, stats.ActiveProducts, stats.TotalChecks, stats.TotalChanges, stats.ChecksLast24h, stats.ChangeRate)
	}
	e.Logger.Infof("runDailyMaintenance: Finished, pruned %d record(s)", pruned)
}
