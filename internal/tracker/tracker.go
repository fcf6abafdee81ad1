// Package tracker is the orchestration engine: it decides when each product
// is checked, runs the rate-limited fetch pipeline, records outcomes and
// hands qualifying price changes to the notifier.
package tracker

import (
	"context"
	"sync"
	"time"

	"pricewatch/internal/misc"
	"pricewatch/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type logger interface {
	Debug(v ...any)
	Info(v ...any)
	Error(v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// Notifier decides whether a price change is worth telling anyone about and
// fans it out. It reports whether a notification was dispatched.
type Notifier interface {
	DispatchPriceChange(ctx context.Context, p model.Product, oldPrice, newPrice float64, at time.Time) bool
}

// Config holds the engine's operational knobs. Zero values fall back to the
// defaults of withDefaults.
type Config struct {
	HighInterval    time.Duration
	RegularInterval time.Duration
	WeeklyScanDay   time.Weekday
	WeeklyScanHour  int
	MaintenanceHour int
	StaleThreshold  time.Duration

	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration

	ClassifierWindow int
	HighChangeRate   float64
	NewProductAge    time.Duration

	TrendWindow          int
	TrendDeadZonePercent float64

	MaxHistoryEntries int
	HistoryRetention  time.Duration
}

func (c Config) withDefaults() Config {
	if c.HighInterval <= 0 {
		c.HighInterval = 2 * time.Hour
	}
	if c.RegularInterval <= 0 {
		c.RegularInterval = 6 * time.Hour
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 24 * time.Hour
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ClassifierWindow < 2 {
		c.ClassifierWindow = 50
	}
	if c.HighChangeRate <= 0 {
		c.HighChangeRate = 0.20
	}
	if c.NewProductAge <= 0 {
		c.NewProductAge = 7 * 24 * time.Hour
	}
	if c.TrendWindow < 2 {
		c.TrendWindow = 30
	}
	if c.TrendDeadZonePercent <= 0 {
		c.TrendDeadZonePercent = 0.1
	}
	if c.MaxHistoryEntries < 1 {
		c.MaxHistoryEntries = 1000
	}
	return c
}

// Engine holds no per-product state between ticks; everything it knows about
// a product is read back from the store when needed.
type Engine struct {
	Store    Store
	Fetcher  Fetcher
	Limiter  *RateLimiter
	Notifier Notifier
	Logger   logger
	Config   Config

	productMu    sync.Mutex
	productLocks map[string]*sync.Mutex

	mu     sync.RWMutex
	jobs   map[string]*Job
	runCtx context.Context

	wg sync.WaitGroup
}

func NewEngine(store Store, fetcher Fetcher, limiter *RateLimiter, notifier Notifier, lg logger, cfg Config) *Engine {
	return &Engine{
		Store:        store,
		Fetcher:      fetcher,
		Limiter:      limiter,
		Notifier:     notifier,
		Logger:       lg,
		Config:       cfg.withDefaults(),
		productLocks: make(map[string]*sync.Mutex),
		jobs:         make(map[string]*Job),
	}
}

// UpdateOne checks a single product right now, outside the scheduling tiers
// but inside the rate limiter and retry pipeline. The returned record
// carries the outcome, failed fetches included. Unknown or untracked
// products yield ErrNotFound.
func (e *Engine) UpdateOne(ctx context.Context, productID string) (model.PriceRecord, error) {
	p, err := e.Store.ProductFind(ctx, productID)
	if err != nil {
		return model.PriceRecord{}, err
	}
	if !p.Active {
		return model.PriceRecord{}, errors.Wrapf(ErrNotFound, "product is no longer tracked, ID: %s", productID)
	}
	res, err := e.checkProduct(ctx, p)
	if err != nil {
		return model.PriceRecord{}, err
	}
	return res.record, nil
}

// UpdateAll starts an asynchronous check of every active product and returns
// its job handle immediately.
func (e *Engine) UpdateAll(ctx context.Context) (*Job, error) {
	ps, err := e.Store.ProductFindAllActive(ctx)
	if err != nil {
		return nil, err
	}
	return e.startJob("update-all", ps), nil
}

// ListStale returns the active products not successfully or unsuccessfully
// checked within threshold. A non-positive threshold uses the configured
// default.
func (e *Engine) ListStale(ctx context.Context, threshold time.Duration) ([]model.Product, error) {
	if threshold <= 0 {
		threshold = e.Config.StaleThreshold
	}
	return e.Store.ProductFindStale(ctx, time.Now().Add(-threshold))
}

// UpdateStale starts an asynchronous check of the stale products only.
func (e *Engine) UpdateStale(ctx context.Context, threshold time.Duration) (*Job, error) {
	ps, err := e.ListStale(ctx, threshold)
	if err != nil {
		return nil, err
	}
	return e.startJob("update-stale", ps), nil
}

// Status reports the live tracking counters.
func (e *Engine) Status(ctx context.Context) (model.TrackingStats, error) {
	return e.Store.TrackingStats(ctx)
}

// JobStatus looks up the progress of an asynchronous job.
func (e *Engine) JobStatus(id string) (JobStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, ok := e.jobs[id]
	if !ok {
		return JobStatus{}, false
	}
	return j.Snapshot(), true
}

func (e *Engine) startJob(name string, ps []model.Product) *Job {
	j := newJob(name, len(ps))
	e.mu.Lock()
	e.jobs[j.ID] = j
	ctx := e.runCtx
	e.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	e.Logger.Infof("startJob: Starting %s job %s for %d product(s)", name, j.ID, len(ps))
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer j.finish()
		e.checkBatch(ctx, name, ps, j)
	}()
	return j
}

type checkResult struct {
	record    model.PriceRecord
	succeeded bool
	notified  bool
}

// checkBatch runs the products through checkProduct with one worker per
// limiter slot. A product's failure never stops the batch; tallies land in
// j.
func (e *Engine) checkBatch(ctx context.Context, name string, ps []model.Product, j *Job) {
	if len(ps) == 0 {
		e.Logger.Infof("checkBatch: No products to check for %s", name)
		return
	}
	e.Logger.Infof("checkBatch: Checking %d product(s) for %s", len(ps), name)

	feed := make(chan model.Product)
	var wg sync.WaitGroup
	workers := misc.Min(e.Limiter.MaxConcurrent(), len(ps))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range feed {
				res, err := e.checkProduct(ctx, p)
				if err != nil {
					switch {
					case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
					case errors.Is(err, ErrNotFound):
						e.Logger.Debugf("checkBatch: Product removed concurrently during %s, ID: %s", name, p.ID)
					default:
						e.Logger.Errorf("checkBatch: Error checking Product: %s, ID: %s, err: %v",
							misc.StringLimit(p.Name, 45), p.ID, err)
					}
					j.record(checkResult{})
					continue
				}
				j.record(res)
			}
		}()
	}

	for _, p := range ps {
		if ctx.Err() != nil {
			break
		}
		feed <- p
	}
	close(feed)
	wg.Wait()

	snap := j.Snapshot()
	e.Logger.Infof("checkBatch: Finished %s, processed: %d, succeeded: %d, failed: %d, notified: %d",
		name, snap.Processed, snap.Succeeded, snap.Failed, snap.Notified)
}

// checkProduct is the single-product path every check takes: fetch through
// the pipeline, record the outcome, advance the check time and let the
// notifier look at a changed price. The per-product lock keeps concurrent
// batches and manual updates from interleaving writes for the same product.
func (e *Engine) checkProduct(ctx context.Context, p model.Product) (checkResult, error) {
	unlock := e.lockProduct(p.ID)
	defer unlock()

	name := misc.StringLimit(p.Name, 45)
	prev, err := e.Store.PriceRecordFindLatestSuccess(ctx, p.ID)
	hasPrev := true
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return checkResult{}, errors.WithMessagef(err, "error finding latest successful record for ProductID: %s", p.ID)
		}
		hasPrev = false
	}

	sample, err := e.fetchWithRetry(ctx, p)
	now := time.Now()
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			return checkResult{}, err
		}
		e.Logger.Errorf("checkProduct: Every attempt failed for Product: %s, ID: %s, kind: %s, err: %v",
			name, p.ID, fe.Kind, fe.Cause)
		rec := model.PriceRecord{
			ProductID: p.ID,
			Success:   false,
			Reason:    fe.Kind.String(),
			Timestamp: primitive.NewDateTimeFromTime(now),
		}
		if err := e.recordOutcome(ctx, p, rec); err != nil {
			return checkResult{}, err
		}
		return checkResult{record: rec}, nil
	}

	rec := model.PriceRecord{
		ProductID: p.ID,
		Price:     sample.Price,
		Success:   true,
		Changed:   hasPrev && sample.Price != prev.Price,
		Timestamp: primitive.NewDateTimeFromTime(now),
	}
	if err := e.recordOutcome(ctx, p, rec); err != nil {
		return checkResult{}, err
	}

	if sample.Name != "" && (sample.Name != p.Name || sample.ImageURL != p.ImageURL) {
		if err := e.Store.ProductMetadataUpdate(ctx, p.ID, sample.Name, sample.ImageURL); err != nil {
			e.Logger.Errorf("checkProduct: Error refreshing metadata for Product: %s, ID: %s, err: %v", name, p.ID, err)
		}
	}

	res := checkResult{record: rec, succeeded: true}
	if !hasPrev {
		e.Logger.Debugf("checkProduct: First successful check for Product: %s, ID: %s, price: %.2f", name, p.ID, sample.Price)
		return res, nil
	}
	if rec.Changed {
		e.Logger.Infof("checkProduct: Price changed for Product: %s, ID: %s, %.2f -> %.2f",
			name, p.ID, prev.Price, sample.Price)
		res.notified = e.Notifier.DispatchPriceChange(ctx, p, prev.Price, sample.Price, now)
	} else {
		e.Logger.Debugf("checkProduct: No price change for Product: %s, ID: %s", name, p.ID)
	}
	return res, nil
}

// recordOutcome appends the record and advances the product's check time.
// ErrNotFound means the product vanished mid-check and is passed through for
// the caller to skip; a write conflict is logged loudly and surfaced.
func (e *Engine) recordOutcome(ctx context.Context, p model.Product, rec model.PriceRecord) error {
	if err := e.Store.PriceRecordInsert(ctx, rec); err != nil {
		if errors.Is(err, ErrWriteConflict) {
			e.Logger.Errorf("recordOutcome: Write conflict inserting PriceRecord for ProductID: %s, err: %v", p.ID, err)
		}
		return err
	}
	if err := e.Store.ProductLastCheckedUpdate(ctx, p.ID, rec.Timestamp.Time()); err != nil {
		if errors.Is(err, ErrWriteConflict) {
			e.Logger.Errorf("recordOutcome: Write conflict advancing check time for ProductID: %s, err: %v", p.ID, err)
		}
		return err
	}
	return nil
}

func (e *Engine) lockProduct(id string) (unlock func()) {
	e.productMu.Lock()
	l, ok := e.productLocks[id]
	if !ok {
		l = &sync.Mutex{}
		e.productLocks[id] = l
	}
	e.productMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (e *Engine) classifierParams() ClassifierParams {
	return ClassifierParams{
		Window:         e.Config.ClassifierWindow,
		HighChangeRate: e.Config.HighChangeRate,
		NewProductAge:  e.Config.NewProductAge,
	}
}
