package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/filters"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/scoring"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/logging"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/pkg/utils"
)

// Progress milestones. Fetching moves the job from progressListed to
// progressFetched and classification from there to progressScanned.
const (
	progressListed  = 10
	progressFetched = 30
	progressScanned = 90
	progressRanking = 95
)

// Orchestrator runs one scan job end to end. It keeps no per-job state and
// may run several jobs at once.
type Orchestrator struct {
	series   SeriesProvider
	universe UniverseProvider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. universe may be nil when every
// scan names its codes explicitly.
func NewOrchestrator(series SeriesProvider, universe UniverseProvider, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		series:   series,
		universe: universe,
		logger:   logger,
		now:      time.Now,
	}
}

type fetchResult struct {
	stock  models.Stock
	series *models.Series
	err    error
}

type classifyResult struct {
	code      string
	candidate scoring.Candidate
	err       error
}

// Run drives job from pending to a terminal state. Per-stock failures are
// logged and skipped; a universe failure, cancellation or an internal panic
// fails the job. Run always leaves the job terminal.
func (o *Orchestrator) Run(ctx context.Context, job *Job, cfg config.ScanConfig, u Universe) {
	_ = o.run(ctx, job, cfg, u)
}

// ClassifySync runs a scan on the calling goroutine and returns the ranked
// candidates. The config is validated first.
func (o *Orchestrator) ClassifySync(ctx context.Context, cfg config.ScanConfig, u Universe) ([]scoring.Candidate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	job := newJob(o.now())
	if err := o.run(ctx, job, cfg.Clone(), u); err != nil {
		return nil, err
	}
	return job.Snapshot().Result, nil
}

// run returns the error that failed the job, or nil once it completed.
func (o *Orchestrator) run(ctx context.Context, job *Job, cfg config.ScanConfig, u Universe) (err error) {
	logger := logging.WithTask(o.logger, job.ID())
	started := o.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
			logger.Error().Interface("panic", r).Msg("Scan coordinator panicked")
			o.failJob(job, err, logger)
		}
	}()

	if err := job.start(o.now()); err != nil {
		logger.Warn().Err(err).Msg("Job could not start")
		o.failJob(job, err, logger)
		return err
	}
	logging.LogJobTransition(logger, job.ID(), string(StatusPending), string(StatusRunning), 0)

	result, skipped, err := o.scan(ctx, job, &cfg, u, logger)
	if err != nil {
		o.failJob(job, err, logger)
		logging.LogScanFinished(logger, job.ID(), 0, skipped, o.now().Sub(started), err)
		return err
	}

	msg := fmt.Sprintf("Scan completed. Found %d platform stocks.", len(result))
	if err := job.complete(result, msg, o.now()); err != nil {
		logger.Warn().Err(err).Msg("Job could not complete")
		return err
	}
	logging.LogJobTransition(logger, job.ID(), string(StatusRunning), string(StatusCompleted), 100)
	logging.LogScanFinished(logger, job.ID(), len(result), skipped, o.now().Sub(started), nil)
	return nil
}

func (o *Orchestrator) failJob(job *Job, err error, logger zerolog.Logger) {
	from := job.Status()
	msg := "Scan failed: " + err.Error()
	if apperrors.Is(err, apperrors.ErrCancelled) {
		msg = MessageCancelled
	}
	if ferr := job.fail(err, msg, o.now()); ferr != nil {
		return
	}
	logging.LogJobTransition(logger, job.ID(), string(from), string(StatusFailed), job.Snapshot().Progress)
}

// scan is the coordinator. It alone mutates job; workers only post results.
func (o *Orchestrator) scan(ctx context.Context, job *Job, cfg *config.ScanConfig, u Universe, logger zerolog.Logger) ([]scoring.Candidate, int, error) {
	stocks, err := o.resolve(ctx, u)
	if err != nil {
		return nil, 0, err
	}
	o.advance(job, progressListed, fmt.Sprintf("Prepared list of %d stocks for scanning", len(stocks)))
	logging.LogScanStarted(logger, len(stocks), cfg.Windows, cfg.MaxWorkers)

	start, end := u.Range(cfg, o.now())
	retry := utils.ProviderRetry(cfg.RetryAttempts, cfg.RetryDelay,
		apperrors.ErrInvalidSeries, apperrors.ErrSeriesUnavailable, apperrors.ErrProviderTripped)

	var (
		series  []*models.Series
		skipped int
		done    int
	)
	err = runPool(ctx, job, cfg.MaxWorkers, stocks,
		func(ctx context.Context, s models.Stock) fetchResult {
			return o.fetch(ctx, retry, s, start, end)
		},
		func(r fetchResult) {
			done++
			if r.err != nil {
				skipped++
				logging.LogStockSkipped(logger, r.stock.Code, r.err)
			} else {
				series = append(series, r.series)
			}
			o.advance(job, scale(done, len(stocks), progressListed, progressFetched),
				fmt.Sprintf("Fetched %d/%d stocks", done, len(stocks)))
		})
	if err != nil {
		return nil, skipped, err
	}

	peers := filters.NewPeerSet(cfg.FundamentalYearsToCheck, series...)
	agg := scoring.NewAggregator(filters.DefaultManager(peers))

	candidates := make([]scoring.Candidate, 0, len(series))
	done = 0
	err = runPool(ctx, job, cfg.MaxWorkers, series,
		func(_ context.Context, s *models.Series) classifyResult {
			return classify(agg, s, cfg)
		},
		func(r classifyResult) {
			done++
			if r.err != nil {
				skipped++
				logging.LogStockSkipped(logger, r.code, r.err)
			} else {
				candidates = append(candidates, r.candidate)
			}
			o.advance(job, scale(done, len(series), progressFetched, progressScanned),
				fmt.Sprintf("Scanned %d/%d stocks", done, len(series)))
		})
	if err != nil {
		return nil, skipped, err
	}

	o.advance(job, progressRanking, "Ranking candidates")
	return scoring.Rank(candidates, cfg), skipped, nil
}

func (o *Orchestrator) advance(job *Job, progress int, msg string) {
	_ = job.advance(progress, msg, o.now())
}

// resolve turns the requested codes into stocks, filling name and industry
// from the universe when one is configured.
func (o *Orchestrator) resolve(ctx context.Context, u Universe) ([]models.Stock, error) {
	var listed []models.Stock
	if o.universe != nil {
		var err error
		listed, err = o.universe.Universe(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrUniverseUnavailable, err)
		}
	} else if len(u.Codes) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrUniverseUnavailable, "no stock codes and no universe provider")
	}

	if len(u.Codes) == 0 {
		return listed, nil
	}
	byCode := make(map[string]models.Stock, len(listed))
	for _, s := range listed {
		byCode[s.Code] = s
	}
	out := make([]models.Stock, 0, len(u.Codes))
	seen := make(map[string]bool, len(u.Codes))
	for _, code := range u.Codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		s, ok := byCode[code]
		if !ok {
			s = models.Stock{Code: code}
		}
		out = append(out, s)
	}
	return out, nil
}

func (o *Orchestrator) fetch(ctx context.Context, retry utils.RetryConfig, stock models.Stock, start, end time.Time) (r fetchResult) {
	r.stock = stock
	defer func() {
		if p := recover(); p != nil {
			r.err = fmt.Errorf("fetch panicked: %v", p)
		}
	}()

	series, err := utils.RetryWithResult(ctx, retry, func() (*models.Series, error) {
		return o.series.FetchSeries(ctx, stock.Code, start, end)
	})
	if err != nil {
		r.err = apperrors.NewDataError(stock.Code, "series", "fetch failed", err)
		return r
	}
	if series == nil {
		r.err = apperrors.NewDataError(stock.Code, "series", "provider returned nothing", apperrors.ErrSeriesUnavailable)
		return r
	}
	// The provider keeps ownership of what it returned; fill the header on a copy.
	own := *series
	if own.Code == "" {
		own.Code = stock.Code
	}
	if own.Name == "" {
		own.Name = stock.Name
	}
	if own.Industry == "" {
		own.Industry = stock.Industry
	}
	if err := own.Validate(); err != nil {
		r.err = err
		return r
	}
	r.series = &own
	return r
}

func classify(agg *scoring.Aggregator, s *models.Series, cfg *config.ScanConfig) (r classifyResult) {
	r.code = s.Code
	defer func() {
		if p := recover(); p != nil {
			r.err = fmt.Errorf("classification panicked: %v", p)
		}
	}()
	r.candidate = agg.Classify(s, cfg)
	return r
}

// runPool feeds items to at most workers goroutines and hands every result
// to handle on the calling goroutine. The job's cancel flag and ctx are
// checked between results; either stops the pool with ErrCancelled.
func runPool[T, R any](ctx context.Context, job *Job, workers int, items []T, work func(context.Context, T) R, handle func(R)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan R)
	go func() {
		p := pool.New().WithMaxGoroutines(max(workers, 1))
		for _, item := range items {
			if ctx.Err() != nil {
				break
			}
			p.Go(func() {
				r := work(ctx, item)
				select {
				case results <- r:
				case <-ctx.Done():
				}
			})
		}
		p.Wait()
		close(results)
	}()

	stopped := func() bool { return job.Cancelled() || ctx.Err() != nil }
	if stopped() {
		cancel()
	}
	for r := range results {
		if stopped() {
			cancel()
			continue
		}
		handle(r)
	}
	if stopped() {
		return apperrors.ErrCancelled
	}
	return nil
}

// scale maps done/total onto [from, to].
func scale(done, total, from, to int) int {
	if total <= 0 {
		return to
	}
	return from + (to-from)*done/total
}
