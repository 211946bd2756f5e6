package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"homes-scraper/browser"
	"homes-scraper/config"
	"homes-scraper/extract"
	"homes-scraper/models"
	"homes-scraper/storage"
	"homes-scraper/utils"
)

const recoveryBackoff = 2 * time.Second

// Result is everything one Run produced. It is returned even when Run
// fails, carrying whatever was collected before the failure.
type Result struct {
	Session    *CrawlSession
	Records    []*models.ListingRecord
	Report     *models.SessionReport
	OutputPath string
}

// Controller drives crawl sessions: discovery, visiting, pagination,
// checkpoints and the final persist.
type Controller struct {
	cfg    *config.Config
	launch browser.Launcher
	writer storage.RecordWriter
	site   Site
	logger *utils.Logger
	now    func() time.Time

	listingThrottle *utils.Throttle
	pageThrottle    *utils.Throttle
	backoff         time.Duration
	stepWait        time.Duration
	poll            time.Duration
}

// NewController creates a Controller.
func NewController(cfg *config.Config, launch browser.Launcher, writer storage.RecordWriter, logger *utils.Logger) *Controller {
	return &Controller{
		cfg:             cfg,
		launch:          launch,
		writer:          writer,
		site:            DefaultSite(),
		logger:          logger,
		now:             time.Now,
		listingThrottle: utils.NewThrottle(cfg.ListingDelayMin, cfg.ListingDelayMax),
		pageThrottle:    utils.NewThrottle(cfg.PageDelayMin, cfg.PageDelayMax),
		backoff:         recoveryBackoff,
		stepWait:        defaultStepWait,
		poll:            defaultPoll,
	}
}

// run is the per-session wiring shared by every step of one Run.
type run struct {
	*Controller
	sess        *CrawlSession
	log         *utils.Logger
	discovery   *Discovery
	health      *Health
	visitor     Visitor
	checkpoints *storage.CheckpointStore
}

// Run crawls searchURL until target records are collected, results run out
// or too many visits fail in a row. Records are persisted exactly once.
// A non-nil error means the browser could not be recovered; the Result
// still holds the partial records.
func (c *Controller) Run(ctx context.Context, name, searchURL string, target int) (*Result, error) {
	if target <= 0 {
		return nil, ErrInvalidTarget
	}
	if err := checkURL(searchURL); err != nil {
		return nil, err
	}

	sess := NewCrawlSession(name, searchURL, target, c.now())
	log := c.logger.With("session", sess.ID[:8]).With("name", name)
	log.Info("[controller] Starting session — target: %d, url: %s", target, searchURL)

	discovery := NewDiscovery(c.site, c.cfg.ResultWait, c.cfg.ScrollSteps, c.cfg.ScrollStepPx, log)
	discovery.stepWait = c.stepWait
	discovery.poll = c.poll
	health := NewHealth(c.launch, discovery, c.cfg.MaxRecoveryAttempts, c.backoff, log)
	defer func() {
		if err := health.Close(); err != nil {
			log.Debug("[controller] Closing browser: %v", err)
		}
	}()

	r := &run{
		Controller: c,
		sess:       sess,
		log:        log,
		discovery:  discovery,
		health:     health,
		checkpoints: storage.NewCheckpointStore(
			filepath.Join(c.cfg.OutputDir, name, "checkpoints"), name,
			c.cfg.CheckpointInterval, c.cfg.CheckpointKeep, log),
	}
	if c.cfg.VisitStrategy == config.StrategyClick {
		r.visitor = NewClickVisitor(health, discovery, c.site, c.cfg.NavTimeout, log)
	} else {
		r.visitor = NewTabVisitor(health, c.cfg.NavTimeout, log)
	}

	var (
		stop  models.StopReason
		fatal error
	)
	if err := health.Start(ctx, searchURL); err != nil {
		stop, fatal = r.classifyStart(ctx, err)
	} else {
		stop, fatal = r.loop(ctx)
	}
	sess.Recoveries = health.Recoveries()

	return r.finish(ctx, stop, fatal)
}

func (r *run) loop(ctx context.Context) (models.StopReason, error) {
	for {
		if err := r.health.Ensure(ctx); err != nil {
			return r.classify(ctx, err)
		}

		r.log.Info("[controller] Processing page %d (%d/%d records)", r.sess.Page, len(r.sess.Records), r.sess.Target)
		links, err := r.discovery.Collect(ctx, r.health.Page())
		if err != nil {
			if errors.Is(err, ErrResultsUnavailable) {
				r.log.Warn("[controller] Search results failed to load, likely bot detection: %v", err)
				return models.StopResultsUnavailable, nil
			}
			before := r.health.Recoveries()
			if eerr := r.health.Ensure(ctx); eerr != nil {
				return r.classify(ctx, eerr)
			}
			if r.health.Recoveries() > before {
				continue
			}
			r.log.Warn("[controller] Link collection failed: %v", err)
			return models.StopResultsUnavailable, nil
		}

		if stop, err := r.visitAll(ctx, links); stop != "" || err != nil {
			return stop, err
		}

		if r.sess.Page >= r.cfg.MaxPages {
			r.log.Warn("[controller] Reached the maximum page limit (%d)", r.cfg.MaxPages)
			return models.StopPageCeiling, nil
		}
		if err := r.pageThrottle.Wait(ctx); err != nil {
			return models.StopCancelled, nil
		}
		if err := r.health.Ensure(ctx); err != nil {
			return r.classify(ctx, err)
		}

		ok, err := r.discovery.Paginate(ctx, r.health.Page())
		if err != nil {
			if errors.Is(err, ErrResultsUnavailable) {
				r.log.Warn("[controller] Next page did not render results: %v", err)
				return models.StopResultsUnavailable, nil
			}
			r.log.Warn("[controller] Page navigation failed: %v", err)
			return models.StopExhausted, nil
		}
		if !ok {
			r.log.Info("[controller] No more pages available")
			return models.StopExhausted, nil
		}
		r.sess.Page++
		r.health.SetPage(r.sess.Page)
	}
}

// visitAll visits each new link on the current page. It returns a non-empty
// stop reason when the session must end.
func (r *run) visitAll(ctx context.Context, links []string) (models.StopReason, error) {
	threshold := r.cfg.FailureThreshold()

	for i, link := range links {
		if r.sess.Done() {
			return models.StopTargetReached, nil
		}
		if ctx.Err() != nil {
			return models.StopCancelled, nil
		}
		if r.sess.Visited.Contains(link) {
			r.log.Debug("[controller] Skipping already visited %s", link)
			continue
		}
		if err := r.listingThrottle.Wait(ctx); err != nil {
			return models.StopCancelled, nil
		}
		if err := r.health.Ensure(ctx); err != nil {
			return r.classify(ctx, err)
		}

		r.sess.MarkVisited(link)
		r.log.Info("[controller] Link %d/%d on page %d (%d still needed): %s",
			i+1, len(links), r.sess.Page, r.sess.Remaining(), link)

		var (
			rec    *models.ListingRecord
			report *extract.Report
		)
		err := r.visitor.Visit(ctx, link, func(p browser.Page) error {
			html, err := p.HTML(ctx)
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			rec, report = extract.Extract(link, html, r.now())
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrUnrecoverable) {
				return r.classify(ctx, err)
			}
			n := r.sess.RecordFailure()
			r.log.Warn("[controller] Visit failed (%d consecutive): %v", n, err)
			if n >= threshold {
				r.log.Error("[controller] %d consecutive failures, stopping session", n)
				return models.StopFailures, nil
			}
			continue
		}

		if !r.sess.Append(rec) {
			continue
		}
		// A page where nothing matched still counts as a record, but it
		// says nothing about whether visits are healthy.
		if rec.KnownFields() > 0 {
			r.sess.RecordSuccess()
		}
		r.log.Info("[controller] Scraped %d/%d (%s)", len(r.sess.Records), r.sess.Target, report)

		if _, err := r.checkpoints.MaybeCheckpoint(r.sess.Records); err != nil {
			r.log.Warn("[controller] Checkpoint failed: %v", err)
		}
	}

	if r.sess.Done() {
		return models.StopTargetReached, nil
	}
	return "", nil
}

// classify maps a loop-ending error to a stop reason. Browser loss is
// surfaced as an error even when the last recovery attempt failed on the
// result list.
func (r *run) classify(ctx context.Context, err error) (models.StopReason, error) {
	if ctx.Err() != nil {
		return models.StopCancelled, nil
	}
	if errors.Is(err, ErrResultsUnavailable) && !errors.Is(err, ErrUnrecoverable) {
		return models.StopResultsUnavailable, nil
	}
	r.log.Error("[controller] Fatal: %v", err)
	return models.StopFatal, err
}

// classifyStart treats a search page that never shows results on the first
// load as a blocked search rather than a lost browser.
func (r *run) classifyStart(ctx context.Context, err error) (models.StopReason, error) {
	if ctx.Err() == nil && errors.Is(err, ErrResultsUnavailable) {
		r.log.Warn("[controller] Search results never loaded, likely bot detection: %v", err)
		return models.StopResultsUnavailable, nil
	}
	return r.classify(ctx, err)
}

func (r *run) finish(ctx context.Context, stop models.StopReason, fatal error) (*Result, error) {
	persistCtx := context.WithoutCancel(ctx)
	report := &models.SessionReport{
		SessionID:   r.sess.ID,
		Name:        r.sess.Name,
		SearchURL:   r.sess.SearchURL,
		Target:      r.sess.Target,
		Achieved:    len(r.sess.Records),
		Pages:       r.sess.Page,
		Failures:    r.sess.Failures,
		Recoveries:  r.sess.Recoveries,
		Checkpoints: r.checkpoints.Written(),
		StopReason:  stop,
		StartedAt:   r.sess.StartedAt,
	}
	if fatal != nil {
		report.Fatal = fatal.Error()
	}

	out, err := r.writer.Persist(persistCtx, r.sess.Name, r.sess.Records)
	if err != nil {
		r.log.Error("[controller] Persisting records failed: %v", err)
	}
	report.OutputPath = out
	report.FinishedAt = r.now()

	if path, err := storage.WriteSummary(r.cfg.OutputDir, report); err != nil {
		r.log.Warn("[controller] Writing summary failed: %v", err)
	} else {
		r.log.Debug("[controller] Summary written to %s", path)
	}

	r.log.Info("[controller] Session finished — %d/%d records (%.1f%%), stop: %s",
		report.Achieved, report.Target, report.SuccessRate(), stop)
	return &Result{
		Session:    r.sess,
		Records:    r.sess.Records,
		Report:     report,
		OutputPath: out,
	}, fatal
}

// RunQueue runs every entry in order with a pause between sessions. A fatal
// session does not stop the queue; its error is joined into the result.
func (c *Controller) RunQueue(ctx context.Context, entries []config.SearchEntry) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for i, e := range entries {
		if ctx.Err() != nil {
			break
		}
		c.logger.Info("[controller] Queue %d/%d: %s", i+1, len(entries), e.Name)
		res, err := c.Run(ctx, e.Name, e.URL, e.Target)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}

		if i < len(entries)-1 && c.cfg.SessionDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.SessionDelay):
			}
		}
	}
	if len(results) > 0 {
		reports := make([]*models.SessionReport, 0, len(results))
		for _, res := range results {
			reports = append(reports, res.Report)
		}
		path, err := storage.WriteQueueSummary(c.cfg.OutputDir, models.NewQueueSummary(reports, c.now()))
		if err != nil {
			c.logger.Warn("[controller] Writing queue summary failed: %v", err)
		} else {
			c.logger.Info("[controller] Queue summary written to %s", path)
		}
	}
	return results, errors.Join(errs...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "search url must be absolute http(s): "+raw, err)
	}
	return nil
}
