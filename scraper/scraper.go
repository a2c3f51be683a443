// Package scraper runs the page-by-page extraction loop against the rendered
// results table and persists records incrementally.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayakut16/yokatlas-scraper/config"
	"github.com/ayakut16/yokatlas-scraper/models"
	"github.com/ayakut16/yokatlas-scraper/store"
)

// Session is the capability surface the scrape loop needs from the rendering
// engine. The browser package provides the Chrome implementation; tests use a
// fake.
type Session interface {
	Open(ctx context.Context, url string) error
	SetPageSize(ctx context.Context, n int) error
	ShowDetailedView(ctx context.Context) error
	TableHTML(ctx context.Context) (string, error)
	HasNextPage(ctx context.Context) (bool, error)
	NextPage(ctx context.Context) error
	Close() error
}

// SessionFactory opens a fresh session for one score-type run.
type SessionFactory func(ctx context.Context) (Session, error)

// Scraper owns the scrape state machine: Init, then per page
// extract/dedup/persist/advance, until end-of-results or an unrecoverable
// error.
type Scraper struct {
	cfg        *config.Config
	newSession SessionFactory
	Metrics    *Metrics

	// sleep is swapped for a recording stub in tests so retry and
	// throttling delays stay deterministic.
	sleep func(time.Duration)
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, newSession SessionFactory) *Scraper {
	return &Scraper{
		cfg:        cfg,
		newSession: newSession,
		Metrics:    NewMetrics(),
		sleep:      time.Sleep,
	}
}

// Run scrapes one score type to completion. The returned result reflects
// whatever was persisted even when an error cut the run short; every page is
// flushed before the loop advances, so resuming is always safe.
func (s *Scraper) Run(ctx context.Context, scoreType string) (*models.ScrapeResult, error) {
	result := &models.ScrapeResult{ScoreType: scoreType, StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	st, err := store.Open(s.cfg.OutputPath(scoreType))
	var corrupt store.ErrCorruptState
	if errors.As(err, &corrupt) {
		// Salvage whatever parsed and keep going rather than aborting
		// the run. The lost tail is re-scraped below.
		s.Metrics.IncError(errorTypeLabel(corrupt))
		slog.Warn("prior output was corrupt, salvaged what parsed",
			slog.String("path", corrupt.Path),
			slog.Int("salvaged", corrupt.Salvaged),
			slog.Any("error", corrupt.Err),
		)
	} else if err != nil {
		return result, err
	}
	if st.Len() > 0 {
		slog.Info("resuming with existing records",
			slog.String("score_type", scoreType),
			slog.Int("existing", st.Len()),
		)
	}

	session, err := s.newSession(ctx)
	if err != nil {
		wrapped := ErrSessionInit{Err: err}
		s.Metrics.IncError(errorTypeLabel(wrapped))
		return result, wrapped
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			slog.Error("close session", slog.Any("error", cerr))
		}
	}()

	if err := s.initSession(ctx, session, scoreType); err != nil {
		s.Metrics.IncError(errorTypeLabel(err))
		return result, err
	}

	err = s.pageLoop(ctx, session, st, scoreType, result)
	result.TotalRecords = st.Len()
	if err != nil {
		s.Metrics.IncError(errorTypeLabel(err))
		return result, err
	}

	slog.Info("scrape complete",
		slog.String("score_type", config.ScoreTypeName(scoreType)),
		slog.Int("pages", result.Pages),
		slog.Int("new_records", result.NewRecords),
		slog.Int("total_records", result.TotalRecords),
		slog.String("output", st.Path()),
	)
	return result, nil
}

func (s *Scraper) initSession(ctx context.Context, session Session, scoreType string) error {
	url := config.BaseURL(scoreType)
	slog.Info("loading results table",
		slog.String("score_type", config.ScoreTypeName(scoreType)),
		slog.String("url", url),
	)
	if err := session.Open(ctx, url); err != nil {
		return ErrSessionInit{Err: err}
	}
	if err := session.SetPageSize(ctx, s.cfg.PageSize); err != nil {
		slog.Warn("could not set page size, continuing with default", slog.Any("error", err))
	}
	if err := session.ShowDetailedView(ctx); err != nil {
		slog.Warn("could not switch to detailed view, continuing with current view", slog.Any("error", err))
	}
	return nil
}

func (s *Scraper) pageLoop(ctx context.Context, session Session, st *store.Store, scoreType string, result *models.ScrapeResult) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pageStart := time.Now()

		data, err := s.extractWithRetry(ctx, session, scoreType, result)
		if err != nil {
			return err
		}
		if !data.TablePresent && page == 1 {
			return ErrSessionInit{Err: errors.New("results table absent on first page")}
		}
		if len(data.Programs) == 0 && data.MalformedRows == 0 {
			// Empty or absent table after the first page: end of results.
			return nil
		}

		accepted := st.Add(data.Programs)
		duplicates := len(data.Programs) - accepted
		if err := st.Flush(); err != nil {
			return fmt.Errorf("persist page %d: %w", page, err)
		}

		result.Pages++
		result.NewRecords += accepted
		result.Duplicates += duplicates
		result.MalformedRows += data.MalformedRows
		s.Metrics.IncPage(scoreType)
		s.Metrics.AddRecords(scoreType, accepted)
		s.Metrics.AddDuplicates(scoreType, duplicates)
		s.Metrics.AddMalformed(scoreType, data.MalformedRows)
		s.Metrics.IncFlush(scoreType)
		s.Metrics.ObservePageDuration(time.Since(pageStart).Seconds())

		slog.Info("page scraped",
			slog.String("score_type", scoreType),
			slog.Int("page", page),
			slog.Int("records", accepted),
			slog.Int("duplicates_skipped", duplicates),
			slog.Int("malformed_skipped", data.MalformedRows),
			slog.Int("total", st.Len()),
		)

		hasMore, err := session.HasNextPage(ctx)
		if err != nil {
			return classifyPageError(err)
		}
		if !hasMore {
			return nil
		}

		if err := s.advanceWithRetry(ctx, session, result); err != nil {
			return err
		}
		s.sleep(s.cfg.PageDelay)
	}
}

// extractWithRetry reads the current page, retrying load timeouts with a
// fixed delay up to the configured budget.
func (s *Scraper) extractWithRetry(ctx context.Context, session Session, scoreType string, result *models.ScrapeResult) (PageData, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			result.RetryCount++
			s.Metrics.IncRetries()
			s.sleep(s.cfg.RetryDelay)
			if err := ctx.Err(); err != nil {
				return PageData{}, err
			}
		}

		html, err := session.TableHTML(ctx)
		if err != nil {
			lastErr = classifyPageError(err)
			if retryable(lastErr) && ctx.Err() == nil {
				continue
			}
			return PageData{}, lastErr
		}
		return ExtractPage(html, scoreType)
	}
	return PageData{}, lastErr
}

// advanceWithRetry issues the next-page interaction, escalating to
// ErrNavigationStuck once the retry budget is spent.
func (s *Scraper) advanceWithRetry(ctx context.Context, session Session, result *models.ScrapeResult) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			result.RetryCount++
			s.Metrics.IncRetries()
			s.sleep(s.cfg.RetryDelay)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if lastErr = session.NextPage(ctx); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return ErrNavigationStuck{Err: lastErr}
}

// RunAll scrapes every score type sequentially with a fixed inter-run delay.
// A failed run is reported but does not prevent the remaining score types
// from being attempted.
func (s *Scraper) RunAll(ctx context.Context) ([]*models.ScrapeResult, error) {
	var results []*models.ScrapeResult
	var errs []error

	for i, scoreType := range config.ScoreTypes {
		if i > 0 {
			slog.Info("waiting before next score type", slog.Duration("delay", s.cfg.RunDelay))
			s.sleep(s.cfg.RunDelay)
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := s.Run(ctx, scoreType)
		results = append(results, result)
		if err != nil {
			slog.Error("score type run failed",
				slog.String("score_type", scoreType),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", scoreType, err))
			if errors.Is(err, context.Canceled) {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}
