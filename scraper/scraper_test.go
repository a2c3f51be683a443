package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ayakut16/yokatlas-scraper/config"
	"github.com/ayakut16/yokatlas-scraper/models"
)

// fakeSession serves pre-rendered table pages without a browser.
type fakeSession struct {
	pages     []string
	pageIdx   int
	openErr   error
	tableErrs []error // returned (and consumed) before any page is served
	nextErr   error
	closed    bool
}

func (f *fakeSession) Open(ctx context.Context, url string) error { return f.openErr }

func (f *fakeSession) SetPageSize(ctx context.Context, n int) error { return nil }

func (f *fakeSession) ShowDetailedView(ctx context.Context) error { return nil }

func (f *fakeSession) TableHTML(ctx context.Context) (string, error) {
	if len(f.tableErrs) > 0 {
		err := f.tableErrs[0]
		f.tableErrs = f.tableErrs[1:]
		return "", err
	}
	if f.pageIdx >= len(f.pages) {
		return "", nil
	}
	return f.pages[f.pageIdx], nil
}

func (f *fakeSession) HasNextPage(ctx context.Context) (bool, error) {
	return f.pageIdx < len(f.pages)-1, nil
}

func (f *fakeSession) NextPage(ctx context.Context) error {
	if f.nextErr != nil {
		return f.nextErr
	}
	f.pageIdx++
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// makePage renders a table page holding rows for codes [from, to].
func makePage(from, to int) string {
	rows := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		rows = append(rows, testRow(testCode(i)))
	}
	return testTable(rows...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputFile = filepath.Join(t.TempDir(), "out.json")
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Second
	cfg.PageDelay = time.Second
	cfg.RunDelay = time.Second
	return cfg
}

func newTestScraper(cfg *config.Config, sessions ...*fakeSession) (*Scraper, *[]time.Duration) {
	idx := 0
	s := NewScraper(cfg, func(ctx context.Context) (Session, error) {
		session := sessions[idx]
		if idx < len(sessions)-1 {
			idx++
		}
		return session, nil
	})
	sleeps := &[]time.Duration{}
	s.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return s, sleeps
}

func readSnapshot(t *testing.T, path string) []*models.Program {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var records []*models.Program
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("snapshot does not parse: %v", err)
	}
	return records
}

func TestRunTwoPageScenario(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{pages: []string{makePage(1, 100), makePage(101, 137)}}
	s, _ := newTestScraper(cfg, session)

	result, err := s.Run(context.Background(), "say")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Pages != 2 {
		t.Errorf("Pages = %d, want 2", result.Pages)
	}
	if result.NewRecords != 137 {
		t.Errorf("NewRecords = %d, want 137", result.NewRecords)
	}
	if result.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0", result.Duplicates)
	}
	if result.TotalRecords != 137 {
		t.Errorf("TotalRecords = %d, want 137", result.TotalRecords)
	}
	if got := testutil.ToFloat64(s.Metrics.FlushesTotal.WithLabelValues("say")); got != 2 {
		t.Errorf("flushes = %v, want exactly 2", got)
	}
	if !session.closed {
		t.Errorf("session not closed after completed run")
	}

	records := readSnapshot(t, cfg.OutputFile)
	if len(records) != 137 {
		t.Fatalf("snapshot holds %d records, want 137", len(records))
	}
}

func TestRunResumeAfterInterruption(t *testing.T) {
	cfg := testConfig(t)

	// First run dies advancing past page 1: page 1 is already flushed.
	stuck := &fakeSession{
		pages:   []string{makePage(1, 100), makePage(101, 137)},
		nextErr: errors.New("click did not register"),
	}
	s, _ := newTestScraper(cfg, stuck)
	result, err := s.Run(context.Background(), "say")
	var navStuck ErrNavigationStuck
	if !errors.As(err, &navStuck) {
		t.Fatalf("first run error = %v, want ErrNavigationStuck", err)
	}
	if result.NewRecords != 100 {
		t.Fatalf("first run NewRecords = %d, want 100", result.NewRecords)
	}
	if !stuck.closed {
		t.Fatalf("session must be closed on the abort path")
	}
	if len(readSnapshot(t, cfg.OutputFile)) != 100 {
		t.Fatalf("interrupted run must leave the 100 flushed records on disk")
	}

	// Restart: page 1 is re-fetched, its rows filtered as duplicates, and
	// only page 2's records are appended.
	healthy := &fakeSession{pages: []string{makePage(1, 100), makePage(101, 137)}}
	s2, _ := newTestScraper(cfg, healthy)
	result2, err := s2.Run(context.Background(), "say")
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if result2.NewRecords != 37 {
		t.Errorf("second run NewRecords = %d, want 37", result2.NewRecords)
	}
	if result2.Duplicates != 100 {
		t.Errorf("second run Duplicates = %d, want 100", result2.Duplicates)
	}
	if result2.TotalRecords != 137 {
		t.Errorf("second run TotalRecords = %d, want 137", result2.TotalRecords)
	}

	records := readSnapshot(t, cfg.OutputFile)
	if len(records) != 137 {
		t.Fatalf("snapshot holds %d records, want 137 with zero duplicates", len(records))
	}
	seen := make(map[string]struct{}, len(records))
	for _, p := range records {
		if _, dup := seen[p.Code]; dup {
			t.Fatalf("duplicate code %s in snapshot", p.Code)
		}
		seen[p.Code] = struct{}{}
	}
}

func TestRunIdempotentRepeat(t *testing.T) {
	cfg := testConfig(t)

	for run := 0; run < 2; run++ {
		session := &fakeSession{pages: []string{makePage(1, 5)}}
		s, _ := newTestScraper(cfg, session)
		if _, err := s.Run(context.Background(), "ea"); err != nil {
			t.Fatalf("run %d error = %v", run, err)
		}
	}

	records := readSnapshot(t, cfg.OutputFile)
	if len(records) != 5 {
		t.Fatalf("two identical runs produced %d records, want 5", len(records))
	}
}

func TestRunSkipsMalformedRow(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{
		pages: []string{testTable(testRow(testCode(1)), brokenRow, testRow(testCode(2)))},
	}
	s, _ := newTestScraper(cfg, session)

	result, err := s.Run(context.Background(), "soz")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.NewRecords != 2 {
		t.Errorf("NewRecords = %d, want 2", result.NewRecords)
	}
	if result.MalformedRows != 1 {
		t.Errorf("MalformedRows = %d, want 1", result.MalformedRows)
	}
}

func TestRunRetriesPageLoadTimeout(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{
		pages: []string{makePage(1, 3)},
		tableErrs: []error{
			fmt.Errorf("read table: %w", context.DeadlineExceeded),
			fmt.Errorf("read table: %w", context.DeadlineExceeded),
		},
	}
	s, sleeps := newTestScraper(cfg, session)

	result, err := s.Run(context.Background(), "say")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", result.RetryCount)
	}
	if result.NewRecords != 3 {
		t.Errorf("NewRecords = %d, want 3", result.NewRecords)
	}

	retryDelays := 0
	for _, d := range *sleeps {
		if d == cfg.RetryDelay {
			retryDelays++
		}
	}
	if retryDelays < 2 {
		t.Errorf("recorded %d retry delays, want at least 2", retryDelays)
	}
}

func TestRunAbortsAfterRetryBudget(t *testing.T) {
	cfg := testConfig(t)
	timeout := fmt.Errorf("read table: %w", context.DeadlineExceeded)
	session := &fakeSession{
		pages:     []string{makePage(1, 3)},
		tableErrs: []error{timeout, timeout, timeout, timeout},
	}
	s, _ := newTestScraper(cfg, session)

	_, err := s.Run(context.Background(), "say")
	var loadTimeout ErrPageLoadTimeout
	if !errors.As(err, &loadTimeout) {
		t.Fatalf("Run() error = %v, want ErrPageLoadTimeout", err)
	}
	if !session.closed {
		t.Fatalf("session must be closed on the abort path")
	}
}

func TestRunAbsentTableFirstPage(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{pages: nil} // TableHTML serves empty markup
	s, _ := newTestScraper(cfg, session)

	_, err := s.Run(context.Background(), "dil")
	var sessionInit ErrSessionInit
	if !errors.As(err, &sessionInit) {
		t.Fatalf("Run() error = %v, want ErrSessionInit", err)
	}
	if _, statErr := os.Stat(cfg.OutputFile); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("no snapshot should be written for an aborted first page")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{pages: []string{makePage(1, 3)}}
	s, _ := newTestScraper(cfg, session)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, "say")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !session.closed {
		t.Fatalf("session must be closed when the run is canceled")
	}
}

func TestRunAllIsolatesFailures(t *testing.T) {
	cfg := testConfig(t)
	sessions := []*fakeSession{
		{openErr: errors.New("remote never became ready")}, // say
		{pages: []string{makePage(1, 2)}},                  // ea
		{pages: []string{makePage(3, 4)}},                  // soz
		{pages: []string{makePage(5, 6)}},                  // dil
	}
	s, sleeps := newTestScraper(cfg, sessions...)

	results, err := s.RunAll(context.Background())
	if err == nil {
		t.Fatalf("RunAll() should surface the failed score type")
	}
	if !strings.Contains(err.Error(), "say") {
		t.Fatalf("RunAll() error = %v, want mention of the failed score type", err)
	}
	if len(results) != len(config.ScoreTypes) {
		t.Fatalf("results = %d, want %d (failure must not stop later runs)", len(results), len(config.ScoreTypes))
	}
	for _, result := range results[1:] {
		if result.NewRecords != 2 {
			t.Errorf("%s NewRecords = %d, want 2", result.ScoreType, result.NewRecords)
		}
	}

	runDelays := 0
	for _, d := range *sleeps {
		if d == cfg.RunDelay {
			runDelays++
		}
	}
	if runDelays != len(config.ScoreTypes)-1 {
		t.Errorf("recorded %d inter-run delays, want %d", runDelays, len(config.ScoreTypes)-1)
	}
}
