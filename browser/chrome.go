// Package browser drives the portal's rendered results table through a
// Chrome session. The scrape loop only depends on the session's capability
// surface, so the automation backend stays swappable.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures a Chrome session. Headless changes resource usage and
// observability only, never behavior.
type Options struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration // bound for each navigation step
}

// Chrome owns one browser session for the duration of a run.
type Chrome struct {
	opts        Options
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// New launches a browser session. Close must be called on every exit path.
func New(ctx context.Context, opts Options) (*Chrome, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	return &Chrome{
		opts:        opts,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes actions bounded by the per-step timeout.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stepCtx, cancel := context.WithTimeout(c.ctx, c.opts.Timeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// Open loads the initial results page and waits for the table container to
// render.
func (c *Chrome) Open(ctx context.Context, url string) error {
	if err := c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`#mydata`, chromedp.ByQuery),
		chromedp.Poll(`document.querySelector('#mydata tbody tr') !== null`, nil,
			chromedp.WithPollingInterval(200*time.Millisecond)),
	); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

// SetPageSize switches the results table to n rows per page and waits for the
// refresh. Source markup names the length dropdown mydata_length. Safe to
// call once after Open.
func (c *Chrome) SetPageSize(ctx context.Context, n int) error {
	script := `(() => {
		const sel = document.querySelector('select[name="mydata_length"]');
		if (!sel) return false;
		sel.value = ` + strconv.Quote(strconv.Itoa(n)) + `;
		sel.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`

	var ok bool
	if err := c.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("set page size: %w", err)
	}
	if !ok {
		return fmt.Errorf("set page size: length dropdown not found")
	}
	if err := c.waitTableSettled(ctx); err != nil {
		return fmt.Errorf("set page size: %w", err)
	}
	return nil
}

// ShowDetailedView switches the table to the detailed column layout. The
// toggle occasionally refuses a synthetic click, so a row already rendering
// the detailed cell count is accepted as success.
func (c *Chrome) ShowDetailedView(ctx context.Context) error {
	script := `(() => {
		const btn = document.querySelector('#toggle_view');
		if (!btn) return false;
		btn.click();
		return true;
	})()`

	var clicked bool
	if err := c.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("toggle detailed view: %w", err)
	}
	if clicked {
		if err := c.waitTableSettled(ctx); err != nil {
			return fmt.Errorf("toggle detailed view: %w", err)
		}
		return nil
	}

	var cellCount int
	if err := c.run(ctx, chromedp.Evaluate(
		`(() => { const r = document.querySelector('#mydata tbody tr'); return r ? r.querySelectorAll('td').length : 0; })()`,
		&cellCount,
	)); err != nil {
		return fmt.Errorf("toggle detailed view: %w", err)
	}
	if cellCount > 10 {
		return nil
	}
	return fmt.Errorf("toggle detailed view: control not found and table not in detailed layout")
}

// TableHTML returns the rendered table markup, waiting for the container to
// be present first. A timeout here is retryable for the caller.
func (c *Chrome) TableHTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx,
		chromedp.WaitReady(`#mydata`, chromedp.ByQuery),
		chromedp.OuterHTML(`#mydata`, &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("read table: %w", err)
	}
	return html, nil
}

// HasNextPage reports whether the pagination control offers another page.
func (c *Chrome) HasNextPage(ctx context.Context) (bool, error) {
	var has bool
	if err := c.run(ctx, chromedp.Evaluate(
		`document.querySelector('li.paginate_button.next:not(.disabled) a') !== null`,
		&has,
	)); err != nil {
		return false, fmt.Errorf("check next page: %w", err)
	}
	return has, nil
}

// NextPage advances the table one page and waits until the first row's
// program code changes, which separates a re-render of the same content from
// freshly loaded rows.
func (c *Chrome) NextPage(ctx context.Context) error {
	before, err := c.firstRowKey(ctx)
	if err != nil {
		return err
	}

	if err := c.run(ctx,
		chromedp.Click(`li.paginate_button.next:not(.disabled) a`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("click next page: %w", err)
	}

	poll := `(() => {
		const cell = document.querySelector('#mydata tbody tr td:nth-child(2)');
		if (!cell) return false;
		return cell.innerText.trim() !== ` + strconv.Quote(before) + `;
	})()`
	if err := c.run(ctx, chromedp.Poll(poll, nil,
		chromedp.WithPollingInterval(200*time.Millisecond))); err != nil {
		return fmt.Errorf("wait for page content to refresh: %w", err)
	}
	return nil
}

// firstRowKey reads the first row's program-code cell, used as the refresh
// marker while paging.
func (c *Chrome) firstRowKey(ctx context.Context) (string, error) {
	var key string
	if err := c.run(ctx, chromedp.Evaluate(
		`(() => { const cell = document.querySelector('#mydata tbody tr td:nth-child(2)'); return cell ? cell.innerText.trim() : ''; })()`,
		&key,
	)); err != nil {
		return "", fmt.Errorf("read first row key: %w", err)
	}
	return key, nil
}

// waitTableSettled waits for the DataTables processing indicator to clear and
// at least one row to be rendered.
func (c *Chrome) waitTableSettled(ctx context.Context) error {
	poll := `(() => {
		const busy = document.querySelector('#mydata_processing');
		if (busy && busy.style.display !== 'none') return false;
		return document.querySelector('#mydata tbody tr') !== null;
	})()`
	return c.run(ctx, chromedp.Poll(poll, nil,
		chromedp.WithPollingInterval(200*time.Millisecond)))
}

// Close tears down the tab and the browser process.
func (c *Chrome) Close() error {
	c.cancelTab()
	c.cancelAlloc()
	return nil
}
