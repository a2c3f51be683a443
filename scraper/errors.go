package scraper

import (
	"context"
	"errors"

	"github.com/ayakut16/yokatlas-scraper/parser"
	"github.com/ayakut16/yokatlas-scraper/store"
)

// ErrSessionInit indicates the remote page never reached a usable state.
// Run-fatal for the current score type.
type ErrSessionInit struct {
	Err error
}

func (e ErrSessionInit) Error() string {
	return "session init: " + e.Err.Error()
}

func (e ErrSessionInit) Unwrap() error {
	return e.Err
}

// ErrPageLoadTimeout indicates the rendered table did not appear in time.
// Page-local and retryable.
type ErrPageLoadTimeout struct {
	Err error
}

func (e ErrPageLoadTimeout) Error() string {
	return "page load timeout: " + e.Err.Error()
}

func (e ErrPageLoadTimeout) Unwrap() error {
	return e.Err
}

// ErrNavigationStuck indicates repeated failures to advance to the next page.
// Run-fatal once the retry budget is spent.
type ErrNavigationStuck struct {
	Err error
}

func (e ErrNavigationStuck) Error() string {
	return "navigation stuck: " + e.Err.Error()
}

func (e ErrNavigationStuck) Unwrap() error {
	return e.Err
}

// classifyPageError folds low-level navigation failures into the page-level
// taxonomy. Deadline expiry means the content never settled, which is worth
// retrying.
func classifyPageError(err error) error {
	if err == nil {
		return nil
	}
	var timeout ErrPageLoadTimeout
	if errors.As(err, &timeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrPageLoadTimeout{Err: err}
	}
	return err
}

// retryable reports whether a page-level failure is worth another attempt on
// the same page.
func retryable(err error) bool {
	var timeout ErrPageLoadTimeout
	return errors.As(err, &timeout)
}

// errorTypeLabel maps taxonomy errors onto metric label values.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var sessionInit ErrSessionInit
	if errors.As(err, &sessionInit) {
		return "session_init"
	}
	var timeout ErrPageLoadTimeout
	if errors.As(err, &timeout) {
		return "page_load_timeout"
	}
	var stuck ErrNavigationStuck
	if errors.As(err, &stuck) {
		return "navigation_stuck"
	}
	var malformed parser.ErrMalformedRow
	if errors.As(err, &malformed) {
		return "malformed_row"
	}
	var corrupt store.ErrCorruptState
	if errors.As(err, &corrupt) {
		return "corrupt_state"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}
