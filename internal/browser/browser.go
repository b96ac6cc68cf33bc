// Package browser opens pages in the operator's browser.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

// Opener opens rawURL in a browser.
type Opener func(rawURL string) error

// Open opens rawURL with the system's browser. Only http and https URLs
// are accepted, and a malformed or non-http URL is the only error it
// reports: the platform opener runs detached, so a missing or failing
// browser goes unnoticed.
func Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("browser: only http and https urls can be opened")
	}
	launcher.Open(u.String())
	return nil
}

// OpenAfter waits delay and then opens rawURL, unless ctx is done first.
func OpenAfter(ctx context.Context, open Opener, rawURL string, delay time.Duration, logger *slog.Logger) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	logger.Info("opening browser", "url", rawURL)
	if err := open(rawURL); err != nil {
		logger.Warn("could not open browser", "url", rawURL, "error", err)
	}
}
