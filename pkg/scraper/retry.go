package scraper

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay is the first backoff step. Each further attempt doubles it.
// Tests shrink it to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

// do sends req and retries network errors, 429 and 5xx responses up to
// MaxRetries times with exponential backoff. After the last attempt the final
// response or error is returned as is.
func (s *Scraper) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := s.client.Do(req.Clone(ctx))
		if attempt >= s.config.MaxRetries || !transient(ctx, resp, err) {
			return resp, err
		}

		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		backoff := RetryBaseDelay << attempt
		s.logger.Debug("retrying request",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func transient(ctx context.Context, resp *http.Response, err error) bool {
	if err != nil {
		return ctx.Err() == nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}
