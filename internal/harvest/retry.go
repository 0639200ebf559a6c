package harvest

import (
	"context"
	"errors"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// getWithRetry wraps getOnce with exponential backoff. Server errors and
// transport failures are retried up to maxRetries; 4xx responses (except
// 429) are permanent.
func (c *Client) getWithRetry(ctx context.Context, reqURL string) (Page, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	attempt := 0
	return backoff.RetryWithData(func() (Page, error) {
		attempt++
		page, err := c.getOnce(ctx, reqURL)
		if err == nil {
			return page, nil
		}

		var he *httpError
		if errors.As(err, &he) && he.status >= 400 && he.status < 500 && he.status != http.StatusTooManyRequests {
			return Page{}, backoff.Permanent(err)
		}

		c.logger.Warn("request failed, retrying",
			"url", reqURL,
			"attempt", attempt,
			"error", err)
		return Page{}, err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx))
}
