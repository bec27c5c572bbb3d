package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/abelbrown/intelbrief/internal/config"
)

const (
	defaultUserAgent = "intelbrief/1.0 (geopolitical stability monitor)"
	maxBodyBytes     = 10 << 20
)

// ErrResponseTooLarge is returned when a response body exceeds the size cap.
var ErrResponseTooLarge = errors.New("fetch: response too large")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

// client is the rate-limited, retrying GET shared by all source types.
type client struct {
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries uint64
	backoff    time.Duration
	maxBackoff time.Duration
	maxBody    int64
}

func newClient(ing config.IngestionConfig) *client {
	limit := rate.Inf
	if ing.RatePerSecond > 0 {
		limit = rate.Limit(ing.RatePerSecond)
	}
	burst := ing.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := ing.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := ing.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	backoff := ing.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &client{
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		userAgent:  ua,
		maxRetries: uint64(max(ing.MaxRetries, 0)),
		backoff:    backoff,
		maxBackoff: ing.MaxBackoff,
		maxBody:    maxBodyBytes,
	}
}

// get fetches url and returns the body. Network errors, 429 and 5xx
// responses are retried with exponential backoff; other statuses fail at once.
func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	b := retry.NewExponential(c.backoff)
	if c.maxBackoff > 0 {
		b = retry.WithCappedDuration(c.maxBackoff, b)
	}
	b = retry.WithMaxRetries(c.maxRetries, b)

	var body []byte
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			return retry.RetryableError(fmt.Errorf("request failed: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
			serr := &StatusError{Code: resp.StatusCode, Status: resp.Status}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return retry.RetryableError(serr)
			}
			return serr
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read response: %w", err))
		}
		if int64(len(body)) > c.maxBody {
			body = nil
			return fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, c.maxBody)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// IsStatus reports whether err is an HTTP response with the given status code.
func IsStatus(err error, code int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == code
}
