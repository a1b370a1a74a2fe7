package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hazz-dev/healthwatch/internal/config"
)

// HTTPChecker issues GET requests and classifies the response.
type HTTPChecker struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewHTTPChecker returns a checker that aborts each probe after timeout.
// Redirects are not followed: a 3xx response is itself a success.
func NewHTTPChecker(timeout time.Duration, userAgent string) *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

func (c *HTTPChecker) Check(ctx context.Context, target config.Target) Result {
	start := time.Now()
	result := Result{Target: target.Name}

	// The deadline covers the whole exchange including the body, and
	// cancelling it tears down the underlying connection.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("creating request: %v", err)
		return result
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result.Error = failureReason(ctx, err)
		return result
	}
	_, err = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		result.Error = failureReason(ctx, err)
		return result
	}

	result.Responded = true
	result.Latency = time.Since(start)
	result.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		result.Error = fmt.Sprintf("status-%d", resp.StatusCode)
		return result
	}
	result.Success = true
	return result
}

func failureReason(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return err.Error()
}
