package here

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"tour-optimization-service/internal/domain"
)

type httpStatusError struct {
	Code   int
	Body   string
	Remote *domain.RemoteError
}

func (e *httpStatusError) Error() string {
	if e.Remote != nil {
		return fmt.Sprintf("Code %d: %s", e.Code, e.Remote.Error())
	}
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// Unwrap exposes the structured remote error so callers can classify it.
func (e *httpStatusError) Unwrap() error {
	if e.Remote == nil {
		return nil
	}
	return e.Remote
}

// newRequest builds an authenticated request. Token acquisition is owned by
// the token source; a failure here surfaces as ErrAuthUnavailable without retry.
func (c *Client) newRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthUnavailable, err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, newHTTPStatusError(resp.StatusCode, b)
	}
	return resp, nil
}

func newHTTPStatusError(code int, body []byte) *httpStatusError {
	e := &httpStatusError{
		Code: code,
		Body: strings.TrimSpace(string(body)),
	}

	var remote domain.RemoteError
	if err := json.Unmarshal(body, &remote); err == nil && (remote.Title != "" || remote.Cause != "" || remote.Code != "") {
		if remote.Status == 0 {
			remote.Status = code
		}
		e.Remote = &remote
	}
	return e
}

// doWithRetry retries transient failures (network errors, 429 and 5xx responses)
// using exponential backoff while respecting context cancellation.
// Only idempotent requests go through here.
func (c *Client) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	backoff := c.retryBackoff

	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == c.maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
