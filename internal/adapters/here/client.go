package here

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client talks to the HERE Tour Planning (async problems) and Routing APIs.
//
// It coordinates:
//   - Bearer token retrieval through an oauth2.TokenSource
//   - Request throttling
//   - Retry/backoff for idempotent status and solution reads
//   - Optional persistent caching of route metrics
//
// The client is safe for concurrent use.
type Client struct {
	session         *http.Client
	tokens          oauth2.TokenSource
	limiter         *rate.Limiter
	tourPlanningURL string
	routingURL      string
	maxAttempts     int
	retryBackoff    time.Duration
	metricsCache    RouteMetricsCache
}

type Options struct {
	TourPlanningURL   string
	RoutingURL        string
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	MetricsCache      RouteMetricsCache
}

func NewClient(tokens oauth2.TokenSource, opts Options) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("HERE token source is nil")
	}
	if strings.TrimSpace(opts.TourPlanningURL) == "" {
		return nil, errors.New("HERE tour planning url is empty")
	}

	session := opts.HTTPClient
	if session == nil {
		session = &http.Client{Timeout: 60 * time.Second}
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(opts.Burst, 1)
	}

	return &Client{
		session:         session,
		tokens:          tokens,
		limiter:         rate.NewLimiter(limit, burst),
		tourPlanningURL: strings.TrimRight(opts.TourPlanningURL, "/"),
		routingURL:      strings.TrimRight(opts.RoutingURL, "/"),
		maxAttempts:     4,
		retryBackoff:    200 * time.Millisecond,
		metricsCache:    opts.MetricsCache,
	}, nil
}

var _ ports.TouringClient = (*Client)(nil)

// Submit posts the problem to the async endpoint and returns the status locator.
// Submission is not retried: a repeated POST could start a duplicate job.
func (c *Client) Submit(ctx context.Context, problem domain.Problem) (_ ports.JobHandle, err error) {
	defer obs.Time(ctx, "here.Submit")(&err)

	payload, err := json.Marshal(toWireProblem(problem))
	if err != nil {
		return "", fmt.Errorf("marshal problem: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.tourPlanningURL+"/v3/problems/async", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("submit problem: %w", err)
	}

	var out submitResponse
	if err := decodeJSON(resp, &out); err != nil {
		return "", fmt.Errorf("submit problem: %w", err)
	}
	if out.Href == "" {
		return "", errors.New("submit problem: response has no status href")
	}

	return ports.JobHandle(out.Href), nil
}

func (c *Client) PollStatus(ctx context.Context, handle ports.JobHandle) (_ ports.JobStatus, err error) {
	defer obs.Time(ctx, "here.PollStatus")(&err)

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, string(handle), nil)
	})
	if err != nil {
		return ports.JobStatus{}, fmt.Errorf("poll status: %w", err)
	}

	var out statusResponse
	if err := decodeJSON(resp, &out); err != nil {
		return ports.JobStatus{}, fmt.Errorf("poll status: %w", err)
	}

	status := ports.JobStatus{Status: out.Status, Error: out.Error}
	if out.Resource != nil && out.Resource.Href != "" {
		h := ports.ResourceHandle(out.Resource.Href)
		status.Resource = &h
	}
	return status, nil
}

func (c *Client) FetchSolution(ctx context.Context, resource ports.ResourceHandle) (_ *domain.Solution, err error) {
	defer obs.Time(ctx, "here.FetchSolution")(&err)

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, string(resource), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch solution: %w", err)
	}

	var out wireSolution
	if err := decodeJSON(resp, &out); err != nil {
		return nil, fmt.Errorf("fetch solution: %w", err)
	}

	return fromWireSolution(out), nil
}
