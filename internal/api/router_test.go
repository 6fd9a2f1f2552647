package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"tour-optimization-service/internal/api/dto"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"
	"tour-optimization-service/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOptimizer struct {
	got services.OptimizeRequest
	res *domain.OptimizationResult
	err error
}

func (s *stubOptimizer) OptimizeWaypoints(_ context.Context, req services.OptimizeRequest) (*domain.OptimizationResult, error) {
	s.got = req
	return s.res, s.err
}

type stubManagers map[string]*domain.Manager

func (s stubManagers) GetManager(_ context.Context, id string) (*domain.Manager, error) {
	return s[id], nil
}

type stubRouteMetrics struct {
	stops []ports.RouteStop
}

func (s *stubRouteMetrics) CalculateRouteMetrics(_ context.Context, _ domain.Location, _ ports.RouteStop, stops []ports.RouteStop) (ports.RouteMetrics, error) {
	s.stops = stops
	return ports.RouteMetrics{DurationSeconds: 120, LengthMeters: 900}, nil
}

func newTestRouter(opt *stubOptimizer) http.Handler {
	return NewRouter(Deps{
		Optimizer:    opt,
		Managers:     stubManagers{"m1": {ID: "m1", Timezone: "UTC"}},
		RouteMetrics: &stubRouteMetrics{},
	})
}

func optimizationResult() *domain.OptimizationResult {
	sol := domain.Solution{Tours: []domain.Tour{{VehicleID: "d1_1", TypeID: "d1", Stops: []domain.TourStop{
		{Activities: []domain.Activity{{JobID: "o2_w3", Type: "delivery"}}},
	}}}}
	sol.Unassigned.Add("o1_w2", domain.UnassignedReason{Code: domain.CodeOrderSequence, Description: "out of order"})

	var res domain.OptimizationResult
	for i, s := range domain.Strategies() {
		r := domain.StrategyResult{Strategy: s, Solution: sol}
		switch i {
		case 0:
			res.Balanced = r
		case 1:
			res.Fastest = r
		case 2:
			res.MinVehicle = r
		case 3:
			res.Cheapest = r
		}
	}
	return &res
}

// blockingOptimizer waits for the request context like a resolution stuck
// polling an unavailable remote service.
type blockingOptimizer struct{}

func (blockingOptimizer) OptimizeWaypoints(ctx context.Context, _ services.OptimizeRequest) (*domain.OptimizationResult, error) {
	<-ctx.Done()
	return nil, &domain.OptimizationError{Strategy: domain.StrategyBalanced, Reason: ctx.Err().Error(), Err: ctx.Err()}
}

func postOptimization(t *testing.T, h http.Handler, manager, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/optimizations", strings.NewReader(body))
	if manager != "" {
		req.Header.Set("X-Manager-Id", manager)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOptimizeHandlerSuccess(t *testing.T) {
	opt := &stubOptimizer{res: optimizationResult()}
	h := newTestRouter(opt)

	rec := postOptimization(t, h, "m1", `{
		"date": "2026-03-02",
		"time": "07:30",
		"waypoint_ids": ["w2", "w3"],
		"driver_end_location": {"type": "last_stop"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	assert.Equal(t, "m1", opt.got.Manager.ID)
	assert.Equal(t, []string{"w2", "w3"}, opt.got.WaypointIDs)
	assert.Equal(t, domain.LocationCurrent, opt.got.DriverStart.Type)
	assert.Equal(t, domain.LocationLastStop, opt.got.DriverEnd.Type)
	assert.Equal(t, "07:30", opt.got.Time)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, k := range []string{"balanced", "fastest", "min_vehicle", "cheapest"} {
		require.Contains(t, body, k)
	}

	var cheapest dto.SolutionResponse
	require.NoError(t, json.Unmarshal(body["cheapest"], &cheapest))
	require.Len(t, cheapest.Tours, 1)
	assert.Equal(t, "d1", cheapest.Tours[0].DriverID)
	assert.Equal(t, domain.CodeOrderSequence, cheapest.Unassigned.Reasons("o1_w2")[0].Code)
}

func TestOptimizeHandlerValidation(t *testing.T) {
	h := newTestRouter(&stubOptimizer{res: optimizationResult()})

	tests := []struct {
		name    string
		manager string
		body    string
	}{
		{"missing manager header", "", `{"date":"2026-03-02","waypoint_ids":["w1"]}`},
		{"bad date", "m1", `{"date":"03/02/2026","waypoint_ids":["w1"]}`},
		{"bad time", "m1", `{"date":"2026-03-02","time":"7pm","waypoint_ids":["w1"]}`},
		{"unknown field", "m1", `{"date":"2026-03-02","hub":"x"}`},
		{"last stop as start", "m1", `{"date":"2026-03-02","driver_start_location":{"type":"LAST_STOP"}}`},
		{"custom without value", "m1", `{"date":"2026-03-02","driver_start_location":{"type":"CUSTOM"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postOptimization(t, h, tt.manager, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestOptimizeHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"precondition", domain.Precondition("Only Collection waypoints were provided."), http.StatusUnprocessableEntity, "Only Collection waypoints were provided."},
		{"auth", &domain.OptimizationError{Strategy: domain.StrategyFastest, Reason: "no token", Err: domain.ErrAuthUnavailable}, http.StatusServiceUnavailable, "Optimization error: no token"},
		{"strategy failure", &domain.OptimizationError{Strategy: domain.StrategyCheapest, Reason: "Internal error"}, http.StatusBadGateway, "Optimization error: Internal error"},
		{"unexpected", context.Canceled, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&stubOptimizer{err: tt.err})
			rec := postOptimization(t, h, "m1", `{"date":"2026-03-02","waypoint_ids":["w1"]}`)
			assert.Equal(t, tt.code, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.msg)
		})
	}
}

func TestOptimizeHandlerMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubOptimizer{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/optimizations", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestRouteMetricsHandler(t *testing.T) {
	provider := &stubRouteMetrics{}
	h := NewRouter(Deps{Optimizer: &stubOptimizer{}, Managers: stubManagers{}, RouteMetrics: provider})

	body := `{"origin":{"lat":33.4,"lng":-112.1},"destination":{"lat":33.5,"lng":-112.0,"service_time_seconds":60},"stops":[{"lat":33.45,"lng":-112.05,"service_time_seconds":120}]}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/route-metrics", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dto.RouteMetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 120, res.DurationSeconds)
	assert.Equal(t, 900, res.LengthMeters)
	require.Len(t, provider.stops, 1)
	assert.Equal(t, "2m0s", provider.stops[0].ServiceTime.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/route-metrics", strings.NewReader(`{"origin":{}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	newTestRouter(&stubOptimizer{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return context.DeadlineExceeded }

func TestHealthReportsDatabase(t *testing.T) {
	h := NewRouter(Deps{Optimizer: &stubOptimizer{}, Managers: stubManagers{}, RouteMetrics: &stubRouteMetrics{}, DB: failingPinger{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"unreachable"}`, rec.Body.String())
}

func TestOptimizeHandlerTimeoutCancelsOptimization(t *testing.T) {
	h := NewRouter(Deps{
		Optimizer:       blockingOptimizer{},
		Managers:        stubManagers{"m1": {ID: "m1", Timezone: "UTC"}},
		RouteMetrics:    &stubRouteMetrics{},
		OptimizeTimeout: 20 * time.Millisecond,
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- postOptimization(t, h, "m1", `{"date":"2026-03-02","waypoint_ids":["w3"]}`)
	}()

	select {
	case rec := <-done:
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code, rec.Body.String())
	case <-time.After(2 * time.Second):
		t.Fatal("optimization was not cancelled by the request timeout")
	}
}
