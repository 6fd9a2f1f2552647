package services

import (
	"context"
	"errors"
	"testing"
	"time"
	"tour-optimization-service/internal/adapters/here"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	res := ports.ResourceHandle("mock://solution/0")

	tests := []struct {
		name       string
		state      JobState
		status     ports.JobStatus
		wantState  JobState
		wantEffect Effect
	}{
		{"empty status keeps pending", JobPending, ports.JobStatus{}, JobPending, EffectWait},
		{"unknown status keeps pending", JobPending, ports.JobStatus{Status: "inProgress"}, JobPending, EffectWait},
		{"success fetches solution", JobPending, ports.JobStatus{Status: ports.JobStatusSuccess, Resource: &res}, JobSucceeded, EffectFetchSolution},
		{"success without locator fails", JobPending, ports.JobStatus{Status: ports.JobStatusSuccess}, JobFailed, EffectFail},
		{"failure fails", JobPending, ports.JobStatus{Status: ports.JobStatusFailure}, JobFailed, EffectFail},
		{"succeeded is absorbing", JobSucceeded, ports.JobStatus{Status: ports.JobStatusFailure}, JobSucceeded, EffectNone},
		{"failed is absorbing", JobFailed, ports.JobStatus{Status: ports.JobStatusSuccess, Resource: &res}, JobFailed, EffectNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, effect := Transition(tt.state, tt.status)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantEffect, effect)
		})
	}
}

func TestTransitionRepeatedPendingNeverChangesState(t *testing.T) {
	state := JobPending
	for range 100 {
		var effect Effect
		state, effect = Transition(state, ports.JobStatus{Status: "pending"})
		require.Equal(t, JobPending, state)
		require.Equal(t, EffectWait, effect)
	}
}

func avoidProblem(features ...string) domain.Problem {
	return domain.Problem{
		Fleet: domain.Fleet{
			Types:    []domain.VehicleType{{ID: "d1", Profile: "car", Amount: 1}},
			Profiles: []domain.Profile{{Name: "car", Type: "car", AvoidFeatures: features}},
		},
	}
}

func avoidRejection(feature string) *domain.RemoteError {
	cause := "Avoid is not allowed"
	if feature != "" {
		cause = "avoid feature '" + feature + "' is not allowed"
	}
	return &domain.RemoteError{Title: "Validation error", Cause: cause}
}

func TestAvoidRepairOncePerFeature(t *testing.T) {
	r := newAvoidRepair()
	p := avoidProblem("tollRoad", "ferry")

	next, feature, ok := r.next(p, avoidRejection("tollRoad"))
	require.True(t, ok)
	assert.Equal(t, "tollRoad", feature)
	assert.Equal(t, []string{"ferry"}, next.AvoidFeatures())

	_, _, ok = r.next(next, avoidRejection("tollRoad"))
	assert.False(t, ok, "a feature is stripped at most once")

	next, feature, ok = r.next(next, avoidRejection(""))
	require.True(t, ok)
	assert.Equal(t, domain.AllAvoidFeatures, feature)
	assert.Empty(t, next.AvoidFeatures())

	_, _, ok = r.next(next, errors.New("boom"))
	assert.False(t, ok)
}

func TestAvoidRepairNothingToStrip(t *testing.T) {
	_, _, ok := newAvoidRepair().next(avoidProblem(), avoidRejection("ferry"))
	assert.False(t, ok)
}

func TestAvoidRepairUnknownFeatureStripsAll(t *testing.T) {
	tests := []struct {
		name  string
		cause string
	}{
		{name: "plural feature name", cause: "Avoid feature tollRoads is not allowed"},
		{name: "generic wording", cause: "avoid features not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAvoidRepair()
			err := &domain.RemoteError{Title: "Validation error", Cause: tt.cause}

			next, feature, ok := r.next(avoidProblem("tollRoad"), err)
			require.True(t, ok)
			assert.Equal(t, domain.AllAvoidFeatures, feature)
			assert.Empty(t, next.AvoidFeatures())

			_, _, ok = r.next(next, err)
			assert.False(t, ok, "the fallback is applied once")
		})
	}
}

func TestResolveRepairsLooselyNamedAvoidFeature(t *testing.T) {
	client := &here.MockTouringClient{
		Script: func(n int, p domain.Problem) []here.MockStep {
			if len(p.AvoidFeatures()) > 0 {
				return []here.MockStep{failure(&domain.RemoteError{Title: "Validation error", Cause: "Avoid feature tollRoads is not allowed"})}
			}
			return []here.MockStep{success(n)}
		},
	}
	r := &Resolver{Client: client, PollInterval: time.Millisecond}

	sol, err := r.Resolve(context.Background(), domain.StrategyBalanced, avoidProblem("tollRoad"))
	require.NoError(t, err)
	require.NotNil(t, sol)

	submitted := client.Submitted()
	require.Len(t, submitted, 2)
	assert.Empty(t, submitted[1].AvoidFeatures())
}

func TestResolvePollsUntilTerminalWithoutResubmitting(t *testing.T) {
	client := &here.MockTouringClient{
		Script: func(n int, _ domain.Problem) []here.MockStep {
			return []here.MockStep{pending(), pending(), pending(), success(n)}
		},
	}
	events := &recordingPublisher{}
	r := &Resolver{Client: client, Events: events, PollInterval: time.Millisecond}

	p := avoidProblem()
	p.Plan.Jobs = []domain.Job{{ID: "o1_w1"}}

	sol, err := r.Resolve(context.Background(), domain.StrategyFastest, p)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Len(t, client.Submitted(), 1)
	assert.Equal(t, 4, client.Polls())
	assert.Equal(t,
		[]ports.JobEventKind{ports.JobSubmitted, ports.JobPending, ports.JobSucceeded},
		events.kinds(domain.StrategyFastest),
	)
}

func TestResolveRepairsRejectedAvoidFeature(t *testing.T) {
	client := &here.MockTouringClient{
		Script: func(n int, p domain.Problem) []here.MockStep {
			if len(p.AvoidFeatures()) > 0 {
				return []here.MockStep{pending(), failure(avoidRejection("tollRoad"))}
			}
			return []here.MockStep{success(n)}
		},
	}
	r := &Resolver{Client: client, PollInterval: time.Millisecond}

	sol, err := r.Resolve(context.Background(), domain.StrategyBalanced, avoidProblem("tollRoad"))
	require.NoError(t, err)
	require.NotNil(t, sol)

	submitted := client.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, []string{"tollRoad"}, submitted[0].AvoidFeatures())
	assert.Empty(t, submitted[1].AvoidFeatures())
}

func TestResolveSurfacesRepeatedAvoidRejection(t *testing.T) {
	client := &here.MockTouringClient{
		Script: func(int, domain.Problem) []here.MockStep {
			return []here.MockStep{failure(avoidRejection("tollRoad"))}
		},
	}
	r := &Resolver{Client: client, PollInterval: time.Millisecond}

	_, err := r.Resolve(context.Background(), domain.StrategyBalanced, avoidProblem("tollRoad", "ferry"))
	require.Error(t, err)

	feature, ok := domain.AvoidNotAllowed(err)
	require.True(t, ok)
	assert.Equal(t, "tollRoad", feature)

	submitted := client.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, []string{"ferry"}, submitted[1].AvoidFeatures())
}

func TestResolveRepairsSubmitRejection(t *testing.T) {
	client := &here.MockTouringClient{SubmitErr: avoidRejection("ferry")}
	r := &Resolver{Client: client, PollInterval: time.Millisecond}

	_, err := r.Resolve(context.Background(), domain.StrategyCheapest, avoidProblem("ferry"))
	require.Error(t, err)

	_, ok := domain.AvoidNotAllowed(err)
	assert.True(t, ok, "the second rejection of the same feature is surfaced")
}

func TestResolveSurfacesRemoteFailure(t *testing.T) {
	client := &here.MockTouringClient{
		Script: func(int, domain.Problem) []here.MockStep {
			return []here.MockStep{failure(&domain.RemoteError{Title: "Solver error", Cause: "no vehicles"})}
		},
	}
	r := &Resolver{Client: client, PollInterval: time.Millisecond}

	_, err := r.Resolve(context.Background(), domain.StrategyCheapest, avoidProblem("tollRoad"))
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "no vehicles", remote.Reason())
	assert.Len(t, client.Submitted(), 1)
	assert.True(t, IsRemoteFailure(err))
}

func TestResolveAuthFailureIsNotRetried(t *testing.T) {
	client := &here.MockTouringClient{SubmitErr: domain.ErrAuthUnavailable}
	r := &Resolver{Client: client, PollInterval: time.Millisecond}

	_, err := r.Resolve(context.Background(), domain.StrategyFastest, avoidProblem("tollRoad"))
	require.ErrorIs(t, err, domain.ErrAuthUnavailable)
	assert.Zero(t, client.Polls())
}

func TestResolveStopsOnContextCancellation(t *testing.T) {
	client := &here.MockTouringClient{
		Script: func(int, domain.Problem) []here.MockStep { return []here.MockStep{pending()} },
	}
	r := &Resolver{Client: client, PollInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, domain.StrategyFastest, avoidProblem())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, client.Submitted(), 1)
}

func TestResolvePollTimeout(t *testing.T) {
	client := &here.MockTouringClient{
		Script: func(int, domain.Problem) []here.MockStep { return []here.MockStep{pending()} },
	}
	r := &Resolver{Client: client, PollInterval: 5 * time.Millisecond, PollTimeout: 30 * time.Millisecond}

	_, err := r.Resolve(context.Background(), domain.StrategyFastest, avoidProblem())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
