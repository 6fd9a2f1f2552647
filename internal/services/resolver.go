package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/metrics"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"
)

const DefaultPollInterval = 30 * time.Second

// State of one submitted remote job.
type JobState int

const (
	JobPending JobState = iota
	JobSucceeded
	JobFailed
)

func (s JobState) Terminal() bool { return s == JobSucceeded || s == JobFailed }

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	}
	return "unknown"
}

// Action the resolver takes after a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectWait
	EffectFetchSolution
	EffectFail
)

// Transition applies one observed remote status to a job state.
// Terminal states are absorbing. Any status other than success or failure,
// including an empty one, keeps the job pending. A success without a
// solution locator cannot be fetched and fails the job.
func Transition(state JobState, status ports.JobStatus) (JobState, Effect) {
	if state.Terminal() {
		return state, EffectNone
	}

	switch status.Status {
	case ports.JobStatusSuccess:
		if status.Resource == nil {
			return JobFailed, EffectFail
		}
		return JobSucceeded, EffectFetchSolution
	case ports.JobStatusFailure:
		return JobFailed, EffectFail
	}
	return JobPending, EffectWait
}

// avoidRepair decides whether a failed job is resubmitted without an avoid
// feature. Each distinct feature is stripped at most once per resolution.
type avoidRepair struct {
	stripped map[string]bool
}

func newAvoidRepair() *avoidRepair {
	return &avoidRepair{stripped: map[string]bool{}}
}

// next returns the problem to resubmit after err and the stripped feature,
// or false when err must be surfaced. A named feature missing from the
// profile falls back to stripping every avoid feature.
func (r *avoidRepair) next(problem domain.Problem, err error) (domain.Problem, string, bool) {
	feature, ok := domain.AvoidNotAllowed(err)
	if !ok || r.stripped[feature] {
		return domain.Problem{}, "", false
	}
	// The remote cause may name the feature loosely ("tollRoads", "features").
	if feature != domain.AllAvoidFeatures && !slices.Contains(problem.AvoidFeatures(), feature) {
		feature = domain.AllAvoidFeatures
		if r.stripped[feature] {
			return domain.Problem{}, "", false
		}
	}

	adjusted, changed := problem.WithoutAvoidFeature(feature)
	if !changed {
		return domain.Problem{}, "", false
	}

	r.stripped[feature] = true
	return adjusted, feature, true
}

// Resolver drives submitted problems to a terminal status.
// One Resolver may serve concurrent resolutions; each call keeps its own state.
type Resolver struct {
	Client ports.TouringClient
	Events ports.JobEventPublisher
	// Wait between status polls. Zero means DefaultPollInterval.
	PollInterval time.Duration
	// Upper bound for one resolution, repairs included. Zero polls until a
	// terminal status or ctx cancellation.
	PollTimeout time.Duration
}

// Resolve submits problem for strategy and waits for its solution.
//
// A rejected avoid feature is stripped and the problem resubmitted once per
// feature. Every other failure is returned unchanged: remote computation
// failures as *domain.RemoteError, credential failures as
// domain.ErrAuthUnavailable, cancellation as ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, strategy domain.Strategy, problem domain.Problem) (_ *domain.Solution, err error) {
	defer obs.Time(ctx, "resolve."+string(strategy))(&err)

	if r.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.PollTimeout)
		defer cancel()
	}

	repair := newAvoidRepair()
	current := problem

	for {
		sol, err := r.resolveOnce(ctx, strategy, current)
		if err == nil {
			metrics.JobResolutions.WithLabelValues(string(strategy), "success").Inc()
			return sol, nil
		}

		adjusted, feature, ok := repair.next(current, err)
		if !ok {
			metrics.JobResolutions.WithLabelValues(string(strategy), "failure").Inc()
			log.Printf("[HERE REQUEST ERROR] run_id=%s strategy=%s: %v", obs.RunID(ctx), strategy, err)
			return nil, err
		}

		log.Printf("Avoid is not allowed. Exclude limitation. run_id=%s strategy=%s feature=%s", obs.RunID(ctx), strategy, feature)
		metrics.AvoidRepairs.WithLabelValues(feature).Inc()
		r.publish(ctx, strategy, ports.JobRepaired, "", "removed avoid feature "+feature)
		current = adjusted
	}
}

// resolveOnce submits one problem and polls it to a terminal state.
func (r *Resolver) resolveOnce(ctx context.Context, strategy domain.Strategy, problem domain.Problem) (*domain.Solution, error) {
	start := time.Now()

	handle, err := r.Client.Submit(ctx, problem)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, strategy, ports.JobSubmitted, handle, "")

	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	state := JobPending
	announced := false
	for {
		status, err := r.Client.PollStatus(ctx, handle)
		if err != nil {
			return nil, err
		}
		metrics.JobPolls.WithLabelValues(string(strategy), statusLabel(status.Status)).Inc()

		var effect Effect
		state, effect = Transition(state, status)

		switch effect {
		case EffectWait:
			if !announced {
				r.publish(ctx, strategy, ports.JobPending, handle, "")
				announced = true
			}
			if err := sleep(ctx, interval); err != nil {
				return nil, fmt.Errorf("resolve %s: %w", strategy, err)
			}

		case EffectFetchSolution:
			sol, err := r.Client.FetchSolution(ctx, *status.Resource)
			if err != nil {
				return nil, err
			}
			log.Printf("[HERE API REQUEST] Request took %.3f seconds. run_id=%s strategy=%s", time.Since(start).Seconds(), obs.RunID(ctx), strategy)
			r.publish(ctx, strategy, ports.JobSucceeded, handle, "")
			return sol, nil

		case EffectFail:
			remote := status.Error
			if remote == nil {
				remote = &domain.RemoteError{Title: "remote computation failed"}
			}
			log.Printf("[HERE API REQUEST] Failure after %.3f seconds. run_id=%s strategy=%s", time.Since(start).Seconds(), obs.RunID(ctx), strategy)
			r.publish(ctx, strategy, ports.JobFailed, handle, remote.Reason())
			return nil, remote
		}
	}
}

func (r *Resolver) publish(ctx context.Context, strategy domain.Strategy, kind ports.JobEventKind, handle ports.JobHandle, detail string) {
	if r.Events == nil {
		return
	}
	r.Events.Publish(ctx, ports.JobEvent{
		RunID:    obs.RunID(ctx),
		Strategy: strategy,
		Kind:     kind,
		Handle:   handle,
		Detail:   detail,
		At:       time.Now().UTC(),
	})
}

func statusLabel(status string) string {
	switch status {
	case ports.JobStatusSuccess, ports.JobStatusFailure:
		return status
	}
	return "pending"
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRemoteFailure reports whether err is a terminal failure reported by the remote service.
func IsRemoteFailure(err error) bool {
	var remote *domain.RemoteError
	return errors.As(err, &remote)
}
