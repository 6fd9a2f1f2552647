package ports

import (
	"context"
	"tour-optimization-service/internal/domain"
)

const (
	JobStatusSuccess = "success"
	JobStatusFailure = "failure"
)

// Opaque locator used to check the status of a submitted problem.
type JobHandle string

// Opaque locator of a computed solution.
type ResourceHandle string

// Status payload of a submitted problem.
// Error is only set for failure, Resource only for success.
type JobStatus struct {
	Status   string
	Resource *ResourceHandle
	Error    *domain.RemoteError
}

// Contract for the remote asynchronous tour planning service.
type TouringClient interface {
	// Submit a problem for asynchronous computation.
	Submit(ctx context.Context, problem domain.Problem) (JobHandle, error)
	// Fetch the current status of a submitted problem.
	PollStatus(ctx context.Context, handle JobHandle) (JobStatus, error)
	// Fetch the solution once the job succeeded.
	FetchSolution(ctx context.Context, resource ResourceHandle) (*domain.Solution, error)
}
