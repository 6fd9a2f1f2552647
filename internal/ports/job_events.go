package ports

import (
	"context"
	"time"
	"tour-optimization-service/internal/domain"
)

type JobEventKind string

const (
	JobSubmitted JobEventKind = "submitted"
	JobPending   JobEventKind = "pending"
	JobSucceeded JobEventKind = "succeeded"
	JobFailed    JobEventKind = "failed"
	JobRepaired  JobEventKind = "repaired"
)

// Lifecycle notification of one remote job.
type JobEvent struct {
	RunID    string          `json:"run_id"`
	Strategy domain.Strategy `json:"strategy"`
	Kind     JobEventKind    `json:"kind"`
	Handle   JobHandle       `json:"handle,omitempty"`
	Detail   string          `json:"detail,omitempty"`
	At       time.Time       `json:"at"`
}

// Publishing is best effort and must not block optimization.
type JobEventPublisher interface {
	Publish(ctx context.Context, event JobEvent)
}
