package events

import (
	"context"
	"log"
	"tour-optimization-service/internal/ports"
)

// LogPublisher writes job events to the process log. Used when no Redis is configured.
type LogPublisher struct{}

var _ ports.JobEventPublisher = LogPublisher{}

func (LogPublisher) Publish(_ context.Context, e ports.JobEvent) {
	if e.Detail != "" {
		log.Printf("job_event run_id=%s strategy=%s kind=%s handle=%s detail=%q", e.RunID, e.Strategy, e.Kind, e.Handle, e.Detail)
		return
	}
	log.Printf("job_event run_id=%s strategy=%s kind=%s handle=%s", e.RunID, e.Strategy, e.Kind, e.Handle)
}
