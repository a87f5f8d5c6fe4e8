// Package jobs hosts the background worker, its task definitions and the
// queue client used by the HTTP tier.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAutoMatch is the task type for the nightly auto-reconcile batch.
	TaskAutoMatch = "recon:auto_match"
)

// AutoMatchPayload carries the score threshold the batch applies.
type AutoMatchPayload struct {
	Threshold float64 `json:"threshold"`
}

// NewAutoMatchTask constructs an Asynq task for one auto-reconcile batch.
func NewAutoMatchTask(payload AutoMatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutoMatch, data), nil
}
