package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dvloznov/budget-companion/internal/jobs"
)

// jobMessageType is set on every Publishing so foreign messages on the
// queue can be told apart.
const jobMessageType = string(jobs.JobTypeProcessFile)

// newPublishing wraps job into a persistent JSON message.
func newPublishing(job *jobs.ProcessFileJob, now time.Time) (amqp091.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal job: %w", err)
	}

	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    job.JobID,
		Type:         jobMessageType,
		Timestamp:    now,
		Body:         body,
	}, nil
}

// decodeJob parses a delivery body back into a job.
func decodeJob(body []byte) (*jobs.ProcessFileJob, error) {
	var job jobs.ProcessFileJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	if job.JobID == "" {
		return nil, fmt.Errorf("unmarshal job: missing job_id")
	}
	return &job, nil
}
