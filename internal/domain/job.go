package domain

import "time"

// JobStatus is the delivery state of a Job. Transitions only move forward:
// pending -> processing -> sent | failed. There is no automatic transition
// out of sent or failed; a failed job stays failed until someone intervenes.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobSent       JobStatus = "sent"
	JobFailed     JobStatus = "failed"
)

// Job is the unit of delivery work for exactly one Notification.
type Job struct {
	JobID          string     `json:"id" dynamodbav:"job_id"`
	NotificationID string     `json:"notification_id" dynamodbav:"notification_id"`
	Status         JobStatus  `json:"status" dynamodbav:"status"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	ProcessingAt   *time.Time `json:"processing_at,omitempty" dynamodbav:"processing_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty" dynamodbav:"sent_at,omitempty"`
	LastError      string     `json:"last_error,omitempty" dynamodbav:"last_error,omitempty"`
	Retries        int        `json:"retries" dynamodbav:"retries"`
}
