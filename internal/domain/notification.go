package domain

import "time"

type Notification struct {
	NotificationID string                 `json:"id" dynamodbav:"notification_id"`
	UserID         string                 `json:"user_id" dynamodbav:"user_id"`
	Title          string                 `json:"title" dynamodbav:"title"`
	Body           string                 `json:"body" dynamodbav:"body"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty" dynamodbav:"idempotency_key,omitempty"`
	IsRead         bool                   `json:"is_read" dynamodbav:"is_read"`
	IsDeleted      bool                   `json:"is_deleted" dynamodbav:"is_deleted"`
	// Sent reflects the outcome of the last delivery attempt: true when at
	// least one device accepted the push.
	Sent      bool      `json:"sent" dynamodbav:"sent"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

type CreateNotificationRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body" validate:"required"`
	// Metadata values may be any JSON type; they round-trip through storage
	// unchanged and are coerced to strings only at dispatch time.
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
}

type MarkReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// CreateResult is returned by CreateOrGet. JobID is nil only when a
// duplicate's original job row is absent.
type CreateResult struct {
	Notification *Notification `json:"notification"`
	JobID        *string       `json:"job_id"`
	Duplicated   bool          `json:"duplicated"`
}
