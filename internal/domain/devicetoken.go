package domain

import "time"

// DeviceToken binds a push-gateway registration token to its current owner.
// A token string has exactly one owner at any time; re-registering it under
// another user reassigns it (reinstall and account-switch flows).
type DeviceToken struct {
	TokenID  string `json:"id" dynamodbav:"token_id"`
	UserID   string `json:"user_id" dynamodbav:"user_id"`
	Token    string `json:"token" dynamodbav:"token"`
	Platform string `json:"platform,omitempty" dynamodbav:"platform,omitempty"`
	// CreatedAt is refreshed on every re-registration, not just the first.
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform,omitempty" validate:"omitempty,oneof=ios android web"`
}

type DeleteTokenRequest struct {
	Token string `json:"token" validate:"required"`
}
