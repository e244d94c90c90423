package domain

import "time"

// Device is a registered mobile device. Token is the SNS platform-endpoint
// ARN the push sender targets; devices without one are skipped at dispatch.
type Device struct {
	DeviceID  string    `json:"id" dynamodbav:"device_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Platform  string    `json:"platform" dynamodbav:"platform"` // "ios" | "android"
	Token     *string   `json:"token" dynamodbav:"token"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}
