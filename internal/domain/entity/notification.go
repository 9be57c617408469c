package entity

import "time"

// Notification is an in-app message delivered to one recipient
type Notification struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	EventType   string     `json:"event_type"`
	Description string     `json:"description"`
	Module      string     `json:"module"`
	SubjectType string     `json:"subject_type"`
	SubjectID   string     `json:"subject_id"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	PushedAt    *time.Time `json:"pushed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// PushAttempts counts failed chat deliveries
	PushAttempts int `json:"-"`
}
