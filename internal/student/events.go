package student

import (
	"context"
	"time"
)

const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventExported = "exported"
)

// EventPublisher is implemented by messaging.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type Event struct {
	Type       string    `json:"type"`
	RollNumber int64     `json:"roll_number,omitempty"`
	Student    *Student  `json:"student,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
