package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "cbt-service"
	EventVersion = "1.0"
)

// Event types
const (
	AttemptStarted   = "attempt.started"
	AttemptSubmitted = "attempt.submitted"
	ResultReleased   = "result.released"
)

// Event is the envelope put on the bus.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`

	// Key orders events on the same partition; events of one exam share it.
	Key string `json:"-"`
}

func NewEvent(eventType, key string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Key:       key,
	}
}

type AttemptStartedEvent struct {
	AttemptID uint      `json:"attempt_id"`
	ExamID    uint      `json:"exam_id"`
	StudentID uint      `json:"student_id"`
	Resumed   bool      `json:"resumed"`
	StartedAt time.Time `json:"started_at"`
}

type AttemptSubmittedEvent struct {
	AttemptID  uint    `json:"attempt_id"`
	ExamID     uint    `json:"exam_id"`
	StudentID  uint    `json:"student_id"`
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
	Status     string  `json:"status"`
	TimeSpent  int     `json:"time_spent"`
}

type ResultReleasedEvent struct {
	ResultID   uint    `json:"result_id"`
	AttemptID  uint    `json:"attempt_id"`
	ExamID     uint    `json:"exam_id"`
	StudentID  uint    `json:"student_id"`
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
	Position   *int    `json:"position,omitempty"`
}

// EventPublisher sends domain events. Publishing happens after commit, so a
// failure is logged by callers and never undoes the write.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
