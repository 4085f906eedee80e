// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Delivery is fire-and-forget from the engine's side.
const (
	// Progress events
	EventLessonCompleted EventType = "lesson.completed"

	// Enrollment events
	EventEnrollmentCompleted EventType = "enrollment.completed"

	// Assessment events
	EventQuizSubmitted  EventType = "quiz.submitted"
	EventAttemptExpired EventType = "attempt.expired"

	// Certificate events
	EventCertificateIssued EventType = "certificate.issued"
	EventCertificateFailed EventType = "certificate.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress & Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonCompletedEvent is emitted the first time a lesson row reaches completed.
type LessonCompletedEvent struct {
	BaseEvent
	EnrollmentID string `json:"enrollment_id"`
	LessonID     string `json:"lesson_id"`
	TimeSpent    int64  `json:"time_spent"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id": e.EnrollmentID,
		"lesson_id":     e.LessonID,
		"time_spent":    e.TimeSpent,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(enrollmentID, lessonID string, timeSpent int64, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:    NewBaseEvent(EventLessonCompleted, enrollmentID, at),
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		TimeSpent:    timeSpent,
	}
}

// EnrollmentCompletedEvent is emitted by the aggregator on the single write
// that moves an enrollment from active to completed.
type EnrollmentCompletedEvent struct {
	BaseEvent
	EnrollmentID   string    `json:"enrollment_id"`
	LearnerID      string    `json:"learner_id"`
	CourseID       string    `json:"course_id"`
	CompletedAt    time.Time `json:"completed_at"`
	TotalTimeSpent int64     `json:"total_time_spent"`
}

// Payload implements Event interface.
func (e EnrollmentCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id":    e.EnrollmentID,
		"learner_id":       e.LearnerID,
		"course_id":        e.CourseID,
		"completed_at":     e.CompletedAt.Format(time.RFC3339),
		"total_time_spent": e.TotalTimeSpent,
	}
}

// NewEnrollmentCompletedEvent creates a new EnrollmentCompletedEvent.
func NewEnrollmentCompletedEvent(enrollmentID, learnerID, courseID string, completedAt time.Time, totalTime int64) EnrollmentCompletedEvent {
	return EnrollmentCompletedEvent{
		BaseEvent:      NewBaseEvent(EventEnrollmentCompleted, enrollmentID, completedAt),
		EnrollmentID:   enrollmentID,
		LearnerID:      learnerID,
		CourseID:       courseID,
		CompletedAt:    completedAt,
		TotalTimeSpent: totalTime,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Assessment Events
// ═══════════════════════════════════════════════════════════════════════════

// QuizSubmittedEvent is emitted after an attempt is submitted and graded.
type QuizSubmittedEvent struct {
	BaseEvent
	AttemptID     string  `json:"attempt_id"`
	EnrollmentID  string  `json:"enrollment_id"`
	QuizID        string  `json:"quiz_id"`
	AttemptNumber int     `json:"attempt_number"`
	Score         int     `json:"score"`
	MaxScore      int     `json:"max_score"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`
}

// Payload implements Event interface.
func (e QuizSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"attempt_id":     e.AttemptID,
		"enrollment_id":  e.EnrollmentID,
		"quiz_id":        e.QuizID,
		"attempt_number": e.AttemptNumber,
		"score":          e.Score,
		"max_score":      e.MaxScore,
		"percentage":     e.Percentage,
		"passed":         e.Passed,
	}
}

// AttemptExpiredEvent reports an in-progress attempt whose time limit has
// passed. The attempt itself is not modified.
type AttemptExpiredEvent struct {
	BaseEvent
	AttemptID    string    `json:"attempt_id"`
	EnrollmentID string    `json:"enrollment_id"`
	QuizID       string    `json:"quiz_id"`
	StartedAt    time.Time `json:"started_at"`
	Deadline     time.Time `json:"deadline"`
}

// Payload implements Event interface.
func (e AttemptExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"attempt_id":    e.AttemptID,
		"enrollment_id": e.EnrollmentID,
		"quiz_id":       e.QuizID,
		"started_at":    e.StartedAt.Format(time.RFC3339),
		"deadline":      e.Deadline.Format(time.RFC3339),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Certificate Events
// ═══════════════════════════════════════════════════════════════════════════

// CertificateIssuedEvent is emitted when the issuer accepted a certificate.
type CertificateIssuedEvent struct {
	BaseEvent
	CertificateID string    `json:"certificate_id"`
	EnrollmentID  string    `json:"enrollment_id"`
	ExternalRef   string    `json:"external_ref"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"certificate_id": e.CertificateID,
		"enrollment_id":  e.EnrollmentID,
		"external_ref":   e.ExternalRef,
		"issued_at":      e.IssuedAt.Format(time.RFC3339),
	}
}

// CertificateFailedEvent is emitted when the issuer call failed. The
// enrollment stays completed and issuance is retried later.
type CertificateFailedEvent struct {
	BaseEvent
	CertificateID string `json:"certificate_id"`
	EnrollmentID  string `json:"enrollment_id"`
	Reason        string `json:"reason"`
}

// Payload implements Event interface.
func (e CertificateFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"certificate_id": e.CertificateID,
		"enrollment_id":  e.EnrollmentID,
		"reason":         e.Reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
