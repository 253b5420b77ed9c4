package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate type names used on domain events.
const (
	AggregateServiceRequest = "service_request"
	AggregateService        = "service"
)

// DomainEvent represents an event that occurred in the domain.
type DomainEvent interface {
	// EventID returns the unique identifier of the event.
	EventID() string
	// EventName returns the name of the event.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
	// AggregateType returns the kind of aggregate the event belongs to.
	AggregateType() string
	// AggregateID returns the ID of the aggregate this event belongs to.
	AggregateID() int64
}

// BaseEvent contains common fields for all domain events.
type BaseEvent struct {
	eventID       string
	occurredAt    time.Time
	aggregateType string
	aggregateID   int64
}

func newBaseEvent(aggregateType string, id int64, at time.Time) BaseEvent {
	return BaseEvent{
		eventID:       uuid.NewString(),
		occurredAt:    at,
		aggregateType: aggregateType,
		aggregateID:   id,
	}
}

// EventID returns the unique identifier of the event.
func (e BaseEvent) EventID() string {
	return e.eventID
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// AggregateType returns the aggregate type.
func (e BaseEvent) AggregateType() string {
	return e.aggregateType
}

// AggregateID returns the aggregate ID.
func (e BaseEvent) AggregateID() int64 {
	return e.aggregateID
}

// RequestSubmittedEvent is raised when a publisher submits a request.
type RequestSubmittedEvent struct {
	BaseEvent
	Name        string
	PublisherID int64
}

// EventName returns the event name.
func (e RequestSubmittedEvent) EventName() string {
	return "service_request.submitted"
}

// RequestApprovedEvent is raised when a request is approved and promoted.
type RequestApprovedEvent struct {
	BaseEvent
	ReviewerID int64
	ServiceID  int64
}

// EventName returns the event name.
func (e RequestApprovedEvent) EventName() string {
	return "service_request.approved"
}

// RequestRejectedEvent is raised when a request is rejected.
type RequestRejectedEvent struct {
	BaseEvent
	ReviewerID int64
	Reason     string
}

// EventName returns the event name.
func (e RequestRejectedEvent) EventName() string {
	return "service_request.rejected"
}

// RequestModificationsRequestedEvent is raised when an admin sends a request back to the publisher.
type RequestModificationsRequestedEvent struct {
	BaseEvent
	ReviewerID int64
	Notes      string
}

// EventName returns the event name.
func (e RequestModificationsRequestedEvent) EventName() string {
	return "service_request.modifications_requested"
}

// RequestEditedEvent is raised when the publisher edits and resubmits a request.
type RequestEditedEvent struct {
	BaseEvent
	PreviousStatus RequestStatus
}

// EventName returns the event name.
func (e RequestEditedEvent) EventName() string {
	return "service_request.edited"
}

// RequestDeletedEvent is raised when a request is deleted.
type RequestDeletedEvent struct {
	BaseEvent
	Status RequestStatus
}

// EventName returns the event name.
func (e RequestDeletedEvent) EventName() string {
	return "service_request.deleted"
}

// ServiceCreatedEvent is raised when a service is materialized.
type ServiceCreatedEvent struct {
	BaseEvent
	Name            string
	SourceRequestID *int64
}

// EventName returns the event name.
func (e ServiceCreatedEvent) EventName() string {
	return "service.created"
}

// EndpointAssignedEvent is raised when the managed endpoint changes.
type EndpointAssignedEvent struct {
	BaseEvent
	Endpoint string
	Previous string
}

// EventName returns the event name.
func (e EndpointAssignedEvent) EventName() string {
	return "service.endpoint_assigned"
}

// ServiceConfiguredEvent is raised when operational settings change.
type ServiceConfiguredEvent struct {
	BaseEvent
	ActorID int64
	Keys    []string
}

// EventName returns the event name.
func (e ServiceConfiguredEvent) EventName() string {
	return "service.configured"
}

// ServicePublishedEvent is raised when a service becomes visible to consumers.
type ServicePublishedEvent struct {
	BaseEvent
	ActorID int64
}

// EventName returns the event name.
func (e ServicePublishedEvent) EventName() string {
	return "service.published"
}

// ServiceUnpublishedEvent is raised when a service is withdrawn from consumers.
type ServiceUnpublishedEvent struct {
	BaseEvent
	ActorID int64
	Reason  string
}

// EventName returns the event name.
func (e ServiceUnpublishedEvent) EventName() string {
	return "service.unpublished"
}
