// Package catalog provides the domain model for the service catalog approval workflow.
package catalog

import "fmt"

// RequestStatus represents the review status of a service request.
type RequestStatus string

const (
	// RequestPendingReview is the initial status; the request awaits an admin decision.
	RequestPendingReview RequestStatus = "pending_review"
	// RequestApproved indicates the request was promoted into a service.
	RequestApproved RequestStatus = "approved"
	// RequestRejected indicates the request was rejected.
	RequestRejected RequestStatus = "rejected"
	// RequestNeedsModification indicates the publisher must edit and resubmit.
	RequestNeedsModification RequestStatus = "needs_modification"
)

// AllRequestStatuses returns every valid request status.
func AllRequestStatuses() []RequestStatus {
	return []RequestStatus{
		RequestPendingReview,
		RequestApproved,
		RequestRejected,
		RequestNeedsModification,
	}
}

// String returns the string representation of the status.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known request status.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPendingReview, RequestApproved, RequestRejected, RequestNeedsModification:
		return true
	default:
		return false
	}
}

// IsFinal returns true if no further transition is possible.
func (s RequestStatus) IsFinal() bool {
	return s == RequestApproved || s == RequestRejected
}

// IsReviewable returns true if an admin may decide on the request.
func (s RequestStatus) IsReviewable() bool {
	return s == RequestPendingReview
}

// IsEditable returns true if the publisher may still change the request.
func (s RequestStatus) IsEditable() bool {
	return s == RequestPendingReview || s == RequestNeedsModification
}

// IsDeletable returns true if the status allows deletion.
// Deletion additionally requires that no service is linked to the request.
func (s RequestStatus) IsDeletable() bool {
	return s == RequestPendingReview || s == RequestRejected || s == RequestNeedsModification
}

// CanTransitionTo checks if a transition to the target status is valid.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPendingReview:     {RequestPendingReview, RequestApproved, RequestRejected, RequestNeedsModification},
	RequestNeedsModification: {RequestPendingReview},
	RequestApproved:          {},
	RequestRejected:          {},
}

// ParseRequestStatus parses a string into a RequestStatus.
func ParseRequestStatus(s string) (RequestStatus, error) {
	status := RequestStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid request status: %q", s)
	}
	return status, nil
}

// ServiceStatus represents the lifecycle status of an enhanced service.
type ServiceStatus string

const (
	ServiceDraft          ServiceStatus = "draft"
	ServicePending        ServiceStatus = "pending"
	ServiceReadyToPublish ServiceStatus = "ready_to_publish"
	ServicePublished      ServiceStatus = "published"
	ServiceActive         ServiceStatus = "active"
	ServiceInactive       ServiceStatus = "inactive"
	ServiceMaintenance    ServiceStatus = "maintenance"
	ServiceRejected       ServiceStatus = "rejected"
)

// AllServiceStatuses returns every valid service status.
func AllServiceStatuses() []ServiceStatus {
	return []ServiceStatus{
		ServiceDraft,
		ServicePending,
		ServiceReadyToPublish,
		ServicePublished,
		ServiceActive,
		ServiceInactive,
		ServiceMaintenance,
		ServiceRejected,
	}
}

// String returns the string representation of the status.
func (s ServiceStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known service status.
func (s ServiceStatus) IsValid() bool {
	for _, known := range AllServiceStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsPublished returns true if consumers can currently reach the service.
func (s ServiceStatus) IsPublished() bool {
	return s == ServicePublished || s == ServiceActive
}

// IsConfigurable returns true if the publisher may change operational settings.
func (s ServiceStatus) IsConfigurable() bool {
	return s == ServiceReadyToPublish || s == ServicePublished
}

// IsListed returns true if the service appears in the consumer catalog.
func (s ServiceStatus) IsListed() bool {
	return s == ServiceReadyToPublish || s.IsPublished()
}

// CanTransitionTo checks if a transition to the target status is valid.
func (s ServiceStatus) CanTransitionTo(target ServiceStatus) bool {
	for _, allowed := range serviceTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// NextValidStatuses returns the statuses reachable from s.
func (s ServiceStatus) NextValidStatuses() []ServiceStatus {
	next := serviceTransitions[s]
	out := make([]ServiceStatus, len(next))
	copy(out, next)
	return out
}

var serviceTransitions = map[ServiceStatus][]ServiceStatus{
	ServiceDraft:          {ServicePending, ServiceRejected},
	ServicePending:        {ServiceReadyToPublish, ServiceRejected},
	ServiceReadyToPublish: {ServicePublished},
	ServicePublished:      {ServiceReadyToPublish, ServiceActive, ServiceMaintenance, ServiceInactive},
	ServiceActive:         {ServiceReadyToPublish, ServiceMaintenance, ServiceInactive},
	ServiceMaintenance:    {ServiceActive, ServiceInactive},
	ServiceInactive:       {ServiceActive},
	ServiceRejected:       {},
}

// ParseServiceStatus parses a string into a ServiceStatus.
func ParseServiceStatus(s string) (ServiceStatus, error) {
	status := ServiceStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid service status: %q", s)
	}
	return status, nil
}
