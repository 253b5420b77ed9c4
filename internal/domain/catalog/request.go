package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/shopspring/decimal"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// HTTPMethod is the HTTP verb a listed service answers to.
type HTTPMethod string

// Supported HTTP methods.
const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodPatch  HTTPMethod = "PATCH"
)

// IsValid returns true if the method is supported.
func (m HTTPMethod) IsValid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	default:
		return false
	}
}

// AuthType is the authentication scheme a service requires.
type AuthType string

// Supported authentication types.
const (
	AuthNone   AuthType = "none"
	AuthToken  AuthType = "token"
	AuthAPIKey AuthType = "api_key"
	AuthOAuth  AuthType = "oauth"
)

// IsValid returns true if the auth type is supported.
func (a AuthType) IsValid() bool {
	switch a {
	case AuthNone, AuthToken, AuthAPIKey, AuthOAuth:
		return true
	default:
		return false
	}
}

// Default quota values applied when a submission leaves them unset.
const (
	DefaultMaxRequestsPerDay   = 1000
	DefaultMaxRequestsPerMonth = 30000
	DefaultVersion             = "1.0.0"
)

// Listing holds the descriptive, auth, quota and pricing fields shared by
// requests and services. The JSON maps are opaque and copied verbatim.
type Listing struct {
	Name                string
	Description         string
	URL                 string
	Method              HTTPMethod
	Version             string
	RequiresAuth        bool
	AuthType            AuthType
	AuthConfig          JSONMap
	Documentation       string
	Parameters          JSONMap
	Responses           JSONMap
	ErrorCodes          JSONMap
	Validations         JSONMap
	MetricsEnabled      bool
	MetricsConfig       JSONMap
	HasDemo             bool
	DemoURL             string
	BasePrice           decimal.Decimal
	PricingTiers        JSONMap
	MaxRequestsPerDay   int
	MaxRequestsPerMonth int
	Features            JSONMap
}

// Clone returns a deep copy of the listing.
func (l Listing) Clone() Listing {
	out := l
	out.AuthConfig = l.AuthConfig.Clone()
	out.Parameters = l.Parameters.Clone()
	out.Responses = l.Responses.Clone()
	out.ErrorCodes = l.ErrorCodes.Clone()
	out.Validations = l.Validations.Clone()
	out.MetricsConfig = l.MetricsConfig.Clone()
	out.PricingTiers = l.PricingTiers.Clone()
	out.Features = l.Features.Clone()
	return out
}

// RequestDetails is the payload a publisher submits for review.
type RequestDetails struct {
	Listing
	Justification string
	TermsAccepted bool
}

// Clone returns a deep copy of the details.
func (d RequestDetails) Clone() RequestDetails {
	out := d
	out.Listing = d.Listing.Clone()
	return out
}

func (d RequestDetails) normalized() RequestDetails {
	out := d.Clone()
	out.Name = strings.TrimSpace(out.Name)
	out.Method = HTTPMethod(strings.ToUpper(strings.TrimSpace(string(out.Method))))
	if strings.TrimSpace(out.Version) == "" {
		out.Version = DefaultVersion
	}
	if !out.RequiresAuth {
		out.AuthType = AuthNone
	}
	if out.MaxRequestsPerDay == 0 {
		out.MaxRequestsPerDay = DefaultMaxRequestsPerDay
	}
	if out.MaxRequestsPerMonth == 0 {
		out.MaxRequestsPerMonth = DefaultMaxRequestsPerMonth
	}
	if !out.HasDemo {
		out.DemoURL = ""
	}
	return out
}

func (d RequestDetails) check(op string) error {
	var fe apperrors.FieldErrors
	if d.Name == "" {
		fe.Add("name", "is required")
	}
	if !d.Method.IsValid() {
		fe.Addf("method", "must be one of GET, POST, PUT, DELETE, PATCH, got %q", d.Method)
	}
	if d.RequiresAuth && (d.AuthType == "" || d.AuthType == AuthNone) {
		fe.Add("auth_type", "is required when requires_auth is set")
	}
	if d.AuthType != "" && !d.AuthType.IsValid() {
		fe.Addf("auth_type", "unsupported value %q", d.AuthType)
	}
	if d.MaxRequestsPerDay < 1 {
		fe.Add("max_requests_per_day", "must be at least 1")
	}
	if d.MaxRequestsPerMonth < 1 {
		fe.Add("max_requests_per_month", "must be at least 1")
	}
	if d.BasePrice.IsNegative() {
		fe.Add("base_price", "must not be negative")
	}
	if !d.TermsAccepted {
		fe.Add("terms_accepted", "must be accepted")
	}
	return fe.ToError(op)
}

// ServiceRequest is the aggregate root for a publisher's submission.
type ServiceRequest struct {
	id          int64
	publisherID int64
	details     RequestDetails
	status      RequestStatus

	termsAcceptedAt *time.Time

	reviewedBy        *int64
	reviewedAt        *time.Time
	reviewNotes       string
	rejectionReason   string
	approvedServiceID *int64

	createdAt time.Time
	updatedAt time.Time

	domainEvents []DomainEvent
}

// NewServiceRequest creates a pending_review request owned by publisherID.
func NewServiceRequest(publisherID int64, details RequestDetails) (*ServiceRequest, error) {
	const op = "catalog.NewServiceRequest"

	if publisherID <= 0 {
		return nil, apperrors.Authentication(op, ErrMissingActor.Error())
	}

	d := details.normalized()
	if err := d.check(op); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &ServiceRequest{
		publisherID:     publisherID,
		details:         d,
		status:          RequestPendingReview,
		termsAcceptedAt: &now,
		createdAt:       now,
		updatedAt:       now,
		domainEvents:    make([]DomainEvent, 0, 2),
	}, nil
}

// ID returns the request ID. Zero until the store assigns one.
func (r *ServiceRequest) ID() int64 { return r.id }

// PublisherID returns the owning publisher.
func (r *ServiceRequest) PublisherID() int64 { return r.publisherID }

// Name returns the request name.
func (r *ServiceRequest) Name() string { return r.details.Name }

// Details returns a copy of the descriptive payload.
func (r *ServiceRequest) Details() RequestDetails { return r.details.Clone() }

// Status returns the current review status.
func (r *ServiceRequest) Status() RequestStatus { return r.status }

// TermsAcceptedAt returns when the terms were accepted.
func (r *ServiceRequest) TermsAcceptedAt() *time.Time { return r.termsAcceptedAt }

// ReviewedBy returns the reviewing admin, if any.
func (r *ServiceRequest) ReviewedBy() *int64 { return r.reviewedBy }

// ReviewedAt returns the review time, if any.
func (r *ServiceRequest) ReviewedAt() *time.Time { return r.reviewedAt }

// ReviewNotes returns the reviewer's notes.
func (r *ServiceRequest) ReviewNotes() string { return r.reviewNotes }

// RejectionReason returns the rejection reason.
func (r *ServiceRequest) RejectionReason() string { return r.rejectionReason }

// ApprovedServiceID returns the promoted service, set only once approved.
func (r *ServiceRequest) ApprovedServiceID() *int64 { return r.approvedServiceID }

// CreatedAt returns the creation time.
func (r *ServiceRequest) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last modification time.
func (r *ServiceRequest) UpdatedAt() time.Time { return r.updatedAt }

// IsOwnedBy reports whether actorID submitted the request.
func (r *ServiceRequest) IsOwnedBy(actorID int64) bool {
	return actorID > 0 && r.publisherID == actorID
}

// AssignID sets the store-assigned identity. It may only be called once.
func (r *ServiceRequest) AssignID(id int64) error {
	if r.id != 0 {
		return apperrors.Internal("catalog.ServiceRequest.AssignID", fmt.Sprintf("request already has id %d", r.id))
	}
	if id <= 0 {
		return apperrors.Internal("catalog.ServiceRequest.AssignID", "id must be positive")
	}
	r.id = id
	r.addEvent(RequestSubmittedEvent{
		BaseEvent:   newBaseEvent(AggregateServiceRequest, id, r.createdAt),
		Name:        r.details.Name,
		PublisherID: r.publisherID,
	})
	return nil
}

func (r *ServiceRequest) transitionError(op string, target RequestStatus) error {
	return apperrors.StateWrap(ErrInvalidStateTransition, op,
		fmt.Sprintf("request %d is %s; cannot move to %s", r.id, r.status, target)).
		WithDetail("status", string(r.status))
}

func (r *ServiceRequest) review(op string, reviewerID int64, event statekit.EventType) (time.Time, error) {
	if err := ValidateRequestEvent(r, event, reviewerID); err != nil {
		if errors.Is(err, ErrMissingActor) {
			return time.Time{}, apperrors.Authentication(op, ErrMissingActor.Error())
		}
		target, _ := RequestTarget(RequestPendingReview, event)
		return time.Time{}, r.transitionError(op, target)
	}
	return time.Now().UTC(), nil
}

// Approve marks the request approved and links the promoted service.
func (r *ServiceRequest) Approve(reviewerID, serviceID int64, notes string) error {
	const op = "catalog.ServiceRequest.Approve"

	now, err := r.review(op, reviewerID, EventApprove)
	if err != nil {
		return err
	}
	if serviceID <= 0 {
		return apperrors.Internal(op, "approval requires a promoted service id")
	}

	r.status = RequestApproved
	r.reviewedBy = &reviewerID
	r.reviewedAt = &now
	r.reviewNotes = strings.TrimSpace(notes)
	r.rejectionReason = ""
	r.approvedServiceID = &serviceID
	r.updatedAt = now

	r.addEvent(RequestApprovedEvent{
		BaseEvent:  newBaseEvent(AggregateServiceRequest, r.id, now),
		ReviewerID: reviewerID,
		ServiceID:  serviceID,
	})
	return nil
}

// Reject marks the request rejected with the given reason.
func (r *ServiceRequest) Reject(reviewerID int64, reason string) error {
	const op = "catalog.ServiceRequest.Reject"

	now, err := r.review(op, reviewerID, EventReject)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.ValidationField(op, "rejection_reason", "is required")
	}

	r.status = RequestRejected
	r.reviewedBy = &reviewerID
	r.reviewedAt = &now
	r.rejectionReason = reason
	r.updatedAt = now

	r.addEvent(RequestRejectedEvent{
		BaseEvent:  newBaseEvent(AggregateServiceRequest, r.id, now),
		ReviewerID: reviewerID,
		Reason:     reason,
	})
	return nil
}

// RequestModifications sends the request back to its publisher.
func (r *ServiceRequest) RequestModifications(reviewerID int64, notes string) error {
	const op = "catalog.ServiceRequest.RequestModifications"

	now, err := r.review(op, reviewerID, EventRequestChanges)
	if err != nil {
		return err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return apperrors.ValidationField(op, "review_notes", "is required")
	}

	r.status = RequestNeedsModification
	r.reviewedBy = &reviewerID
	r.reviewedAt = &now
	r.reviewNotes = notes
	r.updatedAt = now

	r.addEvent(RequestModificationsRequestedEvent{
		BaseEvent:  newBaseEvent(AggregateServiceRequest, r.id, now),
		ReviewerID: reviewerID,
		Notes:      notes,
	})
	return nil
}

// Edit replaces the descriptive payload and returns the request to pending_review.
// Review metadata is cleared so the next review starts fresh.
func (r *ServiceRequest) Edit(details RequestDetails) error {
	const op = "catalog.ServiceRequest.Edit"

	if !r.status.IsEditable() || ValidateRequestEvent(r, EventResubmit, r.publisherID) != nil {
		return r.transitionError(op, RequestPendingReview)
	}

	d := details.normalized()
	if err := d.check(op); err != nil {
		return err
	}

	previous := r.status
	now := time.Now().UTC()

	r.details = d
	r.status = RequestPendingReview
	r.reviewedBy = nil
	r.reviewedAt = nil
	r.reviewNotes = ""
	r.rejectionReason = ""
	r.termsAcceptedAt = &now
	r.updatedAt = now

	r.addEvent(RequestEditedEvent{
		BaseEvent:      newBaseEvent(AggregateServiceRequest, r.id, now),
		PreviousStatus: previous,
	})
	return nil
}

// CanDelete returns nil if the request may be deleted.
func (r *ServiceRequest) CanDelete() error {
	const op = "catalog.ServiceRequest.CanDelete"

	if r.approvedServiceID != nil {
		return apperrors.StateWrap(ErrLinkedService, op,
			fmt.Sprintf("request %d is linked to service %d", r.id, *r.approvedServiceID))
	}
	if !r.status.IsDeletable() {
		return apperrors.StateWrap(ErrInvalidStateTransition, op,
			fmt.Sprintf("request %d cannot be deleted while %s", r.id, r.status)).
			WithDetail("status", string(r.status))
	}
	return nil
}

// MarkDeleted records the deletion event. Callers must check CanDelete first.
func (r *ServiceRequest) MarkDeleted() {
	r.addEvent(RequestDeletedEvent{
		BaseEvent: newBaseEvent(AggregateServiceRequest, r.id, time.Now().UTC()),
		Status:    r.status,
	})
}

// DomainEvents returns the pending domain events.
func (r *ServiceRequest) DomainEvents() []DomainEvent {
	events := make([]DomainEvent, len(r.domainEvents))
	copy(events, r.domainEvents)
	return events
}

// ClearDomainEvents clears the pending domain events.
func (r *ServiceRequest) ClearDomainEvents() {
	r.domainEvents = r.domainEvents[:0]
}

func (r *ServiceRequest) addEvent(event DomainEvent) {
	r.domainEvents = append(r.domainEvents, event)
}

// Invariant describes a business rule that must hold for an aggregate.
type Invariant struct {
	Name    string
	Valid   bool
	Message string
}

// ValidateInvariants checks all business invariants of the request.
func (r *ServiceRequest) ValidateInvariants() []Invariant {
	linked := r.approvedServiceID != nil
	approved := r.status == RequestApproved

	invariants := []Invariant{
		{
			Name:  "valid_status",
			Valid: r.status.IsValid(),
		},
		{
			Name:  "approved_iff_linked",
			Valid: linked == approved,
		},
		{
			Name:  "reviewed_when_decided",
			Valid: r.status == RequestPendingReview || r.reviewedBy != nil,
		},
	}

	for i := range invariants {
		if !invariants[i].Valid {
			invariants[i].Message = fmt.Sprintf("request %d violates %s (status=%s)", r.id, invariants[i].Name, r.status)
		}
	}
	return invariants
}

// RequestSnapshot is the persistent form of a ServiceRequest.
type RequestSnapshot struct {
	ID                int64
	PublisherID       int64
	Details           RequestDetails
	Status            RequestStatus
	TermsAcceptedAt   *time.Time
	ReviewedBy        *int64
	ReviewedAt        *time.Time
	ReviewNotes       string
	RejectionReason   string
	ApprovedServiceID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Snapshot returns the persistent form of the request.
func (r *ServiceRequest) Snapshot() RequestSnapshot {
	return RequestSnapshot{
		ID:                r.id,
		PublisherID:       r.publisherID,
		Details:           r.details.Clone(),
		Status:            r.status,
		TermsAcceptedAt:   copyTime(r.termsAcceptedAt),
		ReviewedBy:        copyID(r.reviewedBy),
		ReviewedAt:        copyTime(r.reviewedAt),
		ReviewNotes:       r.reviewNotes,
		RejectionReason:   r.rejectionReason,
		ApprovedServiceID: copyID(r.approvedServiceID),
		CreatedAt:         r.createdAt,
		UpdatedAt:         r.updatedAt,
	}
}

// ReconstructServiceRequest rebuilds a request from storage without raising events.
func ReconstructServiceRequest(s RequestSnapshot) *ServiceRequest {
	return &ServiceRequest{
		id:                s.ID,
		publisherID:       s.PublisherID,
		details:           s.Details.Clone(),
		status:            s.Status,
		termsAcceptedAt:   copyTime(s.TermsAcceptedAt),
		reviewedBy:        copyID(s.ReviewedBy),
		reviewedAt:        copyTime(s.ReviewedAt),
		reviewNotes:       s.ReviewNotes,
		rejectionReason:   s.RejectionReason,
		approvedServiceID: copyID(s.ApprovedServiceID),
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
