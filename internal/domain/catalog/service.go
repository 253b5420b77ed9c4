package catalog

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// Unpublish reason bounds.
const (
	MinUnpublishReasonLength = 10
	MaxUnpublishReasonLength = 500
)

// PromotionOptions carries the admin's decision data into promotion.
type PromotionOptions struct {
	ApproverID   int64
	Notes        string
	EndpointBase string
	EndpointSlug string
}

// Service is the aggregate root for an approved, publishable service.
type Service struct {
	id              int64
	publisherID     int64
	sourceRequestID *int64
	listing         Listing
	status          ServiceStatus
	termsAccepted   bool

	approvedBy    *int64
	approvedAt    *time.Time
	approvalNotes string

	publishedAt *time.Time
	publishedBy *int64

	operationalConfig JSONMap

	createdAt time.Time
	updatedAt time.Time

	domainEvents []DomainEvent
}

// NewServiceFromRequest materializes a ready_to_publish service from a request
// that is still awaiting review. The request itself is not modified.
func NewServiceFromRequest(req *ServiceRequest, opts PromotionOptions) (*Service, error) {
	const op = "catalog.NewServiceFromRequest"

	if req == nil {
		return nil, apperrors.Internal(op, "request is required")
	}
	if opts.ApproverID <= 0 {
		return nil, apperrors.Authentication(op, ErrMissingActor.Error())
	}
	if !req.Status().IsReviewable() {
		return nil, req.transitionError(op, RequestApproved)
	}

	details := req.Details()
	now := time.Now().UTC()
	sourceID := req.ID()
	approver := opts.ApproverID

	return &Service{
		publisherID:       req.PublisherID(),
		sourceRequestID:   &sourceID,
		listing:           details.Listing,
		status:            ServiceReadyToPublish,
		termsAccepted:     details.TermsAccepted,
		approvedBy:        &approver,
		approvedAt:        &now,
		approvalNotes:     strings.TrimSpace(opts.Notes),
		operationalConfig: seedOperationalConfig(details.Listing, strings.TrimSpace(opts.EndpointBase), strings.TrimSpace(opts.EndpointSlug)),
		createdAt:         now,
		updatedAt:         now,
		domainEvents:      make([]DomainEvent, 0, 3),
	}, nil
}

// ID returns the service ID. Zero until the store assigns one.
func (s *Service) ID() int64 { return s.id }

// PublisherID returns the owning publisher.
func (s *Service) PublisherID() int64 { return s.publisherID }

// SourceRequestID returns the request this service was promoted from.
func (s *Service) SourceRequestID() *int64 { return s.sourceRequestID }

// Name returns the service name.
func (s *Service) Name() string { return s.listing.Name }

// URL returns the current url, which is the managed endpoint once assigned.
func (s *Service) URL() string { return s.listing.URL }

// Listing returns a copy of the descriptive fields.
func (s *Service) Listing() Listing { return s.listing.Clone() }

// Status returns the lifecycle status.
func (s *Service) Status() ServiceStatus { return s.status }

// TermsAccepted mirrors the request's terms acceptance.
func (s *Service) TermsAccepted() bool { return s.termsAccepted }

// ApprovedBy returns the approving admin.
func (s *Service) ApprovedBy() *int64 { return s.approvedBy }

// ApprovedAt returns the approval time.
func (s *Service) ApprovedAt() *time.Time { return s.approvedAt }

// ApprovalNotes returns the admin's approval notes.
func (s *Service) ApprovalNotes() string { return s.approvalNotes }

// PublishedAt returns the last publish time.
func (s *Service) PublishedAt() *time.Time { return s.publishedAt }

// PublishedBy returns the actor who last published.
func (s *Service) PublishedBy() *int64 { return s.publishedBy }

// OperationalConfig returns a copy of the operational settings.
func (s *Service) OperationalConfig() JSONMap { return s.operationalConfig.Clone() }

// CreatedAt returns the creation time.
func (s *Service) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last modification time.
func (s *Service) UpdatedAt() time.Time { return s.updatedAt }

// ManagedEndpoint returns operational_config.managed_endpoint.
func (s *Service) ManagedEndpoint() string {
	return s.operationalConfig.String(KeyManagedEndpoint)
}

// IsOwnedBy reports whether actorID is the service's publisher.
func (s *Service) IsOwnedBy(actorID int64) bool {
	return actorID > 0 && s.publisherID == actorID
}

// IsPublished reports whether consumers can currently reach the service.
func (s *Service) IsPublished() bool {
	return s.status.IsPublished()
}

// AssignID sets the store-assigned identity. It may only be called once.
func (s *Service) AssignID(id int64) error {
	if s.id != 0 {
		return apperrors.Internal("catalog.Service.AssignID", fmt.Sprintf("service already has id %d", s.id))
	}
	if id <= 0 {
		return apperrors.Internal("catalog.Service.AssignID", "id must be positive")
	}
	s.id = id
	s.addEvent(ServiceCreatedEvent{
		BaseEvent:       newBaseEvent(AggregateService, id, s.createdAt),
		Name:            s.listing.Name,
		SourceRequestID: copyID(s.sourceRequestID),
	})
	return nil
}

// EndpointOverrides returns the raw endpoint_base and endpoint_slug overrides.
func (s *Service) EndpointOverrides() (base, slug string) {
	return s.operationalConfig.String(KeyEndpointBase), s.operationalConfig.String(KeyEndpointSlug)
}

// SetEndpointOverrides stores new endpoint overrides. Nil or blank values
// leave the current override in place.
func (s *Service) SetEndpointOverrides(base, slug *string) {
	if s.operationalConfig == nil {
		s.operationalConfig = JSONMap{}
	}
	if base != nil && strings.TrimSpace(*base) != "" {
		s.operationalConfig[KeyEndpointBase] = strings.TrimSpace(*base)
	}
	if slug != nil && strings.TrimSpace(*slug) != "" {
		s.operationalConfig[KeyEndpointSlug] = strings.TrimSpace(*slug)
	}
}

// ApplyEndpoint records an allocated endpoint. The pre-assignment url is kept
// as original_url the first time an endpoint is assigned and never rewritten.
func (s *Service) ApplyEndpoint(a EndpointAssignment) {
	if s.operationalConfig == nil {
		s.operationalConfig = JSONMap{}
	}

	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = a.Path()
	}
	previous := s.listing.URL

	if !s.operationalConfig.Has(KeyOriginalURL) && previous != "" && previous != endpoint {
		s.operationalConfig[KeyOriginalURL] = previous
	}

	s.operationalConfig[KeyEndpointBase] = a.Base
	s.operationalConfig[KeyEndpointSlug] = a.Slug
	s.operationalConfig[KeyManagedEndpoint] = endpoint
	s.listing.URL = endpoint

	if previous != endpoint {
		now := time.Now().UTC()
		s.updatedAt = now
		s.addEvent(EndpointAssignedEvent{
			BaseEvent: newBaseEvent(AggregateService, s.id, now),
			Endpoint:  endpoint,
			Previous:  previous,
		})
	}
}

func (s *Service) transitionError(op string, target ServiceStatus) *apperrors.Error {
	return apperrors.StateWrap(ErrInvalidStateTransition, op,
		fmt.Sprintf("service %d is %s; cannot move to %s", s.id, s.status, target)).
		WithDetail("status", string(s.status))
}

// Configure shallow-merges patch into operational_config and stamps
// configured_at/configured_by. Allocator-owned keys are never touched.
func (s *Service) Configure(actorID int64, patch ConfigPatch) error {
	const op = "catalog.Service.Configure"

	if actorID <= 0 {
		return apperrors.Authentication(op, ErrMissingActor.Error())
	}
	if !s.status.IsConfigurable() {
		return apperrors.StateWrap(ErrInvalidStateTransition, op,
			fmt.Sprintf("service %d cannot be configured while %s", s.id, s.status)).
			WithDetail("status", string(s.status))
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	if s.operationalConfig == nil {
		s.operationalConfig = JSONMap{}
	}

	keys := patch.Keys()
	for _, key := range keys {
		value := patch[key]
		if value == nil {
			delete(s.operationalConfig, key)
			continue
		}
		s.operationalConfig[key] = cloneValue(value)
	}

	now := time.Now().UTC()
	s.operationalConfig[KeyConfiguredAt] = now.Format(time.RFC3339)
	s.operationalConfig[KeyConfiguredBy] = actorID
	s.updatedAt = now

	s.addEvent(ServiceConfiguredEvent{
		BaseEvent: newBaseEvent(AggregateService, s.id, now),
		ActorID:   actorID,
		Keys:      keys,
	})
	return nil
}

// Publish makes the service available to consumers.
func (s *Service) Publish(actorID int64, notes string) error {
	const op = "catalog.Service.Publish"

	if actorID <= 0 {
		return apperrors.Authentication(op, ErrMissingActor.Error())
	}
	if s.status != ServiceReadyToPublish || ValidateServiceEvent(s, EventPublish, actorID) != nil {
		return s.transitionError(op, ServicePublished)
	}

	now := time.Now().UTC()
	s.status = ServicePublished
	s.publishedAt = &now
	s.publishedBy = &actorID
	if notes = strings.TrimSpace(notes); notes != "" {
		if s.operationalConfig == nil {
			s.operationalConfig = JSONMap{}
		}
		s.operationalConfig[KeyPublicationNotes] = notes
	}
	s.updatedAt = now

	s.addEvent(ServicePublishedEvent{
		BaseEvent: newBaseEvent(AggregateService, s.id, now),
		ActorID:   actorID,
	})
	return nil
}

// Unpublish withdraws the service and returns it to ready_to_publish.
func (s *Service) Unpublish(actorID int64, reason string) error {
	const op = "catalog.Service.Unpublish"

	if actorID <= 0 {
		return apperrors.Authentication(op, ErrMissingActor.Error())
	}
	if !s.status.IsPublished() || ValidateServiceEvent(s, EventUnpublish, actorID) != nil {
		return s.transitionError(op, ServiceReadyToPublish)
	}

	reason = strings.TrimSpace(reason)
	switch n := len([]rune(reason)); {
	case n < MinUnpublishReasonLength:
		return apperrors.ValidationField(op, "unpublish_reason",
			fmt.Sprintf("must be at least %d characters", MinUnpublishReasonLength))
	case n > MaxUnpublishReasonLength:
		return apperrors.ValidationField(op, "unpublish_reason",
			fmt.Sprintf("must be at most %d characters", MaxUnpublishReasonLength))
	}

	now := time.Now().UTC()
	if s.operationalConfig == nil {
		s.operationalConfig = JSONMap{}
	}
	s.operationalConfig[KeyUnpublishReason] = reason
	s.operationalConfig[KeyUnpublishedAt] = now.Format(time.RFC3339)
	s.status = ServiceReadyToPublish
	s.updatedAt = now

	s.addEvent(ServiceUnpublishedEvent{
		BaseEvent: newBaseEvent(AggregateService, s.id, now),
		ActorID:   actorID,
		Reason:    reason,
	})
	return nil
}

// DomainEvents returns the pending domain events.
func (s *Service) DomainEvents() []DomainEvent {
	events := make([]DomainEvent, len(s.domainEvents))
	copy(events, s.domainEvents)
	return events
}

// ClearDomainEvents clears the pending domain events.
func (s *Service) ClearDomainEvents() {
	s.domainEvents = s.domainEvents[:0]
}

func (s *Service) addEvent(event DomainEvent) {
	s.domainEvents = append(s.domainEvents, event)
}

// ValidateInvariants checks all business invariants of the service.
func (s *Service) ValidateInvariants() []Invariant {
	managed := s.ManagedEndpoint()

	invariants := []Invariant{
		{
			Name:  "valid_status",
			Valid: s.status.IsValid(),
		},
		{
			Name:  "url_is_managed_endpoint",
			Valid: managed != "" && s.listing.URL == managed,
		},
		{
			Name:  "published_has_publisher",
			Valid: !s.status.IsPublished() || s.publishedBy != nil,
		},
	}

	for i := range invariants {
		if !invariants[i].Valid {
			invariants[i].Message = fmt.Sprintf("service %d violates %s (url=%q managed=%q)", s.id, invariants[i].Name, s.listing.URL, managed)
		}
	}
	return invariants
}

// ServiceSnapshot is the persistent form of a Service.
type ServiceSnapshot struct {
	ID                int64
	PublisherID       int64
	SourceRequestID   *int64
	Listing           Listing
	Status            ServiceStatus
	TermsAccepted     bool
	ApprovedBy        *int64
	ApprovedAt        *time.Time
	ApprovalNotes     string
	PublishedAt       *time.Time
	PublishedBy       *int64
	OperationalConfig JSONMap
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Snapshot returns the persistent form of the service.
func (s *Service) Snapshot() ServiceSnapshot {
	return ServiceSnapshot{
		ID:                s.id,
		PublisherID:       s.publisherID,
		SourceRequestID:   copyID(s.sourceRequestID),
		Listing:           s.listing.Clone(),
		Status:            s.status,
		TermsAccepted:     s.termsAccepted,
		ApprovedBy:        copyID(s.approvedBy),
		ApprovedAt:        copyTime(s.approvedAt),
		ApprovalNotes:     s.approvalNotes,
		PublishedAt:       copyTime(s.publishedAt),
		PublishedBy:       copyID(s.publishedBy),
		OperationalConfig: s.operationalConfig.Clone(),
		CreatedAt:         s.createdAt,
		UpdatedAt:         s.updatedAt,
	}
}

// ReconstructService rebuilds a service from storage without raising events.
func ReconstructService(snap ServiceSnapshot) *Service {
	return &Service{
		id:                snap.ID,
		publisherID:       snap.PublisherID,
		sourceRequestID:   copyID(snap.SourceRequestID),
		listing:           snap.Listing.Clone(),
		status:            snap.Status,
		termsAccepted:     snap.TermsAccepted,
		approvedBy:        copyID(snap.ApprovedBy),
		approvedAt:        copyTime(snap.ApprovedAt),
		approvalNotes:     snap.ApprovalNotes,
		publishedAt:       copyTime(snap.PublishedAt),
		publishedBy:       copyID(snap.PublishedBy),
		operationalConfig: snap.OperationalConfig.Clone(),
		createdAt:         snap.CreatedAt,
		updatedAt:         snap.UpdatedAt,
	}
}
