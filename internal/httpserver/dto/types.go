// Package dto provides data transfer objects for the catalog API.
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/williamsiker/practicas/internal/domain/catalog"
)

// PageResponse is a paginated list response.
type PageResponse[T any] struct {
	Data   []T `json:"data"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage wraps items already mapped to DTOs.
func NewPage[T any](items []T, limit, offset int) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{Data: items, Count: len(items), Limit: limit, Offset: offset}
}

// ErrorResponse is an API error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ListingDTO carries the descriptive fields shared by requests and services.
type ListingDTO struct {
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	URL                 string          `json:"url"`
	Method              string          `json:"method"`
	Version             string          `json:"version"`
	RequiresAuth        bool            `json:"requires_auth"`
	AuthType            string          `json:"auth_type"`
	AuthConfig          map[string]any  `json:"auth_config,omitempty"`
	Documentation       string          `json:"documentation"`
	Parameters          map[string]any  `json:"parameters,omitempty"`
	Responses           map[string]any  `json:"responses,omitempty"`
	ErrorCodes          map[string]any  `json:"error_codes,omitempty"`
	Validations         map[string]any  `json:"validations,omitempty"`
	MetricsEnabled      bool            `json:"metrics_enabled"`
	MetricsConfig       map[string]any  `json:"metrics_config,omitempty"`
	HasDemo             bool            `json:"has_demo"`
	DemoURL             string          `json:"demo_url,omitempty"`
	BasePrice           decimal.Decimal `json:"base_price"`
	PricingTiers        map[string]any  `json:"pricing_tiers,omitempty"`
	MaxRequestsPerDay   int             `json:"max_requests_per_day"`
	MaxRequestsPerMonth int             `json:"max_requests_per_month"`
	Features            map[string]any  `json:"features,omitempty"`
}

// RequestDTO is the API representation of a service request.
type RequestDTO struct {
	ID          int64 `json:"id"`
	PublisherID int64 `json:"publisher_id"`
	ListingDTO
	Justification     string     `json:"justification"`
	TermsAccepted     bool       `json:"terms_accepted"`
	TermsAcceptedAt   *time.Time `json:"terms_accepted_at,omitempty"`
	Status            string     `json:"status"`
	StatusLabel       string     `json:"status_label"`
	ReviewedBy        *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes       string     `json:"review_notes,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	ApprovedServiceID *int64     `json:"approved_service_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ServiceDTO is the API representation of an enhanced service.
type ServiceDTO struct {
	ID              int64  `json:"id"`
	PublisherID     int64  `json:"publisher_id"`
	SourceRequestID *int64 `json:"source_request_id,omitempty"`
	ListingDTO
	ManagedEndpoint   string         `json:"managed_endpoint"`
	Status            string         `json:"status"`
	StatusLabel       string         `json:"status_label"`
	TermsAccepted     bool           `json:"terms_accepted"`
	ApprovedBy        *int64         `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time     `json:"approved_at,omitempty"`
	ApprovalNotes     string         `json:"approval_notes,omitempty"`
	PublishedAt       *time.Time     `json:"published_at,omitempty"`
	PublishedBy       *int64         `json:"published_by,omitempty"`
	OperationalConfig map[string]any `json:"operational_config"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CatalogEntryDTO is the public view of a listed service.
type CatalogEntryDTO struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	URL           string          `json:"url"`
	Method        string          `json:"method"`
	Version       string          `json:"version"`
	RequiresAuth  bool            `json:"requires_auth"`
	AuthType      string          `json:"auth_type"`
	Documentation string          `json:"documentation"`
	HasDemo       bool            `json:"has_demo"`
	DemoURL       string          `json:"demo_url,omitempty"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Status        string          `json:"status"`
	StatusLabel   string          `json:"status_label"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	MaxPerDay     int             `json:"max_requests_per_day"`
	MaxPerMonth   int             `json:"max_requests_per_month"`
}

// StatsDTO counts a publisher's requests per status.
type StatsDTO struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// PendingCountDTO is the admin pending review counter.
type PendingCountDTO struct {
	Pending int `json:"pending"`
}

// ReviewRequest is the body of an administrator's review.
type ReviewRequest struct {
	Decision     string `json:"decision"`
	Notes        string `json:"review_notes,omitempty"`
	Reason       string `json:"rejection_reason,omitempty"`
	EndpointBase string `json:"endpoint_base,omitempty"`
	EndpointSlug string `json:"endpoint_slug,omitempty"`
}

// ReviewResponse is the result of a review.
type ReviewResponse struct {
	Request RequestDTO  `json:"request"`
	Service *ServiceDTO `json:"service,omitempty"`
}

// PublishRequest is the body of a publish call.
type PublishRequest struct {
	Notes string `json:"notes,omitempty"`
}

// UnpublishRequest is the body of an unpublish call.
type UnpublishRequest struct {
	Reason string `json:"reason"`
}

// EndpointRequest carries endpoint overrides. Absent or blank fields keep
// the current value.
type EndpointRequest struct {
	EndpointBase *string `json:"endpoint_base,omitempty"`
	EndpointSlug *string `json:"endpoint_slug,omitempty"`
}

// EndpointResponse is the result of an endpoint update.
type EndpointResponse struct {
	Service  ServiceDTO `json:"service"`
	Previous string     `json:"previous_url"`
	Base     string     `json:"endpoint_base"`
	Slug     string     `json:"endpoint_slug"`
}

var requestLabels = map[catalog.RequestStatus]string{
	catalog.RequestPendingReview:     "revision",
	catalog.RequestApproved:          "aprobado",
	catalog.RequestRejected:          "rechazado",
	catalog.RequestNeedsModification: "revision",
}

var serviceLabels = map[catalog.ServiceStatus]string{
	catalog.ServiceDraft:          "borrador",
	catalog.ServicePending:        "revision",
	catalog.ServiceReadyToPublish: "aprobado",
	catalog.ServicePublished:      "aprobado",
	catalog.ServiceActive:         "aprobado",
	catalog.ServiceMaintenance:    "mantenimiento",
	catalog.ServiceRejected:       "rechazado",
}

// RequestStatusLabel returns the presentation label of a request status.
func RequestStatusLabel(s catalog.RequestStatus) string {
	if l, ok := requestLabels[s]; ok {
		return l
	}
	return string(s)
}

// ServiceStatusLabel returns the presentation label of a service status.
func ServiceStatusLabel(s catalog.ServiceStatus) string {
	if l, ok := serviceLabels[s]; ok {
		return l
	}
	return string(s)
}

func listingDTO(l catalog.Listing) ListingDTO {
	return ListingDTO{
		Name:                l.Name,
		Description:         l.Description,
		URL:                 l.URL,
		Method:              string(l.Method),
		Version:             l.Version,
		RequiresAuth:        l.RequiresAuth,
		AuthType:            string(l.AuthType),
		AuthConfig:          l.AuthConfig,
		Documentation:       l.Documentation,
		Parameters:          l.Parameters,
		Responses:           l.Responses,
		ErrorCodes:          l.ErrorCodes,
		Validations:         l.Validations,
		MetricsEnabled:      l.MetricsEnabled,
		MetricsConfig:       l.MetricsConfig,
		HasDemo:             l.HasDemo,
		DemoURL:             l.DemoURL,
		BasePrice:           l.BasePrice,
		PricingTiers:        l.PricingTiers,
		MaxRequestsPerDay:   l.MaxRequestsPerDay,
		MaxRequestsPerMonth: l.MaxRequestsPerMonth,
		Features:            l.Features,
	}
}

// FromRequest maps a service request.
func FromRequest(r *catalog.ServiceRequest) RequestDTO {
	snap := r.Snapshot()
	return RequestDTO{
		ID:                snap.ID,
		PublisherID:       snap.PublisherID,
		ListingDTO:        listingDTO(snap.Details.Listing),
		Justification:     snap.Details.Justification,
		TermsAccepted:     snap.Details.TermsAccepted,
		TermsAcceptedAt:   snap.TermsAcceptedAt,
		Status:            string(snap.Status),
		StatusLabel:       RequestStatusLabel(snap.Status),
		ReviewedBy:        snap.ReviewedBy,
		ReviewedAt:        snap.ReviewedAt,
		ReviewNotes:       snap.ReviewNotes,
		RejectionReason:   snap.RejectionReason,
		ApprovedServiceID: snap.ApprovedServiceID,
		CreatedAt:         snap.CreatedAt,
		UpdatedAt:         snap.UpdatedAt,
	}
}

// FromRequests maps a list of service requests.
func FromRequests(reqs []*catalog.ServiceRequest) []RequestDTO {
	out := make([]RequestDTO, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, FromRequest(r))
	}
	return out
}

// FromService maps an enhanced service.
func FromService(s *catalog.Service) ServiceDTO {
	snap := s.Snapshot()
	cfg := map[string]any(snap.OperationalConfig)
	if cfg == nil {
		cfg = map[string]any{}
	}
	return ServiceDTO{
		ID:                snap.ID,
		PublisherID:       snap.PublisherID,
		SourceRequestID:   snap.SourceRequestID,
		ListingDTO:        listingDTO(snap.Listing),
		ManagedEndpoint:   s.ManagedEndpoint(),
		Status:            string(snap.Status),
		StatusLabel:       ServiceStatusLabel(snap.Status),
		TermsAccepted:     snap.TermsAccepted,
		ApprovedBy:        snap.ApprovedBy,
		ApprovedAt:        snap.ApprovedAt,
		ApprovalNotes:     snap.ApprovalNotes,
		PublishedAt:       snap.PublishedAt,
		PublishedBy:       snap.PublishedBy,
		OperationalConfig: cfg,
		CreatedAt:         snap.CreatedAt,
		UpdatedAt:         snap.UpdatedAt,
	}
}

// FromServices maps a list of services.
func FromServices(svcs []*catalog.Service) []ServiceDTO {
	out := make([]ServiceDTO, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, FromService(s))
	}
	return out
}

// FromCatalogEntry maps a listed service for public consumption.
func FromCatalogEntry(s *catalog.Service) CatalogEntryDTO {
	l := s.Listing()
	return CatalogEntryDTO{
		ID:            s.ID(),
		Name:          l.Name,
		Description:   l.Description,
		URL:           l.URL,
		Method:        string(l.Method),
		Version:       l.Version,
		RequiresAuth:  l.RequiresAuth,
		AuthType:      string(l.AuthType),
		Documentation: l.Documentation,
		HasDemo:       l.HasDemo,
		DemoURL:       l.DemoURL,
		BasePrice:     l.BasePrice,
		Status:        string(s.Status()),
		StatusLabel:   ServiceStatusLabel(s.Status()),
		PublishedAt:   s.PublishedAt(),
		MaxPerDay:     l.MaxRequestsPerDay,
		MaxPerMonth:   l.MaxRequestsPerMonth,
	}
}

// FromStats maps request counts.
func FromStats(total int, byStatus map[catalog.RequestStatus]int) StatsDTO {
	out := StatsDTO{Total: total, ByStatus: make(map[string]int, len(byStatus))}
	for _, s := range catalog.AllRequestStatuses() {
		out.ByStatus[string(s)] = byStatus[s]
	}
	return out
}
