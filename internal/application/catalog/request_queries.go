package catalog

import (
	"context"
	"fmt"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// Paging limits for list queries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// GetRequestInput represents the input for the GetRequest use case.
type GetRequestInput struct {
	Actor     Actor
	RequestID int64
}

// GetRequestUseCase returns a request visible to the caller.
type GetRequestUseCase struct {
	store Store
}

// NewGetRequestUseCase creates a new GetRequestUseCase.
func NewGetRequestUseCase(store Store) *GetRequestUseCase {
	return &GetRequestUseCase{store: store}
}

// Execute returns the request. Publishers only see their own requests.
func (uc *GetRequestUseCase) Execute(ctx context.Context, input GetRequestInput) (*catalog.ServiceRequest, error) {
	const op = "catalog.GetRequest"
	if err := requireActor(op, input.Actor); err != nil {
		return nil, err
	}

	req, err := uc.store.Requests().FindByID(ctx, input.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to find request: %w", err)
	}
	if !canSeeRequest(input.Actor, req) {
		return nil, requestNotFound(op, input.RequestID)
	}
	return req, nil
}

// ListRequestsInput represents the input for the ListRequests use case.
type ListRequestsInput struct {
	Actor    Actor
	Statuses []catalog.RequestStatus
	Search   string
	Limit    int
	Offset   int
	// AllPublishers lists every publisher's requests; administrators only.
	AllPublishers bool
}

// ListRequestsOutput represents the output of the ListRequests use case.
type ListRequestsOutput struct {
	Requests []*catalog.ServiceRequest
	Limit    int
	Offset   int
}

// ListRequestsUseCase lists requests newest first.
type ListRequestsUseCase struct {
	store Store
}

// NewListRequestsUseCase creates a new ListRequestsUseCase.
func NewListRequestsUseCase(store Store) *ListRequestsUseCase {
	return &ListRequestsUseCase{store: store}
}

// Execute lists the caller's requests, or all requests for an administrator
// who asks for them.
func (uc *ListRequestsUseCase) Execute(ctx context.Context, input ListRequestsInput) (*ListRequestsOutput, error) {
	const op = "catalog.ListRequests"
	if err := requireActor(op, input.Actor); err != nil {
		return nil, err
	}
	if input.AllPublishers && !input.Actor.IsAdmin() {
		return nil, apperrors.Permission(op, "administrator role required to list all requests")
	}

	filter := catalog.RequestFilter{
		Statuses: input.Statuses,
		Search:   input.Search,
		Limit:    pageSize(input.Limit),
		Offset:   max(input.Offset, 0),
	}
	if !input.AllPublishers {
		filter.PublisherID = input.Actor.ID
	}

	reqs, err := uc.store.Requests().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return &ListRequestsOutput{Requests: reqs, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// RequestStats counts requests per status.
type RequestStats struct {
	Total    int
	ByStatus map[catalog.RequestStatus]int
}

// RequestStatsUseCase summarizes a publisher's requests.
type RequestStatsUseCase struct {
	store Store
}

// NewRequestStatsUseCase creates a new RequestStatsUseCase.
func NewRequestStatsUseCase(store Store) *RequestStatsUseCase {
	return &RequestStatsUseCase{store: store}
}

// Execute returns per-status counts for the caller, or for every publisher
// when the caller is an administrator.
func (uc *RequestStatsUseCase) Execute(ctx context.Context, actor Actor) (*RequestStats, error) {
	const op = "catalog.RequestStats"
	if err := requireActor(op, actor); err != nil {
		return nil, err
	}

	publisherID := actor.ID
	if actor.IsAdmin() {
		publisherID = 0
	}
	counts, err := uc.store.Requests().CountByStatus(ctx, publisherID)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	stats := &RequestStats{ByStatus: make(map[catalog.RequestStatus]int, len(catalog.AllRequestStatuses()))}
	for _, status := range catalog.AllRequestStatuses() {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

// PendingCountUseCase returns the administrator's review backlog.
type PendingCountUseCase struct {
	store Store
}

// NewPendingCountUseCase creates a new PendingCountUseCase.
func NewPendingCountUseCase(store Store) *PendingCountUseCase {
	return &PendingCountUseCase{store: store}
}

// Execute counts requests awaiting review across all publishers.
func (uc *PendingCountUseCase) Execute(ctx context.Context, actor Actor) (int, error) {
	const op = "catalog.PendingCount"
	if err := requireAdmin(op, actor); err != nil {
		return 0, err
	}
	counts, err := uc.store.Requests().CountByStatus(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return counts[catalog.RequestPendingReview], nil
}
