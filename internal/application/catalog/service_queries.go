package catalog

import (
	"context"
	"fmt"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// GetServiceInput represents the input for the GetService use case.
type GetServiceInput struct {
	Actor     Actor
	ServiceID int64
}

// GetServiceUseCase returns a service visible to the caller.
type GetServiceUseCase struct {
	store Store
}

// NewGetServiceUseCase creates a new GetServiceUseCase.
func NewGetServiceUseCase(store Store) *GetServiceUseCase {
	return &GetServiceUseCase{store: store}
}

// Execute returns the service. Publishers only see their own services.
func (uc *GetServiceUseCase) Execute(ctx context.Context, input GetServiceInput) (*catalog.Service, error) {
	const op = "catalog.GetService"
	if err := requireActor(op, input.Actor); err != nil {
		return nil, err
	}

	svc, err := uc.store.Services().FindByID(ctx, input.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	if !canSeeService(input.Actor, svc) {
		return nil, serviceNotFound(op, input.ServiceID)
	}
	return svc, nil
}

// ListServicesInput represents the input for the ListServices use case.
type ListServicesInput struct {
	Actor         Actor
	Statuses      []catalog.ServiceStatus
	Search        string
	Limit         int
	Offset        int
	AllPublishers bool
}

// ListServicesOutput represents the output of the ListServices and CatalogListing use cases.
type ListServicesOutput struct {
	Services []*catalog.Service
	Limit    int
	Offset   int
}

// ListServicesUseCase lists a publisher's services newest first.
type ListServicesUseCase struct {
	store Store
}

// NewListServicesUseCase creates a new ListServicesUseCase.
func NewListServicesUseCase(store Store) *ListServicesUseCase {
	return &ListServicesUseCase{store: store}
}

// Execute lists the caller's services, or every service for an administrator
// who asks for them.
func (uc *ListServicesUseCase) Execute(ctx context.Context, input ListServicesInput) (*ListServicesOutput, error) {
	const op = "catalog.ListServices"
	if err := requireActor(op, input.Actor); err != nil {
		return nil, err
	}
	if input.AllPublishers && !input.Actor.IsAdmin() {
		return nil, apperrors.Permission(op, "administrator role required to list all services")
	}

	filter := catalog.ServiceFilter{
		Statuses: input.Statuses,
		Search:   input.Search,
		Limit:    pageSize(input.Limit),
		Offset:   max(input.Offset, 0),
	}
	if !input.AllPublishers {
		filter.PublisherID = input.Actor.ID
	}

	svcs, err := uc.store.Services().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return &ListServicesOutput{Services: svcs, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// CatalogListingInput represents the input for the CatalogListing use case.
type CatalogListingInput struct {
	Search string
	Limit  int
	Offset int
}

// CatalogListingUseCase lists the services consumers can discover. It needs no actor.
type CatalogListingUseCase struct {
	store Store
}

// NewCatalogListingUseCase creates a new CatalogListingUseCase.
func NewCatalogListingUseCase(store Store) *CatalogListingUseCase {
	return &CatalogListingUseCase{store: store}
}

// Execute lists ready, published and active services.
func (uc *CatalogListingUseCase) Execute(ctx context.Context, input CatalogListingInput) (*ListServicesOutput, error) {
	var listed []catalog.ServiceStatus
	for _, s := range catalog.AllServiceStatuses() {
		if s.IsListed() {
			listed = append(listed, s)
		}
	}

	filter := catalog.ServiceFilter{
		Statuses: listed,
		Search:   input.Search,
		Limit:    pageSize(input.Limit),
		Offset:   max(input.Offset, 0),
	}
	svcs, err := uc.store.Services().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return &ListServicesOutput{Services: svcs, Limit: filter.Limit, Offset: filter.Offset}, nil
}
