package catalog

import "github.com/williamsiker/practicas/internal/domain/endpoint"

// UseCases bundles the catalog use cases built over one store.
type UseCases struct {
	SubmitRequest    *SubmitRequestUseCase
	EditRequest      *EditRequestUseCase
	DeleteRequest    *DeleteRequestUseCase
	DuplicateRequest *DuplicateRequestUseCase
	ReviewRequest    *ReviewRequestUseCase
	GetRequest       *GetRequestUseCase
	ListRequests     *ListRequestsUseCase
	RequestStats     *RequestStatsUseCase
	PendingCount     *PendingCountUseCase

	GetService       *GetServiceUseCase
	ListServices     *ListServicesUseCase
	CatalogListing   *CatalogListingUseCase
	ConfigureService *ConfigureServiceUseCase
	PublishService   *PublishServiceUseCase
	UnpublishService *UnpublishServiceUseCase
	UpdateEndpoint   *UpdateEndpointUseCase
}

// NewUseCases wires every use case to store. A nil allocator uses the
// default suffix limit.
func NewUseCases(store Store, allocator *endpoint.Allocator, retry RetryPolicy) *UseCases {
	if allocator == nil {
		allocator = endpoint.NewAllocator(0)
	}
	return &UseCases{
		SubmitRequest:    NewSubmitRequestUseCase(store),
		EditRequest:      NewEditRequestUseCase(store),
		DeleteRequest:    NewDeleteRequestUseCase(store),
		DuplicateRequest: NewDuplicateRequestUseCase(store),
		ReviewRequest:    NewReviewRequestUseCase(store, NewPromoter(allocator), retry),
		GetRequest:       NewGetRequestUseCase(store),
		ListRequests:     NewListRequestsUseCase(store),
		RequestStats:     NewRequestStatsUseCase(store),
		PendingCount:     NewPendingCountUseCase(store),
		GetService:       NewGetServiceUseCase(store),
		ListServices:     NewListServicesUseCase(store),
		CatalogListing:   NewCatalogListingUseCase(store),
		ConfigureService: NewConfigureServiceUseCase(store),
		PublishService:   NewPublishServiceUseCase(store),
		UnpublishService: NewUnpublishServiceUseCase(store),
		UpdateEndpoint:   NewUpdateEndpointUseCase(store, allocator, retry),
	}
}
