package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	"github.com/williamsiker/practicas/internal/domain/endpoint"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// UpdateEndpointInput represents the input for the UpdateEndpoint use case.
// Nil or blank overrides keep the current value.
type UpdateEndpointInput struct {
	Actor     Actor
	ServiceID int64
	Base      *string
	Slug      *string
}

// Validate validates the UpdateEndpointInput.
func (i *UpdateEndpointInput) Validate() error {
	const op = "catalog.UpdateEndpoint"
	if err := requireAdmin(op, i.Actor); err != nil {
		return err
	}
	if i.ServiceID <= 0 {
		return apperrors.ValidationField(op, "service_id", "is required")
	}
	var fe apperrors.FieldErrors
	if i.Base != nil {
		textLength(&fe, "endpoint_base", *i.Base, 0, MaxNameLength)
	}
	if i.Slug != nil {
		textLength(&fe, "endpoint_slug", *i.Slug, 0, MaxNameLength)
	}
	return fe.ToError(op)
}

// UpdateEndpointOutput represents the output of the UpdateEndpoint use case.
type UpdateEndpointOutput struct {
	Service    *catalog.Service
	Assignment catalog.EndpointAssignment
	Previous   string
}

// UpdateEndpointUseCase stores endpoint overrides and re-allocates the
// managed endpoint of a service.
type UpdateEndpointUseCase struct {
	store     Store
	allocator *endpoint.Allocator
	retry     RetryPolicy
	logger    *slog.Logger
}

// NewUpdateEndpointUseCase creates a new UpdateEndpointUseCase.
func NewUpdateEndpointUseCase(store Store, allocator *endpoint.Allocator, retry RetryPolicy) *UpdateEndpointUseCase {
	if allocator == nil {
		allocator = endpoint.NewAllocator(0)
	}
	return &UpdateEndpointUseCase{
		store:     store,
		allocator: allocator,
		retry:     retry,
		logger:    slog.Default().With("usecase", "update_endpoint"),
	}
}

// Execute executes the update endpoint use case.
func (uc *UpdateEndpointUseCase) Execute(ctx context.Context, input UpdateEndpointInput) (*UpdateEndpointOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	out, err := withRetry(ctx, uc.retry, func(ctx context.Context) (*UpdateEndpointOutput, error) {
		out := &UpdateEndpointOutput{}
		err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
			svc, err := uow.Services().FindByID(ctx, input.ServiceID)
			if err != nil {
				return fmt.Errorf("failed to find service: %w", err)
			}
			out.Previous = svc.URL()

			svc.SetEndpointOverrides(input.Base, input.Slug)
			assignment, err := uc.allocator.Assign(ctx, svc, uow.Services())
			if err != nil {
				return fmt.Errorf("failed to allocate endpoint: %w", err)
			}
			if err := uow.Services().Save(ctx, svc); err != nil {
				return fmt.Errorf("failed to save service: %w", err)
			}
			out.Service = svc
			out.Assignment = assignment
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("service endpoint updated",
		"service_id", out.Service.ID(),
		"endpoint", out.Service.URL(),
		"previous", out.Previous)
	return out, nil
}
