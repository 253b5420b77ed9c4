package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// DeleteRequestInput represents the input for the DeleteRequest use case.
type DeleteRequestInput struct {
	Actor     Actor
	RequestID int64
}

// Validate validates the DeleteRequestInput.
func (i *DeleteRequestInput) Validate() error {
	const op = "catalog.DeleteRequest"
	if err := requireActor(op, i.Actor); err != nil {
		return err
	}
	if i.RequestID <= 0 {
		return apperrors.ValidationField(op, "request_id", "is required")
	}
	return nil
}

// DeleteRequestUseCase removes a publisher's request that has no promoted service.
type DeleteRequestUseCase struct {
	store  Store
	logger *slog.Logger
}

// NewDeleteRequestUseCase creates a new DeleteRequestUseCase.
func NewDeleteRequestUseCase(store Store) *DeleteRequestUseCase {
	return &DeleteRequestUseCase{
		store:  store,
		logger: slog.Default().With("usecase", "delete_request"),
	}
}

// Execute executes the delete request use case.
func (uc *DeleteRequestUseCase) Execute(ctx context.Context, input DeleteRequestInput) error {
	const op = "catalog.DeleteRequest"

	if err := input.Validate(); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
		req, err := uow.Requests().FindByID(ctx, input.RequestID)
		if err != nil {
			return fmt.Errorf("failed to find request: %w", err)
		}
		if !req.IsOwnedBy(input.Actor.ID) {
			return requestNotFound(op, input.RequestID)
		}
		if err := req.CanDelete(); err != nil {
			return err
		}

		req.MarkDeleted()
		uow.CollectEvents(req.DomainEvents()...)
		req.ClearDomainEvents()

		if err := uow.Requests().Delete(ctx, req.ID()); err != nil {
			return fmt.Errorf("failed to delete request: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	uc.logger.Info("service request deleted", "request_id", input.RequestID)
	return nil
}
