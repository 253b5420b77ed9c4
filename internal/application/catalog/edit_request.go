package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// EditRequestInput represents the input for the EditRequest use case.
type EditRequestInput struct {
	Actor     Actor
	RequestID int64
	Payload   RequestPayload
}

// Validate validates the EditRequestInput.
func (i *EditRequestInput) Validate() error {
	const op = "catalog.EditRequest"
	if err := requireActor(op, i.Actor); err != nil {
		return err
	}
	if i.RequestID <= 0 {
		return apperrors.ValidationField(op, "request_id", "is required")
	}
	return i.Payload.Validate(op)
}

// EditRequestOutput represents the output of the EditRequest use case.
type EditRequestOutput struct {
	Request *catalog.ServiceRequest
}

// EditRequestUseCase lets a publisher change a request that has not been
// decided yet. The edited request goes back to pending_review.
type EditRequestUseCase struct {
	store  Store
	logger *slog.Logger
}

// NewEditRequestUseCase creates a new EditRequestUseCase.
func NewEditRequestUseCase(store Store) *EditRequestUseCase {
	return &EditRequestUseCase{
		store:  store,
		logger: slog.Default().With("usecase", "edit_request"),
	}
}

// Execute executes the edit request use case.
func (uc *EditRequestUseCase) Execute(ctx context.Context, input EditRequestInput) (*EditRequestOutput, error) {
	const op = "catalog.EditRequest"

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var req *catalog.ServiceRequest
	err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
		var err error
		req, err = uow.Requests().FindByID(ctx, input.RequestID)
		if err != nil {
			return fmt.Errorf("failed to find request: %w", err)
		}
		if !req.IsOwnedBy(input.Actor.ID) {
			return requestNotFound(op, input.RequestID)
		}

		taken, err := uow.Requests().ExistsByName(ctx, input.Payload.Name, req.ID())
		if err != nil {
			return fmt.Errorf("failed to check request name: %w", err)
		}
		if taken {
			return apperrors.ConflictWrap(catalog.ErrDuplicateName, op,
				fmt.Sprintf("a service request named %q already exists", input.Payload.Name)).
				WithDetail("field", "name")
		}

		if err := req.Edit(input.Payload.Details()); err != nil {
			return err
		}
		if err := uow.Requests().Save(ctx, req); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("service request edited", "request_id", req.ID())
	return &EditRequestOutput{Request: req}, nil
}
