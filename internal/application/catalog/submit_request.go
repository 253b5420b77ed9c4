package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// SubmitRequestInput represents the input for the SubmitRequest use case.
type SubmitRequestInput struct {
	Actor   Actor
	Payload RequestPayload
}

// Validate validates the SubmitRequestInput.
func (i *SubmitRequestInput) Validate() error {
	const op = "catalog.SubmitRequest"
	if err := requireActor(op, i.Actor); err != nil {
		return err
	}
	return i.Payload.Validate(op)
}

// SubmitRequestOutput represents the output of the SubmitRequest use case.
type SubmitRequestOutput struct {
	Request *catalog.ServiceRequest
}

// SubmitRequestUseCase records a new service request awaiting review.
type SubmitRequestUseCase struct {
	store  Store
	logger *slog.Logger
}

// NewSubmitRequestUseCase creates a new SubmitRequestUseCase.
func NewSubmitRequestUseCase(store Store) *SubmitRequestUseCase {
	return &SubmitRequestUseCase{
		store:  store,
		logger: slog.Default().With("usecase", "submit_request"),
	}
}

// Execute executes the submit request use case.
func (uc *SubmitRequestUseCase) Execute(ctx context.Context, input SubmitRequestInput) (*SubmitRequestOutput, error) {
	const op = "catalog.SubmitRequest"

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var req *catalog.ServiceRequest
	err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
		taken, err := uow.Requests().ExistsByName(ctx, input.Payload.Name, 0)
		if err != nil {
			return fmt.Errorf("failed to check request name: %w", err)
		}
		if taken {
			return apperrors.ConflictWrap(catalog.ErrDuplicateName, op,
				fmt.Sprintf("a service request named %q already exists", input.Payload.Name)).
				WithDetail("field", "name")
		}

		req, err = catalog.NewServiceRequest(input.Actor.ID, input.Payload.Details())
		if err != nil {
			return err
		}
		if err := uow.Requests().Create(ctx, req); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("service request submitted",
		"request_id", req.ID(),
		"publisher_id", req.PublisherID(),
		"name", req.Name())

	return &SubmitRequestOutput{Request: req}, nil
}
