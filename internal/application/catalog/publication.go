package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// loadOwnedService fetches a service inside uow. Services of other
// publishers are reported as not found.
func loadOwnedService(ctx context.Context, uow catalog.UnitOfWork, op string, actor Actor, id int64) (*catalog.Service, error) {
	svc, err := uow.Services().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	if !svc.IsOwnedBy(actor.ID) {
		return nil, serviceNotFound(op, id)
	}
	return svc, nil
}

func validateServiceRef(op string, actor Actor, serviceID int64) error {
	if err := requireActor(op, actor); err != nil {
		return err
	}
	if serviceID <= 0 {
		return apperrors.ValidationField(op, "service_id", "is required")
	}
	return nil
}

// ConfigureServiceInput represents the input for the ConfigureService use case.
type ConfigureServiceInput struct {
	Actor     Actor
	ServiceID int64
	Patch     catalog.ConfigPatch
}

// Validate validates the ConfigureServiceInput.
func (i *ConfigureServiceInput) Validate() error {
	const op = "catalog.ConfigureService"
	if err := validateServiceRef(op, i.Actor, i.ServiceID); err != nil {
		return err
	}
	return i.Patch.Validate()
}

// ConfigureServiceUseCase merges operational settings into a service.
type ConfigureServiceUseCase struct {
	store  Store
	logger *slog.Logger
}

// NewConfigureServiceUseCase creates a new ConfigureServiceUseCase.
func NewConfigureServiceUseCase(store Store) *ConfigureServiceUseCase {
	return &ConfigureServiceUseCase{
		store:  store,
		logger: slog.Default().With("usecase", "configure_service"),
	}
}

// Execute executes the configure service use case.
func (uc *ConfigureServiceUseCase) Execute(ctx context.Context, input ConfigureServiceInput) (*catalog.Service, error) {
	const op = "catalog.ConfigureService"

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var svc *catalog.Service
	err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
		var err error
		if svc, err = loadOwnedService(ctx, uow, op, input.Actor, input.ServiceID); err != nil {
			return err
		}
		if err := svc.Configure(input.Actor.ID, input.Patch); err != nil {
			return err
		}
		if err := uow.Services().Save(ctx, svc); err != nil {
			return fmt.Errorf("failed to save service: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("service configured",
		"service_id", svc.ID(),
		"sections", input.Patch.Keys())
	return svc, nil
}

// PublishServiceInput represents the input for the PublishService use case.
type PublishServiceInput struct {
	Actor     Actor
	ServiceID int64
	Notes     string
}

// Validate validates the PublishServiceInput.
func (i *PublishServiceInput) Validate() error {
	const op = "catalog.PublishService"
	if err := validateServiceRef(op, i.Actor, i.ServiceID); err != nil {
		return err
	}
	var fe apperrors.FieldErrors
	textLength(&fe, "notes", i.Notes, 0, MaxPublishNotesLength)
	return fe.ToError(op)
}

// PublishServiceUseCase makes a ready service available to consumers.
type PublishServiceUseCase struct {
	store  Store
	logger *slog.Logger
}

// NewPublishServiceUseCase creates a new PublishServiceUseCase.
func NewPublishServiceUseCase(store Store) *PublishServiceUseCase {
	return &PublishServiceUseCase{
		store:  store,
		logger: slog.Default().With("usecase", "publish_service"),
	}
}

// Execute executes the publish service use case.
func (uc *PublishServiceUseCase) Execute(ctx context.Context, input PublishServiceInput) (*catalog.Service, error) {
	const op = "catalog.PublishService"

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var svc *catalog.Service
	err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
		var err error
		if svc, err = loadOwnedService(ctx, uow, op, input.Actor, input.ServiceID); err != nil {
			return err
		}
		if err := svc.Publish(input.Actor.ID, input.Notes); err != nil {
			return err
		}
		if err := uow.Services().Save(ctx, svc); err != nil {
			return fmt.Errorf("failed to save service: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("service published", "service_id", svc.ID(), "endpoint", svc.URL())
	return svc, nil
}

// UnpublishServiceInput represents the input for the UnpublishService use case.
type UnpublishServiceInput struct {
	Actor     Actor
	ServiceID int64
	Reason    string
}

// Validate validates the UnpublishServiceInput. The reason length is
// enforced by the service itself.
func (i *UnpublishServiceInput) Validate() error {
	return validateServiceRef("catalog.UnpublishService", i.Actor, i.ServiceID)
}

// UnpublishServiceUseCase withdraws a published service.
type UnpublishServiceUseCase struct {
	store  Store
	logger *slog.Logger
}

// NewUnpublishServiceUseCase creates a new UnpublishServiceUseCase.
func NewUnpublishServiceUseCase(store Store) *UnpublishServiceUseCase {
	return &UnpublishServiceUseCase{
		store:  store,
		logger: slog.Default().With("usecase", "unpublish_service"),
	}
}

// Execute executes the unpublish service use case.
func (uc *UnpublishServiceUseCase) Execute(ctx context.Context, input UnpublishServiceInput) (*catalog.Service, error) {
	const op = "catalog.UnpublishService"

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var svc *catalog.Service
	err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
		var err error
		if svc, err = loadOwnedService(ctx, uow, op, input.Actor, input.ServiceID); err != nil {
			return err
		}
		if err := svc.Unpublish(input.Actor.ID, input.Reason); err != nil {
			return err
		}
		if err := uow.Services().Save(ctx, svc); err != nil {
			return fmt.Errorf("failed to save service: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("service unpublished", "service_id", svc.ID())
	return svc, nil
}
