package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

const (
	copySuffix    = " (Copia)"
	maxCopyTries  = 100
	duplicateNote = "Duplicado del servicio: "
)

// DuplicateRequestInput represents the input for the DuplicateRequest use case.
// Exactly one of RequestID and ServiceID names the source.
type DuplicateRequestInput struct {
	Actor     Actor
	RequestID int64
	ServiceID int64
}

// Validate validates the DuplicateRequestInput.
func (i *DuplicateRequestInput) Validate() error {
	const op = "catalog.DuplicateRequest"
	if err := requireActor(op, i.Actor); err != nil {
		return err
	}
	if (i.RequestID > 0) == (i.ServiceID > 0) {
		return apperrors.ValidationField(op, "source", "exactly one of request_id or service_id is required")
	}
	return nil
}

// DuplicateRequestOutput represents the output of the DuplicateRequest use case.
type DuplicateRequestOutput struct {
	Request *catalog.ServiceRequest
}

// DuplicateRequestUseCase starts a new pending request from an existing
// request or service of the same publisher.
type DuplicateRequestUseCase struct {
	store  Store
	logger *slog.Logger
}

// NewDuplicateRequestUseCase creates a new DuplicateRequestUseCase.
func NewDuplicateRequestUseCase(store Store) *DuplicateRequestUseCase {
	return &DuplicateRequestUseCase{
		store:  store,
		logger: slog.Default().With("usecase", "duplicate_request"),
	}
}

// Execute executes the duplicate request use case.
func (uc *DuplicateRequestUseCase) Execute(ctx context.Context, input DuplicateRequestInput) (*DuplicateRequestOutput, error) {
	const op = "catalog.DuplicateRequest"

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var dup *catalog.ServiceRequest
	err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
		source, err := uc.loadSource(ctx, uow, input)
		if err != nil {
			return err
		}

		name, err := uc.freeName(ctx, uow, source.Name)
		if err != nil {
			return err
		}

		details := source
		details.Name = name
		details.Version = catalog.DefaultVersion
		details.Justification = duplicateNote + source.Name
		details.TermsAccepted = true

		dup, err = catalog.NewServiceRequest(input.Actor.ID, details)
		if err != nil {
			return err
		}
		if err := uow.Requests().Create(ctx, dup); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("service request duplicated",
		"request_id", dup.ID(),
		"source_request_id", input.RequestID,
		"source_service_id", input.ServiceID)
	return &DuplicateRequestOutput{Request: dup}, nil
}

func (uc *DuplicateRequestUseCase) loadSource(ctx context.Context, uow catalog.UnitOfWork, input DuplicateRequestInput) (catalog.RequestDetails, error) {
	const op = "catalog.DuplicateRequest"

	if input.RequestID > 0 {
		req, err := uow.Requests().FindByID(ctx, input.RequestID)
		if err != nil {
			return catalog.RequestDetails{}, fmt.Errorf("failed to find request: %w", err)
		}
		if !req.IsOwnedBy(input.Actor.ID) {
			return catalog.RequestDetails{}, requestNotFound(op, input.RequestID)
		}
		return req.Details(), nil
	}

	svc, err := uow.Services().FindByID(ctx, input.ServiceID)
	if err != nil {
		return catalog.RequestDetails{}, fmt.Errorf("failed to find service: %w", err)
	}
	if !svc.IsOwnedBy(input.Actor.ID) {
		return catalog.RequestDetails{}, serviceNotFound(op, input.ServiceID)
	}

	listing := svc.Listing()
	// The managed endpoint is not a publisher URL; duplicate the original one.
	if original := svc.OperationalConfig().String(catalog.KeyOriginalURL); original != "" {
		listing.URL = original
	}
	return catalog.RequestDetails{Listing: listing}, nil
}

// freeName returns "<name> (Copia)", or "<name> (Copia N)" if that is taken.
func (uc *DuplicateRequestUseCase) freeName(ctx context.Context, uow catalog.UnitOfWork, name string) (string, error) {
	const op = "catalog.DuplicateRequest"

	base := name
	if limit := MaxNameLength - len(copySuffix) - 4; len(base) > limit {
		base = truncateRunes(base, limit)
	}

	for n := 1; n <= maxCopyTries; n++ {
		candidate := base + copySuffix
		if n > 1 {
			candidate = fmt.Sprintf("%s (Copia %d)", base, n)
		}
		taken, err := uow.Requests().ExistsByName(ctx, candidate, 0)
		if err != nil {
			return "", fmt.Errorf("failed to check request name: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperrors.ConflictWrap(catalog.ErrDuplicateName, op,
		fmt.Sprintf("no free copy name for %q", name))
}

func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	out := make([]rune, 0, maxBytes)
	size := 0
	for _, r := range s {
		l := len(string(r))
		if size+l > maxBytes {
			break
		}
		out = append(out, r)
		size += l
	}
	return string(out)
}
