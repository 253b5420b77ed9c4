package catalog

import (
	"context"
	"fmt"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	"github.com/williamsiker/practicas/internal/domain/endpoint"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// Promoter turns an approved request into an enhanced service.
type Promoter struct {
	allocator *endpoint.Allocator
}

// NewPromoter creates a promoter that allocates endpoints with allocator.
func NewPromoter(allocator *endpoint.Allocator) *Promoter {
	if allocator == nil {
		allocator = endpoint.NewAllocator(0)
	}
	return &Promoter{allocator: allocator}
}

// PromoteOptions carries the reviewer's promotion choices.
type PromoteOptions struct {
	ReviewerID   int64
	Notes        string
	EndpointBase string
	EndpointSlug string
}

// Promote creates the service, assigns its managed endpoint and marks the
// request approved. Every write goes through uow, so a failure at any step
// leaves neither a service nor an approved request behind.
func (p *Promoter) Promote(ctx context.Context, uow catalog.UnitOfWork, req *catalog.ServiceRequest, opts PromoteOptions) (*catalog.Service, error) {
	const op = "catalog.Promote"

	taken, err := uow.Services().ExistsByName(ctx, req.Name(), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check service name: %w", err)
	}
	if taken {
		return nil, apperrors.ConflictWrap(catalog.ErrDuplicateName, op,
			fmt.Sprintf("a service named %q already exists", req.Name())).
			WithDetail("field", "name")
	}

	svc, err := catalog.NewServiceFromRequest(req, catalog.PromotionOptions{
		ApproverID:   opts.ReviewerID,
		Notes:        opts.Notes,
		EndpointBase: opts.EndpointBase,
		EndpointSlug: opts.EndpointSlug,
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Services().Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	if _, err := p.allocator.Assign(ctx, svc, uow.Services()); err != nil {
		return nil, fmt.Errorf("failed to allocate endpoint: %w", err)
	}
	if err := uow.Services().Save(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to save service endpoint: %w", err)
	}

	if err := req.Approve(opts.ReviewerID, svc.ID(), opts.Notes); err != nil {
		return nil, err
	}
	if err := uow.Requests().Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}
	return svc, nil
}
