package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// DefaultMaxSuffix bounds the numeric suffix search for a free endpoint.
const DefaultMaxSuffix = 10000

// Lookup answers whether a url is already held by a different service.
// catalog.ServiceRepository satisfies it.
type Lookup interface {
	ExistsByURL(ctx context.Context, url string, excludeID int64) (bool, error)
}

// Allocator computes managed endpoints of the form /{base}/{slug}.
type Allocator struct {
	maxSuffix int
	logger    *slog.Logger
}

// NewAllocator creates an allocator. A non-positive maxSuffix selects DefaultMaxSuffix.
func NewAllocator(maxSuffix int) *Allocator {
	if maxSuffix <= 0 {
		maxSuffix = DefaultMaxSuffix
	}
	return &Allocator{
		maxSuffix: maxSuffix,
		logger:    slog.Default().With("component", "endpoint_allocator"),
	}
}

// MaxSuffix returns the highest suffix the allocator will try.
func (a *Allocator) MaxSuffix() int {
	return a.maxSuffix
}

// Allocate computes the endpoint svc should hold without modifying it.
func (a *Allocator) Allocate(ctx context.Context, svc *catalog.Service, lookup Lookup) (catalog.EndpointAssignment, error) {
	const op = "endpoint.Allocate"

	id := svc.ID()
	if id <= 0 {
		return catalog.EndpointAssignment{}, apperrors.Internal(op, "service must be persisted before an endpoint is allocated")
	}

	baseOverride, slugOverride := svc.EndpointOverrides()
	base := Slugify(baseOverride)
	if base == "" {
		base = "servicio" + strconv.FormatInt(id, 10)
	}

	slug := Slugify(slugOverride)
	if slug == "" {
		slug = Slugify(svc.Name())
	}
	if slug == "" {
		slug = strconv.FormatInt(id, 10)
	}

	for n := 1; n <= a.maxSuffix; n++ {
		if err := ctx.Err(); err != nil {
			return catalog.EndpointAssignment{}, apperrors.Wrap(err, apperrors.KindCanceled, op, "allocation canceled")
		}

		candidate := slug
		if n > 1 {
			candidate = slug + "-" + strconv.Itoa(n)
		}
		assignment := catalog.EndpointAssignment{Base: base, Slug: candidate}
		assignment.Endpoint = assignment.Path()

		taken, err := lookup.ExistsByURL(ctx, assignment.Endpoint, id)
		if err != nil {
			return catalog.EndpointAssignment{}, fmt.Errorf("failed to check endpoint %s: %w", assignment.Endpoint, err)
		}
		if !taken {
			if n > 1 {
				a.logger.Debug("endpoint collision resolved",
					"service_id", id,
					"requested", "/"+base+"/"+slug,
					"assigned", assignment.Endpoint)
			}
			return assignment, nil
		}
	}

	return catalog.EndpointAssignment{}, apperrors.ConflictWrap(catalog.ErrDuplicateURL, op,
		fmt.Sprintf("no free endpoint for /%s/%s within %d suffixes", base, slug, a.maxSuffix)).
		WithDetail("service_id", id)
}

// Assign allocates an endpoint and applies it to svc. Persisting is left to the caller.
func (a *Allocator) Assign(ctx context.Context, svc *catalog.Service, lookup Lookup) (catalog.EndpointAssignment, error) {
	assignment, err := a.Allocate(ctx, svc, lookup)
	if err != nil {
		return catalog.EndpointAssignment{}, err
	}
	svc.ApplyEndpoint(assignment)
	return assignment, nil
}

// AssignAndSave allocates, applies and persists the endpoint through repo.
func (a *Allocator) AssignAndSave(ctx context.Context, svc *catalog.Service, repo catalog.ServiceRepository) (catalog.EndpointAssignment, error) {
	assignment, err := a.Assign(ctx, svc, repo)
	if err != nil {
		return catalog.EndpointAssignment{}, err
	}
	if err := repo.Save(ctx, svc); err != nil {
		return catalog.EndpointAssignment{}, fmt.Errorf("failed to save endpoint: %w", err)
	}
	return assignment, nil
}
