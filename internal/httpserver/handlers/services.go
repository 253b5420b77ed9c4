package handlers

import (
	"net/http"
	"time"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
)

// ListServices handles GET /services. Administrators may pass all=true.
func (c *Context) ListServices(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	statuses, err := parseServiceStatuses(listParam(r, "status"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	out, err := c.UseCases.ListServices.Execute(r.Context(), catalogapp.ListServicesInput{
		Actor:         actor(r),
		Statuses:      statuses,
		Search:        r.URL.Query().Get("search"),
		Limit:         limit,
		Offset:        offset,
		AllPublishers: boolParam(r, "all"),
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewPage(dto.FromServices(out.Services), out.Limit, out.Offset))
}

// GetService handles GET /services/{id}.
func (c *Context) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	svc, err := c.UseCases.GetService.Execute(r.Context(), catalogapp.GetServiceInput{
		Actor:     actor(r),
		ServiceID: id,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromService(svc))
}

// ConfigureService handles PUT /services/{id}/configuration. The body maps
// configurable section names to values; null removes a section.
func (c *Context) ConfigureService(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var patch map[string]any
	if err := decodeJSON(w, r, &patch); err != nil {
		respondAppError(w, r, err)
		return
	}

	svc, err := c.UseCases.ConfigureService.Execute(r.Context(), catalogapp.ConfigureServiceInput{
		Actor:     actor(r),
		ServiceID: id,
		Patch:     catalog.ConfigPatch(patch),
	})
	c.record("configure_service", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromService(svc))
}

// PublishService handles POST /services/{id}/publish.
func (c *Context) PublishService(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var body dto.PublishRequest
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		respondAppError(w, r, err)
		return
	}

	svc, err := c.UseCases.PublishService.Execute(r.Context(), catalogapp.PublishServiceInput{
		Actor:     actor(r),
		ServiceID: id,
		Notes:     body.Notes,
	})
	c.record("publish_service", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromService(svc))
}

// UnpublishService handles POST /services/{id}/unpublish.
func (c *Context) UnpublishService(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var body dto.UnpublishRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondAppError(w, r, err)
		return
	}

	svc, err := c.UseCases.UnpublishService.Execute(r.Context(), catalogapp.UnpublishServiceInput{
		Actor:     actor(r),
		ServiceID: id,
		Reason:    body.Reason,
	})
	c.record("unpublish_service", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromService(svc))
}

// UpdateEndpoint handles PUT /admin/services/{id}/endpoint.
func (c *Context) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var body dto.EndpointRequest
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		respondAppError(w, r, err)
		return
	}

	out, err := c.UseCases.UpdateEndpoint.Execute(r.Context(), catalogapp.UpdateEndpointInput{
		Actor:     actor(r),
		ServiceID: id,
		Base:      body.EndpointBase,
		Slug:      body.EndpointSlug,
	})
	c.record("update_endpoint", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.EndpointResponse{
		Service:  dto.FromService(out.Service),
		Previous: out.Previous,
		Base:     out.Assignment.Base,
		Slug:     out.Assignment.Slug,
	})
}

// Catalog handles the public GET /catalog listing.
func (c *Context) Catalog(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	out, err := c.UseCases.CatalogListing.Execute(r.Context(), catalogapp.CatalogListingInput{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	entries := make([]dto.CatalogEntryDTO, 0, len(out.Services))
	for _, svc := range out.Services {
		entries = append(entries, dto.FromCatalogEntry(svc))
	}
	respondJSON(w, http.StatusOK, dto.NewPage(entries, out.Limit, out.Offset))
}

func parseServiceStatuses(raw []string) ([]catalog.ServiceStatus, error) {
	out := make([]catalog.ServiceStatus, 0, len(raw))
	for _, s := range raw {
		status, err := catalog.ParseServiceStatus(s)
		if err != nil {
			return nil, apperrors.ValidationField("http.ListServices", "status", err.Error())
		}
		out = append(out, status)
	}
	return out, nil
}
