package handlers

import (
	"net/http"
	"strconv"
	"time"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
)

// SubmitRequest handles POST /requests.
func (c *Context) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var payload catalogapp.RequestPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		respondAppError(w, r, err)
		return
	}

	out, err := c.UseCases.SubmitRequest.Execute(r.Context(), catalogapp.SubmitRequestInput{
		Actor:   actor(r),
		Payload: payload,
	})
	c.record("submit_request", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.Header().Set("Location", requestLocation(out.Request.ID()))
	respondJSON(w, http.StatusCreated, dto.FromRequest(out.Request))
}

// ListRequests handles GET /requests. Administrators may pass all=true.
func (c *Context) ListRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	statuses, err := parseRequestStatuses(listParam(r, "status"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	out, err := c.UseCases.ListRequests.Execute(r.Context(), catalogapp.ListRequestsInput{
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
	respondJSON(w, http.StatusOK, dto.NewPage(dto.FromRequests(out.Requests), out.Limit, out.Offset))
}

// RequestStats handles GET /requests/stats.
func (c *Context) RequestStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.UseCases.RequestStats.Execute(r.Context(), actor(r))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromStats(stats.Total, stats.ByStatus))
}

// GetRequest handles GET /requests/{id}.
func (c *Context) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	req, err := c.UseCases.GetRequest.Execute(r.Context(), catalogapp.GetRequestInput{
		Actor:     actor(r),
		RequestID: id,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromRequest(req))
}

// EditRequest handles PUT /requests/{id}. The body is a complete payload.
func (c *Context) EditRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var payload catalogapp.RequestPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		respondAppError(w, r, err)
		return
	}

	out, err := c.UseCases.EditRequest.Execute(r.Context(), catalogapp.EditRequestInput{
		Actor:     actor(r),
		RequestID: id,
		Payload:   payload,
	})
	c.record("edit_request", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromRequest(out.Request))
}

// DeleteRequest handles DELETE /requests/{id}.
func (c *Context) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	err = c.UseCases.DeleteRequest.Execute(r.Context(), catalogapp.DeleteRequestInput{
		Actor:     actor(r),
		RequestID: id,
	})
	c.record("delete_request", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateRequest handles POST /requests/{id}/duplicate.
func (c *Context) DuplicateRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	c.duplicate(w, r, catalogapp.DuplicateRequestInput{Actor: actor(r), RequestID: id})
}

// DuplicateService handles POST /services/{id}/duplicate.
func (c *Context) DuplicateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	c.duplicate(w, r, catalogapp.DuplicateRequestInput{Actor: actor(r), ServiceID: id})
}

func (c *Context) duplicate(w http.ResponseWriter, r *http.Request, input catalogapp.DuplicateRequestInput) {
	start := time.Now()
	out, err := c.UseCases.DuplicateRequest.Execute(r.Context(), input)
	c.record("duplicate_request", start, err)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.Header().Set("Location", requestLocation(out.Request.ID()))
	respondJSON(w, http.StatusCreated, dto.FromRequest(out.Request))
}

// PendingCount handles GET /admin/requests/pending-count.
func (c *Context) PendingCount(w http.ResponseWriter, r *http.Request) {
	n, err := c.UseCases.PendingCount.Execute(r.Context(), actor(r))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if c.Metrics != nil {
		c.Metrics.SetPendingRequests(n)
	}
	respondJSON(w, http.StatusOK, dto.PendingCountDTO{Pending: n})
}

// ReviewRequest handles POST /admin/requests/{id}/review.
func (c *Context) ReviewRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var body dto.ReviewRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondAppError(w, r, err)
		return
	}

	// Unknown decisions are reported by input validation.
	decision, _ := catalogapp.ParseDecision(body.Decision)
	out, err := c.UseCases.ReviewRequest.Execute(r.Context(), catalogapp.ReviewRequestInput{
		Actor:        actor(r),
		RequestID:    id,
		Decision:     decision,
		Notes:        body.Notes,
		Reason:       body.Reason,
		EndpointBase: body.EndpointBase,
		EndpointSlug: body.EndpointSlug,
	})
	c.record("review_request", start, err)
	if c.Metrics != nil && out != nil {
		c.Metrics.RecordRetries("review_request", out.Attempts)
	}
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	resp := dto.ReviewResponse{Request: dto.FromRequest(out.Request)}
	if out.Service != nil {
		svc := dto.FromService(out.Service)
		resp.Service = &svc
	}
	respondJSON(w, http.StatusOK, resp)
}

func parseRequestStatuses(raw []string) ([]catalog.RequestStatus, error) {
	out := make([]catalog.RequestStatus, 0, len(raw))
	for _, s := range raw {
		status, err := catalog.ParseRequestStatus(s)
		if err != nil {
			return nil, apperrors.ValidationField("http.ListRequests", "status", err.Error())
		}
		out = append(out, status)
	}
	return out, nil
}

func requestLocation(id int64) string {
	return "/api/v1/requests/" + strconv.FormatInt(id, 10)
}
