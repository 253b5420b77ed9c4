// Package handlers provides HTTP request handlers for the catalog API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
	"github.com/williamsiker/practicas/internal/httpserver/middleware"
	"github.com/williamsiker/practicas/internal/observability"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Context holds dependencies for HTTP handlers.
type Context struct {
	UseCases *catalogapp.UseCases
	// Metrics is optional.
	Metrics *observability.Metrics
	// Ping checks storage for the health endpoint; optional.
	Ping    func(ctx context.Context) error
	Version string
}

// NewContext creates a handler context over the given use cases.
func NewContext(useCases *catalogapp.UseCases, metrics *observability.Metrics, version string) *Context {
	return &Context{UseCases: useCases, Metrics: metrics, Version: version}
}

// record reports an operation outcome to metrics.
func (c *Context) record(op string, start time.Time, err error) {
	if c.Metrics != nil {
		c.Metrics.RecordOperation(op, err, time.Since(start))
	}
}

func actor(r *http.Request) catalogapp.Actor {
	return middleware.ActorFromContext(r.Context())
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationField("http.pathID", "id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// pageParams reads limit and offset query parameters.
func pageParams(r *http.Request) (limit, offset int, err error) {
	var fe apperrors.FieldErrors
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			fe.Add("limit", "must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			fe.Add("offset", "must be a non-negative integer")
		}
	}
	return limit, offset, fe.ToError("http.pageParams")
}

// listParam splits a comma separated query parameter.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// decodeJSON decodes a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	const op = "http.decodeJSON"
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return apperrors.Validation(op, "request body is required")
		}
		return apperrors.Validation(op, "malformed JSON body: "+err.Error())
	}
	return nil
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// StatusForError maps an error kind to an HTTP status code.
func StatusForError(err error) int {
	switch apperrors.GetKind(err) {
	case apperrors.KindValidation:
		return http.StatusUnprocessableEntity
	case apperrors.KindConflict, apperrors.KindState:
		return http.StatusConflict
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindAuthentication:
		return http.StatusUnauthorized
	case apperrors.KindPermission:
		return http.StatusForbidden
	case apperrors.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError writes err using its kind. Internal details are logged,
// never returned.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	kind := apperrors.GetKind(err)

	resp := dto.ErrorResponse{Code: kind.String()}
	var appErr *apperrors.Error
	if status < http.StatusInternalServerError && errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Fields = appErr.Fields()
	} else {
		resp.Error = http.StatusText(status)
		resp.Code = "internal"
		slog.ErrorContext(r.Context(), "request failed",
			"error", err,
			"kind", kind.String(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	}
	if apperrors.IsRetryableConflict(err) {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, status, resp)
}
