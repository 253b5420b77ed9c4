package cli

import (
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/williamsiker/practicas/internal/httpserver/dto"
)

type requestsView []dto.RequestDTO

func (v requestsView) header() []string {
	return []string{"ID", "NAME", "PUBLISHER", "STATUS", "URL", "UPDATED"}
}

func (v requestsView) rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			strconv.FormatInt(r.PublisherID, 10),
			r.Status + " (" + r.StatusLabel + ")",
			r.URL,
			r.UpdatedAt.Format(time.DateTime),
		})
	}
	return rows
}

type servicesView []dto.ServiceDTO

func (v servicesView) header() []string {
	return []string{"ID", "NAME", "PUBLISHER", "STATUS", "ENDPOINT", "PRICE"}
}

func (v servicesView) rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, s := range v {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			strconv.FormatInt(s.PublisherID, 10),
			s.Status + " (" + s.StatusLabel + ")",
			s.ManagedEndpoint,
			s.BasePrice.StringFixed(2),
		})
	}
	return rows
}

type catalogView []dto.CatalogEntryDTO

func (v catalogView) header() []string {
	return []string{"ID", "NAME", "METHOD", "URL", "VERSION", "PRICE", "PER DAY"}
}

func (v catalogView) rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, e := range v {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Name,
			e.Method,
			e.URL,
			e.Version,
			e.BasePrice.StringFixed(2),
			strconv.Itoa(e.MaxPerDay),
		})
	}
	return rows
}

// detailView renders a single record as field/value pairs.
type detailView [][2]string

func (v detailView) header() []string {
	return []string{"FIELD", "VALUE"}
}

func (v detailView) rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, kv := range v {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	return rows
}

func requestDetail(r dto.RequestDTO) detailView {
	view := detailView{
		{"id", strconv.FormatInt(r.ID, 10)},
		{"name", r.Name},
		{"publisher", strconv.FormatInt(r.PublisherID, 10)},
		{"status", r.Status + " (" + r.StatusLabel + ")"},
		{"method", r.Method},
		{"url", r.URL},
		{"version", r.Version},
		{"base_price", r.BasePrice.StringFixed(2)},
	}
	if r.ReviewNotes != "" {
		view = append(view, [2]string{"review_notes", r.ReviewNotes})
	}
	if r.RejectionReason != "" {
		view = append(view, [2]string{"rejection_reason", r.RejectionReason})
	}
	if r.ApprovedServiceID != nil {
		view = append(view, [2]string{"approved_service_id", strconv.FormatInt(*r.ApprovedServiceID, 10)})
	}
	return view
}

func serviceDetail(s dto.ServiceDTO) detailView {
	view := detailView{
		{"id", strconv.FormatInt(s.ID, 10)},
		{"name", s.Name},
		{"publisher", strconv.FormatInt(s.PublisherID, 10)},
		{"status", s.Status + " (" + s.StatusLabel + ")"},
		{"managed_endpoint", s.ManagedEndpoint},
		{"method", s.Method},
		{"version", s.Version},
		{"base_price", s.BasePrice.StringFixed(2)},
	}
	if s.PublishedAt != nil {
		view = append(view, [2]string{"published_at", s.PublishedAt.Format(time.RFC3339)})
	}
	for _, section := range sortedSections(s.OperationalConfig) {
		view = append(view, [2]string{"config." + section, "set"})
	}
	return view
}

type statsView dto.StatsDTO

func (v statsView) header() []string {
	return []string{"STATUS", "COUNT"}
}

func (v statsView) rows() [][]string {
	rows := [][]string{{"total", strconv.Itoa(v.Total)}}
	for _, status := range sortedSections(v.ByStatus) {
		rows = append(rows, []string{status, strconv.Itoa(v.ByStatus[status])})
	}
	return rows
}

func sortedSections[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
