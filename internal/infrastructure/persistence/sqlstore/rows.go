package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/williamsiker/practicas/internal/domain/catalog"
)

var listingColumnNames = []string{
	"name", "description", "url", "method", "version",
	"requires_auth", "auth_type", "auth_config", "documentation",
	"parameters", "responses", "error_codes", "validations",
	"metrics_enabled", "metrics_config", "has_demo", "demo_url",
	"base_price", "pricing_tiers", "max_requests_per_day", "max_requests_per_month",
	"features",
}

var requestColumnNames = concat(
	[]string{"id", "publisher_id"},
	listingColumnNames,
	[]string{
		"justification", "terms_accepted", "terms_accepted_at", "status",
		"reviewed_by", "reviewed_at", "review_notes", "rejection_reason",
		"approved_service_id", "created_at", "updated_at",
	},
)

var serviceColumnNames = concat(
	[]string{"id", "publisher_id", "source_request_id"},
	listingColumnNames,
	[]string{
		"status", "terms_accepted", "approved_by", "approved_at", "approval_notes",
		"published_at", "published_by", "operational_config", "created_at", "updated_at",
	},
)

var (
	requestColumns = strings.Join(requestColumnNames, ", ")
	serviceColumns = strings.Join(serviceColumnNames, ", ")
)

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// insertStatement builds an INSERT for every column except id.
func insertStatement(table string, columns []string) string {
	cols := columns[1:]
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), marks)
}

// updateStatement builds an UPDATE of every column except id, keyed by id.
func updateStatement(table string, columns []string) string {
	sets := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		sets = append(sets, c+" = ?")
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeMap(m catalog.JSONMap) (string, error) {
	data, err := catalog.EncodeJSONMap(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idFromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// listingArgs returns the bind values of a listing in listingColumnNames order.
func listingArgs(l catalog.Listing) ([]any, error) {
	maps := []catalog.JSONMap{
		l.AuthConfig, l.Parameters, l.Responses, l.ErrorCodes,
		l.Validations, l.MetricsConfig, l.PricingTiers, l.Features,
	}
	encoded := make([]string, len(maps))
	for i, m := range maps {
		s, err := encodeMap(m)
		if err != nil {
			return nil, fmt.Errorf("encode listing: %w", err)
		}
		encoded[i] = s
	}

	return []any{
		l.Name, l.Description, l.URL, string(l.Method), l.Version,
		l.RequiresAuth, string(l.AuthType), encoded[0], l.Documentation,
		encoded[1], encoded[2], encoded[3], encoded[4],
		l.MetricsEnabled, encoded[5], l.HasDemo, l.DemoURL,
		l.BasePrice.String(), encoded[6], l.MaxRequestsPerDay, l.MaxRequestsPerMonth,
		encoded[7],
	}, nil
}

// listingRow receives the listing columns of a scanned row.
type listingRow struct {
	name, description, url, method, version string
	requiresAuth                            bool
	authType, authConfig, documentation     string
	parameters, responses, errorCodes       string
	validations                             string
	metricsEnabled                          bool
	metricsConfig                           string
	hasDemo                                 bool
	demoURL, basePrice, pricingTiers        string
	maxPerDay, maxPerMonth                  int
	features                                string
}

func (r *listingRow) dest() []any {
	return []any{
		&r.name, &r.description, &r.url, &r.method, &r.version,
		&r.requiresAuth, &r.authType, &r.authConfig, &r.documentation,
		&r.parameters, &r.responses, &r.errorCodes, &r.validations,
		&r.metricsEnabled, &r.metricsConfig, &r.hasDemo, &r.demoURL,
		&r.basePrice, &r.pricingTiers, &r.maxPerDay, &r.maxPerMonth,
		&r.features,
	}
}

func (r *listingRow) listing() (catalog.Listing, error) {
	price, err := decimal.NewFromString(r.basePrice)
	if err != nil {
		return catalog.Listing{}, fmt.Errorf("decode base_price: %w", err)
	}

	l := catalog.Listing{
		Name:                r.name,
		Description:         r.description,
		URL:                 r.url,
		Method:              catalog.HTTPMethod(r.method),
		Version:             r.version,
		RequiresAuth:        r.requiresAuth,
		AuthType:            catalog.AuthType(r.authType),
		Documentation:       r.documentation,
		MetricsEnabled:      r.metricsEnabled,
		HasDemo:             r.hasDemo,
		DemoURL:             r.demoURL,
		BasePrice:           price,
		MaxRequestsPerDay:   r.maxPerDay,
		MaxRequestsPerMonth: r.maxPerMonth,
	}

	targets := []struct {
		column string
		raw    string
		dst    *catalog.JSONMap
	}{
		{"auth_config", r.authConfig, &l.AuthConfig},
		{"parameters", r.parameters, &l.Parameters},
		{"responses", r.responses, &l.Responses},
		{"error_codes", r.errorCodes, &l.ErrorCodes},
		{"validations", r.validations, &l.Validations},
		{"metrics_config", r.metricsConfig, &l.MetricsConfig},
		{"pricing_tiers", r.pricingTiers, &l.PricingTiers},
		{"features", r.features, &l.Features},
	}
	for _, t := range targets {
		m, err := catalog.ParseJSONMap([]byte(t.raw))
		if err != nil {
			return catalog.Listing{}, fmt.Errorf("decode %s: %w", t.column, err)
		}
		*t.dst = m
	}
	return l, nil
}

func requestArgs(snap catalog.RequestSnapshot) ([]any, error) {
	listing, err := listingArgs(snap.Details.Listing)
	if err != nil {
		return nil, err
	}
	args := []any{snap.PublisherID}
	args = append(args, listing...)
	args = append(args,
		snap.Details.Justification,
		snap.Details.TermsAccepted,
		nullMillis(snap.TermsAcceptedAt),
		string(snap.Status),
		nullID(snap.ReviewedBy),
		nullMillis(snap.ReviewedAt),
		snap.ReviewNotes,
		snap.RejectionReason,
		nullID(snap.ApprovedServiceID),
		toMillis(snap.CreatedAt),
		toMillis(snap.UpdatedAt),
	)
	return args, nil
}

func scanRequest(row rowScanner) (*catalog.ServiceRequest, error) {
	var (
		snap                                   catalog.RequestSnapshot
		l                                      listingRow
		status                                 string
		termsAt, reviewedBy, reviewedAt, svcID sql.NullInt64
		createdAt, updatedAt                   int64
	)

	dest := []any{&snap.ID, &snap.PublisherID}
	dest = append(dest, l.dest()...)
	dest = append(dest,
		&snap.Details.Justification,
		&snap.Details.TermsAccepted,
		&termsAt,
		&status,
		&reviewedBy,
		&reviewedAt,
		&snap.ReviewNotes,
		&snap.RejectionReason,
		&svcID,
		&createdAt,
		&updatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	listing, err := l.listing()
	if err != nil {
		return nil, fmt.Errorf("request %d: %w", snap.ID, err)
	}
	snap.Details.Listing = listing
	snap.Status = catalog.RequestStatus(status)
	snap.TermsAcceptedAt = timeFromNull(termsAt)
	snap.ReviewedBy = idFromNull(reviewedBy)
	snap.ReviewedAt = timeFromNull(reviewedAt)
	snap.ApprovedServiceID = idFromNull(svcID)
	snap.CreatedAt = fromMillis(createdAt)
	snap.UpdatedAt = fromMillis(updatedAt)
	return catalog.ReconstructServiceRequest(snap), nil
}

func serviceArgs(snap catalog.ServiceSnapshot) ([]any, error) {
	listing, err := listingArgs(snap.Listing)
	if err != nil {
		return nil, err
	}
	opCfg, err := encodeMap(snap.OperationalConfig)
	if err != nil {
		return nil, fmt.Errorf("encode operational_config: %w", err)
	}
	args := []any{snap.PublisherID, nullID(snap.SourceRequestID)}
	args = append(args, listing...)
	args = append(args,
		string(snap.Status),
		snap.TermsAccepted,
		nullID(snap.ApprovedBy),
		nullMillis(snap.ApprovedAt),
		snap.ApprovalNotes,
		nullMillis(snap.PublishedAt),
		nullID(snap.PublishedBy),
		opCfg,
		toMillis(snap.CreatedAt),
		toMillis(snap.UpdatedAt),
	)
	return args, nil
}

func scanService(row rowScanner) (*catalog.Service, error) {
	var (
		snap                             catalog.ServiceSnapshot
		l                                listingRow
		sourceID, approvedBy, approvedAt sql.NullInt64
		publishedAt, publishedBy         sql.NullInt64
		status, opCfg                    string
		createdAt, updatedAt             int64
	)

	dest := []any{&snap.ID, &snap.PublisherID, &sourceID}
	dest = append(dest, l.dest()...)
	dest = append(dest,
		&status,
		&snap.TermsAccepted,
		&approvedBy,
		&approvedAt,
		&snap.ApprovalNotes,
		&publishedAt,
		&publishedBy,
		&opCfg,
		&createdAt,
		&updatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	listing, err := l.listing()
	if err != nil {
		return nil, fmt.Errorf("service %d: %w", snap.ID, err)
	}
	cfg, err := catalog.ParseJSONMap([]byte(opCfg))
	if err != nil {
		return nil, fmt.Errorf("service %d: decode operational_config: %w", snap.ID, err)
	}

	snap.Listing = listing
	snap.SourceRequestID = idFromNull(sourceID)
	snap.Status = catalog.ServiceStatus(status)
	snap.ApprovedBy = idFromNull(approvedBy)
	snap.ApprovedAt = timeFromNull(approvedAt)
	snap.PublishedAt = timeFromNull(publishedAt)
	snap.PublishedBy = idFromNull(publishedBy)
	snap.OperationalConfig = cfg
	snap.CreatedAt = fromMillis(createdAt)
	snap.UpdatedAt = fromMillis(updatedAt)
	return catalog.ReconstructService(snap), nil
}
