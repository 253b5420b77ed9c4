package catalog

import (
	"fmt"
	"sort"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// Allocator-owned operational_config keys.
const (
	KeyEndpointBase    = "endpoint_base"
	KeyEndpointSlug    = "endpoint_slug"
	KeyManagedEndpoint = "managed_endpoint"
	KeyOriginalURL     = "original_url"
)

// Publisher-configurable operational_config sections.
const (
	KeyScheduleConfig       = "schedule_config"
	KeyRateLimits           = "rate_limits"
	KeyAccessControl        = "access_control"
	KeyNotificationSettings = "notification_settings"
	KeyMonitoringConfig     = "monitoring_config"
)

// Bookkeeping keys written by the publication workflow.
const (
	KeySchedule         = "schedule"
	KeyMonthlyLimit     = "monthly_limit"
	KeyConfiguredAt     = "configured_at"
	KeyConfiguredBy     = "configured_by"
	KeyPublicationNotes = "publication_notes"
	KeyUnpublishReason  = "unpublish_reason"
	KeyUnpublishedAt    = "unpublished_at"
)

// DefaultSchedule is the schedule seeded on promotion when metrics_config has none.
const DefaultSchedule = "office"

// ConfigurableSections lists the operational_config keys a publisher may patch.
func ConfigurableSections() []string {
	return []string{
		KeyScheduleConfig,
		KeyRateLimits,
		KeyAccessControl,
		KeyNotificationSettings,
		KeyMonitoringConfig,
	}
}

func isConfigurableSection(key string) bool {
	for _, k := range ConfigurableSections() {
		if k == key {
			return true
		}
	}
	return false
}

var rateLimitFields = []string{"requests_per_minute", "requests_per_hour", "requests_per_day"}

var boolFields = map[string][]string{
	KeyScheduleConfig:       {"enabled"},
	KeyNotificationSettings: {"error_alerts", "usage_alerts"},
}

var listFields = map[string][]string{
	KeyScheduleConfig: {"available_hours"},
	KeyAccessControl:  {"allowed_offices", "blocked_offices", "ip_whitelist"},
}

// ConfigPatch is a top-level patch of operational_config sections.
// A section mapped to nil is removed.
type ConfigPatch JSONMap

// Keys returns the patched section names in lexical order.
func (p ConfigPatch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that the patch only touches configurable sections and
// that typed sub-fields hold values of the right shape.
func (p ConfigPatch) Validate() error {
	const op = "catalog.ConfigPatch.Validate"

	var fe apperrors.FieldErrors
	if len(p) == 0 {
		fe.Add("configuration", "at least one section is required")
		return fe.ToError(op)
	}

	for _, key := range p.Keys() {
		if !isConfigurableSection(key) {
			fe.Addf(key, "is not a configurable section")
			continue
		}
		value := p[key]
		if value == nil {
			continue
		}
		section := JSONMap(nil)
		switch v := value.(type) {
		case JSONMap:
			section = v
		case map[string]any:
			section = JSONMap(v)
		default:
			fe.Add(key, "must be an object")
			continue
		}
		validateSection(&fe, key, section)
	}
	return fe.ToError(op)
}

func validateSection(fe *apperrors.FieldErrors, key string, section JSONMap) {
	if key == KeyRateLimits {
		for _, field := range rateLimitFields {
			raw, ok := section[field]
			if !ok || raw == nil {
				continue
			}
			n, isInt := AsInt(raw)
			if !isInt || n < 1 {
				fe.Add(key+"."+field, "must be an integer of at least 1")
			}
		}
	}
	for _, field := range boolFields[key] {
		raw, ok := section[field]
		if !ok || raw == nil {
			continue
		}
		if _, isBool := raw.(bool); !isBool {
			fe.Add(key+"."+field, "must be a boolean")
		}
	}
	for _, field := range listFields[key] {
		raw, ok := section[field]
		if !ok || raw == nil {
			continue
		}
		switch raw.(type) {
		case []any, []string:
		default:
			fe.Add(key+"."+field, "must be a list")
		}
	}
}

// EndpointAssignment is the result of allocating a managed endpoint.
type EndpointAssignment struct {
	Base     string
	Slug     string
	Endpoint string
}

// Path renders the assignment as /{base}/{slug}.
func (a EndpointAssignment) Path() string {
	return fmt.Sprintf("/%s/%s", a.Base, a.Slug)
}

// seedOperationalConfig builds the initial operational_config of a promoted service:
// metrics_config, then schedule and monthly limit, then endpoint overrides.
func seedOperationalConfig(listing Listing, base, slug string) JSONMap {
	cfg := listing.MetricsConfig.Clone()
	if cfg == nil {
		cfg = JSONMap{}
	}
	delete(cfg, KeyManagedEndpoint)
	delete(cfg, KeyOriginalURL)

	schedule := listing.MetricsConfig.String(KeySchedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}
	cfg[KeySchedule] = schedule
	cfg[KeyMonthlyLimit] = listing.MaxRequestsPerMonth

	if base != "" {
		cfg[KeyEndpointBase] = base
	}
	if slug != "" {
		cfg[KeyEndpointSlug] = slug
	}
	return cfg
}
