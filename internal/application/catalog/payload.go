package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/williamsiker/practicas/internal/domain/catalog"
)

// RequestPayload is the publisher-supplied body of a service request.
// It is decoded from JSON by the HTTP API and from YAML by the CLI.
type RequestPayload struct {
	Name                string          `json:"name" yaml:"name" validate:"required,max=255"`
	Description         string          `json:"description" yaml:"description" validate:"required,max=1000"`
	URL                 string          `json:"url" yaml:"url" validate:"required,max=2048,http_url"`
	Method              string          `json:"method" yaml:"method" validate:"required,oneof=GET POST PUT DELETE PATCH"`
	Version             string          `json:"version" yaml:"version" validate:"required,max=50,semver"`
	RequiresAuth        bool            `json:"requires_auth" yaml:"requires_auth"`
	AuthType            string          `json:"auth_type" yaml:"auth_type" validate:"required_if=RequiresAuth true,omitempty,oneof=none token api_key oauth"`
	AuthConfig          map[string]any  `json:"auth_config,omitempty" yaml:"auth_config,omitempty"`
	Documentation       string          `json:"documentation" yaml:"documentation" validate:"required,min=100"`
	Parameters          map[string]any  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Responses           map[string]any  `json:"responses,omitempty" yaml:"responses,omitempty"`
	ErrorCodes          map[string]any  `json:"error_codes,omitempty" yaml:"error_codes,omitempty"`
	Validations         map[string]any  `json:"validations,omitempty" yaml:"validations,omitempty"`
	MetricsEnabled      bool            `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsConfig       map[string]any  `json:"metrics_config,omitempty" yaml:"metrics_config,omitempty"`
	HasDemo             bool            `json:"has_demo" yaml:"has_demo"`
	DemoURL             string          `json:"demo_url,omitempty" yaml:"demo_url,omitempty" validate:"required_if=HasDemo true,omitempty,http_url"`
	BasePrice           decimal.Decimal `json:"base_price" yaml:"base_price" validate:"gte=0"`
	PricingTiers        map[string]any  `json:"pricing_tiers,omitempty" yaml:"pricing_tiers,omitempty"`
	MaxRequestsPerDay   int             `json:"max_requests_per_day" yaml:"max_requests_per_day" validate:"gte=1"`
	MaxRequestsPerMonth int             `json:"max_requests_per_month" yaml:"max_requests_per_month" validate:"gte=1"`
	Features            map[string]any  `json:"features,omitempty" yaml:"features,omitempty"`
	Justification       string          `json:"justification" yaml:"justification" validate:"required,min=50,max=2000"`
	TermsAccepted       bool            `json:"terms_accepted" yaml:"terms_accepted" validate:"required"`
}

// Normalize trims text, upper-cases the method and fills defaults.
func (p *RequestPayload) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.URL = strings.TrimSpace(p.URL)
	p.Method = strings.ToUpper(strings.TrimSpace(p.Method))
	p.Version = strings.TrimSpace(p.Version)
	if p.Version == "" {
		p.Version = catalog.DefaultVersion
	}
	p.AuthType = strings.ToLower(strings.TrimSpace(p.AuthType))
	if !p.RequiresAuth && p.AuthType == "" {
		p.AuthType = string(catalog.AuthNone)
	}
	p.Documentation = strings.TrimSpace(p.Documentation)
	p.DemoURL = strings.TrimSpace(p.DemoURL)
	p.Justification = strings.TrimSpace(p.Justification)
	if p.MaxRequestsPerDay == 0 {
		p.MaxRequestsPerDay = catalog.DefaultMaxRequestsPerDay
	}
	if p.MaxRequestsPerMonth == 0 {
		p.MaxRequestsPerMonth = catalog.DefaultMaxRequestsPerMonth
	}
}

// Validate normalizes and validates the payload.
func (p *RequestPayload) Validate(op string) error {
	p.Normalize()
	return validateStruct(op, p)
}

// Details converts the payload into domain request details.
func (p RequestPayload) Details() catalog.RequestDetails {
	return catalog.RequestDetails{
		Listing: catalog.Listing{
			Name:                p.Name,
			Description:         p.Description,
			URL:                 p.URL,
			Method:              catalog.HTTPMethod(p.Method),
			Version:             p.Version,
			RequiresAuth:        p.RequiresAuth,
			AuthType:            catalog.AuthType(p.AuthType),
			AuthConfig:          toJSONMap(p.AuthConfig),
			Documentation:       p.Documentation,
			Parameters:          toJSONMap(p.Parameters),
			Responses:           toJSONMap(p.Responses),
			ErrorCodes:          toJSONMap(p.ErrorCodes),
			Validations:         toJSONMap(p.Validations),
			MetricsEnabled:      p.MetricsEnabled,
			MetricsConfig:       toJSONMap(p.MetricsConfig),
			HasDemo:             p.HasDemo,
			DemoURL:             p.DemoURL,
			BasePrice:           p.BasePrice,
			PricingTiers:        toJSONMap(p.PricingTiers),
			MaxRequestsPerDay:   p.MaxRequestsPerDay,
			MaxRequestsPerMonth: p.MaxRequestsPerMonth,
			Features:            toJSONMap(p.Features),
		},
		Justification: p.Justification,
		TermsAccepted: p.TermsAccepted,
	}
}

// PayloadFromDetails is the inverse of Details; it seeds edits and duplicates.
func PayloadFromDetails(d catalog.RequestDetails) RequestPayload {
	return RequestPayload{
		Name:                d.Name,
		Description:         d.Description,
		URL:                 d.URL,
		Method:              string(d.Method),
		Version:             d.Version,
		RequiresAuth:        d.RequiresAuth,
		AuthType:            string(d.AuthType),
		AuthConfig:          d.AuthConfig.Clone(),
		Documentation:       d.Documentation,
		Parameters:          d.Parameters.Clone(),
		Responses:           d.Responses.Clone(),
		ErrorCodes:          d.ErrorCodes.Clone(),
		Validations:         d.Validations.Clone(),
		MetricsEnabled:      d.MetricsEnabled,
		MetricsConfig:       d.MetricsConfig.Clone(),
		HasDemo:             d.HasDemo,
		DemoURL:             d.DemoURL,
		BasePrice:           d.BasePrice,
		PricingTiers:        d.PricingTiers.Clone(),
		MaxRequestsPerDay:   d.MaxRequestsPerDay,
		MaxRequestsPerMonth: d.MaxRequestsPerMonth,
		Features:            d.Features.Clone(),
		Justification:       d.Justification,
		TermsAccepted:       d.TermsAccepted,
	}
}

func toJSONMap(m map[string]any) catalog.JSONMap {
	if m == nil {
		return nil
	}
	return catalog.JSONMap(m).Clone()
}
