package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

func (f *fixture) approvedService(t *testing.T, name string) *catalog.Service {
	t.Helper()
	return f.approve(t, f.submit(t, publisher, name).ID())
}

func TestConfigureService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.approvedService(t, "Consulta de predios")

	out, err := NewConfigureServiceUseCase(f.store).Execute(ctx, ConfigureServiceInput{
		Actor:     publisher,
		ServiceID: svc.ID(),
		Patch: catalog.ConfigPatch{
			catalog.KeyRateLimits:    map[string]any{"requests_per_minute": 60},
			catalog.KeyAccessControl: map[string]any{"allowed_offices": []any{"lima"}},
		},
	})
	require.NoError(t, err)

	cfg := out.OperationalConfig()
	assert.Equal(t, svc.URL(), cfg.String(catalog.KeyManagedEndpoint))
	assert.True(t, cfg.Has(catalog.KeyRateLimits))
	assert.True(t, cfg.Has(catalog.KeyConfiguredAt))

	// A nil section removes it.
	out, err = NewConfigureServiceUseCase(f.store).Execute(ctx, ConfigureServiceInput{
		Actor:     publisher,
		ServiceID: svc.ID(),
		Patch:     catalog.ConfigPatch{catalog.KeyRateLimits: nil},
	})
	require.NoError(t, err)
	assert.False(t, out.OperationalConfig().Has(catalog.KeyRateLimits))
	assert.True(t, out.OperationalConfig().Has(catalog.KeyAccessControl))
}

func TestConfigureService_Errors(t *testing.T) {
	f := newFixture(t)
	svc := f.approvedService(t, "Registro de mascotas")

	tests := []struct {
		name     string
		input    ConfigureServiceInput
		wantKind apperrors.Kind
	}{
		{
			name:     "missing actor",
			input:    ConfigureServiceInput{ServiceID: svc.ID(), Patch: catalog.ConfigPatch{catalog.KeyRateLimits: nil}},
			wantKind: apperrors.KindAuthentication,
		},
		{
			name: "not the owner",
			input: ConfigureServiceInput{Actor: otherPublisher, ServiceID: svc.ID(),
				Patch: catalog.ConfigPatch{catalog.KeyRateLimits: nil}},
			wantKind: apperrors.KindNotFound,
		},
		{
			name: "allocator key",
			input: ConfigureServiceInput{Actor: publisher, ServiceID: svc.ID(),
				Patch: catalog.ConfigPatch{catalog.KeyManagedEndpoint: "/x/y"}},
			wantKind: apperrors.KindValidation,
		},
		{
			name: "bad rate limit",
			input: ConfigureServiceInput{Actor: publisher, ServiceID: svc.ID(),
				Patch: catalog.ConfigPatch{catalog.KeyRateLimits: map[string]any{"requests_per_day": 0}}},
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "empty patch",
			input:    ConfigureServiceInput{Actor: publisher, ServiceID: svc.ID()},
			wantKind: apperrors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigureServiceUseCase(f.store).Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.GetKind(err), "err = %v", err)
		})
	}

	stored, err := f.store.Services().FindByID(context.Background(), svc.ID())
	require.NoError(t, err)
	assert.Equal(t, svc.URL(), stored.URL())
	assert.False(t, stored.OperationalConfig().Has(catalog.KeyConfiguredAt))
}

func TestPublishAndUnpublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.approvedService(t, "Certificados de estudios")
	f.events.ClearEvents()

	published, err := NewPublishServiceUseCase(f.store).Execute(ctx, PublishServiceInput{
		Actor:     publisher,
		ServiceID: svc.ID(),
		Notes:     "Lanzamiento inicial",
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.ServicePublished, published.Status())
	require.NotNil(t, published.PublishedAt())
	assert.Equal(t, "Lanzamiento inicial", published.OperationalConfig().String(catalog.KeyPublicationNotes))

	// Publishing twice is a state error.
	_, err = NewPublishServiceUseCase(f.store).Execute(ctx, PublishServiceInput{Actor: publisher, ServiceID: svc.ID()})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState), "err = %v", err)

	// A short reason leaves the service published.
	_, err = NewUnpublishServiceUseCase(f.store).Execute(ctx, UnpublishServiceInput{
		Actor:     publisher,
		ServiceID: svc.ID(),
		Reason:    "breve",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "err = %v", err)

	stored, err := f.store.Services().FindByID(ctx, svc.ID())
	require.NoError(t, err)
	assert.Equal(t, catalog.ServicePublished, stored.Status())

	unpublished, err := NewUnpublishServiceUseCase(f.store).Execute(ctx, UnpublishServiceInput{
		Actor:     publisher,
		ServiceID: svc.ID(),
		Reason:    "Mantenimiento del origen",
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.ServiceReadyToPublish, unpublished.Status())
	assert.Equal(t, "Mantenimiento del origen", unpublished.OperationalConfig().String(catalog.KeyUnpublishReason))

	assert.Len(t, f.events.GetEventsByType("service.published"), 1)
	assert.Len(t, f.events.GetEventsByType("service.unpublished"), 1)
}

func TestPublishService_NotOwner(t *testing.T) {
	f := newFixture(t)
	svc := f.approvedService(t, "Licencias de conducir")

	_, err := NewPublishServiceUseCase(f.store).Execute(context.Background(), PublishServiceInput{
		Actor:     otherPublisher,
		ServiceID: svc.ID(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound), "err = %v", err)
}

func TestUpdateEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.approvedService(t, "Agenda de citas")
	second := f.approvedService(t, "Agenda de turnos")

	base, slug := "citas", "agenda"
	uc := NewUpdateEndpointUseCase(f.store, f.allocator, fastRetry)

	out, err := uc.Execute(ctx, UpdateEndpointInput{Actor: admin, ServiceID: first.ID(), Base: &base, Slug: &slug})
	require.NoError(t, err)
	assert.Equal(t, "/citas/agenda", out.Service.URL())
	assert.Equal(t, first.URL(), out.Previous)
	assert.Equal(t, "https://origen.gob.pe/api/expedientes",
		out.Service.OperationalConfig().String(catalog.KeyOriginalURL))

	out, err = uc.Execute(ctx, UpdateEndpointInput{Actor: admin, ServiceID: second.ID(), Base: &base, Slug: &slug})
	require.NoError(t, err)
	assert.Equal(t, "/citas/agenda-2", out.Service.URL())
	assert.Equal(t, "agenda-2", out.Service.OperationalConfig().String(catalog.KeyEndpointSlug))

	// Re-running with no overrides keeps the current endpoint.
	out, err = uc.Execute(ctx, UpdateEndpointInput{Actor: admin, ServiceID: second.ID()})
	require.NoError(t, err)
	assert.Equal(t, "/citas/agenda-2", out.Service.URL())

	_, err = uc.Execute(ctx, UpdateEndpointInput{Actor: publisher, ServiceID: second.ID(), Base: &base})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission), "err = %v", err)
}
