package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/container"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
	"github.com/williamsiker/practicas/internal/observability"
)

const requestYAML = `name: Mesa de partes digital
description: Recepcion de documentos de ciudadanos
url: https://tramites.example.gob/mesa
method: post
version: 1.0.0
documentation: >-
  Recibe expedientes en formato PDF y devuelve un numero de tramite.
  Los documentos se validan antes de registrarse en el sistema documental.
justification: >-
  Reduce las colas presenciales y permite la atencion ciudadana en linea.
terms_accepted: true
`

// sharedApp keeps one memory store alive across commands.
type sharedApp struct {
	*container.App
}

func (sharedApp) Close() error { return nil }

// setupCLI runs the test in an empty directory with a memory store shared
// by every command it executes.
func setupCLI(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())

	appCfg := config.DefaultConfig()
	appCfg.Storage.Driver = config.DriverMemory
	app, err := container.New(appCfg)
	require.NoError(t, err)
	app.WithMetrics(observability.NewMetrics("test"))
	require.NoError(t, app.Initialize(t.Context()))

	previous := newContainerApp
	newContainerApp = func(context.Context, *config.Config) (cliApp, error) {
		return sharedApp{app}, nil
	}
	t.Cleanup(func() {
		newContainerApp = previous
		_ = app.Close()
	})
}

func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func decodeJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func submitRequest(t *testing.T) dto.RequestDTO {
	t.Helper()
	out, err := execute(t, nil, "request", "submit", "-f", writeFile(t, "request.yaml", requestYAML), "--as", "7", "-o", "json")
	require.NoError(t, err)
	return decodeJSON[dto.RequestDTO](t, out)
}

func approve(t *testing.T, requestID int64, extra ...string) dto.ReviewResponse {
	t.Helper()
	args := append([]string{"request", "review", strconv.FormatInt(requestID, 10),
		"--decision", "approve", "--as", "99", "--role", "admin", "-o", "json"}, extra...)
	out, err := execute(t, nil, args...)
	require.NoError(t, err)
	return decodeJSON[dto.ReviewResponse](t, out)
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("v1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("", "", "") })

	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "catalog v1.2.3\n", out)
}

func TestRequestSubmit_YAMLFile(t *testing.T) {
	setupCLI(t)

	req := submitRequest(t)
	assert.Positive(t, req.ID)
	assert.Equal(t, int64(7), req.PublisherID)
	assert.Equal(t, "pending_review", req.Status)
	assert.Equal(t, "revision", req.StatusLabel)
	assert.Equal(t, "POST", req.Method)
}

func TestRequestSubmit_Stdin(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, strings.NewReader(requestYAML), "request", "submit", "-f", "-", "--as", "7", "-o", "json")
	require.NoError(t, err)
	req := decodeJSON[dto.RequestDTO](t, out)
	assert.Equal(t, "Mesa de partes digital", req.Name)
}

func TestRequestSubmit_JSONRejectsUnknownFields(t *testing.T) {
	setupCLI(t)

	path := writeFile(t, "request.json", `{"name": "x", "unexpected": true}`)
	_, err := execute(t, nil, "request", "submit", "-f", path, "--as", "7")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Contains(t, FormatError(err), "- file:")
}

func TestRequestSubmit_InvalidPayloadListsFields(t *testing.T) {
	setupCLI(t)

	path := writeFile(t, "request.yaml", "name: Incompleto\nterms_accepted: true\n")
	_, err := execute(t, nil, "request", "submit", "-f", path, "--as", "7")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Contains(t, FormatError(err), "documentation")
}

func TestRequestSubmit_RequiresActor(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, nil, "request", "submit", "-f", writeFile(t, "request.yaml", requestYAML))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))
}

func TestUnknownRole(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, nil, "request", "list", "--as", "7", "--role", "root")
	require.Error(t, err)
	assert.Contains(t, FormatError(err), "- role:")
}

func TestRequestWorkflow_ApprovePublishListing(t *testing.T) {
	setupCLI(t)

	req := submitRequest(t)

	out, err := execute(t, nil, "request", "pending", "--as", "99", "--role", "admin", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 1, decodeJSON[dto.PendingCountDTO](t, out).Pending)

	review := approve(t, req.ID)
	require.NotNil(t, review.Service)
	assert.Equal(t, "approved", review.Request.Status)
	assert.Equal(t, "ready_to_publish", review.Service.Status)
	assert.Contains(t, review.Service.ManagedEndpoint, "mesa-de-partes-digital")

	serviceID := strconv.FormatInt(review.Service.ID, 10)

	out, err = execute(t, nil, "service", "list", "--as", "7", "-o", "json")
	require.NoError(t, err)
	services := decodeJSON[dto.PageResponse[dto.ServiceDTO]](t, out)
	require.Len(t, services.Data, 1)
	assert.Equal(t, review.Service.ID, services.Data[0].ID)

	// Ready services are already discoverable.
	out, err = execute(t, nil, "listing", "-o", "json")
	require.NoError(t, err)
	listing := decodeJSON[dto.PageResponse[dto.CatalogEntryDTO]](t, out)
	require.Len(t, listing.Data, 1)

	out, err = execute(t, nil, "service", "publish", serviceID, "--notes", "Disponible", "--as", "7", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "published", decodeJSON[dto.ServiceDTO](t, out).Status)

	_, err = execute(t, nil, "service", "unpublish", serviceID, "--reason", "corto", "--as", "7")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Contains(t, FormatError(err), "unpublish_reason")

	out, err = execute(t, nil, "service", "unpublish", serviceID, "--reason", "Mantenimiento programado del origen", "--as", "7", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "ready_to_publish", decodeJSON[dto.ServiceDTO](t, out).Status)
}

func TestRequestReview_RequiresAdmin(t *testing.T) {
	setupCLI(t)

	req := submitRequest(t)
	_, err := execute(t, nil, "request", "review", strconv.FormatInt(req.ID, 10), "--decision", "approve", "--as", "7")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))
}

func TestRequestReview_UnknownDecision(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, nil, "request", "review", "1", "--decision", "maybe", "--as", "99", "--role", "admin")
	require.Error(t, err)
	assert.Contains(t, FormatError(err), "- decision:")
}

func TestRequestReview_RejectKeepsRequest(t *testing.T) {
	setupCLI(t)

	req := submitRequest(t)
	out, err := execute(t, nil, "request", "review", strconv.FormatInt(req.ID, 10),
		"--decision", "reject", "--reason", "La documentacion no describe los errores.",
		"--as", "99", "--role", "admin", "-o", "json")
	require.NoError(t, err)
	review := decodeJSON[dto.ReviewResponse](t, out)
	assert.Nil(t, review.Service)
	assert.Equal(t, "rejected", review.Request.Status)

	out, err = execute(t, nil, "request", "stats", "--as", "7", "-o", "json")
	require.NoError(t, err)
	stats := decodeJSON[dto.StatsDTO](t, out)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["rejected"])
}

func TestServiceEndpoint_Override(t *testing.T) {
	setupCLI(t)

	review := approve(t, submitRequest(t).ID)
	require.NotNil(t, review.Service)

	out, err := execute(t, nil, "service", "endpoint", strconv.FormatInt(review.Service.ID, 10),
		"--slug", "Ventanilla Unica", "--as", "99", "--role", "admin", "-o", "json")
	require.NoError(t, err)
	resp := decodeJSON[dto.EndpointResponse](t, out)
	assert.Equal(t, review.Service.ManagedEndpoint, resp.Previous)
	assert.Equal(t, "ventanilla-unica", resp.Slug)
	assert.True(t, strings.HasSuffix(resp.Service.ManagedEndpoint, "/ventanilla-unica"))
}

func TestServiceConfigure_Patch(t *testing.T) {
	setupCLI(t)

	review := approve(t, submitRequest(t).ID)
	require.NotNil(t, review.Service)

	patch := writeFile(t, "patch.yaml", "rate_limits:\n  requests_per_minute: 60\n")
	out, err := execute(t, nil, "service", "configure", strconv.FormatInt(review.Service.ID, 10),
		"-f", patch, "--as", "7", "-o", "json")
	require.NoError(t, err)
	svc := decodeJSON[dto.ServiceDTO](t, out)
	assert.Contains(t, svc.OperationalConfig, "rate_limits")
}

func TestServiceConfigure_EmptyPatch(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, nil, "service", "configure", "1", "-f", writeFile(t, "patch.yaml", "{}\n"), "--as", "7")
	require.Error(t, err)
	assert.Contains(t, FormatError(err), "patch is empty")
}

func TestRequestDuplicate_FromService(t *testing.T) {
	setupCLI(t)

	review := approve(t, submitRequest(t).ID)
	require.NotNil(t, review.Service)

	out, err := execute(t, nil, "service", "duplicate", strconv.FormatInt(review.Service.ID, 10), "--as", "7", "-o", "json")
	require.NoError(t, err)
	dup := decodeJSON[dto.RequestDTO](t, out)
	assert.NotEqual(t, review.Request.ID, dup.ID)
	assert.Equal(t, "pending_review", dup.Status)
	assert.Contains(t, dup.Name, "Mesa de partes digital")
}

func TestTableOutput(t *testing.T) {
	setupCLI(t)

	submitRequest(t)
	out, err := execute(t, nil, "request", "list", "--as", "7", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Mesa de partes digital")
}

func TestMachineExport(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, nil, "machine", "export", "request")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "pending_review", doc["initial"])

	out, err = execute(t, nil, "machine", "export", "service", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "states:")

	_, err = execute(t, nil, "machine", "export", "consumer")
	require.Error(t, err)
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	setupCLI(t)

	require.NoError(t, os.WriteFile(".catalog.yaml", []byte(`storage:
  driver: postgres
  dsn: postgres://catalog:s3cret@db:5432/catalog
server:
  api_keys:
    - key: admin-key-0123456789abcdef0123
      actor_id: 1
      role: admin
`), 0o600))

	out, err := execute(t, nil, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "admin-key-0123456789abcdef0123")
	assert.Contains(t, out, "postgres://catalog:[REDACTED]@db:5432/catalog")

	out, err = execute(t, nil, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, ".catalog.yaml")
}

func TestConfigValidate_Invalid(t *testing.T) {
	setupCLI(t)

	require.NoError(t, os.WriteFile(".catalog.yaml", []byte("storage:\n  driver: oracle\n"), 0o600))
	_, err := execute(t, nil, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestConfigInit(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, nil, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, ".catalog.yaml")

	data, err := os.ReadFile(".catalog.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "driver: sqlite")

	_, err = execute(t, nil, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, nil, "config", "init", "--force")
	require.NoError(t, err)

	out, err = execute(t, nil, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}
