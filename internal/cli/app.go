package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/container"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/observability"
)

// cliApp is the part of the container the commands use.
type cliApp interface {
	Close() error
	UseCases() *catalogapp.UseCases
	Metrics() *observability.Metrics
	Ping(ctx context.Context) error
}

var newContainerApp = func(ctx context.Context, cfg *config.Config) (cliApp, error) {
	app, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		app.WithMetrics(metrics)
	}
	if err := app.Initialize(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// withApp initializes the container, runs fn and closes the container.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app cliApp) error) error {
	ctx := cmd.Context()
	app, err := newContainerApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer closeApp(cmd, app)
	return fn(ctx, app)
}

func closeApp(cmd *cobra.Command, app cliApp) {
	if app == nil {
		return
	}
	if err := app.Close(); err != nil {
		printWarning(cmd.ErrOrStderr(), fmt.Sprintf("Failed to close app: %v", err))
	}
}

// currentActor resolves the acting user from --as and --role.
func currentActor() (catalogapp.Actor, error) {
	role, err := catalogapp.ParseRole(actorRole)
	if err != nil {
		return catalogapp.Actor{}, apperrors.ValidationField("cli.actor", "role", err.Error())
	}
	return catalogapp.Actor{ID: actorID, Role: role}, nil
}

// FormatError renders err for the terminal, listing field errors one per line.
func FormatError(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		fields := appErr.Fields()
		for _, field := range slices.Sorted(maps.Keys(fields)) {
			fmt.Fprintf(&b, "\n  - %s: %s", field, fields[field])
		}
	}
	return b.String()
}

// systemActor is the identity background jobs use for admin-only queries.
func systemActor() catalogapp.Actor {
	return catalogapp.Actor{ID: 1, Role: catalogapp.RoleAdmin}
}
