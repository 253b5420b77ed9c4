package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "service",
		Aliases: []string{"services", "svc"},
		Short:   "Configure and publish approved services",
	}
	cmd.AddCommand(
		newServiceListCmd(),
		newServiceGetCmd(),
		newServiceConfigureCmd(),
		newServicePublishCmd(),
		newServiceUnpublishCmd(),
		newServiceEndpointCmd(),
		newServiceDuplicateCmd(),
	)
	return cmd
}

func newServiceListCmd() *cobra.Command {
	var (
		statuses string
		search   string
		limit    int
		offset   int
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List services, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStatuses(statuses, catalog.ParseServiceStatus)
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				out, err := app.UseCases().ListServices.Execute(ctx, catalogapp.ListServicesInput{
					Actor:         actor,
					Statuses:      parsed,
					Search:        search,
					Limit:         limit,
					Offset:        offset,
					AllPublishers: all,
				})
				if err != nil {
					return err
				}
				items := dto.FromServices(out.Services)
				return render(cmd.OutOrStdout(), dto.NewPage(items, out.Limit, out.Offset), servicesView(items))
			})
		},
	}
	cmd.Flags().StringVar(&statuses, "status", "", "comma-separated statuses to include")
	cmd.Flags().StringVar(&search, "search", "", "match name or description")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 = default)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&all, "all", false, "list every publisher's services (admin only)")
	return cmd
}

func newServiceGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				svc, err := app.UseCases().GetService.Execute(ctx, catalogapp.GetServiceInput{
					Actor:     actor,
					ServiceID: id,
				})
				if err != nil {
					return err
				}
				s := dto.FromService(svc)
				return render(cmd.OutOrStdout(), s, serviceDetail(s))
			})
		},
	}
}

func newServiceConfigureCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "configure ID --file config.yaml",
		Short: "Patch the operational configuration of a service",
		Long: `Patch the operational configuration of a service.

The file maps section names to their new value; a null section removes it.
Sections: schedule_config, rate_limits, access_control,
notification_settings and monitoring_config. For example:

  rate_limits:
    requests_per_minute: 60
  notification_settings:
    error_alerts: true
  access_control: null`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch, err := readPatch(cmd, file)
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				svc, err := app.UseCases().ConfigureService.Execute(ctx, catalogapp.ConfigureServiceInput{
					Actor:     actor,
					ServiceID: id,
					Patch:     patch,
				})
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), fmt.Sprintf("Service %d configured (%s)", id, strings.Join(patch.Keys(), ", ")))
				s := dto.FromService(svc)
				return render(cmd.OutOrStdout(), s, serviceDetail(s))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration patch (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newServicePublishCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "publish ID",
		Short: "Publish a service to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				svc, err := app.UseCases().PublishService.Execute(ctx, catalogapp.PublishServiceInput{
					Actor:     actor,
					ServiceID: id,
					Notes:     notes,
				})
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), fmt.Sprintf("Service %d published at %s", id, svc.ManagedEndpoint()))
				s := dto.FromService(svc)
				return render(cmd.OutOrStdout(), s, serviceDetail(s))
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "publication notes")
	return cmd
}

func newServiceUnpublishCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "unpublish ID --reason TEXT",
		Short: "Withdraw a service from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				svc, err := app.UseCases().UnpublishService.Execute(ctx, catalogapp.UnpublishServiceInput{
					Actor:     actor,
					ServiceID: id,
					Reason:    reason,
				})
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), fmt.Sprintf("Service %d unpublished", id))
				s := dto.FromService(svc)
				return render(cmd.OutOrStdout(), s, serviceDetail(s))
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the service is withdrawn")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newServiceEndpointCmd() *cobra.Command {
	var base, slug string
	cmd := &cobra.Command{
		Use:   "endpoint ID [--base BASE] [--slug SLUG]",
		Short: "Change the managed endpoint of a service (admin only)",
		Long: `Change the managed endpoint of a service.

Omitted flags keep the stored override. The endpoint is re-allocated and
gets a numeric suffix when another service already uses it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			input := catalogapp.UpdateEndpointInput{ServiceID: id}
			if cmd.Flags().Changed("base") {
				input.Base = &base
			}
			if cmd.Flags().Changed("slug") {
				input.Slug = &slug
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				input.Actor = actor
				out, err := app.UseCases().UpdateEndpoint.Execute(ctx, input)
				if err != nil {
					return err
				}
				resp := dto.EndpointResponse{
					Service:  dto.FromService(out.Service),
					Previous: out.Previous,
					Base:     out.Assignment.Base,
					Slug:     out.Assignment.Slug,
				}
				printStatus(cmd.OutOrStdout(), fmt.Sprintf("Endpoint changed from %s to %s", out.Previous, resp.Service.ManagedEndpoint))
				return render(cmd.OutOrStdout(), resp, serviceDetail(resp.Service))
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "endpoint base segment")
	cmd.Flags().StringVar(&slug, "slug", "", "endpoint slug")
	return cmd
}

func newServiceDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate ID",
		Short: "Start a new request from an existing service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runDuplicate(cmd, catalogapp.DuplicateRequestInput{ServiceID: id})
		},
	}
}

// readPatch decodes a configuration patch file into generic sections.
func readPatch(cmd *cobra.Command, path string) (catalog.ConfigPatch, error) {
	const op = "cli.readPatch"

	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return nil, apperrors.ValidationField(op, "file", err.Error())
	}

	// YAML is a superset of JSON, so one decoder serves both.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.ValidationField(op, "file", fmt.Sprintf("invalid %s: %v", strings.TrimPrefix(filepath.Ext(path), "."), err))
	}
	if len(raw) == 0 {
		return nil, apperrors.ValidationField(op, "file", "patch is empty")
	}

	doc, err := toDocument(raw)
	if err != nil {
		return nil, err
	}
	sections, _ := doc.(map[string]any)
	return catalog.ConfigPatch(sections), nil
}
