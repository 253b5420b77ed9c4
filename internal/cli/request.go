package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/fileutil"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"requests", "req"},
		Short:   "Submit and review service requests",
	}
	cmd.AddCommand(
		newRequestSubmitCmd(),
		newRequestEditCmd(),
		newRequestGetCmd(),
		newRequestListCmd(),
		newRequestStatsCmd(),
		newRequestDeleteCmd(),
		newRequestDuplicateCmd(),
		newRequestReviewCmd(),
		newRequestPendingCmd(),
	)
	return cmd
}

func newRequestSubmitCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "submit --file request.yaml",
		Short: "Submit a new service request",
		Long: `Submit a new service request for administrator review.

The request is read from a YAML or JSON file ("-" reads YAML from stdin).
Field names match the API, for example:

  name: Mesa de partes digital
  description: Recepcion de documentos
  url: https://tramites.example.gob/mesa
  method: POST
  version: 1.0.0
  documentation: ...
  justification: ...
  terms_accepted: true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				out, err := app.UseCases().SubmitRequest.Execute(ctx, catalogapp.SubmitRequestInput{
					Actor:   actor,
					Payload: payload,
				})
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), fmt.Sprintf("Request %d submitted for review", out.Request.ID()))
				r := dto.FromRequest(out.Request)
				return render(cmd.OutOrStdout(), r, requestDetail(r))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "request file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRequestEditCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "edit ID --file request.yaml",
		Short: "Replace the contents of an undecided request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				out, err := app.UseCases().EditRequest.Execute(ctx, catalogapp.EditRequestInput{
					Actor:     actor,
					RequestID: id,
					Payload:   payload,
				})
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), fmt.Sprintf("Request %d updated", id))
				r := dto.FromRequest(out.Request)
				return render(cmd.OutOrStdout(), r, requestDetail(r))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "request file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRequestGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				req, err := app.UseCases().GetRequest.Execute(ctx, catalogapp.GetRequestInput{
					Actor:     actor,
					RequestID: id,
				})
				if err != nil {
					return err
				}
				r := dto.FromRequest(req)
				return render(cmd.OutOrStdout(), r, requestDetail(r))
			})
		},
	}
}

func newRequestListCmd() *cobra.Command {
	var (
		statuses string
		search   string
		limit    int
		offset   int
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStatuses(statuses, catalog.ParseRequestStatus)
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				out, err := app.UseCases().ListRequests.Execute(ctx, catalogapp.ListRequestsInput{
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
				items := dto.FromRequests(out.Requests)
				return render(cmd.OutOrStdout(), dto.NewPage(items, out.Limit, out.Offset), requestsView(items))
			})
		},
	}
	cmd.Flags().StringVar(&statuses, "status", "", "comma-separated statuses to include")
	cmd.Flags().StringVar(&search, "search", "", "match name or description")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 = default)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&all, "all", false, "list every publisher's requests (admin only)")
	return cmd
}

func newRequestStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count your requests per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				stats, err := app.UseCases().RequestStats.Execute(ctx, actor)
				if err != nil {
					return err
				}
				out := dto.FromStats(stats.Total, stats.ByStatus)
				return render(cmd.OutOrStdout(), out, statsView(out))
			})
		},
	}
}

func newRequestDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a request that has not been approved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				err := app.UseCases().DeleteRequest.Execute(ctx, catalogapp.DeleteRequestInput{
					Actor:     actor,
					RequestID: id,
				})
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Request %d deleted", id))
				return nil
			})
		},
	}
}

func newRequestDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate ID",
		Short: "Start a new request from an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runDuplicate(cmd, catalogapp.DuplicateRequestInput{RequestID: id})
		},
	}
}

func runDuplicate(cmd *cobra.Command, input catalogapp.DuplicateRequestInput) error {
	return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
		input.Actor = actor
		out, err := app.UseCases().DuplicateRequest.Execute(ctx, input)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), fmt.Sprintf("Request %d created", out.Request.ID()))
		r := dto.FromRequest(out.Request)
		return render(cmd.OutOrStdout(), r, requestDetail(r))
	})
}

func newRequestReviewCmd() *cobra.Command {
	var (
		decision     string
		notes        string
		reason       string
		endpointBase string
		endpointSlug string
	)
	cmd := &cobra.Command{
		Use:   "review ID --decision approve|reject|request_modifications",
		Short: "Decide on a pending request (admin only)",
		Long: `Decide on a pending request.

Approving creates the service with its managed endpoint in the same
transaction. --endpoint-base and --endpoint-slug override the generated
endpoint. Rejections and modification requests need --reason.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			parsed, err := catalogapp.ParseDecision(decision)
			if err != nil {
				return apperrors.ValidationField("cli.review", "decision", err.Error())
			}
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				out, err := app.UseCases().ReviewRequest.Execute(ctx, catalogapp.ReviewRequestInput{
					Actor:        actor,
					RequestID:    id,
					Decision:     parsed,
					Notes:        notes,
					Reason:       reason,
					EndpointBase: endpointBase,
					EndpointSlug: endpointSlug,
				})
				if err != nil {
					return err
				}
				if m := app.Metrics(); m != nil {
					m.RecordRetries("review_request", out.Attempts)
				}

				w := cmd.OutOrStdout()
				resp := dto.ReviewResponse{Request: dto.FromRequest(out.Request)}
				if out.Service != nil {
					svc := dto.FromService(out.Service)
					resp.Service = &svc
					printStatus(w, fmt.Sprintf("Request %d approved as service %d at %s", id, svc.ID, svc.ManagedEndpoint))
					return render(w, resp, serviceDetail(svc))
				}
				printStatus(w, fmt.Sprintf("Request %d is now %s", id, resp.Request.Status))
				return render(w, resp, requestDetail(resp.Request))
			})
		},
	}
	cmd.Flags().StringVarP(&decision, "decision", "d", "", "approve, reject or request_modifications")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection or modification reason")
	cmd.Flags().StringVar(&endpointBase, "endpoint-base", "", "override the endpoint base segment")
	cmd.Flags().StringVar(&endpointSlug, "endpoint-slug", "", "override the endpoint slug")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func newRequestPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Count requests awaiting review (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsActor(cmd, func(ctx context.Context, app cliApp, actor catalogapp.Actor) error {
				n, err := app.UseCases().PendingCount.Execute(ctx, actor)
				if err != nil {
					return err
				}
				out := dto.PendingCountDTO{Pending: n}
				return render(cmd.OutOrStdout(), out, detailView{{"pending", strconv.Itoa(n)}})
			})
		},
	}
}

// runAsActor resolves the acting user and runs fn with an initialized app.
func runAsActor(cmd *cobra.Command, fn func(ctx context.Context, app cliApp, actor catalogapp.Actor) error) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, app cliApp) error {
		return fn(ctx, app, actor)
	})
}

// readPayload decodes a request file. JSON files are decoded strictly.
func readPayload(cmd *cobra.Command, path string) (catalogapp.RequestPayload, error) {
	const op = "cli.readPayload"

	var payload catalogapp.RequestPayload
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return payload, apperrors.ValidationField(op, "file", err.Error())
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return payload, apperrors.ValidationField(op, "file", fmt.Sprintf("invalid JSON: %v", err))
		}
		return payload, nil
	}

	if err := yaml.Unmarshal(data, &payload); err != nil {
		return payload, apperrors.ValidationField(op, "file", fmt.Sprintf("invalid YAML: %v", err))
	}
	return payload, nil
}

// maxInputSize caps request and configuration patch files.
const maxInputSize = 1 << 20

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return fileutil.ReadLimited(stdin, maxInputSize)
	}
	return fileutil.ReadFileLimited(path, maxInputSize)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationField("cli.parseID", "id", fmt.Sprintf("must be a positive integer, got %q", raw))
	}
	return id, nil
}

// parseStatuses splits a comma-separated status filter.
func parseStatuses[S any](raw string, parse func(string) (S, error)) ([]S, error) {
	var out []S
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s, err := parse(part)
		if err != nil {
			return nil, apperrors.ValidationField("cli.parseStatuses", "status", err.Error())
		}
		out = append(out, s)
	}
	return out, nil
}
