package cli

import (
	"context"

	"github.com/spf13/cobra"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
)

func newListingCmd() *cobra.Command {
	var (
		search string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:     "listing",
		Aliases: []string{"browse"},
		Short:   "Show the public service catalog",
		Long: `Show the services consumers can discover: those ready to publish,
published or active. No acting user is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app cliApp) error {
				out, err := app.UseCases().CatalogListing.Execute(ctx, catalogapp.CatalogListingInput{
					Search: search,
					Limit:  limit,
					Offset: offset,
				})
				if err != nil {
					return err
				}
				entries := make([]dto.CatalogEntryDTO, 0, len(out.Services))
				for _, svc := range out.Services {
					entries = append(entries, dto.FromCatalogEntry(svc))
				}
				return render(cmd.OutOrStdout(), dto.NewPage(entries, out.Limit, out.Offset), catalogView(entries))
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match name or description")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 = default)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}
