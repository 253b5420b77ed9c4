package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

func newMachineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Inspect the request and service lifecycles",
	}
	cmd.AddCommand(newMachineExportCmd())
	return cmd
}

func newMachineExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "export request|service",
		Short:     "Export a lifecycle as XState JSON",
		Long:      "Export a lifecycle as XState-compatible JSON for visualizers. --format yaml or toml converts it.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"request", "service"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				m   *catalog.LifecycleMachine
				err error
			)
			switch args[0] {
			case "request":
				m, err = catalog.NewRequestMachine()
			case "service":
				m, err = catalog.NewServiceMachine()
			default:
				return apperrors.ValidationField("cli.machine", "machine", fmt.Sprintf("must be request or service, got %q", args[0]))
			}
			if err != nil {
				return err
			}

			data, err := m.ExportXStateJSON()
			if err != nil {
				return err
			}
			if outputFormat == formatTable || outputFormat == formatJSON || outputFormat == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			var doc catalog.XStateJSON
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), doc, nil)
		},
	}
}
