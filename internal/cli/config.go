package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/fileutil"
)

const redacted = "[REDACTED]"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			var buf bytes.Buffer
			buf.WriteString("# Catalog configuration. Values can be overridden with CATALOG_* variables.\n")
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(config.DefaultConfig()); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}

			if err := fileutil.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			printSuccess(cmd.OutOrStdout(), "Wrote "+path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", ".catalog.yaml", "file to create")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfig(cmd.OutOrStdout(), redactConfig(cfg))
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and list warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Errors already stopped the command in PersistentPreRunE.
			validator := config.NewValidator()
			_ = validator.Validate(cfg)

			w := cmd.OutOrStdout()
			source := "defaults and environment"
			if cfgLoader != nil && cfgLoader.GetConfigPath() != "" {
				source = cfgLoader.GetConfigPath()
			}
			printSuccess(w, fmt.Sprintf("Configuration is valid (%s)", source))
			for _, warning := range validator.Warnings() {
				printWarning(w, warning)
			}
			return nil
		},
	}
}

// writeConfig encodes c with its own struct tags, so durations stay readable
// in YAML.
func writeConfig(w io.Writer, c config.Config) error {
	switch outputFormat {
	case formatTable, formatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case formatTOML:
		return toml.NewEncoder(w).Encode(c)
	default:
		return render(w, c, nil)
	}
}

// redactConfig returns a copy of c with secrets hidden.
func redactConfig(c *config.Config) config.Config {
	out := *c
	out.Server.APIKeys = make([]config.APIKeyConfig, len(c.Server.APIKeys))
	for i, k := range c.Server.APIKeys {
		k.Key = redacted
		out.Server.APIKeys[i] = k
	}
	out.Storage.DSN = redactDSN(c.Storage.DSN)
	out.Webhooks = make([]config.WebhookConfig, len(c.Webhooks))
	for i, wh := range c.Webhooks {
		if wh.Secret != "" {
			wh.Secret = redacted
		}
		out.Webhooks[i] = wh
	}
	return out
}

// redactDSN hides the password of a URL-style DSN.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":" + redacted + "@" + host
}
