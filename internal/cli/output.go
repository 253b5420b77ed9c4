package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTOML  = "toml"
)

// tabular is implemented by values that have a table rendering.
type tabular interface {
	header() []string
	rows() [][]string
}

// render writes v in the selected output format. view is used for the table
// format; a nil view falls back to YAML.
func render(w io.Writer, v any, view tabular) error {
	switch outputFormat {
	case formatTable, "":
		if view == nil {
			return writeYAML(w, v)
		}
		return writeTable(w, view)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return writeYAML(w, v)
	case formatTOML:
		doc, err := toDocument(v)
		if err != nil {
			return err
		}
		if _, ok := doc.(map[string]any); !ok {
			doc = map[string]any{"items": doc}
		}
		return toml.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("unknown output format %q (table, json, yaml, toml)", outputFormat)
	}
}

func writeTable(w io.Writer, view tabular) error {
	rows := view.rows()
	if len(rows) == 0 {
		printSubtle(w, "No results.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Subtle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Bold.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(view.header()...).
		Rows(rows...)

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func writeYAML(w io.Writer, v any) error {
	doc, err := toDocument(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// toDocument converts v to generic maps and slices through its JSON form so
// YAML and TOML output use the same field names as the API.
func toDocument(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return normalizeNumbers(doc), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, styles.Success.Render("✓ "+msg))
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, styles.Warning.Render("⚠ "+msg))
}

func printInfo(w io.Writer, msg string) {
	fmt.Fprintln(w, styles.Info.Render("ℹ "+msg))
}

func printTitle(w io.Writer, msg string) {
	fmt.Fprintln(w, styles.Title.Render(msg))
}

func printSubtle(w io.Writer, msg string) {
	fmt.Fprintln(w, styles.Subtle.Render(msg))
}

// printStatus prints a success line unless structured output was requested.
func printStatus(w io.Writer, msg string) {
	if outputFormat == formatTable || outputFormat == "" {
		printSuccess(w, msg)
	}
}
