// Package render writes change sets as json, yaml, colored text or a table.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
)

// Supported output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatText  = "text"
	FormatTable = "table"
)

const (
	statusActive  = "active"
	statusDeleted = "deleted"
	jsonIndent    = "  "
)

// ErrUnknownFormat is returned for a format name not in Formats.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every supported format name.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatText, FormatTable}
}

// Renderer writes change sets in one format.
type Renderer struct {
	format string
	color  bool
}

// New creates a renderer. colored only affects the text and table formats.
func New(format string, colored bool) (*Renderer, error) {
	if !slices.Contains(Formats(), format) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return &Renderer{format: format, color: colored}, nil
}

// Format returns the renderer's format name.
func (r *Renderer) Format() string { return r.format }

// Render writes m to w.
func (r *Renderer) Render(w io.Writer, m changes.Map) error {
	if m == nil {
		m = changes.Map{}
	}

	switch r.format {
	case FormatYAML:
		return renderYAML(w, m)
	case FormatText:
		return r.renderText(w, m)
	case FormatTable:
		return r.renderTable(w, m)
	default:
		return renderJSON(w, m)
	}
}

// SummaryLine formats counts for humans, e.g. "1,204 active, 3 deleted".
func SummaryLine(s changes.Summary) string {
	return fmt.Sprintf("%s %s, %s %s",
		humanize.Comma(int64(s.Active)), statusActive,
		humanize.Comma(int64(s.Deleted)), statusDeleted)
}

func renderJSON(w io.Writer, m changes.Map) error {
	data, err := json.MarshalIndent(m, "", jsonIndent)
	if err != nil {
		return fmt.Errorf("marshal changes to JSON: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s\n", data)
	if err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}

	return nil
}

func renderYAML(w io.Writer, m changes.Map) error {
	data, err := yaml.Marshal(map[string]bool(m))
	if err != nil {
		return fmt.Errorf("marshal changes to YAML: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write YAML: %w", err)
	}

	return nil
}

func (r *Renderer) renderText(w io.Writer, m changes.Map) error {
	added := r.paint(color.FgGreen)
	removed := r.paint(color.FgRed)

	for _, path := range m.Paths() {
		var err error
		if m[path] {
			_, err = added.Fprintf(w, "+ %s\n", path)
		} else {
			_, err = removed.Fprintf(w, "- %s\n", path)
		}

		if err != nil {
			return fmt.Errorf("write text: %w", err)
		}
	}

	_, err := r.paint(color.Faint).Fprintln(w, SummaryLine(m.Summary()))
	if err != nil {
		return fmt.Errorf("write text: %w", err)
	}

	return nil
}

func (r *Renderer) renderTable(w io.Writer, m changes.Map) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Path", "Status"})

	added := r.paint(color.FgGreen)
	removed := r.paint(color.FgRed)

	for _, path := range m.Paths() {
		status := added.Sprint(statusActive)
		if !m[path] {
			status = removed.Sprint(statusDeleted)
		}

		tw.AppendRow(table.Row{path, status})
	}

	tw.AppendFooter(table.Row{"Total", SummaryLine(m.Summary())})

	_, err := fmt.Fprintln(w, tw.Render())
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return nil
}

func (r *Renderer) paint(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if r.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	return c
}
