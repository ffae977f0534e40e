package presentation

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	loadedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F"))
	declinedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#BBBBBB"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8787"))
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FECA57"))
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
}

// NewFormatter creates a new formatter. Unknown formats fall back to JSON.
func NewFormatter(writer io.Writer, format string) *Formatter {
	if format != FormatText {
		format = FormatJSON
	}
	return &Formatter{
		writer: writer,
		format: format,
	}
}

// ValidateFormat checks an output format name.
func ValidateFormat(format string) error {
	switch format {
	case FormatJSON, FormatText:
		return nil
	default:
		return fmt.Errorf("format must be %q or %q, got %q", FormatJSON, FormatText, format)
	}
}

// FormatRegistrations writes the registration table.
func (f *Formatter) FormatRegistrations(regs []RegistrationDTO) error {
	if f.format == FormatJSON {
		return f.encode(regs)
	}

	rows := make([][]string, len(regs))
	for i, r := range regs {
		rows[i] = []string{r.Namespace, r.Version, r.Dir}
	}
	return f.table([]string{"NAMESPACE", "VERSION", "DIR"}, rows, nil)
}

// FormatResolutions writes resolve outcomes.
func (f *Formatter) FormatResolutions(results []ResolutionDTO) error {
	if f.format == FormatJSON {
		return f.encode(results)
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		detail := r.Path
		if r.Error != "" {
			detail = r.Error
		}
		rows[i] = []string{r.Symbol, r.Status, detail}
	}
	return f.table([]string{"SYMBOL", "STATUS", "PATH"}, rows, func(col int, value string) lipgloss.Style {
		if col != 1 {
			return lipgloss.NewStyle()
		}
		return statusStyle(value)
	})
}

// FormatEvent writes a single registry event. JSON output is one object per
// line so that watch output can be piped.
func (f *Formatter) FormatEvent(ev EventDTO) error {
	if f.format == FormatJSON {
		return json.NewEncoder(f.writer).Encode(ev)
	}

	line := fmt.Sprintf("%s %s@%s %s", ev.Kind, ev.Namespace, ev.Version, ev.Dir)
	if ev.Previous != "" {
		line += fmt.Sprintf(" (previous %s)", ev.Previous)
	}
	style := loadedStyle
	if ev.Kind == "skipped" {
		style = skippedStyle
	}
	_, err := fmt.Fprintln(f.writer, style.Render(line))
	return err
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// table writes a borderless table with left-aligned columns sized to their
// widest cell.
func (f *Formatter) table(header []string, rows [][]string, cellStyle func(col int, value string) lipgloss.Style) error {
	if cellStyle == nil {
		cellStyle = func(int, string) lipgloss.Style { return lipgloss.NewStyle() }
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			if row == table.HeaderRow {
				style = headerStyle
			} else {
				style = cellStyle(col, rows[row][col])
			}
			if col < len(header)-1 {
				style = style.PaddingRight(2)
			}
			return style
		})

	_, err := fmt.Fprintln(f.writer, t.Render())
	return err
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case StatusLoaded, StatusFound:
		return loadedStyle
	case StatusError:
		return errorStyle
	default:
		return declinedStyle
	}
}
