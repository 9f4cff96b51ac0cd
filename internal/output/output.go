// Package output formats CLI results. On a terminal results are styled
// tables; otherwise they are plain tab-separated lines that are easy to
// pipe into other tools.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	styled bool
	styles Styles
}

// New creates a Writer that styles its output only when out is a terminal
// and NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return newWriter(out, IsTTY(out) && !DetectNoColor())
}

// Plain creates a Writer that never styles its output.
func Plain(out io.Writer) *Writer {
	return newWriter(out, false)
}

func newWriter(out io.Writer, styled bool) *Writer {
	styles := NoColorStyles()
	if styled {
		styles = DefaultStyles()
	}
	return &Writer{out: out, styled: styled, styles: styles}
}

// IsTTY checks if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Styled reports whether the writer emits terminal styling.
func (w *Writer) Styled() bool {
	return w.styled
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Status(w.styles.Success.Render("✓"), fmt.Sprintf(format, args...))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Status(w.styles.Warning.Render("!"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Table prints rows under headers. Unstyled output omits the header and
// separates cells with tabs.
func (w *Writer) Table(headers []string, rows [][]string) {
	if !w.styled {
		for _, row := range rows {
			_, _ = fmt.Fprintln(w.out, strings.Join(row, "\t"))
		}
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(w.styles.Border).
		BorderColumn(false).
		BorderLeft(false).
		BorderRight(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return w.styles.Header.PaddingRight(2)
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
	_, _ = fmt.Fprintln(w.out, t.Render())
}

// KeyValues prints aligned "key: value" lines in the given order.
func (w *Writer) KeyValues(pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	for _, p := range pairs {
		key := fmt.Sprintf("%-*s", width+1, p[0]+":")
		_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Label.Render(key), p[1])
	}
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Raw writes data unchanged.
func (w *Writer) Raw(data []byte) error {
	_, err := w.out.Write(data)
	return err
}
