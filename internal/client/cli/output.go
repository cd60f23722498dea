package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dmitrijs2005/dulo/internal/client/models"
)

// printer writes user-facing output. Colours follow the theme: dark forces
// them on, light turns them off and system leaves the terminal detection of
// the color package in charge.
type printer struct {
	w       io.Writer
	success *color.Color
	failure *color.Color
	accent  *color.Color
	muted   *color.Color
}

func newPrinter(w io.Writer, theme models.Theme) *printer {
	p := &printer{w: w}
	p.setTheme(theme)
	return p
}

func (p *printer) setTheme(theme models.Theme) {
	p.success = color.New(color.FgGreen)
	p.failure = color.New(color.FgRed, color.Bold)
	p.accent = color.New(color.FgCyan)
	p.muted = color.New(color.FgHiBlack)

	for _, c := range []*color.Color{p.success, p.failure, p.accent, p.muted} {
		switch theme {
		case models.ThemeDark:
			c.EnableColor()
		case models.ThemeLight:
			c.DisableColor()
		}
	}
}

func (p *printer) println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

func (p *printer) printf(format string, a ...any) {
	fmt.Fprintf(p.w, format, a...)
}

func (p *printer) ok(format string, a ...any) {
	p.success.Fprintf(p.w, format+"\n", a...)
}

func (p *printer) fail(err error) {
	p.failure.Fprintf(p.w, "Error: %s\n", err)
}

func (p *printer) info(format string, a ...any) {
	p.accent.Fprintf(p.w, format+"\n", a...)
}

func (p *printer) hint(format string, a ...any) {
	p.muted.Fprintf(p.w, format+"\n", a...)
}
