// Package output formats sprintctl's terminal output.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

// ColorMode represents color output mode
type ColorMode int

const (
	// ColorAuto enables colors unless NO_COLOR is set or TERM is dumb
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses a string into a ColorMode
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors determines whether to use colors based on mode and environment
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

// Printer handles formatted output to the terminal
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

func NewPrinter(out, errOut io.Writer, mode ColorMode) *Printer {
	return &Printer{out: out, err: errOut, useColors: ResolveColors(mode)}
}

// Out is the writer tables render to.
func (p *Printer) Out() io.Writer {
	return p.out
}

// paint returns a color.Color that honours the printer's mode even when
// fatih/color's own terminal detection disagrees.
func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.useColors {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (p *Printer) Info(format string, args ...any) {
	p.paint(color.FgCyan).Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Success(format string, args ...any) {
	if p.useColors {
		p.paint(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
}

func (p *Printer) Warning(format string, args ...any) {
	if p.useColors {
		p.paint(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
}

func (p *Printer) Error(format string, args ...any) {
	if p.useColors {
		p.paint(color.FgRed).Fprintf(p.err, "✗ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[ERROR] "+format+"\n", args...)
}

func (p *Printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints a section header
func (p *Printer) Header(title string) {
	if p.useColors {
		p.paint(color.FgWhite, color.Bold).Fprintf(p.out, "\n%s\n", title)
		p.paint(color.FgWhite).Fprintf(p.out, "%s\n", strings.Repeat("─", len([]rune(title))))
		return
	}
	fmt.Fprintf(p.out, "\n%s\n%s\n", title, strings.Repeat("-", len([]rune(title))))
}

func (p *Printer) Bold(text string) string {
	return p.paint(color.Bold).Sprint(text)
}

func (p *Printer) Dim(text string) string {
	return p.paint(color.Faint).Sprint(text)
}

// Role colours a role name: Admin red, Member green, Viewer dim.
func (p *Printer) Role(role permission.Role) string {
	switch role {
	case permission.Admin:
		return p.paint(color.FgRed, color.Bold).Sprint(string(role))
	case permission.Member:
		return p.paint(color.FgGreen).Sprint(string(role))
	case permission.Viewer:
		return p.Dim(string(role))
	}
	return string(role)
}

// Status colours a workflow status.
func (p *Printer) Status(s model.Status) string {
	switch s {
	case model.StatusToDo:
		return p.paint(color.FgWhite).Sprint(string(s))
	case model.StatusInProgress:
		return p.paint(color.FgYellow).Sprint(string(s))
	case model.StatusDone:
		return p.paint(color.FgGreen).Sprint(string(s))
	}
	return string(s)
}
