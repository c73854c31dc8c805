package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// styles holds color formatters for human output
type styles struct {
	heading *color.Color
	label   *color.Color
	offset  *color.Color
	match   *color.Color
	dim     *color.Color
}

// newStyles creates color formatters. enabled=false turns every formatter
// into plain text.
func newStyles(enabled bool) *styles {
	s := &styles{
		heading: color.New(color.Bold),
		label:   color.New(color.Bold, color.FgHiBlue),
		offset:  color.New(color.FgHiGreen),
		match:   color.New(color.FgYellow),
		dim:     color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{s.heading, s.label, s.offset, s.match, s.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// useJSON reports whether cmd should print JSON: always for --format json,
// and for --format auto when stdout is not a terminal.
func useJSON(cmd *cobra.Command) bool {
	switch cfg.Format {
	case "json":
		return true
	case "human":
		return false
	default:
		return !isTerminal(cmd.OutOrStdout())
	}
}

// stylesFor resolves --color against the output stream and NO_COLOR.
func stylesFor(cmd *cobra.Command) *styles {
	switch cfg.Color {
	case "always":
		return newStyles(true)
	case "never":
		return newStyles(false)
	default: // "auto"
		return newStyles(isTerminal(cmd.OutOrStdout()) && os.Getenv("NO_COLOR") == "")
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
