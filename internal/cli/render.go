package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/futurepool/pool"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

func printSection(w io.Writer, title string, lines ...string) {
	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "═══════════════════════════════════════════════════════════")
	_, _ = bold.Fprintln(w, title)
	_, _ = bold.Fprintln(w, "═══════════════════════════════════════════════════════════")
	for _, l := range lines {
		_, _ = fmt.Fprintln(w, l)
	}
	_, _ = fmt.Fprintln(w)
}

func newTable(w io.Writer, header ...any) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.Header(header...)
	return t
}

func renderTable(w io.Writer, t *tablewriter.Table) {
	if err := t.Render(); err != nil {
		_, _ = red.Fprintf(w, "render table: %v\n", err)
	}
}

// newBar returns a progress bar over n items, or nil when quiet is set.
func newBar(w io.Writer, n int, desc string, quiet bool) *progressbar.ProgressBar {
	if quiet {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
	)
}

// stateColor picks a color for a future state.
func stateColor(s pool.State) *color.Color {
	switch s {
	case pool.StateDone:
		return green
	case pool.StateFailed:
		return red
	case pool.StateCancelled:
		return yellow
	default:
		return cyan
	}
}

func coloredState(s pool.State) string {
	return stateColor(s).Sprint(s.String())
}

// formatDuration rounds d to a readable precision.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(100 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

func speedup(serial, parallel time.Duration) string {
	if parallel <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fx", float64(serial)/float64(parallel))
}
