package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI provides user-friendly output utilities. Progress widgets render only
// when stderr is a terminal and --json is off.
type UI struct {
	out         io.Writer
	errOut      io.Writer
	noColor     bool
	jsonMode    bool
	interactive bool
}

// NewUI creates a new UI instance.
func NewUI(out, errOut io.Writer, jsonMode, noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{
		out:         out,
		errOut:      errOut,
		noColor:     noColor,
		jsonMode:    jsonMode,
		interactive: !jsonMode && IsTerminal(errOut),
	}
}

func (ui *UI) print(attr color.Attribute, symbol, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if ui.noColor {
		fmt.Fprintf(ui.out, "%s %s\n", symbol, msg)
		return
	}
	color.New(attr).Fprintf(ui.out, "%s %s\n", symbol, msg)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.print(color.FgGreen, "✓", format, args...)
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...interface{}) {
	ui.print(color.FgRed, "✗", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.print(color.FgYellow, "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.print(color.FgCyan, "ℹ", format, args...)
}

// Field prints an aligned "label: value" line.
func (ui *UI) Field(label, value string) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "  %-12s %s\n", label+":", value)
		return
	}
	fmt.Fprintf(ui.out, "  %s %s\n", color.New(color.Bold).Sprintf("%-12s", label+":"), value)
}

// JSON writes v as indented JSON. Used only in --json mode.
func (ui *UI) JSON(v interface{}) error {
	enc := json.NewEncoder(ui.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table prints a formatted table.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode || len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	border := func() {
		fmt.Fprint(ui.out, "+")
		for _, w := range widths {
			fmt.Fprint(ui.out, strings.Repeat("-", w+2)+"+")
		}
		fmt.Fprintln(ui.out)
	}
	line := func(cells []string, header bool) {
		fmt.Fprint(ui.out, "|")
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			text := fmt.Sprintf(" %-*s ", w, cell)
			if header && !ui.noColor {
				text = color.New(color.FgCyan, color.Bold).Sprint(text)
			}
			fmt.Fprint(ui.out, text+"|")
		}
		fmt.Fprintln(ui.out)
	}

	border()
	line(headers, true)
	border()
	for _, row := range rows {
		line(row, false)
	}
	border()
}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner on stderr. It is a no-op when not interactive.
func (ui *UI) NewSpinner(message string) *Spinner {
	if !ui.interactive {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(ui.errOut))
	s.Suffix = " " + message
	if !ui.noColor {
		_ = s.Color("cyan")
	}
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s.spinner != nil {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}

// ProgressBar wraps a progressbar instance for deterministic progress display.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a progress bar on stderr. It is a no-op when not interactive.
func (ui *UI) NewProgressBar(total int64, description string) *ProgressBar {
	if !ui.interactive {
		return &ProgressBar{}
	}
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(ui.errOut),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(ui.errOut, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

// Add advances the bar by n.
func (p *ProgressBar) Add(n int) {
	if p.bar != nil {
		_ = p.bar.Add(n)
	}
}

// Describe changes the bar description.
func (p *ProgressBar) Describe(description string) {
	if p.bar != nil {
		p.bar.Describe(description)
	}
}

// Finish completes the progress bar.
func (p *ProgressBar) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// BatchProgress shows one mpb bar for decoded VINs and one for remote failures.
type BatchProgress struct {
	progress *mpb.Progress
	decoded  *mpb.Bar
	degraded *mpb.Bar
}

// NewBatchProgress creates batch bars on stderr. It is a no-op when not interactive.
func (ui *UI) NewBatchProgress(total int64) *BatchProgress {
	if !ui.interactive {
		return &BatchProgress{}
	}

	p := mpb.New(mpb.WithOutput(ui.errOut), mpb.WithWidth(48))
	decoded := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name("decoded", decor.WC{W: 9, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 8}), " done"),
		),
	)
	degraded := p.New(total,
		mpb.BarStyle().Filler("!"),
		mpb.PrependDecorators(
			decor.Name("degraded", decor.WC{W: 9, C: decor.DSyncSpaceR}),
			decor.CurrentNoUnit("%d", decor.WCSyncWidth),
		),
	)
	return &BatchProgress{progress: p, decoded: decoded, degraded: degraded}
}

// Done records one finished item.
func (b *BatchProgress) Done(degraded bool) {
	if b.progress == nil {
		return
	}
	b.decoded.Increment()
	if degraded {
		b.degraded.Increment()
	}
}

// Wait completes the bars and waits for the final render.
func (b *BatchProgress) Wait() {
	if b.progress == nil {
		return
	}
	b.decoded.SetTotal(-1, true)
	b.degraded.SetTotal(-1, true)
	b.progress.Wait()
}

// IsTerminal reports whether w is a character device.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
