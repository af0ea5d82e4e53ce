// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/cv-generator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad truncates or right-pads line to the box's inner width, counting runes.
func pad(line string) string {
	width := boxWidth - 4
	n := utf8.RuneCountInString(line)
	if n > width {
		runes := []rune(line)
		return string(runes[:width-3]) + "..."
	}
	return line + strings.Repeat(" ", width-n)
}

// PrintProfile outputs a human-readable summary of the extracted candidate profile.
func (p *Printer) PrintProfile(profile *types.CandidateProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:      %s\n", profile.Name))
	sb.WriteString(fmt.Sprintf("Position:  %s\n", profile.Position))
	sb.WriteString(fmt.Sprintf("Language:  %s", profile.Language))
	if profile.BlindCV {
		sb.WriteString(" (blind)")
	}
	sb.WriteString("\n\n")

	if len(profile.WhyPoints) > 0 {
		sb.WriteString("Why this candidate:\n")
		writeList(&sb, profile.WhyPoints)
		sb.WriteString("\n")
	}

	if len(profile.Experience) > 0 {
		sb.WriteString("Experience:\n")
		count := min(len(profile.Experience), maxItemsToShow)
		for _, e := range profile.Experience[:count] {
			sb.WriteString(fmt.Sprintf("  • %s, %s (%s)\n", e.Position, e.Company, e.Dates))
		}
		if len(profile.Experience) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(profile.Experience)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Education: %d  Skills: %d  Certifications: %d  Languages: %d\n",
		len(profile.Education), len(profile.Skills), len(profile.Certifications), len(profile.Languages)))

	p.printBox("CANDIDATE PROFILE", sb.String())
}

// PrintAttempts outputs the remote call attempt log.
func (p *Printer) PrintAttempts(attempts []types.AttemptRecord) {
	if len(attempts) == 0 {
		return
	}

	var sb strings.Builder
	for _, a := range attempts {
		sb.WriteString(fmt.Sprintf("#%d %s %s", a.Number, a.Outcome, a.Duration().Round(time.Millisecond)))
		if a.Outcome == types.AttemptFailure {
			sb.WriteString(fmt.Sprintf(" %s %s", a.Classification, a.ErrorKind))
			if a.StatusCode != 0 {
				sb.WriteString(fmt.Sprintf(" %d", a.StatusCode))
			}
		}
		if a.Delay > 0 {
			sb.WriteString(fmt.Sprintf(" wait %s", a.Delay))
		}
		sb.WriteString("\n")
	}

	p.printBox("MODEL ATTEMPTS", sb.String())
}

// PrintTimings outputs per-stage durations and their total.
func (p *Printer) PrintTimings(timings []types.StageTiming) {
	if len(timings) == 0 {
		return
	}

	var sb strings.Builder
	var total time.Duration
	for _, t := range timings {
		total += t.Duration
		status := ""
		if t.Failed {
			status = "  FAILED"
		}
		sb.WriteString(fmt.Sprintf("%-14s %10s%s\n", t.Stage, t.Duration.Round(time.Millisecond), status))
	}
	sb.WriteString(fmt.Sprintf("%-14s %10s\n", "total", total.Round(time.Millisecond)))

	p.printBox("STAGE TIMINGS", sb.String())
}

func writeList(sb *strings.Builder, items []string) {
	count := min(len(items), maxItemsToShow)
	for _, item := range items[:count] {
		sb.WriteString(fmt.Sprintf("  • %s\n", item))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}
