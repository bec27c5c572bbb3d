// Package report renders pipeline output for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/intelbrief/internal/coord"
	"github.com/abelbrown/intelbrief/internal/model"
	"github.com/abelbrown/intelbrief/internal/otel"
)

// Assessment writes a target's scores, deltas and drivers.
func Assessment(w io.Writer, a model.Assessment) {
	fmt.Fprintln(w, Title.Render("Stability: "+a.Target))
	fmt.Fprintf(w, "%s %s  %s  %s\n",
		Label.Render("Overall"),
		scoreStyle(a.Overall).Render(fmt.Sprintf("%.1f", a.Overall)),
		deltas(a.Delta7d, a.Delta30d, a.Delta90d),
		Muted.Render(fmt.Sprintf("confidence %.2f (%s)", a.Confidence, model.LabelFor(a.Confidence))),
	)

	fmt.Fprintln(w, Heading.Render("Dimensions"))
	for _, s := range a.SubScores {
		fmt.Fprintf(w, "  %-14s %s  %s\n",
			s.Name,
			scoreStyle(s.Value).Render(fmt.Sprintf("%5.1f", s.Value)),
			deltas(s.Delta7d, s.Delta30d, s.Delta90d),
		)
	}

	if len(a.Drivers) > 0 {
		fmt.Fprintln(w, Heading.Render("Drivers"))
		for _, id := range a.Drivers {
			fmt.Fprintf(w, "  %s\n", Muted.Render(id))
		}
	}
	fmt.Fprintln(w, Muted.Render("generated "+a.GeneratedAt.Format(time.RFC3339)))
}

func deltas(d7, d30, d90 float64) string {
	parts := []string{
		deltaStyle(d7).Render(fmt.Sprintf("7d %+.1f", d7)),
		deltaStyle(d30).Render(fmt.Sprintf("30d %+.1f", d30)),
		deltaStyle(d90).Render(fmt.Sprintf("90d %+.1f", d90)),
	}
	return strings.Join(parts, " ")
}

// Events writes one line per event, newest first as given.
func Events(w io.Writer, events []model.Event, now time.Time) {
	if len(events) == 0 {
		fmt.Fprintln(w, Muted.Render("no events"))
		return
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%s%s %s %s\n",
			KindBadge.Render(string(ev.Kind)),
			ev.Summary,
			Label.Render(fmt.Sprintf("[%s %.2f]", ev.ConfidenceLabel, ev.Confidence)),
			Muted.Render(Age(ev.Timestamp, now)+" · "+ev.ID),
		)
	}
}

// Age describes how long ago t was, in the coarsest useful unit.
func Age(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 0:
		return "upcoming"
	case d < time.Hour:
		return "just now"
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// Brief writes a brief with its three sections, markers and citations.
func Brief(w io.Writer, b model.Brief) {
	fmt.Fprintln(w, Title.Render(fmt.Sprintf("%s brief: %s", titleCase(string(b.Kind)), b.Target)))
	section(w, "What changed", b.WhatChanged)
	section(w, "Why it matters", b.WhyItMatters)
	section(w, "What to watch", b.WhatToWatch)

	if len(b.ConfidenceMarkers) > 0 {
		fmt.Fprintln(w, Heading.Render("Confidence"))
		keys := make([]string, 0, len(b.ConfidenceMarkers))
		for k := range b.ConfidenceMarkers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %s\n", Label.Render(k+":"), b.ConfidenceMarkers[k])
		}
	}

	if len(b.Citations) > 0 {
		fmt.Fprintln(w, Heading.Render("Sources"))
		for i, c := range b.Citations {
			fmt.Fprintf(w, "  [%d] %s %s %s\n", i+1, c.Title, Label.Render("("+c.SourceName+", tier "+string(c.Tier)+")"), Muted.Render(c.URL))
		}
	}
}

func section(w io.Writer, heading, text string) {
	fmt.Fprintln(w, Heading.Render(heading))
	fmt.Fprintln(w, Body.Render(text))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Correlations writes the events correlated with ref.
func Correlations(w io.Writer, ref model.Event, cs []model.Correlation) {
	fmt.Fprintln(w, Title.Render("Correlated with "+ref.ID))
	fmt.Fprintln(w, Body.Render(ref.Summary))
	if len(cs) == 0 {
		fmt.Fprintln(w, Muted.Render("no correlated events"))
		return
	}
	for _, c := range cs {
		fmt.Fprintf(w, "  %s %s\n", scoreStyle(c.Score*100).Render(fmt.Sprintf("%.2f", c.Score)), c.OtherID)
	}
}

// Patterns writes detected patterns and location relationships.
func Patterns(w io.Writer, ps []model.Pattern, rels []model.Relationship) {
	fmt.Fprintln(w, Title.Render("Patterns"))
	if len(ps) == 0 {
		fmt.Fprintln(w, Muted.Render("no patterns detected"))
	}
	for _, p := range ps {
		kinds := make([]string, len(p.Sequence))
		for i, k := range p.Sequence {
			kinds[i] = string(k)
		}
		fmt.Fprintf(w, "  %s %s: %s within %d days %s\n",
			unstable.Render(p.Type),
			p.Location,
			strings.Join(kinds, " → "),
			p.TimeframeDays,
			Muted.Render(strings.Join(p.EventIDs, ", ")),
		)
	}

	if len(rels) == 0 {
		return
	}
	fmt.Fprintln(w, Heading.Render("Related locations"))
	for _, r := range rels {
		kinds := make([]string, len(r.CommonKinds))
		for i, k := range r.CommonKinds {
			kinds[i] = string(k)
		}
		fmt.Fprintf(w, "  %s ↔ %s %s %s\n", r.LocationA, r.LocationB,
			Label.Render(fmt.Sprintf("%.2f", r.Strength)), Muted.Render(strings.Join(kinds, ", ")))
	}
}

// Run writes a one-run summary.
func Run(w io.Writer, res coord.RunResult) {
	fmt.Fprintln(w, Title.Render("Run complete"))
	fmt.Fprintf(w, "%s %d fetched, %d new, %d clusters, %d events in %s\n",
		Label.Render("Ingestion"), res.Fetched, res.NewItems, res.Clusters, len(res.Events),
		res.Duration.Round(time.Millisecond))

	for _, s := range res.Sources {
		if s.Err != nil {
			fmt.Fprintf(w, "  %s %s\n", ErrorStyle.Render("✗ "+s.Name), Muted.Render(s.Err.Error()))
			continue
		}
		fmt.Fprintf(w, "  %s %d items\n", stable.Render("✓ "+s.Name), s.Items)
	}

	if len(res.Assessments) > 0 {
		fmt.Fprintln(w, Heading.Render("Assessments"))
		rows := make([]string, 0, len(res.Assessments))
		for _, a := range res.Assessments {
			rows = append(rows, fmt.Sprintf("  %-22s %s  %s", a.Target,
				scoreStyle(a.Overall).Render(fmt.Sprintf("%5.1f", a.Overall)), deltaStyle(a.Delta7d).Render(fmt.Sprintf("7d %+.1f", a.Delta7d))))
		}
		fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, rows...))
	}
	if len(res.Patterns) > 0 {
		Patterns(w, res.Patterns, nil)
	}
}

// LogLine writes one run event line in the tail format.
func LogLine(w io.Writer, ev otel.Event) {
	line := otel.Format(ev)
	switch ev.Level {
	case otel.LevelError:
		line = ErrorStyle.Render(line)
	case otel.LevelWarn:
		line = watch.Render(line)
	}
	fmt.Fprintln(w, line)
}

// EventSummary writes per-kind event counts followed by the run's warnings
// and errors.
func EventSummary(w io.Writer, sum *otel.Summary) {
	counts := sum.Counts()
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w, Heading.Render("Run events"))
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-20s %d\n", k, counts[otel.EventKind(k)])
	}

	problems, omitted := sum.Problems()
	if omitted > 0 {
		fmt.Fprintln(w, Muted.Render(fmt.Sprintf("  %d earlier warnings not shown", omitted)))
	}
	for _, ev := range problems {
		LogLine(w, ev)
	}
}
