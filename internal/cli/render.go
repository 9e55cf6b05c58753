package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/valter-silva-au/blockplan/internal/core"
	"github.com/valter-silva-au/blockplan/pkg/models"
)

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	dayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	fixedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	managedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	keptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	problemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const clockFormat = "15:04"

func styleForEvent(e models.Event) lipgloss.Style {
	if e.Type == models.EventFixed {
		return fixedStyle
	}
	return managedStyle
}

func eventLine(e models.Event, style lipgloss.Style) string {
	label := fmt.Sprintf("  %s-%s  %-8s %s", e.Start.Format(clockFormat), e.End.Format(clockFormat), e.Type, e.Title)
	return style.Render(label)
}

// dayKey truncates t to its calendar day in t's location.
func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// agendaDays groups events by the day they start on, ordered by start.
func agendaDays(events []models.Event) ([]time.Time, map[time.Time][]models.Event) {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	byDay := make(map[time.Time][]models.Event)
	var days []time.Time
	for _, e := range sorted {
		k := dayKey(e.Start)
		if _, ok := byDay[k]; !ok {
			days = append(days, k)
		}
		byDay[k] = append(byDay[k], e)
	}
	return days, byDay
}

func renderDay(day time.Time, events []models.Event) string {
	var b strings.Builder
	b.WriteString(dayStyle.Render(day.Format("Mon 2006-01-02")))
	b.WriteString("\n")
	for _, e := range events {
		b.WriteString(eventLine(e, styleForEvent(e)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderAgenda writes every event grouped by day.
func renderAgenda(w io.Writer, events []models.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	days, byDay := agendaDays(events)
	for i, d := range days {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprint(w, renderDay(d, byDay[d]))
	}
}

// renderPass writes a summary of a scheduling pass.
func renderPass(w io.Writer, result *core.PassResult) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf(" %s pass %s ", result.Mode, shortID(result.PassID))))
	fmt.Fprintf(w, "strategy: %s  placed: %d  kept: %d  rejected: %d\n\n",
		result.Strategy, len(result.Events), len(result.Kept), len(result.Rejected))

	if len(result.Events) > 0 {
		days, byDay := agendaDays(result.Events)
		for _, d := range days {
			fmt.Fprint(w, renderDay(d, byDay[d]))
		}
	}
	for _, e := range result.Kept {
		fmt.Fprintln(w, eventLine(e, keptStyle)+helpStyle.Render("  (kept)"))
	}
	renderRejected(w, result.Rejected)
}

func renderRejected(w io.Writer, rejected map[string][]string) {
	if len(rejected) == 0 {
		return
	}
	ids := make([]string, 0, len(rejected))
	for id := range rejected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(w)
	for _, id := range ids {
		fmt.Fprintln(w, problemStyle.Render("rejected "+id))
		for _, p := range rejected[id] {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
