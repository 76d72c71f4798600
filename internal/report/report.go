// Package report renders audit reports, run summaries and the source list
// for the terminal, and the audit report as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/amishk599/jobintake/internal/discovery"
	"github.com/amishk599/jobintake/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	newStyle = cellStyle.
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// Audit writes the audit report as a table of senders followed by the
// creations a run would apply.
func Audit(w io.Writer, rep discovery.Report) error {
	rows := make([][]string, len(rep.Rows))
	for i, r := range rep.Rows {
		rows[i] = []string{r.SenderIdentity, string(r.SourceName), yesNo(r.EnabledForCreation), strconv.Itoa(r.ObservedCount), yesNo(r.New)}
	}
	t := newTable("SENDER", "SOURCE", "CREATION", "ITEMS", "NEW").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if rep.Rows[row].New {
				return newStyle
			}
			return cellStyle
		})

	fmt.Fprintln(w, titleStyle.Render("Sender audit"))
	if len(rep.Rows) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  no inbound items"))
	} else {
		fmt.Fprintln(w, t)
	}
	fmt.Fprintf(w, "%d source attribution(s) to create, %d item(s) archivable, %d item(s) pending\n",
		len(rep.Creations), rep.ItemsArchivable, rep.ItemsPending)
	return nil
}

// AuditJSON writes rep as indented JSON. Empty lists are written as [].
func AuditJSON(w io.Writer, rep discovery.Report) error {
	if rep.Rows == nil {
		rep.Rows = []discovery.Row{}
	}
	if rep.Creations == nil {
		rep.Creations = []discovery.Creation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode audit report: %w", err)
	}
	return nil
}

// Sources writes the registry as a table, one line per source.
func Sources(w io.Writer, sources []model.Source) error {
	rows := make([][]string, len(sources))
	for i, s := range sources {
		rows[i] = []string{
			string(s.Name),
			yesNo(s.Capabilities.Creation),
			yesNo(s.Capabilities.Enrichment),
			yesNo(s.Capabilities.Analysis),
			strconv.Itoa(len(s.SenderIdentities)),
			s.OfficialURL,
		}
	}
	t := newTable("SOURCE", "CREATION", "ENRICHMENT", "ANALYSIS", "SENDERS", "URL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t)
	return nil
}

// Summary writes a run summary: counters, transitions, corrections and
// the message list.
func Summary(w io.Writer, s model.RunSummary) error {
	title := fmt.Sprintf("%s run %s", s.Kind, s.RunID)
	if s.Aborted != "" {
		title += " (aborted)"
	}
	fmt.Fprintln(w, titleStyle.Render(title))

	counters := [][]string{
		{"sources created", strconv.Itoa(s.SourcesCreated)},
		{"corrections", strconv.Itoa(len(s.Corrections))},
		{"processed", strconv.Itoa(s.Processed)},
		{"archived", strconv.Itoa(s.Archived)},
		{"samples", strconv.Itoa(s.Samples)},
		{"offers created", strconv.Itoa(s.OffersCreated)},
		{"offers already present", strconv.Itoa(s.OffersAlreadyPresent)},
		{"failed", strconv.Itoa(s.Failed)},
	}
	statuses := make([]string, 0, len(s.Transitions))
	for st := range s.Transitions {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		counters = append(counters, []string{"→ " + st, strconv.Itoa(s.Transitions[model.Status(st)])})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Rows(counters...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return dimStyle.Padding(0, 1)
			}
			return cellStyle
		})
	fmt.Fprintln(w, t)

	for _, c := range s.Corrections {
		fmt.Fprintf(w, "corrected %s: %s → %s\n", c.SenderIdentity, c.PreviousName, c.NewName)
	}
	if s.Aborted != "" {
		fmt.Fprintf(w, "aborted: %s\n", s.Aborted)
	}
	for _, m := range s.Messages {
		fmt.Fprintf(w, "- %s\n", m)
	}
	fmt.Fprintf(w, "took %s\n", s.Duration().Round(time.Millisecond))
	return nil
}
