package render

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/legaldb/caseanalyzer/internal/adapters/draftstore"
	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/extract"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

// maxCellWidth wraps long edited values.
const maxCellWidth = 72

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

// Definitions prints the static step list.
func Definitions(w io.Writer) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"#", "Step", "Label", "Phase"})
	for i, d := range steps.Definitions() {
		tw.AppendRow(table.Row{i + 1, d.Name, d.Label, d.Phase})
	}
	tw.Render()
}

// Steps prints the live status of every step.
func Steps(w io.Writer, list []core.Step, color bool) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"", "Step", "Status", "Confidence", "Detail"})
	for _, s := range list {
		detail := ""
		switch {
		case s.Error != nil:
			detail = *s.Error
		case s.Reasoning != nil:
			detail = *s.Reasoning
		}
		tw.AppendRow(table.Row{
			StatusIcon(s.Status, color),
			s.Label,
			s.Status,
			Confidence(s.Confidence, color),
			detail,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: maxCellWidth, WidthMaxEnforcer: text.WrapSoft},
	})
	tw.AppendFooter(table.Row{"", "", "", "", summary(list)})
	tw.Render()
}

func summary(list []core.Step) string {
	counts := make(map[core.StepStatus]int)
	for _, s := range list {
		counts[s.Status]++
	}
	return fmt.Sprintf("%d/%d completed, %d failed",
		counts[core.StepCompleted], len(list), counts[core.StepError])
}

// Edited prints the editable form fields.
func Edited(w io.Writer, values core.EditedAnalysisValues) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, f := range extract.Fields {
		v := values.Get(f.Name)
		if v == "" {
			v = "-"
		}
		tw.AppendRow(table.Row{f.BackendKey, v})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxCellWidth, WidthMaxEnforcer: text.WrapSoft},
	})
	tw.Render()
}

// Drafts prints cached drafts, newest first.
func Drafts(w io.Writer, entries []*draftstore.Entry) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Draft", "Jurisdiction", "Results", "Updated", "Correlation"})
	for _, e := range entries {
		jurisdiction := e.Jurisdiction
		if jurisdiction == "" {
			jurisdiction = "-"
		}
		tw.AppendRow(table.Row{
			e.DraftID,
			jurisdiction,
			e.ResultCount,
			e.UpdatedAt.Local().Format(time.DateTime),
			e.CorrelationID,
		})
	}
	tw.Render()
}
