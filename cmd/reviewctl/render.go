package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/garyjia/discussion-review/internal/application/service"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/report"
)

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	return tw
}

func renderReconcile(w io.Writer, r *service.ReconcileResult) {
	mode := "applied"
	if r.DryRun {
		mode = "dry run, nothing written"
	}
	fmt.Fprintf(w, "Reconciled %d discussions in %s (%s)\n", r.Discussions, r.Duration, mode)

	if len(r.Updates) > 0 {
		tw := newTable(w)
		tw.SetTitle("Status updates")
		tw.AppendHeader(table.Row{"Discussion", "Task", "From", "To", "Reason"})
		for _, u := range r.Updates {
			tw.AppendRow(table.Row{u.DiscussionID, u.TaskID, u.From, u.To, u.Reason})
		}
		tw.Render()
	}

	if len(r.CountRepairs) > 0 {
		tw := newTable(w)
		tw.SetTitle("Annotator count repairs")
		tw.AppendHeader(table.Row{"Discussion", "Task", "Stored", "Actual"})
		for _, c := range r.CountRepairs {
			tw.AppendRow(table.Row{c.DiscussionID, c.TaskID, c.From, c.To})
		}
		tw.Render()
	}

	if len(r.PreservedRework) > 0 {
		tw := newTable(w)
		tw.SetTitle("Preserved rework flags")
		tw.AppendHeader(table.Row{"Discussion", "Task", "Status", "Scenario"})
		for _, p := range r.PreservedRework {
			tw.AppendRow(table.Row{p.DiscussionID, p.TaskID, p.Status, p.Scenario})
		}
		tw.Render()
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s: %s\n", e.DiscussionID, e.Error)
	}
}

func renderBottlenecks(w io.Writer, r *report.BottleneckReport) {
	fmt.Fprintf(w, "%d discussions, %d stuck\n", r.TotalDiscussions, len(r.StuckDiscussions))

	tw := newTable(w)
	tw.SetTitle("Slots by category")
	tw.AppendHeader(table.Row{"Category", "Total", "Task 1", "Task 2", "Task 3"})
	for _, c := range report.Categories() {
		tw.AppendRow(table.Row{c, r.CategoryCounts[c], r.TaskCounts[1][c], r.TaskCounts[2][c], r.TaskCounts[3][c]})
	}
	tw.Render()

	if len(r.StuckDiscussions) > 0 {
		tw = newTable(w)
		tw.SetTitle("Stuck discussions")
		tw.AppendHeader(table.Row{"Discussion", "Task", "Status", "Category", "Annotators"})
		for _, d := range r.StuckDiscussions {
			for _, s := range d.Tasks {
				tw.AppendRow(table.Row{d.DiscussionID, s.TaskID, s.Status, s.Category, fmt.Sprintf("%d/%d", s.AnnotatorCount, s.Required)})
			}
		}
		tw.Render()
	}

	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(rec.Priority), rec.Action)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", msg)
	}
}

func renderTaskStatus(w io.Writer, r *report.TaskStatusReport) {
	fmt.Fprintf(w, "%s task %d: %s (%d/%d annotations)\n", r.DiscussionID, r.TaskID, r.Status, r.AnnotationsCount, r.Required)
	fmt.Fprintf(w, "Next: %s\n", r.RecommendedAction)

	if r.ReworkFlag != nil {
		fmt.Fprintf(w, "Flagged by %s: %s\n", r.ReworkFlag.FlaggedBy, r.ReworkFlag.Reason)
	}
	if r.Quality != nil {
		if r.Quality.Passed {
			fmt.Fprintln(w, "Quality gate: passed")
		} else {
			fmt.Fprintf(w, "Quality gate: failed (%s)\n", strings.Join(r.Quality.Failed, ", "))
		}
	}

	if a := r.AgreementAnalysis; a != nil && len(a.Fields) > 0 {
		tw := newTable(w)
		tw.SetTitle(fmt.Sprintf("Agreement %.1f%%", a.OverallRate))
		tw.AppendHeader(table.Row{"Field", "Consensus", "Agreed", "Rate"})
		for _, f := range a.Fields {
			tw.AppendRow(table.Row{f.Field, fmt.Sprint(f.ConsensusValue), fmt.Sprintf("%d/%d", f.Agreed, f.Total), fmt.Sprintf("%.1f%%", f.Rate)})
		}
		tw.Render()
	}

	for _, msg := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", msg)
	}
}

func renderUsers(w io.Writer, users []*entity.AuthorizedUser) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Email", "Role"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.Email, u.Role})
	}
	tw.Render()
}
