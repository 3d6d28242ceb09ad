package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"offersync/internal/config"
)

// Render writes s to w in the given format (table, json or yaml).
func Render(w io.Writer, format string, s Summary) error {
	switch format {
	case config.ReportFormatJSON:
		return writeJSON(w, s)
	case config.ReportFormatYAML:
		return writeYAML(w, s)
	case config.ReportFormatTable, "":
		renderSummaryTable(w, s)
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// RenderPlan writes p to w in the given format.
func RenderPlan(w io.Writer, format string, p PlanSummary) error {
	switch format {
	case config.ReportFormatJSON:
		return writeJSON(w, p)
	case config.ReportFormatYAML:
		return writeYAML(w, p)
	case config.ReportFormatTable, "":
		renderPlanTable(w, p)
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// createTable creates a new table with standard styling
func createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = text.FgHiCyan.Sprint(c)
	}
	return row
}

func renderSummaryTable(w io.Writer, s Summary) {
	if len(s.Rows) == 0 {
		fmt.Fprintf(w, "%s\n", text.FgYellow.Sprint("No resources to reconcile"))
		return
	}

	t := createTable(w)
	t.AppendHeader(header("RESOURCE", "STATUS", "REQUESTED", "REMOVED", "ADDED", "SKIPPED", "FAILED", "CALLS", "DETAILS"))
	for _, r := range s.Rows {
		t.AppendRow(table.Row{
			resourceLabel(r.RemoteID, r.DisplayName),
			statusLabel(r.Success),
			r.Requested,
			r.Removed,
			r.Added,
			r.Skipped + r.Malformed,
			r.Failed,
			r.Calls,
			details(r),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d resources", s.Resources),
		fmt.Sprintf("%d ok / %d not", s.Succeeded, s.Unfinished),
		s.Requested, s.Removed, s.Added, s.Skipped + s.Malformed, s.Failed, "", "",
	})
	t.Render()

	if s.RunID != "" {
		fmt.Fprintf(w, "%s %s\n", text.FgHiBlue.Sprint("Run:"), s.RunID)
	}
	if a := s.Activity; a != nil {
		fmt.Fprintf(w, "%s %d calls, %d retries, %s lock wait, %.0f%% failure rate\n",
			text.FgHiBlue.Sprint("Activity:"), a.Calls, a.Retries, a.LockWait.Round(time.Millisecond), a.FailureRate*100)
	}
}

func details(r ResourceSummary) string {
	var parts []string
	if r.Error != "" {
		parts = append(parts, text.FgRed.Sprint(r.Error))
	}
	if len(r.FailedSample) > 0 {
		parts = append(parts, "failed: "+strings.Join(r.FailedSample, ", "))
	}
	if len(r.SkippedSample) > 0 {
		parts = append(parts, "skipped: "+strings.Join(r.SkippedSample, ", "))
	}
	return strings.Join(parts, "\n")
}

func renderPlanTable(w io.Writer, p PlanSummary) {
	if len(p.Rows) == 0 {
		fmt.Fprintf(w, "%s\n", text.FgYellow.Sprint("No resources to reconcile"))
		return
	}

	t := createTable(w)
	t.AppendHeader(header("RESOURCE", "DESIRED", "REMOTE", "TO REMOVE", "TO ADD", "MALFORMED", "DETAILS"))
	for _, r := range p.Rows {
		var parts []string
		if r.Error != "" {
			parts = append(parts, text.FgRed.Sprint(r.Error))
		}
		if len(r.ToRemoveSample) > 0 {
			parts = append(parts, "remove: "+strings.Join(r.ToRemoveSample, ", "))
		}
		if len(r.ToAddSample) > 0 {
			parts = append(parts, "add: "+strings.Join(r.ToAddSample, ", "))
		}
		t.AppendRow(table.Row{
			resourceLabel(r.RemoteID, r.DisplayName),
			r.DesiredCount,
			r.RemoteCount,
			r.ToRemove,
			r.ToAdd,
			r.Malformed,
			strings.Join(parts, "\n"),
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d resources", p.Resources), "", "", p.ToRemove, p.ToAdd, p.Malformed, ""})
	t.Render()
}

func resourceLabel(remoteID, displayName string) string {
	if displayName == "" {
		return remoteID
	}
	return remoteID + "\n" + text.FgHiBlack.Sprint(displayName)
}

func statusLabel(ok bool) string {
	if ok {
		return text.FgGreen.Sprint("synced")
	}
	return text.FgRed.Sprint("incomplete")
}
