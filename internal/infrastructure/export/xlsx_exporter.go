package export

import (
	"fmt"
	"io"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/report"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet names of the bottleneck workbook
const (
	SheetSummary = "Summary"
	SheetStuck   = "Stuck"
	SheetSlots   = "Slots"
)

// XLSXExporter renders the bottleneck report as an Excel workbook
type XLSXExporter struct {
	logger *zap.Logger
}

var _ port.ReportExporter = (*XLSXExporter)(nil)

// NewXLSXExporter creates a new workbook exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// WriteBottleneckReport writes a three-sheet workbook to w
func (e *XLSXExporter) WriteBottleneckReport(w io.Writer, r *report.BottleneckReport) error {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetStuck, SheetSlots} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.fillSummary(f, header, r); err != nil {
		return err
	}
	if err := e.fillStuck(f, header, r); err != nil {
		return err
	}
	if err := e.fillSlots(f, header, r); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Bottleneck workbook written",
		zap.Int("discussions", r.TotalDiscussions),
		zap.Int("stuck", len(r.StuckDiscussions)),
		zap.Int("slots", len(r.Slots)))
	return nil
}

func (e *XLSXExporter) fillSummary(f *excelize.File, header int, r *report.BottleneckReport) error {
	rows := [][]interface{}{
		{"Generated at", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Total discussions", r.TotalDiscussions},
		{"Stuck discussions", len(r.StuckDiscussions)},
		{},
		{"Category", "Slots", "Task 1", "Task 2", "Task 3"},
	}
	headerRow := len(rows)
	for _, c := range report.Categories() {
		rows = append(rows, []interface{}{
			string(c),
			r.CategoryCounts[c],
			r.TaskCounts[1][c],
			r.TaskCounts[2][c],
			r.TaskCounts[3][c],
		})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Priority", "Category", "Count", "Action"})
	recHeaderRow := len(rows)
	for _, rec := range r.Recommendations {
		rows = append(rows, []interface{}{rec.Priority, string(rec.Category), rec.Count, rec.Action})
	}

	if len(r.Errors) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"Errors"})
		for _, msg := range r.Errors {
			rows = append(rows, []interface{}{msg})
		}
	}

	if err := writeRows(f, SheetSummary, rows); err != nil {
		return err
	}
	for _, row := range []int{headerRow, recHeaderRow} {
		if err := styleRow(f, SheetSummary, row, 5, header); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetSummary, "A", "A", 28)
}

func (e *XLSXExporter) fillStuck(f *excelize.File, header int, r *report.BottleneckReport) error {
	rows := [][]interface{}{{"Discussion", "Title", "Task", "Status", "Category", "Annotators", "Required", "Flag reason"}}
	for _, d := range r.StuckDiscussions {
		for _, s := range d.Tasks {
			rows = append(rows, slotRow(s))
		}
	}
	if err := writeRows(f, SheetStuck, rows); err != nil {
		return err
	}
	return styleRow(f, SheetStuck, 1, len(rows[0]), header)
}

func (e *XLSXExporter) fillSlots(f *excelize.File, header int, r *report.BottleneckReport) error {
	rows := [][]interface{}{{"Discussion", "Title", "Task", "Status", "Category", "Annotators", "Required", "Flag reason"}}
	for _, s := range r.Slots {
		rows = append(rows, slotRow(s))
	}
	if err := writeRows(f, SheetSlots, rows); err != nil {
		return err
	}
	return styleRow(f, SheetSlots, 1, len(rows[0]), header)
}

func slotRow(s report.SlotView) []interface{} {
	return []interface{}{
		s.DiscussionID,
		s.Title,
		s.TaskID,
		s.Status.String(),
		string(s.Category),
		s.AnnotatorCount,
		s.Required,
		s.FlagReason,
	}
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func styleRow(f *excelize.File, sheet string, row, cols, style int) error {
	from, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}
