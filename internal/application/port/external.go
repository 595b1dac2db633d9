package port

import (
	"context"
	"io"

	"github.com/garyjia/discussion-review/internal/domain/report"
)

// NotificationSender delivers workflow notices to people (chat, mail).
// Sends happen after commit and never inside a transaction.
type NotificationSender interface {
	SendText(ctx context.Context, text string) error
	SendCard(ctx context.Context, title string, lines []string) error
}

// ReportExporter renders reports into a spreadsheet document
type ReportExporter interface {
	WriteBottleneckReport(w io.Writer, r *report.BottleneckReport) error
}
