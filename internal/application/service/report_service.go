package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/agreement"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/quality"
	"github.com/garyjia/discussion-review/internal/domain/report"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// ReportService builds the read-only reports. Reads never write, and read failures
// below the top level degrade into the report's errors list.
type ReportService interface {
	GetTaskStatusReport(ctx context.Context, discussionID string, taskID int) (*report.TaskStatusReport, error)
	GetBottleneckReport(ctx context.Context) (*report.BottleneckReport, error)
	EvaluateQuality(taskID int, data map[string]interface{}) (*quality.Outcome, error)
	GetStatusHistory(ctx context.Context, discussionID string, taskID int) ([]*entity.StatusHistory, error)

	// ExportBottleneckReport writes the report as a spreadsheet to w
	ExportBottleneckReport(ctx context.Context, w io.Writer) (*report.BottleneckReport, error)
	// SaveBottleneckExport stores the spreadsheet and returns its full path
	SaveBottleneckExport(ctx context.Context) (string, error)
}

type reportServiceImpl struct {
	discussionRepo port.DiscussionRepository
	slotRepo       port.TaskSlotRepository
	annotationRepo port.AnnotationRepository
	consensusRepo  port.ConsensusRepository
	historyRepo    port.HistoryRepository
	exporter       port.ReportExporter
	storage        port.FileStorage
	logger         Logger
	now            func() time.Time
}

// NewReportService creates a new ReportService.
// exporter and storage may be nil when spreadsheet export is not configured.
func NewReportService(
	discussionRepo port.DiscussionRepository,
	slotRepo port.TaskSlotRepository,
	annotationRepo port.AnnotationRepository,
	consensusRepo port.ConsensusRepository,
	historyRepo port.HistoryRepository,
	exporter port.ReportExporter,
	storage port.FileStorage,
	logger Logger,
) ReportService {
	return &reportServiceImpl{
		discussionRepo: discussionRepo,
		slotRepo:       slotRepo,
		annotationRepo: annotationRepo,
		consensusRepo:  consensusRepo,
		historyRepo:    historyRepo,
		exporter:       exporter,
		storage:        storage,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *reportServiceImpl) GetTaskStatusReport(ctx context.Context, discussionID string, taskID int) (*report.TaskStatusReport, error) {
	const op = "report.task_status"
	if !domainwf.ValidTask(taskID) {
		return nil, apperr.Validation(op, "task id must be 1, 2 or 3, got %d", taskID)
	}
	var errs []string
	if _, err := s.discussionRepo.GetByID(ctx, discussionID); err != nil {
		if !degradable(err) {
			return nil, err
		}
		s.logger.Error("Failed to load discussion for report", "discussion_id", discussionID, "error", err)
		errs = append(errs, fmt.Sprintf("discussion: %v", err))
	}

	slot, err := s.slotRepo.Get(ctx, discussionID, taskID)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		s.logger.Error("Failed to load task slot for report", "discussion_id", discussionID, "task_id", taskID, "error", err)
		errs = append(errs, fmt.Sprintf("task slot: %v", err))
		// status stays unknown
		slot = &entity.TaskSlot{DiscussionID: discussionID, TaskID: taskID}
	}

	r := &report.TaskStatusReport{
		DiscussionID:     discussionID,
		TaskID:           taskID,
		Status:           slot.Status,
		AnnotationsCount: slot.AnnotatorCount,
		Required:         slot.Required(),
		ReworkFlag:       slot.ReworkFlag,
		Errors:           errs,
	}

	annotations, err := s.annotationRepo.ListByTask(ctx, discussionID, taskID)
	if err != nil {
		s.logger.Error("Failed to load annotations for report", "discussion_id", discussionID, "task_id", taskID, "error", err)
		r.Errors = append(r.Errors, fmt.Sprintf("annotations: %v", err))
	} else {
		r.AnnotationsCount = len(annotations)
		if len(annotations) > 0 {
			analysis := agreement.AnalyzeAnnotations(annotations)
			r.AgreementAnalysis = &analysis
		}
	}

	c, err := s.consensusRepo.Get(ctx, discussionID, taskID)
	if err != nil {
		s.logger.Error("Failed to load consensus for report", "discussion_id", discussionID, "task_id", taskID, "error", err)
		r.Errors = append(r.Errors, fmt.Sprintf("consensus: %v", err))
	} else if c != nil {
		outcome := quality.Evaluate(c.Data)
		r.Quality = &outcome
	}

	r.RecommendedAction = report.RecommendAction(slot, r.AnnotationsCount)
	return r, nil
}

func (s *reportServiceImpl) GetBottleneckReport(ctx context.Context) (*report.BottleneckReport, error) {
	var errs []string
	discussions, err := s.discussionRepo.List(ctx)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		s.logger.Error("Failed to list discussions for report", "error", err)
		errs = append(errs, fmt.Sprintf("discussions: %v", err))
	}

	groups := make([]report.DiscussionSlots, 0, len(discussions))
	for _, d := range discussions {
		slots, err := s.slotRepo.ListByDiscussion(ctx, d.ID)
		if err != nil {
			s.logger.Error("Failed to load task slots for report", "discussion_id", d.ID, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", d.ID, err))
			continue
		}

		group := report.DiscussionSlots{DiscussionID: d.ID, Title: d.Title}
		for _, slot := range slots {
			view := report.SlotView{
				DiscussionID:   d.ID,
				TaskID:         slot.TaskID,
				Status:         slot.Status,
				AnnotatorCount: slot.AnnotatorCount,
				Required:       slot.Required(),
				Flagged:        slot.ReworkFlag != nil,
			}
			if slot.ReworkFlag != nil {
				view.FlagReason = slot.ReworkFlag.Reason
			}
			group.Slots = append(group.Slots, view)
		}
		groups = append(groups, group)
	}

	r := report.BuildBottleneckReport(groups, s.now())
	r.TotalDiscussions = len(discussions)
	r.Errors = errs
	return r, nil
}

// degradable reports whether a read failure should be recorded in the report instead of returned
func degradable(err error) bool {
	return !apperr.Is(err, apperr.KindNotFound) && !apperr.Is(err, apperr.KindValidation)
}

func (s *reportServiceImpl) EvaluateQuality(taskID int, raw map[string]interface{}) (*quality.Outcome, error) {
	if !domainwf.ValidTask(taskID) {
		return nil, apperr.Validation("quality.evaluate", "task id must be 1, 2 or 3, got %d", taskID)
	}
	data, err := entity.DecodeTaskData(taskID, raw)
	if err != nil {
		return nil, err
	}
	outcome := quality.Evaluate(data)
	return &outcome, nil
}

func (s *reportServiceImpl) GetStatusHistory(ctx context.Context, discussionID string, taskID int) ([]*entity.StatusHistory, error) {
	return s.historyRepo.ListByTask(ctx, discussionID, taskID)
}

func (s *reportServiceImpl) ExportBottleneckReport(ctx context.Context, w io.Writer) (*report.BottleneckReport, error) {
	if s.exporter == nil {
		return nil, apperr.Conflict("report.export", "spreadsheet export is not configured")
	}
	r, err := s.GetBottleneckReport(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.exporter.WriteBottleneckReport(w, r); err != nil {
		return nil, fmt.Errorf("failed to write bottleneck spreadsheet: %w", err)
	}
	return r, nil
}

func (s *reportServiceImpl) SaveBottleneckExport(ctx context.Context) (string, error) {
	if s.storage == nil {
		return "", apperr.Conflict("report.export", "export storage is not configured")
	}

	var buf bytes.Buffer
	r, err := s.ExportBottleneckReport(ctx, &buf)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("bottlenecks_%s.xlsx", r.GeneratedAt.Format("20060102_150405"))
	if err := s.storage.Save(ctx, name, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	path := s.storage.GetFullPath(name)
	s.logger.Info("Bottleneck report exported", "path", path, "stuck", len(r.StuckDiscussions))
	return path, nil
}
