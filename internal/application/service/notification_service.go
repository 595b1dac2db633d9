package service

import (
	"context"
	"fmt"

	"github.com/garyjia/discussion-review/internal/application/dispatcher"
	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/event"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// NotificationService turns committed workflow events into notices for reviewers
type NotificationService interface {
	// Register subscribes the notifier to the events it reports on
	Register(d dispatcher.Dispatcher)

	NotifyStatusChange(ctx context.Context, evt *event.Event) error
	NotifyRework(ctx context.Context, evt *event.Event) error
	NotifyRetroactiveCorrection(ctx context.Context, evt *event.Event) error
	NotifyReconcile(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	sender port.NotificationSender
	logger Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(sender port.NotificationSender, logger Logger) NotificationService {
	return &notificationServiceImpl{
		sender: sender,
		logger: logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeTaskStatusChanged, "notifier.status", s.NotifyStatusChange)
	d.SubscribeNamed(event.TypeReworkFlagged, "notifier.rework", s.NotifyRework)
	d.SubscribeNamed(event.TypeRetroactiveCorrection, "notifier.retroactive", s.NotifyRetroactiveCorrection)
	d.SubscribeNamed(event.TypeReconcileCompleted, "notifier.reconcile", s.NotifyReconcile)
}

// NotifyStatusChange reports transitions reviewers have to act on.
// Routine moves (unlocks, quorum reached) stay silent.
func (s *notificationServiceImpl) NotifyStatusChange(ctx context.Context, evt *event.Event) error {
	to := domainwf.State(evt.GetPayloadString("new_status"))
	if to != domainwf.StateQualityFailed && to != domainwf.StateCompleted && to != domainwf.StateBlocked {
		return nil
	}

	title := fmt.Sprintf("Task %d of %s is now %s", evt.TaskID, evt.DiscussionID, to)
	lines := []string{
		fmt.Sprintf("Previous status: %s", evt.GetPayloadString("previous_status")),
	}
	if reason := evt.GetPayloadString("reason"); reason != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", reason))
	}
	if evt.Actor != "" {
		lines = append(lines, fmt.Sprintf("By: %s", evt.Actor))
	}
	return s.sendCard(ctx, evt, title, lines)
}

// NotifyRework announces a rework or plain flag
func (s *notificationServiceImpl) NotifyRework(ctx context.Context, evt *event.Event) error {
	title := fmt.Sprintf("Task %d of %s flagged", evt.TaskID, evt.DiscussionID)
	lines := []string{
		fmt.Sprintf("Status: %s", evt.GetPayloadString("status")),
		fmt.Sprintf("Reason: %s", evt.GetPayloadString("reason")),
	}
	if scenario := evt.GetPayloadString("workflow_scenario"); scenario != "" {
		lines = append(lines, fmt.Sprintf("Scenario: %s", scenario))
	}
	if evt.Actor != "" {
		lines = append(lines, fmt.Sprintf("Flagged by: %s", evt.Actor))
	}
	return s.sendCard(ctx, evt, title, lines)
}

// NotifyRetroactiveCorrection tells reviewers that a task 3 answer rewrote the task 2 consensus
func (s *notificationServiceImpl) NotifyRetroactiveCorrection(ctx context.Context, evt *event.Event) error {
	outcome := "still passes"
	if !evt.GetPayloadBool("task2_passed") {
		outcome = "now fails the quality gate"
	}
	text := fmt.Sprintf(
		"Task 2 consensus of %s was corrected from task 3 (explanation set to false) and %s. Task 2 status: %s.",
		evt.DiscussionID, outcome, evt.GetPayloadString("task2_status"),
	)
	return s.sendText(ctx, evt, text)
}

// NotifyReconcile summarizes a reconciliation run that changed something or hit errors
func (s *notificationServiceImpl) NotifyReconcile(ctx context.Context, evt *event.Event) error {
	updates := evt.GetPayloadInt("updates")
	errs := evt.GetPayloadInt("errors")
	if updates == 0 && errs == 0 {
		return nil
	}

	lines := []string{
		fmt.Sprintf("Discussions scanned: %d", evt.GetPayloadInt("discussions")),
		fmt.Sprintf("Status updates: %d", updates),
		fmt.Sprintf("Preserved rework flags: %d", evt.GetPayloadInt("preserved")),
		fmt.Sprintf("Errors: %d", errs),
	}
	return s.sendCard(ctx, evt, "Status reconciliation finished", lines)
}

func (s *notificationServiceImpl) sendCard(ctx context.Context, evt *event.Event, title string, lines []string) error {
	if err := s.sender.SendCard(ctx, title, lines); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "event_type", evt.Type, "event_id", evt.ID)
		return fmt.Errorf("send card: %w", err)
	}
	s.logger.Info("Notification sent", "event_type", evt.Type, "discussion_id", evt.DiscussionID, "task_id", evt.TaskID)
	return nil
}

func (s *notificationServiceImpl) sendText(ctx context.Context, evt *event.Event, text string) error {
	if err := s.sender.SendText(ctx, text); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "event_type", evt.Type, "event_id", evt.ID)
		return fmt.Errorf("send text: %w", err)
	}
	s.logger.Info("Notification sent", "event_type", evt.Type, "discussion_id", evt.DiscussionID)
	return nil
}
