package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/discussion-review/internal/application/dispatcher"
	"github.com/garyjia/discussion-review/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_NotifyStatusChange(t *testing.T) {
	tests := []struct {
		name      string
		newStatus string
		wantCards int
	}{
		{name: "quality failed", newStatus: "quality_failed", wantCards: 1},
		{name: "completed", newStatus: "completed", wantCards: 1},
		{name: "blocked", newStatus: "blocked", wantCards: 1},
		{name: "unlock is silent", newStatus: "unlocked", wantCards: 0},
		{name: "quorum is silent", newStatus: "ready_for_consensus", wantCards: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{}
			svc := NewNotificationService(sender, &mockLogger{})

			evt := event.NewEvent(event.TypeTaskStatusChanged, "octo_widgets_1", 2, map[string]interface{}{
				"previous_status": "consensus_created",
				"new_status":      tt.newStatus,
				"reason":          "consensus failed quality gate",
			}).WithActor("lead@example.com")

			require.NoError(t, svc.NotifyStatusChange(context.Background(), evt))
			require.Len(t, sender.cards, tt.wantCards)
			if tt.wantCards > 0 {
				assert.Equal(t, "Task 2 of octo_widgets_1 is now "+tt.newStatus, sender.cards[0].title)
				assert.Contains(t, sender.cards[0].lines, "By: lead@example.com")
			}
		})
	}
}

func TestNotificationService_NotifyRework(t *testing.T) {
	sender := &mockSender{}
	svc := NewNotificationService(sender, &mockLogger{})

	evt := event.NewEvent(event.TypeReworkFlagged, "octo_widgets_1", 2, map[string]interface{}{
		"reason":            "wrong answer picked",
		"workflow_scenario": "stop_at_task2",
		"status":            "rework",
	})
	require.NoError(t, svc.NotifyRework(context.Background(), evt))

	require.Len(t, sender.cards, 1)
	assert.Contains(t, sender.cards[0].lines, "Scenario: stop_at_task2")
	assert.Contains(t, sender.cards[0].lines, "Reason: wrong answer picked")
}

func TestNotificationService_NotifyRetroactiveCorrection(t *testing.T) {
	sender := &mockSender{}
	svc := NewNotificationService(sender, &mockLogger{})

	evt := event.NewEvent(event.TypeRetroactiveCorrection, "octo_widgets_1", 2, map[string]interface{}{
		"original_explanation": true,
		"task2_passed":         false,
		"task2_status":         "quality_failed",
	})
	require.NoError(t, svc.NotifyRetroactiveCorrection(context.Background(), evt))

	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "now fails the quality gate")
	assert.Contains(t, sender.texts[0], "quality_failed")
}

func TestNotificationService_NotifyReconcile(t *testing.T) {
	sender := &mockSender{}
	svc := NewNotificationService(sender, &mockLogger{})
	ctx := context.Background()

	quiet := event.NewEvent(event.TypeReconcileCompleted, "", 0, map[string]interface{}{"discussions": 4, "updates": 0, "errors": 0})
	require.NoError(t, svc.NotifyReconcile(ctx, quiet))
	assert.Empty(t, sender.cards)

	busy := event.NewEvent(event.TypeReconcileCompleted, "", 0, map[string]interface{}{"discussions": 4, "updates": 2, "errors": 1, "preserved": 1})
	require.NoError(t, svc.NotifyReconcile(ctx, busy))
	require.Len(t, sender.cards, 1)
	assert.Equal(t, []string{
		"Discussions scanned: 4",
		"Status updates: 2",
		"Preserved rework flags: 1",
		"Errors: 1",
	}, sender.cards[0].lines)
}

func TestNotificationService_SendFailure(t *testing.T) {
	sender := &mockSender{sendCardFunc: func(ctx context.Context, title string, lines []string) error {
		return errors.New("lark unavailable")
	}}
	svc := NewNotificationService(sender, &mockLogger{})

	evt := event.NewEvent(event.TypeReworkFlagged, "d", 1, map[string]interface{}{"reason": "r"})
	err := svc.NotifyRework(context.Background(), evt)
	assert.ErrorContains(t, err, "lark unavailable")
}

func TestNotificationService_Register(t *testing.T) {
	sender := &mockSender{}
	svc := NewNotificationService(sender, &mockLogger{})
	d := dispatcher.NewDispatcher()
	svc.Register(d)

	for _, typ := range []event.Type{
		event.TypeTaskStatusChanged,
		event.TypeReworkFlagged,
		event.TypeRetroactiveCorrection,
		event.TypeReconcileCompleted,
	} {
		assert.Equal(t, 1, d.HandlerCount(typ), typ)
	}
	assert.Equal(t, 0, d.HandlerCount(event.TypeAnnotationSubmitted))

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeReworkFlagged, "d", 1, map[string]interface{}{"reason": "r"}))
	require.NoError(t, d.Close())

	assert.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.cards) == 1
	}, time.Second, 10*time.Millisecond)
}
