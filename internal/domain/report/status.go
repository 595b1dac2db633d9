package report

import (
	"fmt"

	"github.com/garyjia/discussion-review/internal/domain/agreement"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/quality"
	"github.com/garyjia/discussion-review/internal/domain/workflow"
)

// TaskStatusReport describes one (discussion, task) for the people working on it.
type TaskStatusReport struct {
	DiscussionID      string              `json:"discussion_id"`
	TaskID            int                 `json:"task_id"`
	Status            workflow.State      `json:"status"`
	AnnotationsCount  int                 `json:"annotations_count"`
	Required          int                 `json:"required"`
	AgreementAnalysis *agreement.Analysis `json:"agreement_analysis,omitempty"`
	RecommendedAction string              `json:"recommended_action"`
	Quality           *quality.Outcome    `json:"quality,omitempty"`
	ReworkFlag        *entity.ReworkFlag  `json:"rework_flag,omitempty"`
	Errors            []string            `json:"errors,omitempty"`
}

// RecommendAction suggests the next step for a slot.
func RecommendAction(slot *entity.TaskSlot, annotations int) string {
	required := workflow.RequiredAnnotators(slot.TaskID)
	last := slot.TaskID == workflow.LastTask

	switch slot.Status {
	case workflow.StateLocked:
		if slot.TaskID == workflow.FirstTask {
			return "Run reconciliation to unlock task 1"
		}
		return fmt.Sprintf("Waiting for task %d; an admin or pod lead unlocks this task once it is done", slot.TaskID-1)
	case workflow.StateUnlocked:
		missing := required - annotations
		if missing < 1 {
			missing = 1
		}
		return fmt.Sprintf("Collect %d more annotation(s)", missing)
	case workflow.StateReadyForConsensus:
		return "Review the agreement analysis and create the consensus"
	case workflow.StateConsensusCreated, workflow.StateCompleted:
		if last {
			return "No action needed; the workflow is complete"
		}
		return fmt.Sprintf("Unlock task %d", slot.TaskID+1)
	case workflow.StateQualityFailed:
		return "Review the failed quality criteria; later tasks stay blocked until the consensus passes"
	case workflow.StateBlocked:
		return "Resolve the upstream quality failure or rework flag"
	case workflow.StateRework, workflow.StateFlagged:
		reason := "see the rework flag"
		if slot.ReworkFlag != nil && slot.ReworkFlag.Reason != "" {
			reason = slot.ReworkFlag.Reason
		}
		return fmt.Sprintf("Address the rework request (%s), then clear the flag", reason)
	}
	return "No action available"
}
