package workflow

import (
	"context"

	"github.com/garyjia/discussion-review/internal/domain/entity"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// BuildTaskStateMachine creates the machine that validates manual actions on one slot.
// Derived repairs do not go through it.
func BuildTaskStateMachine(slot *entity.TaskSlot) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	quorumMet := func(context.Context) bool {
		return slot.AnnotatorCount >= slot.Required()
	}

	// LOCKED
	builder.Configure(domainwf.StateLocked).
		Permit(domainwf.TriggerUnlock, domainwf.StateUnlocked)

	// UNLOCKED
	builder.Configure(domainwf.StateUnlocked).
		PermitIf(domainwf.TriggerReachQuorum, domainwf.StateReadyForConsensus, quorumMet)

	// READY_FOR_CONSENSUS
	builder.Configure(domainwf.StateReadyForConsensus).
		Permit(domainwf.TriggerCreateConsensus, domainwf.StateConsensusCreated)

	// CONSENSUS_CREATED
	builder.Configure(domainwf.StateConsensusCreated).
		Permit(domainwf.TriggerCreateConsensus, domainwf.StateConsensusCreated).
		Permit(domainwf.TriggerPassQuality, domainwf.StateCompleted).
		Permit(domainwf.TriggerFailQuality, domainwf.StateQualityFailed)

	// COMPLETED and QUALITY_FAILED accept a revised consensus
	builder.Configure(domainwf.StateCompleted).
		Permit(domainwf.TriggerCreateConsensus, domainwf.StateConsensusCreated).
		Permit(domainwf.TriggerFailQuality, domainwf.StateQualityFailed)

	builder.Configure(domainwf.StateQualityFailed).
		Permit(domainwf.TriggerCreateConsensus, domainwf.StateConsensusCreated)

	// REWORK and FLAGGED only leave through an explicit clear
	builder.Configure(domainwf.StateRework).
		Permit(domainwf.TriggerClearFlag, domainwf.StateUnlocked)

	builder.Configure(domainwf.StateFlagged).
		Permit(domainwf.TriggerClearFlag, domainwf.StateUnlocked)

	for _, s := range domainwf.AllStates() {
		if s.IsSticky() {
			continue
		}
		builder.Configure(s).
			Permit(domainwf.TriggerFlagRework, domainwf.StateRework).
			Permit(domainwf.TriggerFlag, domainwf.StateFlagged)
	}

	initial := slot.Status
	if !initial.IsValid() {
		initial = domainwf.StateLocked
	}
	return builder.Build(initial)
}
