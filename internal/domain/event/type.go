package event

// Type identifies the type of domain event
type Type string

const (
	TypeTaskStatusChanged     Type = "task.status_changed"
	TypeAnnotationSubmitted   Type = "annotation.submitted"
	TypeConsensusSaved        Type = "consensus.saved"
	TypeConsensusOverridden   Type = "consensus.overridden"
	TypeRetroactiveCorrection Type = "consensus.retroactive_correction"
	TypeReworkFlagged         Type = "task.rework_flagged"
	TypeDiscussionsImported   Type = "discussion.imported"
	TypeReconcileCompleted    Type = "reconcile.completed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTaskStatusChanged,
		TypeAnnotationSubmitted,
		TypeConsensusSaved,
		TypeConsensusOverridden,
		TypeRetroactiveCorrection,
		TypeReworkFlagged,
		TypeDiscussionsImported,
		TypeReconcileCompleted:
		return true
	default:
		return false
	}
}

// AllTypes lists every event type, used by subscribers that observe everything.
func AllTypes() []Type {
	return []Type{
		TypeTaskStatusChanged,
		TypeAnnotationSubmitted,
		TypeConsensusSaved,
		TypeConsensusOverridden,
		TypeRetroactiveCorrection,
		TypeReworkFlagged,
		TypeDiscussionsImported,
		TypeReconcileCompleted,
	}
}
