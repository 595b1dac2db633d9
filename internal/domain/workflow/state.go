package workflow

// State is the status of one task slot
type State string

const (
	StateLocked            State = "locked"
	StateUnlocked          State = "unlocked"
	StateReadyForConsensus State = "ready_for_consensus"
	StateConsensusCreated  State = "consensus_created"
	StateCompleted         State = "completed"
	StateQualityFailed     State = "quality_failed"
	StateBlocked           State = "blocked"
	StateRework            State = "rework"
	StateFlagged           State = "flagged"
)

var validStates = map[State]bool{
	StateLocked:            true,
	StateUnlocked:          true,
	StateReadyForConsensus: true,
	StateConsensusCreated:  true,
	StateCompleted:         true,
	StateQualityFailed:     true,
	StateBlocked:           true,
	StateRework:            true,
	StateFlagged:           true,
}

// doneStates unlock the next task regardless of quality outcome
var doneStates = map[State]bool{
	StateConsensusCreated: true,
	StateCompleted:        true,
	StateQualityFailed:    true,
}

var stickyStates = map[State]bool{
	StateRework:  true,
	StateFlagged: true,
}

// IsValid returns true if the state is a known task status
func (s State) IsValid() bool {
	return validStates[s]
}

// IsDone returns true once a consensus decided the task
func (s State) IsDone() bool {
	return doneStates[s]
}

// IsSticky returns true for manually applied states that derivation must preserve
func (s State) IsSticky() bool {
	return stickyStates[s]
}

// IsTerminal returns true if annotators can no longer move the task forward
func (s State) IsTerminal() bool {
	return s.IsDone()
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// AllStates lists every status in lifecycle order.
func AllStates() []State {
	return []State{
		StateLocked, StateUnlocked, StateReadyForConsensus, StateConsensusCreated,
		StateCompleted, StateQualityFailed, StateBlocked, StateRework, StateFlagged,
	}
}

// Task numbers and quorum sizes.
const (
	FirstTask = 1
	LastTask  = 3
)

// RequiredAnnotators returns the quorum for a task.
func RequiredAnnotators(taskID int) int {
	if taskID == 3 {
		return 5
	}
	return 3
}

// ValidTask reports whether taskID names one of the three tasks.
func ValidTask(taskID int) bool {
	return taskID >= FirstTask && taskID <= LastTask
}
