package workflow

// Trigger is an explicit action that moves a task slot between states
type Trigger string

const (
	TriggerUnlock          Trigger = "UNLOCK"
	TriggerReachQuorum     Trigger = "REACH_QUORUM"
	TriggerCreateConsensus Trigger = "CREATE_CONSENSUS"
	TriggerPassQuality     Trigger = "PASS_QUALITY"
	TriggerFailQuality     Trigger = "FAIL_QUALITY"
	TriggerFlagRework      Trigger = "FLAG_REWORK"
	TriggerFlag            Trigger = "FLAG"
	TriggerClearFlag       Trigger = "CLEAR_FLAG"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
