package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Rework scenarios. A stop_at_taskN flag holds task N in rework and blocks every later task.
const (
	ScenarioStopAtTask1 = "stop_at_task1"
	ScenarioStopAtTask2 = "stop_at_task2"
	ScenarioStopAtTask3 = "stop_at_task3"
)

// ParseScenario returns the task a scenario stops at, or 0 for a direct per-task flag.
func ParseScenario(scenario string) (int, error) {
	if scenario == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(scenario, "stop_at_task"))
	if err != nil || !strings.HasPrefix(scenario, "stop_at_task") || !ValidTask(n) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScenario, scenario)
	}
	return n, nil
}

// SlotFacts is everything derivation needs to know about one task slot.
type SlotFacts struct {
	TaskID         int
	Stored         State
	AnnotatorCount int
	Flagged        bool
	Scenario       string
	HasConsensus   bool
	Overridden     bool
	QualityPassed  bool
}

// Sticky reports whether the slot carries a manual rework/flag that derivation preserves.
func (f SlotFacts) Sticky() bool {
	return f.Flagged || f.Stored.IsSticky()
}

// Derivation is the computed status of one slot.
type Derivation struct {
	TaskID    int
	Status    State
	Reason    string
	Preserved bool
}

// Derive computes the status of every slot of one discussion in ascending task order.
// Each task sees the already derived status of its predecessor.
func Derive(facts []SlotFacts) []Derivation {
	ordered := append([]SlotFacts(nil), facts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TaskID < ordered[j].TaskID })

	out := make([]Derivation, 0, len(ordered))
	statuses := make(map[int]State, len(ordered))
	stopAt := 0

	for _, f := range ordered {
		d := deriveOne(f, statuses, stopAt)
		if d.Preserved {
			if n, err := ParseScenario(f.Scenario); err == nil && n > 0 && (stopAt == 0 || n < stopAt) {
				stopAt = n
			}
		}
		statuses[f.TaskID] = d.Status
		out = append(out, d)
	}
	return out
}

func deriveOne(f SlotFacts, statuses map[int]State, stopAt int) Derivation {
	d := Derivation{TaskID: f.TaskID}

	if f.Sticky() {
		d.Status = f.Stored
		if !d.Status.IsSticky() {
			d.Status = StateRework
		}
		d.Reason = "rework flag preserved"
		d.Preserved = true
		return d
	}

	if stopAt > 0 && f.TaskID > stopAt {
		d.Status = StateBlocked
		d.Reason = fmt.Sprintf("blocked by stop_at_task%d rework", stopAt)
		return d
	}

	prev, hasPrev := statuses[f.TaskID-1]
	gated := f.TaskID > FirstTask && hasPrev && !prev.IsSticky()
	if f.TaskID > FirstTask && !hasPrev {
		prev, gated = StateLocked, true
	}

	if gated {
		switch prev {
		case StateLocked, StateUnlocked, StateReadyForConsensus:
			d.Status = StateLocked
			d.Reason = fmt.Sprintf("task %d is %s", f.TaskID-1, prev)
			return d
		}
	}

	if f.HasConsensus {
		switch {
		case f.Overridden && f.Stored.IsDone():
			d.Status = f.Stored
			d.Reason = "overridden consensus"
		case f.Overridden:
			d.Status = StateConsensusCreated
			d.Reason = "overridden consensus"
		case f.QualityPassed:
			d.Status = StateCompleted
			d.Reason = "consensus passed quality gate"
		default:
			d.Status = StateQualityFailed
			d.Reason = "consensus failed quality gate"
		}
		return d
	}

	if gated {
		switch prev {
		case StateQualityFailed:
			d.Status = StateBlocked
			d.Reason = fmt.Sprintf("task %d failed quality", f.TaskID-1)
			return d
		case StateBlocked:
			d.Status = StateBlocked
			d.Reason = fmt.Sprintf("task %d is blocked", f.TaskID-1)
			return d
		}
	}

	// completion never unlocks the next task by itself
	if f.TaskID > FirstTask && (f.Stored == StateLocked || f.Stored == StateBlocked) {
		d.Status = StateLocked
		d.Reason = "awaiting manual unlock"
		return d
	}

	required := RequiredAnnotators(f.TaskID)
	if f.AnnotatorCount >= required {
		d.Status = StateReadyForConsensus
	} else {
		d.Status = StateUnlocked
	}
	d.Reason = fmt.Sprintf("%d of %d annotators", f.AnnotatorCount, required)
	return d
}

// QualityBlockedUpstream walks the tasks before taskID and reports whether one failed quality.
// statuses is indexed by task number.
func QualityBlockedUpstream(statuses map[int]State, taskID int) bool {
	for n := taskID - 1; n >= FirstTask; n-- {
		if statuses[n] == StateQualityFailed {
			return true
		}
	}
	return false
}
