// Package quality decides whether a consensus is good enough to complete its task.
package quality

import (
	"github.com/garyjia/discussion-review/internal/domain/entity"
)

// Outcome is the gate result with the criteria that failed.
type Outcome struct {
	TaskID int      `json:"task_id"`
	Passed bool     `json:"passed"`
	Failed []string `json:"failed_criteria,omitempty"`
}

// Evaluate runs the gate for the payload's task. It has no side effects.
//
// Task 1 needs relevance, learning and clarity.
// Task 2 needs aspects and explanation, and an execution result other than
// "N/A" must be "Executable".
// Task 3 always passes; the rewrite task has no blocking criterion yet.
func Evaluate(data entity.TaskData) Outcome {
	switch d := data.(type) {
	case entity.TaskOneData:
		out := Outcome{TaskID: 1}
		check(&out, d.Relevance, entity.FieldRelevance)
		check(&out, d.Learning, entity.FieldLearning)
		check(&out, d.Clarity, entity.FieldClarity)
		out.Passed = len(out.Failed) == 0
		return out
	case entity.TaskTwoData:
		out := Outcome{TaskID: 2}
		check(&out, d.Aspects, entity.FieldAspects)
		check(&out, d.Explanation, entity.FieldExplanation)
		if d.Execution != nil && *d.Execution != entity.ExecutionNotApplicable {
			check(&out, *d.Execution == entity.ExecutionExecutable, entity.FieldExecution)
		}
		out.Passed = len(out.Failed) == 0
		return out
	case entity.TaskThreeData:
		return Outcome{TaskID: 3, Passed: true}
	default:
		return Outcome{Passed: false, Failed: []string{"data"}}
	}
}

// Passes is Evaluate reduced to its verdict.
func Passes(data entity.TaskData) bool {
	return Evaluate(data).Passed
}

// PassesRaw decodes an untyped payload and runs the gate.
func PassesRaw(taskID int, raw map[string]interface{}) (bool, error) {
	data, err := entity.DecodeTaskData(taskID, raw)
	if err != nil {
		return false, err
	}
	return Passes(data), nil
}

func check(out *Outcome, ok bool, field string) {
	if !ok {
		out.Failed = append(out.Failed, field)
	}
}
