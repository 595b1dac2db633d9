package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/discussion-review/internal/domain/apperr"
)

// TaskData is the judgment payload of an annotation or consensus, one variant per task.
// The typed fields feed the quality gate and the retroactive correction; Raw keeps the
// payload as submitted so storage and agreement analysis see the original values.
type TaskData interface {
	TaskID() int
	// Fields renders the flat key/value form used for storage and agreement analysis.
	Fields() map[string]interface{}
}

// TaskOneData holds the task 1 (question quality) judgment.
type TaskOneData struct {
	Relevance bool
	Learning  bool
	Clarity   bool
	// Raw is the submitted payload. Nil for values built in code, which render every field.
	Raw map[string]interface{}
}

// TaskTwoData holds the task 2 (answer quality) judgment.
// Execution is nil when the annotator did not record an execution result.
type TaskTwoData struct {
	Aspects     bool
	Explanation bool
	Execution   *string
	Raw         map[string]interface{}
}

// TaskThreeData holds the task 3 (rewrite) judgment.
// SupportingDocsAvailable is nil when absent.
type TaskThreeData struct {
	SupportingDocsAvailable *bool
	Raw                     map[string]interface{}
}

func (TaskOneData) TaskID() int   { return 1 }
func (TaskTwoData) TaskID() int   { return 2 }
func (TaskThreeData) TaskID() int { return 3 }

func (d TaskOneData) Fields() map[string]interface{} {
	out := copyRaw(d.Raw)
	overlayBool(out, d.Raw, FieldRelevance, d.Relevance)
	overlayBool(out, d.Raw, FieldLearning, d.Learning)
	overlayBool(out, d.Raw, FieldClarity, d.Clarity)
	return out
}

func (d TaskTwoData) Fields() map[string]interface{} {
	out := copyRaw(d.Raw)
	overlayBool(out, d.Raw, FieldAspects, d.Aspects)
	overlayBool(out, d.Raw, FieldExplanation, d.Explanation)

	orig, present := d.Raw[FieldExecution]
	switch {
	case d.Execution == nil && (d.Raw == nil || orig == nil):
	case d.Execution == nil:
		delete(out, FieldExecution)
	case !present || orig == nil || executionString(orig) != *d.Execution:
		out[FieldExecution] = *d.Execution
	}
	return out
}

func (d TaskThreeData) Fields() map[string]interface{} {
	out := copyRaw(d.Raw)
	orig, present := d.Raw[FieldSupportingDocsAvailable]
	switch {
	case d.SupportingDocsAvailable == nil && (d.Raw == nil || orig == nil):
	case d.SupportingDocsAvailable == nil:
		delete(out, FieldSupportingDocsAvailable)
	case !present || orig == nil || Truthy(orig) != *d.SupportingDocsAvailable:
		out[FieldSupportingDocsAvailable] = *d.SupportingDocsAvailable
	}
	return out
}

func (d TaskOneData) MarshalJSON() ([]byte, error)   { return json.Marshal(d.Fields()) }
func (d TaskTwoData) MarshalJSON() ([]byte, error)   { return json.Marshal(d.Fields()) }
func (d TaskThreeData) MarshalJSON() ([]byte, error) { return json.Marshal(d.Fields()) }

// overlayBool writes v under key unless the submitted value already reads as v.
// A field the submitter left out stays out while it reads as false.
func overlayBool(out, raw map[string]interface{}, key string, v bool) {
	if raw != nil {
		orig, present := raw[key]
		if present && Truthy(orig) == v {
			return
		}
		if !present && !v {
			return
		}
	}
	out[key] = v
}

func executionString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// DecodeTaskData builds the variant for taskID from a raw payload.
// Keys with the reserved prefix are rejected.
func DecodeTaskData(taskID int, raw map[string]interface{}) (TaskData, error) {
	const op = "entity.decode_task_data"
	if raw == nil {
		return nil, apperr.Validation(op, "data must be an object")
	}
	for key := range raw {
		if strings.HasPrefix(key, ReservedPrefix) {
			return nil, apperr.Validation(op, "field %q uses the reserved prefix %q", key, ReservedPrefix)
		}
	}

	switch taskID {
	case 1:
		return TaskOneData{
			Relevance: Truthy(raw[FieldRelevance]),
			Learning:  Truthy(raw[FieldLearning]),
			Clarity:   Truthy(raw[FieldClarity]),
			Raw:       copyRaw(raw),
		}, nil
	case 2:
		d := TaskTwoData{
			Aspects:     Truthy(raw[FieldAspects]),
			Explanation: Truthy(raw[FieldExplanation]),
			Raw:         copyRaw(raw),
		}
		if v, ok := raw[FieldExecution]; ok && v != nil {
			s := executionString(v)
			d.Execution = &s
		}
		return d, nil
	case 3:
		d := TaskThreeData{Raw: copyRaw(raw)}
		if v, ok := raw[FieldSupportingDocsAvailable]; ok && v != nil {
			b := Truthy(v)
			d.SupportingDocsAvailable = &b
		}
		return d, nil
	default:
		return nil, apperr.Validation(op, "task id must be 1, 2 or 3, got %d", taskID)
	}
}

// DecodeTaskDataJSON decodes a stored JSON object.
func DecodeTaskDataJSON(taskID int, data []byte) (TaskData, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Validation("entity.decode_task_data", "data must be a JSON object: %v", err)
	}
	return DecodeTaskData(taskID, raw)
}

// Truthy applies loose truthiness: empty strings, zero numbers, empty collections and nil are false.
func Truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	default:
		return true
	}
}

func copyRaw(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw)+3)
	for k, v := range raw {
		out[k] = v
	}
	return out
}
