package entity

import (
	"strings"
	"time"
)

// ConsensusMetadata is the audit record kept next to a consensus payload.
type ConsensusMetadata struct {
	CreatedAt                   time.Time  `json:"created_at"`
	LastUpdatedAt               time.Time  `json:"last_updated_at"`
	OverriddenByUser            string     `json:"overridden_by_user,omitempty"`
	OverrideTimestamp           *time.Time `json:"override_timestamp,omitempty"`
	RetroactivelyUpdatedByTask3 bool       `json:"retroactively_updated_by_task3,omitempty"`
	RetroactiveUpdateTimestamp  *time.Time `json:"retroactive_update_timestamp,omitempty"`
	OriginalExplanation         *bool      `json:"original_explanation,omitempty"`
}

// ConsensusAnnotation is the single agreed judgment for a (discussion, task).
// AnnotatorID is the annotator it nominally represents; UserID saved it.
type ConsensusAnnotation struct {
	ID           int64             `json:"id"`
	DiscussionID string            `json:"discussion_id"`
	TaskID       int               `json:"task_id"`
	AnnotatorID  string            `json:"annotator_id"`
	UserID       string            `json:"user_id"`
	Data         TaskData          `json:"data"`
	Metadata     ConsensusMetadata `json:"metadata"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Overridden reports whether an administrator's override is the current word on this consensus.
func (c *ConsensusAnnotation) Overridden() bool {
	return c.Metadata.OverriddenByUser != ""
}

// LiftMetadata splits a legacy flat payload into domain fields and the audit record.
// Reserved keys that are not known audit keys are dropped.
func LiftMetadata(raw map[string]interface{}) (map[string]interface{}, ConsensusMetadata) {
	var meta ConsensusMetadata
	data := make(map[string]interface{}, len(raw))

	for k, v := range raw {
		if !strings.HasPrefix(k, ReservedPrefix) {
			data[k] = v
			continue
		}
		switch k {
		case KeyCreated:
			if t, ok := parseTime(v); ok {
				meta.CreatedAt = t
			}
		case KeyLastUpdated:
			if t, ok := parseTime(v); ok {
				meta.LastUpdatedAt = t
			}
		case KeyOverriddenByUser:
			if s, ok := v.(string); ok {
				meta.OverriddenByUser = s
			}
		case KeyOverrideTimestamp:
			if t, ok := parseTime(v); ok {
				meta.OverrideTimestamp = &t
			}
		case KeyRetroactivelyUpdatedByTask3:
			meta.RetroactivelyUpdatedByTask3 = Truthy(v)
		case KeyRetroactiveUpdateTimestamp:
			if t, ok := parseTime(v); ok {
				meta.RetroactiveUpdateTimestamp = &t
			}
		case KeyOriginalExplanation:
			if v != nil {
				b := Truthy(v)
				meta.OriginalExplanation = &b
			}
		}
	}
	return data, meta
}

func parseTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
