package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/discussion-review/internal/domain/apperr"
)

func TestDecodeTaskData_Variants(t *testing.T) {
	d, err := DecodeTaskData(1, map[string]interface{}{"relevance": true, "learning": "yes", "clarity": 0.0, "notes": "short"})
	require.NoError(t, err)
	one, ok := d.(TaskOneData)
	require.True(t, ok)
	assert.True(t, one.Relevance)
	assert.True(t, one.Learning)
	assert.False(t, one.Clarity)
	assert.Equal(t, map[string]interface{}{"relevance": true, "learning": "yes", "clarity": 0.0, "notes": "short"}, one.Fields(),
		"fields render as submitted")

	d, err = DecodeTaskData(2, map[string]interface{}{"aspects": []interface{}{"a"}, "explanation": true, "execution": "Executable"})
	require.NoError(t, err)
	two := d.(TaskTwoData)
	assert.True(t, two.Aspects)
	require.NotNil(t, two.Execution)
	assert.Equal(t, "Executable", *two.Execution)

	d, err = DecodeTaskData(3, map[string]interface{}{"rewrite": "text"})
	require.NoError(t, err)
	assert.Nil(t, d.(TaskThreeData).SupportingDocsAvailable)

	d, err = DecodeTaskData(3, map[string]interface{}{"supporting_docs_available": false})
	require.NoError(t, err)
	require.NotNil(t, d.(TaskThreeData).SupportingDocsAvailable)
	assert.False(t, *d.(TaskThreeData).SupportingDocsAvailable)
}

func TestDecodeTaskData_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		taskID int
		raw    map[string]interface{}
	}{
		{"nil payload", 1, nil},
		{"reserved key", 1, map[string]interface{}{"_created": "x"}},
		{"unknown task", 4, map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTaskData(tt.taskID, tt.raw)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	_, err := DecodeTaskDataJSON(1, []byte(`[1,2]`))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTaskData_FieldsRoundTrip(t *testing.T) {
	exec := "N/A"
	in := TaskTwoData{Aspects: true, Explanation: false, Execution: &exec, Raw: map[string]interface{}{"comment": "ok"}}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := DecodeTaskDataJSON(2, raw)
	require.NoError(t, err)
	assert.Equal(t, in.Fields(), out.Fields())
}

func TestTaskData_FieldsKeepSubmittedValues(t *testing.T) {
	tests := []struct {
		name   string
		taskID int
		raw    map[string]interface{}
		edit   func(TaskData) TaskData
		want   map[string]interface{}
	}{
		{
			name:   "missing fields stay missing",
			taskID: 1,
			raw:    map[string]interface{}{"relevance": true},
			want:   map[string]interface{}{"relevance": true},
		},
		{
			name:   "list values survive",
			taskID: 2,
			raw:    map[string]interface{}{"aspects": []interface{}{"b", "a"}, "explanation": "because"},
			want:   map[string]interface{}{"aspects": []interface{}{"b", "a"}, "explanation": "because"},
		},
		{
			name:   "typed edit overrides the submitted value",
			taskID: 2,
			raw:    map[string]interface{}{"aspects": []interface{}{"a"}, "explanation": "because", "execution": "Executable"},
			edit: func(d TaskData) TaskData {
				two := d.(TaskTwoData)
				two.Explanation = false
				two.Execution = nil
				return two
			},
			want: map[string]interface{}{"aspects": []interface{}{"a"}, "explanation": false},
		},
		{
			name:   "typed edit adds a missing field",
			taskID: 3,
			raw:    map[string]interface{}{"rewrite": "text"},
			edit: func(d TaskData) TaskData {
				three := d.(TaskThreeData)
				no := false
				three.SupportingDocsAvailable = &no
				return three
			},
			want: map[string]interface{}{"rewrite": "text", "supporting_docs_available": false},
		},
		{
			name:   "numeric execution kept as sent",
			taskID: 2,
			raw:    map[string]interface{}{"aspects": true, "explanation": true, "execution": 1.0},
			want:   map[string]interface{}{"aspects": true, "explanation": true, "execution": 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DecodeTaskData(tt.taskID, tt.raw)
			require.NoError(t, err)
			if tt.edit != nil {
				d = tt.edit(d)
			}
			assert.Equal(t, tt.want, d.Fields())
		})
	}
}

func TestTaskData_BuiltInCodeRendersEveryField(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"relevance": false, "learning": true, "clarity": false},
		TaskOneData{Learning: true}.Fields())
	assert.Equal(t, map[string]interface{}{}, TaskThreeData{}.Fields())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0.0))
	assert.False(t, Truthy([]interface{}{}))
	assert.True(t, Truthy("false"))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy(map[string]interface{}{"a": 1}))
}

func TestLiftMetadata(t *testing.T) {
	data, meta := LiftMetadata(map[string]interface{}{
		"explanation":                  false,
		KeyCreated:                     "2024-03-01T10:00:00Z",
		KeyOverriddenByUser:            "lead@example.com",
		KeyRetroactivelyUpdatedByTask3: true,
		KeyOriginalExplanation:         true,
		"_unknown":                     1,
	})

	assert.Equal(t, map[string]interface{}{"explanation": false}, data)
	assert.Equal(t, 2024, meta.CreatedAt.Year())
	assert.Equal(t, "lead@example.com", meta.OverriddenByUser)
	assert.True(t, meta.RetroactivelyUpdatedByTask3)
	require.NotNil(t, meta.OriginalExplanation)
	assert.True(t, *meta.OriginalExplanation)
}

func TestDiscussionID(t *testing.T) {
	id, err := DiscussionID("octo/widgets", 42, "https://github.com/octo/widgets/discussions/42")
	require.NoError(t, err)
	assert.Equal(t, "octo_widgets_42", id)

	a, err := DiscussionID("", 0, "https://example.com/d/1")
	require.NoError(t, err)
	b, _ := DiscussionID("", 0, "https://example.com/d/1")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "url-")

	_, err = DiscussionID("", 0, " ")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Pod_Lead ")
	require.NoError(t, err)
	assert.Equal(t, RolePodLead, r)
	assert.True(t, r.CanManageConsensus())
	assert.False(t, RoleViewer.CanAnnotate())

	_, err = ParseRole("owner")
	assert.Error(t, err)
}
