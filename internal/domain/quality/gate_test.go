package quality

import (
	"testing"

	"github.com/garyjia/discussion-review/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassesRaw(t *testing.T) {
	tests := []struct {
		name   string
		taskID int
		data   map[string]interface{}
		want   bool
	}{
		{"task 1 all true", 1, map[string]interface{}{"relevance": true, "learning": true, "clarity": true}, true},
		{"task 1 learning false", 1, map[string]interface{}{"relevance": true, "learning": false, "clarity": true}, false},
		{"task 1 missing field", 1, map[string]interface{}{"relevance": true, "learning": true}, false},
		{"task 1 empty", 1, map[string]interface{}{}, false},
		{"task 2 no execution", 2, map[string]interface{}{"aspects": true, "explanation": true}, true},
		{"task 2 n/a execution", 2, map[string]interface{}{"aspects": true, "explanation": true, "execution": "N/A"}, true},
		{"task 2 executable", 2, map[string]interface{}{"aspects": true, "explanation": true, "execution": "Executable"}, true},
		{"task 2 not executable", 2, map[string]interface{}{"aspects": true, "explanation": true, "execution": "Not Executable"}, false},
		{"task 2 explanation false", 2, map[string]interface{}{"aspects": true, "explanation": false}, false},
		{"task 3 empty", 3, map[string]interface{}{}, true},
		{"task 3 no docs", 3, map[string]interface{}{"supporting_docs_available": false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PassesRaw(tt.taskID, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassesRaw_InvalidPayload(t *testing.T) {
	_, err := PassesRaw(1, map[string]interface{}{"_last_updated": "now"})
	assert.Error(t, err)
}

func TestEvaluate_ListsFailedCriteria(t *testing.T) {
	data, err := entity.DecodeTaskData(2, map[string]interface{}{"aspects": false, "explanation": true, "execution": "Broken"})
	require.NoError(t, err)

	out := Evaluate(data)
	assert.False(t, out.Passed)
	assert.Equal(t, []string{"aspects", "execution"}, out.Failed)
	assert.Equal(t, out, Evaluate(data))
}
