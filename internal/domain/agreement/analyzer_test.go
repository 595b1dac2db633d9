package agreement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/discussion-review/internal/domain/entity"
)

func field(t *testing.T, a Analysis, name string) FieldAgreement {
	t.Helper()
	for _, f := range a.Fields {
		if f.Field == name {
			return f
		}
	}
	t.Fatalf("field %s missing", name)
	return FieldAgreement{}
}

func TestAnalyze_BooleanMajority(t *testing.T) {
	a := Analyze([]map[string]interface{}{
		{"relevance": true},
		{"relevance": true},
		{"relevance": false},
	})

	f := field(t, a, "relevance")
	assert.Equal(t, true, f.ConsensusValue)
	assert.Equal(t, 66.7, f.Rate)
	assert.Equal(t, 66.7, a.OverallRate)
	assert.Equal(t, 3, a.AnnotationCount)
}

func TestAnalyze_BooleanTieGoesToFalse(t *testing.T) {
	a := Analyze([]map[string]interface{}{
		{"clarity": true},
		{"clarity": false},
	})
	f := field(t, a, "clarity")
	assert.Equal(t, false, f.ConsensusValue)
	assert.Equal(t, 50.0, f.Rate)

	// order does not matter
	b := Analyze([]map[string]interface{}{
		{"clarity": false},
		{"clarity": true},
	})
	assert.Equal(t, f, field(t, b, "clarity"))
}

func TestAnalyze_ListsIgnoreOrder(t *testing.T) {
	a := Analyze([]map[string]interface{}{
		{"tags": []interface{}{"b", "a"}},
		{"tags": []interface{}{"a", "b"}},
		{"tags": []interface{}{"c"}},
	})

	f := field(t, a, "tags")
	assert.Equal(t, KindCategorical, f.Kind)
	assert.Equal(t, []interface{}{"a", "b"}, f.ConsensusValue)
	assert.Equal(t, 2, f.Agreed)
}

func TestAnalyze_CategoricalTieIsLexicographic(t *testing.T) {
	first := Analyze([]map[string]interface{}{
		{"execution": "Executable"},
		{"execution": "N/A"},
	})
	second := Analyze([]map[string]interface{}{
		{"execution": "N/A"},
		{"execution": "Executable"},
	})

	assert.Equal(t, "Executable", field(t, first, "execution").ConsensusValue)
	assert.Equal(t, field(t, first, "execution"), field(t, second, "execution"))
}

func TestAnalyze_OverallRateSumsCounts(t *testing.T) {
	a := Analyze([]map[string]interface{}{
		{"relevance": true, "learning": true, "_created": "x"},
		{"relevance": true, "learning": false},
		{"relevance": true},
	})

	require.Len(t, a.Fields, 2)
	// relevance 3/3, learning 1/2 (tie, false wins) -> 4/5
	assert.Equal(t, 80.0, a.OverallRate)
}

func TestAnalyze_Empty(t *testing.T) {
	a := Analyze(nil)
	assert.Empty(t, a.Fields)
	assert.Zero(t, a.OverallRate)
}

func TestAnalyzeAnnotations(t *testing.T) {
	anns := []*entity.Annotation{
		{Data: entity.TaskOneData{Relevance: true, Learning: true, Clarity: true}},
		{Data: entity.TaskOneData{Relevance: true, Learning: true, Clarity: false}},
		nil,
	}

	a := AnalyzeAnnotations(anns)
	assert.Equal(t, 2, a.AnnotationCount)
	assert.Equal(t, false, field(t, a, "clarity").ConsensusValue)
	assert.Equal(t, 100.0, field(t, a, "learning").Rate)
}

func TestAnalyzeAnnotations_DecodedPayloads(t *testing.T) {
	annotation := func(taskID int, raw map[string]interface{}) *entity.Annotation {
		data, err := entity.DecodeTaskData(taskID, raw)
		require.NoError(t, err)
		return &entity.Annotation{TaskID: taskID, Data: data}
	}

	a := AnalyzeAnnotations([]*entity.Annotation{
		annotation(1, map[string]interface{}{"relevance": true}),
		annotation(1, map[string]interface{}{"relevance": true}),
		annotation(1, map[string]interface{}{"relevance": false}),
		nil,
	})
	require.Len(t, a.Fields, 1)
	assert.Equal(t, 3, a.AnnotationCount)
	assert.InDelta(t, 66.7, a.OverallRate, 0.01)

	a = AnalyzeAnnotations([]*entity.Annotation{
		annotation(2, map[string]interface{}{"aspects": []interface{}{"a", "b"}}),
		annotation(2, map[string]interface{}{"aspects": []interface{}{"b", "a"}}),
		annotation(2, map[string]interface{}{"aspects": []interface{}{"c"}}),
	})
	f := field(t, a, "aspects")
	assert.Equal(t, KindCategorical, f.Kind)
	assert.Equal(t, 2, f.Agreed)
	assert.InDelta(t, 66.7, f.Rate, 0.01)
}
