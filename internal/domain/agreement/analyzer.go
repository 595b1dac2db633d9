// Package agreement computes inter-annotator agreement for one (discussion, task).
// The result is advisory and never moves a task status.
package agreement

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/garyjia/discussion-review/internal/domain/entity"
)

const (
	KindBoolean     = "boolean"
	KindCategorical = "categorical"
)

// FieldAgreement is the agreement on a single field.
type FieldAgreement struct {
	Field          string         `json:"field"`
	Kind           string         `json:"kind"`
	ConsensusValue interface{}    `json:"consensus_value"`
	Agreed         int            `json:"agreed"`
	Total          int            `json:"total"`
	Rate           float64        `json:"agreement_rate"`
	Distribution   map[string]int `json:"distribution"`
}

// Analysis is the per-field breakdown plus the overall rate.
type Analysis struct {
	AnnotationCount int              `json:"annotation_count"`
	Fields          []FieldAgreement `json:"fields"`
	OverallRate     float64          `json:"overall_agreement_rate"`
}

// AnalyzeAnnotations runs Analyze over each annotation payload as it was submitted.
func AnalyzeAnnotations(annotations []*entity.Annotation) Analysis {
	payloads := make([]map[string]interface{}, 0, len(annotations))
	for _, a := range annotations {
		if a == nil || a.Data == nil {
			continue
		}
		payloads = append(payloads, a.Data.Fields())
	}
	return Analyze(payloads)
}

// Analyze compares the union of non-reserved fields across payloads.
//
// Boolean fields take the majority value and false wins ties. Other fields take
// the most frequent canonical value; lists are sorted first so order does not
// matter, and ties go to the lexicographically smallest canonical JSON.
// Rates are percentages rounded to one decimal.
func Analyze(payloads []map[string]interface{}) Analysis {
	result := Analysis{AnnotationCount: len(payloads), Fields: []FieldAgreement{}}

	values := make(map[string][]interface{})
	for _, p := range payloads {
		for k, v := range p {
			if strings.HasPrefix(k, entity.ReservedPrefix) || v == nil {
				continue
			}
			values[k] = append(values[k], v)
		}
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	agreed, total := 0, 0
	for _, name := range names {
		fa := analyzeField(name, values[name])
		agreed += fa.Agreed
		total += fa.Total
		result.Fields = append(result.Fields, fa)
	}
	result.OverallRate = rate(agreed, total)
	return result
}

func analyzeField(name string, vals []interface{}) FieldAgreement {
	fa := FieldAgreement{Field: name, Total: len(vals), Distribution: make(map[string]int)}

	if allBool(vals) {
		fa.Kind = KindBoolean
		trues := 0
		for _, v := range vals {
			if v.(bool) {
				trues++
			}
		}
		falses := len(vals) - trues
		fa.Distribution["true"] = trues
		fa.Distribution["false"] = falses
		if trues > falses {
			fa.ConsensusValue, fa.Agreed = true, trues
		} else {
			fa.ConsensusValue, fa.Agreed = false, falses
		}
		fa.Rate = rate(fa.Agreed, fa.Total)
		return fa
	}

	fa.Kind = KindCategorical
	normalized := make(map[string]interface{})
	for _, v := range vals {
		n, key := canonical(v)
		fa.Distribution[key]++
		normalized[key] = n
	}

	bestKey := ""
	for key, count := range fa.Distribution {
		best := fa.Distribution[bestKey]
		if bestKey == "" || count > best || (count == best && key < bestKey) {
			bestKey = key
		}
	}
	fa.ConsensusValue = normalized[bestKey]
	fa.Agreed = fa.Distribution[bestKey]
	fa.Rate = rate(fa.Agreed, fa.Total)
	return fa
}

func allBool(vals []interface{}) bool {
	for _, v := range vals {
		if _, ok := v.(bool); !ok {
			return false
		}
	}
	return len(vals) > 0
}

// canonical returns the value with every list sorted, and its JSON encoding.
func canonical(v interface{}) (interface{}, string) {
	n := normalize(v)
	b, err := json.Marshal(n)
	if err != nil {
		return n, fmt.Sprintf("%v", n)
	}
	return n, string(b)
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case []interface{}:
		items := make([]interface{}, len(x))
		keys := make([]string, len(x))
		for i, item := range x {
			items[i], keys[i] = canonical(item)
		}
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
		out := make([]interface{}, len(x))
		for i, j := range idx {
			out[i] = items[j]
		}
		return out
	case []string:
		out := make([]interface{}, len(x))
		for i, s := range x {
			out[i] = s
		}
		return normalize(out)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func rate(agreed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(agreed)/float64(total)*1000) / 10
}
