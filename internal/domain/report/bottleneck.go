// Package report classifies task slots into bottleneck categories and builds
// the read-only status and bottleneck reports.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/discussion-review/internal/domain/workflow"
)

// Category of a task slot in the bottleneck report
type Category string

const (
	CategoryReworkFlagged     Category = "rework_flagged"
	CategoryQualityBlocked    Category = "quality_blocked_expected"
	CategoryBlockedNonQuality Category = "blocked_non_quality"
	CategoryCollecting        Category = "collecting_annotations"
	CategoryReadyForConsensus Category = "ready_for_consensus"
)

// Categories lists categories in classification precedence.
func Categories() []Category {
	return []Category{
		CategoryReworkFlagged,
		CategoryQualityBlocked,
		CategoryBlockedNonQuality,
		CategoryCollecting,
		CategoryReadyForConsensus,
	}
}

// IsBottleneck reports whether the category needs human intervention.
func (c Category) IsBottleneck() bool {
	switch c {
	case CategoryReworkFlagged, CategoryBlockedNonQuality, CategoryReadyForConsensus:
		return true
	}
	return false
}

// Recommendation priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityInfo   = "info"
)

// SlotView is the stored state of one slot as seen by the reports.
type SlotView struct {
	DiscussionID   string         `json:"discussion_id"`
	Title          string         `json:"title,omitempty"`
	TaskID         int            `json:"task_id"`
	Status         workflow.State `json:"status"`
	AnnotatorCount int            `json:"annotator_count"`
	Required       int            `json:"required"`
	Flagged        bool           `json:"flagged,omitempty"`
	FlagReason     string         `json:"flag_reason,omitempty"`
	Category       Category       `json:"category,omitempty"`
}

// DiscussionSlots groups the three slots of a discussion.
type DiscussionSlots struct {
	DiscussionID string
	Title        string
	Slots        []SlotView
}

// StuckDiscussion lists the bottleneck slots of one discussion.
type StuckDiscussion struct {
	DiscussionID string     `json:"discussion_id"`
	Title        string     `json:"title,omitempty"`
	Tasks        []SlotView `json:"tasks"`
}

// Recommendation is one prioritized follow-up.
type Recommendation struct {
	Priority string   `json:"priority"`
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Action   string   `json:"action"`
}

// BottleneckReport aggregates every discussion's slots.
type BottleneckReport struct {
	GeneratedAt      time.Time                `json:"generated_at"`
	TotalDiscussions int                      `json:"total_discussions"`
	StuckDiscussions []StuckDiscussion        `json:"stuck_discussions"`
	CategoryCounts   map[Category]int         `json:"category_counts"`
	TaskCounts       map[int]map[Category]int `json:"task_counts"`
	Recommendations  []Recommendation         `json:"recommendations"`
	Slots            []SlotView               `json:"-"`
	Errors           []string                 `json:"errors,omitempty"`
}

// Classify returns the category of a slot, first match wins.
// statuses holds the stored status of every task of the same discussion.
func Classify(slot SlotView, statuses map[int]workflow.State) (Category, bool) {
	switch {
	case slot.Flagged || slot.Status.IsSticky():
		return CategoryReworkFlagged, true
	case slot.Status == workflow.StateBlocked && workflow.QualityBlockedUpstream(statuses, slot.TaskID):
		return CategoryQualityBlocked, true
	case slot.Status == workflow.StateBlocked:
		return CategoryBlockedNonQuality, true
	case !slot.Status.IsTerminal() && slot.AnnotatorCount < slot.Required:
		return CategoryCollecting, true
	case slot.Status == workflow.StateReadyForConsensus:
		return CategoryReadyForConsensus, true
	}
	return "", false
}

// BuildBottleneckReport classifies every slot and aggregates the result.
func BuildBottleneckReport(discussions []DiscussionSlots, now time.Time) *BottleneckReport {
	r := &BottleneckReport{
		GeneratedAt:      now,
		TotalDiscussions: len(discussions),
		StuckDiscussions: []StuckDiscussion{},
		CategoryCounts:   make(map[Category]int),
		TaskCounts:       make(map[int]map[Category]int),
	}
	for _, c := range Categories() {
		r.CategoryCounts[c] = 0
	}

	for _, d := range discussions {
		statuses := make(map[int]workflow.State, len(d.Slots))
		for _, s := range d.Slots {
			statuses[s.TaskID] = s.Status
		}

		stuck := StuckDiscussion{DiscussionID: d.DiscussionID, Title: d.Title}
		for _, s := range d.Slots {
			s.Title = d.Title
			category, ok := Classify(s, statuses)
			if ok {
				s.Category = category
				r.CategoryCounts[category]++
				if r.TaskCounts[s.TaskID] == nil {
					r.TaskCounts[s.TaskID] = make(map[Category]int)
				}
				r.TaskCounts[s.TaskID][category]++
				if category.IsBottleneck() {
					stuck.Tasks = append(stuck.Tasks, s)
				}
			}
			r.Slots = append(r.Slots, s)
		}
		if len(stuck.Tasks) > 0 {
			r.StuckDiscussions = append(r.StuckDiscussions, stuck)
		}
	}

	sort.Slice(r.StuckDiscussions, func(i, j int) bool {
		return r.StuckDiscussions[i].DiscussionID < r.StuckDiscussions[j].DiscussionID
	})
	r.Recommendations = Recommend(r.CategoryCounts)
	return r
}

// Recommend turns category counts into follow-ups ordered high, medium, info.
func Recommend(counts map[Category]int) []Recommendation {
	out := []Recommendation{}
	add := func(priority string, c Category, action string) {
		if n := counts[c]; n > 0 {
			out = append(out, Recommendation{Priority: priority, Category: c, Count: n, Action: fmt.Sprintf(action, n)})
		}
	}

	add(PriorityHigh, CategoryReworkFlagged, "Resolve %d task(s) flagged for rework")
	add(PriorityHigh, CategoryBlockedNonQuality, "Investigate %d task(s) blocked without an upstream quality failure")
	add(PriorityMedium, CategoryReadyForConsensus, "Create consensus for %d task(s) with a full quorum")
	add(PriorityInfo, CategoryCollecting, "%d task(s) are still collecting annotations")
	add(PriorityInfo, CategoryQualityBlocked, "%d task(s) are blocked by an upstream quality failure as expected")
	return out
}
