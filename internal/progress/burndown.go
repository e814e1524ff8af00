// Package progress derives sprint burndown series and project completion
// from raw task records. Every function here is pure: callers fetch the
// task set, and results are always recomputed from scratch.
package progress

import (
	"math"
	"time"

	"scrumboard/internal/models"
)

// LabelLayout formats the day labels of a burndown chart.
const LabelLayout = "Jan 2"

const day = 24 * time.Hour

// Burndown holds equal-length, day-indexed series for a sprint chart.
// Index i corresponds to StartDate + i days.
type Burndown struct {
	Labels      []string    `json:"labels"`
	Dates       []time.Time `json:"dates"`
	TotalPoints float64     `json:"total_points"`
	Ideal       []float64   `json:"ideal"`
	Actual      []float64   `json:"actual"`
}

// ComputeBurndown builds the ideal and actual burndown for a sprint from
// the tasks that belong to it. Completions outside [0, DurationDays] days
// from the start date are ignored. Durations are clamped to
// [0, models.MaxSprintDays].
func ComputeBurndown(sprint models.Sprint, tasks []models.Task) Burndown {
	duration := min(max(sprint.DurationDays, 0), models.MaxSprintDays)
	points := duration + 1

	out := Burndown{
		Labels: make([]string, points),
		Dates:  make([]time.Time, points),
		Ideal:  make([]float64, points),
		Actual: make([]float64, points),
	}
	for i := range out.Dates {
		d := sprint.StartDate.AddDate(0, 0, i)
		out.Dates[i] = d
		out.Labels[i] = d.Format(LabelLayout)
	}

	var total float64
	for _, t := range tasks {
		total += storyPoints(t)
	}
	out.TotalPoints = total
	if total == 0 {
		return out
	}

	out.Ideal[0] = total
	for i := 1; i <= duration; i++ {
		out.Ideal[i] = total * float64(duration-i) / float64(duration)
	}

	completed := make([]float64, points)
	for _, t := range tasks {
		if t.CompletedAt == nil {
			continue
		}
		idx, ok := dayIndex(sprint.StartDate, *t.CompletedAt)
		if !ok || idx > duration {
			continue
		}
		completed[idx] += storyPoints(t)
	}

	out.Actual[0] = total
	for i := 1; i <= duration; i++ {
		out.Actual[i] = out.Actual[i-1] - completed[i-1]
	}
	return out
}

// dayIndex returns floor((at - start) / 24h). Negative offsets report false.
func dayIndex(start, at time.Time) (int, bool) {
	offset := at.Sub(start)
	if offset < 0 {
		return 0, false
	}
	return int(math.Floor(float64(offset) / float64(day))), true
}

func storyPoints(t models.Task) float64 {
	if t.StoryPoints < 0 {
		return 0
	}
	return float64(t.StoryPoints)
}
