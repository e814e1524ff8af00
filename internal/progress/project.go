package progress

import (
	"math"
	"time"

	"scrumboard/internal/models"
)

// ProjectCompletion recomputes the completion percentage of a project over
// its full task set. Tasks belonging to other projects are ignored. The
// second result is false when the project has no tasks, in which case
// progress is left unset rather than reported as 0%.
//
// The result depends only on the task set, so repeated or duplicated
// triggers after a task mutation are harmless.
func ProjectCompletion(projectID string, tasks []models.Task) (int, bool) {
	var total, completed int
	for _, t := range tasks {
		if t.ProjectID != projectID {
			continue
		}
		total++
		if t.Status == models.TaskCompleted {
			completed++
		}
	}
	if total == 0 {
		return 0, false
	}
	return int(math.Round(100 * float64(completed) / float64(total))), true
}

// SprintSummary totals the story points of a sprint's tasks.
type SprintSummary struct {
	TaskCount       int `json:"task_count"`
	CompletedTasks  int `json:"completed_tasks"`
	TotalPoints     int `json:"total_points"`
	CompletedPoints int `json:"completed_points"`
	RemainingPoints int `json:"remaining_points"`
}

// SummarizeSprint counts tasks and story points for a sprint board header.
func SummarizeSprint(tasks []models.Task) SprintSummary {
	var s SprintSummary
	for _, t := range tasks {
		points := int(storyPoints(t))
		s.TaskCount++
		s.TotalPoints += points
		if t.Status == models.TaskCompleted {
			s.CompletedTasks++
			s.CompletedPoints += points
		}
	}
	s.RemainingPoints = s.TotalPoints - s.CompletedPoints
	return s
}

// DeadlineWindow is how far ahead a due date counts as upcoming.
const DeadlineWindow = 7 * day

// AssignmentSummary is a user's personal board overview.
type AssignmentSummary struct {
	AssignedTasks     int `json:"assigned_tasks"`
	CompletedTasks    int `json:"completed_tasks"`
	UpcomingDeadlines int `json:"upcoming_deadlines"`
	CompletionPercent int `json:"completion_percent"`
}

// SummarizeAssignments counts the tasks assigned to userID. A task is an
// upcoming deadline when it is not completed and due no later than
// DeadlineWindow from now; overdue tasks count too. Completion is 0 when
// nothing is assigned.
func SummarizeAssignments(userID string, tasks []models.Task, now time.Time) AssignmentSummary {
	var s AssignmentSummary
	cutoff := now.Add(DeadlineWindow)
	for _, t := range tasks {
		if userID == "" || t.AssignedTo != userID {
			continue
		}
		s.AssignedTasks++
		if t.Status == models.TaskCompleted {
			s.CompletedTasks++
			continue
		}
		if t.DueDate != nil && !t.DueDate.After(cutoff) {
			s.UpcomingDeadlines++
		}
	}
	if s.AssignedTasks > 0 {
		s.CompletionPercent = int(math.Round(100 * float64(s.CompletedTasks) / float64(s.AssignedTasks)))
	}
	return s
}
