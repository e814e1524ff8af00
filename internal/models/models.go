package models

import (
	"time"

	"scrumboard/internal/roles"
)

// User is an account known to the board. GlobalRole may be empty when the
// identity record was created without one.
type User struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name"`
	GlobalRole  roles.GlobalRole `json:"global_role"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Project groups tasks and sprints. Progress is derived from the task set
// and is nil while the project has no tasks.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Progress    *int          `json:"progress"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectMembership binds a user to a project with a project role.
// At most one membership exists per (ProjectID, UserID).
type ProjectMembership struct {
	ProjectID   string            `json:"project_id"`
	UserID      string            `json:"user_id"`
	ProjectRole roles.ProjectRole `json:"project_role"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Task represents a single card on the board.
type Task struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	SprintID     string     `json:"sprint_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	AssignedTo   string     `json:"assigned_to,omitempty"`
	StoryPoints  int        `json:"story_points"`
	Status       TaskStatus `json:"status"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Dependencies []string   `json:"dependencies"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MaxSprintDays bounds Sprint.DurationDays.
const MaxSprintDays = 366

// Sprint is a fixed-length iteration of a project.
type Sprint struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	Name         string       `json:"name"`
	Goal         string       `json:"goal"`
	StartDate    time.Time    `json:"start_date"`
	DurationDays int          `json:"duration_days"`
	Status       SprintStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// EndDate is the last day covered by the sprint.
func (s Sprint) EndDate() time.Time {
	return s.StartDate.AddDate(0, 0, s.DurationDays)
}

// TaskStatus is the board column of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
)

// ValidTaskStatuses enumerates the statuses supported by the board columns.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	TaskTodo:       {},
	TaskInProgress: {},
	TaskCompleted:  {},
}

// SprintStatus tracks the sprint lifecycle: PLANNED -> ACTIVE -> COMPLETED.
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "PLANNED"
	SprintActive    SprintStatus = "ACTIVE"
	SprintCompleted SprintStatus = "COMPLETED"
)

// ProjectStatus is the coarse state of a project.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectOnHold   ProjectStatus = "on_hold"
	ProjectArchived ProjectStatus = "archived"
)

// ValidProjectStatuses enumerates the accepted project states.
var ValidProjectStatuses = map[ProjectStatus]struct{}{
	ProjectActive:   {},
	ProjectOnHold:   {},
	ProjectArchived: {},
}
