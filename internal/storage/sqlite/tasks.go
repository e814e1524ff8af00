package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scrumboard/internal/models"
)

const taskColumns = `id, project_id, sprint_id, title, description, assigned_to, story_points, status, due_date, completed_at, created_at, updated_at`

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	ProjectID  string
	SprintID   string
	AssignedTo string
}

// TaskUpdate lists the task fields to change. Nil fields are left as is.
type TaskUpdate struct {
	Title        *string
	Description  *string
	AssignedTo   *string
	SprintID     *string
	StoryPoints  *int
	Status       *models.TaskStatus
	DueDate      *time.Time
	ClearDueDate bool
	Dependencies *[]string
}

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var sprintID sql.NullString
	var status string
	var due, completed sql.NullTime
	if err := row.Scan(&t.ID, &t.ProjectID, &sprintID, &t.Title, &t.Description, &t.AssignedTo,
		&t.StoryPoints, &status, &due, &completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.SprintID = sprintID.String
	t.Status = models.TaskStatus(status)
	t.DueDate = timePtr(due)
	t.CompletedAt = timePtr(completed)
	t.Dependencies = []string{}
	return t, nil
}

// ListTasks returns the tasks matching filter ordered by creation.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var where []string
	var args []any
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.SprintID != "" {
		where = append(where, "sprint_id = ?")
		args = append(args, filter.SprintID)
	}
	if filter.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachDependencies(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachDependencies fills Dependencies for tasks. It runs after the task
// rows are closed because the store holds a single connection.
func (s *Store) attachDependencies(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[string]int, len(tasks))
	placeholders := make([]string, len(tasks))
	args := make([]any, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		placeholders[i] = "?"
		args[i] = t.ID
	}

	rows, err := s.db.QueryContext(ctx, `SELECT task_id, depends_on FROM task_dependencies WHERE task_id IN (`+
		strings.Join(placeholders, ",")+`) ORDER BY task_id, depends_on`, args...)
	if err != nil {
		return fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, dependsOn string
		if err := rows.Scan(&taskID, &dependsOn); err != nil {
			return fmt.Errorf("scan dependency: %w", err)
		}
		i := index[taskID]
		tasks[i].Dependencies = append(tasks[i].Dependencies, dependsOn)
	}
	return rows.Err()
}

// GetTask retrieves a task of a project by id.
func (s *Store) GetTask(ctx context.Context, projectID, id string) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND project_id = ?`, id, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	tasks := []models.Task{t}
	if err := s.attachDependencies(ctx, tasks); err != nil {
		return models.Task{}, err
	}
	return tasks[0], nil
}

// CreateTask inserts a new task for a project.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return models.Task{}, fmt.Errorf("%w: task title must not be empty", ErrInvalid)
	}
	if t.StoryPoints < 0 {
		return models.Task{}, fmt.Errorf("%w: story points must not be negative", ErrInvalid)
	}
	if _, ok := models.ValidTaskStatuses[t.Status]; !ok {
		t.Status = models.TaskTodo
	}
	if _, err := s.GetProject(ctx, t.ProjectID); err != nil {
		return models.Task{}, err
	}

	t.ID = uuid.NewString()
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	t.CompletedAt = nil
	if t.Status == models.TaskCompleted {
		t.CompletedAt = &now
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkSprint(ctx, tx, t.ProjectID, t.SprintID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.ProjectID, nullString(t.SprintID), t.Title, strings.TrimSpace(t.Description), t.AssignedTo,
			t.StoryPoints, string(t.Status), nullTime(t.DueDate), nullTime(t.CompletedAt), t.CreatedAt, t.UpdatedAt); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return replaceDependencies(ctx, tx, t.ProjectID, t.ID, t.Dependencies)
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, t.ProjectID, t.ID)
}

// UpdateTask applies changes to a task. CompletedAt is stamped the first
// time the task enters COMPLETED and never changes afterwards, even when
// concurrent updates race on the same task.
func (s *Store) UpdateTask(ctx context.Context, projectID, id string, changes TaskUpdate) (models.Task, error) {
	t, err := s.GetTask(ctx, projectID, id)
	if err != nil {
		return models.Task{}, err
	}

	if changes.Title != nil && strings.TrimSpace(*changes.Title) != "" {
		t.Title = strings.TrimSpace(*changes.Title)
	}
	if changes.Description != nil {
		t.Description = strings.TrimSpace(*changes.Description)
	}
	if changes.AssignedTo != nil {
		t.AssignedTo = *changes.AssignedTo
	}
	if changes.SprintID != nil {
		t.SprintID = *changes.SprintID
	}
	if changes.StoryPoints != nil {
		if *changes.StoryPoints < 0 {
			return models.Task{}, fmt.Errorf("%w: story points must not be negative", ErrInvalid)
		}
		t.StoryPoints = *changes.StoryPoints
	}
	if changes.DueDate != nil {
		t.DueDate = changes.DueDate
	} else if changes.ClearDueDate {
		t.DueDate = nil
	}

	now := s.now()
	if changes.Status != nil {
		if _, ok := models.ValidTaskStatuses[*changes.Status]; !ok {
			return models.Task{}, fmt.Errorf("%w: unknown task status %q", ErrInvalid, *changes.Status)
		}
		if *changes.Status == models.TaskCompleted && t.Status != models.TaskCompleted && t.CompletedAt == nil {
			t.CompletedAt = &now
		}
		t.Status = *changes.Status
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkSprint(ctx, tx, projectID, t.SprintID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET sprint_id = ?, title = ?, description = ?, assigned_to = ?, story_points = ?,
            status = ?, due_date = ?, completed_at = COALESCE(completed_at, ?), updated_at = ? WHERE id = ? AND project_id = ?`,
			nullString(t.SprintID), t.Title, t.Description, t.AssignedTo, t.StoryPoints,
			string(t.Status), nullTime(t.DueDate), nullTime(t.CompletedAt), now, id, projectID); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if changes.Dependencies == nil {
			return nil
		}
		return replaceDependencies(ctx, tx, projectID, id, *changes.Dependencies)
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, projectID, id)
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, projectID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affectedOne(res, "task "+id)
}

func checkSprint(ctx context.Context, tx *sql.Tx, projectID, sprintID string) error {
	if sprintID == "" {
		return nil
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sprints WHERE id = ? AND project_id = ?`, sprintID, projectID).Scan(&n); err != nil {
		return fmt.Errorf("check sprint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: sprint %s is not part of project", ErrInvalid, sprintID)
	}
	return nil
}

// replaceDependencies sets the dependency set of taskID. Dependencies must
// be other tasks of the same project.
func replaceDependencies(ctx context.Context, tx *sql.Tx, projectID, taskID string, deps []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear dependencies: %w", err)
	}
	seen := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		if _, dup := seen[dep]; dup {
			continue
		}
		seen[dep] = struct{}{}
		if dep == taskID {
			return fmt.Errorf("%w: task cannot depend on itself", ErrInvalid)
		}
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ? AND project_id = ?`, dep, projectID).Scan(&n); err != nil {
			return fmt.Errorf("check dependency: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: dependency %s is not part of project", ErrInvalid, dep)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_dependencies(task_id, depends_on) VALUES(?, ?)`, taskID, dep); err != nil {
			return fmt.Errorf("insert dependency: %w", err)
		}
	}
	return nil
}
