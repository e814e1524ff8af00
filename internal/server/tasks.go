package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"scrumboard/internal/models"
	"scrumboard/internal/storage/sqlite"
)

const dateLayout = "2006-01-02"

type taskRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	AssignedTo   *string  `json:"assigned_to"`
	SprintID     *string  `json:"sprint_id"`
	StoryPoints  *int     `json:"story_points" binding:"omitempty,min=0"`
	Status       *string  `json:"status" binding:"omitempty,taskstatus"`
	DueDate      *string  `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Dependencies []string `json:"dependencies" binding:"omitempty,dive,uuid"`
}

// handleListTasks fetches tasks for a project, optionally narrowed to one
// sprint with ?sprint=<id>.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context(), sqlite.TaskFilter{
		ProjectID: c.Param("id"),
		SprintID:  c.Query("sprint"),
	})
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask inserts a new task into a project column.
func (s *Server) handleCreateTask(c *gin.Context) {
	projectID := c.Param("id")

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Title == nil || *req.Title == "" {
		s.respondError(c, http.StatusBadRequest, errors.New("title is required"))
		return
	}

	task := models.Task{
		ProjectID:    projectID,
		Title:        *req.Title,
		Description:  getString(req.Description),
		AssignedTo:   getString(req.AssignedTo),
		SprintID:     getString(req.SprintID),
		Status:       models.TaskStatus(getString(req.Status)),
		Dependencies: req.Dependencies,
	}
	if req.StoryPoints != nil {
		task.StoryPoints = *req.StoryPoints
	}
	if due, ok := parseDate(req.DueDate); ok {
		task.DueDate = &due
	}

	created, err := s.store.CreateTask(c.Request.Context(), task)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.refreshProgress(c.Request.Context(), projectID)
	respondSuccess(c, http.StatusCreated, gin.H{"task": created})
}

// handleUpdateTask updates task fields such as status or story points.
// An empty due_date clears it.
func (s *Server) handleUpdateTask(c *gin.Context) {
	projectID := c.Param("id")

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	changes := sqlite.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		SprintID:    req.SprintID,
		StoryPoints: req.StoryPoints,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		changes.Status = &status
	}
	if req.DueDate != nil {
		if due, ok := parseDate(req.DueDate); ok {
			changes.DueDate = &due
		} else {
			changes.ClearDueDate = true
		}
	}
	if req.Dependencies != nil {
		changes.Dependencies = &req.Dependencies
	}

	task, err := s.store.UpdateTask(c.Request.Context(), projectID, c.Param("taskId"), changes)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.refreshProgress(c.Request.Context(), projectID)
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	projectID := c.Param("id")
	if err := s.store.DeleteTask(c.Request.Context(), projectID, c.Param("taskId")); err != nil {
		s.fail(c, err)
		return
	}
	s.refreshProgress(c.Request.Context(), projectID)
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// parseDate reads a validated YYYY-MM-DD value as a UTC midnight.
func parseDate(v *string) (time.Time, bool) {
	if v == nil || *v == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, *v, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
