package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"scrumboard/internal/models"
	"scrumboard/internal/progress"
	"scrumboard/internal/roles"
	"scrumboard/internal/storage/sqlite"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status" binding:"omitempty,projectstatus"`
}

// handleListProjects returns every project to project managers and admins,
// and the projects a user belongs to otherwise.
func (s *Server) handleListProjects(c *gin.Context) {
	session := sessionFrom(c)
	var (
		projects []models.Project
		err      error
	)
	if session.IsAtLeast(roles.ProjectManager) {
		projects, err = s.store.ListProjects(c.Request.Context())
	} else {
		projects, err = s.store.ListProjectsForUser(c.Request.Context(), session.UserID)
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleCreateProject creates a new project owned by the caller.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), req.Name, req.Description, sessionFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project, "access": resolutionFrom(c)})
}

// handleProjectAccess reports the caller's effective role in a project so
// views can show or hide controls.
func (s *Server) handleProjectAccess(c *gin.Context) {
	res := s.resolver.Resolve(c.Request.Context(), *sessionFrom(c), c.Param("id"))
	respondSuccess(c, http.StatusOK, gin.H{"access": res})
}

// handleUpdateProject renames a project or changes its status.
func (s *Server) handleUpdateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	project, err := s.store.UpdateProject(c.Request.Context(), c.Param("id"), req.Name, req.Description, models.ProjectStatus(req.Status))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject removes a project and all related records.
func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.store.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleProjectProgress recomputes completion over the current task set.
// A failed task fetch degrades to an unset progress.
func (s *Server) handleProjectProgress(c *gin.Context) {
	projectID := c.Param("id")
	tasks, err := s.store.ListTasks(c.Request.Context(), sqlite.TaskFilter{ProjectID: projectID})
	degraded := err != nil
	if err != nil {
		s.logger.Warn("progress fetch failed", slog.String("project", projectID), slog.String("error", err.Error()))
		tasks = nil
	}

	var pct *int
	if v, ok := progress.ProjectCompletion(projectID, tasks); ok {
		pct = &v
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"project_id": projectID,
		"progress":   pct,
		"task_count": len(tasks),
		"degraded":   degraded,
	})
}

// refreshProgress recomputes and stores a project's progress after a task
// mutation. Failures are logged; the mutation itself already succeeded.
func (s *Server) refreshProgress(ctx context.Context, projectID string) {
	tasks, err := s.store.ListTasks(ctx, sqlite.TaskFilter{ProjectID: projectID})
	if err != nil {
		s.logger.Warn("progress refresh skipped", slog.String("project", projectID), slog.String("error", err.Error()))
		return
	}
	var pct *int
	if v, ok := progress.ProjectCompletion(projectID, tasks); ok {
		pct = &v
	}
	if err := s.store.SetProjectProgress(ctx, projectID, pct); err != nil {
		s.logger.Warn("progress store failed", slog.String("project", projectID), slog.String("error", err.Error()))
	}
}
