package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"scrumboard/internal/models"
	"scrumboard/internal/progress"
	"scrumboard/internal/roles"
	"scrumboard/internal/storage/sqlite"
)

type userRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
	GlobalRole  string `json:"global_role" binding:"omitempty,globalrole"`
}

type roleRequest struct {
	GlobalRole string `json:"global_role" binding:"required,globalrole"`
}

// handleMe returns the signed-in user and the permissions of their global role.
func (s *Server) handleMe(c *gin.Context) {
	session := sessionFrom(c)
	user, err := s.store.GetUser(c.Request.Context(), session.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"user":        user,
		"permissions": roles.GlobalPermissions(session.GlobalRole).Sorted(),
	})
}

// handleCreateUser registers an account on behalf of an admin.
func (s *Server) handleCreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	user, err := s.store.CreateUser(c.Request.Context(), models.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		GlobalRole:  roles.GlobalRole(req.GlobalRole),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// handleSetUserRole changes a user's global role.
func (s *Server) handleSetUserRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	user, err := s.store.SetUserRole(c.Request.Context(), c.Param("userId"), roles.GlobalRole(req.GlobalRole))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleDashboard summarizes the caller's assigned tasks and counts the
// active projects they belong to. Fetch failures degrade to zero counts.
func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID := sessionFrom(c).UserID
	degraded := false

	tasks, err := s.store.ListTasks(ctx, sqlite.TaskFilter{AssignedTo: userID})
	if err != nil {
		s.logger.Warn("dashboard task fetch failed", slog.String("user", userID), slog.String("error", err.Error()))
		tasks, degraded = nil, true
	}

	activeProjects := 0
	projects, err := s.store.ListProjectsForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("dashboard project fetch failed", slog.String("user", userID), slog.String("error", err.Error()))
		degraded = true
	}
	for _, p := range projects {
		if p.Status == models.ProjectActive {
			activeProjects++
		}
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"summary":         progress.SummarizeAssignments(userID, tasks, s.now()),
		"active_projects": activeProjects,
		"degraded":        degraded,
	})
}
