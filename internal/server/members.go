package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scrumboard/internal/roles"
)

type memberRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	ProjectRole string `json:"project_role" binding:"required,projectrole"`
}

type memberRoleRequest struct {
	ProjectRole string `json:"project_role" binding:"required,projectrole"`
}

func (s *Server) handleListMembers(c *gin.Context) {
	members, err := s.store.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}

// handleAddMember grants a user a role in the project. A user holds at most
// one membership per project.
func (s *Server) handleAddMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	member, err := s.store.AddMember(c.Request.Context(), c.Param("id"), req.UserID, roles.ProjectRole(req.ProjectRole))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"member": member})
}

func (s *Server) handleUpdateMember(c *gin.Context) {
	var req memberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	member, err := s.store.UpdateMemberRole(c.Request.Context(), c.Param("id"), c.Param("userId"), roles.ProjectRole(req.ProjectRole))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"member": member})
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	if err := s.store.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "removed"})
}
