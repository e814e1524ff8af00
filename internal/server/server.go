package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"scrumboard/internal/access"
	"scrumboard/internal/auth"
	"scrumboard/internal/roles"
	"scrumboard/internal/storage/sqlite"
)

// Options wires the server to its collaborators.
type Options struct {
	Store    *sqlite.Store
	Verifier *auth.Verifier
	Resolver *access.Resolver
	Paths    access.Paths
	Logger   *slog.Logger
}

// Server provides HTTP handlers for the Scrum board backend.
type Server struct {
	engine   *gin.Engine
	store    *sqlite.Store
	verifier *auth.Verifier
	resolver *access.Resolver
	guard    *access.Guard
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs the HTTP server with routes and middleware configured.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registerValidators(logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:   router,
		store:    opts.Store,
		verifier: opts.Verifier,
		resolver: opts.Resolver,
		guard:    access.NewGuard(opts.Resolver, opts.Paths, logger),
		logger:   logger,
		now:      time.Now,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together. Every route but the
// health check passes through the access guard.
func (s *Server) registerRoutes() {
	var (
		anyProjectRole = access.Route{AllowedProjectRoles: roles.ProjectRoles()}
		signedIn       = access.Route{}
	)
	need := func(p roles.Permission) gin.HandlerFunc {
		return s.require(access.Route{RequiredPermission: p})
	}

	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)

	api.Use(s.authenticate)
	{
		api.GET("/me", s.require(signedIn), s.handleMe)
		api.GET("/me/dashboard", s.require(signedIn), s.handleDashboard)

		users := api.Group("/users", s.require(access.Route{AllowedRoles: []roles.GlobalRole{roles.Admin}}))
		{
			users.POST("", s.handleCreateUser)
			users.PUT(":userId/role", s.handleSetUserRole)
		}

		projects := api.Group("/projects")
		{
			projects.GET("", s.require(signedIn), s.handleListProjects)
			projects.POST("", s.require(access.Route{AllowedRoles: []roles.GlobalRole{roles.Admin, roles.ProjectManager}}), s.handleCreateProject)

			projects.GET(":id", s.require(anyProjectRole), s.handleGetProject)
			projects.GET(":id/access", s.require(signedIn), s.handleProjectAccess)
			projects.PUT(":id", need(roles.ManageProject), s.handleUpdateProject)
			projects.DELETE(":id", need(roles.ManageProject), s.handleDeleteProject)
			projects.GET(":id/progress", need(roles.ViewAnalytics), s.handleProjectProgress)

			projects.GET(":id/members", s.require(anyProjectRole), s.handleListMembers)
			projects.POST(":id/members", need(roles.ManageMembers), s.handleAddMember)
			projects.PUT(":id/members/:userId", need(roles.ManageMembers), s.handleUpdateMember)
			projects.DELETE(":id/members/:userId", need(roles.ManageMembers), s.handleRemoveMember)

			projects.GET(":id/tasks", s.require(anyProjectRole), s.handleListTasks)
			projects.POST(":id/tasks", need(roles.CreateTasks), s.handleCreateTask)
			projects.PUT(":id/tasks/:taskId", need(roles.UpdateTasks), s.handleUpdateTask)
			projects.DELETE(":id/tasks/:taskId", need(roles.DeleteTasks), s.handleDeleteTask)

			projects.GET(":id/sprints", s.require(anyProjectRole), s.handleListSprints)
			projects.POST(":id/sprints", need(roles.ManageTasks), s.handleCreateSprint)
			projects.POST(":id/sprints/:sprintId/start", need(roles.ManageTasks), s.handleStartSprint)
			projects.POST(":id/sprints/:sprintId/complete", need(roles.ManageTasks), s.handleCompleteSprint)
			projects.GET(":id/sprints/:sprintId/burndown", need(roles.ViewAnalytics), s.handleBurndown)
			projects.GET(":id/sprints/:sprintId/summary", need(roles.ViewAnalytics), s.handleSprintSummary)
		}
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, sqlite.ErrDuplicateMembership), errors.Is(err, sqlite.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail responds with the status matching err.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
