package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"scrumboard/internal/models"
	"scrumboard/internal/progress"
	"scrumboard/internal/storage/sqlite"
)

type sprintRequest struct {
	Name         string `json:"name" binding:"required"`
	Goal         string `json:"goal"`
	StartDate    string `json:"start_date" binding:"required,datetime=2006-01-02"`
	DurationDays int    `json:"duration_days" binding:"min=0,max=366"`
}

func (s *Server) handleListSprints(c *gin.Context) {
	sprints, err := s.store.ListSprints(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprints": sprints})
}

// handleCreateSprint plans a sprint. New sprints start in PLANNED.
func (s *Server) handleCreateSprint(c *gin.Context) {
	var req sprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	start, _ := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)

	sprint, err := s.store.CreateSprint(c.Request.Context(), models.Sprint{
		ProjectID:    c.Param("id"),
		Name:         req.Name,
		Goal:         req.Goal,
		StartDate:    start,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"sprint": sprint})
}

func (s *Server) handleStartSprint(c *gin.Context) {
	s.transitionSprint(c, models.SprintActive)
}

func (s *Server) handleCompleteSprint(c *gin.Context) {
	s.transitionSprint(c, models.SprintCompleted)
}

func (s *Server) transitionSprint(c *gin.Context, to models.SprintStatus) {
	sprint, err := s.store.TransitionSprint(c.Request.Context(), c.Param("id"), c.Param("sprintId"), to)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

// sprintBoard is a sprint together with the tasks assigned to it.
type sprintBoard struct {
	sprint   models.Sprint
	tasks    []models.Task
	degraded bool
}

// loadSprintBoard loads a sprint and its tasks concurrently. A failed task
// fetch marks the board degraded instead of failing the request.
func (s *Server) loadSprintBoard(c *gin.Context) (sprintBoard, error) {
	projectID, sprintID := c.Param("id"), c.Param("sprintId")

	var (
		board   sprintBoard
		taskErr error
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		board.sprint, err = s.store.GetSprint(ctx, projectID, sprintID)
		return err
	})
	g.Go(func() error {
		board.tasks, taskErr = s.store.ListTasks(ctx, sqlite.TaskFilter{ProjectID: projectID, SprintID: sprintID})
		return nil
	})
	if err := g.Wait(); err != nil {
		return sprintBoard{}, err
	}
	if taskErr != nil {
		s.logger.Warn("sprint task fetch failed",
			slog.String("project", projectID),
			slog.String("sprint", sprintID),
			slog.String("error", taskErr.Error()))
		board.tasks = nil
		board.degraded = true
	}
	return board, nil
}

// handleBurndown renders the ideal and actual burndown series of a sprint.
// When tasks cannot be loaded the chart is an all-zero series marked
// degraded.
func (s *Server) handleBurndown(c *gin.Context) {
	board, err := s.loadSprintBoard(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"sprint":   board.sprint,
		"end_date": board.sprint.EndDate(),
		"burndown": progress.ComputeBurndown(board.sprint, board.tasks),
		"degraded": board.degraded,
	})
}

// handleSprintSummary totals tasks and points for a sprint.
func (s *Server) handleSprintSummary(c *gin.Context) {
	board, err := s.loadSprintBoard(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"sprint":   board.sprint,
		"summary":  progress.SummarizeSprint(board.tasks),
		"degraded": board.degraded,
	})
}
