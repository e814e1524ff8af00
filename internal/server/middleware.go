package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"scrumboard/internal/access"
	"scrumboard/internal/auth"
	"scrumboard/internal/storage/sqlite"
)

const (
	sessionKey    = "session"
	resolutionKey = "resolution"
)

// authenticate turns a bearer token into a session. Requests without a
// valid token carry no session; the guard decides what that means.
func (s *Server) authenticate(c *gin.Context) {
	token, err := auth.FromHeader(c.GetHeader("Authorization"))
	if err != nil {
		c.Next()
		return
	}
	userID, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("rejected token", slog.String("error", err.Error()))
		c.Next()
		return
	}
	user, err := s.store.GetUser(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, sqlite.ErrNotFound) {
			s.logger.Error("load session user", slog.String("user", userID), slog.String("error", err.Error()))
		}
		c.Next()
		return
	}
	c.Set(sessionKey, &access.Session{UserID: user.ID, GlobalRole: user.GlobalRole})
	c.Next()
}

// require runs the access guard for route. The project id comes from the
// :id path parameter and the requested location from the request URI.
// The evaluation is tied to the request; if the client goes away while the
// membership lookup is pending, the evaluation is abandoned and the chain
// stops without a verdict.
func (s *Server) require(route access.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := route
		r.Location = c.Request.URL.RequestURI()
		r.ProjectID = c.Param("id")

		ctx := c.Request.Context()
		ev := s.guard.Start(ctx, sessionFrom(c), r)
		v, err := ev.Wait(ctx)
		if err != nil {
			ev.Cancel()
			s.logger.Debug("access evaluation abandoned",
				slog.String("evaluation", ev.ID),
				slog.String("location", r.Location),
				slog.String("error", err.Error()))
			c.Abort()
			return
		}
		if v.State != access.Allowed {
			respondDenied(c, v)
			return
		}
		c.Set(resolutionKey, v.Resolution)
		c.Next()
	}
}

// respondDenied converts a guard verdict into a redirect instruction for
// the client.
func respondDenied(c *gin.Context, v access.Verdict) {
	status := http.StatusForbidden
	if errors.Is(v.Reason, access.ErrUnauthenticated) {
		status = http.StatusUnauthorized
	}
	msg := http.StatusText(status)
	if v.Reason != nil {
		msg = v.Reason.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":    msg,
		"state":    v.State,
		"redirect": v.RedirectTo,
	})
}

func sessionFrom(c *gin.Context) *access.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*access.Session)
	return session
}

// resolutionFrom returns the project access resolved by require, if any.
func resolutionFrom(c *gin.Context) *access.Resolution {
	v, ok := c.Get(resolutionKey)
	if !ok {
		return nil
	}
	res, ok := v.(access.Resolution)
	if !ok || res.ProjectID == "" {
		return nil
	}
	return &res
}
