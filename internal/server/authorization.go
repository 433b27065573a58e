package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/bookkeeper/internal/authorization"
)

// authorize gates a route on the caller's role. It must run after AuthRequired.
func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	user, ok := currentUser(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(
		c.Request.Context(),
		authorization.UserActor(user.ID.String()),
		strings.TrimSpace(object),
		strings.TrimSpace(action),
	)
}
