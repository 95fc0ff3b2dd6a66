package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"go.uber.org/zap"
)

const userKey = "user"

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if user, ok := currentUser(c); ok {
			fields = append(fields, zap.String("user_id", user.ID.String()))
		}
		logger.Info("HTTP request", fields...)
	}
}

// authenticate resolves the bearer token to a user and stores it on the
// context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			s.respondError(c, database.NewError(database.KindUnauthorized, "not authenticated"))
			return
		}

		userID, err := s.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			s.respondError(c, database.ErrInvalidToken)
			return
		}

		user, err := s.loadUser(c.Request.Context(), userID)
		if err != nil {
			if database.KindOf(err) == database.KindNotFound {
				err = database.ErrInvalidToken
			}
			s.respondError(c, err)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func (s *Server) requireRoles(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := currentUser(c)
		if err := auth.RequireRole(user, allowed...); err != nil {
			s.respondError(c, err)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// mustUser returns the authenticated user. Only valid behind authenticate.
func mustUser(c *gin.Context) *models.User {
	user, _ := currentUser(c)
	return user
}
