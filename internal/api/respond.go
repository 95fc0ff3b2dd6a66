package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/safar/storefront/internal/database"
	"go.uber.org/zap"
)

var kindStatus = map[database.ErrorKind]int{
	database.KindNotFound:     http.StatusNotFound,
	database.KindValidation:   http.StatusBadRequest,
	database.KindConflict:     http.StatusConflict,
	database.KindForbidden:    http.StatusForbidden,
	database.KindUnauthorized: http.StatusUnauthorized,
	database.KindInternal:     http.StatusInternalServerError,
}

func statusOf(kind database.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(c *gin.Context, err error) {
	kind := database.KindOf(err)
	msg := err.Error()
	if kind == database.KindInternal {
		s.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = "internal server error"
	}

	c.AbortWithStatusJSON(statusOf(kind), gin.H{
		"error": msg,
		"code":  kind.String(),
	})
}

// bindError turns a gin binding failure into a validation error that
// names the first offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return database.Validation("invalid " + toSnake(fe.Field()) + ": failed " + fe.Tag() + " check")
	}
	return database.Validation("invalid request body")
}

func toSnake(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 && (s[i-1] < 'A' || s[i-1] > 'Z') {
				out = append(out, '_')
			}
			ch += 'a' - 'A'
		}
		out = append(out, ch)
	}
	return string(out)
}
