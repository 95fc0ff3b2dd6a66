package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *Server) listUsers(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		s.respondError(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", 20)
	if err != nil {
		s.respondError(c, err)
		return
	}
	page, pageSize = store.NormalizePage(page, pageSize, 20)

	result, err := store.ListUsers(c.Request.Context(), s.db, page, pageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) setUserRole(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		s.respondError(c, database.Validation("role must be one of: admin, seller, customer"))
		return
	}

	user, err := store.SetUserRole(c.Request.Context(), s.db, id, role)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
