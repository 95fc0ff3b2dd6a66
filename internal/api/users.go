package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/storage"
	"github.com/safar/storefront/internal/store"
)

type registerRequest struct {
	Email    string  `json:"email" binding:"required,email,max=320"`
	Password string  `json:"password" binding:"required,min=6,max=72"`
	Name     *string `json:"name" binding:"omitempty,max=200"`
}

type loginRequest struct {
	Email    string `json:"email" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=200"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	user, err := store.CreateUser(c.Request.Context(), s.db, req.Email, hash, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// login accepts a JSON body or an OAuth2 password-style form where the
// email travels as username.
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	var err error
	if strings.HasPrefix(c.ContentType(), "application/json") {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBind(&req)
	}
	if err != nil {
		s.respondError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	user, err := store.GetUserByEmail(ctx, s.db, req.Email)
	if err != nil {
		if database.KindOf(err) == database.KindNotFound {
			err = database.ErrInvalidCredentials
		}
		s.respondError(c, err)
		return
	}

	ok, err := s.passwords.Verify(user.PasswordHash, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		s.respondError(c, database.ErrInvalidCredentials)
		return
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, mustUser(c))
}

func (s *Server) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	var hash *string
	if req.Password != nil {
		h, err := s.passwords.Hash(*req.Password)
		if err != nil {
			s.respondError(c, err)
			return
		}
		hash = &h
	}

	user, err := store.UpdateProfile(c.Request.Context(), s.db, mustUser(c).ID, req.Name, hash)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) uploadProfilePicture(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, database.Validation("file is required"))
		return
	}
	if header.Size > s.cfg.Upload.MaxBytes {
		s.respondError(c, storage.ErrFileTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer file.Close()

	user := mustUser(c)
	url, err := s.pictures.Save(user.ID, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.respondError(c, err)
		return
	}

	updated, err := store.SetProfilePicture(c.Request.Context(), s.db, user.ID, url)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}
