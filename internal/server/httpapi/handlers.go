package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

type createUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

type createUserResponse struct {
	*models.User
	Partial bool     `json:"partial"`
	Failed  []string `json:"failed_side_effects,omitempty"`
}

type avatarResponse struct {
	Image string `json:"image"`
	Cache string `json:"cache"`
}

func userIDParam(c *gin.Context) (int64, error) {
	raw := c.Param("userId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: userId %q is not a positive integer", common.ErrValidation, raw)
	}
	return id, nil
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		s.writeError(c, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	fields, err := models.NewUserFields(req.Email, req.FirstName, req.LastName, req.Avatar)
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.users.Create(c.Request.Context(), models.NewUser{UserFields: fields})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createUserResponse{
		User:    res.User,
		Partial: res.Partial(),
		Failed:  res.Failed(),
	})
}

func (s *Server) getUser(c *gin.Context) {
	id, err := userIDParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	u, err := s.users.FindOne(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) getAvatar(c *gin.Context) {
	id, err := userIDParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.avatars.GetOrPopulate(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("X-Cache", string(res.Status))
	c.Header("ETag", `"`+res.Digest+`"`)
	c.JSON(http.StatusOK, avatarResponse{Image: res.Image, Cache: string(res.Status)})
}

func (s *Server) deleteAvatar(c *gin.Context) {
	id, err := userIDParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	deleted, err := s.avatars.Delete(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Avatar successfully deleted."})
}
