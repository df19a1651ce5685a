package handler

import (
	"errors"
	"net/http"

	"contractflow/pkg/apperr"
	"contractflow/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// writeError maps service errors onto HTTP statuses: malformed input is 400,
// business-rule refusals are 409, missing rows are 404, anything else is 500.
func writeError(c *gin.Context, err error) {
	var ve apperr.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, ve.Code, ve.Message))
		return
	}

	var pe apperr.PolicyError
	if errors.As(err, &pe) {
		c.JSON(http.StatusConflict, response.ErrorWithCode(http.StatusConflict, pe.Code, pe.Message))
		return
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
}

// actorID returns the authenticated user's id stored by the auth middleware.
func actorID(c *gin.Context) string {
	userID, _ := c.Get("userID")
	id, _ := userID.(string)
	return id
}
