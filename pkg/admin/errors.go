package admin

import (
	"errors"
	"net/http"

	"github.com/example/storefront/pkg/apperr"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func badRequest(field, message string) error {
	return &apperr.ValidationError{Field: field, Message: message}
}

func uuidParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return uuid.Nil, badRequest("uuid", "malformed identifier")
	}
	return id, nil
}

func bindBody(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return badRequest("body", err.Error())
	}
	return nil
}

// writeError maps store errors onto HTTP statuses.
func (s *Site) writeError(c *gin.Context, err error) {
	var (
		ve *apperr.ValidationError
		re *apperr.ReferentialError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &re):
		body := gin.H{"error": err.Error()}
		if re.Field != "" {
			body["field"] = re.Field
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	default:
		s.logger.Error("Admin request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
