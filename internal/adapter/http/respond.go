package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pecorino-jp/ledger/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondWithError maps domain errors onto HTTP status codes.
func respondWithError(c *gin.Context, err error) {
	switch {
	case domain.IsArgument(err):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrDuplicateTransactionNumber):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotImplemented):
		c.JSON(http.StatusNotImplemented, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
