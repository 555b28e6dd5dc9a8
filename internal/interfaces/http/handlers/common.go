// Package handlers implements the HTTP endpoints of the reconciliation API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NERRecon/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError maps err to its HTTP status.  Server-side failures are
// masked with the default message for their code; the full error is
// attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: code.String()}
	var appErr *errors.AppError
	switch {
	case status >= http.StatusInternalServerError:
		resp.Message = errors.DefaultMessageForCode(code)
		if code == errors.CodeUnknown {
			resp.Code = errors.ErrCodeInternal.String()
			resp.Message = errors.DefaultMessageForCode(errors.ErrCodeInternal)
		}
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	default:
		resp.Message = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

// badRequest responds 400 for a request that could not be bound.
func badRequest(c *gin.Context, err error) {
	respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when it is absent or not a number and clamping it to max when max > 0.
func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		v = def
	}
	if max > 0 && v > max {
		v = max
	}
	return v
}

//Personal.AI order the ending
