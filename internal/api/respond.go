package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/claimledger/internal/claims"
)

// Codes the API adds on top of claims.ErrorCode.
const (
	codeRateLimited = "RATE_LIMITED"
	codeUnsupported = "UNSUPPORTED"
	codeInternal    = "INTERNAL"
)

// Response is the envelope of every JSON body.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error member of Response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Status: "ok", Data: data})
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error:  &ResponseError{Code: code, Message: message},
	})
}

// statusFor maps claim error codes to HTTP statuses.
func statusFor(code claims.ErrorCode) int {
	switch code {
	case claims.CodeUnauthorized:
		return http.StatusUnauthorized
	case claims.CodeNotFound:
		return http.StatusNotFound
	case claims.CodeInvalidArgument:
		return http.StatusBadRequest
	case claims.CodeInvalidTransition:
		return http.StatusConflict
	case claims.CodeStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err. Store failures are reported without their cause.
func (s *Server) respondError(c *gin.Context, err error) {
	var ce *claims.Error
	if !errors.As(err, &ce) {
		s.logger.Error("unexpected handler error", "error", err)
		abortWithError(c, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	msg := ce.Message
	if ce.Code == claims.CodeStore {
		s.logger.Error("store failure", "error", err)
		msg = "store failure"
	}
	abortWithError(c, statusFor(ce.Code), string(ce.Code), msg)
}
