package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the structured error body:
// { "error": { "code": "bad_request", "message": "unsupported file type" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

// Conflict covers lifecycle violations such as starting a job that is
// not in DRAFT.
func Conflict(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusConflict, "conflict", msg)
}
