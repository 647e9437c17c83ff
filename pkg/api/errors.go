package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relayd/relayd/pkg/model"
)

// statusFor derives the HTTP status code for err per the error taxonomy:
// AlreadyExists variants map to 409; configuration, not-found, and
// validation errors map to 400; everything else maps to 500.
func statusFor(err error) int {
	var svcErr *model.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.Kind == model.ServiceAlreadyExists {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}
	var userErr *model.UserError
	if errors.As(err, &userErr) {
		if userErr.Kind == model.UserAlreadyExists {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}
	var proxyErr *model.ProxyError
	if errors.As(err, &proxyErr) {
		if proxyErr.Kind == model.ProxyAlreadyRunning {
			return http.StatusInternalServerError
		}
		return http.StatusBadRequest
	}
	var confErr *model.ConfError
	if errors.As(err, &confErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes the uniform {"message": "..."} error body at the
// status derived from err.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), model.ErrorResponse{Message: err.Error()})
}
