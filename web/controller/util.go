package controller

import (
	"errors"
	"net/http"

	"github.com/postboard/postboard/config"
	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/web/entity"
	"github.com/postboard/postboard/web/locale"
	"github.com/postboard/postboard/web/service"
	"github.com/postboard/postboard/web/session"

	"github.com/gin-gonic/gin"
)

// getRemoteIp is the client address as gin resolves it: forwarded headers
// count only when the peer is a configured trusted proxy.
func getRemoteIp(c *gin.Context) string {
	return c.ClientIP()
}

// pureJsonMsg sends a pure JSON message response with custom status code.
func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

// html renders an HTML template with status 200.
func html(c *gin.Context, name string, title string, data gin.H) {
	htmlStatus(c, http.StatusOK, name, title, data)
}

// htmlStatus renders an HTML template; title is a translation key.
func htmlStatus(c *gin.Context, code int, name string, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = title
	data["request_uri"] = c.Request.RequestURI
	data["T"] = func(key string, params ...string) string {
		return I18nWeb(c, key, params...)
	}
	c.HTML(code, name, getContext(data))
}

// getContext adds version and other context data to the provided gin.H.
func getContext(h gin.H) gin.H {
	a := gin.H{
		"cur_ver": config.GetVersion(),
	}
	for key, value := range h {
		a[key] = value
	}
	return a
}

// isAjax checks if the request is an AJAX request.
func isAjax(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

// I18nWeb translates key for the language negotiated for this request.
func I18nWeb(c *gin.Context, key string, params ...string) string {
	return locale.I18n(c, key, params...)
}

// errorStatus maps service and session errors to an HTTP status and the
// translation key of the message shown to the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrAuthFailure):
		return http.StatusUnauthorized, "errors.authFailure"
	case errors.Is(err, session.ErrUnauthenticated):
		return http.StatusUnauthorized, "errors.loginAgain"
	case errors.Is(err, service.ErrDuplicateUser):
		return http.StatusConflict, "errors.duplicateUser"
	case errors.Is(err, service.ErrInvalidUser):
		return http.StatusBadRequest, "errors.invalidUser"
	case errors.Is(err, service.ErrInvalidPost):
		return http.StatusBadRequest, "errors.invalidPost"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "errors.notFound"
	default:
		return http.StatusInternalServerError, "errors.internal"
	}
}

// abortWithError ends the request with the status err maps to. Errors that
// do not map to a client mistake are logged.
func abortWithError(c *gin.Context, err error) {
	code, key := errorStatus(err)
	if code == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		_ = c.Error(err)
	}
	msg := I18nWeb(c, key)
	if isAjax(c) {
		pureJsonMsg(c, code, false, msg)
	} else {
		c.String(code, msg)
	}
	c.Abort()
}
