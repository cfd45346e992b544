// Package controller provides the HTTP handlers of postboard: login, signup
// and logout on the index controller, post CRUD on the post controller.
package controller

import (
	"errors"
	"net/http"

	"github.com/postboard/postboard/web/session"

	"github.com/gin-gonic/gin"
)

// BaseController provides common functionality for all controllers, including authentication checks.
type BaseController struct {
	sessions *session.Manager
}

// checkLogin is a middleware that restores the logged-in user and turns
// everyone else away before the handler runs.
func (a *BaseController) checkLogin(c *gin.Context) {
	_, err := a.sessions.Require(c)
	if err != nil && !errors.Is(err, session.ErrUnauthenticated) {
		abortWithError(c, err)
		return
	}
	if err != nil {
		if isAjax(c) {
			pureJsonMsg(c, http.StatusUnauthorized, false, I18nWeb(c, "errors.loginAgain"))
		} else {
			c.Redirect(http.StatusFound, "/")
		}
		c.Abort()
		return
	}
	c.Next()
}
