package controller

import (
	"errors"
	"net/http"

	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/web/entity"
	"github.com/postboard/postboard/web/service"
	"github.com/postboard/postboard/web/session"

	"github.com/gin-gonic/gin"
)

// IndexController handles login, signup and logout.
type IndexController struct {
	BaseController

	userService *service.UserService
}

// NewIndexController creates a new IndexController and initializes its routes.
// Handlers in limit run before the credential posts.
func NewIndexController(g *gin.RouterGroup, sessions *session.Manager, users *service.UserService, limit ...gin.HandlerFunc) *IndexController {
	a := &IndexController{
		BaseController: BaseController{sessions: sessions},
		userService:    users,
	}
	a.initRouter(g, limit)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup, limit []gin.HandlerFunc) {
	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limit...), h)
	}

	g.GET("/", a.index)
	g.POST("/", limited(a.login)...)
	g.GET("/signup", a.signupPage)
	g.POST("/signup", limited(a.signup)...)
	g.GET("/logout", a.checkLogin, a.logout)
}

// index shows the login form, or sends a logged-in user to the post list.
func (a *IndexController) index(c *gin.Context) {
	if _, err := a.sessions.Require(c); err == nil {
		c.Redirect(http.StatusFound, "/index")
		return
	} else if !errors.Is(err, session.ErrUnauthenticated) {
		logger.Warning("Unable to restore session:", err)
	}
	html(c, "login.html", "pages.login.title", nil)
}

func (a *IndexController) login(c *gin.Context) {
	var form entity.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		htmlStatus(c, http.StatusBadRequest, "login.html", "pages.login.title", gin.H{
			"error":     I18nWeb(c, "errors.invalidForm"),
			"user_name": form.UserName,
		})
		return
	}

	user, err := a.userService.CheckUser(c.Request.Context(), form.UserName, form.Password)
	if errors.Is(err, service.ErrAuthFailure) {
		logger.Warningf("wrong user name: %q, IP: %q", form.UserName, getRemoteIp(c))
		htmlStatus(c, http.StatusUnauthorized, "login.html", "pages.login.title", gin.H{
			"error":     I18nWeb(c, "errors.authFailure"),
			"user_name": form.UserName,
		})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	if _, err := a.sessions.Login(c, user.Id); err != nil {
		logger.Warning("Unable to save session:", err)
		abortWithError(c, err)
		return
	}
	logger.Infof("%s logged in successfully, Ip Address: %s", user.UserName, getRemoteIp(c))
	c.Redirect(http.StatusFound, "/index")
}

func (a *IndexController) signupPage(c *gin.Context) {
	html(c, "signup.html", "pages.signup.title", nil)
}

func (a *IndexController) signup(c *gin.Context) {
	var form entity.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		htmlStatus(c, http.StatusBadRequest, "signup.html", "pages.signup.title", gin.H{
			"error":     I18nWeb(c, "errors.invalidUser"),
			"user_name": form.UserName,
		})
		return
	}

	id, err := a.userService.Signup(c.Request.Context(), form.UserName, form.Password)
	if err != nil {
		code, key := errorStatus(err)
		if code == http.StatusInternalServerError {
			abortWithError(c, err)
			return
		}
		htmlStatus(c, code, "signup.html", "pages.signup.title", gin.H{
			"error":     I18nWeb(c, key, "Name=="+form.UserName),
			"user_name": form.UserName,
		})
		return
	}

	logger.Infof("user %d (%s) signed up, Ip Address: %s", id, form.UserName, getRemoteIp(c))
	c.Redirect(http.StatusFound, "/")
}

func (a *IndexController) logout(c *gin.Context) {
	user := session.GetLoginUser(c)
	if err := a.sessions.Logout(c); err != nil {
		logger.Warning("Unable to save session after clearing:", err)
	}
	if user != nil {
		logger.Infof("%s logged out successfully", user.UserName)
	}
	c.Redirect(http.StatusFound, "/")
}
