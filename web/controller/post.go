package controller

import (
	"net/http"
	"strconv"

	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/util/common"
	"github.com/postboard/postboard/web/entity"
	"github.com/postboard/postboard/web/service"
	"github.com/postboard/postboard/web/session"

	"github.com/gin-gonic/gin"
)

const postIdKey = "post_id"

// postView is a post as the list page shows it.
type postView struct {
	Id        int
	Title     string
	Body      string
	CreatedAt string
}

// PostController serves the post list and the create, update and delete
// routes. Every route requires a login.
type PostController struct {
	BaseController

	postService *service.PostService
}

// NewPostController creates a new PostController and initializes its routes.
func NewPostController(g *gin.RouterGroup, sessions *session.Manager, posts *service.PostService) *PostController {
	a := &PostController{
		BaseController: BaseController{sessions: sessions},
		postService:    posts,
	}
	a.initRouter(g)
	return a
}

func (a *PostController) initRouter(g *gin.RouterGroup) {
	g.GET("/index", a.checkLogin, a.list)
	g.POST("/index", a.checkLogin, a.methodNotAllowed)
	g.GET("/create", a.checkLogin, a.createPage)
	g.POST("/create", a.checkLogin, a.create)

	// the id is parsed before the login check, so /abc/update is 404 for everyone
	g.GET("/:id/update", a.parseId, a.checkLogin, a.updatePage)
	g.POST("/:id/update", a.parseId, a.checkLogin, a.update)
	g.GET("/:id/delete", a.parseId, a.checkLogin, a.delete)
}

// parseId accepts unsigned decimal ids only.
func (a *PostController) parseId(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 31)
	if err != nil {
		abortWithError(c, service.ErrNotFound)
		return
	}
	c.Set(postIdKey, int(id))
	c.Next()
}

func (a *PostController) list(c *gin.Context) {
	posts, err := a.postService.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView{
			Id:        p.Id,
			Title:     p.Title,
			Body:      p.Body,
			CreatedAt: common.FormatTime(p.CreatedAt, a.postService.Location()),
		})
	}
	user := session.GetLoginUser(c)
	html(c, "index.html", "pages.index.title", gin.H{
		"posts":   views,
		"welcome": "Name==" + user.UserName,
	})
}

func (a *PostController) methodNotAllowed(c *gin.Context) {
	c.Header("Allow", http.MethodGet)
	c.String(http.StatusMethodNotAllowed, I18nWeb(c, "errors.methodNotAllowed"))
}

func (a *PostController) createPage(c *gin.Context) {
	html(c, "create.html", "pages.create.title", nil)
}

func (a *PostController) create(c *gin.Context) {
	var form entity.PostForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderInvalid(c, "create.html", "pages.create.title", 0, &form)
		return
	}
	id, err := a.postService.Create(c.Request.Context(), form.Title, form.Body)
	if err != nil {
		if code, _ := errorStatus(err); code == http.StatusBadRequest {
			a.renderInvalid(c, "create.html", "pages.create.title", 0, &form)
			return
		}
		abortWithError(c, err)
		return
	}
	logger.Infof("post %d created by %s", id, session.GetLoginUser(c).UserName)
	c.Redirect(http.StatusFound, "/index")
}

func (a *PostController) updatePage(c *gin.Context) {
	id := c.GetInt(postIdKey)
	post, err := a.postService.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	html(c, "update.html", "pages.update.title", postData(id, post.Title, post.Body))
}

func (a *PostController) update(c *gin.Context) {
	id := c.GetInt(postIdKey)
	if _, err := a.postService.Get(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}

	var form entity.PostForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderInvalid(c, "update.html", "pages.update.title", id, &form)
		return
	}
	if err := a.postService.Update(c.Request.Context(), id, form.Title, form.Body); err != nil {
		if code, _ := errorStatus(err); code == http.StatusBadRequest {
			a.renderInvalid(c, "update.html", "pages.update.title", id, &form)
			return
		}
		abortWithError(c, err)
		return
	}
	logger.Infof("post %d updated by %s", id, session.GetLoginUser(c).UserName)
	c.Redirect(http.StatusFound, "/index")
}

func (a *PostController) delete(c *gin.Context) {
	id := c.GetInt(postIdKey)
	if err := a.postService.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	logger.Infof("post %d deleted by %s", id, session.GetLoginUser(c).UserName)
	c.Redirect(http.StatusFound, "/index")
}

func (a *PostController) renderInvalid(c *gin.Context, name string, title string, id int, form *entity.PostForm) {
	data := postData(id, form.Title, form.Body)
	data["error"] = I18nWeb(c, "errors.invalidPost")
	htmlStatus(c, http.StatusBadRequest, name, title, data)
}

func postData(id int, title string, body string) gin.H {
	return gin.H{
		postIdKey:    id,
		"form_title": title,
		"form_body":  body,
	}
}
