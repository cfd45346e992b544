// Package web provides the postboard web server: routing, templates,
// sessions and the background jobs it schedules.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/postboard/postboard/config"
	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/util/common"
	"github.com/postboard/postboard/util/random"
	"github.com/postboard/postboard/web/cache"
	"github.com/postboard/postboard/web/controller"
	"github.com/postboard/postboard/web/job"
	"github.com/postboard/postboard/web/locale"
	"github.com/postboard/postboard/web/middleware"
	"github.com/postboard/postboard/web/service"
	"github.com/postboard/postboard/web/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

//go:embed html/*
var htmlFS embed.FS

//go:embed translation/*
var i18nFS embed.FS

// Server is the postboard web server with its controllers and scheduled jobs.
type Server struct {
	cfg *config.Config
	db  *gorm.DB

	httpServer *http.Server
	listener   net.Listener
	redis      *cache.Redis

	index *controller.IndexController
	post  *controller.PostController

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
// The server does not own db; closing it is up to the caller.
func NewServer(cfg *config.Config, db *gorm.DB) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, db: db, ctx: ctx, cancel: cancel}
}

// getHtmlFiles walks the local `web/html` directory and returns a list of
// template file paths. Used only in debug/development mode.
func (s *Server) getHtmlFiles() ([]string, error) {
	files := make([]string, 0)
	dir, _ := os.Getwd()
	err := fs.WalkDir(os.DirFS(dir), "web/html", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// getHtmlTemplate parses the embedded HTML templates.
func (s *Server) getHtmlTemplate() (*template.Template, error) {
	return template.New("").ParseFS(htmlFS, "html/*.html")
}

// initRouter initializes Gin, registers middleware, templates and
// controllers and returns the configured engine.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	// with no trusted proxies ClientIP is the peer address, so forwarded
	// headers cannot dodge the login rate limit
	if err := engine.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(middleware.AccessLog())

	if s.cfg.Domain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(s.cfg.Domain))
	}

	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	// cookie keys are new on every start, so a restart logs everyone out
	store := cache.NewRedisStore(s.redis.Client(), random.Key(32), random.Key(32))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(s.cfg.GetSessionMaxAge().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(session.CookieName, store))

	bundle, err := locale.NewBundle(i18nFS, "translation")
	if err != nil {
		return nil, err
	}
	engine.Use(bundle.Middleware())

	if config.IsDebug() {
		files, err := s.getHtmlFiles()
		if err != nil {
			return nil, err
		}
		engine.LoadHTMLFiles(files...)
	} else {
		tpl, err := s.getHtmlTemplate()
		if err != nil {
			return nil, err
		}
		engine.SetHTMLTemplate(tpl)
	}

	loc, err := s.cfg.GetTimeLocation()
	if err != nil {
		return nil, err
	}
	users := service.NewUserService(s.db)
	posts := service.NewPostService(s.db, loc)
	manager := session.NewManager(users, s.cfg.GetSessionMaxAge())

	g := engine.Group("/")
	s.index = controller.NewIndexController(g, manager, users,
		middleware.LoginRateLimit(s.redis.Client(), s.cfg.LoginAttemptsPerMinute))
	s.post = controller.NewPostController(g, manager, posts)

	// 404 handler
	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, controller.I18nWeb(c, "errors.notFound"))
	})

	return engine, nil
}

// startTask schedules the background jobs.
func (s *Server) startTask() {
	if s.cfg.Database.IsSQLite() && s.cfg.Database.SQLite.UsesWAL() {
		if _, err := s.cron.AddJob("@every 5m", job.NewCheckpointJob(s.db)); err != nil {
			logger.Warning("Add checkpoint job error", err)
		}
	}
	if s.redis.IsEmbedded() {
		if _, err := s.cron.AddJob("@every 1s", job.NewRedisExpireJob(s.redis)); err != nil {
			logger.Warning("Add redis expire job error", err)
		}
	}
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	loc, err := s.cfg.GetTimeLocation()
	if err != nil {
		return err
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithSeconds())
	s.cron.Start()

	s.redis, err = cache.Open(s.ctx, s.cfg.RedisAddr)
	if err != nil {
		return err
	}

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(s.cfg.Listen, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	s.startTask()
	return nil
}

// Stop gracefully shuts down the web server, the cron jobs and Redis.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	var err1, err2, err3 error
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err1 = s.httpServer.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
		if err2 != nil && errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	if s.redis != nil {
		err3 = s.redis.Close()
	}
	return common.Combine(err1, err2, err3)
}

// Addr is the address the server listens on, once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }

// GetCron returns the server's cron scheduler instance.
func (s *Server) GetCron() *cron.Cron { return s.cron }
