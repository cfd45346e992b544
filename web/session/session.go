// Package session binds an authenticated user to a client through a
// server-side session record.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/postboard/postboard/database/model"
	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/web/service"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CookieName is the name of the session cookie.
const CookieName = "postboard"

const (
	loginUserId    = "LOGIN_USER_ID"
	loginExpiresAt = "LOGIN_EXPIRES_AT"
	contextUserKey = "LOGIN_USER"
)

var ErrUnauthenticated = errors.New("session: not logged in")

// Session is the proof of a prior successful login.
type Session struct {
	Token     string
	UserId    int
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserLoader resolves a session's identity; it must return
// service.ErrUserNotFound for ids that no longer exist.
type UserLoader interface {
	GetUser(ctx context.Context, id int) (*model.User, error)
}

type Manager struct {
	users  UserLoader
	maxAge time.Duration
	now    func() time.Time
}

func NewManager(users UserLoader, maxAge time.Duration) *Manager {
	return &Manager{users: users, maxAge: maxAge, now: time.Now}
}

func (m *Manager) options(maxAge int) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login starts an authenticated session for userId. A session the client
// already had is discarded first so the token always changes on login.
func (m *Manager) Login(c *gin.Context, userId int) (*Session, error) {
	s := sessions.Default(c)
	if s.ID() != "" {
		s.Clear()
		s.Options(m.options(-1))
		if err := s.Save(); err != nil {
			return nil, err
		}
	}

	expiresAt := m.now().Add(m.maxAge)
	s.Options(m.options(int(m.maxAge.Seconds())))
	s.Set(loginUserId, userId)
	s.Set(loginExpiresAt, expiresAt.Unix())
	if err := s.Save(); err != nil {
		return nil, err
	}
	return &Session{Token: s.ID(), UserId: userId, ExpiresAt: time.Unix(expiresAt.Unix(), 0)}, nil
}

// Logout deletes the session record and expires the cookie.
func (m *Manager) Logout(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(m.options(-1))
	return s.Save()
}

// Current decodes the client's session without consulting the user table.
func (m *Manager) Current(c *gin.Context) (*Session, error) {
	s := sessions.Default(c)
	userId, ok := s.Get(loginUserId).(int)
	if !ok {
		return nil, ErrUnauthenticated
	}
	expiresAt, ok := s.Get(loginExpiresAt).(int64)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &Session{Token: s.ID(), UserId: userId, ExpiresAt: time.Unix(expiresAt, 0)}, nil
}

// Require restores the logged-in user or returns ErrUnauthenticated. Expired
// sessions and sessions of deleted users are cleared on the way out.
func (m *Manager) Require(c *gin.Context) (*model.User, error) {
	sess, err := m.Current(c)
	if err != nil {
		return nil, err
	}
	if sess.Expired(m.now()) {
		m.invalidate(c)
		return nil, ErrUnauthenticated
	}

	user, err := m.users.GetUser(c.Request.Context(), sess.UserId)
	if errors.Is(err, service.ErrUserNotFound) {
		logger.Infof("session for missing user %d dropped", sess.UserId)
		m.invalidate(c)
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	c.Set(contextUserKey, user)
	return user, nil
}

func (m *Manager) invalidate(c *gin.Context) {
	if err := m.Logout(c); err != nil {
		logger.Warning("Unable to clear session:", err)
	}
}

// GetLoginUser returns the user Require resolved for this request.
func GetLoginUser(c *gin.Context) *model.User {
	if v, ok := c.Get(contextUserKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUser(c) != nil
}
