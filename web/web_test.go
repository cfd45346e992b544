package web

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/postboard/postboard/config"
	"github.com/postboard/postboard/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func startServer(t *testing.T, attempts int, opts ...func(*config.Config)) *browser {
	t.Helper()
	cfg := config.Default()
	cfg.Listen = "127.0.0.1"
	cfg.Port = 0
	cfg.TimeLocation = "UTC"
	cfg.LoginAttemptsPerMinute = attempts
	cfg.Database.Type = config.DatabaseTypeSQLite
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "web.db")
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := database.InitDB(&cfg.Database)
	require.NoError(t, err)
	s := NewServer(cfg, db)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		assert.NoError(t, s.Stop())
		assert.NoError(t, database.CloseDB(db))
	})

	return newBrowser(t, "http://"+s.Addr().String())
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	code     int
	location string
	header   http.Header
	body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{code: resp.StatusCode, location: resp.Header.Get("Location"), header: resp.Header, body: string(body)}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, kv ...string) page {
	b.t.Helper()
	form := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		form.Set(kv[i], kv[i+1])
	}
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postFrom(forwardedFor string, path string, kv ...string) page {
	b.t.Helper()
	form := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		form.Set(kv[i], kv[i+1])
	}
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	return b.do(req)
}

func (b *browser) login(name, password string) {
	b.t.Helper()
	p := b.post("/", "user_name", name, "password", password)
	require.Equal(b.t, http.StatusFound, p.code, p.body)
	require.Equal(b.t, "/index", p.location)
}

func TestBlogFlow(t *testing.T) {
	b := startServer(t, 0)

	p := b.get("/")
	assert.Equal(t, http.StatusOK, p.code)
	assert.Contains(t, p.body, `name="user_name"`)

	p = b.post("/signup", "user_name", "alice", "password", "pw1")
	require.Equal(t, http.StatusFound, p.code, p.body)
	assert.Equal(t, "/", p.location)

	p = b.post("/signup", "user_name", "alice", "password", "pw2")
	assert.Equal(t, http.StatusConflict, p.code)
	assert.Contains(t, p.body, "The user name alice is already taken.")

	p = b.post("/", "user_name", "alice", "password", "pw2")
	assert.Equal(t, http.StatusUnauthorized, p.code)
	assert.Contains(t, p.body, "Wrong user name or password.")

	p = b.post("/", "user_name", "nobody", "password", "pw1")
	assert.Equal(t, http.StatusUnauthorized, p.code)

	b.login("alice", "pw1")

	p = b.get("/")
	assert.Equal(t, http.StatusFound, p.code)
	assert.Equal(t, "/index", p.location)

	p = b.get("/index")
	assert.Equal(t, http.StatusOK, p.code)
	assert.Contains(t, p.body, "Logged in as alice")
	assert.Contains(t, p.body, "No posts yet.")

	p = b.post("/index")
	assert.Equal(t, http.StatusMethodNotAllowed, p.code)
	assert.Equal(t, "GET", p.header.Get("Allow"))

	p = b.post("/create", "title", "Hello", "body", "World")
	require.Equal(t, http.StatusFound, p.code, p.body)
	assert.Equal(t, "/index", p.location)

	p = b.get("/index")
	assert.Contains(t, p.body, "<h2>Hello</h2>")
	assert.Contains(t, p.body, "<p>World</p>")
	assert.Contains(t, p.body, `href="/1/update"`)

	p = b.get("/1/update")
	assert.Equal(t, http.StatusOK, p.code)
	assert.Contains(t, p.body, `value="Hello"`)

	p = b.post("/1/update", "title", "Hi", "body", "There")
	require.Equal(t, http.StatusFound, p.code, p.body)
	assert.Equal(t, "/index", p.location)

	p = b.get("/index")
	assert.Contains(t, p.body, "<h2>Hi</h2>")
	assert.Contains(t, p.body, "<p>There</p>")
	assert.NotContains(t, p.body, "Hello")

	p = b.get("/1/delete")
	assert.Equal(t, http.StatusFound, p.code)
	assert.Equal(t, "/index", p.location)

	assert.Equal(t, http.StatusNotFound, b.get("/1/update").code)
	assert.Equal(t, http.StatusNotFound, b.get("/1/delete").code)
	assert.Equal(t, http.StatusNotFound, b.post("/1/update", "title", "a", "body", "b").code)

	p = b.get("/logout")
	assert.Equal(t, http.StatusFound, p.code)
	assert.Equal(t, "/", p.location)

	p = b.get("/index")
	assert.Equal(t, http.StatusFound, p.code)
	assert.Equal(t, "/", p.location)
}

func TestInvalidInput(t *testing.T) {
	b := startServer(t, 0)

	assert.Equal(t, http.StatusBadRequest, b.post("/signup", "user_name", "", "password", "pw").code)
	assert.Equal(t, http.StatusBadRequest, b.post("/signup", "user_name", strings.Repeat("a", 31), "password", "pw").code)
	assert.Equal(t, http.StatusBadRequest, b.post("/", "user_name", "alice").code)

	require.Equal(t, http.StatusFound, b.post("/signup", "user_name", "alice", "password", "pw").code)
	b.login("alice", "pw")

	p := b.post("/create", "title", "", "body", "World")
	assert.Equal(t, http.StatusBadRequest, p.code)
	assert.Contains(t, p.body, "Title (up to 50 characters)")
	assert.Contains(t, p.body, "World")

	assert.Equal(t, http.StatusBadRequest, b.post("/create", "title", strings.Repeat("t", 51), "body", "b").code)
	assert.Equal(t, http.StatusBadRequest, b.post("/create", "title", "   ", "body", "b").code)
	assert.Equal(t, http.StatusFound, b.post("/create", "title", strings.Repeat("題", 50), "body", "b").code)

	assert.Equal(t, http.StatusBadRequest, b.post("/1/update", "title", "t", "body", strings.Repeat("b", 301)).code)

	assert.Equal(t, http.StatusNotFound, b.get("/abc/update").code)
	assert.Equal(t, http.StatusNotFound, b.get("/-1/delete").code)
	assert.Equal(t, http.StatusNotFound, b.get("/no/such/page").code)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	b := startServer(t, 0)
	require.Equal(t, http.StatusFound, b.post("/signup", "user_name", "alice", "password", "pw").code)
	b.login("alice", "pw")
	require.Equal(t, http.StatusFound, b.post("/create", "title", "keep", "body", "me").code)

	anon := newBrowser(t, b.base)
	for _, p := range []page{
		anon.get("/index"),
		anon.post("/index"),
		anon.get("/create"),
		anon.post("/create", "title", "spam", "body", "spam"),
		anon.get("/1/update"),
		anon.post("/1/update", "title", "spam", "body", "spam"),
		anon.get("/1/delete"),
		anon.get("/logout"),
	} {
		assert.Equal(t, http.StatusFound, p.code)
		assert.Equal(t, "/", p.location)
	}

	req, err := http.NewRequest(http.MethodGet, b.base+"/index", nil)
	require.NoError(t, err)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	p := anon.do(req)
	assert.Equal(t, http.StatusUnauthorized, p.code)
	assert.JSONEq(t, `{"success":false,"msg":"Your session has expired, please log in again.","obj":null}`, p.body)

	p = b.get("/index")
	assert.Contains(t, p.body, "<h2>keep</h2>")
	assert.NotContains(t, p.body, "spam")
}

func TestLoginRateLimit(t *testing.T) {
	b := startServer(t, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, b.post("/", "user_name", "alice", "password", "x").code)
	}
	p := b.post("/", "user_name", "alice", "password", "x")
	assert.Equal(t, http.StatusTooManyRequests, p.code)
	assert.Contains(t, p.body, "Too many attempts")

	// reading the form is not limited
	assert.Equal(t, http.StatusOK, b.get("/").code)
}

func TestLoginRateLimitIgnoresForwardedHeaders(t *testing.T) {
	b := startServer(t, 3)

	codes := make([]int, 0, 5)
	for i := 1; i <= 5; i++ {
		p := b.postFrom(fmt.Sprintf("203.0.113.%d", i), "/", "user_name", "alice", "password", "x")
		codes = append(codes, p.code)
	}
	assert.Equal(t, []int{
		http.StatusUnauthorized, http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)

	p := b.postFrom("203.0.113.9", "/signup", "user_name", "bob", "password", "pw")
	assert.Equal(t, http.StatusFound, p.code)
}

func TestLoginRateLimitBehindTrustedProxy(t *testing.T) {
	b := startServer(t, 2, func(c *config.Config) {
		c.TrustedProxies = []string{"127.0.0.1"}
	})

	// each forwarded client has its own budget
	for i := 1; i <= 4; i++ {
		p := b.postFrom(fmt.Sprintf("203.0.113.%d", i), "/", "user_name", "alice", "password", "x")
		assert.Equal(t, http.StatusUnauthorized, p.code)
	}
	b.postFrom("203.0.113.1", "/", "user_name", "alice", "password", "x")
	p := b.postFrom("203.0.113.1", "/", "user_name", "alice", "password", "x")
	assert.Equal(t, http.StatusTooManyRequests, p.code)
}

func TestJapanesePages(t *testing.T) {
	b := startServer(t, 0)
	req, err := http.NewRequest(http.MethodGet, b.base+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "ja-JP,ja;q=0.9")
	p := b.do(req)
	assert.Equal(t, http.StatusOK, p.code)
	assert.Contains(t, p.body, "ログイン")
}
