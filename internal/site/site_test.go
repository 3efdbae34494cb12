package site

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves the handful of endpoints the site calls, backed by a map.
type fakeAPI struct {
	mu       sync.Mutex
	skills   []client.Record
	failList bool
	expired  bool
	// failures counts bad logins per forwarded visitor address.
	failures map[string]int
	// passwords holds every password sent to the profile endpoint.
	passwords []string
}

func (f *fakeAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := r.Header.Get(client.TokenHeader)
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
		var in struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&in)
		visitor := r.Header.Get("X-Forwarded-For")
		if f.failures[visitor] >= 2 {
			f.writeJSON(w, http.StatusTooManyRequests, map[string]any{"errorMessage": "Too many login attempts"})
			return
		}
		switch {
		case in.Email == "admin@example.com" && in.Password == "secret":
			f.writeJSON(w, http.StatusOK, map[string]any{
				"token": "tok-admin",
				"user":  map[string]any{"id": "1", "email": in.Email, "username": "admin", "role": "admin"},
			})
		case in.Email == "user@example.com" && in.Password == "secret":
			f.writeJSON(w, http.StatusOK, map[string]any{
				"token": "tok-user",
				"user":  map[string]any{"id": "2", "email": in.Email, "username": "user", "role": "user"},
			})
		default:
			if f.failures == nil {
				f.failures = map[string]int{}
			}
			f.failures[visitor]++
			f.writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessage": "Invalid credentials"})
		}

	case r.URL.Path == "/api/users/profile":
		if token == "" {
			f.writeJSON(w, http.StatusUnauthorized, map[string]any{"errorMessage": "authentication required"})
			return
		}
		user := map[string]any{"id": "1", "email": "admin@example.com", "username": "admin", "role": "admin"}
		if r.Method == http.MethodPut {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				f.writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessage": err.Error()})
				return
			}
			if _, ok := r.MultipartForm.Value["confirmPassword"]; ok {
				f.writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessage": "unexpected field"})
				return
			}
			f.passwords = append(f.passwords, r.FormValue("password"))
			user["email"] = r.FormValue("email")
		}
		f.writeJSON(w, http.StatusOK, user)

	case r.Method == http.MethodGet && r.URL.Path == "/api/skills":
		if f.failList {
			f.writeJSON(w, http.StatusInternalServerError, map[string]any{"errorMessage": "boom"})
			return
		}
		f.writeJSON(w, http.StatusOK, f.skills)

	case r.Method == http.MethodPost && r.URL.Path == "/api/skills":
		if f.expired || token != "tok-admin" {
			f.writeJSON(w, http.StatusUnauthorized, map[string]any{"errorMessage": "invalid or missing authentication token"})
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			f.writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessage": err.Error()})
			return
		}
		if r.FormValue("name") == "" {
			f.writeJSON(w, http.StatusBadRequest, map[string]any{
				"errorMessage": "validation failed",
				"errorDetails": map[string]string{"name": "must be provided"},
			})
			return
		}
		rec := client.Record{"_id": "skill-" + r.FormValue("name"), "name": r.FormValue("name"), "level": r.FormValue("level")}
		f.skills = append(f.skills, rec)
		f.writeJSON(w, http.StatusCreated, rec)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/skills/"):
		if token != "tok-admin" {
			f.writeJSON(w, http.StatusUnauthorized, map[string]any{"errorMessage": "invalid or missing authentication token"})
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/skills/")
		for i, rec := range f.skills {
			if rec["_id"] == id {
				f.skills = append(f.skills[:i], f.skills[i+1:]...)
				f.writeJSON(w, http.StatusOK, map[string]any{"message": "Skill deleted successfully"})
				return
			}
		}
		f.writeJSON(w, http.StatusNotFound, map[string]any{"errorMessage": "Skill not found"})

	case r.Method == http.MethodGet && r.URL.Path == "/api/blogs/hello-world":
		f.writeJSON(w, http.StatusOK, map[string]any{
			"_id": "b1", "slug": "hello-world", "title": "Hello World", "author": "Ann",
			"content": "Some **bold** text", "tags": []string{"go"}, "date": "2024-01-02T00:00:00Z",
		})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/blogs/"):
		f.writeJSON(w, http.StatusNotFound, map[string]any{"errorMessage": "Blog not found"})

	case r.Method == http.MethodGet:
		f.writeJSON(w, http.StatusOK, []client.Record{})

	default:
		f.writeJSON(w, http.StatusNotFound, map[string]any{"errorMessage": "not found"})
	}
}

type siteHarness struct {
	api     *fakeAPI
	handler http.Handler
	url     string
	http    *http.Client
}

func newHarness(t *testing.T) *siteHarness {
	t.Helper()

	api := &fakeAPI{}
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	c, err := client.New(apiSrv.URL + "/api")
	require.NoError(t, err)

	s, err := New(Options{Client: c, Logger: testutil.NewLogger(), SessionSecret: "test-secret"})
	require.NoError(t, err)

	siteSrv := httptest.NewServer(s.Handler())
	t.Cleanup(siteSrv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &siteHarness{
		api:     api,
		handler: s.Handler(),
		url:     siteSrv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *siteHarness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.http.Get(h.url + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (h *siteHarness) postForm(t *testing.T, path string, values url.Values) *http.Response {
	t.Helper()
	resp, err := h.http.PostForm(h.url+path, values)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func (h *siteHarness) postMultipart(t *testing.T, path string, values map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := h.http.Post(h.url+path, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func (h *siteHarness) login(t *testing.T, email string) *http.Response {
	t.Helper()
	return h.postForm(t, "/login", url.Values{"email": {email}, "password": {"secret"}})
}

func TestGuardRedirectsAnonymousVisitorsToLogin(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/dashboard", "/profile", "/manage/skills", "/create-blog"} {
		resp, _ := h.get(t, path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
}

func TestGuardSendsNonAdminsHome(t *testing.T) {
	h := newHarness(t)

	resp := h.login(t, "user@example.com")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = h.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestLoginStoresSession(t *testing.T) {
	h := newHarness(t)

	resp := h.login(t, "admin@example.com")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, body := h.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Dashboard")
	assert.Contains(t, body, "admin")

	resp, _ = h.get(t, "/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLoginFailureRendersMessage(t *testing.T) {
	h := newHarness(t)

	resp, err := h.http.PostForm(h.url+"/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Invalid credentials")
	assert.Contains(t, string(body), `value="admin@example.com"`)
}

func TestLoginThrottlingIsPerVisitor(t *testing.T) {
	h := newHarness(t)

	attempt := func(remoteAddr, password string) *httptest.ResponseRecorder {
		form := url.Values{"email": {"admin@example.com"}, "password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, attempt("203.0.113.5:4000", "wrong").Code)
	assert.Equal(t, http.StatusBadRequest, attempt("203.0.113.5:4001", "wrong").Code)
	rec := attempt("203.0.113.5:4002", "secret")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many login attempts")

	rec = attempt("198.51.100.8:4000", "secret")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.Equal(t, map[string]int{"203.0.113.5": 2}, h.api.failures)
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com")

	resp := h.postForm(t, "/logout", nil)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = h.get(t, "/dashboard")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestThemeTogglePersists(t *testing.T) {
	h := newHarness(t)

	_, body := h.get(t, "/")
	assert.Contains(t, body, `data-theme="light"`)

	resp := h.postForm(t, "/theme", url.Values{"next": {"/about"}})
	assert.Equal(t, "/about", resp.Header.Get("Location"))

	_, body = h.get(t, "/blogs")
	assert.Contains(t, body, `data-theme="dark"`)

	resp = h.postForm(t, "/theme", url.Values{"next": {"https://evil.example.com/"}})
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, body = h.get(t, "/")
	assert.Contains(t, body, `data-theme="light"`)
}

func TestProfilePasswordMustBeConfirmed(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com")

	resp := h.postMultipart(t, "/profile", map[string]string{
		"email": "admin@example.com", "password": "new-secret", "confirmPassword": "typo",
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/profile", resp.Header.Get("Location"))

	_, body := h.get(t, "/profile")
	assert.Contains(t, body, "Passwords do not match")

	resp = h.postMultipart(t, "/profile", map[string]string{
		"email": "admin@example.com", "password": "new-secret", "confirmPassword": "new-secret",
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body = h.get(t, "/profile")
	assert.Contains(t, body, "Profile updated.")
	assert.NotContains(t, body, "Passwords do not match")

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.Equal(t, []string{"new-secret"}, h.api.passwords)
}

func TestCreateRedirectsWithFlash(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com")

	resp := h.postMultipart(t, "/manage/skills", map[string]string{"name": "Go", "level": "Expert"})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/manage/skills", resp.Header.Get("Location"))

	_, body := h.get(t, "/manage/skills")
	assert.Contains(t, body, "Skill created.")
	assert.Contains(t, body, "Expert")

	// Flashes are shown once.
	_, body = h.get(t, "/manage/skills")
	assert.NotContains(t, body, "Skill created.")
}

func TestCreateValidationErrorIsFlashed(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com")

	resp := h.postMultipart(t, "/manage/skills", map[string]string{"level": "Expert"})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body := h.get(t, "/manage/skills")
	assert.Contains(t, body, "name must be provided")
	assert.Empty(t, h.api.skills)
}

func TestExpiredTokenEndsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com")
	h.api.expired = true

	resp := h.postMultipart(t, "/manage/skills", map[string]string{"name": "Go", "level": "Expert"})
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = h.get(t, "/dashboard")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestDeleteRemovesRecord(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com")
	h.postMultipart(t, "/manage/skills", map[string]string{"name": "Go", "level": "Expert"})
	require.Len(t, h.api.skills, 1)

	resp := h.postForm(t, "/manage/skills/skill-Go/delete", nil)
	assert.Equal(t, "/manage/skills", resp.Header.Get("Location"))
	assert.Empty(t, h.api.skills)

	_, body := h.get(t, "/manage/skills")
	assert.Contains(t, body, "Skill deleted.")
	assert.Contains(t, body, "Nothing here yet.")
}

func TestFailedListRendersEmptyPage(t *testing.T) {
	h := newHarness(t)
	h.api.failList = true

	resp, body := h.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No skills yet.")
}

func TestBlogRendersMarkdown(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "/blog/hello-world")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<strong>bold</strong>")

	resp, body = h.get(t, "/blog/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Page not found")
}

func TestUnknownResourceIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com")

	resp, _ := h.get(t, "/manage/widgets")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLocalRedirect(t *testing.T) {
	assert.Equal(t, "/about", localRedirect("/about", "/"))
	assert.Equal(t, "/", localRedirect("//evil.example.com", "/"))
	assert.Equal(t, "/", localRedirect("https://evil.example.com", "/"))
	assert.Equal(t, "/", localRedirect(`/\evil`, "/"))
	assert.Equal(t, "/", localRedirect("", "/"))
}
