// Package site serves the public portfolio pages and the admin dashboard as
// server-rendered HTML. It holds no data of its own: every page is built from
// REST calls through the API client, with the visitor's token taken from the
// session cookie.
package site

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"filippo.io/csrf/gorilla"
	"github.com/gorilla/sessions"
	"github.com/julienschmidt/httprouter"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/access"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/content"
	"github.com/siahsang/portfolio/internal/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sessionName = "portfolio_session"

	keyToken = "token"
	keyUser  = "user"
	keyTheme = "theme"

	flashError   = "flash_error"
	flashSuccess = "flash_success"
)

type Options struct {
	Client        *client.Client
	Logger        *slog.Logger
	Renderer      *content.Renderer
	SessionSecret string
	Secure        bool
	// TrustedOrigins are host[:port] values allowed to post cross-origin.
	TrustedOrigins []string
	// ClientIP resolves a visitor's address. Defaults to the peer address.
	ClientIP func(*http.Request) string
}

type Site struct {
	api       *client.Client
	logger    *slog.Logger
	renderer  *content.Renderer
	store     *sessions.CookieStore
	csrfKey   []byte
	origins   []string
	templates map[string]*template.Template
	clientIP  func(*http.Request) string
}

func New(opts Options) (*Site, error) {
	if opts.Client == nil {
		return nil, xerrors.New("site: an API client is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Renderer == nil {
		opts.Renderer = content.NewRenderer()
	}
	if opts.ClientIP == nil {
		opts.ClientIP = peerAddr
	}

	h := sha256.Sum256([]byte("auth:" + opts.SessionSecret))
	e := sha256.Sum256([]byte("enc:" + opts.SessionSecret))
	c := sha256.Sum256([]byte("csrf:" + opts.SessionSecret))

	store := sessions.NewCookieStore(h[:], e[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   opts.Secure,
	}

	s := &Site{
		api:      opts.Client,
		logger:   opts.Logger,
		renderer: opts.Renderer,
		store:    store,
		csrfKey:  c[:],
		origins:  opts.TrustedOrigins,
		clientIP: opts.ClientIP,
	}
	if err := s.parseTemplates(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the site's routes behind CSRF protection.
func (s *Site) Handler() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(s.notFound)

	router.GET("/", s.home)
	router.GET("/about", s.about)
	router.GET("/blogs", s.blogs)
	router.GET("/blog/:id", s.blog)
	router.GET("/login", s.loginForm)
	router.POST("/login", s.login)
	router.POST("/logout", s.logout)
	router.POST("/theme", s.toggleTheme)

	router.GET("/profile", s.guard(false, s.profile))
	router.POST("/profile", s.guard(false, s.updateProfile))
	router.GET("/dashboard", s.guard(true, s.dashboard))
	router.GET("/create-blog", s.guard(true, s.createBlogForm))
	router.POST("/create-blog", s.guard(true, s.createBlog))
	router.GET("/manage/:resource", s.guard(true, s.manage))
	router.POST("/manage/:resource", s.guard(true, s.createRecord))
	router.POST("/manage/:resource/:id", s.guard(true, s.updateRecord))
	router.POST("/manage/:resource/:id/delete", s.guard(true, s.deleteRecord))

	opts := []csrf.Option{csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure))}
	if len(s.origins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(s.origins))
	}
	return csrf.Protect(s.csrfKey, opts...)(s.recoverPanic(router))
}

func (s *Site) parseTemplates() error {
	funcs := template.FuncMap{
		"field":    recordField,
		"fieldVal": recordFieldValue,
		"isImage":  isImagePath,
		"excerpt":  func(raw string) string { return s.renderer.Excerpt(raw, 180) },
		"join":     strings.Join,
		"dict":     dict,
	}

	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return xerrors.New(err)
	}

	s.templates = make(map[string]*template.Template)
	for _, page := range pages {
		name := strings.TrimPrefix(page, "templates/")
		if name == "base.html" {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", page)
		if err != nil {
			return xerrors.Newf("parsing %s: %w", name, err)
		}
		s.templates[name] = tmpl
	}
	return nil
}

// dict builds a map from alternating keys and values for nested templates.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, xerrors.New("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, xerrors.Newf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

type flash struct {
	Kind    string
	Message string
}

type pageData struct {
	Title   string
	Theme   string
	User    *client.User
	IsAdmin bool
	Path    string
	Flashes []flash
	Data    any
}

// render writes page with the session's theme, user and pending flashes.
func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		s.serverError(w, r, xerrors.Newf("site: unknown template %q", page))
		return
	}

	sess := s.session(r)
	pd := pageData{
		Title: title,
		Theme: theme.Parse(sessionString(sess, keyTheme)).String(),
		User:  sessionUser(sess),
		Path:  r.URL.Path,
		Data:  data,
	}
	pd.IsAdmin = pd.User != nil && pd.User.Role == "admin"
	for _, kind := range []string{flashError, flashSuccess} {
		for _, msg := range sess.Flashes(kind) {
			if text, ok := msg.(string); ok {
				pd.Flashes = append(pd.Flashes, flash{Kind: strings.TrimPrefix(kind, "flash_"), Message: text})
			}
		}
	}
	if len(pd.Flashes) > 0 {
		s.saveSession(w, r, sess)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", pd); err != nil {
		s.serverError(w, r, xerrors.New(err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Site) session(r *http.Request) *sessions.Session {
	// A cookie that fails to decode yields a fresh session.
	sess, _ := s.store.Get(r, sessionName)
	return sess
}

func (s *Site) saveSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to save session", "error", err)
	}
}

func (s *Site) addFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	sess := s.session(r)
	sess.AddFlash(message, kind)
	s.saveSession(w, r, sess)
}

func sessionString(sess *sessions.Session, key string) string {
	v, _ := sess.Values[key].(string)
	return v
}

func sessionUser(sess *sessions.Session) *client.User {
	raw := sessionString(sess, keyUser)
	if raw == "" {
		return nil
	}
	var user client.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil
	}
	return &user
}

func (s *Site) setSessionUser(sess *sessions.Session, token string, user client.User) {
	raw, _ := json.Marshal(user)
	sess.Values[keyToken] = token
	sess.Values[keyUser] = string(raw)
}

func clearSessionUser(sess *sessions.Session) {
	delete(sess.Values, keyToken)
	delete(sess.Values, keyUser)
}

// guard applies the route check on the stored token and role before next runs.
func (s *Site) guard(requireAdmin bool, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sess := s.session(r)
		role := ""
		if user := sessionUser(sess); user != nil {
			role = user.Role
		}

		decision := access.Decide(sessionString(sess, keyToken) != "", role, requireAdmin)
		if !decision.Allowed {
			http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
			return
		}
		next(w, r, ps)
	}
}

func peerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// visitorContext tells the API which visitor a call is made for.
func (s *Site) visitorContext(r *http.Request) context.Context {
	return client.WithForwardedFor(r.Context(), s.clientIP(r))
}

// apiContext carries the visitor address and the session token to the API client.
func (s *Site) apiContext(r *http.Request) *http.Request {
	ctx := s.visitorContext(r)
	if token := sessionString(s.session(r), keyToken); token != "" {
		ctx = client.WithToken(ctx, token)
	}
	return r.WithContext(ctx)
}

// handleAPIError logs a failed call. An expired token ends the session and
// reports true after redirecting to the login page.
func (s *Site) handleAPIError(w http.ResponseWriter, r *http.Request, action string, err error) bool {
	s.logger.Error("API call failed", "action", action, "path", r.URL.Path, "error", err)
	if client.IsStatus(err, http.StatusUnauthorized) {
		sess := s.session(r)
		clearSessionUser(sess)
		sess.AddFlash("Your session has expired, please log in again.", flashError)
		s.saveSession(w, r, sess)
		http.Redirect(w, r, access.LoginPath, http.StatusSeeOther)
		return true
	}
	return false
}

func (s *Site) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "notfound.html", "Not found", nil)
}

func (s *Site) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.LogAttrs(r.Context(), slog.LevelError, "site request failed",
		slog.String("request_url", r.URL.String()),
		slog.String("request_method", r.Method),
		slog.String("stack", xerrors.Sprint(err)),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *Site) csrfFailure(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	s.logger.Warn("CSRF validation failed", "reason", reason, "method", r.Method, "path", r.URL.Path)
	http.Error(w, "Forbidden - CSRF validation failed", http.StatusForbidden)
}

func (s *Site) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				w.Header().Set("Connection", "close")
				s.serverError(w, r, xerrors.Newf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
