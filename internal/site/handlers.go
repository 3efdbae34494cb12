package site

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/siahsang/portfolio/internal/access"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/theme"
	"github.com/siahsang/portfolio/models"
)

const maxFormMemory = 32 << 20

// listOrEmpty logs a failed fetch and renders the page with an empty list.
func listOrEmpty[T any](ctx context.Context, s *Site, res *client.Resource[T]) []T {
	items, err := res.List(ctx)
	if err != nil {
		s.logger.Error("failed to fetch list", "resource", res.Name(), "error", err)
		return []T{}
	}
	return items
}

func apiErrorMessage(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return "Something went wrong, please try again."
	}
	if len(apiErr.Details) > 0 {
		keys := make([]string, 0, len(apiErr.Details))
		for k := range apiErr.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+" "+apiErr.Details[k])
		}
		return strings.Join(parts, "; ")
	}
	return apiErr.Error()
}

// localRedirect accepts only same-site paths.
func localRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	return next
}

type homeData struct {
	Skills       []models.Skill
	Projects     []models.Project
	Testimonials []models.Testimonial
	Certificates []models.Certificate
	Blogs        []models.Blog
}

func (s *Site) home(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	data := homeData{
		Skills:       listOrEmpty(ctx, s, s.api.Skills()),
		Projects:     listOrEmpty(ctx, s, s.api.Projects()),
		Testimonials: listOrEmpty(ctx, s, s.api.Testimonials()),
		Certificates: listOrEmpty(ctx, s, s.api.Certificates()),
		Blogs:        listOrEmpty(ctx, s, s.api.Blogs()),
	}
	if len(data.Blogs) > 3 {
		data.Blogs = data.Blogs[:3]
	}
	s.render(w, r, http.StatusOK, "home.html", "Home", data)
}

func (s *Site) about(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	data := homeData{
		Skills:       listOrEmpty(ctx, s, s.api.Skills()),
		Certificates: listOrEmpty(ctx, s, s.api.Certificates()),
	}
	s.render(w, r, http.StatusOK, "about.html", "About", data)
}

func (s *Site) blogs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.render(w, r, http.StatusOK, "blogs.html", "Blog", listOrEmpty(r.Context(), s, s.api.Blogs()))
}

type blogData struct {
	Blog models.Blog
	Body template.HTML
}

func (s *Site) blog(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	b, err := s.api.Blogs().Get(r.Context(), ps.ByName("id"))
	if err != nil {
		if client.IsStatus(err, http.StatusNotFound) {
			s.notFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}

	body, err := s.renderer.Render(b.Content)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "blog.html", b.Title, blogData{Blog: b, Body: body})
}

type loginData struct {
	Email string
	Error string
}

func (s *Site) loginForm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if sessionString(s.session(r), keyToken) != "" {
		http.Redirect(w, r, access.HomePath, http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", "Login", loginData{})
}

func (s *Site) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", "Login", loginData{Error: "Invalid form submission."})
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	resp, err := s.api.Login(s.visitorContext(r), email, password)
	if err != nil {
		s.logger.Warn("login failed", "email", email, "error", err)
		status := http.StatusBadRequest
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		s.render(w, r, status, "login.html", "Login", loginData{Email: email, Error: apiErrorMessage(err)})
		return
	}

	sess := s.session(r)
	s.setSessionUser(sess, resp.Token, resp.User)
	s.saveSession(w, r, sess)

	target := access.HomePath
	if resp.User.Role == "admin" {
		target = "/dashboard"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Site) logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := s.session(r)
	clearSessionUser(sess)
	s.saveSession(w, r, sess)
	http.Redirect(w, r, access.LoginPath, http.StatusSeeOther)
}

// toggleTheme flips the stored theme and returns to the page it was posted from.
func (s *Site) toggleTheme(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	_ = r.ParseForm()
	sess := s.session(r)
	sess.Values[keyTheme] = theme.Parse(sessionString(sess, keyTheme)).Toggle().String()
	s.saveSession(w, r, sess)
	http.Redirect(w, r, localRedirect(r.PostForm.Get("next"), access.HomePath), http.StatusSeeOther)
}

var profileDef = resourceDef{
	Name: "profile",
	Fields: []formField{
		{Name: "email", Label: "Email", Kind: kindText, Required: true},
		{Name: "password", Label: "New password", Kind: kindText},
		{Name: "avatar", Label: "Avatar", Kind: kindFile},
	},
}

func (s *Site) profile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r = s.apiContext(r)
	user, err := s.api.Profile(r.Context())
	if err != nil {
		if s.handleAPIError(w, r, "profile", err) {
			return
		}
		user = sessionUser(s.session(r))
	}
	s.render(w, r, http.StatusOK, "profile.html", "Profile", user)
}

func (s *Site) updateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r = s.apiContext(r)
	form, closeFiles, err := readForm(r, profileDef, maxFormMemory)
	defer closeFiles()
	if err != nil {
		s.addFlash(w, r, flashError, "Invalid form submission.")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	if password := form.Fields.Get("password"); password == "" {
		form.Fields.Del("password")
	} else if password != r.PostFormValue("confirmPassword") {
		s.addFlash(w, r, flashError, "Passwords do not match")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	user, err := s.api.UpdateProfile(r.Context(), form)
	if err != nil {
		if s.handleAPIError(w, r, "update profile", err) {
			return
		}
		s.addFlash(w, r, flashError, apiErrorMessage(err))
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	sess := s.session(r)
	s.setSessionUser(sess, sessionString(sess, keyToken), *user)
	sess.AddFlash("Profile updated.", flashSuccess)
	s.saveSession(w, r, sess)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

type dashboardEntry struct {
	Def   resourceDef
	Count int
}

func (s *Site) dashboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries := make([]dashboardEntry, 0, len(orderedResources))
	for _, name := range orderedResources {
		records := listOrEmpty(r.Context(), s, s.api.Records(name))
		entries = append(entries, dashboardEntry{Def: resourceDefs[name], Count: len(records)})
	}
	s.render(w, r, http.StatusOK, "dashboard.html", "Dashboard", entries)
}

type manageData struct {
	Def     resourceDef
	Records []client.Record
	Edit    client.Record
}

// manage lists a collection with a "new" form and, with ?edit=<id>, an edit
// form filled from the listed record.
func (s *Site) manage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	def, ok := resourceDefs[ps.ByName("resource")]
	if !ok {
		s.notFound(w, r)
		return
	}

	records := listOrEmpty(r.Context(), s, s.api.Records(def.Name))
	data := manageData{Def: def, Records: records}
	if id := r.URL.Query().Get("edit"); id != "" {
		data.Edit = findRecord(records, id)
	}
	s.render(w, r, http.StatusOK, "manage.html", def.Title, data)
}

func (s *Site) createBlogForm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.render(w, r, http.StatusOK, "create_blog.html", "New blog post", resourceDefs[client.ResourceBlogs])
}

func (s *Site) createBlog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.submitCreate(w, r, resourceDefs[client.ResourceBlogs], "/create-blog")
}

func (s *Site) createRecord(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	def, ok := resourceDefs[ps.ByName("resource")]
	if !ok {
		s.notFound(w, r)
		return
	}
	s.submitCreate(w, r, def, "/manage/"+def.Name)
}

func (s *Site) submitCreate(w http.ResponseWriter, r *http.Request, def resourceDef, onError string) {
	r = s.apiContext(r)
	form, closeFiles, err := readForm(r, def, maxFormMemory)
	defer closeFiles()
	if err != nil {
		s.addFlash(w, r, flashError, "Invalid form submission.")
		http.Redirect(w, r, onError, http.StatusSeeOther)
		return
	}

	if _, err := s.api.Records(def.Name).Create(r.Context(), form); err != nil {
		if s.handleAPIError(w, r, "create "+def.Name, err) {
			return
		}
		s.addFlash(w, r, flashError, "Could not create "+strings.ToLower(def.Singular)+": "+apiErrorMessage(err))
		http.Redirect(w, r, onError, http.StatusSeeOther)
		return
	}

	s.addFlash(w, r, flashSuccess, def.Singular+" created.")
	http.Redirect(w, r, "/manage/"+def.Name, http.StatusSeeOther)
}

func (s *Site) updateRecord(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	def, ok := resourceDefs[ps.ByName("resource")]
	if !ok {
		s.notFound(w, r)
		return
	}
	id := ps.ByName("id")
	listPath := "/manage/" + def.Name

	r = s.apiContext(r)
	form, closeFiles, err := readForm(r, def, maxFormMemory)
	defer closeFiles()
	if err != nil {
		s.addFlash(w, r, flashError, "Invalid form submission.")
		http.Redirect(w, r, listPath, http.StatusSeeOther)
		return
	}

	if _, err := s.api.Records(def.Name).Update(r.Context(), id, form); err != nil {
		if s.handleAPIError(w, r, "update "+def.Name, err) {
			return
		}
		s.addFlash(w, r, flashError, "Could not update "+strings.ToLower(def.Singular)+": "+apiErrorMessage(err))
		http.Redirect(w, r, listPath+"?edit="+url.QueryEscape(id), http.StatusSeeOther)
		return
	}

	s.addFlash(w, r, flashSuccess, def.Singular+" updated.")
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

func (s *Site) deleteRecord(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	def, ok := resourceDefs[ps.ByName("resource")]
	if !ok {
		s.notFound(w, r)
		return
	}
	listPath := "/manage/" + def.Name

	r = s.apiContext(r)
	if err := s.api.Records(def.Name).Delete(r.Context(), ps.ByName("id")); err != nil {
		if s.handleAPIError(w, r, "delete "+def.Name, err) {
			return
		}
		s.addFlash(w, r, flashError, "Could not delete "+strings.ToLower(def.Singular)+": "+apiErrorMessage(err))
		http.Redirect(w, r, listPath, http.StatusSeeOther)
		return
	}

	s.addFlash(w, r, flashSuccess, def.Singular+" deleted.")
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}
