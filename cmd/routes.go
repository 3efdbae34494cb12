package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type resourceHandlers struct {
	name                               string
	list, get, create, update, destroy http.HandlerFunc
}

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/api/healthcheck", app.healthcheck)

	router.HandlerFunc(http.MethodPost, "/api/auth/login", app.rateLimitLogin(app.login))
	router.HandlerFunc(http.MethodGet, "/api/users/profile", app.requireAuthenticatedUser(app.getProfile))
	router.HandlerFunc(http.MethodPut, "/api/users/profile", app.requireAuthenticatedUser(app.updateProfile))

	for _, res := range []resourceHandlers{
		{"skills", app.listSkills, app.getSkill, app.createSkill, app.updateSkill, app.deleteSkill},
		{"certificates", app.listCertificates, app.getCertificate, app.createCertificate, app.updateCertificate, app.deleteCertificate},
		{"testimonials", app.listTestimonials, app.getTestimonial, app.createTestimonial, app.updateTestimonial, app.deleteTestimonial},
		{"projects", app.listProjects, app.getProject, app.createProject, app.updateProject, app.deleteProject},
		{"blogs", app.listBlogs, app.getBlog, app.createBlog, app.updateBlog, app.deleteBlog},
	} {
		collection := "/api/" + res.name
		item := collection + "/:id"

		router.HandlerFunc(http.MethodGet, collection, res.list)
		router.HandlerFunc(http.MethodGet, item, res.get)
		router.HandlerFunc(http.MethodPost, collection, app.requireAdmin(res.create))
		router.HandlerFunc(http.MethodPut, item, app.requireAdmin(res.update))
		router.HandlerFunc(http.MethodDelete, item, app.requireAdmin(res.destroy))
	}

	return app.recoverPanic(app.authenticate(router))
}

func (app *application) healthcheck(w http.ResponseWriter, r *http.Request) {
	status := "available"
	code := http.StatusOK
	if err := app.core.Ping(r.Context()); err != nil {
		app.logger.Error("database ping failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	data := envelope{"status": status, "env": app.config.Env}
	if err := app.writeJSON(w, code, data, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}
