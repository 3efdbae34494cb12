package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/core"
	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/utils/collectionutils"
	"github.com/siahsang/portfolio/internal/validator"
	"github.com/siahsang/portfolio/models"
)

func applyProjectInput(input *formInput, p *models.Project) *validator.Validator {
	p.Name = input.getOr("name", p.Name)
	p.Description = input.getOr("description", p.Description)
	p.GithubLink = input.getOr("githubLink", p.GithubLink)

	v := validator.New()
	v.CheckNotBlank(p.Name, "name", "must be provided")
	v.CheckMaxLength(p.Name, 200, "name", "must not be more than 200 characters long")
	v.CheckNotBlank(p.Description, "description", "must be provided")
	v.CheckNotBlank(p.GithubLink, "githubLink", "must be provided")
	if p.GithubLink != "" {
		v.CheckURL(p.GithubLink, "githubLink", "must be an absolute http or https URL")
	}
	return v
}

// projectImages rebuilds the gallery when the request mentions "images": text
// values name stored images to keep, uploaded files are appended after them.
func projectImages(uploads *uploadBatch, input *formInput, current models.StringList) (models.StringList, error) {
	files := input.fileList("images")
	if len(files) == 0 && !input.has("images") {
		return current, nil
	}

	images := models.StringList(input.list("images"))
	for _, kept := range images {
		if collectionutils.IndexOf(current, func(p string) bool { return p == kept }) < 0 {
			return nil, xerrors.Newf("%w: %q", errForeignImage, kept)
		}
	}
	for _, fh := range files {
		p, err := uploads.save(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, p)
	}

	for _, old := range current {
		if collectionutils.IndexOf(images, func(p string) bool { return p == old }) < 0 {
			uploads.discard(old)
		}
	}
	if images == nil {
		images = models.StringList{}
	}
	return images, nil
}

func (app *application) listProjects(w http.ResponseWriter, r *http.Request) {
	app.serveList(w, r, client.ResourceProjects, func(ctx context.Context, f filter.Filter) (any, error) {
		return app.core.ListProjects(ctx, f)
	})
}

func (app *application) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	p, err := app.core.GetProject(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusOK, p, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) createProject(w http.ResponseWriter, r *http.Request) {
	input, err := app.readInput(w, r)
	if err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}

	p := &models.Project{}
	if v := applyProjectInput(input, p); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if p.Images, err = projectImages(uploads, input, models.StringList{}); err != nil {
		app.uploadErrorResponse(w, r, "images", err)
		return
	}

	created, err := app.core.CreateProject(r.Context(), p)
	if err != nil {
		uploads.rollback()
		app.internalErrorResponse(w, r, err)
		return
	}
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceProjects)

	if err := app.writeJSON(w, http.StatusCreated, created, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	current, err := app.core.GetProject(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	input, err := app.readInput(w, r)
	if err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}

	p := *current
	if v := applyProjectInput(input, &p); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if p.Images, err = projectImages(uploads, input, current.Images); err != nil {
		app.uploadErrorResponse(w, r, "images", err)
		return
	}

	updated, err := app.core.UpdateProject(r.Context(), &p)
	if err != nil {
		uploads.rollback()
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceProjects)

	if err := app.writeJSON(w, http.StatusOK, updated, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	deleted, err := app.core.DeleteProject(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	uploads := newUploadBatch(app)
	uploads.discard(deleted.Images...)
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceProjects)

	app.deletedResponse(w, r, "Project deleted successfully")
}
