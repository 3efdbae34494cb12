package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/content"
	"github.com/siahsang/portfolio/internal/core"
	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/validator"
	"github.com/siahsang/portfolio/models"
)

func (app *application) applyBlogInput(input *formInput, b *models.Blog) *validator.Validator {
	v := validator.New()

	b.Title = input.getOr("title", b.Title)
	b.Author = input.getOr("author", b.Author)
	if input.has("content") {
		b.Content = app.renderer.Sanitize(input.get("content"))
	}
	if input.has("tags") {
		b.Tags = content.ParseTags(strings.Join(input.list("tags"), ","))
	}
	if raw := input.get("date"); raw != "" {
		date, err := parseBlogDate(raw)
		v.Check(err == nil, "date", "must be a date in YYYY-MM-DD or RFC 3339 format")
		b.Date = date
	}

	v.CheckNotBlank(b.Title, "title", "must be provided")
	v.CheckMaxLength(b.Title, 200, "title", "must not be more than 200 characters long")
	v.CheckNotBlank(b.Content, "content", "must be provided")
	v.CheckNotBlank(b.Author, "author", "must be provided")
	v.Check(len(b.Tags) <= 20, "tags", "must not contain more than 20 tags")
	return v
}

func parseBlogDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	return t.UTC(), err
}

func blogImages(uploads *uploadBatch, input *formInput, b *models.Blog, current *models.Blog) (string, error) {
	var err error
	if b.Image, err = uploads.field(input, "image", current.Image); err != nil {
		return "image", err
	}
	if b.AuthorAvatar, err = uploads.field(input, "authorAvatar", current.AuthorAvatar); err != nil {
		return "authorAvatar", err
	}
	return "", nil
}

func (app *application) listBlogs(w http.ResponseWriter, r *http.Request) {
	app.serveList(w, r, client.ResourceBlogs, func(ctx context.Context, f filter.Filter) (any, error) {
		return app.core.ListBlogs(ctx, f)
	})
}

// getBlog accepts either the post id or its slug.
func (app *application) getBlog(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())

	b, err := app.core.GetBlog(r.Context(), params.ByName("id"))
	if err != nil {
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusOK, b, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) createBlog(w http.ResponseWriter, r *http.Request) {
	input, err := app.readInput(w, r)
	if err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}

	b := &models.Blog{Tags: models.StringList{}}
	if v := app.applyBlogInput(input, b); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if field, err := blogImages(uploads, input, b, &models.Blog{}); err != nil {
		app.uploadErrorResponse(w, r, field, err)
		return
	}

	created, err := app.core.CreateBlog(r.Context(), b)
	if err != nil {
		uploads.rollback()
		app.internalErrorResponse(w, r, err)
		return
	}
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceBlogs)

	if err := app.writeJSON(w, http.StatusCreated, created, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) updateBlog(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	current, err := app.core.GetBlog(r.Context(), id.String())
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

	b := *current
	if v := app.applyBlogInput(input, &b); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if field, err := blogImages(uploads, input, &b, current); err != nil {
		app.uploadErrorResponse(w, r, field, err)
		return
	}

	updated, err := app.core.UpdateBlog(r.Context(), &b)
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
	app.invalidateList(r.Context(), client.ResourceBlogs)

	if err := app.writeJSON(w, http.StatusOK, updated, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) deleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	deleted, err := app.core.DeleteBlog(r.Context(), id)
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
	uploads.discard(deleted.Image, deleted.AuthorAvatar)
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceBlogs)

	app.deletedResponse(w, r, "Blog deleted successfully")
}
