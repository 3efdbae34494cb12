package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/core"
	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/validator"
	"github.com/siahsang/portfolio/models"
)

func applyTestimonialInput(input *formInput, t *models.Testimonial) *validator.Validator {
	t.Name = input.getOr("name", t.Name)
	t.Position = input.getOr("position", t.Position)
	t.Company = input.getOr("company", t.Company)
	t.Testimonial = input.getOr("testimonial", t.Testimonial)

	v := validator.New()
	v.CheckNotBlank(t.Name, "name", "must be provided")
	v.CheckMaxLength(t.Name, 100, "name", "must not be more than 100 characters long")
	v.CheckNotBlank(t.Testimonial, "testimonial", "must be provided")
	v.CheckMaxLength(t.Testimonial, 5000, "testimonial", "must not be more than 5000 characters long")
	return v
}

// testimonialImages resolves the logo and the portrait together so that a
// failure on the second rolls back the first.
func testimonialImages(uploads *uploadBatch, input *formInput, t *models.Testimonial, current *models.Testimonial) (string, error) {
	var err error
	if t.CompanyLogo, err = uploads.field(input, "companyLogo", current.CompanyLogo); err != nil {
		return "companyLogo", err
	}
	if t.Image, err = uploads.field(input, "image", current.Image); err != nil {
		return "image", err
	}
	return "", nil
}

func (app *application) listTestimonials(w http.ResponseWriter, r *http.Request) {
	app.serveList(w, r, client.ResourceTestimonials, func(ctx context.Context, f filter.Filter) (any, error) {
		return app.core.ListTestimonials(ctx, f)
	})
}

func (app *application) getTestimonial(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	t, err := app.core.GetTestimonial(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusOK, t, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) createTestimonial(w http.ResponseWriter, r *http.Request) {
	input, err := app.readInput(w, r)
	if err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}

	t := &models.Testimonial{}
	if v := applyTestimonialInput(input, t); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if field, err := testimonialImages(uploads, input, t, &models.Testimonial{}); err != nil {
		app.uploadErrorResponse(w, r, field, err)
		return
	}

	created, err := app.core.CreateTestimonial(r.Context(), t)
	if err != nil {
		uploads.rollback()
		app.internalErrorResponse(w, r, err)
		return
	}
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceTestimonials)

	if err := app.writeJSON(w, http.StatusCreated, created, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) updateTestimonial(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	current, err := app.core.GetTestimonial(r.Context(), id)
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

	t := *current
	if v := applyTestimonialInput(input, &t); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if field, err := testimonialImages(uploads, input, &t, current); err != nil {
		app.uploadErrorResponse(w, r, field, err)
		return
	}

	updated, err := app.core.UpdateTestimonial(r.Context(), &t)
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
	app.invalidateList(r.Context(), client.ResourceTestimonials)

	if err := app.writeJSON(w, http.StatusOK, updated, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) deleteTestimonial(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	deleted, err := app.core.DeleteTestimonial(r.Context(), id)
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
	uploads.discard(deleted.CompanyLogo, deleted.Image)
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceTestimonials)

	app.deletedResponse(w, r, "Testimonial deleted successfully")
}
