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

func applyCertificateInput(input *formInput, cert *models.Certificate) *validator.Validator {
	cert.Title = input.getOr("title", cert.Title)
	cert.Organization = input.getOr("organization", cert.Organization)
	cert.Date = input.getOr("date", cert.Date)
	cert.Description = input.getOr("description", cert.Description)

	v := validator.New()
	v.CheckNotBlank(cert.Title, "title", "must be provided")
	v.CheckMaxLength(cert.Title, 200, "title", "must not be more than 200 characters long")
	v.CheckNotBlank(cert.Organization, "organization", "must be provided")
	v.CheckNotBlank(cert.Date, "date", "must be provided")
	if cert.Date != "" {
		v.CheckDate(cert.Date, "date", "must be a date in YYYY-MM-DD format")
	}
	v.CheckNotBlank(cert.Description, "description", "must be provided")
	return v
}

func (app *application) listCertificates(w http.ResponseWriter, r *http.Request) {
	app.serveList(w, r, client.ResourceCertificates, func(ctx context.Context, f filter.Filter) (any, error) {
		return app.core.ListCertificates(ctx, f)
	})
}

func (app *application) getCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	cert, err := app.core.GetCertificate(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusOK, cert, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) createCertificate(w http.ResponseWriter, r *http.Request) {
	input, err := app.readInput(w, r)
	if err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}

	cert := &models.Certificate{}
	if v := applyCertificateInput(input, cert); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if cert.Image, err = uploads.field(input, "image", ""); err != nil {
		app.uploadErrorResponse(w, r, "image", err)
		return
	}

	created, err := app.core.CreateCertificate(r.Context(), cert)
	if err != nil {
		uploads.rollback()
		app.internalErrorResponse(w, r, err)
		return
	}
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceCertificates)

	if err := app.writeJSON(w, http.StatusCreated, created, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) updateCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	current, err := app.core.GetCertificate(r.Context(), id)
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

	cert := *current
	if v := applyCertificateInput(input, &cert); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if cert.Image, err = uploads.field(input, "image", current.Image); err != nil {
		app.uploadErrorResponse(w, r, "image", err)
		return
	}

	updated, err := app.core.UpdateCertificate(r.Context(), &cert)
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
	app.invalidateList(r.Context(), client.ResourceCertificates)

	if err := app.writeJSON(w, http.StatusOK, updated, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) deleteCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	deleted, err := app.core.DeleteCertificate(r.Context(), id)
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
	uploads.discard(deleted.Image)
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceCertificates)

	app.deletedResponse(w, r, "Certificate deleted successfully")
}
