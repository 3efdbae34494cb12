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

func applySkillInput(input *formInput, skill *models.Skill) *validator.Validator {
	skill.Name = input.getOr("name", skill.Name)
	skill.Level = input.getOr("level", skill.Level)

	v := validator.New()
	v.CheckNotBlank(skill.Name, "name", "must be provided")
	v.CheckMaxLength(skill.Name, 100, "name", "must not be more than 100 characters long")
	v.CheckNotBlank(skill.Level, "level", "must be provided")
	v.CheckMaxLength(skill.Level, 50, "level", "must not be more than 50 characters long")
	return v
}

func (app *application) listSkills(w http.ResponseWriter, r *http.Request) {
	app.serveList(w, r, client.ResourceSkills, func(ctx context.Context, f filter.Filter) (any, error) {
		return app.core.ListSkills(ctx, f)
	})
}

func (app *application) getSkill(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	skill, err := app.core.GetSkill(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusOK, skill, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) createSkill(w http.ResponseWriter, r *http.Request) {
	input, err := app.readInput(w, r)
	if err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}

	skill := &models.Skill{}
	if v := applySkillInput(input, skill); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if skill.Image, err = uploads.field(input, "image", ""); err != nil {
		app.uploadErrorResponse(w, r, "image", err)
		return
	}

	created, err := app.core.CreateSkill(r.Context(), skill)
	if err != nil {
		uploads.rollback()
		app.internalErrorResponse(w, r, err)
		return
	}
	uploads.commit()
	app.invalidateList(r.Context(), client.ResourceSkills)

	if err := app.writeJSON(w, http.StatusCreated, created, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) updateSkill(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	current, err := app.core.GetSkill(r.Context(), id)
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

	skill := *current
	if v := applySkillInput(input, &skill); !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	uploads := newUploadBatch(app)
	if skill.Image, err = uploads.field(input, "image", current.Image); err != nil {
		app.uploadErrorResponse(w, r, "image", err)
		return
	}

	updated, err := app.core.UpdateSkill(r.Context(), &skill)
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
	app.invalidateList(r.Context(), client.ResourceSkills)

	if err := app.writeJSON(w, http.StatusOK, updated, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) deleteSkill(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	deleted, err := app.core.DeleteSkill(r.Context(), id)
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
	app.invalidateList(r.Context(), client.ResourceSkills)

	app.deletedResponse(w, r, "Skill deleted successfully")
}
