package main

import (
	"errors"
	"net/http"

	"github.com/siahsang/portfolio/internal/core"
	"github.com/siahsang/portfolio/internal/validator"
)

func (app *application) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, user, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

// updateProfile changes the email, the password and the avatar; absent fields are kept.
func (app *application) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	input, err := app.readInput(w, r)
	if err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}

	updated := *user
	updated.Email = input.getOr("email", user.Email)
	password := input.get("password")

	v := validator.New()
	checkEmail(v, updated.Email)
	if password != "" {
		checkPassword(v, password)
	}
	if !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	if password != "" {
		if err := updated.SetPassword(password); err != nil {
			app.internalErrorResponse(w, r, err)
			return
		}
	}

	uploads := newUploadBatch(app)
	if updated.Avatar, err = uploads.field(input, "avatar", user.Avatar); err != nil {
		app.uploadErrorResponse(w, r, "avatar", err)
		return
	}

	saved, err := app.core.UpdateUser(r.Context(), &updated)
	if err != nil {
		uploads.rollback()
		switch {
		case errors.Is(err, core.ErrDuplicateEmail):
			v.AddError("email", "Email address is already in use")
			app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors, ErrorStack: err})
		case errors.Is(err, core.NoRecordFound):
			app.notFoundResponse(w, r)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}
	uploads.commit()

	if err := app.writeJSON(w, http.StatusOK, saved, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}
