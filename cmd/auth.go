package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/auth"
	"github.com/siahsang/portfolio/internal/core"
	"github.com/siahsang/portfolio/internal/validator"
)

var errInvalidCredentials = xerrors.Message("Invalid credentials")

// login exchanges an email and password for a token. Unknown emails and wrong
// passwords get the same answer.
func (app *application) login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, &AppError{ErrorMessage: err.Error(), ErrorStack: err})
		return
	}
	input.Email = strings.TrimSpace(input.Email)

	v := validator.New()
	checkEmail(v, input.Email)
	v.CheckNotBlank(input.Password, "password", "must be provided")
	if !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	user, err := app.checkCredentials(r.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			app.logger.Info("login rejected", "email", input.Email)
			app.badRequestResponse(w, r, &AppError{ErrorMessage: errInvalidCredentials.Error(), ErrorStack: err})
			return
		}
		app.internalErrorResponse(w, r, err)
		return
	}

	token, err := app.auth.GenerateToken(user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"token": token, "user": user}, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) checkCredentials(ctx context.Context, email, password string) (*auth.User, error) {
	user, err := app.core.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.NoRecordFound) {
			return nil, xerrors.New(errInvalidCredentials)
		}
		return nil, err
	}

	match, err := user.IsPasswordMatch(password)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, xerrors.New(errInvalidCredentials)
	}
	return user, nil
}
