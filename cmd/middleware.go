package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/core"
)

func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", client.TokenHeader)

		token := strings.TrimSpace(r.Header.Get(client.TokenHeader))
		if token != "" {
			claim, err := app.auth.Authenticate(token)
			if err != nil {
				app.invalidAuthenticationTokenResponse(w, r, err)
				return
			}

			userID, err := uuid.Parse(claim.UserID)
			if err != nil {
				app.invalidAuthenticationTokenResponse(w, r, xerrors.New(err))
				return
			}

			user, err := app.core.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, core.NoRecordFound) {
					app.invalidAuthenticationTokenResponse(w, r, err)
					return
				}
				app.internalErrorResponse(w, r, err)
				return
			}
			user.Token = token
			r = app.auth.SetAuthenticatedUser(r, user)
		}

		next.ServeHTTP(w, r)
	})
}

func (app *application) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !app.auth.IsUserAuthenticated(r) {
			app.authenticationRequiredResponse(w, r, xerrors.Newf("authentication required"))
			return
		}
		next(w, r)
	}
}

func (app *application) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return app.requireAuthenticatedUser(func(w http.ResponseWriter, r *http.Request) {
		user, err := app.auth.GetAuthenticatedUser(r)
		if err != nil || !user.IsAdmin() {
			app.notPermittedResponse(w, r)
			return
		}
		next(w, r)
	})
}

func (app *application) rateLimitLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !app.limiter.Allow(app.proxies.ClientIP(r)) {
			app.rateLimitExceededResponse(w, r)
			return
		}
		next(w, r)
	}
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.internalErrorResponse(w, r, xerrors.New(fmt.Errorf("%s", err)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
