package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/jobs"
	"github.com/siahsang/portfolio/internal/media"
	"github.com/siahsang/portfolio/internal/site"
)

// handler mounts the API, the uploads directory and, when enabled, the site.
func (app *application) handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.Handle("/api/", app.routes())
	mux.Handle(media.PublicPrefix, http.StripPrefix(strings.TrimSuffix(media.PublicPrefix, "/"), uploadsServer(app.config.UploadsDir)))

	if !app.config.SiteEnabled {
		return mux, nil
	}

	api, err := client.New(app.config.SiteAPIBaseURL())
	if err != nil {
		return nil, err
	}
	s, err := site.New(site.Options{
		Client:        api,
		Logger:        app.logger.With("component", "site"),
		Renderer:      app.renderer,
		SessionSecret: app.config.SessionSecret,
		Secure:        !app.config.IsDevelopment(),
		ClientIP:      app.proxies.ClientIP,
	})
	if err != nil {
		return nil, err
	}
	mux.Handle("/", s.Handler())
	return mux, nil
}

// uploadsServer serves files but answers 404 for directories.
func uploadsServer(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if clean == "/" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (app *application) scheduler() (*jobs.Scheduler, error) {
	scheduler := jobs.NewScheduler(app.logger.With("component", "jobs"))

	sweeper := jobs.NewSweeper(app.core, app.config.UploadsDir, time.Hour, app.logger)
	if err := scheduler.AddSweep(app.config.UploadSweepSchedule, sweeper); err != nil {
		return nil, err
	}
	if err := scheduler.AddPrune(10*time.Minute, app.limiter); err != nil {
		return nil, err
	}
	return scheduler, nil
}

func (app *application) serve() error {
	h, err := app.handler()
	if err != nil {
		return err
	}

	scheduler, err := app.scheduler()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              app.config.ServerAddr(),
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	shutdownError := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := server.Shutdown(ctx)

		app.logger.Info("completing background tasks", "addr", server.Addr)
		app.wg.Wait()
		scheduler.Stop()
		shutdownError <- err
	}()

	scheduler.Start()
	app.logger.Info("starting server", "addr", server.Addr, "env", app.config.Env, "site", app.config.SiteEnabled)

	err = server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		scheduler.Stop()
		return xerrors.New(err)
	}

	if err := <-shutdownError; err != nil {
		return xerrors.New(err)
	}

	app.logger.Info("stopped server", "addr", server.Addr)
	return nil
}
