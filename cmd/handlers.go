package main

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/cache"
	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/media"
)

func listCacheKey(resource string) string {
	return "list:" + resource
}

// listVersions counts invalidations per resource, so a list read that raced
// a mutation is never left in the cache.
type listVersions struct {
	mu  sync.Mutex
	gen map[string]uint64
}

func (lv *listVersions) current(resource string) uint64 {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.gen[resource]
}

func (lv *listVersions) bump(resource string) {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	if lv.gen == nil {
		lv.gen = make(map[string]uint64)
	}
	lv.gen[resource]++
}

// serveList writes a resource collection as a JSON array. Unpaged lists are
// served from the cache until the next mutation of the resource.
func (app *application) serveList(w http.ResponseWriter, r *http.Request, resource string, load func(ctx context.Context, f filter.Filter) (any, error)) {
	f, v := app.readFilter(r)
	if !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return
	}

	key := listCacheKey(resource)
	version := app.lists.current(resource)
	if !f.IsPaged() {
		cached, err := app.cache.Get(r.Context(), key)
		switch {
		case err == nil:
			_ = app.writeRawJSON(w, http.StatusOK, cached, http.Header{"X-Cache": {"HIT"}})
			return
		case !errors.Is(err, cache.ErrCacheMiss):
			app.logger.Warn("list cache read failed", "resource", resource, "error", err)
		}
	}

	items, err := load(r.Context(), f)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}
	js, err := marshalJSON(items)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	if !f.IsPaged() && app.lists.current(resource) == version {
		if err := app.cache.Set(r.Context(), key, js, 0); err != nil {
			app.logger.Warn("list cache write failed", "resource", resource, "error", err)
		}
		// A mutation may have invalidated the key while it was written.
		if app.lists.current(resource) != version {
			app.invalidateList(r.Context(), resource)
		}
	}
	_ = app.writeRawJSON(w, http.StatusOK, js, http.Header{"X-Cache": {"MISS"}})
}

// invalidateList bumps the resource version before dropping the cached list.
func (app *application) invalidateList(ctx context.Context, resource string) {
	app.lists.bump(resource)
	if err := app.cache.Delete(ctx, listCacheKey(resource)); err != nil {
		app.logger.Warn("list cache invalidation failed", "resource", resource, "error", err)
	}
}

func (app *application) deletedResponse(w http.ResponseWriter, r *http.Request, message string) {
	if err := app.writeJSON(w, http.StatusOK, envelope{"message": message}, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) uploadErrorResponse(w http.ResponseWriter, r *http.Request, field string, err error) {
	switch {
	case errors.Is(err, media.ErrUnsupportedImage):
		app.badRequestResponse(w, r, &AppError{
			ErrorStack:   err,
			ErrorDetails: map[string]string{field: "must be a JPEG, PNG, GIF or WebP image"},
		})
	case errors.Is(err, errForeignImage):
		app.badRequestResponse(w, r, &AppError{
			ErrorStack:   err,
			ErrorDetails: map[string]string{field: "must be an uploaded image or the current one"},
		})
	case errors.Is(err, media.ErrImageTooLarge):
		app.payloadTooLargeResponse(w, r, err)
	default:
		app.internalErrorResponse(w, r, err)
	}
}

// uploadBatch tracks the files written while handling one request. New files
// are removed if the request fails; replaced files are removed once it succeeds.
type uploadBatch struct {
	app      *application
	saved    []string
	replaced []string
}

func newUploadBatch(app *application) *uploadBatch {
	return &uploadBatch{app: app}
}

func (b *uploadBatch) save(fh *multipart.FileHeader) (string, error) {
	p, err := b.app.media.SaveFile(fh)
	if err != nil {
		b.rollback()
		return "", err
	}
	b.saved = append(b.saved, p)
	return p, nil
}

// errForeignImage rejects a text image value that is not the record's own.
var errForeignImage = xerrors.Message("image is not stored for this record")

// field resolves an image field: an uploaded file wins, then a text value,
// then the stored path. A text value may only keep the stored path or clear it.
func (b *uploadBatch) field(input *formInput, key, current string) (string, error) {
	if fh := input.file(key); fh != nil {
		p, err := b.save(fh)
		if err != nil {
			return "", err
		}
		b.discard(current)
		return p, nil
	}
	if input.has(key) {
		value := input.get(key)
		if value == current {
			return current, nil
		}
		if value != "" {
			b.rollback()
			return "", xerrors.Newf("%w: %q", errForeignImage, value)
		}
		b.discard(current)
		return "", nil
	}
	return current, nil
}

// discard schedules stored paths for removal on commit.
func (b *uploadBatch) discard(paths ...string) {
	for _, p := range paths {
		if p != "" {
			b.replaced = append(b.replaced, p)
		}
	}
}

func (b *uploadBatch) rollback() {
	b.removeLater(b.saved)
	b.saved = nil
}

func (b *uploadBatch) commit() {
	b.removeLater(b.replaced)
	b.replaced = nil
}

func (b *uploadBatch) removeLater(paths []string) {
	if len(paths) == 0 {
		return
	}
	paths = append([]string(nil), paths...)
	b.app.doInBackground(func() {
		for _, p := range paths {
			if err := b.app.media.Remove(p); err != nil {
				b.app.logger.Error("failed to remove upload", "path", p, "error", err)
			}
		}
	})
}
