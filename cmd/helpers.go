package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/validator"
)

type envelope map[string]any

func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const maxBytes = 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {

		var (
			syntaxError           *json.SyntaxError
			unmarshalTypeError    *json.UnmarshalTypeError
			invalidUnmarshalError *json.InvalidUnmarshalError
			maxBytesError         *http.MaxBytesError
		)

		switch {
		case errors.As(err, &syntaxError):
			return xerrors.Newf("body contains badly-formed JSON at (character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return xerrors.Newf("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return xerrors.Newf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return xerrors.Newf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return xerrors.Newf("body must not be empty")

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return xerrors.Newf("body contains unknown key %s", fieldName)

		case errors.As(err, &maxBytesError):
			return xerrors.Newf("body must not be larger than %d bytes", maxBytes)

		case errors.As(err, &invalidUnmarshalError):
			return xerrors.Newf("programmer error: invalid unmarshal target: %w", err)

		default:
			return xerrors.Newf("error decoding JSON: %w", err)
		}
	}

	if err := decoder.Decode(&struct{}{}); err != nil && !errors.Is(err, io.EOF) {
		return xerrors.New("body must contain only a single JSON value")
	}

	return nil
}

func (app *application) readString(qs url.Values, key string, defaultValue string) string {
	s := qs.Get(key)
	if s == "" {
		return defaultValue
	}
	return s
}

func (app *application) readInt(qs url.Values, key string, defaultValue int64, v *validator.Validator) int64 {
	s := qs.Get(key)
	if s == "" {
		return defaultValue
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		v.AddError(key, "must be an integer value")
		return defaultValue
	}
	return i
}

// readFilter parses ?limit=&offset=. Both default to 0, which lists everything.
func (app *application) readFilter(r *http.Request) (filter.Filter, *validator.Validator) {
	v := validator.New()
	query := r.URL.Query()
	f := filter.NewFilter(app.readInt(query, "limit", 0, v), app.readInt(query, "offset", 0, v))
	filter.ValidateFilters(f, v)
	return f, v
}

func (app *application) readIDParam(r *http.Request) (uuid.UUID, error) {
	params := httprouter.ParamsFromContext(r.Context())
	id, err := uuid.Parse(params.ByName("id"))
	if err != nil {
		return uuid.Nil, xerrors.Newf("invalid id parameter: %w", err)
	}
	return id, nil
}

// formInput is a request body read either from multipart/form-data or from
// JSON; JSON scalars and arrays are flattened to strings.
type formInput struct {
	values map[string][]string
	files  map[string][]*multipart.FileHeader
}

func (f *formInput) has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *formInput) get(key string) string {
	if vs := f.values[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

// getOr returns the field when the request carries it, fallback otherwise.
func (f *formInput) getOr(key, fallback string) string {
	if !f.has(key) {
		return fallback
	}
	return f.get(key)
}

func (f *formInput) list(key string) []string {
	var out []string
	for _, v := range f.values[key] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (f *formInput) file(key string) *multipart.FileHeader {
	if fs := f.files[key]; len(fs) > 0 {
		return fs[0]
	}
	return nil
}

func (f *formInput) fileList(key string) []*multipart.FileHeader {
	return f.files[key]
}

func (app *application) readInput(w http.ResponseWriter, r *http.Request) (*formInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, app.config.MaxUploadBytes()+1_048_576)
		if err := r.ParseMultipartForm(app.config.MaxUploadBytes()); err != nil {
			return nil, xerrors.Newf("invalid multipart body: %w", err)
		}
		return &formInput{values: r.MultipartForm.Value, files: r.MultipartForm.File}, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, xerrors.New(err)
		}
		return &formInput{values: r.PostForm, files: map[string][]*multipart.FileHeader{}}, nil

	default:
		var raw map[string]any
		if err := app.readJSON(w, r, &raw); err != nil {
			return nil, err
		}
		input := &formInput{values: make(map[string][]string, len(raw)), files: map[string][]*multipart.FileHeader{}}
		for key, value := range raw {
			input.values[key] = flattenJSON(value)
		}
		return input, nil
	}
}

func flattenJSON(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{""}
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, flattenJSON(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func (app *application) doInBackground(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				app.logger.Error(fmt.Sprintf("panic in background task: %v", r))
			}
		}()
		fn()
	}()
}
