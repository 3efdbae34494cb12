package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/siahsang/portfolio/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	assert.Error(t, err)
}

func TestLoginSendsCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get(TokenHeader))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, map[string]string{"email": "a@b.co", "password": "pw"}, in)

		_, _ = io.WriteString(w, `{"token":"tok","user":{"id":"1","email":"a@b.co","username":"a","role":"admin","avatar":""}}`)
	})

	resp, err := c.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "admin", resp.User.Role)
}

func TestTokenHeaderPrecedence(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(TokenHeader))
		_, _ = io.WriteString(w, `{"id":"1"}`)
	}, WithTokenSource(staticToken("stored")))

	_, err := c.Profile(context.Background())
	require.NoError(t, err)
	_, err = c.Profile(WithToken(context.Background(), "session"))
	require.NoError(t, err)

	assert.Equal(t, []string{"stored", "session"}, seen)
}

func TestResourceCRUD(t *testing.T) {
	var deleted string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/skills":
			_, _ = io.WriteString(w, `[{"_id":"7f9c24e8-3b12-4fef-91e0-4a9d7a8e8b11","name":"Go","level":"Expert","image":""}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/skills":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "SQL", r.FormValue("name"))
			file, header, err := r.FormFile("image")
			require.NoError(t, err)
			defer file.Close()
			body, _ := io.ReadAll(file)
			assert.Equal(t, "logo.png", header.Filename)
			assert.Equal(t, "png-bytes", string(body))
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"_id":"0b7c1d1e-1111-4a4a-9b9b-222222222222","name":"SQL","level":"Advanced","image":"/uploads/x/logo.png"}`)
		case r.Method == http.MethodDelete:
			deleted = strings.TrimPrefix(r.URL.Path, "/api/skills/")
			_, _ = io.WriteString(w, `{"message":"Skill deleted"}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	skills, err := c.Skills().List(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "Go", skills[0].Name)

	created, err := c.Skills().Create(ctx, Form{
		Fields: url.Values{"name": {"SQL"}, "level": {"Advanced"}},
		Files:  []FileField{{Field: "image", Filename: "logo.png", Content: strings.NewReader("png-bytes")}},
	})
	require.NoError(t, err)
	want := models.Skill{ID: created.ID, Name: "SQL", Level: "Advanced", Image: "/uploads/x/logo.png"}
	if diff := cmp.Diff(want, created); diff != "" {
		t.Errorf("created skill mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, c.Skills().Delete(ctx, created.ID.String()))
	assert.Equal(t, created.ID.String(), deleted)
}

func TestAPIErrorDecoding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errorMessage":"","errorDetails":{"name":"must be provided"}}`)
	})

	_, err := c.Records(ResourceSkills).Create(context.Background(), Form{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "must be provided", apiErr.Details["name"])
	assert.Equal(t, "Bad Request", apiErr.Error())
}

func TestAPIErrorPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	})

	_, err := c.Blogs().Get(context.Background(), "hello-world")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "gateway exploded", apiErr.Message)
}
