package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type remoteHarness struct {
	t         *testing.T
	api       string
	storePath string
}

func newRemoteHarness(t *testing.T) (*remoteHarness, *application) {
	t.Helper()
	app := newTestApp(t)
	ts := newTestServer(t, app)
	return &remoteHarness{
		t:         t,
		api:       ts.URL + "/api",
		storePath: filepath.Join(t.TempDir(), "store.yaml"),
	}, app
}

func (h *remoteHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"remote", "--api", h.api, "--store", h.storePath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *remoteHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestRemoteLoginManageAndLogout(t *testing.T) {
	h, app := newRemoteHarness(t)
	createUser(t, app, "admin@example.com", "admin")

	out, err := h.run("create", "skills", "--field", "name=Go")
	require.ErrorIs(t, err, errLoginRequired)
	assert.Empty(t, out)

	out = h.mustRun("login", "--email", "admin@example.com", "--password", testPassword)
	assert.Contains(t, out, "logged in as admin (admin)")

	store, err := localstore.Open(h.storePath)
	require.NoError(t, err)
	assert.NotEmpty(t, store.Token())

	out = h.mustRun("whoami")
	assert.Contains(t, out, "admin <admin@example.com> admin")

	out = h.mustRun("create", "skills", "--field", "name=Go", "--field", "level=Expert")
	assert.Contains(t, out, "name: Go")

	png := filepath.Join(t.TempDir(), "sql.png")
	require.NoError(t, os.WriteFile(png, pngImage(t, 30, 30), 0o600))
	out = h.mustRun("create", "skills", "--field", "name=SQL", "--field", "level=Good", "--file", "image="+png)
	assert.Contains(t, out, "image: /uploads/")

	out = h.mustRun("list", "skills")
	assert.Contains(t, out, "Go")
	assert.Contains(t, out, "SQL")
	assert.Contains(t, out, "2 skills")

	_, err = h.run("create", "skills", "--field", "level=Expert")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must be provided")

	skills, err := app.core.ListSkills(context.Background(), filter.Filter{})
	require.NoError(t, err)
	require.Len(t, skills, 2)
	id := skills[0].ID.String()

	out = h.mustRun("update", "skills", id, "--field", "level=Master")
	assert.Contains(t, out, "level: Master")
	assert.Contains(t, out, "name: Go")

	out = h.mustRun("get", "skills", id)
	assert.Contains(t, out, "level: Master")

	out = h.mustRun("delete", "skills", id)
	assert.Contains(t, out, "deleted skills "+id)

	out = h.mustRun("list", "skills")
	assert.Contains(t, out, "1 skills")

	h.mustRun("logout")
	out = h.mustRun("whoami")
	assert.Contains(t, out, "not logged in")
}

func TestRemoteNonAdminCannotMutate(t *testing.T) {
	h, app := newRemoteHarness(t)
	createUser(t, app, "reader@example.com", "user")

	h.mustRun("login", "--email", "reader@example.com", "--password", testPassword)

	_, err := h.run("delete", "skills", "5f2b6d3e-4c1a-4f7e-9b2a-1c3d5e7f9a0b")
	require.ErrorIs(t, err, errAdminRequired)

	out := h.mustRun("profile")
	assert.Contains(t, out, "email: reader@example.com")
}

func TestRemoteRejectsUnknownResource(t *testing.T) {
	h, _ := newRemoteHarness(t)

	_, err := h.run("list", "widgets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown resource "widgets"`)
}

func TestRemoteExpiredTokenIsForgotten(t *testing.T) {
	h, _ := newRemoteHarness(t)

	store, err := localstore.Open(h.storePath)
	require.NoError(t, err)
	store.Set(localstore.KeyToken, "expired")
	store.Set(localstore.KeyUser, `{"username":"admin","role":"admin"}`)
	require.NoError(t, store.Save())

	_, err = h.run("create", "skills", "--field", "name=Go", "--field", "level=Expert")
	require.ErrorIs(t, err, errSessionExpired)

	store, err = localstore.Open(h.storePath)
	require.NoError(t, err)
	assert.Empty(t, store.Token())
}

func TestRemoteThemeAndBlogRendering(t *testing.T) {
	h, app := newRemoteHarness(t)
	createUser(t, app, "admin@example.com", "admin")

	assert.Equal(t, "light\n", h.mustRun("theme"))
	assert.Equal(t, "dark\n", h.mustRun("theme", "toggle"))
	assert.Equal(t, "dark\n", h.mustRun("theme"))
	assert.Equal(t, "light\n", h.mustRun("theme", "light"))

	_, err := h.run("theme", "purple")
	require.Error(t, err)

	h.mustRun("login", "--email", "admin@example.com", "--password", testPassword)
	h.mustRun("create", "blogs",
		"--field", "title=Terminal Rendering",
		"--field", "author=Ann",
		"--field", "content=Markdown **works** here",
		"--field", "tags=go,cli",
	)

	out := ansiEscape.ReplaceAllString(h.mustRun("get", "blogs", "terminal-rendering"), "")
	assert.Contains(t, out, "Terminal Rendering")
	assert.Contains(t, out, "works")
	assert.Contains(t, out, "Ann")
}
