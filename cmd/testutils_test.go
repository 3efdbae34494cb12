package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/siahsang/portfolio/internal/auth"
	"github.com/siahsang/portfolio/internal/cache"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/config"
	"github.com/siahsang/portfolio/internal/content"
	"github.com/siahsang/portfolio/internal/core"
	"github.com/siahsang/portfolio/internal/media"
	"github.com/siahsang/portfolio/internal/ratelimit"
	"github.com/siahsang/portfolio/internal/testutil"
	"github.com/siahsang/portfolio/internal/utils/databaseutils"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

func newTestApp(t *testing.T) *application {
	t.Helper()

	cfg := &config.Config{
		Env:                 "test",
		Host:                "127.0.0.1",
		Port:                3000,
		JWTSecret:           strings.Repeat("j", config.MinSecretLength),
		SessionSecret:       strings.Repeat("s", config.MinSecretLength),
		TokenTTL:            time.Hour,
		UploadsDir:          t.TempDir(),
		MaxUploadMB:         2,
		ImageMaxWidth:       200,
		CacheTTL:            time.Minute,
		LoginRate:           100,
		LoginBurst:          100,
		UploadSweepSchedule: "@daily",
	}
	logger := testutil.NewLogger()
	db := testutil.NewDB(t)

	app := &application{
		config:   cfg,
		logger:   logger,
		core:     core.NewCore(db, logger, databaseutils.NewSQLTemplate(db, 3*time.Second)),
		auth:     auth.New(cfg.JWTSecret, cfg.TokenTTL),
		media:    media.NewStore(cfg.UploadsDir, cfg.ImageMaxWidth, cfg.MaxUploadBytes()),
		cache:    cache.NewMemoryCache(cfg.CacheTTL),
		limiter:  ratelimit.New(cfg.LoginRate, cfg.LoginBurst),
		renderer: content.NewRenderer(),
	}
	t.Cleanup(app.wg.Wait)
	return app
}

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T, app *application) *testServer {
	t.Helper()
	h, err := app.handler()
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t}
}

// do sends a request and returns the response with its body read.
func (ts *testServer) do(method, path, token, contentType string, body io.Reader) (*http.Response, []byte) {
	ts.t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, body)
	require.NoError(ts.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(client.TokenHeader, token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return resp, data
}

// json sends in as a JSON body (nil for none) and decodes the answer into out.
func (ts *testServer) json(method, path, token string, in, out any) *http.Response {
	ts.t.Helper()
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		require.NoError(ts.t, err)
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, data := ts.do(method, path, token, contentType, body)
	if out != nil {
		require.NoError(ts.t, json.Unmarshal(data, out), string(data))
	}
	return resp
}

type multipartFile struct {
	field, name string
	data        []byte
}

func (ts *testServer) multipart(method, path, token string, fields map[string]string, files []multipartFile, out any) *http.Response {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(ts.t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(ts.t, err)
		_, err = part.Write(f.data)
		require.NoError(ts.t, err)
	}
	require.NoError(ts.t, mw.Close())

	resp, data := ts.do(method, path, token, mw.FormDataContentType(), &buf)
	if out != nil {
		require.NoError(ts.t, json.Unmarshal(data, out), string(data))
	}
	return resp
}

type errorBody struct {
	ErrorMessage string            `json:"errorMessage"`
	ErrorDetails map[string]string `json:"errorDetails"`
}

// createUser stores an account and returns a token for it.
func createUser(t *testing.T, app *application, email, role string) string {
	t.Helper()
	user := &auth.User{
		Email:    email,
		Username: strings.Split(email, "@")[0],
		Role:     role,
	}
	require.NoError(t, user.SetPassword(testPassword))
	require.NoError(t, app.core.CreateNewUser(context.Background(), user))

	token, err := app.auth.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
