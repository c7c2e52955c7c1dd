package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"sharesphere/internal/service"
	internalws "sharesphere/internal/websocket"
	"sharesphere/pkg/config"
	"sharesphere/pkg/db"
	"sharesphere/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	svc    *service.Services
	hub    *internalws.Hub
	store  *storage.BlobStore
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, db.InitTestDB(t.TempDir()))
	t.Cleanup(func() { _ = db.Close() })
	config.GlobalConfig.Server.AllowedOrigins = nil

	store, err := storage.NewBlobStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	hub := internalws.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	svc := service.NewServices(hub, store, config.GlobalConfig.Storage.MaxFileSize)
	hub.SetPresenceHandler(svc.Notifications)

	router, err := NewRouter(svc, hub)
	require.NoError(t, err)
	return &testServer{router: router, svc: svc, hub: hub, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, method, path, token, body, "application/json")
}

// 创建用户并登录，返回令牌
func (s *testServer) login(t *testing.T, username string, isAdmin bool) (uint, string) {
	t.Helper()
	u, err := s.svc.Auth.CreateAccount(context.Background(), username, "pw-"+username, isAdmin)
	require.NoError(t, err)

	w := s.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "pw-" + username,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	decodeData(t, w, &data)
	require.NotEmpty(t, data.Token)
	return u.ID, data.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	env := decode(t, w)
	require.True(t, env.Success, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// 构造上传表单
func multipartBody(t *testing.T, filename, content string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
