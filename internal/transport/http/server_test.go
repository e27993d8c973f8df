package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gopherai-tutor/internal/ai"
	"gopherai-tutor/internal/app"
	"gopherai-tutor/internal/bootstrap"
	"gopherai-tutor/internal/config"
	"gopherai-tutor/internal/contextstore"
	"gopherai-tutor/internal/document"
	"gopherai-tutor/internal/metrics"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	return "echo: " + messages[len(messages)-1].Content, nil
}

func (echoCompleter) StreamComplete(_ context.Context, _ ai.ChatConfig, _ []ai.ChatMessage, _ func(string) error) (string, error) {
	return "", nil
}

func newTestApp(t *testing.T, origins []string) *bootstrap.App {
	t.Helper()
	root := t.TempDir()
	webDir := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(webDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<h1>tutor</h1>"), 0o644))

	m := metrics.New()
	storage := contextstore.NewFSStorage(filepath.Join(root, "contexts"))
	return &bootstrap.App{
		Config: &config.Config{
			App:     config.AppConfig{Name: "gopherai-tutor", Env: "test", GinMode: "test", WebDir: webDir},
			Storage: config.StorageConfig{Driver: config.StorageDriverFS, MaxUploadBytes: 1 << 20},
			CORS:    config.CORSConfig{AllowOrigins: origins},
		},
		Logger:  zap.NewNop(),
		Metrics: m,
		Tutor: app.NewTutorService(app.TutorDeps{
			Store:     contextstore.NewStore(storage),
			Selector:  contextstore.NewSelector(storage, nil),
			Extractor: document.NewExtractor(document.MaxTextChars),
			LLM:       echoCompleter{},
			LLMConfig: ai.ChatConfig{BaseURL: "http://llm.invalid", APIKey: "k", Model: "m"},
			UploadDir: filepath.Join(root, "uploads"),
			Metrics:   m,
		}),
		StartedAt: time.Now(),
	}
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthzWithoutOptionalDependencies(t *testing.T) {
	router := NewRouter(newTestApp(t, nil))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "gopherai-tutor", body["app"])
	assert.Equal(t, "fs", body["storage_driver"])
	assert.Empty(t, body["dependencies"])
}

func TestIndexServed(t *testing.T) {
	router := NewRouter(newTestApp(t, nil))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>tutor</h1>")
}

func TestMetricsExposeRequests(t *testing.T) {
	router := NewRouter(newTestApp(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"echo: hi"}`, w.Body.String())

	w = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tutor_requests_total{operation="chat",outcome="ok"`)
}

func TestRequestIDEchoed(t *testing.T) {
	router := NewRouter(newTestApp(t, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := serve(router, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(newTestApp(t, []string{"https://tutor.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://tutor.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := serve(router, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://tutor.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	router := NewRouter(newTestApp(t, []string{"*"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := serve(router, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
