package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/metrics"
	"github.com/libsearch/sitecrawler/internal/pool"
)

type fakeSource struct {
	progress pool.Progress
}

func (s *fakeSource) Progress() pool.Progress { return s.progress }

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeSource{}, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Status(t *testing.T) {
	t.Parallel()

	source := &fakeSource{progress: pool.Progress{
		RunID:    "run-42",
		Visited:  10,
		Failed:   1,
		Frontier: 5,
		Active:   3,
		Running:  true,
	}}
	srv := NewServer(source, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got pool.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, source.progress, got)
}

func TestServer_StatusWithoutSource(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	metrics.Init()
	srv := NewServer(&fakeSource{}, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
