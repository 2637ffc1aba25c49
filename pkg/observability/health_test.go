package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/filechanges/pkg/observability"
)

func statusOf(t *testing.T, handler http.Handler) (int, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec.Code, body["status"]
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	t.Parallel()

	code, status := statusOf(t, observability.HealthHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status)
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("first scan pending") }

	code, status := statusOf(t, observability.ReadyHandler(pass, pass))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status)

	code, status = statusOf(t, observability.ReadyHandler(pass, fail))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", status)
}

func TestDiagnosticsServer_RoutesEndpoints(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(rw, "metrics here")
	})

	srv, err := observability.NewDiagnosticsServer(context.Background(), "127.0.0.1:0", metrics, nil)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close(context.Background())) })

	for path, want := range map[string]string{"/healthz": `{"status":"ok"}`, "/metrics": "metrics here"} {
		resp, getErr := http.Get("http://" + srv.Addr() + path) //nolint:noctx // test helper
		require.NoError(t, getErr)

		body, readErr := io.ReadAll(resp.Body)
		require.NoError(t, readErr)
		require.NoError(t, resp.Body.Close())

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, string(body), path)
	}
}

func TestDiagnosticsServer_ListenError(t *testing.T) {
	t.Parallel()

	_, err := observability.NewDiagnosticsServer(context.Background(), "not-an-address", nil, nil)
	require.Error(t, err)
}
