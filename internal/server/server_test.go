package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/statbridge/statbridge/internal/fetcher"
	"github.com/statbridge/statbridge/internal/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBridge struct {
	mu             sync.Mutex
	calls          []string
	state          plugin.State
	frontEndLoaded int
}

func (b *fakeBridge) FrontEndLoaded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frontEndLoaded++
}

func (b *fakeBridge) GetData(_ context.Context, identifier string) fetcher.Envelope {
	b.mu.Lock()
	b.calls = append(b.calls, identifier)
	b.mu.Unlock()

	if identifier == "404" {
		return fetcher.Failure("API request failed with status 404")
	}
	return fetcher.Ok(map[string]any{"id": identifier}).Envelope()
}

func (b *fakeBridge) State() plugin.State {
	return b.state
}

type routeTest struct {
	name           string
	method         string
	path           string
	body           string
	expectedStatus int
	expectedBody   string
	expectedCalls  []string
}

func runRouteTests(t *testing.T, tests []routeTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := &fakeBridge{state: plugin.Ready}
			router := NewRouter(zap.NewNop(), bridge, Config{AllowedOrigins: []string{"https://steamcommunity.com"}})

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			assert.Equal(t, tt.expectedCalls, bridge.calls)
		})
	}
}

func TestRouter_GetData(t *testing.T) {
	runRouteTests(t, []routeTest{
		{
			name:           "steam_id keyword",
			method:         http.MethodPost,
			path:           "/rpc/get_data",
			body:           `{"steam_id": "76561198000000000"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": true, "data": {"id": "76561198000000000"}}`,
			expectedCalls:  []string{"76561198000000000"},
		},
		{
			name:           "identifier alias",
			method:         http.MethodPost,
			path:           "/rpc/get_data",
			body:           `{"identifier": "42"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": true, "data": {"id": "42"}}`,
			expectedCalls:  []string{"42"},
		},
		{
			name:           "failure envelope is still 200",
			method:         http.MethodPost,
			path:           "/rpc/get_data",
			body:           `{"steam_id": "404"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": false, "error": "API request failed with status 404"}`,
			expectedCalls:  []string{"404"},
		},
		{
			name:           "invalid json",
			method:         http.MethodPost,
			path:           "/rpc/get_data",
			body:           `{"steam_id":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success": false, "error": "Invalid JSON"}`,
		},
		{
			name:           "missing identifier",
			method:         http.MethodPost,
			path:           "/rpc/get_data",
			body:           `{"steam_id": "  "}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success": false, "error": "steam_id is required"}`,
		},
		{
			name:           "path variant",
			method:         http.MethodGet,
			path:           "/api/players/76561198000000001",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": true, "data": {"id": "76561198000000001"}}`,
			expectedCalls:  []string{"76561198000000001"},
		},
		{
			name:           "path variant decodes escaped id",
			method:         http.MethodGet,
			path:           "/api/players/a%2Fb%20c",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": true, "data": {"id": "a/b c"}}`,
			expectedCalls:  []string{"a/b c"},
		},
		{
			name:           "rpc and path variants agree",
			method:         http.MethodPost,
			path:           "/rpc/get_data",
			body:           `{"steam_id": "a/b c"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": true, "data": {"id": "a/b c"}}`,
			expectedCalls:  []string{"a/b c"},
		},
	})
}

func TestRouter_GetPlayerInvalidEscape(t *testing.T) {
	bridge := &fakeBridge{state: plugin.Ready}
	router := NewRouter(zap.NewNop(), bridge, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/players/x", nil)
	req.URL.RawPath = "/api/players/%zz"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success": false, "error": "Invalid player id"}`, rec.Body.String())
	assert.Empty(t, bridge.calls)
}

func TestRouter_FrontEndLoaded(t *testing.T) {
	bridge := &fakeBridge{state: plugin.Ready}
	router := NewRouter(zap.NewNop(), bridge, Config{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc/frontend_loaded", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, bridge.frontEndLoaded)
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		state          plugin.State
		expectedStatus int
	}{
		{state: plugin.Ready, expectedStatus: http.StatusOK},
		{state: plugin.Uninitialized, expectedStatus: http.StatusServiceUnavailable},
		{state: plugin.ShuttingDown, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			router := NewRouter(zap.NewNop(), &fakeBridge{state: tt.state}, Config{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.JSONEq(t, `{"state": "`+tt.state.String()+`"}`, rec.Body.String())
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	router := NewRouter(zap.NewNop(), &fakeBridge{state: plugin.Ready}, Config{AllowedOrigins: []string{"https://steamcommunity.com"}})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/rpc/get_data", nil)
		req.Header.Set("Origin", "https://steamcommunity.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "https://steamcommunity.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("other origin gets no allow header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rpc/get_data", strings.NewReader(`{"steam_id": "1"}`))
		req.Header.Set("Origin", "https://evil.example.com")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRouter_Metrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("statbridge_fetch_total 0\n"))
	})

	t.Run("mounted when configured", func(t *testing.T) {
		router := NewRouter(zap.NewNop(), &fakeBridge{}, Config{Metrics: metricsHandler})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "statbridge_fetch_total")
	})

	t.Run("absent otherwise", func(t *testing.T) {
		router := NewRouter(zap.NewNop(), &fakeBridge{}, Config{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_Serve(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(zap.NewNop(), &fakeBridge{state: plugin.Ready}, Config{Listen: l.Addr().String()})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()

	resp, err := http.Post("http://"+l.Addr().String()+"/rpc/get_data", "application/json", strings.NewReader(`{"steam_id": "7"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env fetcher.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"id": "7"}, env.Data)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
