package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodegraph/internal/api"
	"github.com/gyaneshwarpardhi/nodegraph/internal/calculator"
	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/controller"
	"github.com/gyaneshwarpardhi/nodegraph/internal/engine"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
)

type server struct {
	t   *testing.T
	h   http.Handler
	eng *engine.Engine
}

func newServer(t *testing.T, docPath string) *server {
	t.Helper()
	reg := registry.New()
	calculator.Register(reg)
	ctrl := controller.New("api", reg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(ctx, ctrl, config.EngineConf{QueueDepth: 16, CommandTimeoutMs: 2000}, nil)
	t.Cleanup(func() {
		cancel()
		eng.Shutdown()
	})
	h := api.New(api.Options{Engine: eng, Registry: reg, DocumentPath: docPath})
	return &server{t: t, h: h, eng: eng}
}

func (s *server) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *server) adder() {
	s.t.Helper()
	for _, n := range []map[string]any{
		{"type_name": "float_input", "id": "in", "attributes": map[string]any{"value": 3}},
		{"type_name": "binary_operator", "id": "add", "attributes": map[string]any{"in2": 4}},
		{"type_name": "float_output", "id": "out", "position": map[string]any{"x": 300, "y": 40}},
	} {
		rec := s.do(http.MethodPost, "/v1/nodes", n)
		require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	for _, e := range []map[string]any{
		{"source": "in", "source_socket": "value", "target": "add", "target_socket": "in1"},
		{"id": "link", "source": "add", "source_socket": "result", "target": "out", "target_socket": "value"},
	} {
		rec := s.do(http.MethodPost, "/v1/edges", e)
		require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func outputValue(t *testing.T, s *server) float64 {
	t.Helper()
	rec := s.do(http.MethodGet, "/v1/nodes/out", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attrs := decodeBody(t, rec)["attributes"].(map[string]any)
	return attrs["value"].(float64)
}

func TestListTypes(t *testing.T) {
	s := newServer(t, "")
	rec := s.do(http.MethodGet, "/v1/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	nodes := body["nodes"].([]any)
	assert.Len(t, nodes, 15)
	first := nodes[0].(map[string]any)
	assert.Equal(t, "integer_input", first["name"])
	edges := body["edges"].([]any)
	require.Len(t, edges, 1)
	assert.Equal(t, "default", edges[0].(map[string]any)["name"])
}

func TestGraphFlow(t *testing.T) {
	s := newServer(t, "")
	s.adder()
	assert.Equal(t, 7.0, outputValue(t, s))

	rec := s.do(http.MethodPut, "/v1/nodes/in/attributes", map[string]any{"value": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 14.0, outputValue(t, s))

	rec = s.do(http.MethodPut, "/v1/nodes/out/position", map[string]any{"x": 1, "y": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decodeBody(t, rec)["position"].(map[string]any)["x"])

	rec = s.do(http.MethodGet, "/v1/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody(t, rec)
	assert.Equal(t, "idle", snap["state"])
	assert.Len(t, snap["nodes"], 3)
	assert.Len(t, snap["edges"], 2)

	rec = s.do(http.MethodPost, "/v1/graph/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["full"])

	rec = s.do(http.MethodDelete, "/v1/edges/link", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodDelete, "/v1/nodes/add", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	snap = decodeBody(t, s.do(http.MethodGet, "/v1/graph", nil))
	assert.Len(t, snap["nodes"], 2)
	assert.Len(t, snap["edges"], 0)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t, "")
	s.adder()
	rec := s.do(http.MethodPost, "/v1/nodes", map[string]any{"type_name": "text_output", "id": "txt"})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad json", http.MethodPost, "/v1/nodes", "not an object", http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/v1/nodes", map[string]any{"type_name": "warp_drive"}, http.StatusBadRequest},
		{"missing type", http.MethodPost, "/v1/nodes", map[string]any{}, http.StatusBadRequest},
		{"duplicate id", http.MethodPost, "/v1/nodes", map[string]any{"type_name": "float_input", "id": "in"}, http.StatusConflict},
		{"bad attribute", http.MethodPut, "/v1/nodes/in/attributes", map[string]any{"value": "x"}, http.StatusBadRequest},
		{"missing node", http.MethodDelete, "/v1/nodes/ghost", nil, http.StatusNotFound},
		{"missing edge", http.MethodDelete, "/v1/edges/ghost", nil, http.StatusNotFound},
		{"degree", http.MethodPost, "/v1/edges",
			map[string]any{"source": "in", "source_socket": "value", "target": "add", "target_socket": "in1"}, http.StatusConflict},
		{"type mismatch", http.MethodPost, "/v1/edges",
			map[string]any{"source": "add", "source_socket": "result", "target": "txt", "target_socket": "value"}, http.StatusConflict},
		{"missing socket", http.MethodPost, "/v1/edges",
			map[string]any{"source": "add", "source_socket": "result", "target": "add", "target_socket": "operator"}, http.StatusNotFound},
		{"incomplete edge", http.MethodPost, "/v1/edges", map[string]any{"source": "in"}, http.StatusBadRequest},
		{"singular viewport", http.MethodPut, "/v1/graph/viewport", map[string]any{"viewport_transform": []float64{0, 0, 0, 0, 0, 0, 0, 0, 1}}, http.StatusBadRequest},
		{"save without path", http.MethodPost, "/v1/graph/save", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if rec.Code >= 400 {
				assert.NotEmpty(t, decodeBody(t, rec)["error"])
			}
		})
	}
}

func TestCycleIsConflict(t *testing.T) {
	s := newServer(t, "")
	for _, id := range []string{"a", "b"} {
		rec := s.do(http.MethodPost, "/v1/nodes", map[string]any{"type_name": "unary_operator", "id": id})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	for _, e := range [][2]string{{"a", "b"}, {"b", "a"}} {
		rec := s.do(http.MethodPost, "/v1/edges", map[string]any{
			"source": e[0], "source_socket": "result", "target": e[1], "target_socket": "in1",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(http.MethodPost, "/v1/graph/execute", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	s := newServer(t, path)
	s.adder()

	rec := s.do(http.MethodPost, "/v1/graph/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeBody(t, rec)
	assert.Equal(t, 3.0, saved["nodes"])
	assert.Equal(t, 2.0, saved["edges"])

	rec = s.do(http.MethodDelete, "/v1/nodes/add", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/v1/graph/load", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decodeBody(t, rec)
	assert.Equal(t, saved["document"], loaded["document"])
	assert.Equal(t, 3.0, loaded["nodes"])
	assert.Empty(t, loaded["skipped"])
	assert.Equal(t, 7.0, outputValue(t, s))
}

func TestHealthAndRequestID(t *testing.T) {
	s := newServer(t, "")
	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeBody(t, rec)["status"])

	rec = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
