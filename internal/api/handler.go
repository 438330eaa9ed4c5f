package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/nodegraph/internal/archive"
	"github.com/gyaneshwarpardhi/nodegraph/internal/controller"
	"github.com/gyaneshwarpardhi/nodegraph/internal/dag"
	"github.com/gyaneshwarpardhi/nodegraph/internal/engine"
	"github.com/gyaneshwarpardhi/nodegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
)

// Options configures the handler. DocumentPath may be empty, in which case
// save and load are refused.
type Options struct {
	Engine       *engine.Engine
	Registry     *registry.Registry
	DocumentPath string
	Watcher      *archive.Watcher
	Logger       *slog.Logger
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng     *engine.Engine
	reg     *registry.Registry
	docPath string
	watcher *archive.Watcher
	log     *slog.Logger
	mux     *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		eng:     opts.Engine,
		reg:     opts.Registry,
		docPath: opts.DocumentPath,
		watcher: opts.Watcher,
		log:     logger,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /v1/types", h.listTypes)
	h.mux.HandleFunc("GET /v1/graph", h.getGraph)
	h.mux.HandleFunc("POST /v1/nodes", h.createNode)
	h.mux.HandleFunc("GET /v1/nodes/{id}", h.getNode)
	h.mux.HandleFunc("DELETE /v1/nodes/{id}", h.deleteNode)
	h.mux.HandleFunc("PUT /v1/nodes/{id}/attributes", h.setAttributes)
	h.mux.HandleFunc("PUT /v1/nodes/{id}/position", h.setPosition)
	h.mux.HandleFunc("POST /v1/edges", h.createEdge)
	h.mux.HandleFunc("DELETE /v1/edges/{id}", h.deleteEdge)
	h.mux.HandleFunc("PUT /v1/graph/viewport", h.setViewport)
	h.mux.HandleFunc("POST /v1/graph/execute", h.execute)
	h.mux.HandleFunc("POST /v1/graph/save", h.save)
	h.mux.HandleFunc("POST /v1/graph/load", h.load)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(logger, h.mux)
}

type fieldView struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Role    string   `json:"role"`
	Default any      `json:"default"`
	Choices []string `json:"choices,omitempty"`
}

type nodeTypeView struct {
	Name       string                  `json:"name"`
	Title      string                  `json:"title"`
	Category   string                  `json:"category"`
	Inputs     []controller.SocketView `json:"inputs"`
	Outputs    []controller.SocketView `json:"outputs"`
	Attributes []fieldView             `json:"attributes"`
}

type edgeTypeView struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	DataType string `json:"data_type,omitempty"`
}

// GET /v1/types: registered node and edge kinds.
func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	nodes := make([]nodeTypeView, 0)
	for _, nt := range h.reg.NodeTypes() {
		n := nt.New()
		v := nodeTypeView{Name: nt.Name, Title: nt.Title, Category: nt.Category}
		for _, s := range n.Inputs() {
			v.Inputs = append(v.Inputs, controller.SocketView{Name: s.Name(), DataType: s.DataType(), Degree: s.Degree()})
		}
		for _, s := range n.Outputs() {
			v.Outputs = append(v.Outputs, controller.SocketView{Name: s.Name(), DataType: s.DataType(), Degree: s.Degree()})
		}
		for _, f := range n.Attributes().Schema() {
			v.Attributes = append(v.Attributes, fieldView{
				Name: f.Name, Kind: string(f.Kind), Role: string(f.Role), Default: f.Default, Choices: f.Choices,
			})
		}
		nodes = append(nodes, v)
	}
	edges := make([]edgeTypeView, 0)
	for _, et := range h.reg.EdgeTypes() {
		edges = append(edges, edgeTypeView{Name: et.Name, Title: et.Title, DataType: et.DataType})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": nodes,
		"edges": edges,
	})
}

// GET /v1/graph: snapshot of nodes, edges, values and executor state.
func (h *Handler) getGraph(w http.ResponseWriter, r *http.Request) {
	v, err := h.eng.Do(r.Context(), "snapshot", func(c *controller.Controller) (any, error) {
		return c.Snapshot(), nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type createNodeRequest struct {
	TypeName   string         `json:"type_name"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Position   point          `json:"position"`
	Attributes map[string]any `json:"attributes"`
}

// POST /v1/nodes
func (h *Handler) createNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TypeName == "" {
		writeError(w, http.StatusBadRequest, "type_name is required")
		return
	}
	v, err := h.eng.Do(r.Context(), "create node", func(c *controller.Controller) (any, error) {
		item, err := c.CreateNode(controller.NodeSpec{
			TypeName:   req.TypeName,
			ID:         req.ID,
			Name:       req.Name,
			Position:   model.Point{X: req.Position.X, Y: req.Position.Y},
			Attributes: req.Attributes,
		})
		if err != nil {
			return nil, err
		}
		return c.NodeView(item.ID)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// GET /v1/nodes/{id}
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := h.eng.Do(r.Context(), "get node", func(c *controller.Controller) (any, error) {
		return c.NodeView(id)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DELETE /v1/nodes/{id}
func (h *Handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, err := h.eng.Do(r.Context(), "destroy node", func(c *controller.Controller) (any, error) {
		return nil, c.DestroyNode(id)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /v1/nodes/{id}/attributes: {name: value, ...}; at most one pass runs.
func (h *Handler) setAttributes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var values map[string]any
	if !decode(w, r, &values) {
		return
	}
	v, err := h.eng.Do(r.Context(), "set attributes", func(c *controller.Controller) (any, error) {
		if err := c.SetAttributes(id, values); err != nil {
			return nil, err
		}
		return c.NodeView(id)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// PUT /v1/nodes/{id}/position: {x, y}
func (h *Handler) setPosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p point
	if !decode(w, r, &p) {
		return
	}
	v, err := h.eng.Do(r.Context(), "set position", func(c *controller.Controller) (any, error) {
		if err := c.SetPosition(id, model.Point{X: p.X, Y: p.Y}); err != nil {
			return nil, err
		}
		return c.NodeView(id)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type createEdgeRequest struct {
	TypeName     string         `json:"type_name"`
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	SourceSocket string         `json:"source_socket"`
	Target       string         `json:"target"`
	TargetSocket string         `json:"target_socket"`
	Attributes   map[string]any `json:"attributes"`
}

// POST /v1/edges: connects two sockets in one step.
func (h *Handler) createEdge(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Source == "" || req.SourceSocket == "" || req.Target == "" || req.TargetSocket == "" {
		writeError(w, http.StatusBadRequest, "source, source_socket, target and target_socket are required")
		return
	}
	v, err := h.eng.Do(r.Context(), "connect", func(c *controller.Controller) (any, error) {
		item, err := c.Connect(
			controller.EdgeSpec{TypeName: req.TypeName, ID: req.ID, Attributes: req.Attributes},
			req.Source, req.SourceSocket, req.Target, req.TargetSocket,
		)
		if err != nil {
			return nil, err
		}
		return c.EdgeView(item.ID)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// DELETE /v1/edges/{id}
func (h *Handler) deleteEdge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, err := h.eng.Do(r.Context(), "destroy edge", func(c *controller.Controller) (any, error) {
		return nil, c.DestroyEdge(id)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /v1/graph/viewport: {viewport_transform: [9 floats]}
func (h *Handler) setViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Viewport [9]float64 `json:"viewport_transform"`
	}
	if !decode(w, r, &req) {
		return
	}
	_, err := h.eng.Do(r.Context(), "set viewport", func(c *controller.Controller) (any, error) {
		return nil, c.SetViewport(req.Viewport)
	})
	if err != nil {
		// The only failure is a transform that cannot be inverted.
		if errors.Is(err, engine.ErrQueueFull) || errors.Is(err, engine.ErrTimeout) {
			writeFailure(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// POST /v1/graph/execute: full pass. Node failures are reported in the
// pass summary; a cycle is a conflict.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	v, err := h.eng.Do(r.Context(), "execute", func(c *controller.Controller) (any, error) {
		err := c.Execute()
		var ue *dag.UpdateError
		if err != nil && !errors.As(err, &ue) {
			return nil, err
		}
		return c.LastPass(), nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// POST /v1/graph/save: writes the configured document.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	if h.docPath == "" {
		writeError(w, http.StatusBadRequest, "no document path configured")
		return
	}
	v, err := h.eng.Do(r.Context(), "save", func(c *controller.Controller) (any, error) {
		return archive.Save(c), nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	doc := v.(*archive.Document)
	if h.watcher != nil {
		h.watcher.Saved(doc.ID)
	}
	if err := archive.WriteFile(doc, h.docPath); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Info("document saved", "path", h.docPath, "document", doc.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc.ID,
		"path":     h.docPath,
		"nodes":    len(doc.Nodes),
		"edges":    len(doc.Edges),
	})
}

type loadResponse struct {
	Document string              `json:"document"`
	Nodes    int                 `json:"nodes"`
	Edges    int                 `json:"edges"`
	Skipped  []string            `json:"skipped"`
	LastPass controller.PassView `json:"last_pass"`
}

// POST /v1/graph/load: replaces the graph with the configured document.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	if h.docPath == "" {
		writeError(w, http.StatusBadRequest, "no document path configured")
		return
	}
	doc, err := archive.ReadFile(h.docPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.eng.Do(r.Context(), "load", LoadCommand(doc, h.log))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// LoadCommand loads doc and runs the first pass over it. It is shared by the
// load route and the document watcher.
func LoadCommand(doc *archive.Document, logger *slog.Logger) engine.Command {
	return func(c *controller.Controller) (any, error) {
		rep, err := archive.Load(c, doc, logger)
		if err != nil {
			return nil, err
		}
		if err := c.Graph().Flush(); err != nil {
			logger.Warn("first pass after load failed", "document", doc.ID, "err", err)
		}
		resp := loadResponse{
			Document: doc.ID,
			Nodes:    rep.Nodes,
			Edges:    rep.Edges,
			Skipped:  make([]string, 0, len(rep.Skipped)),
			LastPass: c.LastPass(),
		}
		for _, s := range rep.Skipped {
			resp.Skipped = append(resp.Skipped, s.Error())
		}
		return resp, nil
	}
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if command queue >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	return true
}
