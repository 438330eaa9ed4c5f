package archive

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/nodegraph/internal/controller"
	"github.com/gyaneshwarpardhi/nodegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
	"github.com/gyaneshwarpardhi/nodegraph/internal/scene"
)

// UnresolvedTypeError is reported for a record whose type_name is not
// registered. The record is skipped.
type UnresolvedTypeError struct {
	Entity   string
	ID       string
	TypeName string
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("%s %q: unresolved type %q", e.Entity, e.ID, e.TypeName)
}

// MalformedEdgeError is reported for an edge record whose endpoints cannot
// be resolved or joined. The record is skipped.
type MalformedEdgeError struct {
	ID     string
	Reason string
	Err    error
}

func (e *MalformedEdgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("edge %q: %s: %v", e.ID, e.Reason, e.Err)
	}
	return fmt.Sprintf("edge %q: %s", e.ID, e.Reason)
}

func (e *MalformedEdgeError) Unwrap() error { return e.Err }

// Report summarises a load.
type Report struct {
	Nodes   int
	Edges   int
	Skipped []error
}

// Save captures the controller's graph as a document. Open edges are not
// written: the controller only adds closed edges, and a member edge whose
// endpoint was later cleared has nothing a load could reconnect.
func Save(c *controller.Controller) *Document {
	g := c.Graph()
	doc := &Document{
		ID:                uuid.NewString(),
		Name:              g.Name,
		Version:           Version,
		SavedAt:           time.Now().UTC(),
		ViewportTransform: c.Scene().Viewport(),
		Nodes:             make([]map[string]any, 0, g.NodeCount()),
		Edges:             make([]map[string]any, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		rec := make(map[string]any)
		n.Attributes().Serialize(rec)
		p := n.Position()
		rec[KeyID] = n.ID()
		rec[KeyTypeName] = n.TypeName()
		rec[KeyName] = n.Name()
		rec[KeyPosition] = []any{p.X, p.Y}
		doc.Nodes = append(doc.Nodes, rec)
	}
	for _, e := range g.Edges() {
		if e.IsOpen() {
			continue
		}
		rec := make(map[string]any)
		e.Attributes().Serialize(rec)
		rec[KeyID] = e.ID()
		rec[KeyTypeName] = e.TypeName()
		rec[KeySource] = e.Start().NodeID()
		rec[KeyTarget] = e.End().NodeID()
		rec[KeySourceSocket] = e.Start().Name()
		rec[KeyTargetSocket] = e.End().Name()
		doc.Edges = append(doc.Edges, rec)
	}
	return doc
}

// Load replaces the controller's graph with the document's content.
//
// Records with an unknown type and edges whose endpoints cannot be resolved
// are logged and skipped; the rest of the document still loads. A document
// with an unusable viewport is refused before the current graph is touched.
// No pass runs during the load; the graph is left topology-dirty for the
// caller to flush.
func Load(c *controller.Controller, doc *Document, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	vp := doc.ViewportTransform
	if vp == ([9]float64{}) {
		vp = scene.Identity
	}
	if err := scene.ValidViewport(vp); err != nil {
		return nil, fmt.Errorf("load %s: %w", doc.ID, err)
	}
	x := c.Graph()
	auto := x.AutoExecute()
	x.SetAutoExecute(false)
	defer x.SetAutoExecute(auto)

	c.ClearAll()
	if doc.Name != "" {
		x.Name = doc.Name
	}
	if err := c.SetViewport(vp); err != nil {
		return nil, fmt.Errorf("load %s: %w", doc.ID, err)
	}

	rep := &Report{}
	skip := func(entity, reason string, err error) {
		metrics.LoadSkipped.WithLabelValues(entity, reason).Inc()
		logger.Error("load: record skipped", "entity", entity, "reason", reason, "err", err)
		rep.Skipped = append(rep.Skipped, err)
	}

	for i, rec := range doc.Nodes {
		spec, err := nodeSpec(rec)
		if err != nil {
			skip("node", "malformed", fmt.Errorf("nodes[%d]: %w", i, err))
			continue
		}
		if _, err := c.CreateNode(spec); err != nil {
			var ue *registry.UnresolvedTypeError
			if errors.As(err, &ue) {
				skip("node", "unresolved_type", &UnresolvedTypeError{Entity: "node", ID: spec.ID, TypeName: spec.TypeName})
				continue
			}
			skip("node", "rejected", fmt.Errorf("node %q: %w", spec.ID, err))
			continue
		}
		rep.Nodes++
	}
	for i, rec := range doc.Edges {
		if err := loadEdge(c, rec); err != nil {
			reason := "malformed"
			var ue *UnresolvedTypeError
			if errors.As(err, &ue) {
				reason = "unresolved_type"
			}
			skip("edge", reason, fmt.Errorf("edges[%d]: %w", i, err))
			continue
		}
		rep.Edges++
	}
	logger.Info("document loaded", "document", doc.ID, "graph", x.Name,
		"nodes", rep.Nodes, "edges", rep.Edges, "skipped", len(rep.Skipped))
	return rep, nil
}

func loadEdge(c *controller.Controller, rec map[string]any) error {
	id := text(rec, KeyID)
	typeName := text(rec, KeyTypeName)
	if typeName != "" {
		if _, err := c.Registry().Edge(typeName); err != nil {
			return &UnresolvedTypeError{Entity: "edge", ID: id, TypeName: typeName}
		}
	}
	src, tgt := text(rec, KeySource), text(rec, KeyTarget)
	srcSock, tgtSock := text(rec, KeySourceSocket), text(rec, KeyTargetSocket)
	if src == "" || tgt == "" || srcSock == "" || tgtSock == "" {
		return &MalformedEdgeError{ID: id, Reason: "missing source, target or socket name"}
	}
	spec := controller.EdgeSpec{TypeName: typeName, ID: id, Attributes: attributes(rec)}
	if _, err := c.Connect(spec, src, srcSock, tgt, tgtSock); err != nil {
		return &MalformedEdgeError{ID: id, Reason: "cannot connect", Err: err}
	}
	return nil
}

func nodeSpec(rec map[string]any) (controller.NodeSpec, error) {
	spec := controller.NodeSpec{
		TypeName:   text(rec, KeyTypeName),
		ID:         text(rec, KeyID),
		Name:       text(rec, KeyName),
		Attributes: attributes(rec),
	}
	if spec.TypeName == "" {
		return spec, fmt.Errorf("node %q: missing %s", spec.ID, KeyTypeName)
	}
	if raw, ok := rec[KeyPosition]; ok {
		p, err := point(raw)
		if err != nil {
			return spec, fmt.Errorf("node %q: %w", spec.ID, err)
		}
		spec.Position = p
	}
	return spec, nil
}

// attributes returns the record without its reserved keys.
func attributes(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		switch k {
		case KeyID, KeyTypeName, KeyName, KeyPosition, KeySource, KeyTarget, KeySourceSocket, KeyTargetSocket:
			continue
		}
		out[k] = v
	}
	return out
}

func text(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return s
}

func point(raw any) (model.Point, error) {
	items, ok := raw.([]any)
	if !ok || len(items) != 2 {
		return model.Point{}, fmt.Errorf("position must be [x, y], got %v", raw)
	}
	var xy [2]float64
	for i, it := range items {
		switch v := it.(type) {
		case float64:
			xy[i] = v
		case int:
			xy[i] = float64(v)
		default:
			return model.Point{}, fmt.Errorf("position[%d] is not a number: %v", i, it)
		}
	}
	return model.Point{X: xy[0], Y: xy[1]}, nil
}

// SaveFile writes the graph to path, choosing the encoding by extension.
func SaveFile(c *controller.Controller, path string) (*Document, error) {
	doc := Save(c)
	if err := WriteFile(doc, path); err != nil {
		return nil, err
	}
	return doc, nil
}

// WriteFile encodes doc to path, choosing the encoding by extension. The
// file is replaced atomically.
func WriteFile(doc *Document, path string) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatFor(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the document at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	doc, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return doc, nil
}

// LoadFile reads path and loads it into c.
func LoadFile(c *controller.Controller, path string, logger *slog.Logger) (*Report, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(c, doc, logger)
}
