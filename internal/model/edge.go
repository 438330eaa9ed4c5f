package model

// Edge is a directed connection from an output socket to an input socket.
// Either endpoint may be unset while a connection is being dragged; such an
// open edge takes no part in execution.
type Edge struct {
	id       string
	typeName string
	start    *Socket
	end      *Socket
	attrs    *Attributes

	notify func(Change) // set while the edge is a graph member
}

// NewEdge creates an open edge of the given kind.
func NewEdge(typeName string, schema Schema) *Edge {
	e := &Edge{typeName: typeName}
	if len(schema) > 0 {
		e.attrs = NewAttributes(schema)
	}
	return e
}

func (e *Edge) ID() string              { return e.id }
func (e *Edge) TypeName() string        { return e.typeName }
func (e *Edge) Start() *Socket          { return e.start }
func (e *Edge) End() *Socket            { return e.end }
func (e *Edge) Attributes() *Attributes { return e.attrs }

// SetID renames an edge that is not yet a graph member.
func (e *Edge) SetID(id string) {
	if e.notify == nil {
		e.id = id
	}
}

func (e *Edge) member() bool { return e.notify != nil }

// DataType is read from whichever endpoint is set.
func (e *Edge) DataType() string {
	if e.start != nil {
		return e.start.dataType
	}
	if e.end != nil {
		return e.end.dataType
	}
	return ""
}

// IsOpen reports whether either endpoint is unset.
func (e *Edge) IsOpen() bool {
	return e.start == nil || e.end == nil
}

// SetStart assigns the source socket. All checks run before anything is
// mutated, so a rejected assignment leaves the edge and both sockets as
// they were.
func (e *Edge) SetStart(s *Socket) error {
	if s == e.start {
		return nil
	}
	if s != nil {
		if s.typ != Output {
			return &DirectionError{Socket: s.ID(), Want: Output, Got: s.typ}
		}
		if e.end != nil && e.end.dataType != s.dataType {
			return &TypeMismatchError{From: s.dataType, To: e.end.dataType}
		}
		if !s.HasEdge(e) {
			if err := s.checkCapacity(); err != nil {
				return err
			}
		}
	}
	if e.start != nil {
		e.start.detach(e)
	}
	e.start = s
	if s != nil {
		_ = s.attach(e) // capacity checked above
	}
	e.changed()
	return nil
}

// SetEnd assigns the sink socket, with the same guarantees as SetStart.
func (e *Edge) SetEnd(s *Socket) error {
	if s == e.end {
		return nil
	}
	if s != nil {
		if s.typ != Input {
			return &DirectionError{Socket: s.ID(), Want: Input, Got: s.typ}
		}
		if e.start != nil && e.start.dataType != s.dataType {
			return &TypeMismatchError{From: e.start.dataType, To: s.dataType}
		}
		if !s.HasEdge(e) {
			if err := s.checkCapacity(); err != nil {
				return err
			}
		}
	}
	if e.end != nil {
		e.end.detach(e)
	}
	e.end = s
	if s != nil {
		_ = s.attach(e)
	}
	e.changed()
	return nil
}

// Connect assigns both endpoints. If the second assignment fails the first
// is rolled back.
func (e *Edge) Connect(start, end *Socket) error {
	prevStart := e.start
	if err := e.SetStart(start); err != nil {
		return err
	}
	if err := e.SetEnd(end); err != nil {
		if rerr := e.SetStart(prevStart); rerr != nil {
			_ = e.SetStart(nil)
		}
		return err
	}
	return nil
}

// Disconnect clears both endpoints.
func (e *Edge) Disconnect() {
	_ = e.SetStart(nil)
	_ = e.SetEnd(nil)
}

func (e *Edge) changed() {
	if e.notify != nil {
		e.notify(Change{Kind: EdgeReconnected, EdgeID: e.id})
	}
}
