package engine

import (
	"errors"
	"testing"

	"github.com/torbel/Interflow/internal/domain"
)

func TestBuildGraph_Entry(t *testing.T) {
	def := testFlow(
		[]domain.Node{probeNode("start"), probeNode("mid"), probeNode("end")},
		[]domain.Edge{
			{ID: "e1", Source: "start", Target: "mid"},
			{ID: "e2", Source: "mid", Target: "end"},
		},
	)

	g, err := buildGraph(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.entry.ID != "start" {
		t.Errorf("expected entry start, got %s", g.entry.ID)
	}
}

func TestBuildGraph_SelfLoopIsNotEntry(t *testing.T) {
	// Петля даёт узлу входящее ребро, входным он быть не может
	def := testFlow(
		[]domain.Node{probeNode("loop"), probeNode("head")},
		[]domain.Edge{
			{ID: "e1", Source: "loop", Target: "loop"},
			{ID: "e2", Source: "head", Target: "loop"},
		},
	)

	g, err := buildGraph(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.entry.ID != "head" {
		t.Errorf("expected entry head, got %s", g.entry.ID)
	}
}

func TestBuildGraph_OutgoingOrderPreserved(t *testing.T) {
	// Порядок объявления рёбер определяет fallback-ветвление
	def := testFlow(
		[]domain.Node{probeNode("a"), probeNode("x"), probeNode("y"), probeNode("z")},
		[]domain.Edge{
			{ID: "e1", Source: "a", Target: "z"},
			{ID: "e2", Source: "a", Target: "x"},
			{ID: "e3", Source: "a", Target: "y"},
		},
	)

	g, err := buildGraph(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := g.outgoingOf("a")
	want := []string{"z", "x", "y"}
	if len(out) != len(want) {
		t.Fatalf("expected %d edges, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i].Target != want[i] {
			t.Errorf("edge %d: expected target %s, got %s", i, want[i], out[i].Target)
		}
	}
}

func TestBuildGraph_CycleAllowed(t *testing.T) {
	def := testFlow(
		[]domain.Node{probeNode("a"), probeNode("b"), probeNode("c")},
		[]domain.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c"},
			{ID: "e3", Source: "c", Target: "b"},
		},
	)

	if _, err := buildGraph(def); err != nil {
		t.Errorf("cycle with a distinct entry must be valid, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		def     *domain.FlowDefinition
		wantErr error
	}{
		{
			name:    "nil nodes",
			def:     testFlow(nil, nil),
			wantErr: ErrEmptyFlow,
		},
		{
			name: "empty node id",
			def: testFlow(
				[]domain.Node{{ID: "", Kind: "probe"}},
				nil,
			),
			wantErr: ErrEmptyNodeID,
		},
		{
			name: "edge from unknown node",
			def: testFlow(
				[]domain.Node{probeNode("a")},
				[]domain.Edge{{ID: "e1", Source: "ghost", Target: "a"}},
			),
			wantErr: ErrUnknownEdgeNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.def)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGraphError_Message(t *testing.T) {
	err := NewGraphError("n1", "kind", "unknown node kind: \"quantum\"", ErrUnknownNodeKind)

	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphError, got %T", err)
	}
	if gerr.NodeID != "n1" || gerr.Field != "kind" {
		t.Errorf("unexpected fields: %+v", gerr)
	}
	if !errors.Is(err, ErrUnknownNodeKind) {
		t.Error("expected wrapped sentinel")
	}
}
