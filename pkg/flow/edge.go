package flow

import "strings"

// Handle names. A handle is a named port on a node through which one
// data type flows. Input handles are addressed by (target kind, handle)
// in the rule table; output handles matter only where a source exposes
// more than one (batch generators, video producers).
const (
	// HandleText is the single text input on text-consuming kinds.
	HandleText = "text"

	// HandleImage is the image input handle, and the primary image
	// output handle on image-producing kinds.
	HandleImage = "img"

	// HandleVideo is the video output handle on video-producing kinds
	// and the reference input handle on reference-video nodes.
	HandleVideo = "video"
)

// slotHandlePrefix prefixes per-slot output handles on batch
// generators: img1..img4.
const slotHandlePrefix = "img"

// SlotHandle returns the output handle addressing batch slot idx
// (zero-based): SlotHandle(0) == "img1".
func SlotHandle(idx int) string {
	if idx < 0 || idx >= BatchSlots {
		return ""
	}
	return slotHandlePrefix + string(rune('1'+idx))
}

// slotIndex parses a per-slot output handle back to its zero-based
// index. Returns -1 for anything that is not img1..img4.
func slotIndex(handle string) int {
	rest, ok := strings.CutPrefix(handle, slotHandlePrefix)
	if !ok || len(rest) != 1 {
		return -1
	}
	idx := int(rest[0] - '1')
	if idx < 0 || idx >= BatchSlots {
		return -1
	}
	return idx
}

// DefaultEdgeKind is the rendering kind given to edges created without
// an explicit one. Edge kind is a presentation hint with no execution
// semantics.
const DefaultEdgeKind = "default"

// Edge is a directed, handle-typed connection between two nodes.
//
// Every edge's (target, targetHandle) pair satisfies the rule table at
// all times: violating edges are rejected or replaced at connection
// time, never stored and repaired later.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Kind         string `json:"kind"`

	// Label is a user annotation, independent of execution semantics.
	Label string `json:"label,omitempty"`
}

// sameEndpoints reports whether two edges connect the same ports of the
// same nodes. Used to reject exact duplicates.
func (e Edge) sameEndpoints(other Edge) bool {
	return e.Source == other.Source &&
		e.Target == other.Target &&
		e.SourceHandle == other.SourceHandle &&
		e.TargetHandle == other.TargetHandle
}

// Snapshot is the serializable graph value: the full node and edge sets
// in insertion order. It is the unit exchanged with the project store
// and with copy/paste and export/import. Transient node fields (run
// status, error) are excluded by construction.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.clone()
	}
	copy(out.Edges, s.Edges)
	return out
}

// node returns the snapshot node with the given id, or nil.
func (s Snapshot) node(id string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

// incoming returns the snapshot edges targeting nodeID on any of the
// given handles, in insertion order. With no handles it returns every
// incoming edge.
func (s Snapshot) incoming(nodeID string, handles ...string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Target != nodeID {
			continue
		}
		if len(handles) == 0 {
			out = append(out, e)
			continue
		}
		for _, h := range handles {
			if e.TargetHandle == h {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// outgoing returns the snapshot edges originating at nodeID, in
// insertion order.
func (s Snapshot) outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}
