package flow

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/atelierhq/easelflow/pkg/flow/watch"
)

// ChangeKind tags a store mutation in the change feed.
type ChangeKind string

const (
	ChangeNodeAdded   ChangeKind = "node-added"
	ChangeNodeRemoved ChangeKind = "node-removed"
	ChangeNodeUpdated ChangeKind = "node-updated"
	ChangeNodeMoved   ChangeKind = "node-moved"
	ChangeEdgeAdded   ChangeKind = "edge-added"
	ChangeEdgeRemoved ChangeKind = "edge-removed"
	ChangeRunState    ChangeKind = "run-state"
	ChangeHydrated    ChangeKind = "hydrated"
)

// Change is one store mutation as seen by watchers. Transient changes
// (run-state updates) do not alter the persisted snapshot value.
type Change struct {
	Kind      ChangeKind
	NodeID    string
	EdgeID    string
	Transient bool
}

// Store owns the authoritative in-memory node and edge sets. All graph
// mutations go through it; no other component holds graph state. Every
// operation is synchronous, locks internally, and has no side effects
// beyond the in-memory structure and the change feed.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string
	edges []Edge
	rules *RuleSet
	hub   *watch.Hub[Change]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRules replaces the default port-compatibility table.
func WithRules(rs *RuleSet) StoreOption {
	return func(s *Store) {
		if rs != nil {
			s.rules = rs
		}
	}
}

// NewStore creates an empty graph store with the default rule table.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		nodes: make(map[string]*Node),
		rules: DefaultRules(),
		hub:   watch.NewHub[Change](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the store's port-compatibility table.
func (s *Store) Rules() *RuleSet {
	return s.rules
}

// Watch subscribes to the store's change feed. Changes are delivered
// synchronously after the mutation commits, outside the store lock, so
// handlers may call back into the store. The returned cancel func
// removes the subscription.
func (s *Store) Watch(fn func(Change)) (cancel func()) {
	return s.hub.Subscribe(fn)
}

// Close shuts the change feed down. The store itself remains usable.
func (s *Store) Close() {
	s.hub.Close()
}

// publish delivers collected changes after the lock is released.
func (s *Store) publish(changes []Change) {
	for _, c := range changes {
		s.hub.Notify(c)
	}
}

// Size returns the current node and edge counts.
func (s *Store) Size() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// viewLocked builds a read-only view for the rule gates. Payload slices
// are shared, not copied; callers must not mutate through it.
func (s *Store) viewLocked() Snapshot {
	view := Snapshot{
		Nodes: make([]Node, 0, len(s.order)),
		Edges: s.edges,
	}
	for _, id := range s.order {
		view.Nodes = append(view.Nodes, *s.nodes[id])
	}
	return view
}

// AddNode inserts a node. An empty ID is assigned a fresh one; a
// populated ID must not collide. The kind must be a member of the
// closed set. Returns a copy of the stored node.
func (s *Store) AddNode(n Node) (*Node, error) {
	if !n.Kind.Valid() {
		return nil, fmt.Errorf("add node: %q: %w", n.Kind, ErrUnknownKind)
	}

	s.mu.Lock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if _, exists := s.nodes[n.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("add node %s: %w", n.ID, ErrDuplicateID)
	}
	if n.Status == "" {
		n.Status = StatusIdle
	}
	stored := n.clone()
	s.nodes[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	s.mu.Unlock()

	s.publish([]Change{{Kind: ChangeNodeAdded, NodeID: stored.ID}})
	out := stored.clone()
	return &out, nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	out := n.clone()
	return &out, nil
}

// Nodes returns copies of all nodes in insertion order.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].clone())
	}
	return out
}

// RemoveNode deletes a node and cascades to every edge touching it.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove node %s: %w", id, ErrNodeNotFound)
	}

	var changes []Change
	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source == id || e.Target == id {
			changes = append(changes, Change{Kind: ChangeEdgeRemoved, EdgeID: e.ID, NodeID: e.Target})
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept

	delete(s.nodes, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	changes = append(changes, Change{Kind: ChangeNodeRemoved, NodeID: id})
	s.mu.Unlock()

	s.publish(changes)
	return nil
}

// Edge returns a copy of the edge with the given id.
func (s *Store) Edge(id string) (*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.edges {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, fmt.Errorf("edge %s: %w", id, ErrEdgeNotFound)
}

// Edges returns all edges in insertion order.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// AddEdge gates and inserts a connection. The validity gate and the
// acceptance gate run in order; on admission, any eviction the
// cardinality policy demands happens atomically in the same operation,
// so a single-slot handle is never observable holding zero or two
// edges. Returns the stored edge and the edges evicted to admit it.
//
// Side effect: when the target is a pass-through image or analyzer
// node, the source's current image is copied into the target payload
// immediately (eager propagation).
func (s *Store) AddEdge(e Edge) (*Edge, []Edge, error) {
	s.mu.Lock()
	view := s.viewLocked()

	if err := s.rules.ValidateConnection(view, e); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if !s.rules.CanAcceptConnection(view, e) {
		s.mu.Unlock()
		return nil, nil, &ConnectionError{
			Source:       e.Source,
			Target:       e.Target,
			TargetHandle: e.TargetHandle,
			Reason:       "duplicate connection",
			Err:          ErrConnectionRefused,
		}
	}

	var changes []Change
	var evicted []Edge
	for _, victim := range s.rules.Evictions(view, e) {
		if removed, ok := s.removeEdgeLocked(victim); ok {
			evicted = append(evicted, removed)
			changes = append(changes, Change{Kind: ChangeEdgeRemoved, EdgeID: removed.ID, NodeID: removed.Target})
		}
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Kind == "" {
		e.Kind = DefaultEdgeKind
	}
	s.edges = append(s.edges, e)
	changes = append(changes, Change{Kind: ChangeEdgeAdded, EdgeID: e.ID, NodeID: e.Target})

	if c, ok := s.propagateEagerLocked(e); ok {
		changes = append(changes, c)
	}
	s.mu.Unlock()

	s.publish(changes)
	out := e
	return &out, evicted, nil
}

// propagateEagerLocked copies the source's current image into a
// pass-through target at connect time. Returns the resulting change
// when a copy happened.
func (s *Store) propagateEagerLocked(e Edge) (Change, bool) {
	target, ok := s.nodes[e.Target]
	if !ok || (target.Kind != KindImage && target.Kind != KindAnalyzer) {
		return Change{}, false
	}
	source, ok := s.nodes[e.Source]
	if !ok {
		return Change{}, false
	}
	img := imageOutput(*source, e.SourceHandle)
	if img == "" || target.Data.Image == img {
		return Change{}, false
	}
	target.Data.Image = img
	return Change{Kind: ChangeNodeUpdated, NodeID: target.ID}, true
}

// removeEdgeLocked removes an edge by id, reporting the removed value.
func (s *Store) removeEdgeLocked(id string) (Edge, bool) {
	for i, e := range s.edges {
		if e.ID == id {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return e, true
		}
	}
	return Edge{}, false
}

// RemoveEdge deletes an edge by id.
func (s *Store) RemoveEdge(id string) error {
	s.mu.Lock()
	removed, ok := s.removeEdgeLocked(id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("remove edge %s: %w", id, ErrEdgeNotFound)
	}
	s.publish([]Change{{Kind: ChangeEdgeRemoved, EdgeID: removed.ID, NodeID: removed.Target}})
	return nil
}

// UpdateNodePayload applies a patch to a node's payload. Clearing the
// node's primary image automatically detaches its edges into
// pass-through image and analyzer targets: those connections cannot
// exist pointing at an empty value. Returns a copy of the updated node.
func (s *Store) UpdateNodePayload(id string, patch Patch) (*Node, error) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("update node %s: %w", id, ErrNodeNotFound)
	}

	cleared := patch.apply(&n.Data)
	changes := []Change{{Kind: ChangeNodeUpdated, NodeID: id}}
	if cleared {
		changes = append(changes, s.detachEmptySourceLocked(id)...)
	}
	out := n.clone()
	s.mu.Unlock()

	s.publish(changes)
	return &out, nil
}

// detachEmptySourceLocked removes sourceID's outgoing edges into
// pass-through image/analyzer targets after its image was cleared.
func (s *Store) detachEmptySourceLocked(sourceID string) []Change {
	var victims []string
	for _, e := range s.edges {
		if e.Source != sourceID {
			continue
		}
		target, ok := s.nodes[e.Target]
		if !ok {
			continue
		}
		if target.Kind == KindImage || target.Kind == KindAnalyzer {
			victims = append(victims, e.ID)
		}
	}
	var changes []Change
	for _, id := range victims {
		if removed, ok := s.removeEdgeLocked(id); ok {
			changes = append(changes, Change{Kind: ChangeEdgeRemoved, EdgeID: removed.ID, NodeID: removed.Target})
		}
	}
	return changes
}

// SetPosition moves a node in graph space.
func (s *Store) SetPosition(id string, pos Position) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("move node %s: %w", id, ErrNodeNotFound)
	}
	n.Position = pos
	s.mu.Unlock()

	s.publish([]Change{{Kind: ChangeNodeMoved, NodeID: id}})
	return nil
}

// SetRunState transitions a node's run-state machine. Only the Engine
// calls this during runs; it is exported for tests and tooling. The
// message is recorded on failure and cleared when entering running.
func (s *Store) SetRunState(id string, status RunStatus, msg string) error {
	if !status.Valid() {
		return fmt.Errorf("set run state %s: %q: %w", id, status, ErrInvalidTransition)
	}

	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("set run state %s: %w", id, ErrNodeNotFound)
	}
	if !n.Status.canTransition(status) {
		from := n.Status
		s.mu.Unlock()
		return &TransitionError{NodeID: id, From: from, To: status}
	}
	n.Status = status
	switch status {
	case StatusRunning:
		n.Error = ""
	case StatusFailed:
		n.Error = msg
	}
	s.mu.Unlock()

	s.publish([]Change{{Kind: ChangeRunState, NodeID: id, Transient: true}})
	return nil
}

// Export returns a deep-copied snapshot of the graph in insertion
// order. Transient fields are excluded by the snapshot shape itself.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Nodes: make([]Node, 0, len(s.order)),
		Edges: make([]Edge, len(s.edges)),
	}
	for _, id := range s.order {
		snap.Nodes = append(snap.Nodes, s.nodes[id].clone())
	}
	copy(snap.Edges, s.edges)
	return snap
}

// Import replaces the store's entire contents with the snapshot (used
// for project switch and hydration). Node kinds must be valid and ids
// unique; edges that violate the rule table are filtered rather than
// imported — a violating edge is never persisted. All run state resets
// to idle. Eager propagation does not run during import: the snapshot's
// payloads are authoritative.
func (s *Store) Import(snap Snapshot) error {
	nodes := make(map[string]*Node, len(snap.Nodes))
	order := make([]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if !n.Kind.Valid() {
			return fmt.Errorf("import node %s: %q: %w", n.ID, n.Kind, ErrUnknownKind)
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if _, exists := nodes[n.ID]; exists {
			return fmt.Errorf("import node %s: %w", n.ID, ErrDuplicateID)
		}
		stored := n.clone()
		stored.Status = StatusIdle
		stored.Error = ""
		nodes[stored.ID] = &stored
		order = append(order, stored.ID)
	}

	s.mu.Lock()
	s.nodes = nodes
	s.order = order
	s.edges = nil
	for _, e := range snap.Edges {
		view := s.viewLocked()
		if s.rules.ValidateConnection(view, e) != nil {
			continue
		}
		if !s.rules.CanAcceptConnection(view, e) {
			continue
		}
		for _, victim := range s.rules.Evictions(view, e) {
			s.removeEdgeLocked(victim)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Kind == "" {
			e.Kind = DefaultEdgeKind
		}
		s.edges = append(s.edges, e)
	}
	s.mu.Unlock()

	s.publish([]Change{{Kind: ChangeHydrated}})
	return nil
}
