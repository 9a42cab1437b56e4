// Package viewport mirrors canvas pan/zoom onto a secondary drawing
// surface.
//
// The flow is strictly one-directional: the canvas is the source of
// truth and the surface only receives. The surface never reports pan or
// zoom back, so there is no feedback loop to suppress.
package viewport

import "sync"

// State is the canvas viewport in device pixels: the pan offset, the
// zoom scale, and the device pixel ratio they were measured under.
type State struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Scale   float64 `json:"scale"`

	// DPR is the device pixel ratio at capture time. Zero means
	// unknown; the mirror falls back to its configured ratio, then 1.
	DPR float64 `json:"dpr,omitempty"`
}

// Transform is the derived surface transform in layout pixels.
type Transform struct {
	TranslateX float64
	TranslateY float64
	Scale      float64
}

// Convert maps a device-pixel viewport state to a layout-pixel surface
// transform. Ratios at or below zero are treated as 1.
func Convert(s State, dpr float64) Transform {
	if s.DPR > 0 {
		dpr = s.DPR
	}
	if dpr <= 0 {
		dpr = 1
	}
	return Transform{
		TranslateX: s.OffsetX / dpr,
		TranslateY: s.OffsetY / dpr,
		Scale:      s.Scale / dpr,
	}
}

// Source is the pan/zoom origin, typically the graph canvas.
type Source interface {
	// Viewport returns the current viewport state.
	Viewport() State

	// Watch subscribes to viewport changes. The returned cancel func
	// removes the subscription.
	Watch(fn func(State)) (cancel func())
}

// Surface receives the mirrored transform. It deliberately has no way
// to emit viewport changes of its own.
type Surface interface {
	SetViewport(Transform)
}

// Mirror pushes a Source's pan/zoom onto a Surface.
type Mirror struct {
	source  Source
	surface Surface
	dpr     float64

	mu      sync.Mutex
	last    Transform
	primed  bool
	cancel  func()
	started bool
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithDevicePixelRatio sets the fallback ratio used when a state does
// not carry its own. Values at or below zero are ignored.
func WithDevicePixelRatio(dpr float64) MirrorOption {
	return func(m *Mirror) {
		if dpr > 0 {
			m.dpr = dpr
		}
	}
}

// NewMirror wires a source to a surface.
func NewMirror(source Source, surface Surface, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		source:  source,
		surface: surface,
		dpr:     1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start pushes the source's current viewport immediately, then follows
// every change until Stop.
func (m *Mirror) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.apply(m.source.Viewport())
	cancel := m.source.Watch(m.apply)

	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
}

// Stop detaches the mirror from the source. The surface keeps its last
// transform.
func (m *Mirror) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.started = false
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// apply converts and forwards one state, skipping consecutive
// duplicates.
func (m *Mirror) apply(s State) {
	t := Convert(s, m.dpr)

	m.mu.Lock()
	if m.primed && t == m.last {
		m.mu.Unlock()
		return
	}
	m.last = t
	m.primed = true
	m.mu.Unlock()

	m.surface.SetViewport(t)
}
