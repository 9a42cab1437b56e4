package flow

import "strings"

// TextInput is the result of text resolution: the effective upstream
// text and whether a text edge exists at all. HasEdge true with empty
// Text means the connected source currently has no content.
type TextInput struct {
	Text    string
	HasEdge bool
}

// Resolver answers "what are this node's effective inputs" against one
// consistent snapshot. An Engine run constructs a Resolver over the
// snapshot taken at invocation time, so edits made while the run is in
// flight apply to the next run, never retroactively to this one.
type Resolver struct {
	snap  Snapshot
	rules *RuleSet
}

// NewResolver builds a resolver over a snapshot. A nil rule set falls
// back to the default table.
func NewResolver(snap Snapshot, rules *RuleSet) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Resolver{snap: snap, rules: rules}
}

// Text resolves the node's effective text input via its (at most one)
// incoming text edge. A missing source or a source with no content
// resolves to an empty string — never an error; the caller decides
// whether empty text is a failure.
func (r *Resolver) Text(nodeID string) TextInput {
	edges := r.snap.incoming(nodeID, HandleText)
	if len(edges) == 0 {
		return TextInput{}
	}
	src := r.snap.node(edges[0].Source)
	if src == nil {
		return TextInput{HasEdge: true}
	}
	return TextInput{Text: textOutput(*src), HasEdge: true}
}

// Images resolves the node's image inputs in edge-insertion order,
// filtered to non-empty values. With no handle filter it walks every
// image-typed input handle the node's kind declares. The caller
// enforces any slot-count ceiling.
func (r *Resolver) Images(nodeID string, handles ...string) []string {
	node := r.snap.node(nodeID)
	if node == nil {
		return nil
	}
	if len(handles) == 0 {
		handles = r.rules.imageHandles(node.Kind)
	}
	var out []string
	for _, e := range r.snap.incoming(nodeID, handles...) {
		src := r.snap.node(e.Source)
		if src == nil {
			continue
		}
		if img := imageOutput(*src, e.SourceHandle); img != "" {
			out = append(out, img)
		}
	}
	return out
}

// Videos resolves the node's video inputs in edge-insertion order,
// filtered to non-empty values.
func (r *Resolver) Videos(nodeID string) []string {
	var out []string
	for _, e := range r.snap.incoming(nodeID, HandleVideo) {
		src := r.snap.node(e.Source)
		if src == nil {
			continue
		}
		if v := videoOutput(*src); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ResolveText resolves against the store's current state. Convenience
// for callers outside a run; the Engine resolves against its own
// snapshot instead.
func (s *Store) ResolveText(nodeID string) (TextInput, error) {
	s.mu.RLock()
	if _, ok := s.nodes[nodeID]; !ok {
		s.mu.RUnlock()
		return TextInput{}, ErrNodeNotFound
	}
	view := s.viewLocked()
	s.mu.RUnlock()
	return NewResolver(view, s.rules).Text(nodeID), nil
}

// ResolveImages resolves against the store's current state.
func (s *Store) ResolveImages(nodeID string, handles ...string) ([]string, error) {
	s.mu.RLock()
	if _, ok := s.nodes[nodeID]; !ok {
		s.mu.RUnlock()
		return nil, ErrNodeNotFound
	}
	view := s.viewLocked()
	s.mu.RUnlock()
	return NewResolver(view, s.rules).Images(nodeID, handles...), nil
}

// textOutput is the per-source-kind text extraction. The switch is
// exhaustive over the closed kind set: image- and video-producing kinds
// deliberately resolve to empty rather than being absent, so adding a
// kind forces a decision here.
func textOutput(n Node) string {
	switch n.Kind {
	case KindPromptSource:
		return n.Data.Prompt
	case KindTextNote:
		return n.Data.Text
	case KindTextChat:
		// The latest exchange wins: once the chat has an answer,
		// downstream consumers want the answer, not the question.
		if n.Data.Response != "" {
			return n.Data.Response
		}
		return n.Data.Message
	case KindOptimizer:
		if n.Data.Optimized != "" {
			return n.Data.Optimized
		}
		return n.Data.Prompt
	case KindAnalyzer:
		return n.Data.Analysis
	case KindStoryboard:
		return strings.Join(compactStrings(n.Data.Scenes), "\n")
	case KindProGenerate, KindProMultiGenerate:
		return joinPromptFields(n.Data)
	case KindImage, KindGenerate, KindMultiGenerate, KindReferenceGenerate,
		KindVideoGenerate, KindReferenceVideo, KindThreeDView, KindCameraCapture:
		return ""
	}
	return ""
}

// imageOutput is the per-source-kind image extraction. Batch generators
// select the slot addressed by the edge's source handle, falling back
// to the primary image when that slot is empty.
func imageOutput(n Node, sourceHandle string) string {
	switch n.Kind {
	case KindImage, KindGenerate, KindReferenceGenerate, KindProGenerate,
		KindThreeDView, KindCameraCapture:
		return n.Data.Image
	case KindMultiGenerate, KindProMultiGenerate:
		if idx := slotIndex(sourceHandle); idx >= 0 && idx < len(n.Data.Images) {
			if img := n.Data.Images[idx]; img != "" {
				return img
			}
		}
		return n.Data.Image
	case KindPromptSource, KindTextNote, KindTextChat, KindOptimizer,
		KindAnalyzer, KindStoryboard, KindVideoGenerate, KindReferenceVideo:
		return ""
	}
	return ""
}

// videoOutput is the per-source-kind video extraction.
func videoOutput(n Node) string {
	switch n.Kind {
	case KindVideoGenerate, KindReferenceVideo:
		return n.Data.Video
	case KindPromptSource, KindTextNote, KindTextChat, KindOptimizer,
		KindAnalyzer, KindStoryboard, KindImage, KindGenerate,
		KindMultiGenerate, KindReferenceGenerate, KindProGenerate,
		KindProMultiGenerate, KindThreeDView, KindCameraCapture:
		return ""
	}
	return ""
}

// joinPromptFields assembles the professional generator's structured
// prompt fields into one derived prompt string.
func joinPromptFields(data Payload) string {
	parts := compactStrings([]string{data.Subject, data.Scene, data.Style})
	if len(parts) == 0 {
		return data.Prompt
	}
	return strings.Join(parts, ", ")
}

// compactStrings drops empty and whitespace-only entries.
func compactStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
