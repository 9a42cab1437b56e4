package flow

import (
	"fmt"
	"slices"
)

// Handle capacities.
const (
	// MaxBlendImages is the image-input capacity on blend-capable
	// generator kinds.
	MaxBlendImages = 6

	// MaxChatImages is the image-input capacity on the free-form chat
	// aggregator.
	MaxChatImages = 20

	// MaxVideoReferences is the reference-video input capacity.
	MaxVideoReferences = 3
)

// EvictionPolicy decides what happens when a connection targets a
// handle that is already at capacity.
type EvictionPolicy string

const (
	// PolicyReplace removes the handle's previous edge in the same
	// operation that admits the new one. Used by capacity-1 handles.
	PolicyReplace EvictionPolicy = "replace"

	// PolicyFIFO evicts the oldest edge on the handle to admit the
	// newest once capacity is reached.
	PolicyFIFO EvictionPolicy = "fifo"
)

// PortRule declares one input handle: which source kinds may connect,
// how many edges the handle holds, and how overflow is resolved.
type PortRule struct {
	Sources  []NodeKind
	Capacity int
	Policy   EvictionPolicy

	// SourceHandle, when non-empty, additionally requires the edge's
	// sourceHandle to match exactly. Reference-video slots use this to
	// accept only the video output of video-producing kinds.
	SourceHandle string
}

// Allows reports whether the rule admits edges from the given kind.
func (r PortRule) Allows(kind NodeKind) bool {
	return slices.Contains(r.Sources, kind)
}

type portKey struct {
	Kind   NodeKind
	Handle string
}

// RuleSet is the port-compatibility table consulted by both connection
// gates. It is immutable after construction and safe for concurrent
// use.
type RuleSet struct {
	rules map[portKey]PortRule
}

// TextSources returns the kinds whose payload can produce textual
// output: everything a text handle accepts.
func TextSources() []NodeKind {
	return []NodeKind{
		KindPromptSource,
		KindTextChat,
		KindTextNote,
		KindOptimizer,
		KindAnalyzer,
		KindStoryboard,
		KindProGenerate,
		KindProMultiGenerate,
	}
}

// ImageSources returns the kinds that produce image output: everything
// an image handle accepts.
func ImageSources() []NodeKind {
	return []NodeKind{
		KindImage,
		KindGenerate,
		KindMultiGenerate,
		KindReferenceGenerate,
		KindProGenerate,
		KindProMultiGenerate,
		KindThreeDView,
		KindCameraCapture,
	}
}

// VideoSources returns the kinds that produce video output.
func VideoSources() []NodeKind {
	return []NodeKind{
		KindVideoGenerate,
		KindReferenceVideo,
	}
}

// DefaultRules returns the standard port-compatibility table.
//
// Text handles are single-slot and replace on connect. Image handles on
// generator kinds hold up to six references with FIFO eviction; the
// chat aggregator holds up to twenty. The pass-through image node and
// the analyzer hold exactly one image edge. Reference-generate
// addresses its references by indexed slots (img1..img4), each
// independently single-slot. Reference-video holds up to three video
// edges, and only from the video output handle of video-producing
// kinds.
func DefaultRules() *RuleSet {
	text := TextSources()
	images := ImageSources()
	videos := VideoSources()

	textIn := PortRule{Sources: text, Capacity: 1, Policy: PolicyReplace}
	singleImageIn := PortRule{Sources: images, Capacity: 1, Policy: PolicyReplace}
	blendImagesIn := PortRule{Sources: images, Capacity: MaxBlendImages, Policy: PolicyFIFO}

	rules := map[portKey]PortRule{
		{KindTextChat, HandleText}:  textIn,
		{KindTextChat, HandleImage}: {Sources: images, Capacity: MaxChatImages, Policy: PolicyFIFO},

		{KindOptimizer, HandleText}: textIn,

		{KindImage, HandleImage}: singleImageIn,

		{KindGenerate, HandleText}:  textIn,
		{KindGenerate, HandleImage}: blendImagesIn,

		{KindMultiGenerate, HandleText}:  textIn,
		{KindMultiGenerate, HandleImage}: blendImagesIn,

		{KindReferenceGenerate, HandleText}: textIn,

		{KindProGenerate, HandleText}:  textIn,
		{KindProGenerate, HandleImage}: blendImagesIn,

		{KindProMultiGenerate, HandleText}:  textIn,
		{KindProMultiGenerate, HandleImage}: blendImagesIn,

		{KindAnalyzer, HandleImage}: singleImageIn,

		{KindVideoGenerate, HandleText}:  textIn,
		{KindVideoGenerate, HandleImage}: singleImageIn,

		{KindReferenceVideo, HandleText}: textIn,
		{KindReferenceVideo, HandleVideo}: {
			Sources:      videos,
			Capacity:     MaxVideoReferences,
			Policy:       PolicyFIFO,
			SourceHandle: HandleVideo,
		},

		{KindStoryboard, HandleText}: textIn,
	}

	// Indexed reference slots on reference-generate: img1..img4, each
	// single-slot.
	for i := 0; i < BatchSlots; i++ {
		rules[portKey{KindReferenceGenerate, SlotHandle(i)}] = singleImageIn
	}

	return &RuleSet{rules: rules}
}

// Rule returns the declared rule for a target kind and handle.
func (rs *RuleSet) Rule(kind NodeKind, handle string) (PortRule, bool) {
	r, ok := rs.rules[portKey{Kind: kind, Handle: handle}]
	return r, ok
}

// InputHandles returns the declared input handles for a kind, text
// first, then image, video, and indexed slots. Kinds with no inputs
// return nil.
func (rs *RuleSet) InputHandles(kind NodeKind) []string {
	ordered := []string{HandleText, HandleImage, HandleVideo}
	for i := 0; i < BatchSlots; i++ {
		ordered = append(ordered, SlotHandle(i))
	}
	var out []string
	for _, h := range ordered {
		if _, ok := rs.rules[portKey{Kind: kind, Handle: h}]; ok {
			out = append(out, h)
		}
	}
	return out
}

// imageHandles returns the kind's image-typed input handles (the plain
// image handle plus any indexed slots).
func (rs *RuleSet) imageHandles(kind NodeKind) []string {
	var out []string
	if _, ok := rs.rules[portKey{Kind: kind, Handle: HandleImage}]; ok {
		out = append(out, HandleImage)
	}
	for i := 0; i < BatchSlots; i++ {
		if _, ok := rs.rules[portKey{Kind: kind, Handle: SlotHandle(i)}]; ok {
			out = append(out, SlotHandle(i))
		}
	}
	return out
}

// ValidateConnection applies the validity gate to a candidate edge:
// both endpoints exist, the edge is not a self-loop, the target handle
// is declared for the target kind, and the source kind (and, where
// required, source handle) is in the allowed set. A nil return means
// the edge is legal; otherwise the returned ConnectionError wraps
// ErrInvalidConnection with the failing check.
func (rs *RuleSet) ValidateConnection(s Snapshot, e Edge) error {
	reject := func(reason string) error {
		return &ConnectionError{
			Source:       e.Source,
			Target:       e.Target,
			TargetHandle: e.TargetHandle,
			Reason:       reason,
			Err:          ErrInvalidConnection,
		}
	}

	src := s.node(e.Source)
	if src == nil {
		return reject("source node does not exist")
	}
	dst := s.node(e.Target)
	if dst == nil {
		return reject("target node does not exist")
	}
	if e.Source == e.Target {
		return reject("self-loop")
	}

	rule, ok := rs.Rule(dst.Kind, e.TargetHandle)
	if !ok {
		return reject(fmt.Sprintf("%s has no %q input", dst.Kind, e.TargetHandle))
	}
	if !rule.Allows(src.Kind) {
		return reject(fmt.Sprintf("%s does not accept %s on %q", dst.Kind, src.Kind, e.TargetHandle))
	}
	if rule.SourceHandle != "" && e.SourceHandle != rule.SourceHandle {
		return reject(fmt.Sprintf("%q input requires source handle %q", e.TargetHandle, rule.SourceHandle))
	}
	return nil
}

// IsValidConnection is the boolean form of ValidateConnection.
func (rs *RuleSet) IsValidConnection(s Snapshot, e Edge) bool {
	return rs.ValidateConnection(s, e) == nil
}

// CanAcceptConnection applies the acceptance gate: given the handle's
// existing edges, can the candidate be admitted. Capacity never refuses
// a connection outright — the eviction policy makes room — so the only
// refusal is an exact duplicate of an existing edge. Call after
// ValidateConnection; an undeclared handle is refused here too.
func (rs *RuleSet) CanAcceptConnection(s Snapshot, e Edge) bool {
	dst := s.node(e.Target)
	if dst == nil {
		return false
	}
	if _, ok := rs.Rule(dst.Kind, e.TargetHandle); !ok {
		return false
	}
	for _, existing := range s.incoming(e.Target, e.TargetHandle) {
		if existing.sameEndpoints(e) {
			return false
		}
	}
	return true
}

// Evictions returns the ids of the edges that must be removed to admit
// the candidate, oldest first. Empty when the handle has free capacity.
func (rs *RuleSet) Evictions(s Snapshot, e Edge) []string {
	dst := s.node(e.Target)
	if dst == nil {
		return nil
	}
	rule, ok := rs.Rule(dst.Kind, e.TargetHandle)
	if !ok {
		return nil
	}

	existing := s.incoming(e.Target, e.TargetHandle)
	if len(existing) < rule.Capacity {
		return nil
	}

	var evict []string
	switch rule.Policy {
	case PolicyReplace:
		// Capacity-1 handles drop every occupant; the admit and the
		// removal happen in one store operation so the handle is never
		// observable with zero or two edges.
		for _, old := range existing {
			evict = append(evict, old.ID)
		}
	case PolicyFIFO:
		overflow := len(existing) - rule.Capacity + 1
		for _, old := range existing[:overflow] {
			evict = append(evict, old.ID)
		}
	}
	return evict
}
