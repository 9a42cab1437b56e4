package flow

// NodeKind tags a node with its behavior. The set is closed: every
// switch over NodeKind in this package enumerates all kinds so that
// adding a new kind fails loudly at the point that needs updating.
type NodeKind string

const (
	// KindPromptSource holds user-typed prompt text. Source only.
	KindPromptSource NodeKind = "prompt-source"

	// KindTextChat is a free-form chat node: a message plus up to
	// twenty attached images, answered by the text collaborator.
	KindTextChat NodeKind = "text-chat"

	// KindTextNote holds freeform note text. Source only.
	KindTextNote NodeKind = "text-note"

	// KindOptimizer rewrites an input prompt via the text collaborator.
	KindOptimizer NodeKind = "prompt-optimizer"

	// KindImage is a pass-through image holder (uploads, fan-out
	// targets). It has no run behavior of its own.
	KindImage NodeKind = "image"

	// KindGenerate is the single-image generator. Zero input images
	// generate from text, one edits, two or more blend.
	KindGenerate NodeKind = "single-generate"

	// KindMultiGenerate produces a fixed batch of images and exposes
	// each slot as its own output handle (img1..img4).
	KindMultiGenerate NodeKind = "multi-generate"

	// KindReferenceGenerate generates a single image guided by
	// reference images.
	KindReferenceGenerate NodeKind = "reference-generate"

	// KindProGenerate is the professional-tier single generator with
	// structured prompt fields (subject, scene, style).
	KindProGenerate NodeKind = "pro-generate"

	// KindProMultiGenerate is the professional-tier batch generator.
	KindProMultiGenerate NodeKind = "pro-multi-generate"

	// KindAnalyzer describes its input image via the text collaborator.
	KindAnalyzer NodeKind = "analyzer"

	// KindVideoGenerate produces a video from text and/or one image.
	KindVideoGenerate NodeKind = "video-generate"

	// KindReferenceVideo produces a video guided by up to three
	// reference videos.
	KindReferenceVideo NodeKind = "reference-video"

	// KindStoryboard splits a prompt into an ordered scene list.
	KindStoryboard NodeKind = "storyboard-split"

	// KindThreeDView holds a rendered 3D viewport frame. Source only.
	KindThreeDView NodeKind = "3d-view"

	// KindCameraCapture holds a captured camera frame. Source only.
	KindCameraCapture NodeKind = "camera-capture"
)

// allKinds is the closed kind set in declaration order.
var allKinds = []NodeKind{
	KindPromptSource,
	KindTextChat,
	KindTextNote,
	KindOptimizer,
	KindImage,
	KindGenerate,
	KindMultiGenerate,
	KindReferenceGenerate,
	KindProGenerate,
	KindProMultiGenerate,
	KindAnalyzer,
	KindVideoGenerate,
	KindReferenceVideo,
	KindStoryboard,
	KindThreeDView,
	KindCameraCapture,
}

// Kinds returns every node kind in declaration order.
func Kinds() []NodeKind {
	out := make([]NodeKind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a member of the closed kind set.
func (k NodeKind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Runnable reports whether the Engine has run behavior for this kind.
// Pure sources (prompts, notes, images, captures) are not runnable.
func (k NodeKind) Runnable() bool {
	switch k {
	case KindTextChat, KindOptimizer, KindAnalyzer, KindStoryboard,
		KindGenerate, KindMultiGenerate, KindReferenceGenerate,
		KindProGenerate, KindProMultiGenerate,
		KindVideoGenerate, KindReferenceVideo:
		return true
	case KindPromptSource, KindTextNote, KindImage, KindThreeDView, KindCameraCapture:
		return false
	}
	return false
}

// Batch reports whether runs of this kind produce a fixed batch of
// images rather than a single result.
func (k NodeKind) Batch() bool {
	return k == KindMultiGenerate || k == KindProMultiGenerate
}

// RunStatus is a node's run-state machine position.
// Transitions: idle -> running -> succeeded | failed. Terminal states
// may re-enter running on a re-run. There is no cancelled state.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state of a run.
func (s RunStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// canTransition reports whether the run-state machine permits s -> to.
func (s RunStatus) canTransition(to RunStatus) bool {
	switch to {
	case StatusRunning:
		return s != StatusRunning
	case StatusSucceeded, StatusFailed:
		return s == StatusRunning
	case StatusIdle:
		// Only hydration resets to idle, and it replaces nodes
		// wholesale rather than transitioning them.
		return false
	}
	return false
}

// Position is a node's coordinate in graph space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BatchSlots is the fixed sub-call count for batch generator kinds.
const BatchSlots = 4

// Payload is a node's kind-specific state. One struct covers all kinds;
// fields irrelevant to a kind stay zero and are omitted from the
// serialized form. Run status and error live on the Node itself, not
// here, because they are transient and never persisted.
type Payload struct {
	// Prompt is the locally typed prompt on prompt sources and
	// generator kinds.
	Prompt string `json:"prompt,omitempty"`

	// Text is the note body on text-note nodes.
	Text string `json:"text,omitempty"`

	// Message and Response are the chat exchange on text-chat nodes.
	Message  string `json:"message,omitempty"`
	Response string `json:"response,omitempty"`

	// Optimized is the optimizer's last rewritten prompt.
	Optimized string `json:"optimized,omitempty"`

	// Analysis is the analyzer's last produced description.
	Analysis string `json:"analysis,omitempty"`

	// Subject, Scene and Style are the structured prompt fields on the
	// professional generator kinds.
	Subject string `json:"subject,omitempty"`
	Scene   string `json:"scene,omitempty"`
	Style   string `json:"style,omitempty"`

	// Image is the primary image output (data URL or fetchable URL).
	Image string `json:"image,omitempty"`

	// Images holds batch output slots, indexed 0..BatchSlots-1. Unused
	// trailing slots stay empty.
	Images []string `json:"images,omitempty"`

	// Video is the produced video URL on video kinds.
	Video string `json:"video,omitempty"`

	// Scenes is the storyboard node's ordered scene list.
	Scenes []string `json:"scenes,omitempty"`

	// Generation parameters.
	AspectRatio string `json:"aspectRatio,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	Quality     string `json:"quality,omitempty"`
	Count       int    `json:"count,omitempty"`
	Model       string `json:"model,omitempty"`
}

// clone returns a deep copy of the payload.
func (p Payload) clone() Payload {
	out := p
	if p.Images != nil {
		out.Images = make([]string, len(p.Images))
		copy(out.Images, p.Images)
	}
	if p.Scenes != nil {
		out.Scenes = make([]string, len(p.Scenes))
		copy(out.Scenes, p.Scenes)
	}
	return out
}

// Node is a graph vertex. ID is stable for the node's lifetime and
// unique across the node set; Kind is immutable after creation.
//
// Status and Error describe the node's current run and are transient:
// they are excluded from snapshots and reset to idle on hydration.
type Node struct {
	ID       string    `json:"id"`
	Kind     NodeKind  `json:"kind"`
	Position Position  `json:"position"`
	Data     Payload   `json:"data"`
	Status   RunStatus `json:"-"`
	Error    string    `json:"-"`
}

// clone returns a deep copy of the node.
func (n Node) clone() Node {
	out := n
	out.Data = n.Data.clone()
	return out
}

// Patch is an explicit partial update to a node payload. Nil fields are
// left untouched; non-nil fields overwrite, including overwriting with
// the zero value. Engine results reach the Store only through patches —
// there is no ambient event channel carrying payload mutations.
type Patch struct {
	Prompt    *string   `json:"prompt,omitempty"`
	Text      *string   `json:"text,omitempty"`
	Message   *string   `json:"message,omitempty"`
	Response  *string   `json:"response,omitempty"`
	Optimized *string   `json:"optimized,omitempty"`
	Analysis  *string   `json:"analysis,omitempty"`
	Subject   *string   `json:"subject,omitempty"`
	Scene     *string   `json:"scene,omitempty"`
	Style     *string   `json:"style,omitempty"`
	Image     *string   `json:"image,omitempty"`
	Video     *string   `json:"video,omitempty"`
	Scenes    *[]string `json:"scenes,omitempty"`

	// Slots writes individual batch output slots. Each entry is
	// last-writer-wins for its own index; other slots are untouched.
	// Indexes outside [0, BatchSlots) are ignored.
	Slots map[int]string `json:"slots,omitempty"`

	AspectRatio *string `json:"aspectRatio,omitempty"`
	Duration    *int    `json:"duration,omitempty"`
	Resolution  *string `json:"resolution,omitempty"`
	Quality     *string `json:"quality,omitempty"`
	Count       *int    `json:"count,omitempty"`
	Model       *string `json:"model,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Prompt == nil && p.Text == nil && p.Message == nil &&
		p.Response == nil && p.Optimized == nil && p.Analysis == nil &&
		p.Subject == nil && p.Scene == nil && p.Style == nil &&
		p.Image == nil && p.Video == nil && p.Scenes == nil &&
		len(p.Slots) == 0 &&
		p.AspectRatio == nil && p.Duration == nil && p.Resolution == nil &&
		p.Quality == nil && p.Count == nil && p.Model == nil
}

// apply merges the patch into a payload and reports whether the primary
// image was cleared (set to empty), which triggers edge auto-detach for
// pass-through targets.
func (p Patch) apply(data *Payload) (clearedImage bool) {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&data.Prompt, p.Prompt)
	setStr(&data.Text, p.Text)
	setStr(&data.Message, p.Message)
	setStr(&data.Response, p.Response)
	setStr(&data.Optimized, p.Optimized)
	setStr(&data.Analysis, p.Analysis)
	setStr(&data.Subject, p.Subject)
	setStr(&data.Scene, p.Scene)
	setStr(&data.Style, p.Style)
	setStr(&data.Video, p.Video)
	setStr(&data.AspectRatio, p.AspectRatio)
	setStr(&data.Resolution, p.Resolution)
	setStr(&data.Quality, p.Quality)
	setStr(&data.Model, p.Model)
	if p.Duration != nil {
		data.Duration = *p.Duration
	}
	if p.Count != nil {
		data.Count = *p.Count
	}
	if p.Image != nil {
		had := data.Image != ""
		data.Image = *p.Image
		clearedImage = had && data.Image == ""
	}
	if p.Scenes != nil {
		data.Scenes = make([]string, len(*p.Scenes))
		copy(data.Scenes, *p.Scenes)
	}
	for idx, img := range p.Slots {
		if idx < 0 || idx >= BatchSlots {
			continue
		}
		if len(data.Images) < BatchSlots {
			grown := make([]string, BatchSlots)
			copy(grown, data.Images)
			data.Images = grown
		}
		data.Images[idx] = img
	}
	return clearedImage
}

// String returns a pointer to s, for building patches inline.
func String(s string) *string { return &s }

// Int returns a pointer to i, for building patches inline.
func Int(i int) *int { return &i }

// Strings returns a pointer to a copy of ss, for building patches inline.
func Strings(ss ...string) *[]string {
	out := make([]string, len(ss))
	copy(out, ss)
	return &out
}
