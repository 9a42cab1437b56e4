// Package provider defines the generation collaborators the execution
// engine calls: image generation, video generation, and text
// completion. Collaborators are remote services reached over HTTP or an
// LLM backend; the engine depends only on the interfaces here.
//
// All calls are opaque request/response exchanges: a call either
// returns a Result or an error. Retry policy is the client's concern —
// HTTP clients retry transient failures with backoff; callers see only
// the final outcome. There is no cancellation beyond the context
// deadline the caller imposes, which surfaces as an ordinary call
// failure.
package provider

import "context"

// Params carries the kind-specific generation parameters a node
// configures. Zero fields are omitted from the wire request.
type Params struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	Quality     string `json:"quality,omitempty"`
	Count       int    `json:"count,omitempty"`
	Model       string `json:"model,omitempty"`
}

// ImageRequest is one image-generation call. Images are data URLs or
// fetchable URLs, in the order the caller resolved them.
type ImageRequest struct {
	Prompt string
	Images []string
	Params Params
}

// VideoRequest is one video-generation call. Image inputs must already
// be durable, fetchable URLs — video providers cannot accept inline
// data, which is why the engine uploads before calling.
type VideoRequest struct {
	Prompt    string
	ImageURLs []string
	VideoURLs []string
	Params    Params
}

// TextRequest is one text-completion call. Images attach as additional
// content parts for vision-capable backends.
type TextRequest struct {
	System string
	Prompt string
	Images []string
	Params Params
}

// Result is the successful outcome of any generation call. Exactly one
// of ImageData, VideoURL, Text is populated, matching the call that
// produced it.
type Result struct {
	ImageData string
	VideoURL  string
	Text      string
	Metadata  map[string]any
}

// ImageGenerator is the image collaborator. Generate produces from
// text alone, Edit transforms one input image, Blend combines several.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (*Result, error)
	Edit(ctx context.Context, req ImageRequest) (*Result, error)
	Blend(ctx context.Context, req ImageRequest) (*Result, error)
}

// VideoGenerator is the video collaborator. GenerateWithReferences
// guides generation with previously produced reference videos.
type VideoGenerator interface {
	Generate(ctx context.Context, req VideoRequest) (*Result, error)
	GenerateWithReferences(ctx context.Context, req VideoRequest) (*Result, error)
}

// TextGenerator is the text collaborator backing chat, prompt
// optimization, image analysis, and storyboard splitting.
type TextGenerator interface {
	Complete(ctx context.Context, req TextRequest) (*Result, error)
}
