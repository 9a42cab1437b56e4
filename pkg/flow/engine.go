package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atelierhq/easelflow/pkg/flow/observability"
	"github.com/atelierhq/easelflow/pkg/flow/provider"
	"github.com/atelierhq/easelflow/pkg/flow/storage"
)

// Run phases, recorded on RunError.
const (
	opResolve  = "resolve"
	opUpload   = "upload"
	opGenerate = "generate"
)

// Built-in instructions for the text collaborator.
const (
	optimizerSystem = "You rewrite image-generation prompts. Return a single improved prompt " +
		"with concrete subject, composition, lighting, and style details. Reply with the " +
		"rewritten prompt only."

	analyzerPrompt = "Describe this image in detail: subject, composition, lighting, and style."

	storyboardSystem = "Split the script into distinct scenes. Reply with one scene " +
		"description per line and nothing else."
)

// Engine executes runnable nodes against the Store. It owns run
// sequencing and status transitions; all generation work is delegated
// to the configured collaborators, reached only through their
// interfaces.
//
// Runs are node-local: executing a node never triggers runs of its
// neighbors. Results propagate exactly one hop, into pass-through image
// targets, and further only when those are run in turn.
type Engine struct {
	store   *Store
	images  provider.ImageGenerator
	videos  provider.VideoGenerator
	texts   provider.TextGenerator
	uploads storage.Uploader

	logger  *slog.Logger
	metrics observability.Recorder
	spans   observability.SpanManager

	projectID        string
	batchSize        int
	batchConcurrency int

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEngine creates an Engine over the given store. Collaborators are
// all optional; runs that need a missing one fail with ErrNoProvider.
func NewEngine(store *Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:            store,
		metrics:          observability.NoopRecorder{},
		spans:            observability.NoopSpanManager{},
		batchSize:        BatchSlots,
		batchConcurrency: BatchSlots,
		inflight:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Running reports whether a run of the node is currently in flight.
func (e *Engine) Running(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, running := e.inflight[nodeID]
	return running
}

// begin claims the per-node run slot. Returns false when a run is
// already in flight for the node.
func (e *Engine) begin(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, running := e.inflight[nodeID]; running {
		return false
	}
	e.inflight[nodeID] = struct{}{}
	return true
}

func (e *Engine) end(nodeID string) {
	e.mu.Lock()
	delete(e.inflight, nodeID)
	e.mu.Unlock()
}

// Run executes one node to a terminal status and returns the run's
// error, if any. The node transitions idle/terminal -> running ->
// succeeded|failed; concurrent calls for the same node beyond the first
// return ErrAlreadyRunning without touching its status.
//
// Inputs are resolved from a snapshot taken at invocation: edits made
// while the run is in flight affect the next run, not this one. When
// resolution fails, the run fails without a single collaborator call.
func (e *Engine) Run(ctx context.Context, nodeID string) error {
	node, err := e.store.Node(nodeID)
	if err != nil {
		return err
	}
	if !node.Kind.Runnable() {
		return fmt.Errorf("run %s: %q: %w", nodeID, node.Kind, ErrNotRunnable)
	}
	if !e.begin(nodeID) {
		return fmt.Errorf("run %s: %w", nodeID, ErrAlreadyRunning)
	}
	defer e.end(nodeID)

	runID := uuid.NewString()
	kind := string(node.Kind)
	rctx, span := e.spans.StartRunSpan(ctx, nodeID, kind, runID)
	elapsed := observability.TimedOperation()

	if err := e.store.SetRunState(nodeID, StatusRunning, ""); err != nil {
		e.spans.EndSpanWithError(span, err)
		return err
	}
	observability.LogRunStart(e.logger, nodeID, kind, runID)

	snap := e.store.Export()
	cur := snap.node(nodeID)
	if cur == nil {
		// Deleted between the lookup and the snapshot.
		e.spans.EndSpanWithError(span, ErrNodeNotFound)
		return fmt.Errorf("run %s: %w", nodeID, ErrNodeNotFound)
	}
	res := NewResolver(snap, e.store.Rules())

	patch, runErr := e.dispatch(rctx, res, cur)
	ms := elapsed()
	dur := time.Duration(ms) * time.Millisecond

	if runErr != nil {
		// Best effort: the node may have been deleted mid-run.
		_ = e.store.SetRunState(nodeID, StatusFailed, runErr.Error())
		e.metrics.RecordRun(ctx, kind, string(StatusFailed), dur)
		observability.LogRunFailed(e.logger, nodeID, kind, runErr, ms)
		e.spans.EndSpanWithError(span, runErr)
		return runErr
	}

	if !patch.IsZero() {
		if _, err := e.store.UpdateNodePayload(nodeID, patch); err != nil {
			// Node deleted while running: there is nothing left to
			// record the result on.
			e.metrics.RecordRun(ctx, kind, string(StatusFailed), dur)
			e.spans.EndSpanWithError(span, err)
			return err
		}
	}
	_ = e.store.SetRunState(nodeID, StatusSucceeded, "")
	e.metrics.RecordRun(ctx, kind, string(StatusSucceeded), dur)
	observability.LogRunSucceeded(e.logger, nodeID, kind, ms)
	e.spans.EndSpanWithError(span, nil)

	e.fanOut(snap, nodeID)
	return nil
}

// dispatch resolves the node's inputs and performs its kind-specific
// work, returning the result patch to apply. Every returned error is a
// *RunError or *BatchError naming the failed phase.
func (e *Engine) dispatch(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	switch node.Kind {
	case KindTextChat:
		return e.runChat(ctx, res, node)
	case KindOptimizer:
		return e.runOptimizer(ctx, res, node)
	case KindAnalyzer:
		return e.runAnalyzer(ctx, res, node)
	case KindStoryboard:
		return e.runStoryboard(ctx, res, node)
	case KindGenerate, KindProGenerate:
		return e.runGenerate(ctx, res, node)
	case KindReferenceGenerate:
		return e.runReferenceGenerate(ctx, res, node)
	case KindMultiGenerate, KindProMultiGenerate:
		return e.runBatch(ctx, res, node)
	case KindVideoGenerate:
		return e.runVideo(ctx, res, node)
	case KindReferenceVideo:
		return e.runReferenceVideo(ctx, res, node)
	}
	return Patch{}, runFailure(node, opResolve, fmt.Errorf("%q: %w", node.Kind, ErrNotRunnable))
}

func (e *Engine) runChat(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	msg := strings.TrimSpace(node.Data.Message)
	if msg == "" {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: message", ErrMissingInput))
	}
	if e.texts == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: text", ErrNoProvider))
	}

	req := provider.TextRequest{
		Prompt: msg,
		Images: res.Images(node.ID),
		Params: callParams(node),
	}
	// Connected text rides along as conversation context.
	if in := res.Text(node.ID); in.Text != "" {
		req.System = in.Text
	}

	out, err := e.call(ctx, "text", "chat", func(cctx context.Context) (*provider.Result, error) {
		return e.texts.Complete(cctx, req)
	})
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	if out.Text == "" {
		return Patch{}, runFailure(node, opGenerate, provider.ErrEmptyResult)
	}
	return Patch{Response: String(out.Text)}, nil
}

func (e *Engine) runOptimizer(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	prompt := effectivePrompt(res, node)
	if prompt == "" {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: prompt", ErrMissingInput))
	}
	if e.texts == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: text", ErrNoProvider))
	}

	req := provider.TextRequest{
		System: optimizerSystem,
		Prompt: prompt,
		Params: callParams(node),
	}
	out, err := e.call(ctx, "text", "optimize", func(cctx context.Context) (*provider.Result, error) {
		return e.texts.Complete(cctx, req)
	})
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	if out.Text == "" {
		return Patch{}, runFailure(node, opGenerate, provider.ErrEmptyResult)
	}
	return Patch{Optimized: String(out.Text)}, nil
}

func (e *Engine) runAnalyzer(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	// A live upstream connection wins over the eager-copied payload
	// value, which can lag behind the source's latest run.
	image := ""
	if imgs := res.Images(node.ID); len(imgs) > 0 {
		image = imgs[0]
	}
	if image == "" {
		image = node.Data.Image
	}
	if image == "" {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: image", ErrMissingInput))
	}
	if e.texts == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: text", ErrNoProvider))
	}

	prompt := node.Data.Prompt
	if prompt == "" {
		prompt = analyzerPrompt
	}
	req := provider.TextRequest{
		Prompt: prompt,
		Images: []string{image},
		Params: callParams(node),
	}
	out, err := e.call(ctx, "text", "analyze", func(cctx context.Context) (*provider.Result, error) {
		return e.texts.Complete(cctx, req)
	})
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	if out.Text == "" {
		return Patch{}, runFailure(node, opGenerate, provider.ErrEmptyResult)
	}
	return Patch{Analysis: String(out.Text)}, nil
}

func (e *Engine) runStoryboard(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	script := effectivePrompt(res, node)
	if script == "" {
		script = node.Data.Text
	}
	if script == "" {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: script", ErrMissingInput))
	}
	if e.texts == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: text", ErrNoProvider))
	}

	req := provider.TextRequest{
		System: storyboardSystem,
		Prompt: script,
		Params: callParams(node),
	}
	out, err := e.call(ctx, "text", "storyboard", func(cctx context.Context) (*provider.Result, error) {
		return e.texts.Complete(cctx, req)
	})
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	scenes := compactStrings(strings.Split(out.Text, "\n"))
	if len(scenes) == 0 {
		return Patch{}, runFailure(node, opGenerate, provider.ErrEmptyResult)
	}
	return Patch{Scenes: &scenes}, nil
}

func (e *Engine) runGenerate(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	prompt := effectivePrompt(res, node)
	imgs := res.Images(node.ID)
	if prompt == "" && len(imgs) == 0 {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: prompt or image", ErrMissingInput))
	}
	if e.images == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: image", ErrNoProvider))
	}

	out, err := e.generateOne(ctx, node, prompt, imgs)
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	return Patch{Image: String(out.ImageData)}, nil
}

func (e *Engine) runReferenceGenerate(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	imgs := res.Images(node.ID)
	if len(imgs) == 0 {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: reference image", ErrMissingInput))
	}
	prompt := effectivePrompt(res, node)
	if prompt == "" {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: prompt", ErrMissingInput))
	}
	if e.images == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: image", ErrNoProvider))
	}

	// Reference generation always blends: the references steer the
	// result even when there is only one.
	req := provider.ImageRequest{Prompt: prompt, Images: imgs, Params: callParams(node)}
	out, err := e.call(ctx, "image", "blend", func(cctx context.Context) (*provider.Result, error) {
		return e.images.Blend(cctx, req)
	})
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	return Patch{Image: String(out.ImageData)}, nil
}

func (e *Engine) runBatch(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	prompt := effectivePrompt(res, node)
	imgs := res.Images(node.ID)
	if prompt == "" && len(imgs) == 0 {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: prompt or image", ErrMissingInput))
	}
	if e.images == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: image", ErrNoProvider))
	}

	n := e.batchSize
	if c := node.Data.Count; c > 0 && c < n {
		n = c
	}

	results := make([]string, n)
	failures := make([]error, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchConcurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			// A slot failure never cancels its siblings; the run
			// outcome is judged over all slots afterward.
			out, err := e.generateOne(gctx, node, prompt, imgs)
			if err == nil && out.ImageData == "" {
				err = provider.ErrEmptyResult
			}
			e.metrics.RecordBatchSlot(ctx, string(node.Kind), err == nil)
			observability.LogBatchSlot(e.logger, node.ID, i, err)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = out.ImageData
			// Incremental write: each finished slot lands immediately,
			// so partial results are visible while slower slots run.
			if _, werr := e.store.UpdateNodePayload(node.ID, Patch{Slots: map[int]string{i: out.ImageData}}); werr != nil {
				failures[i] = werr
			}
			return nil
		})
	}
	_ = g.Wait()

	var first string
	var joined []error
	succeeded := 0
	for i := 0; i < n; i++ {
		if failures[i] != nil {
			joined = append(joined, fmt.Errorf("slot %d: %w", i+1, failures[i]))
			continue
		}
		succeeded++
		if first == "" {
			first = results[i]
		}
	}
	if succeeded == 0 {
		return Patch{}, &BatchError{NodeID: node.ID, Total: n, Failed: n, Err: errors.Join(joined...)}
	}
	return Patch{Image: String(first)}, nil
}

func (e *Engine) runVideo(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	prompt := effectivePrompt(res, node)
	imgs := res.Images(node.ID)
	if prompt == "" && len(imgs) == 0 {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: prompt or first frame", ErrMissingInput))
	}
	if e.videos == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: video", ErrNoProvider))
	}

	urls, err := e.uploadAll(ctx, node, imgs, "frame")
	if err != nil {
		return Patch{}, runFailure(node, opUpload, err)
	}

	req := provider.VideoRequest{Prompt: prompt, ImageURLs: urls, Params: callParams(node)}
	out, err := e.call(ctx, "video", "generate", func(cctx context.Context) (*provider.Result, error) {
		return e.videos.Generate(cctx, req)
	})
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	if out.VideoURL == "" {
		return Patch{}, runFailure(node, opGenerate, provider.ErrEmptyResult)
	}
	return Patch{Video: String(out.VideoURL)}, nil
}

func (e *Engine) runReferenceVideo(ctx context.Context, res *Resolver, node *Node) (Patch, error) {
	prompt := effectivePrompt(res, node)
	if prompt == "" {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: prompt", ErrMissingInput))
	}
	vids := res.Videos(node.ID)
	if len(vids) == 0 {
		return Patch{}, runFailure(node, opResolve, fmt.Errorf("%w: reference video", ErrMissingInput))
	}
	if e.videos == nil {
		return Patch{}, runFailure(node, opGenerate, fmt.Errorf("%w: video", ErrNoProvider))
	}

	urls, err := e.uploadAll(ctx, node, vids, "reference")
	if err != nil {
		return Patch{}, runFailure(node, opUpload, err)
	}

	req := provider.VideoRequest{Prompt: prompt, VideoURLs: urls, Params: callParams(node)}
	out, err := e.call(ctx, "video", "reference", func(cctx context.Context) (*provider.Result, error) {
		return e.videos.GenerateWithReferences(cctx, req)
	})
	if err != nil {
		return Patch{}, runFailure(node, opGenerate, err)
	}
	if out.VideoURL == "" {
		return Patch{}, runFailure(node, opGenerate, provider.ErrEmptyResult)
	}
	return Patch{Video: String(out.VideoURL)}, nil
}

// generateOne maps the resolved image count to the collaborator
// operation: none generates from text, one edits, several blend.
func (e *Engine) generateOne(ctx context.Context, node *Node, prompt string, imgs []string) (*provider.Result, error) {
	req := provider.ImageRequest{Prompt: prompt, Images: imgs, Params: callParams(node)}
	var (
		out *provider.Result
		err error
	)
	switch {
	case len(imgs) == 0:
		out, err = e.call(ctx, "image", "generate", func(cctx context.Context) (*provider.Result, error) {
			return e.images.Generate(cctx, req)
		})
	case len(imgs) == 1:
		out, err = e.call(ctx, "image", "edit", func(cctx context.Context) (*provider.Result, error) {
			return e.images.Edit(cctx, req)
		})
	default:
		out, err = e.call(ctx, "image", "blend", func(cctx context.Context) (*provider.Result, error) {
			return e.images.Blend(cctx, req)
		})
	}
	if err != nil {
		return nil, err
	}
	if out.ImageData == "" {
		return nil, provider.ErrEmptyResult
	}
	return out, nil
}

// uploadAll runs the storage pre-step: every value is pushed through
// the uploader and replaced by its fetchable URL. The first failure
// aborts; the caller fails the run without a generation call. Without
// an uploader the values pass through unchanged.
func (e *Engine) uploadAll(ctx context.Context, node *Node, values []string, purpose string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if e.uploads == nil {
		return values, nil
	}
	meta := storage.Meta{ProjectID: e.projectID, NodeID: node.ID, Purpose: purpose}
	out := make([]string, 0, len(values))
	for _, v := range values {
		url, err := e.uploads.Upload(ctx, v, meta)
		if err != nil {
			observability.LogUpload(e.logger, node.ID, "", err)
			return nil, err
		}
		observability.LogUpload(e.logger, node.ID, url, nil)
		out = append(out, url)
	}
	return out, nil
}

// call wraps one collaborator invocation with its span, metric, and log
// record.
func (e *Engine) call(ctx context.Context, providerName, op string, fn func(context.Context) (*provider.Result, error)) (*provider.Result, error) {
	cctx, span := e.spans.StartCallSpan(ctx, providerName, op)
	elapsed := observability.TimedOperation()
	out, err := fn(cctx)
	ms := elapsed()
	e.metrics.RecordProviderCall(ctx, providerName, op, time.Duration(ms)*time.Millisecond, err)
	observability.LogProviderCall(e.logger, providerName, op, ms, err)
	e.spans.EndSpanWithError(span, err)
	return out, err
}

// fanOut copies the finished node's image outputs one hop forward into
// pass-through image targets, slot-aware through each edge's source
// handle. The edge set is the one captured at run start; targets
// deleted mid-run are skipped. Fan-out never cascades: a populated
// target does not itself propagate further.
func (e *Engine) fanOut(snap Snapshot, nodeID string) {
	src, err := e.store.Node(nodeID)
	if err != nil {
		return
	}
	for _, edge := range snap.outgoing(nodeID) {
		target, err := e.store.Node(edge.Target)
		if err != nil {
			continue
		}
		if target.Kind != KindImage {
			continue
		}
		img := imageOutput(*src, edge.SourceHandle)
		if img == "" || target.Data.Image == img {
			continue
		}
		if _, err := e.store.UpdateNodePayload(edge.Target, Patch{Image: String(img)}); err != nil {
			continue
		}
		observability.LogFanOut(e.logger, nodeID, edge.Target)
	}
}

// effectivePrompt prefers connected text over the node's own prompt
// fields. Professional kinds derive their local prompt from the
// structured subject, scene, and style fields.
func effectivePrompt(res *Resolver, node *Node) string {
	if in := res.Text(node.ID); in.HasEdge && in.Text != "" {
		return in.Text
	}
	switch node.Kind {
	case KindProGenerate, KindProMultiGenerate:
		return joinPromptFields(node.Data)
	}
	return node.Data.Prompt
}

// callParams copies the node's generation parameters into the
// collaborator request. Professional kinds default to pro quality.
func callParams(node *Node) provider.Params {
	p := provider.Params{
		AspectRatio: node.Data.AspectRatio,
		Duration:    node.Data.Duration,
		Resolution:  node.Data.Resolution,
		Quality:     node.Data.Quality,
		Count:       node.Data.Count,
		Model:       node.Data.Model,
	}
	switch node.Kind {
	case KindProGenerate, KindProMultiGenerate:
		if p.Quality == "" {
			p.Quality = "pro"
		}
	}
	return p
}

// runFailure wraps a run-phase error with its node and phase.
func runFailure(node *Node, op string, err error) error {
	return &RunError{NodeID: node.ID, Kind: node.Kind, Op: op, Err: err}
}
