package flow

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atelierhq/easelflow/pkg/flow/provider"
	"github.com/atelierhq/easelflow/pkg/flow/storage"
)

// addNode inserts a node and fails the test on error.
func addNode(t *testing.T, s *Store, kind NodeKind, data Payload) *Node {
	t.Helper()
	n, err := s.AddNode(Node{Kind: kind, Data: data})
	require.NoError(t, err)
	return n
}

// connect adds an edge targeting the given handle and fails on error.
func connect(t *testing.T, s *Store, source, target, targetHandle string) *Edge {
	t.Helper()
	e, _, err := s.AddEdge(Edge{Source: source, Target: target, TargetHandle: targetHandle})
	require.NoError(t, err)
	return e
}

// connectFrom adds an edge with an explicit source handle.
func connectFrom(t *testing.T, s *Store, source, sourceHandle, target, targetHandle string) *Edge {
	t.Helper()
	e, _, err := s.AddEdge(Edge{
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	})
	require.NoError(t, err)
	return e
}

// stubImages is a counting ImageGenerator. Results come from the fn
// hook when set, otherwise a fixed image value.
type stubImages struct {
	mu        sync.Mutex
	generates int
	edits     int
	blends    int

	result string
	err    error
	fn     func(op string, req provider.ImageRequest) (*provider.Result, error)

	lastReq provider.ImageRequest
}

func newStubImages(result string) *stubImages {
	return &stubImages{result: result}
}

func (s *stubImages) record(op string, req provider.ImageRequest) (*provider.Result, error) {
	s.mu.Lock()
	switch op {
	case "generate":
		s.generates++
	case "edit":
		s.edits++
	case "blend":
		s.blends++
	}
	s.lastReq = req
	fn, err, result := s.fn, s.err, s.result
	s.mu.Unlock()

	if fn != nil {
		return fn(op, req)
	}
	if err != nil {
		return nil, err
	}
	return &provider.Result{ImageData: result}, nil
}

func (s *stubImages) Generate(_ context.Context, req provider.ImageRequest) (*provider.Result, error) {
	return s.record("generate", req)
}

func (s *stubImages) Edit(_ context.Context, req provider.ImageRequest) (*provider.Result, error) {
	return s.record("edit", req)
}

func (s *stubImages) Blend(_ context.Context, req provider.ImageRequest) (*provider.Result, error) {
	return s.record("blend", req)
}

func (s *stubImages) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generates + s.edits + s.blends
}

func (s *stubImages) last() provider.ImageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

// stubTexts is a counting TextGenerator.
type stubTexts struct {
	mu    sync.Mutex
	calls int

	result string
	err    error

	lastReq provider.TextRequest
}

func newStubTexts(result string) *stubTexts {
	return &stubTexts{result: result}
}

func (s *stubTexts) Complete(_ context.Context, req provider.TextRequest) (*provider.Result, error) {
	s.mu.Lock()
	s.calls++
	s.lastReq = req
	err, result := s.err, s.result
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &provider.Result{Text: result}, nil
}

func (s *stubTexts) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubTexts) last() provider.TextRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

// stubVideos is a counting VideoGenerator.
type stubVideos struct {
	mu         sync.Mutex
	generates  int
	references int

	result string
	err    error

	lastReq provider.VideoRequest
}

func newStubVideos(result string) *stubVideos {
	return &stubVideos{result: result}
}

func (s *stubVideos) Generate(_ context.Context, req provider.VideoRequest) (*provider.Result, error) {
	s.mu.Lock()
	s.generates++
	s.lastReq = req
	err, result := s.err, s.result
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &provider.Result{VideoURL: result}, nil
}

func (s *stubVideos) GenerateWithReferences(_ context.Context, req provider.VideoRequest) (*provider.Result, error) {
	s.mu.Lock()
	s.references++
	s.lastReq = req
	err, result := s.err, s.result
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &provider.Result{VideoURL: result}, nil
}

func (s *stubVideos) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generates + s.references
}

func (s *stubVideos) last() provider.VideoRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

// stubUploader returns deterministic URLs, or fails every call.
type stubUploader struct {
	mu    sync.Mutex
	calls int
	err   error
	metas []storage.Meta
}

func (s *stubUploader) Upload(_ context.Context, data string, meta storage.Meta) (string, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.metas = append(s.metas, meta)
	err := s.err
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://cdn.test/%s-%d", meta.Purpose, n), nil
}

func (s *stubUploader) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
