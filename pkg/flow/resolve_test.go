package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolver_Text_PerKind verifies the per-source-kind text
// extraction through a real connection.
func TestResolver_Text_PerKind(t *testing.T) {
	tests := []struct {
		name string
		kind NodeKind
		data Payload
		want string
	}{
		{"prompt source", KindPromptSource, Payload{Prompt: "a red fox"}, "a red fox"},
		{"text note", KindTextNote, Payload{Text: "remember the fog"}, "remember the fog"},
		{"chat prefers response", KindTextChat, Payload{Message: "q", Response: "the answer"}, "the answer"},
		{"chat falls back to message", KindTextChat, Payload{Message: "just asked"}, "just asked"},
		{"optimizer prefers optimized", KindOptimizer, Payload{Prompt: "raw", Optimized: "polished"}, "polished"},
		{"optimizer falls back to prompt", KindOptimizer, Payload{Prompt: "raw"}, "raw"},
		{"analyzer", KindAnalyzer, Payload{Analysis: "two boats at dusk"}, "two boats at dusk"},
		{"storyboard joins scenes", KindStoryboard, Payload{Scenes: []string{"open", "", "  ", "close"}}, "open\nclose"},
		{"pro joins structured fields", KindProGenerate, Payload{Subject: "fox", Scene: "meadow", Style: "ink"}, "fox, meadow, ink"},
		{"pro partial fields", KindProMultiGenerate, Payload{Subject: "fox", Style: "ink"}, "fox, ink"},
		{"pro falls back to prompt", KindProGenerate, Payload{Prompt: "plain"}, "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			src := addNode(t, s, tt.kind, tt.data)
			dst := addNode(t, s, KindTextChat, Payload{})
			connect(t, s, src.ID, dst.ID, HandleText)

			got, err := s.ResolveText(dst.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
			assert.True(t, got.HasEdge)
		})
	}
}

// TestResolver_Text_EdgePresence verifies HasEdge distinguishes "no
// wire" from "wired to an empty source".
func TestResolver_Text_EdgePresence(t *testing.T) {
	s := NewStore()
	empty := addNode(t, s, KindPromptSource, Payload{})
	gen := addNode(t, s, KindGenerate, Payload{})

	got, err := s.ResolveText(gen.ID)
	require.NoError(t, err)
	assert.Equal(t, TextInput{}, got, "unwired node resolves to zero value")

	connect(t, s, empty.ID, gen.ID, HandleText)
	got, err = s.ResolveText(gen.ID)
	require.NoError(t, err)
	assert.Equal(t, TextInput{Text: "", HasEdge: true}, got)
}

// TestResolver_Text_DanglingSource verifies a snapshot edge whose
// source no longer exists resolves quietly instead of erroring.
func TestResolver_Text_DanglingSource(t *testing.T) {
	snap := Snapshot{
		Nodes: []Node{{ID: "gen", Kind: KindGenerate}},
		Edges: []Edge{{ID: "e1", Source: "ghost", Target: "gen", TargetHandle: HandleText}},
	}
	r := NewResolver(snap, nil)
	assert.Equal(t, TextInput{HasEdge: true}, r.Text("gen"))
}

// TestResolver_Images verifies ordering, empty filtering, and slot
// selection.
func TestResolver_Images(t *testing.T) {
	t.Run("insertion order with empties dropped", func(t *testing.T) {
		s := NewStore()
		gen := addNode(t, s, KindGenerate, Payload{})
		a := addNode(t, s, KindImage, Payload{Image: "data:a"})
		hollow := addNode(t, s, KindImage, Payload{})
		b := addNode(t, s, KindCameraCapture, Payload{Image: "data:b"})
		connect(t, s, a.ID, gen.ID, HandleImage)
		connect(t, s, hollow.ID, gen.ID, HandleImage)
		connect(t, s, b.ID, gen.ID, HandleImage)

		got, err := s.ResolveImages(gen.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"data:a", "data:b"}, got)
	})

	t.Run("slot handle selects batch output", func(t *testing.T) {
		s := NewStore()
		multi := addNode(t, s, KindMultiGenerate, Payload{
			Image:  "data:primary",
			Images: []string{"data:s1", "", "data:s3", ""},
		})
		gen := addNode(t, s, KindGenerate, Payload{})
		connectFrom(t, s, multi.ID, "img3", gen.ID, HandleImage)

		got, err := s.ResolveImages(gen.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"data:s3"}, got)
	})

	t.Run("empty slot falls back to primary", func(t *testing.T) {
		s := NewStore()
		multi := addNode(t, s, KindMultiGenerate, Payload{
			Image:  "data:primary",
			Images: []string{"data:s1", "", "data:s3", ""},
		})
		gen := addNode(t, s, KindGenerate, Payload{})
		connectFrom(t, s, multi.ID, "img2", gen.ID, HandleImage)

		got, err := s.ResolveImages(gen.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"data:primary"}, got)
	})

	t.Run("handle filter scopes the walk", func(t *testing.T) {
		s := NewStore()
		ref := addNode(t, s, KindReferenceGenerate, Payload{})
		one := addNode(t, s, KindImage, Payload{Image: "data:one"})
		two := addNode(t, s, KindImage, Payload{Image: "data:two"})
		connect(t, s, one.ID, ref.ID, "img1")
		connect(t, s, two.ID, ref.ID, "img2")

		got, err := s.ResolveImages(ref.ID, "img2")
		require.NoError(t, err)
		assert.Equal(t, []string{"data:two"}, got)

		all, err := s.ResolveImages(ref.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"data:one", "data:two"}, all, "no filter walks every declared image handle")
	})

	t.Run("dangling source skipped", func(t *testing.T) {
		snap := Snapshot{
			Nodes: []Node{{ID: "gen", Kind: KindGenerate}},
			Edges: []Edge{{ID: "e1", Source: "ghost", Target: "gen", TargetHandle: HandleImage}},
		}
		r := NewResolver(snap, nil)
		assert.Empty(t, r.Images("gen"))
	})
}

// TestResolver_Videos verifies video input resolution.
func TestResolver_Videos(t *testing.T) {
	s := NewStore()
	vid := addNode(t, s, KindVideoGenerate, Payload{Video: "https://cdn/clip.mp4"})
	hollow := addNode(t, s, KindVideoGenerate, Payload{})
	ref := addNode(t, s, KindReferenceVideo, Payload{})
	connectFrom(t, s, vid.ID, HandleVideo, ref.ID, HandleVideo)
	connectFrom(t, s, hollow.ID, HandleVideo, ref.ID, HandleVideo)

	r := NewResolver(s.Export(), s.Rules())
	assert.Equal(t, []string{"https://cdn/clip.mp4"}, r.Videos(ref.ID))
	assert.Empty(t, r.Videos("missing"))
}

// TestStore_Resolve_MissingNode verifies the store-level conveniences
// report a missing node instead of resolving silently.
func TestStore_Resolve_MissingNode(t *testing.T) {
	s := NewStore()

	_, err := s.ResolveText("ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = s.ResolveImages("ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
