package omni_test

import (
	"testing"

	"github.com/fwojciec/omni"
	"github.com/stretchr/testify/assert"
)

func TestArtifact_Identity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		artifact omni.Artifact
		want     string
	}{
		{"id wins", omni.Artifact{ID: "img-1", URL: "/api/assets/s/cat.png"}, "img-1"},
		{"relative url", omni.Artifact{URL: "/api/assets/s/cat.png"}, "cat.png"},
		{"absolute url with query", omni.Artifact{URL: "http://h:8000/api/assets/s/cat.png?v=2"}, "cat.png"},
		{"trailing slash", omni.Artifact{URL: "/api/assets/s/dir/"}, "dir"},
		{"empty", omni.Artifact{}, ""},
		{"root only", omni.Artifact{URL: "/"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.artifact.Identity())
		})
	}
}

func TestBaseline_Fresh(t *testing.T) {
	t.Parallel()

	state := omni.ArtifactState{
		omni.MediaImage: {URL: "/api/assets/s/old.png"},
		omni.MediaAudio: {},
	}
	baseline := state.Baseline()

	assert.Equal(t, omni.Baseline{omni.MediaImage: "old.png"}, baseline)
	assert.False(t, baseline.Fresh(omni.MediaImage, omni.Artifact{URL: "/x/old.png"}))
	assert.True(t, baseline.Fresh(omni.MediaImage, omni.Artifact{URL: "/x/new.png"}))
	assert.False(t, baseline.Fresh(omni.MediaAudio, omni.Artifact{}))
	assert.True(t, baseline.Fresh(omni.MediaDoc, omni.Artifact{ID: "doc-1"}))
	assert.True(t, baseline.Known())
}

func TestBaseline_Unknown(t *testing.T) {
	t.Parallel()

	var unknown omni.Baseline
	assert.False(t, unknown.Known())
	assert.False(t, unknown.Fresh(omni.MediaImage, omni.Artifact{URL: "/x/new.png"}))

	empty := omni.ArtifactState{}.Baseline()
	assert.True(t, empty.Known())
	assert.True(t, empty.Fresh(omni.MediaImage, omni.Artifact{URL: "/x/new.png"}))
}

func TestExpectedMedia(t *testing.T) {
	t.Parallel()

	var e omni.ExpectedMedia
	assert.False(t, e.Any())
	assert.Empty(t, e.Kinds())

	e = e.With(omni.MediaDoc).With(omni.MediaImage)
	assert.True(t, e.Any())
	assert.True(t, e.Has(omni.MediaImage))
	assert.False(t, e.Has(omni.MediaAudio))
	assert.Equal(t, []omni.MediaKind{omni.MediaImage, omni.MediaDoc}, e.Kinds())
}

func TestBlockKind_MediaMapping(t *testing.T) {
	t.Parallel()

	for _, m := range omni.MediaKinds {
		k := m.BlockKind()
		assert.True(t, k.IsMedia())
		got, ok := k.MediaKind()
		assert.True(t, ok)
		assert.Equal(t, m, got)
	}
	assert.False(t, omni.BlockText.IsMedia())
	assert.False(t, omni.BlockKind("custom").IsMedia())
	assert.Equal(t, "Document Context", omni.BlockKBRAG.Label())
	assert.Equal(t, "Result", omni.BlockKind("custom").Label())
}
