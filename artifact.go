package omni

import (
	"net/url"
	"path"
	"strings"
)

// MediaKind is a kind of artifact the backend stores per session.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaDoc   MediaKind = "doc"
)

// MediaKinds lists every media kind in a stable order.
var MediaKinds = []MediaKind{MediaImage, MediaAudio, MediaDoc}

// BlockKind returns the block kind that produces artifacts of this kind.
func (m MediaKind) BlockKind() BlockKind {
	switch m {
	case MediaImage:
		return BlockImageGen
	case MediaAudio:
		return BlockTTS
	case MediaDoc:
		return BlockDoc
	default:
		return ""
	}
}

// Artifact is the most recent server-stored result of one media kind.
type Artifact struct {
	ID       string
	URL      string
	Text     string
	Filename string
	Mime     string
	TsMs     int64
}

// Identity returns the artifact's stable id, falling back to the last path
// segment of its URL. Empty when neither is known.
func (a Artifact) Identity() string {
	if a.ID != "" {
		return a.ID
	}
	return lastSegment(a.URL)
}

func lastSegment(raw string) string {
	if raw == "" {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// ArtifactState is the authoritative artifact per media kind for a session.
// Kinds with no artifact are absent.
type ArtifactState map[MediaKind]Artifact

// Baseline is the identity per media kind captured before a turn starts. A
// nil Baseline means the state before the turn is unknown.
type Baseline map[MediaKind]string

// Baseline captures the identities of the state's artifacts.
func (s ArtifactState) Baseline() Baseline {
	b := make(Baseline, len(s))
	for kind, a := range s {
		if id := a.Identity(); id != "" {
			b[kind] = id
		}
	}
	return b
}

// Known reports whether the baseline was captured.
func (b Baseline) Known() bool {
	return b != nil
}

// Fresh reports whether a differs from the artifact known before the turn.
// Nothing is fresh against an unknown baseline.
func (b Baseline) Fresh(kind MediaKind, a Artifact) bool {
	if b == nil {
		return false
	}
	id := a.Identity()
	return id != "" && id != b[kind]
}

// ExpectedMedia states which artifact kinds a turn is expected to produce.
type ExpectedMedia struct {
	Image bool
	Audio bool
	Doc   bool
}

// Has reports whether kind is expected.
func (e ExpectedMedia) Has(kind MediaKind) bool {
	switch kind {
	case MediaImage:
		return e.Image
	case MediaAudio:
		return e.Audio
	case MediaDoc:
		return e.Doc
	default:
		return false
	}
}

// Any reports whether any kind is expected.
func (e ExpectedMedia) Any() bool {
	return e.Image || e.Audio || e.Doc
}

// With returns a copy with kind marked as expected.
func (e ExpectedMedia) With(kind MediaKind) ExpectedMedia {
	switch kind {
	case MediaImage:
		e.Image = true
	case MediaAudio:
		e.Audio = true
	case MediaDoc:
		e.Doc = true
	}
	return e
}

// Kinds returns the expected kinds in stable order.
func (e ExpectedMedia) Kinds() []MediaKind {
	var out []MediaKind
	for _, k := range MediaKinds {
		if e.Has(k) {
			out = append(out, k)
		}
	}
	return out
}
