// Package reconcile heals blocks the event stream left pending by
// cross-checking the backend's authoritative artifact state.
package reconcile

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/fwojciec/omni"
)

// Result summarizes one reconciliation pass over a turn's blocks.
type Result struct {
	// Attached lists pending blocks resolved in this pass.
	Attached []string
	// Synthesized lists blocks created in this pass.
	Synthesized []string
	// Pending counts tracked-kind blocks still waiting for a payload.
	Pending int
	// Resolved counts tracked-kind blocks holding a payload.
	Resolved int
}

// Changed reports whether the pass modified the store.
func (r Result) Changed() bool {
	return len(r.Attached) > 0 || len(r.Synthesized) > 0
}

// Settled reports whether every tracked block has resolved and at least one
// did.
func (r Result) Settled() bool {
	return r.Pending == 0 && r.Resolved > 0
}

// Apply runs one reconciliation pass. For every tracked kind whose artifact
// is fresh against the baseline, it resolves the first pending block of the
// matching block kind, or appends a recovered block when the turn has no
// block of that kind at all. An artifact already attached to a block of the
// turn is never attached again, so repeated passes over unchanged state
// leave the store untouched.
func Apply(store *omni.BlockStore, state omni.ArtifactState, baseline omni.Baseline, tracked omni.ExpectedMedia) Result {
	var res Result
	for _, kind := range tracked.Kinds() {
		a, ok := state[kind]
		if !ok || !baseline.Fresh(kind, a) {
			continue
		}
		bk := kind.BlockKind()
		if attachedElsewhere(store, bk, a) {
			continue
		}
		if id, ok := firstPending(store, bk); ok {
			if store.Attach(id, PayloadFor(id, bk, a)) {
				res.Attached = append(res.Attached, id)
			}
			continue
		}
		if store.HasKind(bk) {
			continue
		}
		id := RecoveredID(bk, a)
		blk := omni.Block{ID: id, Kind: bk, Title: bk.Label(), Payload: ptr(PayloadFor(id, bk, a))}
		if store.Synthesize(blk) {
			res.Synthesized = append(res.Synthesized, id)
		}
	}
	for _, b := range store.Blocks() {
		mk, ok := b.Kind.MediaKind()
		if !ok || !tracked.Has(mk) {
			continue
		}
		if b.Pending() {
			res.Pending++
		} else {
			res.Resolved++
		}
	}
	return res
}

// Tracked returns the kinds a poll watches: the expected kinds plus the
// kinds of media blocks pending in store.
func Tracked(store *omni.BlockStore, expected omni.ExpectedMedia) omni.ExpectedMedia {
	for _, b := range store.Pending() {
		if mk, ok := b.Kind.MediaKind(); ok {
			expected = expected.With(mk)
		}
	}
	return expected
}

// NeedsPolling reports whether a turn must wait for reconciliation after a
// pass produced res.
func NeedsPolling(store *omni.BlockStore, expected omni.ExpectedMedia, res Result) bool {
	if len(store.Pending()) > 0 {
		return true
	}
	return expected.Any() && !res.Settled()
}

// RecoveredID returns the deterministic id of a block recovered from a.
// Repeated passes over the same artifact produce the same id.
func RecoveredID(kind omni.BlockKind, a omni.Artifact) string {
	if a.TsMs > 0 {
		return fmt.Sprintf("recovered_%s_%d", kind, a.TsMs)
	}
	return fmt.Sprintf("recovered_%s_%s", kind, a.Identity())
}

// PayloadFor builds the payload attached to block id from a.
func PayloadFor(id string, kind omni.BlockKind, a omni.Artifact) omni.Payload {
	filename := a.Filename
	if filename == "" {
		filename = path.Base(strings.TrimRight(strings.SplitN(a.URL, "?", 2)[0], "/"))
		if filename == "." || filename == "/" {
			filename = ""
		}
	}
	return omni.Payload{
		TaskID: id,
		Kind:   kind,
		OK:     true,
		Data: omni.PayloadData{
			URL:      a.URL,
			Filename: filename,
			Mime:     mimeFor(kind, a.Mime, filename),
			Text:     a.Text,
		},
	}
}

var extMimes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

var kindMimes = map[omni.BlockKind]string{
	omni.BlockImageGen: "image/png",
	omni.BlockTTS:      "audio/mpeg",
	omni.BlockDoc:      omni.MimeMarkdown,
}

func mimeFor(kind omni.BlockKind, known, filename string) string {
	if known != "" {
		return known
	}
	ext := strings.ToLower(path.Ext(filename))
	if m, ok := extMimes[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); ext != "" && m != "" {
		return m
	}
	return kindMimes[kind]
}

func firstPending(store *omni.BlockStore, kind omni.BlockKind) (string, bool) {
	for _, b := range store.Pending() {
		if b.Kind == kind {
			return b.ID, true
		}
	}
	return "", false
}

func attachedElsewhere(store *omni.BlockStore, kind omni.BlockKind, a omni.Artifact) bool {
	for _, b := range store.Blocks() {
		if b.Kind != kind || b.Payload == nil {
			continue
		}
		if a.URL != "" && b.Payload.Data.URL == a.URL {
			return true
		}
		if b.ID == RecoveredID(kind, a) {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }
