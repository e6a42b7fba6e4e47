package omni

// BlockKind identifies what a block carries. Unknown kinds sent by the
// backend are preserved verbatim.
type BlockKind string

const (
	BlockText           BlockKind = "text"
	BlockImageGen       BlockKind = "image_gen"
	BlockTTS            BlockKind = "tts"
	BlockDoc            BlockKind = "doc"
	BlockRAG            BlockKind = "rag"
	BlockKBRAG          BlockKind = "kb_rag"
	BlockWeb            BlockKind = "web"
	BlockVision         BlockKind = "vision"
	BlockMetaInitial    BlockKind = "meta_initial"
	BlockMetaConclusion BlockKind = "meta_conclusion"
)

// IsMedia reports whether blocks of this kind stay pending until a terminal
// payload is attached.
func (k BlockKind) IsMedia() bool {
	_, ok := k.MediaKind()
	return ok
}

// MediaKind maps a media block kind to the artifact kind the backend stores
// for it.
func (k BlockKind) MediaKind() (MediaKind, bool) {
	switch k {
	case BlockImageGen:
		return MediaImage, true
	case BlockTTS:
		return MediaAudio, true
	case BlockDoc:
		return MediaDoc, true
	default:
		return "", false
	}
}

// Label returns the human-readable name shown for blocks of this kind.
func (k BlockKind) Label() string {
	switch k {
	case BlockImageGen:
		return "Image"
	case BlockTTS:
		return "Audio"
	case BlockDoc:
		return "Document"
	case BlockRAG, BlockKBRAG:
		return "Document Context"
	case BlockWeb:
		return "Web Results"
	case BlockVision:
		return "Vision"
	default:
		return "Result"
	}
}

// Citation is a source reference attached to a payload.
type Citation struct {
	Title   string
	URL     string
	Snippet string
}

// PayloadData is the result body of a task. Keys the client does not model
// are kept in Extra.
type PayloadData struct {
	URL      string
	Filename string
	Mime     string
	Text     string
	Extra    map[string]any
}

// Payload is the terminal result attached to a block.
type Payload struct {
	TaskID    string
	Kind      BlockKind
	OK        bool
	Error     string
	Data      PayloadData
	Citations []Citation
}

// merge fills fields of p that are empty with the values from other.
// Fields already set are never overwritten. Reports whether p changed.
func (p *Payload) merge(other Payload) bool {
	changed := fillString(&p.TaskID, other.TaskID)
	if p.Kind == "" && other.Kind != "" {
		p.Kind = other.Kind
		changed = true
	}
	changed = fillString(&p.Error, other.Error) || changed
	changed = fillString(&p.Data.URL, other.Data.URL) || changed
	changed = fillString(&p.Data.Filename, other.Data.Filename) || changed
	changed = fillString(&p.Data.Mime, other.Data.Mime) || changed
	changed = fillString(&p.Data.Text, other.Data.Text) || changed
	for k, v := range other.Data.Extra {
		if _, ok := p.Data.Extra[k]; ok {
			continue
		}
		if p.Data.Extra == nil {
			p.Data.Extra = make(map[string]any)
		}
		p.Data.Extra[k] = v
		changed = true
	}
	if len(p.Citations) == 0 && len(other.Citations) > 0 {
		p.Citations = append([]Citation(nil), other.Citations...)
		changed = true
	}
	return changed
}

func (p Payload) clone() *Payload {
	if p.Data.Extra != nil {
		extra := make(map[string]any, len(p.Data.Extra))
		for k, v := range p.Data.Extra {
			extra[k] = v
		}
		p.Data.Extra = extra
	}
	if p.Citations != nil {
		p.Citations = append([]Citation(nil), p.Citations...)
	}
	return &p
}

func fillString(dst *string, src string) bool {
	if *dst != "" || src == "" {
		return false
	}
	*dst = src
	return true
}

// Block is a named sub-result of an assistant turn.
type Block struct {
	ID    string
	Kind  BlockKind
	Title string
	// Text and Mime accumulate from streamed block tokens.
	Text string
	Mime string
	// Payload is the terminal result; nil until the block resolves.
	Payload *Payload
}

// Pending reports whether the block is a media block still waiting for its
// terminal payload. Non-media blocks are never pending.
func (b Block) Pending() bool {
	return b.Kind.IsMedia() && b.Payload == nil
}

func (b Block) clone() Block {
	if b.Payload != nil {
		b.Payload = b.Payload.clone()
	}
	return b
}
