package omni

// MimeMarkdown is the mime recorded for blocks built from streamed tokens.
const MimeMarkdown = "text/markdown"

// BlockStore is the ordered set of blocks of one assistant turn.
//
// Every operation is idempotent and keyed by block id. An id enters the
// order at its first mention, by whichever operation mentions it first, and
// keeps that position. Blocks are never removed. A payload, once attached,
// is never replaced.
//
// BlockStore is not safe for concurrent use; the owning controller
// serializes access.
type BlockStore struct {
	order  []string
	blocks map[string]*Block
}

// NewBlockStore returns a store holding blocks in the given order.
// Duplicate ids keep their first occurrence.
func NewBlockStore(blocks ...Block) *BlockStore {
	s := &BlockStore{blocks: make(map[string]*Block, len(blocks))}
	for _, b := range blocks {
		if b.ID == "" {
			continue
		}
		if _, ok := s.blocks[b.ID]; ok {
			continue
		}
		cp := b.clone()
		s.order = append(s.order, b.ID)
		s.blocks[b.ID] = &cp
	}
	return s
}

// lookup returns the block for id, inserting an empty one at the end of the
// order when the id is new.
func (s *BlockStore) lookup(id string) *Block {
	if s.blocks == nil {
		s.blocks = make(map[string]*Block)
	}
	if b, ok := s.blocks[id]; ok {
		return b
	}
	b := &Block{ID: id}
	s.blocks[id] = b
	s.order = append(s.order, id)
	return b
}

// Start records a block announcement. Title and kind fill in only what is
// still unknown; text and payload gathered earlier are kept.
func (s *BlockStore) Start(id, title string, kind BlockKind) {
	if id == "" {
		return
	}
	b := s.lookup(id)
	fillString(&b.Title, title)
	if b.Kind == "" {
		b.Kind = kind
	}
}

// AppendToken appends streamed markdown to the block. It never resolves a
// media block.
func (s *BlockStore) AppendToken(id, text string) {
	if id == "" {
		return
	}
	b := s.lookup(id)
	b.Text += text
	if b.Mime == "" {
		b.Mime = MimeMarkdown
	}
}

// End attaches a terminal payload. The first payload resolves the block; a
// later one only fills fields the first left empty, so replaying the same
// end event is a no-op. A nil payload still registers the id. Reports
// whether the block changed.
func (s *BlockStore) End(id string, p *Payload) bool {
	if id == "" {
		return false
	}
	_, existed := s.blocks[id]
	b := s.lookup(id)
	if p == nil {
		return !existed
	}
	changed := !existed
	if b.Kind == "" && p.Kind != "" {
		b.Kind = p.Kind
		changed = true
	}
	if b.Payload == nil {
		b.Payload = p.clone()
		return true
	}
	return b.Payload.merge(*p) || changed
}

// TaskResult applies an out-of-band completion. An unseen id is registered
// either way. The payload is set only when the task succeeded, carries a
// media kind and a URL, agrees with the block's kind, and the block has no
// payload yet. Reports whether the block changed.
func (s *BlockStore) TaskResult(id string, kind BlockKind, ok bool, data PayloadData) bool {
	if id == "" {
		return false
	}
	_, existed := s.blocks[id]
	b := s.lookup(id)
	changed := !existed
	if b.Kind == "" && kind != "" {
		b.Kind = kind
		changed = true
	}
	if !ok || !kind.IsMedia() || data.URL == "" || b.Kind != kind || b.Payload != nil {
		return changed
	}
	b.Payload = Payload{TaskID: id, Kind: kind, OK: true, Data: data}.clone()
	return true
}

// Attach resolves an existing pending block with a payload recovered from
// authoritative state. Reports whether the block was resolved.
func (s *BlockStore) Attach(id string, p Payload) bool {
	b, ok := s.blocks[id]
	if !ok || !b.Pending() {
		return false
	}
	b.Payload = p.clone()
	return true
}

// Synthesize appends a block recovered from authoritative state. It is a
// no-op when the id already exists. Reports whether the block was added.
func (s *BlockStore) Synthesize(b Block) bool {
	if b.ID == "" {
		return false
	}
	if _, ok := s.blocks[b.ID]; ok {
		return false
	}
	cp := b.clone()
	s.lookup(b.ID)
	s.blocks[b.ID] = &cp
	return true
}

// Get returns a copy of the block with the given id.
func (s *BlockStore) Get(id string) (Block, bool) {
	b, ok := s.blocks[id]
	if !ok {
		return Block{}, false
	}
	return b.clone(), true
}

// Len returns the number of blocks.
func (s *BlockStore) Len() int {
	return len(s.order)
}

// Order returns block ids in order of first mention.
func (s *BlockStore) Order() []string {
	return append([]string(nil), s.order...)
}

// Blocks returns copies of all blocks in order of first mention.
func (s *BlockStore) Blocks() []Block {
	out := make([]Block, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.blocks[id].clone())
	}
	return out
}

// Pending returns the pending media blocks in order.
func (s *BlockStore) Pending() []Block {
	var out []Block
	for _, id := range s.order {
		if b := s.blocks[id]; b.Pending() {
			out = append(out, b.clone())
		}
	}
	return out
}

// HasKind reports whether any block of the given kind exists.
func (s *BlockStore) HasKind(kind BlockKind) bool {
	for _, id := range s.order {
		if s.blocks[id].Kind == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the store.
func (s *BlockStore) Clone() *BlockStore {
	if s == nil {
		return NewBlockStore()
	}
	return NewBlockStore(s.Blocks()...)
}
