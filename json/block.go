package json

import "github.com/fwojciec/omni"

type blockDTO struct {
	ID      string      `json:"id"`
	Kind    string      `json:"kind,omitempty"`
	Title   string      `json:"title,omitempty"`
	Text    string      `json:"text,omitempty"`
	Mime    string      `json:"mime,omitempty"`
	Payload *payloadDTO `json:"payload,omitempty"`
}

type payloadDTO struct {
	TaskID    string        `json:"task_id,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	Data      dataDTO       `json:"data"`
	Citations []citationDTO `json:"citations,omitempty"`
}

type dataDTO struct {
	URL      string         `json:"url,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Mime     string         `json:"mime,omitempty"`
	Text     string         `json:"text,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type citationDTO struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func marshalBlock(b omni.Block) blockDTO {
	dto := blockDTO{
		ID:    b.ID,
		Kind:  string(b.Kind),
		Title: b.Title,
		Text:  b.Text,
		Mime:  b.Mime,
	}
	if p := b.Payload; p != nil {
		dto.Payload = &payloadDTO{
			TaskID: p.TaskID,
			Kind:   string(p.Kind),
			OK:     p.OK,
			Error:  p.Error,
			Data: dataDTO{
				URL:      p.Data.URL,
				Filename: p.Data.Filename,
				Mime:     p.Data.Mime,
				Text:     p.Data.Text,
				Extra:    p.Data.Extra,
			},
		}
		for _, c := range p.Citations {
			dto.Payload.Citations = append(dto.Payload.Citations, citationDTO(c))
		}
	}
	return dto
}

func unmarshalBlock(dto blockDTO) omni.Block {
	b := omni.Block{
		ID:    dto.ID,
		Kind:  omni.BlockKind(dto.Kind),
		Title: dto.Title,
		Text:  dto.Text,
		Mime:  dto.Mime,
	}
	if p := dto.Payload; p != nil {
		b.Payload = &omni.Payload{
			TaskID: p.TaskID,
			Kind:   omni.BlockKind(p.Kind),
			OK:     p.OK,
			Error:  p.Error,
			Data: omni.PayloadData{
				URL:      p.Data.URL,
				Filename: p.Data.Filename,
				Mime:     p.Data.Mime,
				Text:     p.Data.Text,
				Extra:    p.Data.Extra,
			},
		}
		for _, c := range p.Citations {
			b.Payload.Citations = append(b.Payload.Citations, omni.Citation(c))
		}
	}
	return b
}
