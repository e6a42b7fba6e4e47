package omniagent

import (
	"errors"
	"fmt"

	"github.com/fwojciec/omni"
)

var errMissingField = errors.New("missing required field")

// DecodeEnvelope decodes one envelope. It returns a nil event and nil error
// for event types the client does not consume, and an error for envelopes
// that cannot be used.
func DecodeEnvelope(data []byte) (omni.Event, error) {
	var env envelope
	return decodeInto(string(data), &env)
}

func convertEnvelope(env envelope) (omni.Event, error) {
	d := env.Data
	switch env.Type {
	case "token":
		return omni.EventToken{Text: d.Text}, nil
	case "block_start":
		if d.BlockID == "" {
			return nil, fmt.Errorf("omniagent: block_start block_id: %w", errMissingField)
		}
		return omni.EventBlockStart{BlockID: d.BlockID, Title: d.Title, Kind: omni.BlockKind(d.Kind)}, nil
	case "block_token":
		if d.BlockID == "" {
			return nil, fmt.Errorf("omniagent: block_token block_id: %w", errMissingField)
		}
		return omni.EventBlockToken{BlockID: d.BlockID, Text: d.Text}, nil
	case "block_end":
		if d.BlockID == "" {
			return nil, fmt.Errorf("omniagent: block_end block_id: %w", errMissingField)
		}
		return omni.EventBlockEnd{BlockID: d.BlockID, Payload: convertPayload(d.Payload)}, nil
	case "task_result":
		if d.TaskID == "" {
			return nil, fmt.Errorf("omniagent: task_result task_id: %w", errMissingField)
		}
		data := convertData(d.Data)
		if d.URL != "" {
			data.URL = d.URL
		}
		if d.Filename != "" {
			data.Filename = d.Filename
		}
		if d.Mime != "" {
			data.Mime = d.Mime
		}
		return omni.EventTaskResult{
			TaskID: d.TaskID,
			Kind:   omni.BlockKind(d.Kind),
			OK:     d.OK != nil && *d.OK,
			Data:   data,
		}, nil
	case "error":
		msg := d.Error
		if msg == "" {
			msg = d.Message
		}
		if msg == "" {
			msg = "unknown"
		}
		return omni.EventError{Message: msg}, nil
	default:
		return nil, nil
	}
}

func convertPayload(p *payloadDTO) *omni.Payload {
	if p == nil {
		return nil
	}
	out := &omni.Payload{
		TaskID: p.TaskID,
		Kind:   omni.BlockKind(p.Kind),
		OK:     p.OK == nil || *p.OK,
		Error:  p.Error,
		Data:   convertData(p.Data),
	}
	for _, c := range p.Citations {
		out.Citations = append(out.Citations, omni.Citation{Title: c.Title, URL: c.URL, Snippet: c.Snippet})
	}
	return out
}

// convertData lifts the known keys out of a result body and keeps the rest.
func convertData(m map[string]any) omni.PayloadData {
	var d omni.PayloadData
	for k, v := range m {
		s, isString := v.(string)
		switch {
		case k == "url" && isString:
			d.URL = s
		case k == "filename" && isString:
			d.Filename = s
		case k == "mime" && isString:
			d.Mime = s
		case k == "text" && isString:
			d.Text = s
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]any)
			}
			d.Extra[k] = v
		}
	}
	return d
}
