package omni_test

import (
	"testing"

	"github.com/fwojciec/omni"
	"github.com/stretchr/testify/assert"
)

func TestEvents_ImplementEvent(t *testing.T) {
	t.Parallel()

	events := []omni.Event{
		omni.EventToken{Text: "hi"},
		omni.EventBlockStart{BlockID: "b1", Kind: omni.BlockImageGen},
		omni.EventBlockToken{BlockID: "m1", Text: "# x"},
		omni.EventBlockEnd{BlockID: "b1"},
		omni.EventTaskResult{TaskID: "t1", Kind: omni.BlockTTS, OK: true},
		omni.EventError{Message: "boom"},
	}
	for _, e := range events {
		assert.NotNil(t, e)
	}
}

func TestStreamState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "new", omni.StreamStateNew.String())
	assert.Equal(t, "streaming", omni.StreamStateStreaming.String())
	assert.Equal(t, "complete", omni.StreamStateComplete.String())
	assert.Equal(t, "error", omni.StreamStateError.String())
	assert.Equal(t, "closed", omni.StreamStateClosed.String())
	assert.Equal(t, "unknown", omni.StreamState(42).String())
}
