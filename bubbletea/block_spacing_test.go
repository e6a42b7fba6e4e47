package bubbletea_test

import (
	"testing"

	"github.com/fwojciec/omni"
	bt "github.com/fwojciec/omni/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestBlockSeparator(t *testing.T) {
	t.Parallel()

	styles := bt.NewStyles(omni.DefaultTheme())
	md := renderer()

	user := bt.NewUserMessageBlock("hi", styles)
	text := bt.NewAssistantTextBlock(md)
	imageA := bt.NewResultBlock("a1", omni.Block{ID: "img", Kind: omni.BlockImageGen}, md, nil, styles)
	audioA := bt.NewResultBlock("a1", omni.Block{ID: "tts", Kind: omni.BlockTTS}, md, nil, styles)
	imageB := bt.NewResultBlock("a2", omni.Block{ID: "img", Kind: omni.BlockImageGen}, md, nil, styles)

	tests := []struct {
		name       string
		prev, curr bt.MessageBlock
		want       string
	}{
		{"results of one turn", imageA, audioA, "\n"},
		{"results of different turns", audioA, imageB, "\n\n"},
		{"text then result", text, imageA, "\n\n"},
		{"result then user", imageA, user, "\n\n"},
		{"user then text", user, text, "\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, bt.BlockSeparator(tt.prev, tt.curr))
		})
	}
}
