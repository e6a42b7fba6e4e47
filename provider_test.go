package omni_test

import (
	"context"
	"testing"

	"github.com/fwojciec/omni"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierFunc(t *testing.T) {
	t.Parallel()
	var got string
	cl := omni.ClassifierFunc(func(ctx context.Context, text string) (omni.ExpectedMedia, error) {
		got = text
		return omni.ExpectedMedia{}.With(omni.MediaImage), nil
	})

	exp, err := cl.Classify(context.Background(), "draw a cat")
	require.NoError(t, err)
	assert.Equal(t, "draw a cat", got)
	assert.True(t, exp.Has(omni.MediaImage))
	assert.False(t, exp.Has(omni.MediaAudio))
}

func TestNotifierFunc(t *testing.T) {
	t.Parallel()
	var got []omni.Update
	n := omni.NotifierFunc(func(u omni.Update) { got = append(got, u) })

	n.Notify(omni.Update{TurnID: "a1", Kind: omni.UpdateStatus, Status: omni.TurnSettled})
	n.Notify(omni.Update{Kind: omni.UpdateReset})

	assert.Equal(t, []omni.Update{
		{TurnID: "a1", Kind: omni.UpdateStatus, Status: omni.TurnSettled},
		{Kind: omni.UpdateReset},
	}, got)
}

func TestUpdate_ZeroValue(t *testing.T) {
	t.Parallel()
	var u omni.Update
	assert.Empty(t, u.Kind)
	assert.Empty(t, u.Status)
	assert.Empty(t, u.TurnID)
}
