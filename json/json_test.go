package json_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/omni"
	omnijson "github.com/fwojciec/omni/json"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	t1 = t0.Add(time.Second)
	t2 = t0.Add(55 * time.Second)
)

func fixtureSession() omni.Session {
	blocks := omni.NewBlockStore(
		omni.Block{ID: "b1", Kind: omni.BlockImageGen, Title: "Image", Payload: &omni.Payload{
			TaskID: "b1",
			Kind:   omni.BlockImageGen,
			OK:     true,
			Data:   omni.PayloadData{URL: "/api/assets/s1/cat.png", Filename: "cat.png", Mime: "image/png"},
		}},
		omni.Block{ID: "r1", Kind: omni.BlockRAG, Title: "Document Context", Text: "- notes.md", Mime: omni.MimeMarkdown, Payload: &omni.Payload{
			TaskID:    "r1",
			Kind:      omni.BlockRAG,
			OK:        true,
			Citations: []omni.Citation{{Title: "notes.md", URL: "/api/assets/s1/notes.md", Snippet: "goroutines"}},
		}},
		omni.Block{ID: "t1", Kind: omni.BlockTTS, Title: "Audio"},
	)
	return omni.Session{
		ID:        "s1",
		BootID:    "boot-1",
		CreatedAt: t0,
		UpdatedAt: t2,
		Turns: []*omni.Turn{
			{ID: "u1", Role: omni.RoleUser, Text: "generate an image of a cat", Status: omni.TurnSettled, CreatedAt: t0, Blocks: omni.NewBlockStore()},
			{ID: "a1", Role: omni.RoleAssistant, Text: "Here it is.", Status: omni.TurnSettled, CreatedAt: t1, Blocks: blocks},
		},
	}
}

// blocksOf flattens a turn's store for comparison.
func blocksOf(t *omni.Turn) []omni.Block {
	if t.Blocks == nil {
		return nil
	}
	return t.Blocks.Blocks()
}

func TestMarshalSession_Golden(t *testing.T) {
	t.Parallel()
	data, err := omnijson.MarshalSession(fixtureSession())
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden.json"))
	g.Assert(t, "session", data)
}

func TestUnmarshalSession_RoundTrip(t *testing.T) {
	t.Parallel()
	want := fixtureSession()
	data, err := omnijson.MarshalSession(want)
	require.NoError(t, err)

	got, err := omnijson.UnmarshalSession(data)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.BootID, got.BootID)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Turns, 2)
	for i := range want.Turns {
		assert.Equal(t, want.Turns[i].ID, got.Turns[i].ID)
		assert.Equal(t, want.Turns[i].Role, got.Turns[i].Role)
		assert.Equal(t, want.Turns[i].Text, got.Turns[i].Text)
		assert.Equal(t, want.Turns[i].Status, got.Turns[i].Status)
		if diff := cmp.Diff(blocksOf(want.Turns[i]), blocksOf(got.Turns[i])); diff != "" {
			t.Errorf("turn %d blocks mismatch (-want +got):\n%s", i, diff)
		}
	}

	b, ok := got.Turns[1].Blocks.Get("t1")
	require.True(t, ok)
	assert.True(t, b.Pending(), "pending blocks stay pending across a save")
	assert.Equal(t, []string{"b1", "r1", "t1"}, got.Turns[1].Blocks.Order())
}

func TestUnmarshalSession_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"unsupported version", `{"version":2,"id":"s1","turns":[]}`},
		{"unknown role", `{"version":1,"id":"s1","turns":[{"id":"x","role":"system"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := omnijson.UnmarshalSession([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "s1.json")

	require.NoError(t, omnijson.Save(path, fixtureSession()))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	got, err := omnijson.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Len(t, got.Turns, 2)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()
	_, err := omnijson.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, omni.ErrSessionNotFound)
}

func TestStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := omnijson.NewStore(t.TempDir())

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, omni.ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, fixtureSession()))
	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Turns, 2)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, omni.ErrSessionNotFound)
	assert.NoError(t, store.Delete(ctx, "s1"))
}

func TestStore_RejectsPathLikeIDs(t *testing.T) {
	t.Parallel()
	store := omnijson.NewStore(t.TempDir())

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := store.Load(context.Background(), id)
		assert.ErrorIs(t, err, omni.ErrValidation, id)
	}
}

func TestStore_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := omnijson.NewStore(dir)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	older := fixtureSession()
	older.ID = "old"
	older.UpdatedAt = t0
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, fixtureSession()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []omni.SessionSummary{
		{ID: "s1", Turns: 2, UpdatedAt: t2},
		{ID: "old", Turns: 2, UpdatedAt: t0},
	}, list)
}

func TestStore_ListMissingDir(t *testing.T) {
	t.Parallel()
	list, err := omnijson.NewStore(filepath.Join(t.TempDir(), "nope")).List(context.Background())
	require.NoError(t, err)
	assert.Nil(t, list)
}
