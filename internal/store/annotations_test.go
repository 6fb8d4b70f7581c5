package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := insertWriteup(t, s, &Writeup{Title: "T", Link: "https://x/1"})

	t.Run("strictly alternates", func(t *testing.T) {
		read, err := s.ToggleRead(ctx, "u1", w.ID)
		require.NoError(t, err)
		assert.True(t, read)

		read, err = s.ToggleRead(ctx, "u1", w.ID)
		require.NoError(t, err)
		assert.False(t, read)

		read, err = s.ToggleRead(ctx, "u1", w.ID)
		require.NoError(t, err)
		assert.True(t, read)
	})

	t.Run("scoped per user", func(t *testing.T) {
		read, err := s.ToggleRead(ctx, "u2", w.ID)
		require.NoError(t, err)
		assert.True(t, read)

		reads, _, err := s.UserStats(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, reads)
	})
}

func TestUpsertNote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := insertWriteup(t, s, &Writeup{Title: "T", Link: "https://x/1"})

	require.NoError(t, s.UpsertNote(ctx, "u1", w.ID, "first"))
	require.NoError(t, s.UpsertNote(ctx, "u1", w.ID, "second"))

	// The upsert must replace, never duplicate.
	_, notes, err := s.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, notes)

	got, err := s.notesFor(ctx, "u1", []int64{w.ID})
	require.NoError(t, err)
	assert.Equal(t, "second", got[w.ID])
}

func TestUserStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w1 := insertWriteup(t, s, &Writeup{Title: "A", Link: "https://x/1"})
	w2 := insertWriteup(t, s, &Writeup{Title: "B", Link: "https://x/2"})

	_, err := s.ToggleRead(ctx, "u1", w1.ID)
	require.NoError(t, err)
	_, err = s.ToggleRead(ctx, "u1", w2.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpsertNote(ctx, "u1", w1.ID, "note"))

	reads, notes, err := s.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, reads)
	assert.Equal(t, 1, notes)

	reads, notes, err = s.UserStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, reads)
	assert.Zero(t, notes)
}
