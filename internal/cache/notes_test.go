package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/storage/memory"
)

func addNote(t *testing.T, store *memory.Store, bugID int, text string, when time.Time) *domain.Note {
	t.Helper()
	note := &domain.Note{
		BugID:         bugID,
		ReporterID:    1,
		ViewState:     domain.ViewPublic,
		Text:          text,
		DateSubmitted: when,
		LastModified:  when,
	}
	require.NoError(t, store.SaveNote(note))
	return note
}

func TestNoteCache(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("列表命中后不再打库", func(t *testing.T) {
		store := memory.NewStore()
		cache := NewNoteCache(store)
		n1 := addNote(t, store, 1, "first", base)
		addNote(t, store, 1, "second", base.Add(time.Minute))

		notes, err := cache.ListNotes(1)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		assert.Equal(t, "first", notes[0].Text)

		// 绕过缓存直接改库，命中时应看不到新行
		addNote(t, store, 1, "third", base.Add(2*time.Minute))
		notes, err = cache.ListNotes(1)
		require.NoError(t, err)
		assert.Len(t, notes, 2)

		// 列表命中顺带填充单条缓存
		got, err := cache.GetNote(n1.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Text)
	})

	t.Run("失效后重新读库", func(t *testing.T) {
		store := memory.NewStore()
		cache := NewNoteCache(store)
		addNote(t, store, 2, "only", base)

		_, err := cache.ListNotes(2)
		require.NoError(t, err)

		addNote(t, store, 2, "late", base.Add(time.Minute))
		cache.InvalidateBug(2)

		notes, err := cache.ListNotes(2)
		require.NoError(t, err)
		assert.Len(t, notes, 2)
	})

	t.Run("返回值是副本", func(t *testing.T) {
		store := memory.NewStore()
		cache := NewNoteCache(store)
		addNote(t, store, 3, "original", base)

		notes, err := cache.ListNotes(3)
		require.NoError(t, err)
		notes[0].Text = "mutated"

		again, err := cache.ListNotes(3)
		require.NoError(t, err)
		assert.Equal(t, "original", again[0].Text)
	})
}
