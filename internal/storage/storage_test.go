package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rustmentor/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProgress_NeuanfangOhneZustand(t *testing.T) {
	store := newTestStorage(t)

	p, err := store.GetProgress()
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentChapterIndex)
	assert.NotNil(t, p.CompletedChapters)
	assert.Empty(t, p.CompletedChapters)
	assert.Equal(t, 0, p.TotalSessions)
}

func TestProgress_RoundTrip(t *testing.T) {
	store := newTestStorage(t)

	require.NoError(t, store.SaveProgress(&models.UserProgress{
		CurrentChapterIndex: 3,
		CompletedChapters:   []int{0, 1, 2},
		TotalSessions:       7,
	}))

	p, err := store.GetProgress()
	require.NoError(t, err)
	assert.Equal(t, 3, p.CurrentChapterIndex)
	assert.Equal(t, []int{0, 1, 2}, p.CompletedChapters)
	assert.Equal(t, 7, p.TotalSessions)
}

func TestProgress_KorrupteListeZaehltAlsLeer(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.db.Exec(`
		INSERT INTO progress (id, current_chapter_index, completed_chapters, total_sessions)
		VALUES (1, 2, 'kein json', 1)
	`)
	require.NoError(t, err)

	p, err := store.GetProgress()
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentChapterIndex)
	assert.Empty(t, p.CompletedChapters)
}

func TestCurriculum(t *testing.T) {
	store := newTestStorage(t)

	// Ohne gespeichertes Curriculum: nil, kein Fehler
	c, err := store.GetCurriculum()
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, store.SaveCurriculum(&models.Curriculum{
		Topics: []string{"A", "B"},
		Custom: true,
	}))

	c, err = store.GetCurriculum()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, []string{"A", "B"}, c.Topics)
	assert.True(t, c.Custom)

	require.NoError(t, store.DeleteCurriculum())
	c, err = store.GetCurriculum()
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestChatHistory_ProModusGetrennt(t *testing.T) {
	store := newTestStorage(t)
	now := time.Now()

	require.NoError(t, store.SaveChatMessage(&models.Message{
		ID: "m1", Mode: models.ModeCoach, Role: models.RoleUser, Text: "coach", Timestamp: now,
	}))
	require.NoError(t, store.SaveChatMessage(&models.Message{
		ID: "m2", Mode: models.ModeFeynman, Role: models.RoleUser, Text: "feynman", Timestamp: now,
	}))

	coach, err := store.GetChatHistory(models.ModeCoach)
	require.NoError(t, err)
	require.Len(t, coach, 1)
	assert.Equal(t, "coach", coach[0].Text)

	require.NoError(t, store.ClearChatHistory(models.ModeCoach))

	coach, err = store.GetChatHistory(models.ModeCoach)
	require.NoError(t, err)
	assert.Empty(t, coach)

	// Der andere Verlauf bleibt unberührt
	feynman, err := store.GetChatHistory(models.ModeFeynman)
	require.NoError(t, err)
	assert.Len(t, feynman, 1)
}

func TestUpdateChatMessageText(t *testing.T) {
	store := newTestStorage(t)

	require.NoError(t, store.SaveChatMessage(&models.Message{
		ID: "m1", Mode: models.ModeCoach, Role: models.RoleModel, Text: "", Timestamp: time.Now(),
	}))
	require.NoError(t, store.UpdateChatMessageText("m1", "fertiger Text"))

	history, err := store.GetChatHistory(models.ModeCoach)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "fertiger Text", history[0].Text)
}

func TestArtifacts(t *testing.T) {
	store := newTestStorage(t)

	older := &models.LearningArtifact{
		ID: "1", Title: "Alt", Date: "2026-08-01",
		Content: "a", Tags: []string{"Rust"},
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &models.LearningArtifact{
		ID: "2", Title: "Neu", Date: "2026-08-29",
		Content: "b", Tags: []string{"Rust", "Session"},
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveArtifact(older))
	require.NoError(t, store.SaveArtifact(newer))

	// Neueste zuerst
	all, err := store.GetAllArtifacts()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Neu", all[0].Title)
	assert.Equal(t, []string{"Rust", "Session"}, all[0].Tags)

	require.NoError(t, store.SetArtifactGistURL("1", "https://gist.github.com/u/x"))
	got, err := store.GetArtifact("1")
	require.NoError(t, err)
	assert.Equal(t, "https://gist.github.com/u/x", got.GistURL)
}

func TestReset(t *testing.T) {
	store := newTestStorage(t)

	require.NoError(t, store.SaveProgress(&models.UserProgress{CurrentChapterIndex: 5, CompletedChapters: []int{0}}))
	require.NoError(t, store.SaveCurriculum(&models.Curriculum{Topics: []string{"A"}, Custom: true}))
	require.NoError(t, store.SaveChatMessage(&models.Message{
		ID: "m1", Mode: models.ModeCoach, Role: models.RoleUser, Text: "x", Timestamp: time.Now(),
	}))
	require.NoError(t, store.SaveArtifact(&models.LearningArtifact{ID: "1", Title: "T", Date: "d", Content: "c", CreatedAt: time.Now()}))

	require.NoError(t, store.Reset())

	p, err := store.GetProgress()
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentChapterIndex)

	c, err := store.GetCurriculum()
	require.NoError(t, err)
	assert.Nil(t, c)

	history, err := store.GetChatHistory(models.ModeCoach)
	require.NoError(t, err)
	assert.Empty(t, history)

	artifacts, err := store.GetAllArtifacts()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}
