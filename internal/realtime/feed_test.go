package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func chapter(id string, order int, title string) models.Chapter {
	return models.Chapter{ID: id, OrderIndex: order, Title: title, Status: models.ChapterPublished}
}

func TestFeedInsertEchoIsDeduplicated(t *testing.T) {
	feed := NewChapterFeed()

	// Optimistic local insert.
	local := chapter("c1", 1, "Intro (local)")
	feed.Apply(ChapterChange{Type: ChangeInsert, New: &local})

	// Server echo of the same row; server copy carries the canonical title.
	server := chapter("c1", 1, "Intro")
	feed.Apply(ChapterChange{Type: ChangeInsert, New: &server})

	snapshot := feed.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Intro", snapshot[0].Title)
}

func TestFeedUpdateUpsertsMissingRow(t *testing.T) {
	feed := NewChapterFeed()
	updated := chapter("c2", 3, "Recursion")
	feed.Apply(ChapterChange{Type: ChangeUpdate, New: &updated})

	require.Equal(t, 1, feed.Len())
	assert.Equal(t, "Recursion", feed.Snapshot()[0].Title)
}

func TestFeedDeleteRemovesRow(t *testing.T) {
	feed := NewChapterFeed()
	feed.Replace([]models.Chapter{chapter("c1", 1, "Intro"), chapter("c2", 2, "Trees")})

	old := chapter("c1", 1, "Intro")
	feed.Apply(ChapterChange{Type: ChangeDelete, Old: &old})

	snapshot := feed.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "c2", snapshot[0].ID)

	// Deleting an already-removed row is a no-op.
	feed.Apply(ChapterChange{Type: ChangeDelete, Old: &old})
	assert.Equal(t, 1, feed.Len())
}

func TestFeedSnapshotOrdering(t *testing.T) {
	feed := NewChapterFeed()
	feed.Replace([]models.Chapter{
		chapter("c3", 7, "Graphs"),
		chapter("c1", 1, "Intro"),
		chapter("c2", 4, "Trees"),
	})

	ids := []string{}
	for _, ch := range feed.Snapshot() {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids)
}

func TestFeedApplyEventDecodesWireForm(t *testing.T) {
	feed := NewChapterFeed()

	inserted := chapter("c1", 1, "Intro")
	feed.ApplyEvent(NewChangeEvent(TableChapters, ChangeInsert, nil, inserted))
	require.Equal(t, 1, feed.Len())

	renamed := chapter("c1", 1, "Introduction")
	feed.ApplyEvent(NewChangeEvent(TableChapters, ChangeUpdate, inserted, renamed))
	assert.Equal(t, "Introduction", feed.Snapshot()[0].Title)

	// Events for other tables never touch the feed.
	feed.ApplyEvent(NewChangeEvent("announcements", ChangeDelete, renamed, nil))
	assert.Equal(t, 1, feed.Len())

	feed.ApplyEvent(NewChangeEvent(TableChapters, ChangeDelete, renamed, nil))
	assert.Equal(t, 0, feed.Len())
}

func TestFeedReplaceClearsPreviousRows(t *testing.T) {
	feed := NewChapterFeed()
	feed.Replace([]models.Chapter{chapter("c1", 1, "Intro")})
	feed.Replace([]models.Chapter{chapter("c9", 1, "Closing")})

	snapshot := feed.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "c9", snapshot[0].ID)
}
