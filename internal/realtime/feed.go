package realtime

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/coursehub/coursehub-api/internal/models"
)

// TableChapters is the change-feed table name for course chapters.
const TableChapters = "chapters"

// ChapterChange is a typed chapter row change applied to a feed.
type ChapterChange struct {
	Type ChangeType
	Old  *models.Chapter
	New  *models.Chapter
}

// ChapterFeed keeps an ordered in-memory copy of the chapters table, merged
// from change events. Merging is strictly keyed by primary id: an insert for
// an id already present (an echo of a local optimistic write) replaces the
// row with the server copy instead of duplicating it.
type ChapterFeed struct {
	mu   sync.RWMutex
	rows map[string]models.Chapter
}

// NewChapterFeed constructs an empty feed.
func NewChapterFeed() *ChapterFeed {
	return &ChapterFeed{rows: make(map[string]models.Chapter)}
}

// Replace seeds the feed from an authoritative listing.
func (f *ChapterFeed) Replace(chapters []models.Chapter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[string]models.Chapter, len(chapters))
	for _, ch := range chapters {
		f.rows[ch.ID] = ch
	}
}

// Apply merges one change event into the feed.
func (f *ChapterFeed) Apply(change ChapterChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch change.Type {
	case ChangeInsert, ChangeUpdate:
		if change.New != nil {
			f.rows[change.New.ID] = *change.New
		}
	case ChangeDelete:
		if change.Old != nil {
			delete(f.rows, change.Old.ID)
		} else if change.New != nil {
			delete(f.rows, change.New.ID)
		}
	}
}

// ApplyEvent merges a wire-form change event into the feed. Events for other
// tables and rows that fail to decode are ignored.
func (f *ChapterFeed) ApplyEvent(ev ChangeEvent) {
	if ev.Table != TableChapters {
		return
	}
	change := ChapterChange{Type: ev.Type}
	if len(ev.OldRow) > 0 {
		var old models.Chapter
		if err := json.Unmarshal(ev.OldRow, &old); err == nil {
			change.Old = &old
		}
	}
	if len(ev.NewRow) > 0 {
		var next models.Chapter
		if err := json.Unmarshal(ev.NewRow, &next); err == nil {
			change.New = &next
		}
	}
	f.Apply(change)
}

// Snapshot returns the feed contents ordered by order_index, then id for
// rows sharing an index.
func (f *ChapterFeed) Snapshot() []models.Chapter {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Chapter, 0, len(f.rows))
	for _, ch := range f.rows {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len reports the number of rows held.
func (f *ChapterFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rows)
}
