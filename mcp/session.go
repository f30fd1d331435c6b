package mcp

import (
	"sync"

	"github.com/hyperengineering/stride"
)

// titleIndex remembers the titles of recommendations shown to the client so
// feedback can name a recommendation by a fragment of its title.
type titleIndex struct {
	mu     sync.RWMutex
	titles map[string]string // recommendation ID -> title
}

func newTitleIndex() *titleIndex {
	return &titleIndex{titles: make(map[string]string)}
}

func (t *titleIndex) remember(recs []stride.Recommendation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range recs {
		t.titles[r.ID] = r.Title
	}
}

// lookup returns the title of id, or "" when it was never shown.
func (t *titleIndex) lookup(id string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.titles[id]
}
