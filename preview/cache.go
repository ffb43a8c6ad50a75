package preview

import (
	"sync"

	"github.com/samber/lo"
)

// SongCache remembers the last song id resolved per account. Entries are hints
// for the host; a session always polls the store again.
type SongCache struct {
	mu    sync.RWMutex
	songs map[int]int64
}

func NewSongCache() *SongCache {
	return &SongCache{songs: make(map[int]int64)}
}

func (c *SongCache) Put(accountID int, songID int64) {
	if c == nil || accountID <= 0 {
		return
	}
	c.mu.Lock()
	c.songs[accountID] = songID
	c.mu.Unlock()
}

func (c *SongCache) Get(accountID int) (int64, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.songs[accountID]
	return id, ok
}

func (c *SongCache) Snapshot() map[int]int64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Assign(c.songs)
}
