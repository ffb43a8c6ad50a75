package download

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite"
)

// Record describes one song in the download cache.
type Record struct {
	SongID       int64
	Path         string
	Title        string
	Artist       string
	DownloadedAt time.Time
}

// Index persists the download cache in SQLite and mirrors it in memory so
// lookups from the frame loop never touch the database.
type Index struct {
	db *sql.DB

	mu      sync.RWMutex
	records map[int64]Record
}

func OpenIndex(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("download: create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("download: open index: %w", err)
	}
	idx := &Index{db: db, records: make(map[int64]Record)}
	ctx := context.Background()
	if err := idx.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := idx.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS songs (
  song_id INTEGER PRIMARY KEY,
  path TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  artist TEXT NOT NULL DEFAULT '',
  downloaded_at INTEGER NOT NULL
);
`
	if _, err := i.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("download: create songs table: %w", err)
	}
	return nil
}

func (i *Index) load(ctx context.Context) error {
	rows, err := i.db.QueryContext(ctx, `SELECT song_id, path, title, artist, downloaded_at FROM songs;`)
	if err != nil {
		return fmt.Errorf("download: load index: %w", err)
	}
	defer rows.Close()

	i.mu.Lock()
	defer i.mu.Unlock()
	for rows.Next() {
		var rec Record
		var at int64
		if err := rows.Scan(&rec.SongID, &rec.Path, &rec.Title, &rec.Artist, &at); err != nil {
			return fmt.Errorf("download: scan index row: %w", err)
		}
		rec.DownloadedAt = time.Unix(at, 0)
		i.records[rec.SongID] = rec
	}
	return rows.Err()
}

func (i *Index) Lookup(songID int64) (Record, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rec, ok := i.records[songID]
	return rec, ok
}

// Records returns every indexed song ordered by id.
func (i *Index) Records() []Record {
	i.mu.RLock()
	recs := lo.Values(i.records)
	i.mu.RUnlock()
	sort.Slice(recs, func(a, b int) bool { return recs[a].SongID < recs[b].SongID })
	return recs
}

func (i *Index) Put(ctx context.Context, rec Record) error {
	const stmt = `
INSERT INTO songs (song_id, path, title, artist, downloaded_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(song_id) DO UPDATE SET
  path = excluded.path,
  title = excluded.title,
  artist = excluded.artist,
  downloaded_at = excluded.downloaded_at;
`
	if rec.DownloadedAt.IsZero() {
		rec.DownloadedAt = time.Now()
	}
	if _, err := i.db.ExecContext(ctx, stmt, rec.SongID, rec.Path, rec.Title, rec.Artist, rec.DownloadedAt.Unix()); err != nil {
		return fmt.Errorf("download: upsert song %d: %w", rec.SongID, err)
	}
	i.mu.Lock()
	i.records[rec.SongID] = rec
	i.mu.Unlock()
	return nil
}

func (i *Index) Remove(ctx context.Context, songID int64) error {
	if _, err := i.db.ExecContext(ctx, `DELETE FROM songs WHERE song_id = ?;`, songID); err != nil {
		return fmt.Errorf("download: delete song %d: %w", songID, err)
	}
	i.mu.Lock()
	delete(i.records, songID)
	i.mu.Unlock()
	return nil
}

func (i *Index) Close() error {
	return i.db.Close()
}
