package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

var ErrNotDownloaded = errors.New("download: song not downloaded")

type Options struct {
	// Dir holds downloaded songs as <songID>.mp3.
	Dir string
	// BaseURL serves songs at <BaseURL>/<songID>.mp3.
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

// Manager downloads songs in the background. Its query methods never block on
// the network and may be called from the frame loop.
type Manager struct {
	opts  Options
	index *Index

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[int64]bool
}

func NewManager(opts Options, index *Index) (*Manager, error) {
	if index == nil {
		return nil, errors.New("download: index is nil")
	}
	if opts.Dir == "" {
		return nil, errors.New("download: cache dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("download: create cache dir: %w", err)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		index:    index,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[int64]bool),
	}, nil
}

func (m *Manager) IsDownloaded(songID int64) bool {
	_, err := m.lookup(songID)
	return err == nil
}

// RequestDownload starts fetching songID unless it is cached or already
// being fetched.
func (m *Manager) RequestDownload(songID int64) {
	if songID <= 0 || m.opts.BaseURL == "" {
		return
	}
	if m.IsDownloaded(songID) {
		return
	}

	m.mu.Lock()
	if m.inflight[songID] {
		m.mu.Unlock()
		return
	}
	m.inflight[songID] = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.inflight, songID)
			m.mu.Unlock()
		}()
		if err := m.fetch(songID); err != nil {
			log.Printf("download: song %d: %v", songID, err)
		}
	}()
}

// Downloading reports whether songID is being fetched right now.
func (m *Manager) Downloading(songID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight[songID]
}

func (m *Manager) PathFor(songID int64) string {
	rec, err := m.lookup(songID)
	if err != nil {
		return ""
	}
	return rec.Path
}

// Title returns the "title - artist" of a cached song, or "" when unknown.
func (m *Manager) Title(songID int64) string {
	rec, err := m.lookup(songID)
	if err != nil || rec.Title == "" {
		return ""
	}
	if rec.Artist == "" {
		return rec.Title
	}
	return rec.Title + " - " + rec.Artist
}

// Close cancels downloads in flight and waits for them to stop.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) songPath(songID int64) string {
	return filepath.Join(m.opts.Dir, fmt.Sprintf("%d.mp3", songID))
}

func (m *Manager) lookup(songID int64) (Record, error) {
	if songID <= 0 {
		return Record{}, ErrNotDownloaded
	}
	if rec, ok := m.index.Lookup(songID); ok {
		if fileExists(rec.Path) {
			return rec, nil
		}
		// The file was deleted behind our back; forget it so it is fetched again.
		if err := m.index.Remove(context.Background(), songID); err != nil {
			log.Printf("download: song %d: %v", songID, err)
		}
	}

	// Songs copied into the cache dir by hand are picked up too.
	rec := Record{SongID: songID, Path: m.songPath(songID)}
	if !fileExists(rec.Path) {
		return Record{}, ErrNotDownloaded
	}
	return rec, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (m *Manager) fetch(songID int64) error {
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%d.mp3", m.opts.BaseURL, songID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := m.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	tmp := filepath.Join(m.opts.Dir, uuid.New().String()+".part")
	if err := writeFile(tmp, resp.Body); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	final := m.songPath(songID)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move %s: %w", final, err)
	}

	rec := Record{SongID: songID, Path: final, DownloadedAt: time.Now()}
	if title, artist, err := readTags(final); err == nil {
		rec.Title, rec.Artist = title, artist
	}
	if err := m.index.Put(ctx, rec); err != nil {
		return err
	}
	return nil
}

func writeFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
