package preview

import (
	"errors"
	"testing"
	"time"

	"github.com/milk9111/profilesong/sched"
	"github.com/milk9111/profilesong/userdata"
)

const (
	testMenuTrack = "/assets/menuLoop.mp3"
	testNamespace = "profilesong"
	tick          = 10 * time.Millisecond
	epsilon       = 1e-9
)

type fakeChannel struct {
	volume float64
	writes []float64
}

func (c *fakeChannel) Volume() float64 { return c.volume }

func (c *fakeChannel) SetVolume(v float64) {
	c.volume = v
	c.writes = append(c.writes, v)
}

type playCall struct {
	path string
	loop bool
	slot int
	at   time.Duration
}

type fakeAudio struct {
	now      func() time.Duration
	channels map[int]*fakeChannel
	tracks   map[int]string
	plays    []playCall
	stops    int
	fail     map[string]bool
}

func newFakeAudio(now func() time.Duration) *fakeAudio {
	return &fakeAudio{
		now:      now,
		channels: make(map[int]*fakeChannel),
		tracks:   make(map[int]string),
		fail:     make(map[string]bool),
	}
}

func (a *fakeAudio) ActiveChannel(slot int) Channel {
	ch, ok := a.channels[slot]
	if !ok {
		return nil
	}
	return ch
}

func (a *fakeAudio) Play(path string, loop bool, _ time.Duration, slot int) error {
	if a.fail[path] {
		return errors.New("decode failed")
	}
	a.channels[slot] = &fakeChannel{volume: 1}
	a.tracks[slot] = path
	a.plays = append(a.plays, playCall{path: path, loop: loop, slot: slot, at: a.now()})
	return nil
}

func (a *fakeAudio) Stop(slot int) {
	delete(a.channels, slot)
	delete(a.tracks, slot)
	a.stops++
}

// drop makes the slot's channel disappear without a Stop call.
func (a *fakeAudio) drop(slot int) {
	delete(a.channels, slot)
}

func (a *fakeAudio) volume(slot int) float64 {
	ch, ok := a.channels[slot]
	if !ok {
		return -1
	}
	return ch.volume
}

func (a *fakeAudio) playsOf(path string) []playCall {
	var out []playCall
	for _, p := range a.plays {
		if p.path == path {
			out = append(out, p)
		}
	}
	return out
}

type fakeUserData struct {
	docs         map[int]userdata.Document
	hiddenPolls  map[int]int
	getErr       error
	containsHits int
	uploads      []userdata.Document
	refreshes    []int
}

func newFakeUserData() *fakeUserData {
	return &fakeUserData{
		docs:        make(map[int]userdata.Document),
		hiddenPolls: make(map[int]int),
	}
}

func (f *fakeUserData) put(t *testing.T, accountID int, songID int64) {
	t.Helper()
	doc, err := userdata.NewSongDocument(songID)
	if err != nil {
		t.Fatalf("NewSongDocument: %v", err)
	}
	f.docs[accountID] = doc
}

func (f *fakeUserData) Contains(accountID int, namespace string) bool {
	f.containsHits++
	if namespace != testNamespace {
		return false
	}
	if _, ok := f.docs[accountID]; !ok {
		return false
	}
	if n := f.hiddenPolls[accountID]; n > 0 {
		f.hiddenPolls[accountID] = n - 1
		return false
	}
	return true
}

func (f *fakeUserData) Get(accountID int, _ string) (userdata.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[accountID]
	if !ok {
		return nil, userdata.ErrNotFound
	}
	return doc, nil
}

func (f *fakeUserData) Refresh(accountID int, _ string) {
	f.refreshes = append(f.refreshes, accountID)
}

func (f *fakeUserData) Upload(doc userdata.Document) {
	f.uploads = append(f.uploads, doc)
}

type fakeDownloads struct {
	now        func() time.Duration
	downloaded map[int64]bool
	paths      map[int64]string
	requests   []int64
	checks     []time.Duration
}

func newFakeDownloads(now func() time.Duration) *fakeDownloads {
	return &fakeDownloads{
		now:        now,
		downloaded: make(map[int64]bool),
		paths:      make(map[int64]string),
	}
}

func (d *fakeDownloads) IsDownloaded(songID int64) bool {
	d.checks = append(d.checks, d.now())
	return d.downloaded[songID]
}

func (d *fakeDownloads) RequestDownload(songID int64) {
	d.requests = append(d.requests, songID)
}

func (d *fakeDownloads) PathFor(songID int64) string {
	return d.paths[songID]
}

func (d *fakeDownloads) ready(songID int64, path string) {
	d.downloaded[songID] = true
	d.paths[songID] = path
}

type fakeIdentity struct {
	id int
	ok bool
}

func (f fakeIdentity) CurrentAccountID() (int, bool) { return f.id, f.ok }

type fakeSettings map[string]int64

func (f fakeSettings) Int64(key string) int64 { return f[key] }

type harness struct {
	sched     *sched.Scheduler
	audio     *fakeAudio
	userData  *fakeUserData
	downloads *fakeDownloads
	view      *LabelView
	cache     *SongCache
	ctrl      *Controller
}

func newHarness(t *testing.T, mutate func(*Options, *Deps)) *harness {
	t.Helper()
	s := sched.NewScheduler()
	h := &harness{
		sched:     s,
		audio:     newFakeAudio(s.Now),
		userData:  newFakeUserData(),
		downloads: newFakeDownloads(s.Now),
		view:      &LabelView{},
		cache:     NewSongCache(),
	}

	opts := DefaultOptions()
	opts.Namespace = testNamespace
	opts.MenuTrack = testMenuTrack
	deps := Deps{
		UserData:  h.userData,
		Downloads: h.downloads,
		Audio:     h.audio,
		Identity:  fakeIdentity{id: 1, ok: true},
		Settings:  fakeSettings{DefaultSongSetting: 0},
		View:      h.view,
		Cache:     h.cache,
	}
	if mutate != nil {
		mutate(&opts, &deps)
	}

	ctrl, err := NewController(s, deps, opts)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.ctrl = ctrl
	return h
}

// advance runs ticks of size step until d has elapsed.
func advance(s *sched.Scheduler, d, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		s.Update(step)
	}
}

func near(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}
