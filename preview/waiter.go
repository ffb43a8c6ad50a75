package preview

import (
	"log"
	"time"

	"github.com/milk9111/profilesong/sched"
)

// Phase is the stage a session is in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingRemoteData
	PhaseAwaitingDownload
	PhaseFadingOut
	PhasePreviewing
	PhaseRestoring
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingRemoteData:
		return "awaiting-remote-data"
	case PhaseAwaitingDownload:
		return "awaiting-download"
	case PhaseFadingOut:
		return "fading-out"
	case PhasePreviewing:
		return "previewing"
	case PhaseRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

type WaiterConfig struct {
	Namespace       string
	RemoteTimeout   time.Duration
	DownloadTimeout time.Duration
	DownloadPoll    time.Duration
}

// WaiterHooks receive a wait's progress. Done runs exactly once per started
// wait unless the wait is cancelled first.
type WaiterHooks struct {
	Phase    func(Phase)
	Progress func(songID int64, downloading bool)
	Done     func(Result)
}

// Waiter resolves a playable song path for one account: it polls the user
// data store every tick, then polls the download manager on a slower interval.
type Waiter struct {
	sched     *sched.Scheduler
	userData  UserData
	downloads Downloads
	cache     *SongCache
	cfg       WaiterConfig

	accountID int
	songID    int64
	phase     Phase
	remote    Deadline
	download  Deadline

	remoteElapsed   time.Duration
	downloadElapsed time.Duration

	timer *sched.Timer
	hooks WaiterHooks
}

func NewWaiter(s *sched.Scheduler, userData UserData, downloads Downloads, cache *SongCache, cfg WaiterConfig) *Waiter {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.DownloadPoll <= 0 {
		cfg.DownloadPoll = DefaultDownloadPoll
	}
	return &Waiter{
		sched:     s,
		userData:  userData,
		downloads: downloads,
		cache:     cache,
		cfg:       cfg,
	}
}

// Start cancels any wait in progress and begins waiting for accountID's song.
func (w *Waiter) Start(accountID int, hooks WaiterHooks) {
	w.Cancel()

	w.accountID = accountID
	w.songID = 0
	w.remoteElapsed = 0
	w.downloadElapsed = 0
	w.hooks = hooks

	w.userData.Refresh(accountID, w.cfg.Namespace)
	w.setPhase(PhaseAwaitingRemoteData)
	w.remote = NewDeadline(w.sched.Now(), w.cfg.RemoteTimeout)
	w.timer = w.sched.Schedule(0, w.pollRemote)
}

// Cancel stops polling. No hook runs after Cancel returns.
func (w *Waiter) Cancel() {
	w.stopTimer()
	w.hooks = WaiterHooks{}
	w.phase = PhaseIdle
}

func (w *Waiter) Active() bool {
	return w.timer.Active()
}

func (w *Waiter) Phase() Phase {
	return w.phase
}

func (w *Waiter) SongID() int64 {
	return w.songID
}

func (w *Waiter) RemoteElapsed() time.Duration {
	return w.remoteElapsed
}

func (w *Waiter) DownloadElapsed() time.Duration {
	return w.downloadElapsed
}

func (w *Waiter) pollRemote(time.Duration) {
	now := w.sched.Now()
	w.remoteElapsed = w.remote.Elapsed(now)
	if w.remote.Expired(now) {
		w.finish(Result{Outcome: OutcomeNoData})
		return
	}

	if !w.userData.Contains(w.accountID, w.cfg.Namespace) {
		return
	}
	w.stopTimer()

	songID := w.readSongID()
	w.cache.Put(w.accountID, songID)
	w.songID = songID

	if songID <= 0 {
		w.progress(0, false)
		w.finish(Result{Outcome: OutcomeNoSong})
		return
	}
	w.beginDownload()
}

func (w *Waiter) readSongID() int64 {
	doc, err := w.userData.Get(w.accountID, w.cfg.Namespace)
	if err != nil {
		log.Printf("preview: read user data for %d: %v", w.accountID, err)
		return 0
	}
	songID, err := doc.SongID()
	if err != nil {
		log.Printf("preview: parse user data for %d: %v", w.accountID, err)
		return 0
	}
	if songID <= 0 {
		return 0
	}
	return songID
}

func (w *Waiter) beginDownload() {
	w.setPhase(PhaseAwaitingDownload)

	downloaded := w.downloads.IsDownloaded(w.songID)
	if !downloaded {
		w.downloads.RequestDownload(w.songID)
	}
	w.progress(w.songID, !downloaded)

	w.download = NewDeadline(w.sched.Now(), w.cfg.DownloadTimeout)
	w.timer = w.sched.Schedule(w.cfg.DownloadPoll, w.pollDownload)
}

func (w *Waiter) pollDownload(time.Duration) {
	now := w.sched.Now()
	w.downloadElapsed = w.download.Elapsed(now)
	if w.download.Expired(now) {
		w.progress(w.songID, false)
		w.finish(Result{Outcome: OutcomeDownloadTimedOut, SongID: w.songID})
		return
	}

	if !w.downloads.IsDownloaded(w.songID) {
		w.progress(w.songID, true)
		return
	}
	w.progress(w.songID, false)

	path := w.downloads.PathFor(w.songID)
	if path == "" {
		return
	}
	w.finish(Result{Outcome: OutcomeReady, SongID: w.songID, Path: path})
}

func (w *Waiter) finish(r Result) {
	done := w.hooks.Done
	w.stopTimer()
	w.hooks = WaiterHooks{}
	w.phase = PhaseIdle
	if done != nil {
		done(r)
	}
}

func (w *Waiter) setPhase(p Phase) {
	w.phase = p
	if w.hooks.Phase != nil {
		w.hooks.Phase(p)
	}
}

func (w *Waiter) progress(songID int64, downloading bool) {
	if w.hooks.Progress != nil {
		w.hooks.Progress(songID, downloading)
	}
}

func (w *Waiter) stopTimer() {
	if w.timer == nil {
		return
	}
	w.sched.Unschedule(w.timer)
	w.timer = nil
}
