package preview

import (
	"errors"
	"log"
	"time"

	"github.com/milk9111/profilesong/sched"
	"github.com/milk9111/profilesong/userdata"
)

const (
	DefaultFadeOut     = 250 * time.Millisecond
	DefaultFadeIn      = 250 * time.Millisecond
	DefaultSongSetting = "profile-song-id"

	defaultMenuVolume = 1.0
)

type Options struct {
	Namespace string
	// MenuTrack is the ambient loop restored when no preview plays. Empty
	// disables menu playback.
	MenuTrack   string
	TrackSlot   int
	SongSetting string

	FadeOut         time.Duration
	FadeIn          time.Duration
	RemoteTimeout   time.Duration
	DownloadTimeout time.Duration
	DownloadPoll    time.Duration

	// RestoreOnNoSong fades back to the menu loop when a wait ends without a
	// playable song instead of leaving playback untouched.
	RestoreOnNoSong bool
	Debug           bool
}

func DefaultOptions() Options {
	return Options{
		Namespace:       "profilesong",
		SongSetting:     DefaultSongSetting,
		FadeOut:         DefaultFadeOut,
		FadeIn:          DefaultFadeIn,
		RemoteTimeout:   DefaultRemoteTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		DownloadPoll:    DefaultDownloadPoll,
	}
}

type Deps struct {
	UserData  UserData
	Downloads Downloads
	Audio     Audio
	Identity  Identity
	Settings  Settings
	View      View
	Cache     *SongCache
}

// Subject is the user whose profile is being viewed.
type Subject struct {
	AccountID int
	Name      string
}

// Memento is the menu volume saved before the first fade-out of a session.
type Memento struct {
	Value float64
	Saved bool
}

type Session struct {
	Subject             Subject
	Open                bool
	Phase               Phase
	TargetSongID        int64
	CachedPath          string
	RemoteWaitElapsed   time.Duration
	DownloadWaitElapsed time.Duration
}

// Controller runs one preview session per profile page.
type Controller struct {
	sched *sched.Scheduler
	deps  Deps
	opts  Options

	session Session
	memento Memento

	waiter *Waiter
	fader  *Fader
}

func NewController(s *sched.Scheduler, deps Deps, opts Options) (*Controller, error) {
	switch {
	case s == nil:
		return nil, errors.New("preview: scheduler is nil")
	case deps.UserData == nil:
		return nil, errors.New("preview: user data client is nil")
	case deps.Downloads == nil:
		return nil, errors.New("preview: download manager is nil")
	case deps.Audio == nil:
		return nil, errors.New("preview: audio adapter is nil")
	case deps.View == nil:
		return nil, errors.New("preview: view is nil")
	}
	if opts.SongSetting == "" {
		opts.SongSetting = DefaultSongSetting
	}

	c := &Controller{sched: s, deps: deps, opts: opts}
	c.waiter = NewWaiter(s, deps.UserData, deps.Downloads, deps.Cache, WaiterConfig{
		Namespace:       opts.Namespace,
		RemoteTimeout:   opts.RemoteTimeout,
		DownloadTimeout: opts.DownloadTimeout,
		DownloadPoll:    opts.DownloadPoll,
	})
	c.fader = NewFader(s, deps.Audio, opts.TrackSlot, c.afterFade, c.fadeAborted)
	return c, nil
}

// Enter starts a session for subject, superseding any session in progress.
func (c *Controller) Enter(subject Subject) {
	c.cancelAll()
	c.restoreNow()

	c.memento = Memento{}
	c.session = Session{Subject: subject, Open: true}
	c.deps.View.SetSong(0, false)

	if c.isLocal(subject) {
		c.uploadOwnSong()
	}

	c.waiter.Start(subject.AccountID, WaiterHooks{
		Phase:    c.setPhase,
		Progress: c.deps.View.SetSong,
		Done:     c.waitDone,
	})
}

// Exit ends the open session and fades the menu loop back in. It does
// nothing when no session is open.
func (c *Controller) Exit() {
	if !c.session.Open {
		return
	}
	c.cancelAll()
	c.session.Open = false

	c.switchTrack(c.opts.MenuTrack)
	c.setPhase(PhaseRestoring)
	c.fader.Start(0, c.restoreVolume(), c.opts.FadeIn, AfterNone)
}

func (c *Controller) Session() Session {
	s := c.session
	s.RemoteWaitElapsed = c.waiter.RemoteElapsed()
	s.DownloadWaitElapsed = c.waiter.DownloadElapsed()
	return s
}

func (c *Controller) Memento() Memento {
	return c.memento
}

// Fading reports whether a volume ramp is in progress.
func (c *Controller) Fading() bool {
	return c.fader.Active()
}

func (c *Controller) cancelAll() {
	c.waiter.Cancel()
	c.fader.Stop()
}

// restoreNow puts the menu loop back at its remembered volume without a fade.
func (c *Controller) restoreNow() {
	c.deps.Audio.Stop(c.opts.TrackSlot)
	c.play(c.opts.MenuTrack)
	if ch := c.deps.Audio.ActiveChannel(c.opts.TrackSlot); ch != nil {
		ch.SetVolume(c.restoreVolume())
	}
	c.setPhase(PhaseIdle)
}

func (c *Controller) restoreVolume() float64 {
	if c.memento.Saved {
		return c.memento.Value
	}
	return defaultMenuVolume
}

// switchTrack replaces the slot's track with path, starting silent.
func (c *Controller) switchTrack(path string) bool {
	c.deps.Audio.Stop(c.opts.TrackSlot)
	if !c.play(path) {
		return false
	}
	if ch := c.deps.Audio.ActiveChannel(c.opts.TrackSlot); ch != nil {
		ch.SetVolume(0)
	}
	return true
}

func (c *Controller) play(path string) bool {
	if path == "" {
		return false
	}
	if err := c.deps.Audio.Play(path, true, 0, c.opts.TrackSlot); err != nil {
		log.Printf("preview: play %q: %v", path, err)
		return false
	}
	return true
}

func (c *Controller) waitDone(r Result) {
	c.session.TargetSongID = r.SongID
	if r.Outcome == OutcomeReady {
		c.session.CachedPath = r.Path
		c.deps.View.SetSong(r.SongID, false)
		c.beginPreview(r.Path)
		return
	}

	log.Printf("preview: no preview for account %d: %v", c.session.Subject.AccountID, r.Err())
	switch r.Outcome {
	case OutcomeDownloadTimedOut:
		c.deps.View.SetSong(r.SongID, false)
	default:
		c.deps.View.SetSong(0, false)
	}
	c.setPhase(PhaseIdle)

	if c.opts.RestoreOnNoSong {
		c.fadeToMenu()
	}
}

func (c *Controller) beginPreview(path string) {
	ch := c.deps.Audio.ActiveChannel(c.opts.TrackSlot)
	from := defaultMenuVolume
	if ch != nil {
		from = ch.Volume()
		if !c.memento.Saved {
			c.memento = Memento{Value: from, Saved: true}
		}
	}
	c.setPhase(PhaseFadingOut)
	c.fader.Start(from, 0, c.opts.FadeOut, AfterSwitchToPreview)
}

func (c *Controller) fadeToMenu() {
	from := defaultMenuVolume
	if ch := c.deps.Audio.ActiveChannel(c.opts.TrackSlot); ch != nil {
		from = ch.Volume()
	}
	c.setPhase(PhaseRestoring)
	c.fader.Start(from, 0, c.opts.FadeOut, AfterRestoreMenu)
}

func (c *Controller) afterFade(then AfterFade) {
	switch then {
	case AfterSwitchToPreview:
		if !c.switchTrack(c.session.CachedPath) {
			c.restoreNow()
			return
		}
		c.setPhase(PhasePreviewing)
		c.fader.Start(0, 1, c.opts.FadeIn, AfterNone)
	case AfterRestoreMenu:
		if !c.switchTrack(c.opts.MenuTrack) {
			c.setPhase(PhaseIdle)
			return
		}
		c.fader.Start(0, c.restoreVolume(), c.opts.FadeIn, AfterNone)
	case AfterNone:
		if c.session.Phase == PhaseRestoring {
			c.setPhase(PhaseIdle)
		}
	}
}

func (c *Controller) fadeAborted(error) {
	c.setPhase(PhaseIdle)
}

func (c *Controller) isLocal(subject Subject) bool {
	if c.deps.Identity == nil || subject.AccountID <= 0 {
		return false
	}
	id, ok := c.deps.Identity.CurrentAccountID()
	return ok && id > 0 && id == subject.AccountID
}

func (c *Controller) uploadOwnSong() {
	if c.deps.Settings == nil {
		return
	}
	songID := c.deps.Settings.Int64(c.opts.SongSetting)
	if songID <= 0 {
		return
	}
	doc, err := userdata.NewSongDocument(songID)
	if err != nil {
		log.Printf("preview: encode own song %d: %v", songID, err)
		return
	}
	c.deps.UserData.Upload(doc)
}

func (c *Controller) setPhase(p Phase) {
	if c.opts.Debug && c.session.Phase != p {
		log.Printf("preview: account %d: %s -> %s", c.session.Subject.AccountID, c.session.Phase, p)
	}
	c.session.Phase = p
}
