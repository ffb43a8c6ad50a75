package preview

import (
	"log"
	"time"

	"github.com/milk9111/profilesong/common"
	"github.com/milk9111/profilesong/sched"
)

const minFadeDuration = time.Millisecond

// AfterFade names what follows a completed fade.
type AfterFade int

const (
	AfterNone AfterFade = iota
	AfterSwitchToPreview
	AfterRestoreMenu
)

func (a AfterFade) String() string {
	switch a {
	case AfterNone:
		return "none"
	case AfterSwitchToPreview:
		return "switch-to-preview"
	case AfterRestoreMenu:
		return "restore-menu"
	default:
		return "unknown"
	}
}

// FadeJob is one linear volume ramp.
type FadeJob struct {
	Elapsed time.Duration
	Total   time.Duration
	From    float64
	To      float64
	Then    AfterFade
}

// Progress is the completed fraction in [0, 1].
func (j FadeJob) Progress() float64 {
	if j.Total <= 0 {
		return 1
	}
	p := float64(j.Elapsed) / float64(j.Total)
	if p > 1 {
		return 1
	}
	return p
}

func (j FadeJob) Volume() float64 {
	return common.Clamp01(common.Lerp(j.From, j.To, j.Progress()))
}

// Fader ramps the volume of one audio slot, one job at a time.
type Fader struct {
	sched *sched.Scheduler
	audio Audio
	slot  int

	job   FadeJob
	timer *sched.Timer
	err   error

	onComplete func(AfterFade)
	onAbort    func(error)
}

// NewFader returns a fader for slot. onComplete receives the finished job's
// continuation; onAbort, if set, is told when a fade stops because the
// channel disappeared. Neither runs for a fade that is stopped or replaced.
func NewFader(s *sched.Scheduler, audio Audio, slot int, onComplete func(AfterFade), onAbort func(error)) *Fader {
	return &Fader{
		sched:      s,
		audio:      audio,
		slot:       slot,
		onComplete: onComplete,
		onAbort:    onAbort,
	}
}

// Start replaces any fade in progress with a new one. The channel is first
// written on the next tick.
func (f *Fader) Start(from, to float64, total time.Duration, then AfterFade) {
	f.Stop()
	if total < minFadeDuration {
		total = minFadeDuration
	}
	f.job = FadeJob{
		Total: total,
		From:  common.Clamp01(from),
		To:    common.Clamp01(to),
		Then:  then,
	}
	f.err = nil
	f.timer = f.sched.Schedule(0, f.tick)
}

func (f *Fader) Stop() {
	if f.timer == nil {
		return
	}
	f.sched.Unschedule(f.timer)
	f.timer = nil
}

func (f *Fader) Active() bool {
	return f.timer.Active()
}

func (f *Fader) Job() FadeJob {
	return f.job
}

// Err reports why the last fade was aborted, if it was.
func (f *Fader) Err() error {
	return f.err
}

func (f *Fader) tick(dt time.Duration) {
	ch := f.audio.ActiveChannel(f.slot)
	if ch == nil {
		f.Stop()
		f.err = ErrChannelUnavailable
		log.Printf("preview: fade %s aborted: %v", f.job.Then, f.err)
		if f.onAbort != nil {
			f.onAbort(f.err)
		}
		return
	}

	f.job.Elapsed += dt
	if f.job.Elapsed > f.job.Total {
		f.job.Elapsed = f.job.Total
	}
	ch.SetVolume(f.job.Volume())

	if f.job.Progress() < 1 {
		return
	}

	f.Stop()
	if f.onComplete != nil {
		f.onComplete(f.job.Then)
	}
}
