package preview

import "errors"

var (
	ErrDataUnavailable    = errors.New("preview: user data unavailable")
	ErrNoSongConfigured   = errors.New("preview: no song configured")
	ErrDownloadTimeout    = errors.New("preview: song download timed out")
	ErrChannelUnavailable = errors.New("preview: audio channel unavailable")
)

// Outcome is the terminal state of a readiness wait.
type Outcome int

const (
	OutcomeReady Outcome = iota
	OutcomeNoSong
	OutcomeNoData
	OutcomeDownloadTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeNoSong:
		return "no-song"
	case OutcomeNoData:
		return "no-data"
	case OutcomeDownloadTimedOut:
		return "download-timed-out"
	default:
		return "unknown"
	}
}

// Result is the single event a Waiter emits. SongID is the last known id,
// zero when none was resolved.
type Result struct {
	Outcome Outcome
	SongID  int64
	Path    string
}

// Err maps a non-ready outcome to its sentinel error.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeReady:
		return nil
	case OutcomeNoSong:
		return ErrNoSongConfigured
	case OutcomeNoData:
		return ErrDataUnavailable
	case OutcomeDownloadTimedOut:
		return ErrDownloadTimeout
	default:
		return errors.New("preview: unknown outcome")
	}
}
