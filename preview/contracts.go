// Package preview plays a viewed user's profile song in place of the menu
// music while their profile page is open.
//
// Everything in this package runs on the host's frame loop through a
// sched.Scheduler and is not safe for concurrent use.
package preview

import (
	"time"

	"github.com/milk9111/profilesong/userdata"
)

// UserData is the remote key-value store holding each user's song document.
// Contains must not block; it is polled once per frame.
type UserData interface {
	Contains(accountID int, namespace string) bool
	Get(accountID int, namespace string) (userdata.Document, error)
	// Refresh drops anything remembered about the document so the next
	// Contains reflects the store as it is now.
	Refresh(accountID int, namespace string)
	// Upload stores doc for the local account. It must not block and
	// failures are the implementation's concern.
	Upload(doc userdata.Document)
}

type Downloads interface {
	IsDownloaded(songID int64) bool
	RequestDownload(songID int64)
	// PathFor returns "" while the song is not ready to play.
	PathFor(songID int64) string
}

// Channel is a live audio channel handle. It may go away at any frame.
type Channel interface {
	Volume() float64
	SetVolume(v float64)
}

type Audio interface {
	// ActiveChannel returns nil when nothing is loaded in slot.
	ActiveChannel(slot int) Channel
	Play(path string, loop bool, offset time.Duration, slot int) error
	Stop(slot int)
}

type Identity interface {
	CurrentAccountID() (int, bool)
}

type Settings interface {
	Int64(key string) int64
}

// View renders the song state of the profile page.
type View interface {
	SetSong(songID int64, downloading bool)
}
