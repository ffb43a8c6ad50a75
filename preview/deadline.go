package preview

import "time"

const (
	DefaultRemoteTimeout   = 5 * time.Second
	DefaultDownloadTimeout = 10 * time.Second
	DefaultDownloadPoll    = 100 * time.Millisecond
)

// Deadline measures one wait phase against the scheduler clock.
type Deadline struct {
	start time.Duration
	limit time.Duration
}

func NewDeadline(now, limit time.Duration) Deadline {
	return Deadline{start: now, limit: limit}
}

func (d Deadline) Elapsed(now time.Duration) time.Duration {
	if now < d.start {
		return 0
	}
	return now - d.start
}

// Expired reports whether the full limit has elapsed at now.
func (d Deadline) Expired(now time.Duration) bool {
	return d.Elapsed(now) >= d.limit
}
