package preview

import (
	"errors"
	"testing"
	"time"

	"github.com/milk9111/profilesong/sched"
)

type waiterRig struct {
	sched     *sched.Scheduler
	userData  *fakeUserData
	downloads *fakeDownloads
	cache     *SongCache
	waiter    *Waiter

	results  []Result
	progress []string
	phases   []Phase
}

func newWaiterRig() *waiterRig {
	s := sched.NewScheduler()
	r := &waiterRig{
		sched:     s,
		userData:  newFakeUserData(),
		downloads: newFakeDownloads(s.Now),
		cache:     NewSongCache(),
	}
	r.waiter = NewWaiter(s, r.userData, r.downloads, r.cache, WaiterConfig{Namespace: testNamespace})
	return r
}

func (r *waiterRig) start(accountID int) {
	r.waiter.Start(accountID, WaiterHooks{
		Phase: func(p Phase) { r.phases = append(r.phases, p) },
		Progress: func(songID int64, downloading bool) {
			r.progress = append(r.progress, SongLabel(songID)+"|"+StatusLabel(songID, downloading))
		},
		Done: func(res Result) { r.results = append(r.results, res) },
	})
}

func TestWaiterRemoteTimeoutBound(t *testing.T) {
	r := newWaiterRig()
	r.start(2)

	advance(r.sched, 4990*time.Millisecond, tick)
	if len(r.results) != 0 {
		t.Fatalf("waiter finished before 5s: %+v", r.results)
	}
	if r.waiter.Phase() != PhaseAwaitingRemoteData {
		t.Fatalf("expected awaiting remote data, got %s", r.waiter.Phase())
	}

	r.sched.Update(tick)
	if len(r.results) != 1 || r.results[0].Outcome != OutcomeNoData {
		t.Fatalf("expected NoData at 5s, got %+v", r.results)
	}
	if r.waiter.RemoteElapsed() < DefaultRemoteTimeout {
		t.Fatalf("expected at least 5s elapsed, got %v", r.waiter.RemoteElapsed())
	}
	if !errors.Is(r.results[0].Err(), ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", r.results[0].Err())
	}

	polls := r.userData.containsHits
	advance(r.sched, time.Second, tick)
	if r.userData.containsHits != polls || len(r.results) != 1 {
		t.Fatalf("waiter kept polling after NoData")
	}
}

func TestWaiterPollsRemoteEveryTick(t *testing.T) {
	r := newWaiterRig()
	r.userData.put(t, 2, 12)
	r.userData.hiddenPolls[2] = 4
	r.downloads.ready(12, "/cache/12.mp3")
	r.start(2)

	advance(r.sched, 4*tick, tick)
	if r.userData.containsHits != 4 {
		t.Fatalf("expected 4 polls, got %d", r.userData.containsHits)
	}
	if r.waiter.Phase() != PhaseAwaitingRemoteData {
		t.Fatalf("expected awaiting remote data, got %s", r.waiter.Phase())
	}

	r.sched.Update(tick)
	if r.waiter.Phase() != PhaseAwaitingDownload {
		t.Fatalf("expected awaiting download, got %s", r.waiter.Phase())
	}
	if id, ok := r.cache.Get(2); !ok || id != 12 {
		t.Fatalf("expected cache entry 12, got %d ok=%v", id, ok)
	}
}

func TestWaiterNoSong(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, u *fakeUserData)
	}{
		{"zero_id", func(t *testing.T, u *fakeUserData) { u.put(t, 2, 0) }},
		{"negative_id", func(t *testing.T, u *fakeUserData) { u.put(t, 2, -5) }},
		{"malformed", func(t *testing.T, u *fakeUserData) { u.docs[2] = []byte(`{"songId": "abc"}`) }},
		{"missing_field", func(t *testing.T, u *fakeUserData) { u.docs[2] = []byte(`{"other": 1}`) }},
		{"get_error", func(t *testing.T, u *fakeUserData) {
			u.put(t, 2, 9)
			u.getErr = errors.New("boom")
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newWaiterRig()
			c.setup(t, r.userData)
			r.start(2)
			advance(r.sched, time.Second, tick)

			if len(r.results) != 1 || r.results[0].Outcome != OutcomeNoSong {
				t.Fatalf("expected NoSong, got %+v", r.results)
			}
			if len(r.downloads.checks) != 0 || len(r.downloads.requests) != 0 {
				t.Fatalf("download manager touched for a missing song")
			}
			if id, ok := r.cache.Get(2); !ok || id != 0 {
				t.Fatalf("expected cached 0, got %d ok=%v", id, ok)
			}
			if r.sched.Len() != 0 {
				t.Fatalf("expected no live timers, got %d", r.sched.Len())
			}
		})
	}
}

func TestWaiterDownloadPollCadence(t *testing.T) {
	r := newWaiterRig()
	r.userData.put(t, 2, 12)
	r.start(2)

	advance(r.sched, 2*time.Second, time.Millisecond)

	if len(r.downloads.requests) != 1 || r.downloads.requests[0] != 12 {
		t.Fatalf("expected one download request for 12, got %v", r.downloads.requests)
	}
	checks := r.downloads.checks
	if len(checks) < 2 {
		t.Fatalf("expected several readiness checks, got %d", len(checks))
	}
	// The first check happens when the download phase begins; polls follow.
	for i := 2; i < len(checks); i++ {
		if gap := checks[i] - checks[i-1]; gap < DefaultDownloadPoll {
			t.Fatalf("checks %d and %d only %v apart", i-1, i, gap)
		}
	}
	if limit := 1 + int(2*time.Second/DefaultDownloadPoll); len(checks) > limit {
		t.Fatalf("expected at most %d checks, got %d", limit, len(checks))
	}
	if last := r.progress[len(r.progress)-1]; last != "Song: 12|Downloading..." {
		t.Fatalf("expected downloading status, got %q", last)
	}
}

func TestWaiterDownloadTimeout(t *testing.T) {
	r := newWaiterRig()
	r.userData.put(t, 2, 12)
	r.start(2)

	advance(r.sched, 10*time.Second, tick)
	if len(r.results) != 0 {
		t.Fatalf("download wait ended early: %+v", r.results)
	}

	advance(r.sched, 200*time.Millisecond, tick)
	if len(r.results) != 1 {
		t.Fatalf("expected one result, got %+v", r.results)
	}
	res := r.results[0]
	if res.Outcome != OutcomeDownloadTimedOut || res.SongID != 12 {
		t.Fatalf("expected DownloadTimedOut for 12, got %+v", res)
	}
	if !errors.Is(res.Err(), ErrDownloadTimeout) {
		t.Fatalf("expected ErrDownloadTimeout, got %v", res.Err())
	}
	if last := r.progress[len(r.progress)-1]; last != "Song: 12|" {
		t.Fatalf("expected last known id without status, got %q", last)
	}
	if r.waiter.DownloadElapsed() < DefaultDownloadTimeout {
		t.Fatalf("expected at least 10s download wait, got %v", r.waiter.DownloadElapsed())
	}
}

func TestWaiterEmptyPathKeepsPolling(t *testing.T) {
	r := newWaiterRig()
	r.userData.put(t, 2, 12)
	r.downloads.downloaded[12] = true
	r.start(2)

	advance(r.sched, time.Second, tick)
	if len(r.results) != 0 {
		t.Fatalf("empty path treated as ready: %+v", r.results)
	}

	r.downloads.paths[12] = "/cache/12.mp3"
	advance(r.sched, 200*time.Millisecond, tick)
	if len(r.results) != 1 || r.results[0].Outcome != OutcomeReady || r.results[0].Path != "/cache/12.mp3" {
		t.Fatalf("expected Ready with path, got %+v", r.results)
	}
	if len(r.downloads.requests) != 0 {
		t.Fatalf("download requested for a downloaded song")
	}
}

func TestWaiterCancelStopsEverything(t *testing.T) {
	cases := []struct {
		name   string
		before time.Duration
	}{
		{"during_remote_wait", 30 * time.Millisecond},
		{"during_download_wait", 250 * time.Millisecond},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newWaiterRig()
			r.userData.put(t, 2, 12)
			r.userData.hiddenPolls[2] = 5
			r.start(2)
			advance(r.sched, c.before, tick)

			r.downloads.ready(12, "/cache/12.mp3")
			r.waiter.Cancel()
			polls, checks := r.userData.containsHits, len(r.downloads.checks)

			advance(r.sched, 20*time.Second, tick)
			if len(r.results) != 0 {
				t.Fatalf("cancelled waiter emitted %+v", r.results)
			}
			if r.userData.containsHits != polls || len(r.downloads.checks) != checks {
				t.Fatalf("cancelled waiter kept polling")
			}
			if r.waiter.Active() || r.waiter.Phase() != PhaseIdle {
				t.Fatalf("cancelled waiter still active in %s", r.waiter.Phase())
			}
		})
	}
}

func TestWaiterRestartSupersedes(t *testing.T) {
	r := newWaiterRig()
	r.userData.put(t, 2, 12)
	r.userData.put(t, 3, 13)
	r.downloads.ready(12, "/cache/12.mp3")
	r.downloads.ready(13, "/cache/13.mp3")

	r.start(2)
	advance(r.sched, 50*time.Millisecond, tick)
	r.start(3)
	advance(r.sched, time.Second, tick)

	if len(r.results) != 1 || r.results[0].SongID != 13 {
		t.Fatalf("expected a single result for the new wait, got %+v", r.results)
	}
}

func TestWaiterRefreshesStoreOnEveryStart(t *testing.T) {
	r := newWaiterRig()
	r.userData.put(t, 2, 12)

	r.start(2)
	if len(r.userData.refreshes) != 1 || r.userData.refreshes[0] != 2 {
		t.Fatalf("expected a refresh before the first poll, got %v", r.userData.refreshes)
	}
	if r.userData.containsHits != 0 {
		t.Fatalf("polled before the first tick")
	}

	r.userData.put(t, 2, 99)
	r.start(2)
	r.sched.Update(tick)
	if got := r.waiter.SongID(); got != 99 {
		t.Fatalf("second wait resolved %d, want the current document 99", got)
	}
	if len(r.userData.refreshes) != 2 {
		t.Fatalf("expected one refresh per start, got %v", r.userData.refreshes)
	}
}
