package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/milk9111/profilesong/config"
	"github.com/milk9111/profilesong/download"
	"github.com/milk9111/profilesong/mixer"
	"github.com/milk9111/profilesong/preview"
	"github.com/milk9111/profilesong/sched"
	"github.com/milk9111/profilesong/userdata"
	"github.com/samber/lo"
	"golang.design/x/clipboard"
)

const (
	baseWidth  = 1280
	baseHeight = 720

	musicSlot = 0
	// offlineDelayFrames holds seeded documents back for a few frames so the
	// offline store behaves like a remote one.
	offlineDelayFrames = 30
	redisDialTimeout   = 5 * time.Second
)

type Game struct {
	frames int
	flags  cliFlags

	live    *config.Live
	watcher *config.Watcher

	sched     *sched.Scheduler
	engine    *mixer.Engine
	index     *download.Index
	downloads *download.Manager
	userData  preview.UserData
	redis     *userdata.RedisStore
	cache     *preview.SongCache
	ctrl      *preview.Controller
	page      *ProfilePage

	roster    []config.ProfileConfig
	selected  int
	clipboard bool
	titles    titleTracker
}

// titleTracker decides when to read the open song's title from the download
// index: once per song, after its file is ready and fully indexed.
type titleTracker struct {
	songID int64
	done   bool
}

func (tt *titleTracker) reset() {
	*tt = titleTracker{}
}

// next reports whether the title of s's song should be looked up now.
func (tt *titleTracker) next(s preview.Session, downloading bool) bool {
	if !s.Open || s.CachedPath == "" || s.TargetSongID <= 0 || downloading {
		return false
	}
	if tt.done && tt.songID == s.TargetSongID {
		return false
	}
	tt.songID, tt.done = s.TargetSongID, true
	return true
}

func NewGame(cfg *config.Config, flags cliFlags) (*Game, error) {
	g := &Game{
		flags:  flags,
		live:   config.NewLive(cfg),
		sched:  sched.NewScheduler(),
		cache:  preview.NewSongCache(),
		roster: cfg.Roster(),
	}

	if err := g.open(cfg); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (g *Game) open(cfg *config.Config) error {
	var err error
	g.index, err = download.OpenIndex(cfg.IndexPath)
	if err != nil {
		return err
	}
	g.downloads, err = download.NewManager(download.Options{Dir: cfg.CacheDir, BaseURL: cfg.SongBaseURL}, g.index)
	if err != nil {
		return err
	}
	if err := g.openUserData(cfg); err != nil {
		return err
	}

	g.engine = mixer.NewEngine(nil)
	g.page = NewProfilePage(g.closeProfile)

	opts := previewOptions(cfg, g.flags.debug)
	g.ctrl, err = preview.NewController(g.sched, preview.Deps{
		UserData:  g.userData,
		Downloads: g.downloads,
		Audio:     g.engine,
		Identity:  g.live,
		Settings:  g.live,
		View:      g.page,
		Cache:     g.cache,
	}, opts)
	if err != nil {
		return err
	}

	if w, err := config.NewWatcher(g.flags.configPath, envFile); err != nil {
		log.Printf("config: watch %s: %v", g.flags.configPath, err)
	} else {
		g.watcher = w
	}

	if err := clipboard.Init(); err != nil {
		log.Printf("clipboard: %v", err)
	} else {
		g.clipboard = true
	}

	if opts.MenuTrack == "" {
		log.Printf("music: no menu loop found in %q", cfg.AssetsDir)
	} else if err := g.engine.Play(opts.MenuTrack, true, 0, musicSlot); err != nil {
		log.Printf("music: load %q: %v", opts.MenuTrack, err)
	}
	g.page.SetRoster(g.rosterLabel())
	return nil
}

func (g *Game) openUserData(cfg *config.Config) error {
	if g.flags.offline {
		store := userdata.NewMemoryStore(cfg.AccountID, cfg.Namespace)
		for _, p := range cfg.Roster() {
			if p.AccountID == cfg.AccountID || p.SongID <= 0 {
				continue
			}
			doc, err := userdata.NewSongDocument(p.SongID)
			if err != nil {
				return err
			}
			store.Put(p.AccountID, cfg.Namespace, doc, offlineDelayFrames)
		}
		g.userData = store
		return nil
	}

	if cfg.RedisURL == "" {
		return errors.New("redis_url is not configured (use --offline to run without Redis)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	store, err := userdata.NewRedisStore(ctx, cfg.RedisURL, userdata.RedisOptions{
		Owner:     cfg.AccountID,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return err
	}
	g.redis = store
	g.userData = store
	return nil
}

func previewOptions(cfg *config.Config, debug bool) preview.Options {
	opts := preview.DefaultOptions()
	opts.Namespace = lo.CoalesceOrEmpty(cfg.Namespace, opts.Namespace)
	opts.MenuTrack = cfg.ResolveMenuTrack()
	opts.TrackSlot = musicSlot
	opts.SongSetting = config.SongSettingKey
	opts.FadeOut = lo.CoalesceOrEmpty(cfg.Preview.FadeOut, opts.FadeOut)
	opts.FadeIn = lo.CoalesceOrEmpty(cfg.Preview.FadeIn, opts.FadeIn)
	opts.RemoteTimeout = lo.CoalesceOrEmpty(cfg.Preview.RemoteTimeout, opts.RemoteTimeout)
	opts.DownloadTimeout = lo.CoalesceOrEmpty(cfg.Preview.DownloadTimeout, opts.DownloadTimeout)
	opts.DownloadPoll = lo.CoalesceOrEmpty(cfg.Preview.DownloadPoll, opts.DownloadPoll)
	opts.RestoreOnNoSong = cfg.Preview.RestoreOnNoSong
	opts.Debug = debug
	return opts
}

// Close releases everything NewGame opened. It is safe on a partly built game.
func (g *Game) Close() {
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
	if g.engine != nil {
		g.engine.Close()
	}
	if g.redis != nil {
		if err := g.redis.Close(); err != nil {
			log.Printf("userdata: close: %v", err)
		}
	}
	if g.downloads != nil {
		g.downloads.Close()
	}
	if g.index != nil {
		if err := g.index.Close(); err != nil {
			log.Printf("download: close index: %v", err)
		}
	}
}

func (g *Game) Update() error {
	g.frames++

	g.reloadConfig()
	if err := g.handleInput(); err != nil {
		return err
	}
	g.page.UI.Update()
	g.sched.Update(frameDelta())

	if s := g.ctrl.Session(); g.titles.next(s, g.downloads.Downloading(s.TargetSongID)) {
		g.page.SetSongTitle(g.downloads.Title(s.TargetSongID))
	}
	return nil
}

func frameDelta() time.Duration {
	tps := ebiten.TPS()
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	return time.Second / time.Duration(tps)
}

func (g *Game) handleInput() error {
	prev := inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) || inpututil.IsKeyJustPressed(ebiten.KeyA)
	next := inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) || inpututil.IsKeyJustPressed(ebiten.KeyD)
	open := inpututil.IsKeyJustPressed(ebiten.KeyEnter)
	back := inpututil.IsKeyJustPressed(ebiten.KeyEscape)
	copyLabel := inpututil.IsKeyJustPressed(ebiten.KeyC)

	if gamepads := ebiten.GamepadIDs(); len(gamepads) > 0 {
		id := gamepads[0]
		prev = prev || inpututil.IsStandardGamepadButtonJustPressed(id, ebiten.StandardGamepadButtonLeftLeft)
		next = next || inpututil.IsStandardGamepadButtonJustPressed(id, ebiten.StandardGamepadButtonLeftRight)
		open = open || inpututil.IsStandardGamepadButtonJustPressed(id, ebiten.StandardGamepadButtonRightBottom)
		back = back || inpututil.IsStandardGamepadButtonJustPressed(id, ebiten.StandardGamepadButtonRightRight)
	}

	switch {
	case prev:
		g.cycle(-1)
	case next:
		g.cycle(1)
	}
	if open {
		g.openProfile()
	}
	if back {
		if !g.ctrl.Session().Open {
			return ebiten.Termination
		}
		g.closeProfile()
	}
	if copyLabel {
		g.copySongLabel()
	}
	return nil
}

// cycle moves the roster selection. With a profile open the neighbour is
// opened straight away, replacing the current session.
func (g *Game) cycle(step int) {
	if len(g.roster) == 0 {
		return
	}
	g.selected = (g.selected + step + len(g.roster)) % len(g.roster)
	g.page.SetRoster(g.rosterLabel())
	if g.ctrl.Session().Open {
		g.openProfile()
	}
}

func (g *Game) openProfile() {
	if len(g.roster) == 0 {
		return
	}
	p := g.roster[g.selected]
	g.titles.reset()
	g.page.Show(fmt.Sprintf("%s (#%d)", p.Name, p.AccountID))
	g.ctrl.Enter(preview.Subject{AccountID: p.AccountID, Name: p.Name})
}

func (g *Game) closeProfile() {
	g.ctrl.Exit()
	g.page.Hide()
}

func (g *Game) copySongLabel() {
	if !g.clipboard {
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(g.page.SongLabel()))
}

func (g *Game) reloadConfig() {
	if g.watcher == nil {
		return
	}
	select {
	case err, ok := <-g.watcher.Errors:
		if ok {
			log.Printf("config: watch: %v", err)
		}
	default:
	}
	changed := g.watcher.Drain()
	if len(changed) == 0 {
		return
	}

	cfg, err := loadConfig(g.flags)
	if err != nil {
		log.Printf("config: reload %s: %v", g.flags.configPath, err)
		return
	}
	g.live.Store(cfg)
	g.roster = cfg.Roster()
	if g.selected >= len(g.roster) {
		g.selected = 0
	}
	g.page.SetRoster(g.rosterLabel())
	log.Printf("config: reloaded after change to %s", strings.Join(changed, ", "))
}

func (g *Game) rosterLabel() string {
	if len(g.roster) == 0 {
		return "No profiles configured"
	}
	p := g.roster[g.selected]
	return fmt.Sprintf("< %s (#%d) >   %d/%d", p.Name, p.AccountID, g.selected+1, len(g.roster))
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.page.UI.Draw(screen)

	s := g.ctrl.Session()
	ebitenutil.DebugPrint(screen, fmt.Sprintf("Frames: %d    FPS: %.2f\nPhase: %s    Cached: %d    Downloading: %t\nTrack: %s",
		g.frames, ebiten.ActualFPS(), s.Phase, len(g.cache.Snapshot()),
		g.downloads.Downloading(s.TargetSongID), lo.CoalesceOrEmpty(g.engine.Track(musicSlot), "-")))
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
