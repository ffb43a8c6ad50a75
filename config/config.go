package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile    = "profilesong.yaml"
	SongSettingKey = "profile-song-id"
	envPrefix      = "PROFILESONG_"
	menuLoopBase   = "menuLoop"
)

//go:embed default.yaml
var defaultYAML []byte

type PreviewConfig struct {
	FadeOut         time.Duration `yaml:"fade_out"`
	FadeIn          time.Duration `yaml:"fade_in"`
	RemoteTimeout   time.Duration `yaml:"remote_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	DownloadPoll    time.Duration `yaml:"download_poll"`
	RestoreOnNoSong bool          `yaml:"restore_on_no_song"`
}

// ProfileConfig is a profile the host can open. SongID seeds the offline
// user-data store.
type ProfileConfig struct {
	AccountID int    `yaml:"account_id"`
	Name      string `yaml:"name"`
	SongID    int64  `yaml:"song_id"`
}

type Config struct {
	AccountID     int    `yaml:"account_id"`
	ProfileSongID int64  `yaml:"profile_song_id"`
	Namespace     string `yaml:"namespace"`

	AssetsDir   string `yaml:"assets_dir"`
	MenuTrack   string `yaml:"menu_track"`
	CacheDir    string `yaml:"cache_dir"`
	IndexPath   string `yaml:"index_path"`
	SongBaseURL string `yaml:"song_base_url"`
	RedisURL    string `yaml:"redis_url"`

	Preview  PreviewConfig   `yaml:"preview"`
	Profiles []ProfileConfig `yaml:"profiles"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal defaults: %w", err)
	}
	return &cfg, nil
}

// Load reads path over the embedded defaults, then applies .env files and
// PROFILESONG_* environment variables. A missing file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	dotenv, err := readEnvFiles(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(dotenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readEnvFiles parses the existing files without touching the process
// environment, so every Load sees the files as they are now. Later files win.
func readEnvFiles(files ...string) (map[string]string, error) {
	existing := lo.Filter(files, func(f string, _ int) bool { return fileExists(f) })
	if len(existing) == 0 {
		return nil, nil
	}
	vars, err := godotenv.Read(existing...)
	if err != nil {
		return nil, fmt.Errorf("config: read env files: %w", err)
	}
	return vars, nil
}

// applyEnv applies PROFILESONG_* overrides. The process environment beats
// the .env files.
func (c *Config) applyEnv(dotenv map[string]string) error {
	lookup := func(name string) (string, bool) {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			v, ok = dotenv[envPrefix+name]
		}
		return strings.TrimSpace(v), ok
	}

	if v, ok := lookup("REDIS_URL"); ok {
		c.RedisURL = v
	}
	if v, ok := lookup("SONG_BASE_URL"); ok {
		c.SongBaseURL = v
	}
	if v, ok := lookup("ACCOUNT_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sACCOUNT_ID: %w", envPrefix, err)
		}
		c.AccountID = id
	}
	if v, ok := lookup("SONG_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sSONG_ID: %w", envPrefix, err)
		}
		c.ProfileSongID = id
	}
	return nil
}

// Int64 serves integer settings by key.
func (c *Config) Int64(key string) int64 {
	switch key {
	case SongSettingKey:
		return c.ProfileSongID
	default:
		return 0
	}
}

func (c *Config) CurrentAccountID() (int, bool) {
	return c.AccountID, c.AccountID > 0
}

// Roster lists the profiles the host can open: the local account first, then
// the configured profiles in file order, without duplicates or invalid ids.
func (c *Config) Roster() []ProfileConfig {
	roster := make([]ProfileConfig, 0, len(c.Profiles)+1)
	if c.AccountID > 0 {
		roster = append(roster, ProfileConfig{AccountID: c.AccountID, Name: "You", SongID: c.ProfileSongID})
	}
	for _, p := range c.Profiles {
		if p.AccountID > 0 {
			roster = append(roster, p)
		}
	}
	return lo.UniqBy(roster, func(p ProfileConfig) int { return p.AccountID })
}

// ResolveMenuTrack returns the configured menu track if it exists, otherwise
// menuLoop.mp3 or menuLoop.ogg from the assets dir, otherwise "".
func (c *Config) ResolveMenuTrack() string {
	if c.MenuTrack != "" && fileExists(c.MenuTrack) {
		return c.MenuTrack
	}
	for _, ext := range []string{".mp3", ".ogg"} {
		p := filepath.Join(c.AssetsDir, menuLoopBase+ext)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Live holds the current config and is swapped on reload. It serves the
// settings and identity lookups of a running session.
type Live struct {
	cur atomic.Pointer[Config]
}

func NewLive(cfg *Config) *Live {
	l := &Live{}
	l.Store(cfg)
	return l
}

func (l *Live) Load() *Config {
	return l.cur.Load()
}

func (l *Live) Store(cfg *Config) {
	if cfg == nil {
		return
	}
	l.cur.Store(cfg)
}

func (l *Live) Int64(key string) int64 {
	return l.Load().Int64(key)
}

func (l *Live) CurrentAccountID() (int, bool) {
	return l.Load().CurrentAccountID()
}
