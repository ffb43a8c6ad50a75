package mixer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/milk9111/profilesong/preview"
)

const SampleRate = 44100

// Player is the part of *audio.Player the engine drives.
type Player interface {
	preview.Channel
	Play()
	Pause()
	SetPosition(offset time.Duration) error
	Close() error
}

type track struct {
	path   string
	player Player
	file   io.Closer
}

// Engine plays one streamed track per slot on an ebiten audio context.
type Engine struct {
	sampleRate int
	newPlayer  func(src io.Reader) (Player, error)
	tracks     map[int]*track
}

func NewEngine(ctx *audio.Context) *Engine {
	if ctx == nil {
		ctx = audio.CurrentContext()
	}
	if ctx == nil {
		ctx = audio.NewContext(SampleRate)
	}
	return newEngine(ctx.SampleRate(), func(src io.Reader) (Player, error) {
		return ctx.NewPlayer(src)
	})
}

func newEngine(sampleRate int, newPlayer func(src io.Reader) (Player, error)) *Engine {
	return &Engine{
		sampleRate: sampleRate,
		newPlayer:  newPlayer,
		tracks:     make(map[int]*track),
	}
}

// ActiveChannel returns the player loaded in slot, or nil.
func (e *Engine) ActiveChannel(slot int) preview.Channel {
	t, ok := e.tracks[slot]
	if !ok || t.player == nil {
		return nil
	}
	return t.player
}

// Track returns the path loaded in slot.
func (e *Engine) Track(slot int) string {
	if t, ok := e.tracks[slot]; ok {
		return t.path
	}
	return ""
}

// Play streams path into slot, replacing whatever was there.
func (e *Engine) Play(path string, loop bool, offset time.Duration, slot int) error {
	e.Stop(slot)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mixer: open %q: %w", path, err)
	}
	stream, err := e.decode(path, f)
	if err != nil {
		_ = f.Close()
		return err
	}

	var src io.Reader = stream
	if loop {
		src = audio.NewInfiniteLoop(stream, stream.Length())
	}
	player, err := e.newPlayer(src)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("mixer: new player %q: %w", path, err)
	}
	if offset > 0 {
		if err := player.SetPosition(offset); err != nil {
			_ = player.Close()
			_ = f.Close()
			return fmt.Errorf("mixer: seek %q: %w", path, err)
		}
	}
	player.Play()

	e.tracks[slot] = &track{path: path, player: player, file: f}
	return nil
}

func (e *Engine) Stop(slot int) {
	t, ok := e.tracks[slot]
	if !ok {
		return
	}
	delete(e.tracks, slot)
	if t.player != nil {
		t.player.Pause()
		_ = t.player.Close()
	}
	if t.file != nil {
		_ = t.file.Close()
	}
}

// Close stops every slot.
func (e *Engine) Close() {
	for slot := range e.tracks {
		e.Stop(slot)
	}
}

type lengthStream interface {
	io.ReadSeeker
	Length() int64
}

func (e *Engine) decode(path string, r io.ReadSeeker) (lengthStream, error) {
	rate := e.sampleRate
	switch formatOf(path) {
	case "mp3":
		s, err := mp3.DecodeWithSampleRate(rate, r)
		if err != nil {
			return nil, fmt.Errorf("mixer: decode mp3 %q: %w", path, err)
		}
		return s, nil
	case "ogg":
		s, err := vorbis.DecodeWithSampleRate(rate, r)
		if err != nil {
			return nil, fmt.Errorf("mixer: decode ogg %q: %w", path, err)
		}
		return s, nil
	case "wav":
		s, err := wav.DecodeWithSampleRate(rate, r)
		if err != nil {
			return nil, fmt.Errorf("mixer: decode wav %q: %w", path, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("mixer: unsupported audio format %q", path)
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "mp3"
	case ".ogg", ".oga":
		return "ogg"
	case ".wav":
		return "wav"
	default:
		return ""
	}
}
