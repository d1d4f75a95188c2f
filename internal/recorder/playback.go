package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"trader/internal/market"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// PlaybackConfig controls record playback. Path is a record file or a
// directory of record files, played in name order.
type PlaybackConfig struct {
	Path       string  `yaml:"path"`
	FilePrefix string  `yaml:"file_prefix"`
	Speed      float64 `yaml:"speed"`
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays record files in order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Path == "" {
		return errors.Wrap(exception.ErrConfigInvalid, "playback: path is empty")
	}
	if c.Speed < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "playback: speed must be >= 0")
	}
	return nil
}

// Run replays ticks and calls handler for each. Speed 0 replays without
// pacing; otherwise tick gaps are slept divided by Speed.
func (p *Playback) Run(ctx context.Context, handler func(market.Tick) error) error {
	if handler == nil {
		return errors.Wrap(exception.ErrNilInstance, "playback handler is nil")
	}
	files, err := p.Files()
	if err != nil {
		return err
	}

	var prev time.Time
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prev); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every tick into memory.
func (p *Playback) Load(ctx context.Context) ([]market.Tick, error) {
	var ticks []market.Tick
	speed := p.cfg.Speed
	p.cfg.Speed = 0
	defer func() { p.cfg.Speed = speed }()

	err := p.Run(ctx, func(t market.Tick) error {
		ticks = append(ticks, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticks, nil
}

// Files lists the record files to play.
func (p *Playback) Files() ([]string, error) {
	info, err := os.Stat(p.cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "stat record path")
	}
	if !info.IsDir() {
		return []string{p.cfg.Path}, nil
	}

	entries, err := os.ReadDir(p.cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "read record dir")
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if p.cfg.FilePrefix != "" && !strings.HasPrefix(name, p.cfg.FilePrefix+"-") {
			continue
		}
		if !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Path, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(market.Tick) error, prev *time.Time) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	reader := NewReader(file)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}

		if err := p.pace(ctx, t.Time, prev); err != nil {
			return err
		}
		if err := handler(t); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, current time.Time, prev *time.Time) error {
	if p.cfg.Speed <= 0 || current.IsZero() {
		return nil
	}
	if !prev.IsZero() {
		if delta := current.Sub(*prev); delta > 0 {
			if err := p.clock.Sleep(ctx, time.Duration(float64(delta)/p.cfg.Speed)); err != nil {
				return err
			}
		}
	}
	*prev = current
	return nil
}
