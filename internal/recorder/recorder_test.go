package recorder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trader/internal/market"
	"trader/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

var day0 = time.Date(2017, 8, 1, 23, 0, 0, 0, time.UTC)

func sampleTicks() []market.Tick {
	return []market.Tick{
		{Time: day0, BidSize: 120, BidPrice: 2750.5, AskPrice: 2751, AskSize: 3400, PrevClose: 2700},
		{Time: day0.Add(30 * time.Minute), BidSize: 0, BidPrice: -1, AskPrice: 2752, AskSize: 10, PrevClose: 2700},
		{Time: day0.Add(90 * time.Minute), BidSize: 5, BidPrice: 2760, AskPrice: 2760.5, AskSize: 7, PrevClose: 2755.25},
	}
}

func TestWriterPlaybackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir})
	require.NoError(t, err)
	require.True(t, errors.Is(w.TryAppend(sampleTicks()[0]), ErrNotStarted))

	require.NoError(t, w.Start(context.Background()))
	require.True(t, errors.Is(w.Start(context.Background()), ErrAlreadyStarted))
	for _, tick := range sampleTicks() {
		require.NoError(t, w.TryAppend(tick))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(3), w.Written())
	assert.True(t, errors.Is(w.TryAppend(sampleTicks()[0]), ErrClosed))

	_, err = os.Stat(filepath.Join(dir, FileName(defaultFilePrefix, "2017-08-01")))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, FileName(defaultFilePrefix, "2017-08-02")))
	require.NoError(t, err)

	p, err := NewPlayback(PlaybackConfig{Path: dir, FilePrefix: defaultFilePrefix})
	require.NoError(t, err)
	got, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleTicks(), got)
}

func TestPlaybackSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.txt")
	content := strings.Join([]string{
		"# bitmex XBTUSD",
		"2017-08-01T00:00:00.000Z 100 2700.5 2701 200 2690",
		"",
		"2017-08-01T00:05:00.000Z None None 2702 None None",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := NewPlayback(PlaybackConfig{Path: path})
	require.NoError(t, err)

	var ticks []market.Tick
	require.NoError(t, p.Run(context.Background(), func(tick market.Tick) error {
		ticks = append(ticks, tick)
		return nil
	}))
	require.Len(t, ticks, 2)
	assert.Equal(t, 2700.5, ticks[0].BidPrice)
	assert.False(t, ticks[1].HasQuote())
	assert.Equal(t, int64(-1), ticks[1].BidSize)
	assert.False(t, ticks[1].Complete())
}

func TestPlaybackMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("2017-08-01T00:00:00.000Z 100 2700.5\n"), 0o644))

	p, err := NewPlayback(PlaybackConfig{Path: path})
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTickMalformed))
}

type recordingClock struct {
	slept []time.Duration
}

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

func TestPlaybackPacing(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for _, tick := range sampleTicks() {
		require.NoError(t, w.TryAppend(tick))
	}
	require.NoError(t, w.Close())

	clock := &recordingClock{}
	p, err := NewPlayback(PlaybackConfig{Path: dir, Speed: 60})
	require.NoError(t, err)
	p.WithClock(clock)
	require.NoError(t, p.Run(context.Background(), func(market.Tick) error { return nil }))
	assert.Equal(t, []time.Duration{30 * time.Second, time.Minute}, clock.slept)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc string
		cfg  Config
		ok   bool
	}{
		{"defaults", DefaultConfig("records"), true},
		{"empty dir", Config{QueueSize: 1, BufferSize: 1}, false},
		{"negative flush", Config{Dir: "x", QueueSize: 1, BufferSize: 1, FlushInterval: -time.Second}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, exception.ErrConfigInvalid))
		})
	}

	_, err := NewPlayback(PlaybackConfig{})
	assert.True(t, errors.Is(err, exception.ErrConfigInvalid))
}

func TestWriterAppendWaits(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, QueueSize: 1})
	require.NoError(t, err)
	ctx := context.Background()
	require.True(t, errors.Is(w.Append(ctx, sampleTicks()[0]), ErrNotStarted))

	require.NoError(t, w.Start(ctx))
	for i := 0; i < 50; i++ {
		for _, tick := range sampleTicks() {
			require.NoError(t, w.Append(ctx, tick))
		}
	}
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(150), w.Written())
}
