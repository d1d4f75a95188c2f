package recorder

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"trader/internal/market"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrQueueFull      = errors.New("recorder queue full")
	ErrClosed         = errors.New("recorder closed")
	ErrNotStarted     = errors.New("recorder not started")
	ErrAlreadyStarted = errors.New("recorder already started")
)

// Writer appends accepted ticks as record lines to one file per UTC day.
type Writer struct {
	cfg Config
	ch  chan market.Tick
	wg  sync.WaitGroup
	err atomic.Value

	started uint32
	closed  uint32
	written atomic.Uint64
}

// NewWriter creates a writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create record dir")
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan market.Tick, cfg.QueueSize),
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes buffered lines.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Written returns the number of lines written so far.
func (w *Writer) Written() uint64 {
	return w.written.Load()
}

// TryAppend enqueues a tick without blocking.
func (w *Writer) TryAppend(t market.Tick) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	select {
	case w.ch <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Append enqueues a tick, waiting for room until ctx is done.
func (w *Writer) Append(ctx context.Context, t market.Tick) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	select {
	case w.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run(ctx context.Context) {
	var (
		file   *dayFile
		flushC <-chan time.Time
	)
	if w.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()
		flushC = ticker.C
	}

	defer func() {
		if err := file.close(); err != nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drain(&file)
			return
		case t, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.write(&file, t); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if err := file.flush(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) drain(file **dayFile) {
	for {
		select {
		case t, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.write(file, t); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) write(file **dayFile, t market.Tick) error {
	date := t.Date()
	if *file == nil || (*file).date != date {
		if err := (*file).close(); err != nil {
			return err
		}
		opened, err := w.open(date)
		if err != nil {
			return err
		}
		*file = opened
	}

	if _, err := (*file).buf.WriteString(market.FormatRecord(t)); err != nil {
		return errors.Wrap(err, "write record")
	}
	if err := (*file).buf.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "write record")
	}
	w.written.Add(1)
	return nil
}

func (w *Writer) open(date string) (*dayFile, error) {
	path := filepath.Join(w.cfg.Dir, FileName(w.cfg.FilePrefix, date))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	logs.Infof("recording ticks into %s", path)
	return &dayFile{
		date: date,
		file: f,
		buf:  bufio.NewWriterSize(f, w.cfg.BufferSize),
	}, nil
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	if w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}

type dayFile struct {
	date string
	file *os.File
	buf  *bufio.Writer
}

func (f *dayFile) flush() error {
	if f == nil {
		return nil
	}
	return f.buf.Flush()
}

func (f *dayFile) close() error {
	if f == nil {
		return nil
	}
	if err := f.buf.Flush(); err != nil {
		_ = f.file.Close()
		return err
	}
	if err := f.file.Sync(); err != nil {
		_ = f.file.Close()
		return err
	}
	return f.file.Close()
}
