// Package stream loads numbered files in the background.
//
// Streamer is a stage without inputs. The first execution starts a
// producer goroutine which renders the frame index into the filename
// pattern, loads the file and appends the frame to a DynamicImage. The
// execution returns as soon as the first frame is buffered, consumers read
// the rest while it's being loaded:
//
//	s := stream.New(flow.WithDevices(devices))
//	if err := s.SetFilenameFormat("frames/frame_#.png"); err != nil {
//	    ...
//	}
//	s.SetZeroFilling(4)
//	defer s.Close()
//
//	img := s.Output()
//	if err := img.Update(ctx); err != nil {
//	    ...
//	}
//	for {
//	    f, err := img.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// The stream ends at the first missing file. If looping is enabled, the
// producer starts over from the start number instead. A missing first file
// is a failure of the execution.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/codec"
	"github.com/pipelined/flow/device"
	"github.com/pipelined/flow/importer"
)

// Placeholder is replaced by the frame index in filename patterns.
const Placeholder = "#"

// Filename replaces the first placeholder in pattern with the index. The
// index is left-padded with zeros to zeroFill digits.
func Filename(pattern string, index, zeroFill uint) string {
	return strings.Replace(pattern, Placeholder, fmt.Sprintf("%0*d", int(zeroFill), index), 1)
}

// Streamer is a stage which produces frames from numbered files in its own
// goroutine.
type Streamer struct {
	*flow.Process
	image *DynamicImage

	mu       sync.Mutex
	pattern  string
	start    uint
	zeroFill uint
	looping  bool
	codecs   *codec.Registry
	loops    int
	started  bool
	closed   bool
	cancel   context.CancelFunc

	// ready is closed when the first frame is buffered or the producer
	// has failed before that. readyErr is the outcome.
	ready     chan struct{}
	readyOnce sync.Once
	readyErr  error

	alive     chan struct{}
	aliveOnce sync.Once
	done      chan struct{}
}

// settings is a snapshot of configuration taken when producer starts.
type settings struct {
	pattern  string
	start    uint
	zeroFill uint
	looping  bool
	codecs   *codec.Registry
	device   *device.Device
}

// New returns unconfigured streamer. Filename format must be set before
// the first execution.
func New(options ...flow.Option) *Streamer {
	s := &Streamer{
		codecs: codec.Default(),
		ready:  make(chan struct{}),
		alive:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.Process = flow.NewProcess(s, options...)
	s.image = newDynamicImage(s.Process.Update, s.alive)
	return s
}

// Output returns the buffer filled by streamer.
func (s *Streamer) Output() flow.Output {
	return s.image
}

// Image returns the buffer filled by streamer.
func (s *Streamer) Image() *DynamicImage {
	return s.image
}

// SetFilenameFormat sets the pattern of file paths. It must contain the
// placeholder which is replaced by the frame index.
func (s *Streamer) SetFilenameFormat(pattern string) error {
	if !strings.Contains(pattern, Placeholder) {
		return fmt.Errorf("%w: filename format %q has no %q placeholder", flow.ErrConfiguration, pattern, Placeholder)
	}
	s.mu.Lock()
	s.pattern = pattern
	s.mu.Unlock()
	s.Modified()
	return nil
}

// FilenameFormat returns the pattern of file paths.
func (s *Streamer) FilenameFormat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

// SetStartNumber sets the index of the first frame.
func (s *Streamer) SetStartNumber(n uint) {
	s.mu.Lock()
	s.start = n
	s.mu.Unlock()
	s.Modified()
}

// SetZeroFilling sets the minimal number of digits of the index.
func (s *Streamer) SetZeroFilling(n uint) {
	s.mu.Lock()
	s.zeroFill = n
	s.mu.Unlock()
	s.Modified()
}

// EnableLooping makes streamer start over when the stream ends.
func (s *Streamer) EnableLooping() {
	s.setLooping(true)
}

// DisableLooping makes streamer stop when the stream ends.
func (s *Streamer) DisableLooping() {
	s.setLooping(false)
}

func (s *Streamer) setLooping(v bool) {
	s.mu.Lock()
	s.looping = v
	s.mu.Unlock()
	s.Modified()
}

// SetCodecs replaces codec registry used to decode files.
func (s *Streamer) SetCodecs(r *codec.Registry) {
	s.mu.Lock()
	s.codecs = r
	s.mu.Unlock()
	s.Modified()
}

// NrOfFrames returns number of buffered frames.
func (s *Streamer) NrOfFrames() int {
	return s.image.Len()
}

// HasReachedEnd returns true if producer won't append frames anymore.
func (s *Streamer) HasReachedEnd() bool {
	return s.image.HasReachedEnd()
}

// Loops returns how many times the stream has started over.
func (s *Streamer) Loops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops
}

// Execute starts the producer if it's not running and waits until the
// first frame is buffered. Configuration changes made after the producer
// has started have no effect on it.
func (s *Streamer) Execute(ctx context.Context) error {
	if err := s.run(); err != nil {
		return err
	}
	select {
	case <-s.ready:
		return s.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Streamer) run() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.closed {
		return flow.ErrStopped
	}
	if s.pattern == "" {
		return fmt.Errorf("%w: filename format is not set", flow.ErrConfiguration)
	}
	cfg := settings{
		pattern:  s.pattern,
		start:    s.start,
		zeroFill: s.zeroFill,
		looping:  s.looping,
		codecs:   s.codecs,
		device:   s.Device(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true
	go s.produce(ctx, cfg)
	return nil
}

// signal releases the first frame wait. Only the first outcome is kept.
func (s *Streamer) signal(err error) {
	s.readyOnce.Do(func() {
		s.readyErr = err
		close(s.ready)
	})
}

// Stop requests the producer to stop and returns immediately. It's safe
// to call from any goroutine, including codecs called by the producer.
func (s *Streamer) Stop() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.aliveOnce.Do(func() {
		close(s.alive)
	})
	s.image.end(flow.ErrStopped)
}

// Close stops the producer and waits until it exits. Codecs run outside
// of the producer loop, so Close can be called from them as well. A codec
// call in progress is not waited for, its result is dropped.
func (s *Streamer) Close() error {
	s.Stop()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
	return nil
}

// result is the outcome of a single load.
type result struct {
	kind  resultKind
	frame *flow.Frame
	err   error
}

type resultKind int

const (
	loaded resultKind = iota
	endOfStream
	failed
)

func (s *Streamer) produce(ctx context.Context, cfg settings) {
	defer close(s.done)
	defer s.signal(flow.ErrStopped)

	imp := importer.New(
		flow.WithName(s.Name()+" importer"),
		flow.WithLogger(s.Logger()),
		flow.WithDevice(cfg.device),
	)
	imp.SetCodecs(cfg.codecs)

	var (
		index     = cfg.start
		produced  int
		restarted bool
	)
	for {
		if ctx.Err() != nil {
			return
		}
		filename := Filename(cfg.pattern, index, cfg.zeroFill)
		r, ok := await(ctx, imp, filename)
		if !ok || ctx.Err() != nil {
			return
		}
		switch r.kind {
		case loaded:
			if err := s.image.AddFrame(r.frame); err != nil {
				s.Logger().Debug(fmt.Sprintf("%s stops: %v", s.Name(), err))
				s.signal(err)
				return
			}
			s.Meter().Frame()
			produced++
			restarted = false
			index++
			s.signal(nil)
		case endOfStream:
			switch {
			case produced == 0:
				err := fmt.Errorf("first frame %s: %w", filename, r.err)
				s.Logger().Warn(fmt.Sprintf("%s failed: %v", s.Name(), err))
				s.image.end(err)
				s.signal(err)
				return
			case cfg.looping && !restarted:
				s.mu.Lock()
				s.loops++
				s.mu.Unlock()
				s.Logger().Debug(fmt.Sprintf("%s starts over after %s", s.Name(), filename))
				index = cfg.start
				restarted = true
			default:
				s.Logger().Info(fmt.Sprintf("%s reached end of stream at %s", s.Name(), filename))
				s.image.end(nil)
				return
			}
		case failed:
			s.Logger().Warn(fmt.Sprintf("%s failed: %v", s.Name(), r.err))
			s.image.end(r.err)
			s.signal(r.err)
			return
		}
	}
}

// await runs load in its own goroutine and waits for the result. False is
// returned if the producer was stopped before the load finished.
func await(ctx context.Context, imp *importer.Importer, filename string) (result, bool) {
	loaded := make(chan result, 1)
	go func() {
		loaded <- load(ctx, imp, filename)
	}()
	select {
	case r := <-loaded:
		return r, true
	case <-ctx.Done():
		return result{}, false
	}
}

// load runs importer for the filename. Missing file is the end of stream,
// the caller decides what it means.
func load(ctx context.Context, imp *importer.Importer, filename string) result {
	imp.SetFilename(filename)
	if err := imp.Output().Update(ctx); err != nil {
		if errors.Is(err, flow.ErrNotFound) {
			return result{kind: endOfStream, err: err}
		}
		return result{kind: failed, err: err}
	}
	f, err := imp.Output().Frame()
	if err != nil {
		return result{kind: failed, err: err}
	}
	return result{kind: loaded, frame: f}
}
