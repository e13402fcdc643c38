package stream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pipelined/flow"
)

// DynamicImage is a growing sequence of frames filled by a Streamer. The
// producer appends frames, any number of consumers read them. Frames are
// shared with consumers and must not be modified.
//
// DynamicImage implements flow.Output: its version is the number of
// appended frames, so downstream stages are executed again every time a
// new frame arrives.
type DynamicImage struct {
	update func(context.Context) error
	// alive is closed when the streamer is closed.
	alive <-chan struct{}

	mu       sync.RWMutex
	frames   []*flow.Frame
	ended    bool
	err      error
	released bool
	// notify is closed and replaced on every change.
	notify chan struct{}

	cursor Cursor
}

func newDynamicImage(update func(context.Context) error, alive <-chan struct{}) *DynamicImage {
	img := &DynamicImage{
		update: update,
		alive:  alive,
		notify: make(chan struct{}),
	}
	img.cursor.image = img
	return img
}

// broadcast wakes up all waiters. Must be called with write lock held.
func (img *DynamicImage) broadcast() {
	close(img.notify)
	img.notify = make(chan struct{})
}

// AddFrame appends the frame. It's called by the producer only.
// flow.ErrReleased is returned if consumer released the buffer and
// flow.ErrStopped if the stream has ended.
func (img *DynamicImage) AddFrame(f *flow.Frame) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.released {
		return flow.ErrReleased
	}
	if img.ended {
		return fmt.Errorf("%w: stream has ended", flow.ErrStopped)
	}
	img.frames = append(img.frames, f)
	img.broadcast()
	return nil
}

// end marks the end of stream. Only the first call has effect.
func (img *DynamicImage) end(err error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.ended || img.released {
		return
	}
	img.ended = true
	img.err = err
	img.broadcast()
}

// Update updates the streamer which fills the image. If the streamer is
// closed, the image is not updated anymore and flow.ErrStopped is
// returned only if it has no frames.
func (img *DynamicImage) Update(ctx context.Context) error {
	if !img.Alive() {
		if img.Len() == 0 {
			return flow.ErrStopped
		}
		return nil
	}
	return img.update(ctx)
}

// Alive returns false after the streamer is closed.
func (img *DynamicImage) Alive() bool {
	select {
	case <-img.alive:
		return false
	default:
		return true
	}
}

// Frame returns the latest appended frame.
func (img *DynamicImage) Frame() (*flow.Frame, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	if img.released {
		return nil, flow.ErrReleased
	}
	if len(img.frames) == 0 {
		return nil, flow.ErrNoData
	}
	return img.frames[len(img.frames)-1], nil
}

// CurrentFrame is the same as Frame.
func (img *DynamicImage) CurrentFrame() (*flow.Frame, error) {
	return img.Frame()
}

// At returns the frame at provided position.
func (img *DynamicImage) At(i int) (*flow.Frame, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	if img.released {
		return nil, flow.ErrReleased
	}
	if i < 0 || i >= len(img.frames) {
		return nil, fmt.Errorf("%w: frame %d of %d", flow.ErrNoData, i, len(img.frames))
	}
	return img.frames[i], nil
}

// Len returns number of appended frames.
func (img *DynamicImage) Len() int {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return len(img.frames)
}

// Version returns number of appended frames.
func (img *DynamicImage) Version() uint64 {
	return uint64(img.Len())
}

// HasReachedEnd returns true if no more frames will be appended.
func (img *DynamicImage) HasReachedEnd() bool {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.ended
}

// Err returns the failure which ended the stream. It's nil if stream has
// reached its natural end or is still running.
func (img *DynamicImage) Err() error {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.err
}

// Release drops all frames. Producer stops at the next append and
// blocked consumers are woken up with flow.ErrReleased.
func (img *DynamicImage) Release() {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.released {
		return
	}
	img.released = true
	img.frames = nil
	img.broadcast()
}

// Advance returns the next frame of the default cursor without blocking.
func (img *DynamicImage) Advance() (*flow.Frame, bool) {
	return img.cursor.Advance()
}

// Next returns the next frame of the default cursor. It blocks until the
// frame is appended. io.EOF is returned when all frames were read and
// the stream has ended.
func (img *DynamicImage) Next(ctx context.Context) (*flow.Frame, error) {
	return img.cursor.Next(ctx)
}

// NewCursor returns a cursor positioned at the first frame. Every
// consumer which reads frames one by one should have its own cursor.
func (img *DynamicImage) NewCursor() *Cursor {
	return &Cursor{image: img}
}

// Cursor reads frames of the image in order.
type Cursor struct {
	image *DynamicImage

	mu  sync.Mutex
	pos int
}

// Advance returns the next frame if it's available.
func (c *Cursor) Advance() (*flow.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img := c.image
	img.mu.RLock()
	defer img.mu.RUnlock()
	if img.released || c.pos >= len(img.frames) {
		return nil, false
	}
	f := img.frames[c.pos]
	c.pos++
	return f, true
}

// Next returns the next frame and blocks until it's available. The cursor
// is locked only while its position is read and advanced, so concurrent
// calls respect their own contexts.
func (c *Cursor) Next(ctx context.Context) (*flow.Frame, error) {
	img := c.image
	for {
		c.mu.Lock()
		img.mu.RLock()
		switch {
		case img.released:
			img.mu.RUnlock()
			c.mu.Unlock()
			return nil, flow.ErrReleased
		case c.pos < len(img.frames):
			f := img.frames[c.pos]
			c.pos++
			img.mu.RUnlock()
			c.mu.Unlock()
			return f, nil
		case img.ended:
			img.mu.RUnlock()
			c.mu.Unlock()
			return nil, io.EOF
		}
		notify := img.notify
		img.mu.RUnlock()
		c.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Position returns number of frames read by the cursor.
func (c *Cursor) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}
