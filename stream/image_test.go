package stream

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/flow"
)

func frame(t *testing.T, v float64) *flow.Frame {
	f, err := flow.NewFrame(flow.Props{Width: 1, Height: 1, Channels: 1}, []float64{v})
	require.NoError(t, err)
	return f
}

func newTestImage() *DynamicImage {
	return newDynamicImage(func(context.Context) error { return nil }, make(chan struct{}))
}

func TestImageAppend(t *testing.T) {
	img := newTestImage()
	_, err := img.Frame()
	assert.ErrorIs(t, err, flow.ErrNoData)
	_, err = img.At(0)
	assert.ErrorIs(t, err, flow.ErrNoData)

	for i := 0; i < 3; i++ {
		require.NoError(t, img.AddFrame(frame(t, float64(i))))
		assert.Equal(t, uint64(i+1), img.Version())
		f, err := img.Frame()
		require.NoError(t, err)
		assert.Equal(t, []float64{float64(i)}, f.Samples())
	}
	f, err := img.At(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, f.Samples())

	img.end(nil)
	img.end(flow.ErrStopped)
	assert.True(t, img.HasReachedEnd())
	assert.NoError(t, img.Err())
	assert.ErrorIs(t, img.AddFrame(frame(t, 3)), flow.ErrStopped)
	assert.Equal(t, 3, img.Len())
}

func TestImageConsumers(t *testing.T) {
	const frames = 10
	img := newTestImage()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	received := make([][]float64, 3)
	for i := range received {
		c := img.NewCursor()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				f, err := c.Next(ctx)
				if err == io.EOF {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				received[i] = append(received[i], f.Samples()[0])
			}
		}(i)
	}
	for i := 0; i < frames; i++ {
		require.NoError(t, img.AddFrame(frame(t, float64(i))))
	}
	img.end(nil)
	wg.Wait()

	for _, r := range received {
		require.Len(t, r, frames)
		for i, v := range r {
			assert.Equal(t, float64(i), v)
		}
	}
}

func TestImageNextCanceled(t *testing.T) {
	img := newTestImage()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := img.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImageRelease(t *testing.T) {
	img := newTestImage()
	require.NoError(t, img.AddFrame(frame(t, 0)))
	done := make(chan error)
	go func() {
		_, err := img.Next(context.Background())
		if err == nil {
			_, err = img.Next(context.Background())
		}
		done <- err
	}()
	img.Release()
	img.Release()
	assert.ErrorIs(t, <-done, flow.ErrReleased)
	assert.ErrorIs(t, img.AddFrame(frame(t, 1)), flow.ErrReleased)
	assert.Equal(t, 0, img.Len())
	_, ok := img.Advance()
	assert.False(t, ok)
	// released image doesn't end.
	img.end(nil)
	assert.False(t, img.HasReachedEnd())
}

func TestCursorWaitersRespectContext(t *testing.T) {
	img := newTestImage()
	first := make(chan error, 1)
	go func() {
		_, err := img.Next(context.Background())
		first <- err
	}()
	// let the first consumer block on the empty image.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	second := make(chan error, 1)
	go func() {
		_, err := img.Next(ctx)
		second <- err
	}()

	advanced := make(chan bool, 1)
	go func() {
		_, ok := img.Advance()
		advanced <- ok
	}()
	select {
	case ok := <-advanced:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("advance is blocked by waiting consumer")
	}

	select {
	case err := <-second:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("next ignores its deadline")
	}

	require.NoError(t, img.AddFrame(frame(t, 0)))
	assert.NoError(t, <-first)
}
