// Package test contains helper functions useful for testing flow packages.
package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/codec"
	"github.com/pipelined/flow/stream"
)

// FrameSize is the width and height of sequence frames.
const FrameSize = 2

// Value returns the sample value of sequence frame with provided index.
// Values are exactly representable in 8 bit images.
func Value(index int) float64 {
	return float64(index%256) / 255
}

// Frame returns a single channel frame filled with value.
func Frame(t testing.TB, width, height int, value float64) *flow.Frame {
	t.Helper()
	samples := make([]float64, width*height)
	for i := range samples {
		samples[i] = value
	}
	f, err := flow.NewFrame(flow.Props{Width: width, Height: height, Channels: 1}, samples)
	require.NoError(t, err)
	return f
}

// WriteFrame encodes the frame into path. Codec is selected by extension.
func WriteFrame(t testing.TB, path string, f *flow.Frame) {
	t.Helper()
	encode, err := codec.Default().Encoder(path)
	require.NoError(t, err)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, encode(file, f))
}

// Sequence writes PNG frames with provided indices into a temporary
// directory and returns full path pattern. File names are rendered with
// stream.Filename, frame with index i is filled with Value(i).
func Sequence(t testing.TB, pattern string, zeroFill uint, indices ...uint) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), pattern)
	for _, i := range indices {
		WriteFrame(t, stream.Filename(p, i, zeroFill), Frame(t, FrameSize, FrameSize, Value(int(i))))
	}
	return p
}

// Wav writes a mono wav file and returns its path.
func Wav(t testing.TB, name string, sampleRate int, samples ...float64) string {
	t.Helper()
	f, err := flow.NewFrame(
		flow.Props{Width: len(samples), Height: 1, Channels: 1, SampleRate: sampleRate},
		samples,
	)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	WriteFrame(t, path, f)
	return path
}
