package codec_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/codec"
	"github.com/pipelined/flow/test"
)

func decode(t *testing.T, path string) (flow.Props, []float64, error) {
	t.Helper()
	d, err := codec.Default().Decoder(path)
	require.NoError(t, err)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	return d(f)
}

func TestLookup(t *testing.T) {
	var tests = []struct {
		path string
		err  error
	}{
		{path: "a.png"},
		{path: "a.PNG"},
		{path: "dir/a.jpeg"},
		{path: "a.jpg"},
		{path: "a.gif"},
		{path: "a.wav"},
		{path: "a.img", err: flow.ErrFormat},
		{path: "a", err: flow.ErrFormat},
	}
	for _, tt := range tests {
		_, err := codec.Default().Lookup(tt.path)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.path)
		} else {
			assert.NoError(t, err, tt.path)
		}
	}
}

func TestRegister(t *testing.T) {
	r := codec.NewRegistry()
	r.Register(codec.Codec{Decode: codec.PNG().Decode}, "IMG", ".raw")
	assert.Equal(t, []string{".img", ".raw"}, r.Extensions())

	_, err := r.Decoder("a.img")
	assert.NoError(t, err)
	_, err = r.Encoder("a.img")
	assert.ErrorIs(t, err, flow.ErrFormat)
}

func TestGray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gray.png")
	test.WriteFrame(t, path, test.Frame(t, 3, 2, test.Value(51)))

	props, samples, err := decode(t, path)
	require.NoError(t, err)
	assert.Equal(t, flow.Props{Width: 3, Height: 2, Channels: 1}, props)
	require.Len(t, samples, 6)
	for _, s := range samples {
		assert.InDelta(t, test.Value(51), s, 1e-6)
	}
}

func TestGIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.gif")
	test.WriteFrame(t, path, test.Frame(t, 3, 2, 1))

	props, samples, err := decode(t, path)
	require.NoError(t, err)
	// paletted images are decoded as RGBA.
	assert.Equal(t, flow.Props{Width: 3, Height: 2, Channels: 4}, props)
	assert.Len(t, samples, props.Size())
}

func TestRGBA(t *testing.T) {
	samples := []float64{
		1, 0, 0, 1, 0, 1, 0, 1,
		0, 0, 1, 1, 1, 1, 1, 0.6,
	}
	f, err := flow.NewFrame(flow.Props{Width: 2, Height: 2, Channels: 4}, samples)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "rgba.png")
	test.WriteFrame(t, path, f)

	props, decoded, err := decode(t, path)
	require.NoError(t, err)
	assert.Equal(t, f.Props(), props)
	assert.InDeltaSlice(t, samples, decoded, 1e-4)
}

func TestJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gray.jpg")
	test.WriteFrame(t, path, test.Frame(t, 8, 8, 0.5))

	props, samples, err := decode(t, path)
	require.NoError(t, err)
	assert.Equal(t, 8, props.Width)
	assert.Equal(t, 8, props.Height)
	assert.Equal(t, props.Size(), len(samples))
}

func TestAsImageChannels(t *testing.T) {
	f, err := flow.NewFrame(flow.Props{Width: 1, Height: 1, Channels: 2}, []float64{0, 0})
	require.NoError(t, err)
	_, err = codec.AsImage(f)
	assert.ErrorIs(t, err, flow.ErrFormat)
}

func TestCorrupted(t *testing.T) {
	for _, name := range []string{"broken.png", "broken.wav", "broken.jpg"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte("not a media file"), 0o644))
		_, _, err := decode(t, path)
		assert.ErrorIs(t, err, flow.ErrFormat, name)
	}
}

func TestWav(t *testing.T) {
	samples := []float64{0, 0.5, -0.5, 0.25, -1}
	path := test.Wav(t, "mono.wav", 44100, samples...)

	props, decoded, err := decode(t, path)
	require.NoError(t, err)
	assert.Equal(t, flow.Props{Width: 5, Height: 1, Channels: 1, SampleRate: 44100}, props)
	assert.InDeltaSlice(t, samples, decoded, 1e-4)
}

func TestWavBitDepth(t *testing.T) {
	var tests = []struct {
		bitDepth int
		data     []int
		expected []float64
	}{
		{
			bitDepth: 8,
			data:     []int{128, 128, 255, 0},
			expected: []float64{0, 0, 127.0 / 128, -1},
		},
		{
			bitDepth: 16,
			data:     []int{0, 16384, -32768, 32767},
			expected: []float64{0, 0.5, -1, 32767.0 / 32768},
		},
		{
			bitDepth: 24,
			data:     []int{0, -4194304},
			expected: []float64{0, -0.5},
		},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), fmt.Sprintf("%d.wav", tt.bitDepth))
		file, err := os.Create(path)
		require.NoError(t, err)
		e := wav.NewEncoder(file, 8000, tt.bitDepth, 1, 1)
		require.NoError(t, e.Write(&audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
			Data:           tt.data,
			SourceBitDepth: tt.bitDepth,
		}))
		require.NoError(t, e.Close())
		require.NoError(t, file.Close())

		props, samples, err := decode(t, path)
		require.NoError(t, err, tt.bitDepth)
		assert.Equal(t, flow.Props{Width: len(tt.data), Height: 1, Channels: 1, SampleRate: 8000}, props)
		assert.InDeltaSlice(t, tt.expected, samples, 1e-9, tt.bitDepth)
		for _, s := range samples {
			assert.True(t, s >= -1 && s <= 1, "sample %v of %d bit wav", s, tt.bitDepth)
		}
	}
}

func TestWavNoSampleRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.wav")
	encode, err := codec.Default().Encoder(path)
	require.NoError(t, err)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	assert.ErrorIs(t, encode(file, test.Frame(t, 2, 2, 0)), flow.ErrFormat)
}
