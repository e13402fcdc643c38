package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/flow/device"
	"github.com/pipelined/flow/importer"
	"github.com/pipelined/flow/stream"
	"github.com/pipelined/flow/test"
)

func newCLI(out io.Writer, args ...string) *cli {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &cli{
		args: append([]string{"flow"}, args...),
		env: &env{
			out:     out,
			logger:  logger,
			devices: device.NewManager(device.WithDiscovery(device.Static(&device.Device{ID: "gpu0", Name: "test"}))),
		},
	}
}

func TestInit(t *testing.T) {
	// check if commands are registered
	assert.Equal(t, 3, len(commands))
}

func TestUsage(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, errorExitCode, newCLI(&out).run(context.Background()))
	assert.Contains(t, out.String(), "Usage: flow")

	out.Reset()
	assert.Equal(t, errorExitCode, newCLI(&out, "unknown").run(context.Background()))
	assert.Contains(t, out.String(), `unknown command "unknown"`)

	out.Reset()
	assert.Equal(t, errorExitCode, newCLI(&out, "stream", "--bad-flag").run(context.Background()))
}

func TestDevices(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, successExitCode, newCLI(&out, "devices", "-f").run(context.Background()))
	assert.Contains(t, out.String(), "host")
	assert.Contains(t, out.String(), "gpu0")
	assert.Contains(t, out.String(), "accelerator")
}

func TestStream(t *testing.T) {
	pattern := test.Sequence(t, "frame_#.png", 3, 0, 1, 2)
	export := filepath.Join(t.TempDir(), "out_#.png")
	var out bytes.Buffer
	code := newCLI(&out, "stream",
		"--pattern", pattern,
		"--zero-fill", "3",
		"--export", export,
	).run(context.Background())
	require.Equal(t, successExitCode, code)

	for i := 0; i < 3; i++ {
		f, err := importer.Load(context.Background(), stream.Filename(export, uint(i), 3))
		require.NoError(t, err)
		assert.InDelta(t, test.Value(i), f.At(0, 0, 0), 1e-6)
	}
}

func TestStreamConfig(t *testing.T) {
	looped := test.Sequence(t, "#.png", 0, 0, 1)
	export := filepath.Join(t.TempDir(), "#.png")
	cfg := fmt.Sprintf(`
device: gpu
streams:
  - name: once
    pattern: %q
  - name: looped
    pattern: %q
    loop: true
    frames: 5
    export: %q
`, looped, looped, export)
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	var out bytes.Buffer
	require.Equal(t, successExitCode, newCLI(&out, "stream", "-c", path).run(context.Background()))
	entries, err := os.ReadDir(filepath.Dir(export))
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestStreamFailure(t *testing.T) {
	var out bytes.Buffer
	missing := filepath.Join(t.TempDir(), "#.png")
	assert.Equal(t, errorExitCode, newCLI(&out, "stream", "-p", missing).run(context.Background()))
	assert.Equal(t, errorExitCode, newCLI(&out, "stream", "-p", "no-placeholder.png").run(context.Background()))
}

func TestConvert(t *testing.T) {
	in := test.Wav(t, "in.wav", 8000, 0.5, -0.5, 0.25)
	out := filepath.Join(t.TempDir(), "out.wav")
	var buf bytes.Buffer
	require.Equal(t, successExitCode, newCLI(&buf, "convert", "-i", in, "-o", out).run(context.Background()))

	f, err := importer.Load(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 8000, f.Props().SampleRate)
	assert.InDeltaSlice(t, []float64{0.5, -0.5, 0.25}, f.Samples(), 1e-4)

	assert.Equal(t, errorExitCode, newCLI(&buf, "convert", "-i", in).run(context.Background()))
}
