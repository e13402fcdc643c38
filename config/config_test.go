package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/config"
	"github.com/pipelined/flow/device"
	"github.com/pipelined/flow/stream"
)

const valid = `
device: gpu
streams:
  - name: camera
    pattern: frames/frame_#.png
    zeroFill: 4
    start: 1
    export: out/frame_#.png
  - name: loop
    pattern: loop/#.png
    loop: true
    frames: 10
    device: host
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(valid))
	require.NoError(t, err)
	assert.Equal(t, "gpu", cfg.Device)
	require.Len(t, cfg.Streams, 2)
	assert.Equal(t, config.Stream{
		Name:     "camera",
		Pattern:  "frames/frame_#.png",
		Start:    1,
		ZeroFill: 4,
		Export:   "out/frame_#.png",
	}, cfg.Streams[0])
	assert.True(t, cfg.Streams[1].Loop)
	assert.Equal(t, 10, cfg.Streams[1].Frames)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(valid), 0o644))
	cfg, err := config.FromFile(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Streams, 2)

	_, err = config.FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestInvalid(t *testing.T) {
	var tests = []struct {
		description string
		yaml        string
	}{
		{
			description: "empty",
			yaml:        ``,
		},
		{
			description: "unknown field",
			yaml: `
streams:
  - name: a
    pattern: "#.png"
    color: red
`,
		},
		{
			description: "no placeholder",
			yaml: `
streams:
  - name: a
    pattern: frame.png
`,
		},
		{
			description: "duplicate names",
			yaml: `
streams:
  - name: a
    pattern: "#.png"
  - name: a
    pattern: "#.jpg"
`,
		},
		{
			description: "no name",
			yaml: `
streams:
  - pattern: "#.png"
`,
		},
		{
			description: "export without placeholder",
			yaml: `
streams:
  - name: a
    pattern: "#.png"
    export: out.png
`,
		},
		{
			description: "endless loop",
			yaml: `
streams:
  - name: a
    pattern: "#.png"
    loop: true
`,
		},
	}
	for _, tt := range tests {
		_, err := config.Parse([]byte(tt.yaml))
		assert.ErrorIs(t, err, flow.ErrConfiguration, tt.description)
	}
}

func TestConfigure(t *testing.T) {
	gpu := &device.Device{ID: "gpu0"}
	m := device.NewManager(device.WithDiscovery(device.Static(gpu)))
	cfg, err := config.Parse([]byte(valid))
	require.NoError(t, err)
	require.NoError(t, cfg.Apply(m))
	assert.Same(t, gpu, m.Default())

	s := stream.New(flow.WithDevices(m))
	defer s.Close()
	require.NoError(t, cfg.Streams[1].Configure(s, m))
	assert.Equal(t, "loop/#.png", s.FilenameFormat())
	assert.Same(t, m.Host(), s.Device())

	cfg.Streams[0].Device = "unknown"
	err = cfg.Streams[0].Configure(stream.New(), m)
	assert.ErrorIs(t, err, device.ErrUnknownDevice)
}
