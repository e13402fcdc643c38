// Package config loads stream configurations from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/device"
	"github.com/pipelined/flow/stream"
)

// Config describes streams run by flow command.
type Config struct {
	// Device is the default device id. Host is used if it's empty.
	Device  string   `yaml:"device"`
	Streams []Stream `yaml:"streams"`
}

// Stream details.
type Stream struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Start    uint   `yaml:"start"`
	ZeroFill uint   `yaml:"zeroFill"`
	Loop     bool   `yaml:"loop"`
	Device   string `yaml:"device"`
	// Export is the filename pattern of exported frames.
	Export string `yaml:"export"`
	// Frames limits number of consumed frames. Zero means all frames.
	Frames int `yaml:"frames"`
}

// FromFile loads and validates config from a local file.
func FromFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates config. Unknown fields are rejected.
func Parse(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", flow.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that streams are named uniquely and can be started.
func (c *Config) Validate() error {
	if len(c.Streams) == 0 {
		return fmt.Errorf("%w: no streams", flow.ErrConfiguration)
	}
	names := make(map[string]struct{}, len(c.Streams))
	var errs flow.Errors
	for i, s := range c.Streams {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%w: stream %d has no name", flow.ErrConfiguration, i))
			continue
		}
		if _, ok := names[s.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: duplicate stream %q", flow.ErrConfiguration, s.Name))
		}
		names[s.Name] = struct{}{}
		if !strings.Contains(s.Pattern, stream.Placeholder) {
			errs = append(errs, fmt.Errorf("%w: stream %q pattern %q has no %q placeholder", flow.ErrConfiguration, s.Name, s.Pattern, stream.Placeholder))
		}
		if s.Export != "" && !strings.Contains(s.Export, stream.Placeholder) {
			errs = append(errs, fmt.Errorf("%w: stream %q export %q has no %q placeholder", flow.ErrConfiguration, s.Name, s.Export, stream.Placeholder))
		}
		if s.Loop && s.Frames <= 0 {
			errs = append(errs, fmt.Errorf("%w: looping stream %q needs frames limit", flow.ErrConfiguration, s.Name))
		}
	}
	return errs.Ret()
}

// Apply sets default device of the manager.
func (c *Config) Apply(m *device.Manager) error {
	if c.Device == "" {
		return nil
	}
	d, err := m.Lookup(c.Device)
	if err != nil {
		return err
	}
	return m.SetDefault(d)
}

// Configure applies stream details to the streamer. Device is looked up in
// the manager.
func (s Stream) Configure(st *stream.Streamer, m *device.Manager) error {
	if err := st.SetFilenameFormat(s.Pattern); err != nil {
		return err
	}
	st.SetStartNumber(s.Start)
	st.SetZeroFilling(s.ZeroFill)
	if s.Loop {
		st.EnableLooping()
	} else {
		st.DisableLooping()
	}
	if s.Device != "" {
		d, err := m.Lookup(s.Device)
		if err != nil {
			return err
		}
		st.SetDevice(d)
	}
	return nil
}
