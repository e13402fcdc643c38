package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/config"
	"github.com/pipelined/flow/exporter"
	"github.com/pipelined/flow/stream"
)

type streamCommand struct {
	config string
	stream config.Stream
}

func (cmd *streamCommand) Name() string {
	return "stream"
}

func (cmd *streamCommand) Help() string {
	return "Load numbered frames and optionally export them"
}

func (cmd *streamCommand) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&cmd.config, "config", "c", "", "path to YAML config with streams")
	fs.StringVarP(&cmd.stream.Pattern, "pattern", "p", "", "filename pattern, # is replaced by frame index")
	fs.UintVar(&cmd.stream.Start, "start", 0, "index of the first frame")
	fs.UintVar(&cmd.stream.ZeroFill, "zero-fill", 0, "minimal number of digits in frame index")
	fs.BoolVar(&cmd.stream.Loop, "loop", false, "start over at the end of stream")
	fs.IntVar(&cmd.stream.Frames, "frames", 0, "number of frames to consume, 0 means all")
	fs.StringVarP(&cmd.stream.Device, "device", "d", "", "device id to load frames on")
	fs.StringVarP(&cmd.stream.Export, "export", "e", "", "filename pattern of exported frames")
}

func (cmd *streamCommand) Run(ctx context.Context, e *env) error {
	cfg, err := cmd.load()
	if err != nil {
		return err
	}
	if err := cfg.Apply(e.devices); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range cfg.Streams {
		s := s
		g.Go(func() error {
			return runStream(ctx, e, s)
		})
	}
	return g.Wait()
}

// load returns config from file or from flags.
func (cmd *streamCommand) load() (*config.Config, error) {
	if cmd.config != "" {
		return config.FromFile(cmd.config)
	}
	s := cmd.stream
	s.Name = "stream"
	cfg := &config.Config{Streams: []config.Stream{s}}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runStream(ctx context.Context, e *env, s config.Stream) error {
	logger := e.logger.WithFields(logrus.Fields{
		"stream":  s.Name,
		"pattern": s.Pattern,
	})
	st := stream.New(
		flow.WithName(s.Name),
		flow.WithDevices(e.devices),
		flow.WithLogger(logger),
	)
	defer st.Close()
	if err := s.Configure(st, e.devices); err != nil {
		return err
	}
	img := st.Image()
	if err := img.Update(ctx); err != nil {
		return err
	}

	var n int
	for ; s.Frames == 0 || n < s.Frames; n++ {
		f, err := img.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if s.Export == "" {
			continue
		}
		filename := stream.Filename(s.Export, s.Start+uint(n), s.ZeroFill)
		if err := exporter.Save(ctx, filename, f, flow.WithLogger(logger)); err != nil {
			return fmt.Errorf("export %s: %w", filename, err)
		}
	}
	if err := img.Err(); err != nil && !errors.Is(err, flow.ErrStopped) {
		return err
	}
	logger.WithFields(logrus.Fields{
		"frames": n,
		"loops":  st.Loops(),
		"device": st.Device().ID,
	}).Info("stream finished")
	return nil
}
