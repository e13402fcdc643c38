package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/exporter"
	"github.com/pipelined/flow/importer"
)

type convertCommand struct {
	in  string
	out string
}

func (cmd *convertCommand) Name() string {
	return "convert"
}

func (cmd *convertCommand) Help() string {
	return "Convert a single file to another format"
}

func (cmd *convertCommand) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&cmd.in, "in", "i", "", "input file (required)")
	fs.StringVarP(&cmd.out, "out", "o", "", "output file (required)")
}

func (cmd *convertCommand) Run(ctx context.Context, e *env) error {
	if cmd.in == "" || cmd.out == "" {
		return fmt.Errorf("%w: in and out are required", flow.ErrConfiguration)
	}
	logger := e.logger.WithField("in", cmd.in)
	imp := importer.New(flow.WithDevices(e.devices), flow.WithLogger(logger))
	imp.SetFilename(cmd.in)
	exp := exporter.New(flow.WithDevices(e.devices), flow.WithLogger(logger))
	exp.SetInput(imp.Output())
	exp.SetFilename(cmd.out)
	if err := exp.Output().Update(ctx); err != nil {
		return err
	}
	f, err := exp.Output().Frame()
	if err != nil {
		return err
	}
	p := f.Props()
	logger.WithField("out", cmd.out).Infof("converted %dx%dx%d frame", p.Width, p.Height, p.Channels)
	return nil
}
