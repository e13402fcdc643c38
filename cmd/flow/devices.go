package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

type devicesCommand struct {
	features bool
}

func (cmd *devicesCommand) Name() string {
	return "devices"
}

func (cmd *devicesCommand) Help() string {
	return "Show the list of computation devices"
}

func (cmd *devicesCommand) Register(fs *pflag.FlagSet) {
	fs.BoolVarP(&cmd.features, "features", "f", false, "show host processor features")
}

func (cmd *devicesCommand) Run(ctx context.Context, e *env) error {
	for _, err := range e.devices.DiscoveryErrors() {
		e.logger.Warnf("device discovery failed: %v", err)
	}
	def := e.devices.Default()
	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tKIND\tNAME\tDETAILS")
	for _, d := range e.devices.Devices() {
		mark := ""
		if d == def {
			mark = "*"
		}
		details := d.Path
		if !d.IsAccelerator() {
			details = fmt.Sprintf("%d cores", d.Cores)
			if cmd.features && len(d.Features) > 0 {
				details += " " + strings.Join(d.Features, ",")
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, d.ID, d.Kind, d.Name, details)
	}
	return w.Flush()
}
