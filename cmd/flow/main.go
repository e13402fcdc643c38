package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/pipelined/flow/device"
	"github.com/pipelined/flow/log"
)

// env is shared by all commands.
type env struct {
	out     io.Writer
	logger  *logrus.Logger
	devices *device.Manager
}

type cli struct {
	args []string
	env  *env
}

type command interface {
	Name() string
	Help() string
	Run(context.Context, *env) error
	Register(*pflag.FlagSet)
}

func (c *cli) run(ctx context.Context) int {
	cmdName, args := parseArgs(c.args)
	if cmdName == "" {
		printUsage(c.env.out)
		return errorExitCode
	}

	for _, cmd := range commands {
		if cmd.Name() != cmdName {
			continue
		}
		flags := pflag.NewFlagSet(cmdName, pflag.ContinueOnError)
		flags.SetOutput(c.env.out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			flags.PrintDefaults()
			return errorExitCode
		}
		if err := cmd.Run(ctx, c.env); err != nil {
			c.env.logger.WithField("command", cmdName).Errorf("command failed: %v", err)
			return errorExitCode
		}
		return successExitCode
	}
	fmt.Fprintf(c.env.out, "unknown command %q\n\n", cmdName)
	printUsage(c.env.out)
	return errorExitCode
}

var (
	successExitCode = 0
	errorExitCode   = 1
	commands        = []command{
		&devicesCommand{},
		&streamCommand{},
		&convertCommand{},
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := cli{
		args: os.Args,
		env: &env{
			out:     os.Stdout,
			logger:  log.GetLogger(),
			devices: device.System(),
		},
	}
	code := c.run(ctx)
	stop()
	os.Exit(code)
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Flow loads and converts frame sequences")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: flow <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}
