package flow

import (
	"github.com/pipelined/flow/device"
	"github.com/pipelined/flow/log"
)

// Option provides a way to set functional parameters to stage.
type Option func(*Process)

// WithName sets name to stage. It's used in errors and logs.
func WithName(n string) Option {
	return func(p *Process) {
		p.name = n
	}
}

// WithLogger sets logger to stage. If this option is not provided, silent
// logger is used.
func WithLogger(l log.Logger) Option {
	return func(p *Process) {
		p.log = l
	}
}

// WithDevice sets explicit device to stage. Default device of the manager
// is not consulted then.
func WithDevice(d *device.Device) Option {
	return func(p *Process) {
		p.device = d
	}
}

// WithDevices sets the device manager which resolves the default device.
// If neither device nor manager is provided, device.System is used.
func WithDevices(m *device.Manager) Option {
	return func(p *Process) {
		p.devices = m
	}
}

// WithInputs declares named input ports of the stage. Every declared port
// must be set before the stage can be executed.
func WithInputs(names ...string) Option {
	return func(p *Process) {
		for _, name := range names {
			p.declare(name)
		}
	}
}
