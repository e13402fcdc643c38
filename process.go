package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pipelined/flow/device"
	"github.com/pipelined/flow/log"
	"github.com/pipelined/flow/metric"
)

// DefaultPort is the name of input port for stages with a single input.
const DefaultPort = "input"

type (
	// Output is a handle on the product of a stage. Obtaining it doesn't
	// do any work, Update executes the owning stage and all its upstream
	// stages if they are stale.
	Output interface {
		Update(ctx context.Context) error
		// Frame returns the latest produced frame. ErrNoData is
		// returned if nothing was produced yet.
		Frame() (*Frame, error)
		// Version changes every time a new frame becomes available.
		Version() uint64
	}

	// Executor is implemented by concrete stages. Execute is called by
	// Process.Update when the stage is stale.
	Executor interface {
		Execute(ctx context.Context) error
	}

	// Process is a pipeline stage. Concrete stages embed it and provide
	// Executor. It keeps named input ports, a single output and tracks if
	// the stage has to be executed.
	Process struct {
		uid     string
		name    string
		exec    Executor
		log     log.Logger
		devices *device.Manager
		meter   *metric.Meter
		port    *Port

		// update serializes updates of the stage.
		update sync.Mutex

		mu     sync.Mutex
		device *device.Device
		inputs []input
		// generation is bumped by every modification, executed is the
		// generation of the latest successful execution.
		generation uint64
		executed   uint64
	}

	// input port holds a handle on upstream output, never its owner.
	input struct {
		name string
		out  Output
		seen uint64
	}
)

// NewProcess creates a stage which runs provided executor. The stage is
// dirty until the first successful execution.
func NewProcess(exec Executor, options ...Option) *Process {
	p := &Process{
		uid:        NewUID(),
		name:       stageName(exec),
		exec:       exec,
		log:        log.Silent(),
		meter:      metric.New(exec),
		generation: 1,
	}
	p.port = &Port{owner: p}
	for _, option := range options {
		option(p)
	}
	return p
}

func stageName(exec Executor) string {
	n := fmt.Sprintf("%T", exec)
	n = strings.TrimPrefix(n, "*")
	return strings.ToLower(n)
}

// UID returns unique id of the stage.
func (p *Process) UID() string {
	return p.uid
}

// Name returns name of the stage.
func (p *Process) Name() string {
	return p.name
}

// Logger returns logger of the stage.
func (p *Process) Logger() log.Logger {
	return p.log
}

// Devices returns device manager of the stage. Nil is returned if it
// wasn't provided.
func (p *Process) Devices() *device.Manager {
	return p.devices
}

// Output returns handle on the output of the stage.
func (p *Process) Output() Output {
	return p.port
}

// Modified marks the stage dirty. Concrete stages call it from their
// setters.
func (p *Process) Modified() {
	p.mu.Lock()
	p.generation++
	p.mu.Unlock()
}

// IsModified returns true if stage has to be executed on next update.
func (p *Process) IsModified() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation != p.executed
}

// SetDevice sets explicit device to the stage and marks it dirty.
func (p *Process) SetDevice(d *device.Device) {
	p.mu.Lock()
	p.device = d
	p.generation++
	p.mu.Unlock()
}

// Device returns the device the stage executes on. If no explicit device
// was provided, the default device is resolved once and kept for the
// lifetime of the stage.
func (p *Process) Device() *device.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		m := p.devices
		if m == nil {
			m = device.System()
		}
		p.device = m.Default()
	}
	return p.device
}

// SetInput connects upstream output to the default input port.
func (p *Process) SetInput(out Output) {
	p.SetInputPort(DefaultPort, out)
}

// SetInputPort connects upstream output to the named port. Port is
// declared if it doesn't exist. The stage is marked dirty.
func (p *Process) SetInputPort(name string, out Output) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	for i := range p.inputs {
		if p.inputs[i].name == name {
			p.inputs[i] = input{name: name, out: out}
			return
		}
	}
	p.inputs = append(p.inputs, input{name: name, out: out})
}

// declare adds unset input port.
func (p *Process) declare(name string) {
	for i := range p.inputs {
		if p.inputs[i].name == name {
			return
		}
	}
	p.inputs = append(p.inputs, input{name: name})
}

// Input returns output connected to the named port.
func (p *Process) Input(name string) (Output, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.inputs {
		if p.inputs[i].name == name && p.inputs[i].out != nil {
			return p.inputs[i].out, true
		}
	}
	return nil, false
}

// InputFrame returns the latest frame of the named input port.
func (p *Process) InputFrame(name string) (*Frame, error) {
	out, ok := p.Input(name)
	if !ok {
		return nil, fmt.Errorf("%w: input %q is not set", ErrConfiguration, name)
	}
	return out.Frame()
}

// InputFrames returns the latest frames of all input ports in the order
// they were declared.
func (p *Process) InputFrames() ([]*Frame, error) {
	p.mu.Lock()
	inputs := append([]input(nil), p.inputs...)
	p.mu.Unlock()
	frames := make([]*Frame, 0, len(inputs))
	for _, in := range inputs {
		if in.out == nil {
			return nil, fmt.Errorf("%w: input %q is not set", ErrConfiguration, in.name)
		}
		f, err := in.out.Frame()
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.name, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// SetFrame publishes a new output frame. It's called by executors.
func (p *Process) SetFrame(f *Frame) {
	p.port.set(f)
	p.meter.Frame()
}

// Meter returns meter of the stage. Stages which publish frames through
// other outputs use it to count them.
func (p *Process) Meter() *metric.Meter {
	return p.meter
}

// Update updates all upstream stages and then executes this stage if it
// was modified or any of its inputs changed since the last execution. If
// execution fails, the stage stays dirty and error is returned as
// *ErrorExecute.
func (p *Process) Update(ctx context.Context) error {
	p.update.Lock()
	defer p.update.Unlock()

	p.mu.Lock()
	inputs := append([]input(nil), p.inputs...)
	p.mu.Unlock()
	for _, in := range inputs {
		if in.out == nil {
			return &ErrorExecute{
				Stage: p.name,
				Err:   fmt.Errorf("%w: input %q is not set", ErrConfiguration, in.name),
			}
		}
		if err := in.out.Update(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	generation := p.generation
	stale := generation != p.executed
	versions := make([]uint64, len(inputs))
	for i, in := range inputs {
		versions[i] = in.out.Version()
		if versions[i] != in.seen {
			stale = true
		}
	}
	p.mu.Unlock()
	if !stale {
		return nil
	}

	d := p.Device()
	p.log.Debug(fmt.Sprintf("%s executes on %v", p.name, d))
	start := time.Now()
	err := p.exec.Execute(ctx)
	p.meter.Execution(start, err)
	if err != nil {
		p.log.Debug(fmt.Sprintf("%s failed: %v", p.name, err))
		return &ErrorExecute{Stage: p.name, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.inputs {
		if i < len(inputs) && p.inputs[i].out == inputs[i].out {
			p.inputs[i].seen = versions[i]
		}
	}
	// modifications during execution keep the stage dirty.
	p.executed = generation
	return nil
}

// Port is the output of a stage which produces a single frame per
// execution.
type Port struct {
	owner interface {
		Update(context.Context) error
	}

	mu      sync.RWMutex
	frame   *Frame
	version uint64
}

// Update forwards update to the owning stage.
func (o *Port) Update(ctx context.Context) error {
	return o.owner.Update(ctx)
}

// Frame returns the latest produced frame.
func (o *Port) Frame() (*Frame, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.frame == nil {
		return nil, ErrNoData
	}
	return o.frame, nil
}

// Version returns number of frames produced by the owning stage.
func (o *Port) Version() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.version
}

func (o *Port) set(f *Frame) {
	o.mu.Lock()
	o.frame = f
	o.version++
	o.mu.Unlock()
}
