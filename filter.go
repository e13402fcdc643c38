package flow

import (
	"context"
	"fmt"

	"github.com/pipelined/flow/device"
)

// ProcessFunc computes output frame from input frames. Frames are passed
// in the order input ports were declared. Input frames must not be
// modified.
type ProcessFunc func(ctx context.Context, d *device.Device, in []*Frame) (*Frame, error)

// Filter is a stage which applies a function to its inputs. If function
// captures parameters, Modified must be called after they are changed.
type Filter struct {
	*Process
	fn ProcessFunc
}

// NewFilter creates a filter stage. If no inputs are declared with
// WithInputs, the filter has a single DefaultPort input.
func NewFilter(fn ProcessFunc, options ...Option) *Filter {
	f := &Filter{fn: fn}
	f.Process = NewProcess(f, options...)
	if len(f.Process.inputs) == 0 {
		f.Process.declare(DefaultPort)
	}
	return f
}

// Execute applies the function to input frames.
func (f *Filter) Execute(ctx context.Context) error {
	in, err := f.InputFrames()
	if err != nil {
		return err
	}
	out, err := f.fn(ctx, f.Device(), in)
	if err != nil {
		return err
	}
	if out == nil {
		return fmt.Errorf("%s returned %w", f.Name(), ErrNoData)
	}
	f.SetFrame(out)
	return nil
}
