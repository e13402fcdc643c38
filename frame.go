package flow

import (
	"github.com/rs/xid"

	"github.com/pipelined/flow/device"
)

// NewUID returns new unique id value.
func NewUID() string {
	return xid.New().String()
}

// Props describes the layout of frame samples. Samples are interleaved:
// index of a sample is (y*Width+x)*Channels+c.
type Props struct {
	Width    int
	Height   int
	Channels int
	// SampleRate is set for time-series frames, e.g. audio.
	SampleRate int
}

// Size returns number of samples described by props.
func (p Props) Size() int {
	return p.Width * p.Height * p.Channels
}

// Frame is a single unit of data flowing through the pipeline. Frame
// content must not be modified after it's handed to a consumer: the
// samples slice is shared by every holder.
type Frame struct {
	id      string
	props   Props
	samples []float64
	device  *device.Device
	source  string
}

// FrameOption configures a frame at creation.
type FrameOption func(*Frame)

// FromSource sets the origin of frame, e.g. a file path.
func FromSource(source string) FrameOption {
	return func(f *Frame) {
		f.source = source
	}
}

// OnDevice binds frame to the device.
func OnDevice(d *device.Device) FrameOption {
	return func(f *Frame) {
		f.device = d
	}
}

// NewFrame creates a frame which takes ownership of provided samples.
// Length of samples must match props size.
func NewFrame(props Props, samples []float64, options ...FrameOption) (*Frame, error) {
	if props.Size() != len(samples) {
		return nil, ErrorProps{Props: props, Samples: len(samples)}
	}
	f := &Frame{
		id:      NewUID(),
		props:   props,
		samples: samples,
	}
	for _, option := range options {
		option(f)
	}
	return f, nil
}

// ID returns unique id of the frame.
func (f *Frame) ID() string {
	return f.id
}

// Props returns layout of frame samples.
func (f *Frame) Props() Props {
	return f.props
}

// Samples returns frame samples. Returned slice must not be modified.
func (f *Frame) Samples() []float64 {
	return f.samples
}

// At returns a sample at provided coordinates.
func (f *Frame) At(x, y, c int) float64 {
	return f.samples[(y*f.props.Width+x)*f.props.Channels+c]
}

// Device returns the device frame is bound to.
func (f *Frame) Device() *device.Device {
	return f.device
}

// Source returns the origin of frame.
func (f *Frame) Source() string {
	return f.source
}

// Copy returns a new frame with copied samples. It should be used by stages
// which need to modify the input.
func (f *Frame) Copy(options ...FrameOption) *Frame {
	samples := make([]float64, len(f.samples))
	copy(samples, f.samples)
	c := &Frame{
		id:      NewUID(),
		props:   f.props,
		samples: samples,
		device:  f.device,
		source:  f.source,
	}
	for _, option := range options {
		option(c)
	}
	return c
}
