// Package mock provides counting stages and an in-memory codec for tests.
package mock

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/codec"
)

// Extension is the file extension handled by the mock codec.
const Extension = ".mock"

type (
	// Counter counts executions and samples.
	Counter struct {
		mu         sync.Mutex
		executions int
		samples    int
	}

	// Hooks are called by mock stages on execution.
	Hooks struct {
		OnExecute func(ctx context.Context) error
	}

	// Source is a stage without inputs which produces frames filled with
	// Value.
	Source struct {
		*flow.Process
		Counter
		Hooks
		ErrorOnExecute error

		mu    sync.Mutex
		props flow.Props
		value float64
	}

	// Processor adds Add to every input sample.
	Processor struct {
		*flow.Process
		Counter
		Hooks
		Add            float64
		ErrorOnExecute error
	}

	// Sink keeps every input frame.
	Sink struct {
		*flow.Process
		Counter

		mu     sync.Mutex
		frames []*flow.Frame
	}
)

func (c *Counter) advance(f *flow.Frame) {
	c.mu.Lock()
	c.executions++
	if f != nil {
		c.samples += len(f.Samples())
	}
	c.mu.Unlock()
}

// Count returns number of executions and samples.
func (c *Counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executions, c.samples
}

// Executions returns number of executions.
func (c *Counter) Executions() int {
	n, _ := c.Count()
	return n
}

func (h Hooks) call(ctx context.Context) error {
	if h.OnExecute == nil {
		return nil
	}
	return h.OnExecute(ctx)
}

// NewSource returns source which produces 1x1 single channel frames.
func NewSource(value float64, options ...flow.Option) *Source {
	s := &Source{
		value: value,
		props: flow.Props{Width: 1, Height: 1, Channels: 1},
	}
	s.Process = flow.NewProcess(s, options...)
	return s
}

// SetValue changes value of produced frames.
func (s *Source) SetValue(v float64) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	s.Modified()
}

// SetProps changes layout of produced frames.
func (s *Source) SetProps(p flow.Props) {
	s.mu.Lock()
	s.props = p
	s.mu.Unlock()
	s.Modified()
}

// Execute produces a new frame.
func (s *Source) Execute(ctx context.Context) error {
	if err := s.Hooks.call(ctx); err != nil {
		s.advance(nil)
		return err
	}
	if s.ErrorOnExecute != nil {
		s.advance(nil)
		return s.ErrorOnExecute
	}
	s.mu.Lock()
	props, value := s.props, s.value
	s.mu.Unlock()
	samples := make([]float64, props.Size())
	for i := range samples {
		samples[i] = value
	}
	f, err := flow.NewFrame(props, samples, flow.OnDevice(s.Device()))
	if err != nil {
		return err
	}
	s.advance(f)
	s.SetFrame(f)
	return nil
}

// NewProcessor returns processor with a single input.
func NewProcessor(add float64, options ...flow.Option) *Processor {
	p := &Processor{Add: add}
	p.Process = flow.NewProcess(p, append([]flow.Option{flow.WithInputs(flow.DefaultPort)}, options...)...)
	return p
}

// Execute adds value to the copy of input frame.
func (p *Processor) Execute(ctx context.Context) error {
	if err := p.Hooks.call(ctx); err != nil {
		p.advance(nil)
		return err
	}
	if p.ErrorOnExecute != nil {
		p.advance(nil)
		return p.ErrorOnExecute
	}
	in, err := p.InputFrame(flow.DefaultPort)
	if err != nil {
		return err
	}
	out := in.Copy(flow.OnDevice(p.Device()))
	s := out.Samples()
	for i := range s {
		s[i] += p.Add
	}
	p.advance(out)
	p.SetFrame(out)
	return nil
}

// NewSink returns sink with a single input.
func NewSink(options ...flow.Option) *Sink {
	s := &Sink{}
	s.Process = flow.NewProcess(s, append([]flow.Option{flow.WithInputs(flow.DefaultPort)}, options...)...)
	return s
}

// Execute keeps input frame and passes it to the output.
func (s *Sink) Execute(ctx context.Context) error {
	in, err := s.InputFrame(flow.DefaultPort)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, in)
	s.mu.Unlock()
	s.advance(in)
	s.SetFrame(in)
	return nil
}

// Frames returns all frames received by sink.
func (s *Sink) Frames() []*flow.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*flow.Frame(nil), s.frames...)
}

// Codec decodes text files with a single number into 1x1 frames. Content
// "corrupt" results in flow.ErrFormat.
type Codec struct {
	Counter
	// ErrorOnDecode is returned by every decode call if set.
	ErrorOnDecode error
	// Gate blocks every decode call until it receives a value or is
	// closed.
	Gate chan struct{}
	// OnDecode is called with the number of decode call before decoding.
	OnDecode func(call int)
}

// Registry returns registry with the mock codec for Extension.
func (c *Codec) Registry() *codec.Registry {
	r := codec.NewRegistry()
	r.Register(codec.Codec{Decode: c.Decode, Encode: c.Encode}, Extension)
	return r
}

// Decode implements codec.DecodeFunc.
func (c *Codec) Decode(r io.ReadSeeker) (flow.Props, []float64, error) {
	if c.OnDecode != nil {
		c.OnDecode(c.Executions() + 1)
	}
	if c.Gate != nil {
		<-c.Gate
	}
	if c.ErrorOnDecode != nil {
		c.advance(nil)
		return flow.Props{}, nil, c.ErrorOnDecode
	}
	b, err := io.ReadAll(r)
	if err != nil {
		c.advance(nil)
		return flow.Props{}, nil, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		c.advance(nil)
		return flow.Props{}, nil, fmt.Errorf("%w: %v", flow.ErrFormat, err)
	}
	c.mu.Lock()
	c.executions++
	c.samples++
	c.mu.Unlock()
	return flow.Props{Width: 1, Height: 1, Channels: 1}, []float64{v}, nil
}

// Encode implements codec.EncodeFunc. Only the first sample is written.
func (c *Codec) Encode(w io.WriteSeeker, f *flow.Frame) error {
	s := f.Samples()
	if len(s) == 0 {
		return fmt.Errorf("%w: empty frame", flow.ErrFormat)
	}
	_, err := fmt.Fprintf(w, "%v", s[0])
	return err
}
