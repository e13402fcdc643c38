// Package exporter provides a stage which encodes its input frame into a
// file.
package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/codec"
)

// Exporter writes input frame to a file on every execution. Its output is
// the exported frame, so exporters can be chained or inspected.
type Exporter struct {
	*flow.Process

	mu       sync.Mutex
	filename string
	codecs   *codec.Registry
}

// New returns exporter with a single input. It uses default codec
// registry.
func New(options ...flow.Option) *Exporter {
	e := &Exporter{codecs: codec.Default()}
	e.Process = flow.NewProcess(e, append([]flow.Option{flow.WithInputs(flow.DefaultPort)}, options...)...)
	return e
}

// SetFilename sets path of the file to write. The stage is marked dirty.
func (e *Exporter) SetFilename(filename string) {
	e.mu.Lock()
	e.filename = filename
	e.mu.Unlock()
	e.Modified()
}

// Filename returns path of the file to write.
func (e *Exporter) Filename() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filename
}

// SetCodecs replaces codec registry. The stage is marked dirty.
func (e *Exporter) SetCodecs(r *codec.Registry) {
	e.mu.Lock()
	e.codecs = r
	e.mu.Unlock()
	e.Modified()
}

// Execute encodes input frame. Missing directories are created. The file
// is written to a temporary path first and renamed, so readers never see
// partial content.
func (e *Exporter) Execute(ctx context.Context) error {
	e.mu.Lock()
	filename, codecs := e.filename, e.codecs
	e.mu.Unlock()
	if filename == "" {
		return fmt.Errorf("%w: filename is not set", flow.ErrConfiguration)
	}
	in, err := e.InputFrame(flow.DefaultPort)
	if err != nil {
		return err
	}
	encode, err := codecs.Encoder(filename)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := encode(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return err
	}
	e.Logger().Debug(fmt.Sprintf("%s exported %s", e.Name(), filename))
	e.SetFrame(in)
	return nil
}

// Save encodes the frame into the file once.
func Save(ctx context.Context, filename string, f *flow.Frame, options ...flow.Option) error {
	e := New(options...)
	e.SetFilename(filename)
	e.SetInput(constant{f})
	return e.Output().Update(ctx)
}

// constant is an output which always has the same frame.
type constant struct {
	f *flow.Frame
}

func (constant) Update(context.Context) error {
	return nil
}

func (c constant) Frame() (*flow.Frame, error) {
	return c.f, nil
}

func (constant) Version() uint64 {
	return 1
}
