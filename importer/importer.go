// Package importer provides a stage which loads a single frame from a file.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/pipelined/flow"
	"github.com/pipelined/flow/codec"
)

// Importer decodes a file into a frame. Every execution produces a new
// frame, frames delivered before are never modified.
type Importer struct {
	*flow.Process

	mu       sync.Mutex
	filename string
	codecs   *codec.Registry
}

// New returns importer without filename. It uses default codec registry.
func New(options ...flow.Option) *Importer {
	i := &Importer{codecs: codec.Default()}
	i.Process = flow.NewProcess(i, options...)
	return i
}

// SetFilename sets the path of the file to load and marks the stage
// dirty. Setting the same path loads the file again on next update.
func (i *Importer) SetFilename(filename string) {
	i.mu.Lock()
	i.filename = filename
	i.mu.Unlock()
	i.Modified()
}

// Filename returns the path of the file to load.
func (i *Importer) Filename() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.filename
}

// SetCodecs replaces codec registry. The stage is marked dirty.
func (i *Importer) SetCodecs(r *codec.Registry) {
	i.mu.Lock()
	i.codecs = r
	i.mu.Unlock()
	i.Modified()
}

// Execute loads the file. flow.ErrNotFound is returned if the path doesn't
// resolve to a readable file and flow.ErrFormat if it cannot be decoded.
func (i *Importer) Execute(ctx context.Context) error {
	i.mu.Lock()
	filename, codecs := i.filename, i.codecs
	i.mu.Unlock()
	if filename == "" {
		return fmt.Errorf("%w: filename is not set", flow.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("%w: %v", flow.ErrNotFound, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", flow.ErrNotFound, filename)
	}
	decode, err := codecs.Decoder(filename)
	if err != nil {
		return err
	}
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("%w: %v", flow.ErrNotFound, err)
	}
	defer file.Close()

	props, samples, err := decode(file)
	if err != nil {
		if !errors.Is(err, flow.ErrFormat) {
			err = fmt.Errorf("%w: %s: %v", flow.ErrFormat, filename, err)
		}
		return err
	}
	f, err := flow.NewFrame(props, samples,
		flow.FromSource(filename),
		flow.OnDevice(i.Device()),
	)
	if err != nil {
		return err
	}
	i.Logger().Debug(fmt.Sprintf("%s loaded %s %dx%dx%d", i.Name(), filename, props.Width, props.Height, props.Channels))
	i.SetFrame(f)
	return nil
}

// Load creates an importer, executes it once and returns the frame.
func Load(ctx context.Context, filename string, options ...flow.Option) (*flow.Frame, error) {
	i := New(options...)
	i.SetFilename(filename)
	if err := i.Output().Update(ctx); err != nil {
		return nil, err
	}
	return i.Output().Frame()
}
