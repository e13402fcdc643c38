// Package codec decodes files into frame samples and encodes frames back.
// Codecs are selected by file extension.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pipelined/flow"
)

type (
	// DecodeFunc decodes source into frame samples.
	DecodeFunc func(r io.ReadSeeker) (flow.Props, []float64, error)

	// EncodeFunc encodes the frame.
	EncodeFunc func(w io.WriteSeeker, f *flow.Frame) error

	// Codec is a pair of decode and encode routines. Any of them can be
	// nil if the format supports only one direction.
	Codec struct {
		Decode DecodeFunc
		Encode EncodeFunc
	}
)

// Registry maps file extensions to codecs. It's safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register associates codec with extensions. Extensions are case
// insensitive and may omit the leading dot.
func (r *Registry) Register(c Codec, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extensions {
		r.codecs[normalize(ext)] = c
	}
}

// Extensions returns sorted list of registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.codecs))
	for ext := range r.codecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Lookup returns codec for the path extension. flow.ErrFormat is returned
// if extension is not registered.
func (r *Registry) Lookup(path string) (Codec, error) {
	ext := normalize(filepath.Ext(path))
	r.mu.RLock()
	c, ok := r.codecs[ext]
	r.mu.RUnlock()
	if !ok {
		return Codec{}, fmt.Errorf("%w: unsupported extension %q", flow.ErrFormat, ext)
	}
	return c, nil
}

// Decoder returns decode routine for the path.
func (r *Registry) Decoder(path string) (DecodeFunc, error) {
	c, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}
	if c.Decode == nil {
		return nil, fmt.Errorf("%w: %q cannot be decoded", flow.ErrFormat, filepath.Ext(path))
	}
	return c.Decode, nil
}

// Encoder returns encode routine for the path.
func (r *Registry) Encoder(path string) (EncodeFunc, error) {
	c, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}
	if c.Encode == nil {
		return nil, fmt.Errorf("%w: %q cannot be encoded", flow.ErrFormat, filepath.Ext(path))
	}
	return c.Encode, nil
}

func normalize(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns registry with all codecs of this package.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		r.Register(Wav(), ".wav", ".wave")
		r.Register(PNG(), ".png")
		r.Register(JPEG(), ".jpg", ".jpeg")
		r.Register(GIF(), ".gif")
		defaultRegistry = r
	})
	return defaultRegistry
}
