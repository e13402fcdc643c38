/*
Package device describes compute targets which pipeline stages run on.

A Manager is constructed once at process start. It enumerates the host
processor and every accelerator reported by its discoveries and holds the
default computation device:

    m := device.NewManager()
    if err := m.SetDefault(m.OneAccelerator()); err != nil {
        return err
    }

The manager is threaded into stages with flow.WithDevices. Stages which
receive neither a manager nor an explicit device fall back to System.
*/
package device

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// Kind identifies a class of compute device.
type Kind int

const (
	// Host is the host processor.
	Host Kind = iota
	// Accelerator is any device other than the host processor.
	Accelerator
)

func (k Kind) String() string {
	switch k {
	case Host:
		return "host"
	case Accelerator:
		return "accelerator"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrUnknownDevice is returned when device doesn't belong to the manager.
var ErrUnknownDevice = errors.New("unknown device")

// Device is a selectable compute target.
type Device struct {
	// ID is unique within a manager, e.g. "host" or "accelerator:0".
	ID string
	// Name is a human readable description.
	Name string
	Kind Kind
	// Path is the device node for accelerators.
	Path string
	// Cores is the number of logical cores available to the host device.
	Cores int
	// Features lists capability flags of the host processor.
	Features []string
}

// IsAccelerator returns true if device is not the host processor.
func (d *Device) IsAccelerator() bool {
	return d != nil && d.Kind == Accelerator
}

// HasFeature checks if device reports provided capability flag.
func (d *Device) HasFeature(f string) bool {
	if d == nil {
		return false
	}
	for _, v := range d.Features {
		if strings.EqualFold(v, f) {
			return true
		}
	}
	return false
}

func (d *Device) String() string {
	if d == nil {
		return "<nil>"
	}
	return d.ID
}

// Discovery finds accelerators available on the system.
type Discovery func() ([]*Device, error)

// Option configures the manager.
type Option func(*Manager)

// WithDiscovery replaces default accelerator discoveries.
func WithDiscovery(discoveries ...Discovery) Option {
	return func(m *Manager) {
		m.discoveries = discoveries
	}
}

// Manager holds enumerated devices and the default computation device.
type Manager struct {
	discoveries []Discovery

	mu      sync.RWMutex
	devices []*Device
	def     *Device
	// errs keeps failures of discoveries, enumeration doesn't stop on them.
	errs []error
}

// NewManager enumerates devices. The host device is always present and is
// the initial default computation device.
func NewManager(options ...Option) *Manager {
	m := &Manager{
		discoveries: []Discovery{NodeDiscovery(DefaultNodePatterns...)},
	}
	for _, option := range options {
		option(m)
	}
	host := &Device{
		ID:       "host",
		Name:     fmt.Sprintf("%s/%s host processor", runtime.GOOS, runtime.GOARCH),
		Kind:     Host,
		Cores:    runtime.NumCPU(),
		Features: hostFeatures(),
	}
	m.devices = append(m.devices, host)
	for _, discovery := range m.discoveries {
		found, err := discovery()
		if err != nil {
			m.errs = append(m.errs, err)
			continue
		}
		for _, d := range found {
			if d == nil || d.Kind != Accelerator {
				continue
			}
			if d.ID == "" {
				d.ID = fmt.Sprintf("accelerator:%d", len(m.devices)-1)
			}
			m.devices = append(m.devices, d)
		}
	}
	m.def = host
	return m
}

// Devices returns all enumerated devices, host first.
func (m *Manager) Devices() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Device(nil), m.devices...)
}

// Host returns the host processor device.
func (m *Manager) Host() *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices[0]
}

// Accelerators returns all enumerated accelerators.
func (m *Manager) Accelerators() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var acc []*Device
	for _, d := range m.devices {
		if d.IsAccelerator() {
			acc = append(acc, d)
		}
	}
	return acc
}

// OneAccelerator returns the first accelerator found. Host device is
// returned if there are no accelerators.
func (m *Manager) OneAccelerator() *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.devices {
		if d.IsAccelerator() {
			return d
		}
	}
	return m.devices[0]
}

// Lookup finds device by its ID. "gpu" and "accelerator" select
// OneAccelerator.
func (m *Manager) Lookup(id string) (*Device, error) {
	switch strings.ToLower(id) {
	case "gpu", "accelerator":
		return m.OneAccelerator(), nil
	case "", "default":
		return m.Default(), nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
}

// Default returns the default computation device.
func (m *Manager) Default() *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.def
}

// SetDefault designates the default computation device. Device must be
// one of enumerated by this manager.
func (m *Manager) SetDefault(d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, known := range m.devices {
		if known == d {
			m.def = d
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrUnknownDevice, d)
}

// DiscoveryErrors returns failures of discoveries which happened during
// enumeration.
func (m *Manager) DiscoveryErrors() []error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]error(nil), m.errs...)
}

var (
	system     *Manager
	systemOnce sync.Once
)

// System returns the process manager with default discoveries. It's created on
// first call.
func System() *Manager {
	systemOnce.Do(func() {
		system = NewManager()
	})
	return system
}
