package device

import (
	"fmt"
	"path/filepath"
	"sort"

	"golang.org/x/sys/cpu"
)

// DefaultNodePatterns are device nodes of common accelerator drivers.
var DefaultNodePatterns = []string{
	"/dev/nvidia[0-9]*",
	"/dev/dri/renderD*",
}

// NodeDiscovery reports an accelerator for every device node which matches
// provided glob patterns.
func NodeDiscovery(patterns ...string) Discovery {
	return func() ([]*Device, error) {
		var found []*Device
		for _, pattern := range patterns {
			paths, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("discovery %q: %w", pattern, err)
			}
			sort.Strings(paths)
			for _, path := range paths {
				found = append(found, &Device{
					Name: filepath.Base(path),
					Kind: Accelerator,
					Path: path,
				})
			}
		}
		return found, nil
	}
}

// Static reports provided devices as accelerators.
func Static(devices ...*Device) Discovery {
	return func() ([]*Device, error) {
		for _, d := range devices {
			d.Kind = Accelerator
		}
		return devices, nil
	}
}

func hostFeatures() []string {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}
	add(cpu.X86.HasSSE41, "sse4.1")
	add(cpu.X86.HasSSE42, "sse4.2")
	add(cpu.X86.HasAVX, "avx")
	add(cpu.X86.HasAVX2, "avx2")
	add(cpu.X86.HasAVX512F, "avx512f")
	add(cpu.X86.HasFMA, "fma")
	add(cpu.ARM64.HasASIMD, "asimd")
	add(cpu.ARM64.HasFPHP, "fphp")
	add(cpu.ARM64.HasSVE, "sve")
	return features
}
