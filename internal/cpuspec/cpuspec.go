// Package cpuspec picks interpreter thread counts from the CPU topology.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec describes the host CPU
type CPUSpec struct {
	BrandName        string
	LogicalCores     int
	PerformanceCores int // 0 when the CPU is not a known hybrid design
}

var (
	intelHybridRegex = regexp.MustCompile(`intel.*core.*i[3579]-(1[234]\d)00|intel.*core.*ultra\s+[579]\s+(?:processor\s+)?(\d{3})`)
	appleRegex       = regexp.MustCompile(`apple\s+(m[1-4](?:\s+(?:pro|max|ultra))?)`)
)

// Performance core counts for hybrid CPUs, keyed by model prefix.
var intelPerformanceCores = map[string]int{
	"129": 8, "127": 8, "126": 6, "124": 6, "121": 4,
	"139": 8, "137": 8, "136": 6, "135": 6, "134": 6, "131": 4,
	"149": 8, "147": 8, "146": 6, "144": 6, "141": 4,
	"285": 8, "265": 8, "255": 8, "235": 6, "225": 4,
}

var applePerformanceCores = map[string]int{
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
	"m3": 4, "m3 pro": 8, "m3 max": 12, "m3 ultra": 24,
	"m4": 6, "m4 pro": 8, "m4 max": 12,
}

// GetCPUSpec returns the specification of the host CPU
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:        cpuid.CPU.BrandName,
		LogicalCores:     cpuid.CPU.LogicalCores,
		PerformanceCores: performanceCores(cpuid.CPU.BrandName),
	}
}

// OptimalThreadCount returns the recommended interpreter thread count for a
// single classifier. Hybrid CPUs use their performance cores only.
func (c CPUSpec) OptimalThreadCount() int {
	available := runtime.NumCPU()

	if c.PerformanceCores > 0 {
		return min(c.PerformanceCores, available)
	}
	if c.LogicalCores > 0 {
		return min(c.LogicalCores, available)
	}
	return available
}

// ThreadsPerInstance splits the optimal thread count across instances that
// run in parallel. An explicit request wins. The result is at least 1.
func (c CPUSpec) ThreadsPerInstance(requested, instances int) int {
	if requested > 0 {
		return requested
	}
	if instances < 1 {
		instances = 1
	}
	return max(c.OptimalThreadCount()/instances, 1)
}

func performanceCores(brandName string) int {
	brandName = strings.ToLower(brandName)

	if m := intelHybridRegex.FindStringSubmatch(brandName); m != nil {
		model := m[1]
		if model == "" {
			model = m[2]
		}
		return intelPerformanceCores[model]
	}

	if m := appleRegex.FindStringSubmatch(brandName); m != nil {
		return applePerformanceCores[strings.Join(strings.Fields(m[1]), " ")]
	}

	return 0
}
