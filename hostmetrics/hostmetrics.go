// Package hostmetrics samples host CPU, memory and disk utilization.
//
// Source satisfies health.MetricsSource. CPU utilization is measured over a
// blocking window rather than read as a since-boot average, so every call to
// Sample blocks for at least that window.
package hostmetrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/jonwraymond/healthprobe/health"
)

// DefaultDiskPath is the filesystem whose usage is sampled.
const DefaultDiskPath = "/"

// ErrNoCPUReading indicates the CPU sampler returned no values.
var ErrNoCPUReading = errors.New("hostmetrics: no cpu reading")

// Config configures a Source.
type Config struct {
	// DiskPath is the mount point sampled for disk usage.
	// Default: "/"
	DiskPath string
}

// Source reads utilization from the operating system.
type Source struct {
	config Config

	// Overridable for tests.
	cpuPercent  func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error)
	memPercent  func(ctx context.Context) (float64, error)
	diskPercent func(ctx context.Context, path string) (float64, error)
}

var _ health.MetricsSource = (*Source)(nil)

// New creates an OS-backed Source.
func New(config Config) *Source {
	if config.DiskPath == "" {
		config.DiskPath = DefaultDiskPath
	}
	return &Source{
		config:     config,
		cpuPercent: cpu.PercentWithContext,
		memPercent: func(ctx context.Context) (float64, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return vm.UsedPercent, nil
		},
		diskPercent: func(ctx context.Context, path string) (float64, error) {
			usage, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, err
			}
			return usage.UsedPercent, nil
		},
	}
}

// Sample blocks for cpuWindow while measuring CPU, then reads current memory
// and disk usage. Any failing reading fails the whole sample.
func (s *Source) Sample(ctx context.Context, cpuWindow time.Duration) (health.MetricSample, error) {
	cpus, err := s.cpuPercent(ctx, cpuWindow, false)
	if err != nil {
		return health.MetricSample{}, fmt.Errorf("cpu: %w", err)
	}
	if len(cpus) == 0 {
		return health.MetricSample{}, ErrNoCPUReading
	}

	ram, err := s.memPercent(ctx)
	if err != nil {
		return health.MetricSample{}, fmt.Errorf("memory: %w", err)
	}

	diskPct, err := s.diskPercent(ctx, s.config.DiskPath)
	if err != nil {
		return health.MetricSample{}, fmt.Errorf("disk %s: %w", s.config.DiskPath, err)
	}

	return health.MetricSample{
		CPUPercent:  cpus[0],
		RAMPercent:  ram,
		DiskPercent: diskPct,
	}, nil
}

// Static is a MetricsSource returning a fixed sample. It backs tests and
// dry runs.
type Static struct {
	Reading health.MetricSample
	Err     error
}

// Sample returns the fixed reading without blocking.
func (s Static) Sample(ctx context.Context, _ time.Duration) (health.MetricSample, error) {
	if err := ctx.Err(); err != nil {
		return health.MetricSample{}, err
	}
	return s.Reading, s.Err
}
