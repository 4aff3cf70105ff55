// Package envinfo collects a best-effort report of the local machine,
// the moral equivalent of a hosted runner's environment dump. Probes
// that fail leave their fields zeroed rather than failing the report.
package envinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Report describes the machine a run executes on.
type Report struct {
	Hostname        string `json:"hostname,omitempty"`
	OS              string `json:"os"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	Arch            string `json:"arch"`
	CPUModel        string `json:"cpu_model,omitempty"`
	CPUCount        int    `json:"cpu_count"`
	MemoryTotalMB   uint64 `json:"memory_total_mb,omitempty"`
	GoVersion       string `json:"go_version"`
}

// Collect probes the host. It never returns an error: each probe is
// independent and a missing value is better than no report.
func Collect(ctx context.Context) *Report {
	r := &Report{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUCount:  runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		r.Hostname = info.Hostname
		r.Platform = info.Platform
		r.PlatformVersion = info.PlatformVersion
		r.KernelVersion = info.KernelVersion
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		r.CPUModel = cpus[0].ModelName
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r.MemoryTotalMB = vm.Total / (1024 * 1024)
	}

	return r
}
