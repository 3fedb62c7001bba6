package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
)

// HostSummary identifies the machine in startup logs and `usbkill status`.
type HostSummary struct {
	Hostname        string
	OS              string
	Platform        string
	PlatformVersion string
	KernelVersion   string
	Uptime          uint64
}

// DriveUsage is the capacity of a mounted drive.
type DriveUsage struct {
	Path        string
	Fstype      string
	Total       uint64
	Used        uint64
	UsedPercent float64
}

type (
	hostInfoFunc  func(ctx context.Context) (*host.InfoStat, error)
	diskUsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)
)

type Monitor struct {
	hostInfo  hostInfoFunc
	diskUsage diskUsageFunc
}

func NewMonitor() *Monitor {
	return &Monitor{
		hostInfo:  host.InfoWithContext,
		diskUsage: disk.UsageWithContext,
	}
}

func (m *Monitor) HostSummary(ctx context.Context) (HostSummary, error) {
	info, err := m.hostInfo(ctx)
	if err != nil {
		return HostSummary{}, fmt.Errorf("failed to read host info: %w", err)
	}
	return HostSummary{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Uptime:          info.Uptime,
	}, nil
}

func (m *Monitor) DriveUsage(ctx context.Context, path string) (DriveUsage, error) {
	usage, err := m.diskUsage(ctx, path)
	if err != nil {
		return DriveUsage{}, fmt.Errorf("failed to read usage of %s: %w", path, err)
	}
	return DriveUsage{
		Path:        usage.Path,
		Fstype:      usage.Fstype,
		Total:       usage.Total,
		Used:        usage.Used,
		UsedPercent: usage.UsedPercent,
	}, nil
}
