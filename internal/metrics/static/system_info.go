package static

import (
	"context"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/monify-labs/telemon/pkg/models"
)

// CollectSystemInfo gathers hostname, OS and kernel information
func CollectSystemInfo(ctx context.Context) (*models.HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return &models.HostInfo{
		Hostname:        info.Hostname,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
		BootTime:        info.BootTime,
	}, nil
}
