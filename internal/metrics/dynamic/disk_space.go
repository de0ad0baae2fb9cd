package dynamic

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/monify-labs/telemon/pkg/models"
)

// UsageFunc returns space usage for a mount point
type UsageFunc func(ctx context.Context, mountpoint string) (*disk.UsageStat, error)

// CollectStorage returns one entry per partition mounted right now.
// The set can change between calls (removable media).
func CollectStorage(ctx context.Context) ([]models.StorageEntry, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	return BuildStorageEntries(ctx, partitions, disk.UsageWithContext), nil
}

// BuildStorageEntries keeps partition order. Partitions whose usage cannot be
// read (empty drives, permission denied) are left out.
func BuildStorageEntries(ctx context.Context, partitions []disk.PartitionStat, usage UsageFunc) []models.StorageEntry {
	entries := make([]models.StorageEntry, 0, len(partitions))

	for _, partition := range partitions {
		// Skip special filesystems
		if shouldSkipFilesystem(partition.Fstype) {
			continue
		}

		stat, err := usage(ctx, partition.Mountpoint)
		if err != nil || stat == nil {
			continue
		}

		entries = append(entries, models.StorageEntry{
			DeviceID:    partition.Device,
			MountPoint:  partition.Mountpoint,
			UsedBytes:   stat.Used,
			FreeBytes:   stat.Free,
			PercentUsed: models.ClampPercent(stat.UsedPercent),
		})
	}

	return entries
}

// shouldSkipFilesystem determines if a filesystem type should be skipped
func shouldSkipFilesystem(fstype string) bool {
	skipTypes := map[string]bool{
		"tmpfs":    true,
		"devtmpfs": true,
		"devfs":    true,
		"proc":     true,
		"sysfs":    true,
		"cgroup":   true,
		"cgroup2":  true,
		"nsfs":     true,
		"overlay":  true,
		"squashfs": true,
		"iso9660":  true,
	}

	return skipTypes[fstype]
}
