// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/antimetal/sysdiag/pkg/diag"
)

func init() {
	diag.Register(diag.SectionDisks, func(logger logr.Logger, config diag.CollectionConfig) (diag.Collector, error) {
		return NewDiskCollector(logger, config)
	})
}

// Compile-time interface check
var _ diag.Collector = (*DiskCollector)(nil)

// FSStats holds the block counts of one filesystem
type FSStats struct {
	BlockSize  uint64 // fragment size, the unit of Blocks and FreeBlocks
	Blocks     uint64
	FreeBlocks uint64
}

// StatFS queries filesystem statistics for the filesystem containing path.
type StatFS func(path string) (FSStats, error)

// DiskCollector reports usage of the configured mount points.
//
// Statistics come from the statfs(2) syscall rather than a parsed df, so
// there is no output format to tolerate. free counts all free blocks,
// including those reserved for root, which matches what statvfs reports
// as f_bfree.
type DiskCollector struct {
	diag.BaseCollector
	statfs StatFS
}

func NewDiskCollector(logger logr.Logger, config diag.CollectionConfig) (*DiskCollector, error) {
	return &DiskCollector{
		BaseCollector: diag.NewBaseCollector(diag.SectionDisks, "Disk Usage Collector", logger, config),
		statfs:        statfs,
	}, nil
}

// Collect returns one DiskUsage per configured mount point, in config order.
// A mount point that cannot be queried gets an entry carrying its error and
// the other disks are still reported.
func (c *DiskCollector) Collect(ctx context.Context, target diag.Config) (any, error) {
	disks := make([]diag.DiskUsage, 0, len(target.DiskMountPoints))
	var errs error

	for _, mount := range target.DiskMountPoints {
		usage, err := c.usage(mount)
		if err != nil {
			c.Logger().V(1).Info("Failed to stat filesystem", "mount", mount, "error", err.Error())
			errs = multierr.Append(errs, err)
		}
		disks = append(disks, usage)
	}

	c.Logger().V(1).Info("Collected disk usage", "disks", len(disks))
	return disks, errs
}

func (c *DiskCollector) usage(mount string) (diag.DiskUsage, error) {
	st, err := c.statfs(mount)
	if err != nil {
		err = fmt.Errorf("statfs %s: %w", mount, err)
		return diag.DiskUsage{MountPoint: mount, Error: err.Error()}, err
	}

	total := st.BlockSize * st.Blocks
	free := st.BlockSize * st.FreeBlocks
	if free > total {
		free = total
	}
	used := total - free

	return diag.DiskUsage{
		MountPoint:  mount,
		TotalBytes:  total,
		UsedBytes:   used,
		FreeBytes:   free,
		PercentUsed: percentUsed(used, total),
	}, nil
}

// percentUsed returns used/total as a percentage with one decimal.
//
// Half a display unit (0.05) is added before rounding half away from zero,
// so a nearly full disk never reads lower than it is: 99.96 shows as 100.0.
// In tenths of a percent that is floor(used*1000/total) + 1, capped at 1000.
// An empty filesystem reads 0.0. Integer math keeps large filesystems exact.
func percentUsed(used, total uint64) float64 {
	if total == 0 || used == 0 {
		return 0
	}
	hi, lo := bits.Mul64(used, 1000)
	tenths, _ := bits.Div64(hi, lo, total)
	tenths++
	if tenths > 1000 {
		tenths = 1000
	}
	return float64(tenths) / 10
}
