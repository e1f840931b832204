// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/antimetal/sysdiag/pkg/command"
	"github.com/antimetal/sysdiag/pkg/diag"
)

func init() {
	diag.Register(diag.SectionMemory, func(logger logr.Logger, config diag.CollectionConfig) (diag.Collector, error) {
		return NewMemoryCollector(logger, config)
	})
}

// Compile-time interface check
var _ diag.Collector = (*MemoryCollector)(nil)

const (
	memorySourceFree    = "free"
	memorySourceMeminfo = "/proc/meminfo"
)

// MemoryCollector reports memory and swap totals.
//
// The primary source is `free -b`. Its column set depends on the procps
// version, so the header is read at run time and every value is keyed by its
// column name. When free is not installed the collector falls back to
// /proc/meminfo and synthesizes the same keys.
type MemoryCollector struct {
	diag.BaseCollector
	meminfoPath string
}

func NewMemoryCollector(logger logr.Logger, config diag.CollectionConfig) (*MemoryCollector, error) {
	if config.Runner == nil {
		return nil, errors.New("memory collector requires a command runner")
	}
	return &MemoryCollector{
		BaseCollector: diag.NewBaseCollector(diag.SectionMemory, "Memory and Swap Collector", logger, config),
		meminfoPath:   filepath.Join(config.HostProcPath, "meminfo"),
	}, nil
}

func (c *MemoryCollector) Collect(ctx context.Context, _ diag.Config) (any, error) {
	res, err := c.Config.Runner.Run(ctx, c.Config.Executables.Free, "-b")
	if err != nil {
		if !errors.Is(err, command.ErrUnavailable) {
			return nil, err
		}
		c.Logger().V(1).Info("free unavailable, reading meminfo", "path", c.meminfoPath)
		report, mErr := c.readMeminfo()
		if mErr != nil {
			return nil, multierr.Combine(err, mErr)
		}
		return report, nil
	}

	report, err := parseFree(res.Lines())
	if err != nil {
		c.Logger().V(1).Info("Failed to parse free output", "error", err.Error())
	}
	return report, err
}

// freeFormat is the layout variant of the free output.
type freeFormat int

const (
	// freeFormatModern has the memory row directly followed by the swap row
	// (procps-ng 3.3.10 and later: "available" and "buff/cache" columns).
	freeFormatModern freeFormat = iota
	// freeFormatLegacy inserts a "-/+ buffers/cache" row between the memory
	// and swap rows (older procps with "buffers" and "cached" columns).
	freeFormatLegacy
)

const legacyBuffersRowPrefix = "-/+"

func detectFreeFormat(lines []string) freeFormat {
	if len(lines) > 2 && strings.HasPrefix(strings.TrimSpace(lines[2]), legacyBuffersRowPrefix) {
		return freeFormatLegacy
	}
	return freeFormatModern
}

// parseFree parses the output of `free -b`:
//
//	               total        used        free      shared  buff/cache   available
//	Mem:     16663322624  5213491200  6412705792   362479616  5037125632 10783412224
//	Swap:     2147479552           0  2147479552
//
// The header has no label column, so header[i] names the value at data[i+1].
// Short rows are zipped as far as they go; the swap row usually stops after
// "free". Output with fewer than three lines yields empty snapshots and an
// error.
func parseFree(lines []string) (diag.MemoryReport, error) {
	report := diag.MemoryReport{
		Memory: diag.MemorySnapshot{},
		Swap:   diag.MemorySnapshot{},
		Source: memorySourceFree,
	}
	if len(lines) < 3 {
		return report, fmt.Errorf("free: %w: %d lines", ErrUnexpectedOutput, len(lines))
	}

	swapRow := 2
	if detectFreeFormat(lines) == freeFormatLegacy {
		swapRow = 3
	}
	if swapRow >= len(lines) {
		return report, fmt.Errorf("free: %w: no swap row", ErrUnexpectedOutput)
	}

	header := strings.Fields(lines[0])
	errs := multierr.Combine(
		zipRow(report.Memory, header, strings.Fields(lines[1])),
		zipRow(report.Swap, header, strings.Fields(lines[swapRow])),
	)
	return report, errs
}

func zipRow(into diag.MemorySnapshot, header, row []string) error {
	if len(row) == 0 {
		return fmt.Errorf("free: %w: empty row", ErrUnexpectedOutput)
	}
	var errs error
	for i := 0; i < len(header) && i+1 < len(row); i++ {
		v, err := strconv.ParseUint(row[i+1], 10, 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("free: %s %q: %w", header[i], row[i+1], ErrUnexpectedOutput))
			continue
		}
		into[header[i]] = v
	}
	return errs
}

// readMeminfo builds the free-style snapshots from /proc/meminfo.
// Values are converted from kB to bytes. Cached includes SReclaimable, and
// used excludes buffers and cache, as procps computes them.
func (c *MemoryCollector) readMeminfo() (diag.MemoryReport, error) {
	file, err := os.Open(c.meminfoPath)
	if err != nil {
		return diag.MemoryReport{}, fmt.Errorf("failed to open %s: %w", c.meminfoPath, err)
	}
	defer file.Close()

	fields := make(map[string]uint64)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// Lines are formatted as "FieldName:   value kB"
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		name := strings.TrimSuffix(parts[0], ":")
		value, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			c.Logger().V(2).Info("Failed to parse memory field value",
				"field", name, "value", parts[1], "error", err)
			continue
		}
		fields[name] = value * 1024
	}
	if err := scanner.Err(); err != nil {
		return diag.MemoryReport{}, fmt.Errorf("error reading %s: %w", c.meminfoPath, err)
	}
	if _, ok := fields["MemTotal"]; !ok {
		return diag.MemoryReport{}, fmt.Errorf("%s: %w: no MemTotal", c.meminfoPath, ErrUnexpectedOutput)
	}

	return meminfoReport(fields), nil
}

func meminfoReport(fields map[string]uint64) diag.MemoryReport {
	total := fields["MemTotal"]
	free := fields["MemFree"]
	buffers := fields["Buffers"]
	cached := fields["Cached"] + fields["SReclaimable"]

	used := subClamp(total, free+buffers+cached)

	mem := diag.MemorySnapshot{
		diag.MemFieldTotal:   total,
		diag.MemFieldUsed:    used,
		diag.MemFieldFree:    free,
		diag.MemFieldShared:  fields["Shmem"],
		diag.MemFieldBuffers: buffers,
		diag.MemFieldCached:  cached,
	}
	if avail, ok := fields["MemAvailable"]; ok {
		mem[diag.MemFieldAvailable] = avail
	}

	swapTotal := fields["SwapTotal"]
	swapFree := fields["SwapFree"]
	swap := diag.MemorySnapshot{
		diag.MemFieldTotal: swapTotal,
		diag.MemFieldUsed:  subClamp(swapTotal, swapFree),
		diag.MemFieldFree:  swapFree,
	}

	return diag.MemoryReport{Memory: mem, Swap: swap, Source: memorySourceMeminfo}
}

func subClamp(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
