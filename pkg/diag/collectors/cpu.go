// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/sysdiag/pkg/diag"
)

func init() {
	diag.Register(diag.SectionCPU, func(logger logr.Logger, config diag.CollectionConfig) (diag.Collector, error) {
		return NewCPUCollector(logger, config)
	})
}

// Compile-time interface check
var _ diag.Collector = (*CPUCollector)(nil)

const (
	cpuColumn        = "CPU"
	mpstatHeaderLine = 2
)

// CPUCollector reports per-CPU load from `mpstat -P ALL`.
//
// There is no fallback source: when mpstat is missing the section reports
// no data.
type CPUCollector struct {
	diag.BaseCollector
}

func NewCPUCollector(logger logr.Logger, config diag.CollectionConfig) (*CPUCollector, error) {
	if config.Runner == nil {
		return nil, errors.New("cpu collector requires a command runner")
	}
	return &CPUCollector{
		BaseCollector: diag.NewBaseCollector(diag.SectionCPU, "CPU Load Collector", logger, config),
	}, nil
}

func (c *CPUCollector) Collect(ctx context.Context, _ diag.Config) (any, error) {
	res, err := c.Config.Runner.Run(ctx, c.Config.Executables.MPStat, "-P", "ALL")
	if err != nil {
		return nil, err
	}

	load, err := parseMPStat(res.Lines())
	if err != nil {
		return nil, err
	}
	c.Logger().V(1).Info("Collected CPU load", "cpus", load.Count)
	return load, nil
}

// parseMPStat parses the output of `mpstat -P ALL`:
//
//	Linux 5.15.0-91-generic (db1)   01/15/2024      _x86_64_        (2 CPU)
//
//	10:15:01 AM  CPU    %usr   %nice    %sys %iowait    %irq   %soft  %steal  %guest  %gnice   %idle
//	10:15:01 AM  all    2.51    0.01    0.83    0.12    0.00    0.05    0.00    0.00    0.00   96.48
//	10:15:01 AM    0    2.60    0.01    0.85    0.11    0.00    0.10    0.00    0.00    0.00   96.33
//	10:15:01 AM    1    2.42    0.01    0.81    0.13    0.00    0.00    0.00    0.00    0.00   96.63
//
// The column header follows the two banner lines. Its first label is a
// timestamp and is renamed "Time"; under a 12-hour locale the second label
// is the AM/PM marker and is renamed "AM/PM". Rows are keyed by their CPU
// column. The block ends at a blank line or the "Average:" summary.
func parseMPStat(lines []string) (diag.CPULoad, error) {
	headerIdx := findMPStatHeader(lines)
	if headerIdx < 0 {
		return diag.CPULoad{}, fmt.Errorf("mpstat: %w: no column header", ErrUnexpectedOutput)
	}

	columns := strings.Fields(lines[headerIdx])
	columns[0] = "Time"
	if len(columns) > 1 && isMeridiem(columns[1]) {
		columns[1] = "AM/PM"
	}

	load := diag.CPULoad{
		Columns: columns,
		Rows:    make(map[string]map[string]string),
	}
	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Average:") {
			break
		}
		fields := strings.Fields(line)
		row := make(map[string]string, len(columns))
		for i := 0; i < len(columns) && i < len(fields); i++ {
			row[columns[i]] = fields[i]
		}
		key, ok := row[cpuColumn]
		if !ok {
			continue
		}
		load.Rows[key] = row
		if isUint(key) {
			load.Count++
		}
	}

	if len(load.Rows) == 0 {
		return load, fmt.Errorf("mpstat: %w: no cpu rows", ErrUnexpectedOutput)
	}
	return load, nil
}

// findMPStatHeader returns the index of the column header line. The header
// is expected right after the banner, but any line carrying a CPU column
// label is accepted in case the banner length differs.
func findMPStatHeader(lines []string) int {
	if mpstatHeaderLine < len(lines) && slices.Contains(strings.Fields(lines[mpstatHeaderLine]), cpuColumn) {
		return mpstatHeaderLine
	}
	for i, line := range lines {
		if slices.Contains(strings.Fields(line), cpuColumn) {
			return i
		}
	}
	return -1
}

func isMeridiem(s string) bool {
	return s == "AM" || s == "PM"
}
