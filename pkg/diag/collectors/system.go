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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/antimetal/sysdiag/pkg/diag"
	"github.com/antimetal/sysdiag/pkg/host"
)

func init() {
	diag.Register(diag.SectionSystem, func(logger logr.Logger, config diag.CollectionConfig) (diag.Collector, error) {
		return NewSystemCollector(logger, config)
	})
}

// Compile-time interface check
var _ diag.Collector = (*SystemCollector)(nil)

// SystemCollector gathers the report header: hostname, OS version, kernel
// release, uptime and collection time.
type SystemCollector struct {
	diag.BaseCollector
	uptimePath    string
	hostname      func() (string, error)
	kernelRelease func() (string, error)
}

func NewSystemCollector(logger logr.Logger, config diag.CollectionConfig) (*SystemCollector, error) {
	if config.Runner == nil {
		return nil, errors.New("system collector requires a command runner")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &SystemCollector{
		BaseCollector: diag.NewBaseCollector(diag.SectionSystem, "System Information Collector", logger, config),
		uptimePath:    filepath.Join(config.HostProcPath, "uptime"),
		hostname:      host.Hostname,
		kernelRelease: host.KernelRelease,
	}, nil
}

// Collect always returns a SystemInfo. Only a hostname that cannot be
// determined at all is reported as an error; a missing OS release file
// becomes a notice.
func (c *SystemCollector) Collect(ctx context.Context, target diag.Config) (any, error) {
	info := diag.SystemInfo{
		ConfiguredName: target.SystemName,
		Datestamp:      c.Config.Now().Format(diag.DatestampLayout),
	}
	var errs error

	name, err := c.lookupHostname(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	info.Hostname = name

	if version, path, err := host.OSVersion(c.Config.HostEtcPath); err != nil {
		info.Notices = append(info.Notices, fmt.Sprintf("Non-fatal error getting version info: %v", err))
	} else {
		info.OSVersion = version
		c.Logger().V(2).Info("Read OS version", "path", path)
	}

	if release, err := c.kernelRelease(); err != nil {
		c.Logger().V(1).Info("Failed to read kernel release", "error", err.Error())
	} else {
		info.KernelRelease = release
	}

	info.Uptime = c.uptime(ctx)
	return info, errs
}

func (c *SystemCollector) lookupHostname(ctx context.Context) (string, error) {
	res, err := c.Config.Runner.Run(ctx, c.Config.Executables.Hostname)
	if err == nil && res.Success() {
		if name := strings.TrimSpace(res.Output); name != "" {
			return name, nil
		}
	}

	name, kErr := c.hostname()
	if kErr != nil {
		return "", fmt.Errorf("failed to determine hostname: %w", multierr.Combine(err, kErr))
	}
	return name, nil
}

// uptime returns the uptime part of the first line of `w`:
//
//	10:15:01 up 3 days,  2:03,  2 users,  load average: 0.00, 0.01, 0.05
//
// which yields "3 days, 2:03, 2 users, load average: 0.00, 0.01, 0.05".
// /proc/uptime is used when w is not available.
func (c *SystemCollector) uptime(ctx context.Context) string {
	res, err := c.Config.Runner.Run(ctx, c.Config.Executables.W)
	if err == nil {
		if lines := res.Lines(); len(lines) > 0 {
			if fields := strings.Fields(lines[0]); len(fields) > 2 {
				return strings.Join(fields[2:], " ")
			}
		}
	}

	data, err := os.ReadFile(c.uptimePath)
	if err != nil {
		c.Logger().V(1).Info("Failed to read uptime", "path", c.uptimePath, "error", err.Error())
		return ""
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return ""
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return ""
	}
	return formatUptime(time.Duration(secs) * time.Second)
}

// formatUptime renders a duration the way uptime(1) does: "3 days, 2:03",
// "1 day, 0:05" or "17 min".
func formatUptime(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60

	var b strings.Builder
	switch {
	case days == 1:
		b.WriteString("1 day, ")
	case days > 1:
		fmt.Fprintf(&b, "%d days, ", days)
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%d:%02d", hours, mins)
	} else {
		fmt.Fprintf(&b, "%d min", mins)
	}
	return b.String()
}
