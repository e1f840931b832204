// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"errors"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/sysdiag/pkg/command"
	"github.com/antimetal/sysdiag/pkg/diag"
)

func init() {
	diag.Register(diag.SectionServices, func(logger logr.Logger, config diag.CollectionConfig) (diag.Collector, error) {
		return NewServiceCollector(logger, config)
	})
}

// Compile-time interface check
var _ diag.Collector = (*ServiceCollector)(nil)

// activeLinePosition is where systemd's status output puts the Active: line
// when no Drop-In or TriggeredBy lines precede it.
const activeLinePosition = 2

// ServiceCollector queries the status of each configured service.
//
// A stopped or unknown service is a normal result, not an error: the status
// tool's exit code is ignored and every service yields a ServiceStatus.
// systemctl is tried first and the SysV service wrapper second.
type ServiceCollector struct {
	diag.BaseCollector
}

func NewServiceCollector(logger logr.Logger, config diag.CollectionConfig) (*ServiceCollector, error) {
	if config.Runner == nil {
		return nil, errors.New("service collector requires a command runner")
	}
	return &ServiceCollector{
		BaseCollector: diag.NewBaseCollector(diag.SectionServices, "Service Status Collector", logger, config),
	}, nil
}

func (c *ServiceCollector) Collect(ctx context.Context, target diag.Config) (any, error) {
	statuses := make([]diag.ServiceStatus, len(target.ServiceNames))
	forEachBounded(len(target.ServiceNames), c.Config.MaxConcurrency, func(i int) {
		statuses[i] = c.status(ctx, target.ServiceNames[i])
	})

	running := 0
	for _, s := range statuses {
		if s.Running() {
			running++
		}
	}
	c.Logger().V(1).Info("Checked services", "services", len(statuses), "running", running)
	return statuses, nil
}

func (c *ServiceCollector) status(ctx context.Context, name string) diag.ServiceStatus {
	res, err := c.Config.Runner.Run(ctx, c.Config.Executables.Systemctl, "status", name)
	if err == nil {
		return ParseSystemctlStatus(name, res.Lines())
	}
	if !errors.Is(err, command.ErrUnavailable) {
		return diag.UnavailableServiceStatus(name, err.Error())
	}

	c.Logger().V(2).Info("systemctl unavailable, trying service", "service", name)
	res, err = c.Config.Runner.Run(ctx, c.Config.Executables.Service, name, "status")
	if err != nil {
		return diag.UnavailableServiceStatus(name, "no service status tool available")
	}
	return diag.RawServiceStatus(name, strings.TrimSpace(res.Output))
}

// ParseSystemctlStatus reads the activation and run state from the output
// of `systemctl status NAME`:
//
//	● sshd.service - OpenSSH server daemon
//	   Loaded: loaded (/usr/lib/systemd/system/sshd.service; enabled; vendor preset: enabled)
//	   Active: active (running) since Mon 2024-01-15 10:00:00 UTC; 1h ago
//
// The Active: line is found by its label; the third line is used when no
// line carries the label. Output of fewer than three lines, such as
// "Unit foo.service could not be found.", is kept verbatim.
func ParseSystemctlStatus(name string, lines []string) diag.ServiceStatus {
	if len(lines) <= activeLinePosition {
		return diag.RawServiceStatus(name, strings.Join(lines, "\n"))
	}

	line := lines[activeLinePosition]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "Active:") {
			line = l
			break
		}
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return diag.RawServiceStatus(name, strings.Join(lines, "\n"))
	}
	return diag.ParsedServiceStatus(name, fields[1], fields[2])
}
