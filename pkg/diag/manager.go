// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"

	"github.com/antimetal/sysdiag/pkg/command"
)

// Manager runs the collectors for the requested sections and assembles the report
type Manager struct {
	config    CollectionConfig
	logger    logr.Logger
	factories map[Section]NewCollector
}

type ManagerOptions struct {
	Config CollectionConfig
	Logger logr.Logger
	// Collectors overrides the global registry, section by section.
	Collectors map[Section]NewCollector
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	logger := opts.Logger.WithName("diag-manager")

	config := opts.Config
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collection config: %w", err)
	}
	if config.Runner == nil {
		config.Runner = command.NewExecRunner(opts.Logger)
	}

	return &Manager{
		config:    config,
		logger:    logger,
		factories: opts.Collectors,
	}, nil
}

// GetConfig returns the effective configuration
func (m *Manager) GetConfig() CollectionConfig {
	return m.config
}

type sectionResult struct {
	data any
	stat CollectorStat
}

// Run collects the system section plus the requested sections and returns
// the assembled report. With no sections the full report is produced.
//
// Collector failures never fail the run; they are recorded in
// Report.Run.CollectorStats and returned by Report.Err. Run only fails
// on an unknown section.
func (m *Manager) Run(ctx context.Context, target Config, sections ...Section) (*Report, error) {
	selected, full, err := normalizeSections(sections)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Timestamp: m.config.Now(),
		Config:    target,
		Full:      full,
		Sections:  selected,
		Run: CollectorRunInfo{
			CollectorStats: make(map[Section]CollectorStat, len(selected)+1),
		},
	}

	all := append([]Section{SectionSystem}, selected...)
	results := make([]sectionResult, len(all))

	start := time.Now()
	p := pool.New().WithMaxGoroutines(m.config.MaxConcurrency)
	for i, section := range all {
		i, section := i, section
		p.Go(func() {
			results[i] = m.collect(ctx, section, target)
		})
	}
	p.Wait()
	report.Run.Duration = time.Since(start)

	for i, section := range all {
		res := results[i]
		if res.data != nil {
			if err := report.assign(section, res.data); err != nil {
				res.stat = failedStat(res.stat.Duration, err)
			}
		}
		report.Run.CollectorStats[section] = res.stat
	}

	m.logger.V(1).Info("collection finished",
		"sections", selected, "full", full, "duration", report.Run.Duration)
	return report, nil
}

func (m *Manager) collect(ctx context.Context, section Section, target Config) (res sectionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("collector panicked: %v", r)
			m.logger.Error(err, "collector failed", "section", section)
			res = sectionResult{stat: failedStat(time.Since(start), err)}
		}
	}()

	factory, err := m.factory(section)
	if err != nil {
		return sectionResult{stat: failedStat(time.Since(start), err)}
	}
	collector, err := factory(m.logger.WithName("collector"), m.config)
	if err != nil {
		return sectionResult{stat: failedStat(time.Since(start), fmt.Errorf("failed to create collector: %w", err))}
	}

	data, err := collector.Collect(ctx, target)
	elapsed := time.Since(start)

	switch {
	case data == nil:
		if err == nil {
			err = fmt.Errorf("collector %s returned no data", collector.Name())
		}
		m.logger.V(1).Info("collector failed", "section", section, "error", err.Error())
		return sectionResult{stat: failedStat(elapsed, err)}
	case err != nil:
		m.logger.V(1).Info("collector degraded", "section", section, "error", err.Error())
		return sectionResult{data: data, stat: CollectorStat{
			Status:   CollectorStatusDegraded,
			Duration: elapsed,
			Error:    err,
			Message:  err.Error(),
		}}
	default:
		m.logger.V(2).Info("collector finished", "section", section, "duration", elapsed)
		return sectionResult{data: data, stat: CollectorStat{Status: CollectorStatusActive, Duration: elapsed}}
	}
}

func (m *Manager) factory(section Section) (NewCollector, error) {
	if f, ok := m.factories[section]; ok {
		return f, nil
	}
	return GetCollector(section)
}

func failedStat(elapsed time.Duration, err error) CollectorStat {
	return CollectorStat{
		Status:   CollectorStatusFailed,
		Duration: elapsed,
		Error:    err,
		Message:  err.Error(),
	}
}

// assign stores collector data in the report field owned by section.
func (r *Report) assign(section Section, data any) error {
	var ok bool
	switch section {
	case SectionSystem:
		var v SystemInfo
		if v, ok = data.(SystemInfo); ok {
			r.System = &v
		}
	case SectionDisks:
		r.Disks, ok = data.([]DiskUsage)
	case SectionCPU:
		var v CPULoad
		if v, ok = data.(CPULoad); ok {
			r.CPU = &v
		}
	case SectionMemory:
		var v MemoryReport
		if v, ok = data.(MemoryReport); ok {
			r.Memory = &v
		}
	case SectionNetwork:
		var v NetworkInterfaceInfo
		if v, ok = data.(NetworkInterfaceInfo); ok {
			r.Network = &v
		}
	case SectionReachability:
		var v ReachabilityResult
		if v, ok = data.(ReachabilityResult); ok {
			r.Reachability = &v
		}
	case SectionServices:
		r.Services, ok = data.([]ServiceStatus)
	}
	if !ok {
		return fmt.Errorf("unexpected data type %T for section %s", data, section)
	}
	return nil
}

// normalizeSections validates the requested sections and returns them in
// display order without duplicates. An empty request selects every section.
func normalizeSections(requested []Section) ([]Section, bool, error) {
	if len(requested) == 0 {
		return append([]Section(nil), ReportSections...), true, nil
	}

	want := make(map[Section]bool, len(requested))
	for _, s := range requested {
		if !isReportSection(s) {
			return nil, false, fmt.Errorf("unknown report section %q", s)
		}
		want[s] = true
	}

	selected := make([]Section, 0, len(want))
	for _, s := range ReportSections {
		if want[s] {
			selected = append(selected, s)
		}
	}
	return selected, false, nil
}

func isReportSection(s Section) bool {
	for _, known := range ReportSections {
		if s == known {
			return true
		}
	}
	return false
}
