// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diag

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Section identifies one part of the diagnostics report
type Section string

const (
	SectionSystem       Section = "system"
	SectionDisks        Section = "disks"
	SectionCPU          Section = "cpu"
	SectionMemory       Section = "memory"
	SectionNetwork      Section = "network"
	SectionReachability Section = "reachability"
	SectionServices     Section = "services"
)

// ReportSections lists the selectable sections in display order.
// SectionSystem is not selectable; it is always collected.
var ReportSections = []Section{
	SectionDisks,
	SectionCPU,
	SectionMemory,
	SectionNetwork,
	SectionReachability,
	SectionServices,
}

// CollectorStatus represents the outcome of one collector run
type CollectorStatus string

const (
	CollectorStatusActive   CollectorStatus = "active"
	CollectorStatusDegraded CollectorStatus = "degraded"
	CollectorStatusFailed   CollectorStatus = "failed"
)

// Config is the per-host configuration read from the config file.
// It is built once by the loader and only read afterwards.
type Config struct {
	SystemName       string   `json:"system_name" yaml:"system_name"`
	NetworkInterface string   `json:"network" yaml:"network"`
	DiskMountPoints  []string `json:"disks" yaml:"disks"`
	ServiceNames     []string `json:"services" yaml:"services"`
}

// Report is one complete diagnostics snapshot
type Report struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Config    Config    `json:"config" yaml:"config"`
	// ConfigFile is the file Config was read from, if any.
	ConfigFile string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	// Full is set when no section was explicitly selected.
	Full     bool      `json:"full" yaml:"full"`
	Sections []Section `json:"sections" yaml:"sections"`

	System       *SystemInfo           `json:"system,omitempty" yaml:"system,omitempty"`
	Disks        []DiskUsage           `json:"disks,omitempty" yaml:"disks,omitempty"`
	CPU          *CPULoad              `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory       *MemoryReport         `json:"memory,omitempty" yaml:"memory,omitempty"`
	Network      *NetworkInterfaceInfo `json:"network,omitempty" yaml:"network,omitempty"`
	Reachability *ReachabilityResult   `json:"reachability,omitempty" yaml:"reachability,omitempty"`
	Services     []ServiceStatus       `json:"services,omitempty" yaml:"services,omitempty"`

	Run CollectorRunInfo `json:"run" yaml:"run"`
}

// Has reports whether section was requested for this report.
func (r *Report) Has(section Section) bool {
	for _, s := range r.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// Err combines the errors of every collector in the run, in section order.
func (r *Report) Err() error {
	var err error
	for _, s := range append([]Section{SectionSystem}, r.Sections...) {
		if stat, ok := r.Run.CollectorStats[s]; ok && stat.Error != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s, stat.Error))
		}
	}
	return err
}

// CollectorRunInfo contains metadata about a collection run
type CollectorRunInfo struct {
	Duration       time.Duration             `json:"duration" yaml:"duration"`
	CollectorStats map[Section]CollectorStat `json:"collectors" yaml:"collectors"`
}

// CollectorStat tracks individual collector outcome
type CollectorStat struct {
	Status   CollectorStatus `json:"status" yaml:"status"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
	Error    error           `json:"-" yaml:"-"`
	Message  string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// SystemInfo describes the host the report was taken on
type SystemInfo struct {
	// ConfiguredName is the system_name from the config file.
	ConfiguredName string `json:"configured_name" yaml:"configured_name"`
	Hostname       string `json:"hostname" yaml:"hostname"`
	OSVersion      string `json:"os_version" yaml:"os_version"`
	KernelRelease  string `json:"kernel_release,omitempty" yaml:"kernel_release,omitempty"`
	Uptime         string `json:"uptime" yaml:"uptime"`
	// Datestamp is the local collection time formatted as DatestampLayout.
	Datestamp string `json:"datestamp" yaml:"datestamp"`
	// Notices holds non-fatal problems met while gathering the fields above.
	Notices []string `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// DatestampLayout is the layout of SystemInfo.Datestamp.
const DatestampLayout = "2006-01-02 15:04:05"

// NameMatches reports whether the configured system name equals the hostname.
func (s SystemInfo) NameMatches() bool {
	return s.ConfiguredName == s.Hostname
}

// DiskUsage holds filesystem usage for one configured mount point.
// Invariant: UsedBytes + FreeBytes == TotalBytes.
type DiskUsage struct {
	MountPoint  string  `json:"mount_point" yaml:"mount_point"`
	TotalBytes  uint64  `json:"total_bytes" yaml:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes" yaml:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes" yaml:"free_bytes"`
	PercentUsed float64 `json:"percent_used" yaml:"percent_used"`
	// Error is set when the mount point could not be queried.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// MemorySnapshot maps the field names found in the memory tool's header
// to byte counts. The key set varies across tool versions, so use the
// accessors rather than indexing fixed keys.
type MemorySnapshot map[string]uint64

// Memory field names
const (
	MemFieldTotal     = "total"
	MemFieldUsed      = "used"
	MemFieldFree      = "free"
	MemFieldShared    = "shared"
	MemFieldBuffers   = "buffers"
	MemFieldCached    = "cached"
	MemFieldBuffCache = "buff/cache"
	MemFieldAvailable = "available"
)

// Get returns the raw value of a field.
func (m MemorySnapshot) Get(field string) (uint64, bool) {
	v, ok := m[field]
	return v, ok
}

func (m MemorySnapshot) Total() (uint64, bool)  { return m.Get(MemFieldTotal) }
func (m MemorySnapshot) Used() (uint64, bool)   { return m.Get(MemFieldUsed) }
func (m MemorySnapshot) Free() (uint64, bool)   { return m.Get(MemFieldFree) }
func (m MemorySnapshot) Shared() (uint64, bool) { return m.Get(MemFieldShared) }

// Available returns the "available" field, or cached + free when the tool
// does not report it.
func (m MemorySnapshot) Available() (uint64, bool) {
	if v, ok := m[MemFieldAvailable]; ok {
		return v, true
	}
	return m.sum(MemFieldCached, MemFieldFree)
}

// BuffCache returns the "buff/cache" field, or buffers + cached when the
// tool reports them separately.
func (m MemorySnapshot) BuffCache() (uint64, bool) {
	if v, ok := m[MemFieldBuffCache]; ok {
		return v, true
	}
	return m.sum(MemFieldBuffers, MemFieldCached)
}

func (m MemorySnapshot) sum(fields ...string) (uint64, bool) {
	var total uint64
	for _, f := range fields {
		v, ok := m[f]
		if !ok {
			return 0, false
		}
		total += v
	}
	return total, true
}

// MemoryReport is the output of the memory collector
type MemoryReport struct {
	Memory MemorySnapshot `json:"memory" yaml:"memory"`
	Swap   MemorySnapshot `json:"swap" yaml:"swap"`
	// Source names where the values came from, e.g. "free" or "/proc/meminfo".
	Source string `json:"source" yaml:"source"`
}

// CPULoad holds one row per CPU from the per-CPU load tool. Column names
// are taken from the tool's own header, so Rows values are keyed by them.
type CPULoad struct {
	Columns []string                     `json:"columns" yaml:"columns"`
	Rows    map[string]map[string]string `json:"rows" yaml:"rows"`
	// Count is the number of numbered CPUs; the aggregate "all" row is not counted.
	Count int `json:"count" yaml:"count"`
}

// IdleColumn is the header label of the idle percentage column.
const IdleColumn = "%idle"

// Idle returns the idle percentage of a CPU, exactly as the tool printed it.
func (c CPULoad) Idle(cpu int) (string, bool) {
	row, ok := c.Rows[strconv.Itoa(cpu)]
	if !ok {
		return "", false
	}
	v, ok := row[IdleColumn]
	return v, ok
}

// NetworkInterfaceInfo is the output of the network collector. Counter keys
// come from the labels in the tool output.
type NetworkInterfaceInfo struct {
	Interface string            `json:"interface" yaml:"interface"`
	Header    string            `json:"header" yaml:"header"`
	Address   string            `json:"address" yaml:"address"`
	RX        map[string]string `json:"rx_errors" yaml:"rx_errors"`
	TX        map[string]string `json:"tx_errors" yaml:"tx_errors"`
	Source    string            `json:"source" yaml:"source"`
}

// ReachabilityResult lists one diagnostic line per host that could not be
// reached. No lines means every host answered.
type ReachabilityResult struct {
	Checked  int      `json:"checked" yaml:"checked"`
	Failures []string `json:"failures" yaml:"failures"`
}

// OK reports whether all hosts were reachable.
func (r ReachabilityResult) OK() bool {
	return len(r.Failures) == 0
}

// ServiceOutcome tags how a service status was obtained
type ServiceOutcome string

const (
	// ServiceParsed means the status tool reported activation and run state.
	ServiceParsed ServiceOutcome = "parsed"
	// ServiceRaw means the output did not have the expected shape and is kept verbatim.
	ServiceRaw ServiceOutcome = "raw"
	// ServiceUnavailable means no status tool could be run.
	ServiceUnavailable ServiceOutcome = "unavailable"
)

// ServiceStatus is the status of one configured service
type ServiceStatus struct {
	Name       string         `json:"name" yaml:"name"`
	Outcome    ServiceOutcome `json:"outcome" yaml:"outcome"`
	Activation string         `json:"activation,omitempty" yaml:"activation,omitempty"`
	RunState   string         `json:"run_state,omitempty" yaml:"run_state,omitempty"`
	Raw        string         `json:"raw,omitempty" yaml:"raw,omitempty"`
}

func ParsedServiceStatus(name, activation, runState string) ServiceStatus {
	return ServiceStatus{Name: name, Outcome: ServiceParsed, Activation: activation, RunState: runState}
}

func RawServiceStatus(name, raw string) ServiceStatus {
	return ServiceStatus{Name: name, Outcome: ServiceRaw, Raw: raw}
}

func UnavailableServiceStatus(name, reason string) ServiceStatus {
	return ServiceStatus{Name: name, Outcome: ServiceUnavailable, Raw: reason}
}

// Running reports whether the service is active and running. A parsed
// status must be "active (running)"; raw output from init scripts is
// running when it says so.
func (s ServiceStatus) Running() bool {
	switch s.Outcome {
	case ServiceParsed:
		return s.Activation == "active" && s.RunState == "(running)"
	case ServiceRaw:
		return strings.Contains(s.Raw, "is running") || strings.Contains(s.Raw, "running...")
	default:
		return false
	}
}

// Exited reports whether a oneshot unit finished successfully and has no
// process left, i.e. "active (exited)". Such a unit is neither running nor down.
func (s ServiceStatus) Exited() bool {
	return s.Outcome == ServiceParsed && s.Activation == "active" && s.RunState == "(exited)"
}

// String renders the status the way the report prints it.
func (s ServiceStatus) String() string {
	if s.Outcome == ServiceParsed {
		return s.Activation + " " + s.RunState
	}
	return s.Raw
}
