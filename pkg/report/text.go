// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package report

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/antimetal/sysdiag/pkg/diag"
	"github.com/antimetal/sysdiag/pkg/units"
)

// defaultConfigFileName is named in hints when the report does not say
// which config file it was built from.
const defaultConfigFileName = "sysdiag.ini"

const (
	notAvailable = "n/a"
	noData       = "no data"
)

// Preferred display order of interface counters; other labels follow sorted.
var counterOrder = []string{"errors", "dropped", "overruns", "frame", "carrier", "collisions"}

// RenderText writes the human-readable report.
func RenderText(w io.Writer, r *diag.Report) error {
	b := bufio.NewWriter(w)
	t := &textWriter{w: b, report: r}

	t.header()
	if r.Full {
		t.printf("disk_count: %d\n", len(r.Config.DiskMountPoints))
		t.printf("network:    %s\n", r.Config.NetworkInterface)
		t.printf("\n")
	}
	for _, s := range r.Sections {
		switch s {
		case diag.SectionDisks:
			t.disks()
		case diag.SectionCPU:
			t.cpus()
		case diag.SectionMemory:
			t.memory()
		case diag.SectionNetwork:
			t.network()
		case diag.SectionReachability:
			t.reachability()
		case diag.SectionServices:
			t.services()
		}
	}

	return b.Flush()
}

type textWriter struct {
	w      *bufio.Writer
	report *diag.Report
}

func (t *textWriter) printf(format string, args ...any) {
	fmt.Fprintf(t.w, format, args...)
}

// failure returns the error message of a section that produced no data.
func (t *textWriter) failure(s diag.Section) string {
	stat, ok := t.report.Run.CollectorStats[s]
	if !ok || stat.Message == "" {
		return noData
	}
	return fmt.Sprintf("%s (%s)", noData, stat.Message)
}

func (t *textWriter) header() {
	sys := t.report.System
	if sys == nil {
		t.printf("system:     %s\n", t.failure(diag.SectionSystem))
		t.printf("\n")
		return
	}

	if sys.NameMatches() {
		t.printf("system:     %s\n", sys.ConfiguredName)
	} else {
		t.printf("system_name entry '%s' not the same as '%s'\n", sys.ConfiguredName, sys.Hostname)
	}
	for _, notice := range sys.Notices {
		t.printf("%s\n", notice)
	}
	t.printf("OS version: %s\n", sys.OSVersion)
	if sys.KernelRelease != "" {
		t.printf("kernel:     %s\n", sys.KernelRelease)
	}
	t.printf("uptime:     %s\n", sys.Uptime)
	t.printf("date/time:  %s\n", sys.Datestamp)
	t.printf("\n")
}

func (t *textWriter) disks() {
	t.printf("Disks:\n")
	if t.report.Disks == nil {
		t.printf("    %s\n\n", t.failure(diag.SectionDisks))
		return
	}

	t.printf("    filesystem:       size:   used:   free:  %%use:\n")
	for _, d := range t.report.Disks {
		if d.Error != "" {
			t.printf("    %-16s%s\n", d.MountPoint, "error: "+d.Error)
			continue
		}
		t.printf("    %-16s%7s%8s%8s%7.1f\n",
			d.MountPoint,
			units.FormatBytes(d.TotalBytes),
			units.FormatBytes(d.UsedBytes),
			units.FormatBytes(d.FreeBytes),
			d.PercentUsed,
		)
	}
	t.printf("\n")
}

func (t *textWriter) cpus() {
	t.printf("CPU loads:\n")
	load := t.report.CPU
	if load == nil {
		t.printf("    %s\n\n", t.failure(diag.SectionCPU))
		return
	}

	for i := 0; i < load.Count; i++ {
		idle, ok := load.Idle(i)
		if !ok {
			idle = notAvailable
		}
		t.printf("    CPU %d: %s%% idle\n", i, idle)
	}
	t.printf("\n")
}

func (t *textWriter) memory() {
	t.printf("Memory and Swap space:\n")
	mem := t.report.Memory
	if mem == nil {
		t.printf("    %s\n\n", t.failure(diag.SectionMemory))
		return
	}

	t.printf("    memory:\n")
	t.memField("used", mem.Memory.Used)
	t.memField("available", mem.Memory.Available)
	t.memField("free", mem.Memory.Free)
	t.memField("buff/cache", mem.Memory.BuffCache)
	t.memField("shared", mem.Memory.Shared)
	t.memField("total", mem.Memory.Total)
	t.printf("\n")

	t.printf("    swap:\n")
	t.memField("used", mem.Swap.Used)
	t.memField("free", mem.Swap.Free)
	t.memField("total", mem.Swap.Total)
	t.printf("\n\n")
}

func (t *textWriter) memField(label string, get func() (uint64, bool)) {
	value := notAvailable
	if v, ok := get(); ok {
		value = units.FormatBytes(v)
	}
	t.printf("%17s: %7s\n", label, value)
}

func (t *textWriter) network() {
	t.printf("Network info:\n")
	info := t.report.Network
	if info == nil {
		t.printf("    %s\n\n", t.failure(diag.SectionNetwork))
		return
	}

	t.printf("    interface: %s\n", orNA(info.Header))
	t.printf("      address: %s\n", orNA(info.Address))
	t.printf("    RX errors: %s\n", formatCounters(info.RX))
	t.printf("    TX errors: %s\n", formatCounters(info.TX))
	t.printf("\n")
}

func formatCounters(counters map[string]string) string {
	if len(counters) == 0 {
		return notAvailable
	}

	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := counterRank(keys[i]), counterRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+counters[k])
	}
	return strings.Join(parts, " ")
}

func counterRank(k string) int {
	if i := slices.Index(counterOrder, k); i >= 0 {
		return i
	}
	return len(counterOrder)
}

func (t *textWriter) reachability() {
	res := t.report.Reachability
	switch {
	case res == nil:
		t.printf("Sysping: %s\n", t.failure(diag.SectionReachability))
	case res.OK():
		t.printf("Sysping: OK\n")
	default:
		t.printf("Sysping:\n")
		for _, line := range res.Failures {
			t.printf("%s\n", line)
		}
	}
	t.printf("\n")
}

func (t *textWriter) services() {
	t.printf("Services:\n")
	if t.report.Services == nil && !hasStat(t.report, diag.SectionServices, diag.CollectorStatusActive) {
		t.printf("    %s\n\n", t.failure(diag.SectionServices))
		return
	}

	sum := SummarizeServices(t.report.Services)
	for _, s := range t.report.Services {
		switch classifyService(s) {
		case serviceRunning:
			if s.Outcome == diag.ServiceRaw {
				t.printf("    %s\n", s.Raw)
			}
		case serviceNeedsEdit:
			t.printf("EDIT: %s in %s\n", s.Name, t.configFileName())
		default:
			t.printf("    %s: %s\n", s.Name, firstLineOf(s.String()))
		}
	}

	if sum.Running == sum.Total {
		t.printf("    all %d services are running\n", sum.Running)
		t.printf("\n")
		return
	}
	if sum.Exited > 0 {
		t.printf("    %s exited\n", pluralService(sum.Exited))
	}
	if sum.Down > 0 {
		t.printf("    %s down\n", pluralService(sum.Down))
	}
	if sum.Unknown > 0 {
		t.printf("    %s unknown\n", pluralService(sum.Unknown))
	}
	t.printf("    other %d services are running\n", sum.Running)
	t.printf("\n")
}

func pluralService(n int) string {
	if n == 1 {
		return "1 service is"
	}
	return fmt.Sprintf("%d services are", n)
}

func hasStat(r *diag.Report, s diag.Section, status diag.CollectorStatus) bool {
	stat, ok := r.Run.CollectorStats[s]
	return ok && stat.Status == status
}

func (t *textWriter) configFileName() string {
	if t.report.ConfigFile == "" {
		return defaultConfigFileName
	}
	return filepath.Base(t.report.ConfigFile)
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func firstLineOf(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
