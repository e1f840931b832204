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
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/antimetal/sysdiag/pkg/command"
	"github.com/antimetal/sysdiag/pkg/diag"
)

func init() {
	diag.Register(diag.SectionReachability, func(logger logr.Logger, config diag.CollectionConfig) (diag.Collector, error) {
		return NewReachabilityCollector(logger, config)
	})
}

// Compile-time interface check
var _ diag.Collector = (*ReachabilityCollector)(nil)

// HostEntry is one probe target from the hosts table
type HostEntry struct {
	Name    string
	Address string
}

// Prober sends a single reachability probe. It returns false when the
// target did not answer and an error only when no probe could be sent.
type Prober interface {
	Probe(ctx context.Context, target string) (bool, error)
}

// PingProber probes with one ICMP echo request through the ping executable.
type PingProber struct {
	runner  command.Runner
	path    string
	timeout time.Duration
}

func NewPingProber(runner command.Runner, path string, timeout time.Duration) *PingProber {
	return &PingProber{runner: runner, path: path, timeout: timeout}
}

// Probe runs `ping -c 1 -W <seconds> target`. The process is also killed
// shortly after the timeout in case name resolution hangs.
func (p *PingProber) Probe(ctx context.Context, target string) (bool, error) {
	secs := int(p.timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout+time.Second)
	defer cancel()

	res, err := p.runner.Run(ctx, p.path, "-c", "1", "-W", strconv.Itoa(secs), target)
	if err != nil {
		return false, err
	}
	return res.Success(), nil
}

// ReachabilityCollector probes every host in the hosts table, first by name
// and then by address, and records a line for each host that did not answer
// by name.
type ReachabilityCollector struct {
	diag.BaseCollector
	hostsPath string
	prober    Prober
}

func NewReachabilityCollector(logger logr.Logger, config diag.CollectionConfig) (*ReachabilityCollector, error) {
	if config.Runner == nil {
		return nil, errors.New("reachability collector requires a command runner")
	}
	return &ReachabilityCollector{
		BaseCollector: diag.NewBaseCollector(diag.SectionReachability, "Host Reachability Collector", logger, config),
		hostsPath:     filepath.Join(config.HostEtcPath, "hosts"),
		prober:        NewPingProber(config.Runner, config.Executables.Ping, config.ProbeTimeout),
	}, nil
}

func (c *ReachabilityCollector) Collect(ctx context.Context, _ diag.Config) (any, error) {
	file, err := os.Open(c.hostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.hostsPath, err)
	}
	defer file.Close()

	entries, err := ParseHosts(file)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", c.hostsPath, err)
	}

	lines := make([]string, len(entries))
	errs := make([]error, len(entries))
	forEachBounded(len(entries), c.Config.MaxConcurrency, func(i int) {
		lines[i], errs[i] = c.check(ctx, entries[i])
	})

	result := diag.ReachabilityResult{Checked: len(entries), Failures: []string{}}
	for i, line := range lines {
		if errs[i] != nil {
			// The prober itself is missing; every host would look unreachable.
			return nil, errs[i]
		}
		if line != "" {
			result.Failures = append(result.Failures, line)
		}
	}

	c.Logger().V(1).Info("Probed hosts", "checked", result.Checked, "failures", len(result.Failures))
	return result, nil
}

// check probes one host and returns its diagnostic line, or "" when it
// answered by name.
func (c *ReachabilityCollector) check(ctx context.Context, e HostEntry) (string, error) {
	ok, err := c.prober.Probe(ctx, e.Name)
	if err != nil || ok {
		return "", err
	}
	c.Logger().V(2).Info("Host did not answer by name, trying address", "name", e.Name, "address", e.Address)

	ok, err = c.prober.Probe(ctx, e.Address)
	if err != nil {
		return "", err
	}
	if ok {
		return fmt.Sprintf("can't ping %s by name, ip %s is reachable", e.Name, e.Address), nil
	}
	return fmt.Sprintf("can't ping %s by name or by ip %s", e.Name, e.Address), nil
}

// ParseHosts reads a hosts table and returns one probe target per entry.
// Blank lines, comments and loopback entries are skipped. The name of each
// target is the last alias on the line, the most specific one by convention.
// Trailing comments are removed before the line is split.
func ParseHosts(r io.Reader) ([]HostEntry, error) {
	var entries []HostEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || isLoopback(fields[0]) {
			continue
		}
		entries = append(entries, HostEntry{Name: fields[len(fields)-1], Address: fields[0]})
	}
	return entries, scanner.Err()
}

func isLoopback(addr string) bool {
	return addr == "127.0.0.1" || addr == "::1"
}
