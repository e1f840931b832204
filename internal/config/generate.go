// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-logr/logr"
	"github.com/shirou/gopsutil/v4/disk"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/antimetal/sysdiag/pkg/host"
)

// Probes look at the live system for Generate. Nil fields use the defaults.
type Probes struct {
	Hostname   func() (string, error)
	Partitions func(ctx context.Context) ([]disk.PartitionStat, error)
	Interfaces func(ctx context.Context) ([]psnet.InterfaceStat, error)
	Glob       func(pattern string) ([]string, error)
}

func (p *Probes) applyDefaults() {
	if p.Hostname == nil {
		p.Hostname = host.Hostname
	}
	if p.Partitions == nil {
		p.Partitions = func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, false)
		}
	}
	if p.Interfaces == nil {
		p.Interfaces = func(ctx context.Context) ([]psnet.InterfaceStat, error) {
			return psnet.InterfacesWithContext(ctx)
		}
	}
	if p.Glob == nil {
		p.Glob = filepath.Glob
	}
}

// GenerateOptions configures Generate.
type GenerateOptions struct {
	// EtcDir is where init scripts and systemd units are looked up.
	EtcDir string
	Probes Probes
	Logger logr.Logger
}

// Generate writes a config file template for the live system: its hostname,
// every non-tmpfs mount point, the non-loopback interfaces that are up and the
// services found in init.d and the systemd unit directory. The result is
// meant to be edited before use.
//
// A probe that fails leaves its part of the template empty; only a write
// error is returned.
func Generate(ctx context.Context, w io.Writer, opts GenerateOptions) error {
	if opts.EtcDir == "" {
		opts.EtcDir = "/etc"
	}
	opts.Probes.applyDefaults()
	logger := opts.Logger
	b := bufio.NewWriter(w)

	name, err := opts.Probes.Hostname()
	if err != nil {
		logger.Error(err, "failed to get hostname for template")
	}
	fmt.Fprintf(b, "%s %s\n\n", KeySystemName, name)

	fmt.Fprintf(b, "# disks: please edit:\n")
	mounts, err := mountPoints(ctx, opts.Probes)
	if err != nil {
		logger.Error(err, "failed to list disk partitions")
	}
	for _, m := range mounts {
		fmt.Fprintf(b, "%s %s\n", KeyDisk, m)
	}
	fmt.Fprintf(b, "\n")

	ifaces, err := runningInterfaces(ctx, opts.Probes)
	if err != nil {
		logger.Error(err, "failed to list network interfaces")
	}
	switch len(ifaces) {
	case 0:
		logger.Info("no running network interfaces found")
		fmt.Fprintf(b, "# !!! no running network interfaces found !!!\n")
	case 1:
		fmt.Fprintf(b, "# network:\n")
	default:
		fmt.Fprintf(b, "# network: choose one:\n")
	}
	for _, i := range ifaces {
		fmt.Fprintf(b, "%s %s\n", KeyNetwork, i)
	}
	fmt.Fprintf(b, "\n")

	fmt.Fprintf(b, "# services: please edit:\n#\n")
	initDir := filepath.Join(opts.EtcDir, "init.d")
	fmt.Fprintf(b, "# from %s:\n", initDir)
	for _, s := range services(opts.Probes, filepath.Join(initDir, "*"), logger) {
		fmt.Fprintf(b, "%s %s\n", KeyService, s)
	}
	unitDir := filepath.Join(opts.EtcDir, "systemd", "system")
	fmt.Fprintf(b, "#\n# from %s:\n", unitDir)
	for _, s := range services(opts.Probes, filepath.Join(unitDir, "*.service"), logger) {
		fmt.Fprintf(b, "%s %s\n", KeyService, s)
	}
	fmt.Fprintf(b, "\n# EOF:\n")

	return b.Flush()
}

func mountPoints(ctx context.Context, probes Probes) ([]string, error) {
	parts, err := probes.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	var mounts []string
	for _, p := range parts {
		if strings.Contains(p.Fstype, "tmpfs") || strings.Contains(p.Device, "tmpfs") {
			continue
		}
		if p.Mountpoint == "" || slices.Contains(mounts, p.Mountpoint) {
			continue
		}
		mounts = append(mounts, p.Mountpoint)
	}
	return mounts, nil
}

// Interface flag names as reported by gopsutil. It reports administrative
// state only, so "up" stands in for a running interface.
const (
	flagUp       = "up"
	flagLoopback = "loopback"
)

func runningInterfaces(ctx context.Context, probes Probes) ([]string, error) {
	ifaces, err := probes.Interfaces(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, i := range ifaces {
		if !slices.Contains(i.Flags, flagUp) || slices.Contains(i.Flags, flagLoopback) || i.Name == "lo" {
			continue
		}
		names = append(names, i.Name)
	}
	return names, nil
}

// services returns the base names of the files matching pattern, sorted.
func services(probes Probes, pattern string, logger logr.Logger) []string {
	matches, err := probes.Glob(pattern)
	if err != nil {
		logger.Error(err, "failed to list services", "pattern", pattern)
		return nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if base := filepath.Base(m); base != "" && base != "." {
			names = append(names, base)
		}
	}
	slices.Sort(names)
	return names
}
