// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/shirou/gopsutil/v4/disk"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/internal/config"
)

func fakeEtc(t *testing.T, initScripts, units []string) string {
	t.Helper()
	etc := t.TempDir()
	initDir := filepath.Join(etc, "init.d")
	unitDir := filepath.Join(etc, "systemd", "system")
	require.NoError(t, os.MkdirAll(initDir, 0o755))
	require.NoError(t, os.MkdirAll(unitDir, 0o755))
	for _, s := range initScripts {
		require.NoError(t, os.WriteFile(filepath.Join(initDir, s), []byte("#!/bin/sh\n"), 0o755))
	}
	for _, u := range units {
		require.NoError(t, os.WriteFile(filepath.Join(unitDir, u), []byte("[Unit]\n"), 0o644))
	}
	return etc
}

func probes(ifaces []psnet.InterfaceStat) config.Probes {
	return config.Probes{
		Hostname: func() (string, error) { return "db1.example.com", nil },
		Partitions: func(context.Context) ([]disk.PartitionStat, error) {
			return []disk.PartitionStat{
				{Device: "/dev/sda1", Mountpoint: "/", Fstype: "xfs"},
				{Device: "tmpfs", Mountpoint: "/run", Fstype: "tmpfs"},
				{Device: "devtmpfs", Mountpoint: "/dev", Fstype: "devtmpfs"},
				{Device: "/dev/sda2", Mountpoint: "/home", Fstype: "ext4"},
				{Device: "/dev/sda2", Mountpoint: "/home", Fstype: "ext4"},
			}, nil
		},
		Interfaces: func(context.Context) ([]psnet.InterfaceStat, error) {
			return ifaces, nil
		},
	}
}

// Flag sets as gopsutil reports them.
var (
	loopback = psnet.InterfaceStat{Name: "lo", Flags: []string{"up", "loopback"}}
	eth0     = psnet.InterfaceStat{Name: "eth0", Flags: []string{"up", "broadcast", "multicast"}}
	eth1     = psnet.InterfaceStat{Name: "eth1", Flags: []string{"up", "broadcast", "multicast"}}
	eth2Down = psnet.InterfaceStat{Name: "eth2", Flags: []string{"broadcast", "multicast"}}
	tun0     = psnet.InterfaceStat{Name: "tun0", Flags: []string{"up", "pointtopoint", "multicast"}}
)

func TestGenerate(t *testing.T) {
	etc := fakeEtc(t, []string{"network", "functions"}, []string{"sshd.service", "app.service", "app.timer"})

	var buf bytes.Buffer
	err := config.Generate(context.Background(), &buf, config.GenerateOptions{
		EtcDir: etc,
		Probes: probes([]psnet.InterfaceStat{loopback, eth0, eth2Down}),
		Logger: testr.New(t),
	})
	require.NoError(t, err)

	expected := `system_name db1.example.com

# disks: please edit:
disk /
disk /home

# network:
network eth0

# services: please edit:
#
# from ` + filepath.Join(etc, "init.d") + `:
service functions
service network
#
# from ` + filepath.Join(etc, "systemd", "system") + `:
service app.service
service sshd.service

# EOF:
`
	assert.Equal(t, expected, buf.String())
}

func TestGenerate_Interfaces(t *testing.T) {
	tests := []struct {
		name     string
		ifaces   []psnet.InterfaceStat
		header   string
		networks int
	}{
		{name: "several", ifaces: []psnet.InterfaceStat{eth0, loopback, eth1}, header: "# network: choose one:\n", networks: 2},
		{name: "point to point", ifaces: []psnet.InterfaceStat{loopback, tun0, eth2Down}, header: "# network:\nnetwork tun0\n", networks: 1},
		{name: "none running", ifaces: []psnet.InterfaceStat{loopback, eth2Down}, header: "# !!! no running network interfaces found !!!\n", networks: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := config.Generate(context.Background(), &buf, config.GenerateOptions{
				EtcDir: fakeEtc(t, nil, nil),
				Probes: probes(tt.ifaces),
				Logger: testr.New(t),
			})
			require.NoError(t, err)

			out := buf.String()
			assert.Contains(t, out, tt.header)
			assert.Equal(t, tt.networks, strings.Count(out, "\nnetwork "))
		})
	}
}

func TestGenerate_ProbeFailures(t *testing.T) {
	p := config.Probes{
		Hostname: func() (string, error) { return "", errors.New("no hostname") },
		Partitions: func(context.Context) ([]disk.PartitionStat, error) {
			return nil, errors.New("no mtab")
		},
		Interfaces: func(context.Context) ([]psnet.InterfaceStat, error) {
			return nil, errors.New("no netlink")
		},
		Glob: func(string) ([]string, error) { return nil, filepath.ErrBadPattern },
	}

	var buf bytes.Buffer
	err := config.Generate(context.Background(), &buf, config.GenerateOptions{
		EtcDir: "/nonexistent",
		Probes: p,
		Logger: testr.New(t),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "\ndisk ")
	assert.NotContains(t, out, "\nservice ")
	assert.True(t, strings.HasSuffix(out, "# EOF:\n"))
}

func TestGenerate_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := config.Generate(context.Background(), &buf, config.GenerateOptions{
		EtcDir: fakeEtc(t, []string{"crond"}, []string{"sshd.service"}),
		Probes: probes([]psnet.InterfaceStat{eth0}),
		Logger: testr.New(t),
	})
	require.NoError(t, err)

	file, err := config.Parse(&buf)
	require.NoError(t, err)
	assert.NoError(t, file.Warnings)
	assert.Equal(t, "db1.example.com", file.Config.SystemName)
	assert.Equal(t, "eth0", file.Config.NetworkInterface)
	assert.Equal(t, []string{"/", "/home"}, file.Config.DiskMountPoints)
	assert.Equal(t, []string{"crond", "sshd.service"}, file.Config.ServiceNames)
}
