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
	"strings"

	"github.com/go-logr/logr"
	psnet "github.com/shirou/gopsutil/v4/net"
	"go.uber.org/multierr"

	"github.com/antimetal/sysdiag/pkg/command"
	"github.com/antimetal/sysdiag/pkg/diag"
)

func init() {
	diag.Register(diag.SectionNetwork, func(logger logr.Logger, config diag.CollectionConfig) (diag.Collector, error) {
		return NewNetworkCollector(logger, config)
	})
}

// Compile-time interface check
var _ diag.Collector = (*NetworkCollector)(nil)

const (
	networkSourceIfconfig = "ifconfig"
	networkSourceProcDev  = "/proc/net/dev"
)

// Counter line prefixes in ifconfig output. Both the net-tools 1.60
// ("RX packets:0 errors:0 ...") and 2.10 ("RX errors 0  dropped 0 ...")
// layouts are covered.
var counterPrefixes = []string{"RX packets", "RX errors", "TX packets", "TX errors", "collisions"}

// Labels that are traffic volumes rather than error counters.
var volumeLabels = map[string]bool{"packets": true, "bytes": true}

// InterfaceAddrs looks up the addresses of a network interface.
type InterfaceAddrs func(ctx context.Context, name string) ([]string, error)

// NetworkCollector reports the address and error counters of the configured
// interface from `ifconfig <iface>`, or from /proc/net/dev when ifconfig is
// not installed.
type NetworkCollector struct {
	diag.BaseCollector
	procNetDevPath string
	addrs          InterfaceAddrs
}

func NewNetworkCollector(logger logr.Logger, config diag.CollectionConfig) (*NetworkCollector, error) {
	if config.Runner == nil {
		return nil, errors.New("network collector requires a command runner")
	}
	return &NetworkCollector{
		BaseCollector:  diag.NewBaseCollector(diag.SectionNetwork, "Network Interface Collector", logger, config),
		procNetDevPath: filepath.Join(config.HostProcPath, "net", "dev"),
		addrs:          interfaceAddrs,
	}, nil
}

// Collect never fails outright for an unknown or down interface: whatever
// the tool printed is returned, and missing fields stay empty.
func (c *NetworkCollector) Collect(ctx context.Context, target diag.Config) (any, error) {
	iface := target.NetworkInterface
	if iface == "" {
		return diag.NetworkInterfaceInfo{}, errors.New("no network interface configured")
	}

	res, err := c.Config.Runner.Run(ctx, c.Config.Executables.IFConfig, iface)
	if err != nil {
		if !errors.Is(err, command.ErrUnavailable) {
			return nil, err
		}
		c.Logger().V(1).Info("ifconfig unavailable, reading counters", "path", c.procNetDevPath)
		info, pErr := c.readProcNetDev(ctx, iface)
		if pErr != nil {
			return info, multierr.Combine(err, pErr)
		}
		return info, nil
	}

	info, err := parseIfconfig(iface, res.Lines())
	if err != nil {
		c.Logger().V(1).Info("Incomplete interface information", "interface", iface, "error", err.Error())
	}
	return info, err
}

// parseIfconfig extracts the header, IPv4 address and error counters from
// the output of `ifconfig <iface>`:
//
//	eth0: flags=4163<UP,BROADCAST,RUNNING,MULTICAST>  mtu 1500
//	        inet 192.168.1.10  netmask 255.255.255.0  broadcast 192.168.1.255
//	        inet6 fe80::a00:27ff:fe4e:66a1  prefixlen 64  scopeid 0x20<link>
//	        ether 08:00:27:4e:66:a1  txqueuelen 1000  (Ethernet)
//	        RX packets 123456  bytes 98765432 (94.1 MiB)
//	        RX errors 0  dropped 12  overruns 0  frame 0
//	        TX packets 65432  bytes 1234567 (1.1 MiB)
//	        TX errors 0  dropped 0 overruns 0  carrier 0  collisions 0
//
// Lines are located by their leading label, never by position, since
// optional lines such as inet6 shift everything below them.
func parseIfconfig(iface string, lines []string) (diag.NetworkInterfaceInfo, error) {
	info := diag.NetworkInterfaceInfo{
		Interface: iface,
		RX:        map[string]string{},
		TX:        map[string]string{},
		Source:    networkSourceIfconfig,
	}
	if len(lines) == 0 {
		return info, fmt.Errorf("ifconfig %s: %w: no output", iface, ErrUnexpectedOutput)
	}
	info.Header = strings.TrimSpace(lines[0])

	for _, raw := range lines[1:] {
		line := strings.TrimSpace(raw)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "inet" {
			if info.Address == "" && len(fields) > 1 {
				info.Address = strings.TrimPrefix(fields[1], "addr:")
			}
			continue
		}
		if !hasPrefixAny(line, counterPrefixes...) {
			continue
		}

		counters := labeledCounters(strings.ReplaceAll(line, ":", " "))
		switch {
		case strings.HasPrefix(line, "collisions"):
			if v, ok := counters["collisions"]; ok {
				info.TX["collisions"] = v
			}
		case strings.HasPrefix(line, "RX"):
			mergeCounters(info.RX, counters)
		case strings.HasPrefix(line, "TX"):
			mergeCounters(info.TX, counters)
		}
	}

	var errs error
	if info.Address == "" {
		errs = multierr.Append(errs, fmt.Errorf("ifconfig %s: %w: no IPv4 address", iface, ErrUnexpectedOutput))
	}
	if len(info.RX) == 0 && len(info.TX) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("ifconfig %s: %w: no error counters", iface, ErrUnexpectedOutput))
	}
	return info, errs
}

// labeledCounters pairs each label with the integer that follows it,
// skipping traffic volumes. "RX packets 10 errors 0 dropped 3" yields
// {errors: 0, dropped: 3}.
func labeledCounters(line string) map[string]string {
	fields := strings.Fields(line)
	counters := make(map[string]string)
	for i := 0; i+1 < len(fields); i++ {
		label, value := fields[i], fields[i+1]
		if isUint(label) || !isUint(value) || volumeLabels[label] {
			continue
		}
		counters[label] = value
		i++
	}
	return counters
}

func mergeCounters(into, from map[string]string) {
	for k, v := range from {
		into[k] = v
	}
}

// readProcNetDev fills the interface counters from /proc/net/dev.
//
// /proc/net/dev format:
//
//	Inter-|   Receive                                                |  Transmit
//	 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
//	  eth0: 9876543   98765    0    0    0     0          0         0 9876543   98765    0    0    0     0       0          0
func (c *NetworkCollector) readProcNetDev(ctx context.Context, iface string) (diag.NetworkInterfaceInfo, error) {
	info := diag.NetworkInterfaceInfo{
		Interface: iface,
		Header:    iface,
		RX:        map[string]string{},
		TX:        map[string]string{},
		Source:    networkSourceProcDev,
	}

	file, err := os.Open(c.procNetDevPath)
	if err != nil {
		return info, fmt.Errorf("failed to open %s: %w", c.procNetDevPath, err)
	}
	defer file.Close()

	found := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name, counters, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(counters)
		if len(fields) < 16 {
			return info, fmt.Errorf("%s: %w: %d fields for %s", c.procNetDevPath, ErrUnexpectedOutput, len(fields), iface)
		}
		info.RX = map[string]string{
			"errors":   fields[2],
			"dropped":  fields[3],
			"overruns": fields[4],
			"frame":    fields[5],
		}
		info.TX = map[string]string{
			"errors":     fields[10],
			"dropped":    fields[11],
			"overruns":   fields[12],
			"collisions": fields[13],
			"carrier":    fields[14],
		}
		found = true
		break
	}
	if err := scanner.Err(); err != nil {
		return info, fmt.Errorf("error reading %s: %w", c.procNetDevPath, err)
	}
	if !found {
		return info, fmt.Errorf("interface %s not found in %s", iface, c.procNetDevPath)
	}

	if addrs, err := c.addrs(ctx, iface); err != nil {
		c.Logger().V(1).Info("Failed to look up interface address", "interface", iface, "error", err.Error())
	} else {
		info.Address = firstIPv4(addrs)
	}
	return info, nil
}

func interfaceAddrs(ctx context.Context, name string) ([]string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Name != name {
			continue
		}
		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
		return addrs, nil
	}
	return nil, fmt.Errorf("interface %s not found", name)
}

// firstIPv4 returns the first IPv4 address from CIDR strings such as
// "192.168.1.10/24", without the prefix length.
func firstIPv4(addrs []string) string {
	for _, a := range addrs {
		ip, _, _ := strings.Cut(a, "/")
		if strings.Count(ip, ".") == 3 && !strings.Contains(ip, ":") {
			return ip
		}
	}
	return ""
}
