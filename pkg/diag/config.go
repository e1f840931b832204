// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diag

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/antimetal/sysdiag/pkg/command"
)

// Executables names the external programs the collectors run. Bare names
// are resolved through PATH.
type Executables struct {
	Free      string
	MPStat    string
	IFConfig  string
	Ping      string
	Systemctl string
	Service   string
	Hostname  string
	W         string
}

// CollectionConfig represents program-level settings for a collection run
type CollectionConfig struct {
	HostProcPath string // Path to /proc (useful for containers)
	HostEtcPath  string // Path to /etc (useful for containers)
	Executables  Executables
	// ProbeTimeout bounds a single reachability probe.
	ProbeTimeout time.Duration
	// MaxConcurrency caps how many collectors, and how many probes or
	// service queries within one collector, run at once. 1 is sequential.
	MaxConcurrency int
	// Runner launches the external programs. NewManager installs an
	// exec-backed runner when nil.
	Runner command.Runner
	// Now returns the collection time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultCollectionConfig returns a default configuration
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		HostProcPath: "/proc",
		HostEtcPath:  "/etc",
		Executables: Executables{
			Free:      "free",
			MPStat:    "mpstat",
			IFConfig:  "ifconfig",
			Ping:      "ping",
			Systemctl: "systemctl",
			Service:   "service",
			Hostname:  "hostname",
			W:         "w",
		},
		ProbeTimeout:   2 * time.Second,
		MaxConcurrency: 1,
		Now:            time.Now,
	}
}

// ApplyDefaults fills in zero values with defaults
func (c *CollectionConfig) ApplyDefaults() {
	defaults := DefaultCollectionConfig()

	if c.HostProcPath == "" {
		c.HostProcPath = defaults.HostProcPath
	}
	if c.HostEtcPath == "" {
		c.HostEtcPath = defaults.HostEtcPath
	}
	fillString(&c.Executables.Free, defaults.Executables.Free)
	fillString(&c.Executables.MPStat, defaults.Executables.MPStat)
	fillString(&c.Executables.IFConfig, defaults.Executables.IFConfig)
	fillString(&c.Executables.Ping, defaults.Executables.Ping)
	fillString(&c.Executables.Systemctl, defaults.Executables.Systemctl)
	fillString(&c.Executables.Service, defaults.Executables.Service)
	fillString(&c.Executables.Hostname, defaults.Executables.Hostname)
	fillString(&c.Executables.W, defaults.Executables.W)
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = defaults.ProbeTimeout
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = defaults.MaxConcurrency
	}
	if c.Now == nil {
		c.Now = defaults.Now
	}
}

func fillString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

// Validate ensures that paths are absolute and limits are positive.
func (c *CollectionConfig) Validate() error {
	if c.HostProcPath != "" && !filepath.IsAbs(c.HostProcPath) {
		return fmt.Errorf("HostProcPath must be an absolute path, got: %q", c.HostProcPath)
	}
	if c.HostEtcPath != "" && !filepath.IsAbs(c.HostEtcPath) {
		return fmt.Errorf("HostEtcPath must be an absolute path, got: %q", c.HostEtcPath)
	}
	if c.ProbeTimeout < time.Second {
		return fmt.Errorf("ProbeTimeout must be at least 1s, got: %s", c.ProbeTimeout)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MaxConcurrency must be at least 1, got: %d", c.MaxConcurrency)
	}
	return nil
}
