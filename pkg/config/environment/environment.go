// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package environment provides utilities for extracting configuration from environment variables
package environment

import (
	"os"
)

// ConfigFileEnv names the variable that overrides the default config file location.
const ConfigFileEnv = "SYSDIAG_INI"

// HostPaths contains the host filesystem paths, overridable when the tool
// inspects a host from inside a container or against a fixture tree.
type HostPaths struct {
	Proc string // Path to /proc (e.g., /host/proc in containers)
	Etc  string // Path to /etc (e.g., /host/etc in containers)
}

// GetHostPaths returns the host filesystem paths from environment variables,
// with defaults if not set.
func GetHostPaths() HostPaths {
	paths := HostPaths{
		Proc: "/proc",
		Etc:  "/etc",
	}

	if procPath := os.Getenv("HOST_PROC"); procPath != "" {
		paths.Proc = procPath
	}
	if etcPath := os.Getenv("HOST_ETC"); etcPath != "" {
		paths.Etc = etcPath
	}

	return paths
}

// GetConfigFile returns the config file named by SYSDIAG_INI, or fallback
// when the variable is unset.
func GetConfigFile(fallback string) string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}
	return fallback
}
