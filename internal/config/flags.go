// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/antimetal/sysdiag/pkg/config/environment"
)

// FileName is the config file looked up next to the executable.
const FileName = "sysdiag.ini"

var (
	flagPath   string
	flagCreate bool
)

// BindFlags registers the config file flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&flagPath, "ini", "i", DefaultPath(),
		"Path to the config file (env "+environment.ConfigFileEnv+")")
	fs.BoolVar(&flagCreate, "create", false,
		"Print a config file template for this system and exit")
}

// Path returns the config file selected on the command line.
func Path() string {
	return flagPath
}

// CreateRequested reports whether --create was given.
func CreateRequested() bool {
	return flagCreate
}

// DefaultPath is FileName in the executable's directory unless the
// environment names another file.
func DefaultPath() string {
	fallback := FileName
	if exe, err := os.Executable(); err == nil {
		fallback = filepath.Join(filepath.Dir(exe), FileName)
	}
	return environment.GetConfigFile(fallback)
}
