// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/antimetal/sysdiag/pkg/diag"
)

// Keys recognized in the config file.
const (
	KeySystemName = "system_name"
	KeyNetwork    = "network"
	KeyDisk       = "disk"
	KeyService    = "service"
)

var (
	// ErrMalformedLine is reported for a line that is not exactly "<key> <value>".
	ErrMalformedLine = errors.New("malformed line")
	// ErrUnknownKey is reported for a well-formed line whose key is not recognized.
	ErrUnknownKey = errors.New("unknown key")
)

// LineError locates a warning in the config file.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: '%s'", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// File is a parsed config file.
type File struct {
	// Path is empty when the config was not read from disk.
	Path   string
	Config diag.Config
	// Warnings combines every skipped line. It never makes the file unusable.
	Warnings error
}

// WarningList returns the warnings one per skipped line.
func (f File) WarningList() []error {
	return multierr.Errors(f.Warnings)
}
