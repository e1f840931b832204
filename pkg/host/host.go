// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package host provides utilities for host identification
package host

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReleaseFiles are the files consulted for the OS version, in order of preference.
var ReleaseFiles = []string{"system-release", "redhat-release", "os-release"}

// ErrNoReleaseFile is returned when none of ReleaseFiles can be read.
var ErrNoReleaseFile = errors.New("no OS release file found")

// Hostname returns the hostname reported by the kernel.
// In particular it returns the hostname of the host machine
// when inside a container.
func Hostname() (string, error) {
	return hostname()
}

// KernelRelease returns the running kernel release, as printed by uname -r.
func KernelRelease() (string, error) {
	return kernelRelease()
}

// OSVersion returns a one-line description of the installed distribution,
// read from the first readable file of ReleaseFiles under etcDir. The
// returned path names the file that was used.
//
// The first line of system-release and redhat-release is used verbatim.
// For os-release, PRETTY_NAME is preferred and the first line is the fallback.
func OSVersion(etcDir string) (version string, path string, err error) {
	for _, name := range ReleaseFiles {
		path = filepath.Join(etcDir, name)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			continue
		}
		if name == "os-release" {
			if pretty := prettyName(string(data)); pretty != "" {
				return pretty, path, nil
			}
		}
		return firstLine(string(data)), path, nil
	}
	return "", "", fmt.Errorf("%w in %s: tried %s", ErrNoReleaseFile, etcDir, strings.Join(ReleaseFiles, ", "))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimRight(line, " \t\r")
}

func prettyName(osRelease string) string {
	scanner := bufio.NewScanner(strings.NewReader(osRelease))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "PRETTY_NAME" {
			continue
		}
		return strings.Trim(value, `"'`)
	}
	return ""
}
