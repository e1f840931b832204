// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package host

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/antimetal/sysdiag/pkg/config/environment"
)

func hostname() (string, error) {
	hostPaths := environment.GetHostPaths()
	hostFile := filepath.Join(hostPaths.Proc, "sys/kernel/hostname")
	f, err := os.Open(hostFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512) // enough for a DNS name
	n, err := f.Read(buf)
	if err != nil {
		return "", err
	}

	if n > 0 && buf[n-1] == '\n' {
		n--
	}
	return string(buf[:n]), nil
}

func kernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}
