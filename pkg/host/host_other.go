// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build !linux

package host

import (
	"fmt"
	"os"
	"runtime"
)

func hostname() (string, error) {
	return os.Hostname()
}

func kernelRelease() (string, error) {
	return "", fmt.Errorf("kernel release not supported on %s", runtime.GOOS)
}
