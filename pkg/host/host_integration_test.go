// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build integration

package host_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/pkg/host"
)

func TestHostname(t *testing.T) {
	// Integration test - assumes Linux environment
	name, err := host.Hostname()
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	osName, err := os.Hostname()
	require.NoError(t, err)
	assert.Equal(t, osName, name, "kernel hostname should match os.Hostname outside containers")
}

func TestKernelRelease(t *testing.T) {
	release, err := host.KernelRelease()
	require.NoError(t, err)
	assert.NotEmpty(t, release)
	assert.False(t, strings.ContainsRune(release, 0), "release must not carry NUL padding")
	t.Logf("Got kernel release: %s", release)
}
