// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build integration

package config_test

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/internal/config"
	"github.com/antimetal/sysdiag/pkg/testutil"
)

func TestGenerate_HostInterfaces(t *testing.T) {
	testutil.RequireLinuxFilesystem(t)

	ifaces, err := net.Interfaces()
	require.NoError(t, err)

	var up []string
	for _, i := range ifaces {
		if i.Flags&net.FlagUp != 0 && i.Flags&net.FlagLoopback == 0 {
			up = append(up, i.Name)
		}
	}
	if len(up) == 0 {
		t.Skip("Test requires a non-loopback interface that is up")
	}

	var buf bytes.Buffer
	require.NoError(t, config.Generate(context.Background(), &buf, config.GenerateOptions{Logger: testr.New(t)}))

	out := buf.String()
	assert.NotContains(t, out, "no running network interfaces found")
	for _, name := range up {
		assert.True(t, strings.Contains(out, "\nnetwork "+name+"\n"), "missing interface %s in:\n%s", name, out)
	}
}
