// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/internal/config"
	"github.com/antimetal/sysdiag/pkg/config/environment"
)

func TestDefaultPath(t *testing.T) {
	t.Setenv(environment.ConfigFileEnv, "")
	assert.Equal(t, config.FileName, filepath.Base(config.DefaultPath()))

	t.Setenv(environment.ConfigFileEnv, "/opt/sysdiag/prod.ini")
	assert.Equal(t, "/opt/sysdiag/prod.ini", config.DefaultPath())
}

func TestBindFlags(t *testing.T) {
	t.Setenv(environment.ConfigFileEnv, "")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-i", "/tmp/other.ini", "--create"}))

	assert.Equal(t, "/tmp/other.ini", config.Path())
	assert.True(t, config.CreateRequested())
}
