// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package host_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/pkg/host"
)

const osReleaseUbuntu = `NAME="Ubuntu"
VERSION="22.04.4 LTS (Jammy Jellyfish)"
ID=ubuntu
PRETTY_NAME="Ubuntu 22.04.4 LTS"
VERSION_ID="22.04"
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestOSVersion(t *testing.T) {
	tests := []struct {
		name         string
		files        map[string]string
		expected     string
		expectedFile string
	}{
		{
			name: "system-release preferred",
			files: map[string]string{
				"system-release": "CentOS Linux release 7.9.2009 (Core)\n",
				"redhat-release": "Red Hat Enterprise Linux Server release 7.9 (Maipo)\n",
				"os-release":     osReleaseUbuntu,
			},
			expected:     "CentOS Linux release 7.9.2009 (Core)",
			expectedFile: "system-release",
		},
		{
			name: "redhat-release when system-release missing",
			files: map[string]string{
				"redhat-release": "Red Hat Enterprise Linux Server release 7.9 (Maipo)\nextra\n",
			},
			expected:     "Red Hat Enterprise Linux Server release 7.9 (Maipo)",
			expectedFile: "redhat-release",
		},
		{
			name:         "os-release pretty name",
			files:        map[string]string{"os-release": osReleaseUbuntu},
			expected:     "Ubuntu 22.04.4 LTS",
			expectedFile: "os-release",
		},
		{
			name:         "os-release without pretty name uses first line",
			files:        map[string]string{"os-release": "NAME=Custom\nID=custom\n"},
			expected:     "NAME=Custom",
			expectedFile: "os-release",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			version, path, err := host.OSVersion(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, version)
			assert.Equal(t, filepath.Join(dir, tt.expectedFile), path)
		})
	}
}

func TestOSVersion_NoFiles(t *testing.T) {
	_, _, err := host.OSVersion(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, host.ErrNoReleaseFile)
	assert.Contains(t, err.Error(), "system-release")
}
