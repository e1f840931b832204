// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package report_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/antimetal/sysdiag/pkg/diag"
	"github.com/antimetal/sysdiag/pkg/report"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected report.Format
		wantErr  bool
	}{
		{input: "text", expected: report.FormatText},
		{input: "JSON", expected: report.FormatJSON},
		{input: " yaml ", expected: report.FormatYAML},
		{input: "xml", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := report.ParseFormat(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f)
		})
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	err := report.Render(&bytes.Buffer{}, &diag.Report{}, report.Format("xml"))
	require.Error(t, err)
}

func TestRenderJSON(t *testing.T) {
	services := []diag.ServiceStatus{
		diag.ParsedServiceStatus("sshd", "active", "(running)"),
		diag.RawServiceStatus("httpd", "httpd is stopped"),
	}
	r := runReport(t, mockedCollectors(services))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, r, report.FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, true, decoded["full"])
	system := decoded["system"].(map[string]any)
	assert.Equal(t, "db1.example.com", system["hostname"])

	disks := decoded["disks"].([]any)
	require.Len(t, disks, 2)
	assert.Equal(t, "/home", disks[1].(map[string]any)["mount_point"])

	svc := decoded["services"].([]any)
	require.Len(t, svc, 2)
	assert.Equal(t, "raw", svc[1].(map[string]any)["outcome"])

	collectors := decoded["run"].(map[string]any)["collectors"].(map[string]any)
	assert.Len(t, collectors, 7)
	assert.Equal(t, "active", collectors["services"].(map[string]any)["status"])
}

func TestRenderYAML(t *testing.T) {
	r := runReport(t, mockedCollectors(nil), diag.SectionDisks, diag.SectionNetwork)

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, r, report.FormatYAML))

	var decoded struct {
		Full     bool           `yaml:"full"`
		Sections []diag.Section `yaml:"sections"`
		Disks    []struct {
			MountPoint  string  `yaml:"mount_point"`
			PercentUsed float64 `yaml:"percent_used"`
		} `yaml:"disks"`
		Network struct {
			Interface string            `yaml:"interface"`
			RX        map[string]string `yaml:"rx_errors"`
		} `yaml:"network"`
		CPU any `yaml:"cpu"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.False(t, decoded.Full)
	assert.Equal(t, []diag.Section{diag.SectionDisks, diag.SectionNetwork}, decoded.Sections)
	require.Len(t, decoded.Disks, 2)
	assert.Equal(t, 50.1, decoded.Disks[0].PercentUsed)
	assert.Equal(t, "eth0", decoded.Network.Interface)
	assert.Equal(t, "12", decoded.Network.RX["dropped"])
	assert.Nil(t, decoded.CPU)
}

func TestSummarizeServices(t *testing.T) {
	statuses := []diag.ServiceStatus{
		diag.ParsedServiceStatus("a", "active", "(running)"),
		diag.ParsedServiceStatus("b", "active", "(exited)"),
		diag.ParsedServiceStatus("c", "inactive", "(dead)"),
		diag.RawServiceStatus("d", "d (pid 1234) is running..."),
		diag.RawServiceStatus("e", "e is stopped"),
		diag.RawServiceStatus("f", "Usage: /etc/init.d/f {start|stop}"),
		diag.RawServiceStatus("g", "something odd"),
		diag.UnavailableServiceStatus("h", "no status tool"),
	}

	sum := report.SummarizeServices(statuses)
	assert.Equal(t, report.ServiceSummary{Total: 8, Running: 2, Exited: 1, Down: 2, Unknown: 3}, sum)
}
