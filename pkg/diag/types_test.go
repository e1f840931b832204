// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diag_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/pkg/diag"
)

func TestMemorySnapshot_Available(t *testing.T) {
	t.Run("reported by the tool", func(t *testing.T) {
		m := diag.MemorySnapshot{"available": 300, "cached": 200, "free": 50}
		v, ok := m.Available()
		require.True(t, ok)
		assert.Equal(t, uint64(300), v)
	})

	t.Run("derived from cached and free", func(t *testing.T) {
		m := diag.MemorySnapshot{"cached": 200, "free": 50}
		v, ok := m.Available()
		require.True(t, ok)
		assert.Equal(t, uint64(250), v)
	})

	t.Run("not derivable", func(t *testing.T) {
		m := diag.MemorySnapshot{"free": 50}
		_, ok := m.Available()
		assert.False(t, ok)
	})
}

func TestMemorySnapshot_BuffCache(t *testing.T) {
	t.Run("reported by the tool", func(t *testing.T) {
		m := diag.MemorySnapshot{"buff/cache": 42}
		v, ok := m.BuffCache()
		require.True(t, ok)
		assert.Equal(t, uint64(42), v)
	})

	t.Run("derived from buffers and cached", func(t *testing.T) {
		m := diag.MemorySnapshot{"buffers": 10, "cached": 200}
		v, ok := m.BuffCache()
		require.True(t, ok)
		assert.Equal(t, uint64(210), v)
	})

	t.Run("not derivable", func(t *testing.T) {
		_, ok := diag.MemorySnapshot{"cached": 200}.BuffCache()
		assert.False(t, ok)
	})
}

func TestCPULoad_Idle(t *testing.T) {
	load := diag.CPULoad{
		Rows: map[string]map[string]string{
			"all": {"CPU": "all", "%idle": "97.50"},
			"0":   {"CPU": "0", "%idle": "96.00"},
			"1":   {"CPU": "1"},
		},
		Count: 2,
	}

	idle, ok := load.Idle(0)
	require.True(t, ok)
	assert.Equal(t, "96.00", idle)

	_, ok = load.Idle(1)
	assert.False(t, ok, "row without %idle column")

	_, ok = load.Idle(7)
	assert.False(t, ok, "unknown cpu")
}

func TestServiceStatus_Running(t *testing.T) {
	tests := []struct {
		name     string
		status   diag.ServiceStatus
		expected bool
	}{
		{"active running", diag.ParsedServiceStatus("sshd", "active", "(running)"), true},
		{"active exited", diag.ParsedServiceStatus("netfs", "active", "(exited)"), false},
		{"inactive dead", diag.ParsedServiceStatus("httpd", "inactive", "(dead)"), false},
		{"active waiting", diag.ParsedServiceStatus("timer", "active", "(waiting)"), false},
		{"failed", diag.ParsedServiceStatus("db", "failed", "(Result:"), false},
		{"raw is running", diag.RawServiceStatus("crond", "crond (pid  1234) is running..."), true},
		{"raw stopped", diag.RawServiceStatus("httpd", "httpd is stopped"), false},
		{"raw unknown service", diag.RawServiceStatus("bogus", "Unit bogus.service could not be found."), false},
		{"unavailable", diag.UnavailableServiceStatus("sshd", "no service status tool"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.Running())
		})
	}
}

func TestServiceStatus_Exited(t *testing.T) {
	assert.True(t, diag.ParsedServiceStatus("netfs", "active", "(exited)").Exited())
	assert.False(t, diag.ParsedServiceStatus("sshd", "active", "(running)").Exited())
	assert.False(t, diag.ParsedServiceStatus("netfs", "inactive", "(exited)").Exited())
	assert.False(t, diag.RawServiceStatus("netfs", "active (exited)").Exited())
}

func TestServiceStatus_String(t *testing.T) {
	assert.Equal(t, "inactive (dead)", diag.ParsedServiceStatus("httpd", "inactive", "(dead)").String())
	assert.Equal(t, "httpd is stopped", diag.RawServiceStatus("httpd", "httpd is stopped").String())
}

func TestSystemInfo_NameMatches(t *testing.T) {
	assert.True(t, diag.SystemInfo{ConfiguredName: "db1", Hostname: "db1"}.NameMatches())
	assert.False(t, diag.SystemInfo{ConfiguredName: "db1.example.com", Hostname: "db1"}.NameMatches())
}

func TestReport_Err(t *testing.T) {
	report := &diag.Report{
		Sections: []diag.Section{diag.SectionCPU, diag.SectionMemory},
		Run: diag.CollectorRunInfo{
			CollectorStats: map[diag.Section]diag.CollectorStat{
				diag.SectionSystem: {Status: diag.CollectorStatusActive},
				diag.SectionCPU:    {Status: diag.CollectorStatusFailed, Error: errors.New("mpstat not found")},
				diag.SectionMemory: {Status: diag.CollectorStatusDegraded, Error: errors.New("short output")},
			},
		},
	}

	err := report.Err()
	require.Error(t, err)
	assert.Equal(t, "cpu: mpstat not found; memory: short output", err.Error())

	assert.True(t, report.Has(diag.SectionCPU))
	assert.False(t, report.Has(diag.SectionDisks))
}
