// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package units_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/pkg/units"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		expected string
	}{
		{"zero", 0, "0B"},
		{"one byte", 1, "1B"},
		{"largest plain byte count", 1023, "1023B"},
		{"one kibibyte", 1024, "1.0K"},
		{"one and a half kibibytes", 1536, "1.5K"},
		{"just below a mebibyte", units.MiB - 1, "1024.0K"},
		{"one mebibyte", units.MiB, "1.0M"},
		{"ten and a half mebibytes", 10*units.MiB + units.MiB/2, "10.5M"},
		{"one gibibyte", units.GiB, "1.0G"},
		{"one tebibyte", units.TiB, "1.0T"},
		{"beyond tebibytes stays in T", 2048 * units.TiB, "2048.0T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, units.FormatBytes(tt.input))
		})
	}
}

// normalize converts a formatted string back into bytes so that values in
// different units can be compared.
func normalize(t *testing.T, s string) float64 {
	t.Helper()
	multipliers := map[byte]float64{
		'B': 1,
		'K': float64(units.KiB),
		'M': float64(units.MiB),
		'G': float64(units.GiB),
		'T': float64(units.TiB),
	}
	suffix := s[len(s)-1]
	mult, ok := multipliers[suffix]
	require.True(t, ok, "unexpected suffix in %q", s)
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, string(suffix)), 64)
	require.NoError(t, err)
	return v * mult
}

func TestFormatBytes_Monotonic(t *testing.T) {
	inputs := []uint64{
		0, 1, 512, 1023, 1024, 1025, 1536, 4096, units.MiB - 1, units.MiB,
		3 * units.MiB, units.GiB - 1, units.GiB, 5 * units.GiB, units.TiB, 3 * units.TiB,
	}

	prev := -1.0
	for _, in := range inputs {
		v := normalize(t, units.FormatBytes(in))
		assert.GreaterOrEqual(t, v, prev, "value for %d decreased", in)
		prev = v
	}
}
