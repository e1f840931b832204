// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package units formats raw counts for human consumption.
package units

import "fmt"

const (
	KiB uint64 = 1 << (10 * (iota + 1))
	MiB
	GiB
	TiB
)

// FormatBytes formats a byte count using binary multiples and a single-letter
// suffix: "512B", "1.5K", "3.2M", "1.0G", "7.3T".
//
// Counts below 1024 are printed without a decimal point. Larger counts are
// scaled to the largest unit not exceeding the value and printed with one
// decimal digit.
func FormatBytes(bytes uint64) string {
	switch {
	case bytes < KiB:
		return fmt.Sprintf("%dB", bytes)
	case bytes < MiB:
		return scaled(bytes, KiB, 'K')
	case bytes < GiB:
		return scaled(bytes, MiB, 'M')
	case bytes < TiB:
		return scaled(bytes, GiB, 'G')
	default:
		return scaled(bytes, TiB, 'T')
	}
}

func scaled(bytes, div uint64, suffix byte) string {
	return fmt.Sprintf("%3.1f%c", float64(bytes)/float64(div), suffix)
}
