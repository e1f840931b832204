// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package collectors implements the report sections. Each collector either
// queries the kernel directly or runs an external tool and normalizes its
// text output, which differs across tool versions, into the diag data model.
//
// Importing this package registers every collector with the diag registry.
package collectors

import (
	"errors"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// ErrUnexpectedOutput is returned when a tool's output does not have the
// expected shape. Whatever could be parsed is still returned alongside it.
var ErrUnexpectedOutput = errors.New("unexpected output")

// forEachBounded calls fn for every index in [0, n) with at most limit calls
// in flight. Callers store results by index so output order is input order.
func forEachBounded(n, limit int, fn func(i int)) {
	if limit < 1 {
		limit = 1
	}
	p := pool.New().WithMaxGoroutines(limit)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() { fn(i) })
	}
	p.Wait()
}

func isUint(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func hasPrefixAny(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
