// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package report

import (
	"slices"
	"strings"

	"github.com/antimetal/sysdiag/pkg/diag"
)

type serviceClass int

const (
	serviceRunning serviceClass = iota
	// serviceExited is a oneshot unit that completed and left no process.
	serviceExited
	serviceDown
	serviceUnknown
	// serviceNeedsEdit is a status tool usage message, which means the
	// configured name is not a service at all.
	serviceNeedsEdit
)

// ServiceSummary counts services by state
type ServiceSummary struct {
	Total   int
	Running int
	Exited  int
	Down    int
	Unknown int
}

// SummarizeServices classifies every status. Running is the number of
// services that are active and running. Oneshot units that are active but
// exited are counted apart; every other service is either down or unknown.
func SummarizeServices(statuses []diag.ServiceStatus) ServiceSummary {
	sum := ServiceSummary{Total: len(statuses)}
	for _, s := range statuses {
		switch classifyService(s) {
		case serviceRunning:
			sum.Running++
		case serviceExited:
			sum.Exited++
		case serviceDown:
			sum.Down++
		default:
			sum.Unknown++
		}
	}
	return sum
}

func classifyService(s diag.ServiceStatus) serviceClass {
	if s.Running() {
		return serviceRunning
	}
	if s.Exited() {
		return serviceExited
	}
	switch s.Outcome {
	case diag.ServiceParsed:
		return serviceDown
	case diag.ServiceRaw:
		tokens := strings.Fields(s.Raw)
		switch {
		case slices.Contains(tokens, "Usage:"):
			return serviceNeedsEdit
		case slices.Contains(tokens, "not") || slices.Contains(tokens, "stopped") || slices.Contains(tokens, "dead"):
			return serviceDown
		default:
			return serviceUnknown
		}
	default:
		return serviceUnknown
	}
}
