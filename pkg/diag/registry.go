// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diag

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[Section]NewCollector)
)

// Register adds a NewCollector factory to the global registry for section.
//
// This function is usually called during package initialization (typically in init() functions)
// to register collector implementations before they can be instantiated by diag.Manager.
// It will panic if a collector for the given section is already registered.
func Register(section Section, collector NewCollector) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[section]; exists {
		panic(fmt.Sprintf("Collector for %s already registered", section))
	}
	registry[section] = collector
}

// GetCollector retrieves the collector factory function from the global registry for section.
func GetCollector(section Section) (NewCollector, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	collector, exists := registry[section]
	if !exists {
		return nil, fmt.Errorf("collector for %s not found", section)
	}
	return collector, nil
}
