// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diag

import (
	"context"

	"github.com/go-logr/logr"
)

// Collector gathers one section of the report.
//
// Collect returns whatever data it managed to gather together with any
// error. Returning non-nil data with an error marks the section degraded;
// returning nil data marks it failed. Either way the rest of the report
// is unaffected.
type Collector interface {
	Section() Section
	Name() string
	Collect(ctx context.Context, target Config) (any, error)
}

// NewCollector is a factory for a Collector
type NewCollector func(logger logr.Logger, config CollectionConfig) (Collector, error)

// BaseCollector carries the fields every collector needs
type BaseCollector struct {
	section Section
	name    string
	logger  logr.Logger
	Config  CollectionConfig
}

func NewBaseCollector(section Section, name string, logger logr.Logger, config CollectionConfig) BaseCollector {
	return BaseCollector{
		section: section,
		name:    name,
		logger:  logger.WithName(string(section)),
		Config:  config,
	}
}

func (b *BaseCollector) Section() Section {
	return b.section
}

func (b *BaseCollector) Name() string {
	return b.name
}

func (b *BaseCollector) Logger() logr.Logger {
	return b.logger
}
