// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diag_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysdiag/pkg/diag"
)

func TestRegistry(t *testing.T) {
	section := diag.Section("registry-test")
	factory := stub(section, func(context.Context, diag.Config) (any, error) { return "ok", nil })

	diag.Register(section, factory)

	got, err := diag.GetCollector(section)
	require.NoError(t, err)

	c, err := got(logr.Discard(), diag.DefaultCollectionConfig())
	require.NoError(t, err)
	assert.Equal(t, section, c.Section())
	assert.Equal(t, "stub-registry-test", c.Name())

	assert.Panics(t, func() { diag.Register(section, factory) }, "duplicate registration must panic")
}

func TestGetCollector_NotFound(t *testing.T) {
	_, err := diag.GetCollector(diag.Section("does-not-exist"))
	assert.ErrorContains(t, err, "not found")
}
