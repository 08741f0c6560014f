// Package inspecttest provides test assertions on the fused-kernel structure
// of compiled program graphs.
package inspecttest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/kernelscope/inspect"
	"github.com/gomlx/kernelscope/program"
)

// AssertFusedKernelCount checks that block holds want fused kernels, and
// reports a test error otherwise. It returns whether the assertion succeeded.
func AssertFusedKernelCount(t testing.TB, block *program.Block, want int) bool {
	t.Helper()
	got, err := inspect.CountFusedKernels(block)
	if !assert.NoError(t, err, "counting fused kernels") {
		return false
	}
	return assert.Equal(t, want, got, "fused kernel count")
}

// AssertStructure checks that the structure of block equals want, and
// reports a test error with both reports and their differences otherwise.
func AssertStructure(t testing.TB, block *program.Block, want *inspect.Report) bool {
	t.Helper()
	err := inspect.CheckStructure(block, want)
	return assert.NoError(t, err, "fused kernel structure")
}

// RequireFusedKernelCount is like AssertFusedKernelCount but stops the test on failure.
func RequireFusedKernelCount(t testing.TB, block *program.Block, want int) {
	t.Helper()
	got, err := inspect.CountFusedKernels(block)
	require.NoError(t, err, "counting fused kernels")
	require.Equal(t, want, got, "fused kernel count")
}

// RequireStructure is like AssertStructure but stops the test on failure.
func RequireStructure(t testing.TB, block *program.Block, want *inspect.Report) {
	t.Helper()
	require.NoError(t, inspect.CheckStructure(block, want), "fused kernel structure")
}

// RequireProgram checks both the total count and the structure of the global
// block of p. want.Total() gives the expected count.
func RequireProgram(t testing.TB, p *program.Program, want *inspect.Report) {
	t.Helper()
	require.NotNil(t, p, "program")
	RequireFusedKernelCount(t, p.GlobalBlock(), want.Total())
	RequireStructure(t, p.GlobalBlock(), want)
}
