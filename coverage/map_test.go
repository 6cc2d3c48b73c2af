package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint64) *uint64 {
	return &v
}

// twoLineFunction builds the canonical test function: line 0 is a plain
// line at pc 10, line 1 is a branch guarded by the conditional jump at
// pc 200, so the total weight is 3.
func twoLineFunction(t *testing.T) *FunctionCoverage {
	fn, err := NewFunctionCoverage(
		[]uint64{10, 20, 21, 200},
		[]LineSpec{
			{PCs: []uint64{10}},
			{PCs: []uint64{20, 21}, Jump: uintPtr(200)},
		},
		3,
	)
	require.NoError(t, err)
	return fn
}

func TestNewFunctionCoverage(t *testing.T) {
	fn := twoLineFunction(t)
	assert.Equal(t, 3, fn.TotalWeight)
	assert.Equal(t, 2, len(fn.Lines))
	assert.False(t, fn.Lines[0].Branch)
	assert.True(t, fn.Lines[1].Branch)
	assert.Equal(t, uint64(200), fn.Lines[1].JumpPC)
	assert.Equal(t, 1, fn.Lines[0].Weight())
	assert.Equal(t, 2, fn.Lines[1].Weight())
}

func TestNewFunctionCoverageRejectsOverlappingLines(t *testing.T) {
	_, err := NewFunctionCoverage(
		[]uint64{10, 11},
		[]LineSpec{
			{PCs: []uint64{10, 11}},
			{PCs: []uint64{11}},
		},
		2,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one line")
}

func TestNewFunctionCoverageRejectsForeignPC(t *testing.T) {
	_, err := NewFunctionCoverage(
		[]uint64{10},
		[]LineSpec{
			{PCs: []uint64{10, 99}},
		},
		1,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the function pc set")
}

func TestNewFunctionCoverageRejectsWeightMismatch(t *testing.T) {
	_, err := NewFunctionCoverage(
		[]uint64{10},
		[]LineSpec{
			{PCs: []uint64{10}},
		},
		5,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total weight mismatch")
}

func TestFindByPC(t *testing.T) {
	fn := twoLineFunction(t)
	fns := FunctionMap{"transfer": fn}

	assert.Equal(t, fn, fns.FindByPC(10))
	assert.Equal(t, fn, fns.FindByPC(200))
	assert.Nil(t, fns.FindByPC(999))

	assert.Equal(t, fn.Lines[0], fn.lineByPC(10))
	assert.Equal(t, fn.Lines[1], fn.lineByPC(21))
	assert.Nil(t, fn.lineByPC(200))

	assert.Equal(t, fn.Lines[1], fn.lineByJumpPC(200))
	assert.Nil(t, fn.lineByJumpPC(10))
}
