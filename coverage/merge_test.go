package coverage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWeights struct {
	branch []bool
	total  int
}

func (s stubWeights) FunctionWeights(contract, source, fn string) ([]bool, int, error) {
	if s.branch == nil {
		return nil, 0, errors.New("artifact gone")
	}
	return s.branch, s.total, nil
}

// weights matching twoLineFunction: line 0 plain, line 1 branch, total 3
var testWeights = stubWeights{branch: []bool{false, true}, total: 3}

func reportWith(res *FunctionResult) *Report {
	report := NewReport()
	report.setFunction("Token", "contracts/Token.sol", "transfer", res)
	return report
}

func mergedResult(t *testing.T, merged *Report) *FunctionResult {
	res := merged.Function("Token", "contracts/Token.sol", "transfer")
	require.NotNil(t, res)
	return res
}

// merging with a zero report changes nothing
func TestMergeWithEmptyReport(t *testing.T) {
	empty := reportWith(&FunctionResult{Pct: 0})
	partial := reportWith(&FunctionResult{Pct: 0.67, Line: []int{0}, True: []int{1}})

	res := mergedResult(t, Merge([]*Report{empty, partial}, testWeights))
	assert.Equal(t, 0.67, res.Pct)
	assert.Equal(t, []int{0}, res.Line)
	assert.Equal(t, []int{1}, res.True)
	assert.Nil(t, res.False)
}

func TestMergeRecomputesFromUnion(t *testing.T) {
	trueSide := reportWith(&FunctionResult{Pct: 0.33, True: []int{1}})
	falseSide := reportWith(&FunctionResult{Pct: 0.33, False: []int{1}})

	// true+false across files covers the branch fully, but line 0 is
	// still missing: 2 of 3
	res := mergedResult(t, Merge([]*Report{trueSide, falseSide}, testWeights))
	assert.Equal(t, 0.67, res.Pct)
	assert.Equal(t, []int{1}, res.Line)
	assert.Nil(t, res.True)
	assert.Nil(t, res.False)
}

func TestMergeCollapsesWhenUnionIsComplete(t *testing.T) {
	a := reportWith(&FunctionResult{Pct: 0.67, Line: []int{0}, True: []int{1}})
	b := reportWith(&FunctionResult{Pct: 0.33, False: []int{1}})

	res := mergedResult(t, Merge([]*Report{a, b}, testWeights))
	assert.Equal(t, float64(1), res.Pct)
	assert.Nil(t, res.Line)
	assert.Nil(t, res.True)
	assert.Nil(t, res.False)
}

func TestMergeFullInputWins(t *testing.T) {
	full := reportWith(&FunctionResult{Pct: 1})
	zero := reportWith(&FunctionResult{Pct: 0})

	res := mergedResult(t, Merge([]*Report{zero, full}, testWeights))
	assert.Equal(t, float64(1), res.Pct)
	assert.Nil(t, res.Line)
}

func TestMergeAllZero(t *testing.T) {
	res := mergedResult(t, Merge([]*Report{
		reportWith(&FunctionResult{Pct: 0}),
		reportWith(&FunctionResult{Pct: 0}),
	}, testWeights))
	assert.Equal(t, float64(0), res.Pct)
}

func TestMergeMonotonic(t *testing.T) {
	a := reportWith(&FunctionResult{Pct: 0.33, Line: []int{0}})
	b := reportWith(&FunctionResult{Pct: 0.33, True: []int{1}})

	res := mergedResult(t, Merge([]*Report{a, b}, testWeights))
	assert.True(t, res.Pct >= 0.33)
	assert.Equal(t, 0.67, res.Pct)
}

// without resolvable weights the merge keeps the unioned sets and the
// highest observed percentage
func TestMergeWeightFallback(t *testing.T) {
	a := reportWith(&FunctionResult{Pct: 0.33, Line: []int{0}})
	b := reportWith(&FunctionResult{Pct: 0.67, Line: []int{0}, True: []int{1}})

	res := mergedResult(t, Merge([]*Report{a, b}, stubWeights{}))
	assert.Equal(t, 0.67, res.Pct)
	assert.Equal(t, []int{0}, res.Line)
	assert.Equal(t, []int{1}, res.True)
}

func TestMergeHashesUnion(t *testing.T) {
	a := reportWith(&FunctionResult{Pct: 0})
	a.Hashes["build/contracts/Token.json"] = "aaa"
	b := reportWith(&FunctionResult{Pct: 0})
	b.Hashes["build/traces/test_token.json"] = "bbb"

	merged := Merge([]*Report{a, b}, testWeights)
	assert.Equal(t, "aaa", merged.Hashes["build/contracts/Token.json"])
	assert.Equal(t, "bbb", merged.Hashes["build/traces/test_token.json"])
}

func TestMergeDistinctFunctions(t *testing.T) {
	a := reportWith(&FunctionResult{Pct: 1})
	b := NewReport()
	b.setFunction("Token", "contracts/Token.sol", "approve", &FunctionResult{Pct: 0})

	merged := Merge([]*Report{a, b}, testWeights)
	assert.Equal(t, float64(1), merged.Function("Token", "contracts/Token.sol", "transfer").Pct)
	assert.Equal(t, float64(0), merged.Function("Token", "contracts/Token.sol", "approve").Pct)
}
