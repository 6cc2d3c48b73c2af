package coverage

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "evmcover")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	report := NewReport()
	report.setFunction("Token", "contracts/Token.sol", "transfer",
		&FunctionResult{Pct: 0.67, Line: []int{0}, True: []int{1}})
	report.setFunction("Token", "contracts/Token.sol", "approve",
		&FunctionResult{Pct: 1})
	report.Hashes["build/contracts/Token.json"] = "deadbeef"

	path := filepath.Join(dir, "sub", "test_token.json")
	require.NoError(t, report.WriteFile(path))

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.Contracts, loaded.Contracts)
	assert.Equal(t, report.Hashes, loaded.Hashes)
}

// fully covered functions serialize as a bare pct with no detail arrays
func TestReportOmitsDetailWhenComplete(t *testing.T) {
	dir, err := ioutil.TempDir("", "evmcover")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	report := NewReport()
	report.setFunction("Token", "contracts/Token.sol", "approve", &FunctionResult{Pct: 1})

	path := filepath.Join(dir, "report.json")
	require.NoError(t, report.WriteFile(path))

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `"contracts"`)
	assert.Contains(t, body, `"sha1"`)
	assert.Contains(t, body, `"pct": 1`)
	assert.False(t, strings.Contains(body, `"line"`))
	assert.False(t, strings.Contains(body, `"true"`))
	assert.False(t, strings.Contains(body, `"false"`))
}
