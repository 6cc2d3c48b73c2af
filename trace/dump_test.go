package trace

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmcover/evmcover/vm/instruction"
)

func sampleTraces() []*Trace {
	return []*Trace{
		{
			Run:      "tx1",
			Receiver: "0xabc",
			Steps: []Step{
				{PC: 10, Op: instruction.PUSH1, Contract: "Token", Source: "contracts/Token.sol"},
				{PC: 200, Op: instruction.JUMPI, Contract: "Token", Source: "contracts/Token.sol"},
				{PC: 201, Op: instruction.JUMPDEST, Contract: "Token", Source: "contracts/Token.sol"},
			},
		},
		{Run: "tx2"},
	}
}

func TestDumpRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "evmcover")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	traces := sampleTraces()
	plain := filepath.Join(dir, "test_token.json")
	require.NoError(t, WriteDump(plain, traces))

	loaded, err := ReadDump(plain)
	require.NoError(t, err)
	assert.Equal(t, traces, loaded)

	compressed := filepath.Join(dir, "test_other.json"+SnappySuffix)
	require.NoError(t, WriteDump(compressed, traces))
	loaded, err = ReadDump(compressed)
	require.NoError(t, err)
	assert.Equal(t, traces, loaded)
}

// the mnemonic form is what debug-trace tooling emits
func TestDumpCarriesMnemonics(t *testing.T) {
	dir, err := ioutil.TempDir("", "evmcover")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "test_token.json")
	require.NoError(t, WriteDump(path, sampleTraces()))

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"JUMPI"`)
}

func TestDumpReaderPrefersCompressed(t *testing.T) {
	dir, err := ioutil.TempDir("", "evmcover")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	reader := NewDumpReader(dir, Options{})

	_, err = reader.Traces("test_token")
	assert.Error(t, err)

	require.NoError(t, WriteDump(filepath.Join(dir, "test_token.json"), sampleTraces()[:1]))
	loaded, err := reader.Traces("test_token")
	require.NoError(t, err)
	assert.Equal(t, 1, len(loaded))

	require.NoError(t, WriteDump(filepath.Join(dir, "test_token.json"+SnappySuffix), sampleTraces()))
	loaded, err = reader.Traces("test_token")
	require.NoError(t, err)
	assert.Equal(t, 2, len(loaded))
}

func TestHasReceiver(t *testing.T) {
	assert.True(t, (&Trace{Receiver: "0xabc"}).HasReceiver())
	assert.False(t, (&Trace{}).HasReceiver())
}

func TestNewRunID(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}
