package coverage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmcover/evmcover/trace"
	"github.com/evmcover/evmcover/vm/instruction"
)

type stubSource struct {
	maps  map[string]SourceMap
	calls int
}

func (s *stubSource) CoverageMap(contract string) (SourceMap, error) {
	s.calls++
	sources, ok := s.maps[contract]
	if !ok {
		return nil, errors.New("no build artifact")
	}
	return sources, nil
}

func newStubSource(t *testing.T) *stubSource {
	return &stubSource{maps: map[string]SourceMap{
		"Token": {
			"contracts/Token.sol": FunctionMap{
				"transfer": twoLineFunction(t),
			},
		},
	}}
}

func step(pc uint64, op instruction.OpCode) trace.Step {
	return trace.Step{PC: pc, Op: op, Contract: "Token", Source: "contracts/Token.sol"}
}

func TestRecordLineHits(t *testing.T) {
	source := newStubSource(t)
	recorder := NewRecorder(source)

	recorder.Record(&trace.Trace{
		Run:      "tx1",
		Receiver: "0xabc",
		Steps: []trace.Step{
			step(10, instruction.PUSH1),
			step(999, instruction.ADD), // outside the map, ignored
		},
	})

	fn := recorder.Maps()["Token"]["contracts/Token.sol"]["transfer"]
	assert.True(t, fn.HitRuns.Contains(trace.RunID("tx1")))
	assert.True(t, fn.Lines[0].HitRuns.Contains(trace.RunID("tx1")))
	assert.Equal(t, 0, fn.Lines[1].HitRuns.Cardinality())
}

func TestRecordBranchOutcomes(t *testing.T) {
	source := newStubSource(t)
	recorder := NewRecorder(source)

	// run 1 falls through the jump: next pc is jump pc + 1
	recorder.Record(&trace.Trace{
		Run:      "tx1",
		Receiver: "0xabc",
		Steps: []trace.Step{
			step(20, instruction.PUSH1),
			step(200, instruction.JUMPI),
			step(201, instruction.JUMPDEST),
		},
	})
	// run 2 takes the jump: next pc is elsewhere
	recorder.Record(&trace.Trace{
		Run:      "tx2",
		Receiver: "0xabc",
		Steps: []trace.Step{
			step(21, instruction.PUSH1),
			step(200, instruction.JUMPI),
			step(300, instruction.JUMPDEST),
		},
	})

	fn := recorder.Maps()["Token"]["contracts/Token.sol"]["transfer"]
	ln := fn.Lines[1]
	assert.True(t, ln.FalseRuns.Contains(trace.RunID("tx1")))
	assert.False(t, ln.TrueRuns.Contains(trace.RunID("tx1")))
	assert.True(t, ln.TrueRuns.Contains(trace.RunID("tx2")))
	assert.False(t, ln.FalseRuns.Contains(trace.RunID("tx2")))
}

func TestRecordJumpBeforeHitIsSkipped(t *testing.T) {
	source := newStubSource(t)
	recorder := NewRecorder(source)

	// the jump pc is reached without the guarded line having been hit
	// by this run, so the outcome is not yet classifiable
	recorder.Record(&trace.Trace{
		Run:      "tx1",
		Receiver: "0xabc",
		Steps: []trace.Step{
			step(200, instruction.JUMPI),
			step(201, instruction.JUMPDEST),
		},
	})

	ln := recorder.Maps()["Token"]["contracts/Token.sol"]["transfer"].Lines[1]
	assert.Equal(t, 0, ln.TrueRuns.Cardinality())
	assert.Equal(t, 0, ln.FalseRuns.Cardinality())
}

func TestRecordJumpAsFinalStep(t *testing.T) {
	source := newStubSource(t)
	recorder := NewRecorder(source)

	recorder.Record(&trace.Trace{
		Run:      "tx1",
		Receiver: "0xabc",
		Steps: []trace.Step{
			step(20, instruction.PUSH1),
			step(200, instruction.JUMPI),
		},
	})

	ln := recorder.Maps()["Token"]["contracts/Token.sol"]["transfer"].Lines[1]
	assert.True(t, ln.HitRuns.Contains(trace.RunID("tx1")))
	assert.Equal(t, 0, ln.TrueRuns.Cardinality())
	assert.Equal(t, 0, ln.FalseRuns.Cardinality())
}

func TestRecordSkipsCreationTraces(t *testing.T) {
	source := newStubSource(t)
	recorder := NewRecorder(source)

	recorder.Record(&trace.Trace{
		Run:   "tx1",
		Steps: []trace.Step{step(10, instruction.PUSH1)},
	})

	assert.Equal(t, 0, len(recorder.Maps()))
	assert.Equal(t, 0, source.calls)
}

func TestRecordSkipsUnattributableSteps(t *testing.T) {
	source := newStubSource(t)
	recorder := NewRecorder(source)

	recorder.Record(&trace.Trace{
		Run:      "tx1",
		Receiver: "0xabc",
		Steps: []trace.Step{
			{PC: 10, Op: instruction.PUSH1},                        // no attribution
			{PC: 5, Op: instruction.ADD, Contract: "Ghost", Source: "x.sol"}, // no artifact
			{PC: 6, Op: instruction.ADD, Contract: "Ghost", Source: "x.sol"}, // cached miss
		},
	})

	assert.Equal(t, 0, len(recorder.Maps()))
	// the missing artifact is only looked up once
	assert.Equal(t, 1, source.calls)
}

func TestRecordDeduplicatesRuns(t *testing.T) {
	source := newStubSource(t)
	recorder := NewRecorder(source)

	tr := &trace.Trace{
		Run:      "tx1",
		Receiver: "0xabc",
		Steps: []trace.Step{
			step(10, instruction.PUSH1),
			step(10, instruction.PUSH1),
		},
	}
	recorder.Record(tr)
	recorder.Record(tr)

	ln := recorder.Maps()["Token"]["contracts/Token.sol"]["transfer"].Lines[0]
	assert.Equal(t, 1, ln.HitRuns.Cardinality())
}

func TestContracts(t *testing.T) {
	source := newStubSource(t)
	source.maps["Auction"] = SourceMap{
		"contracts/Auction.sol": FunctionMap{"bid": twoLineFunction(t)},
	}
	recorder := NewRecorder(source)

	recorder.RecordAll([]*trace.Trace{
		{
			Run:      "tx1",
			Receiver: "0xabc",
			Steps: []trace.Step{
				step(10, instruction.PUSH1),
				{PC: 10, Op: instruction.PUSH1, Contract: "Auction", Source: "contracts/Auction.sol"},
			},
		},
	})

	require.Equal(t, []string{"Auction", "Token"}, recorder.Contracts())
}
