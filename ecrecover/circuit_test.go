package ecrecover

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var bigIntCompare = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })

// makeCalls builds count precompile calls with deterministic keys. The
// last call carries a zeroed r and must fail recovery, so both write
// paths appear in the memory queue.
func makeCalls(t *testing.T, count int) []CallInput {
	t.Helper()
	calls := make([]CallInput, count)
	for i := range calls {
		hash := new(big.Int).SetUint64(uint64(0xa0a0_0000 + i))
		v, r, s, _ := signAndExpect(t, big.NewInt(int64(1000+i)), big.NewInt(int64(2000+i)), hash)
		if i == count-1 {
			r = big.NewInt(0)
		}
		calls[i] = CallInput{
			Request: RequestValue{
				Timestamp: uint32(10 * (i + 1)),
				Params: CallParamsValue{
					InputPage:    uint32(100 + i),
					InputOffset:  0,
					OutputPage:   uint32(200 + i),
					OutputOffset: 0,
				},
			},
			Hash: hash,
			V:    v,
			R:    r,
			S:    s,
		}
	}
	return calls
}

func solveInstances(t *testing.T, cfg Config, instances []Instance) {
	t.Helper()
	assert := test.NewAssert(t)
	for _, inst := range instances {
		skeleton, err := NewCircuit(cfg)
		require.NoError(t, err)
		err = test.IsSolved(skeleton, inst.Assignment, ecc.BN254.ScalarField())
		assert.NoError(err)
	}
}

func TestCircuitSingleInstance(t *testing.T) {
	cfg := DefaultConfig(2)
	calls := makeCalls(t, 2)

	run, err := NewRun(cfg, calls)
	require.NoError(t, err)
	instances, err := run.Instances()
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.True(t, instances[0].Done)

	solveInstances(t, cfg, instances)
}

func TestCircuitSplitAgreement(t *testing.T) {
	calls := makeCalls(t, 2)

	// drain everything in one instance
	wholeRun, err := NewRun(DefaultConfig(2), calls)
	require.NoError(t, err)
	whole, err := wholeRun.Instances()
	require.NoError(t, err)
	require.Len(t, whole, 1)

	// drain one call per instance and carry the state across
	splitRun, err := NewRun(DefaultConfig(1), calls)
	require.NoError(t, err)
	split, err := splitRun.Instances()
	require.NoError(t, err)
	require.Len(t, split, 2)
	require.False(t, split[0].Done)
	require.True(t, split[1].Done)

	// the final observable memory state is split-invariant
	final := whole[0].Snapshot
	require.Empty(t, cmp.Diff(final.Memory, split[1].Snapshot.Memory, bigIntCompare))
	require.Empty(t, cmp.Diff(final.Requests, split[1].Snapshot.Requests, bigIntCompare))

	solveInstances(t, DefaultConfig(2), whole)
	solveInstances(t, DefaultConfig(1), split)
}

func TestCircuitPaddingCycles(t *testing.T) {
	// a single call in a 3-cycle instance leaves two padding cycles
	cfg := DefaultConfig(3)
	run, err := NewRun(cfg, makeCalls(t, 1))
	require.NoError(t, err)
	instances, err := run.Instances()
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.True(t, instances[0].Done)

	solveInstances(t, cfg, instances)
}

func TestCircuitEmptyRun(t *testing.T) {
	cfg := DefaultConfig(1)
	run, err := NewRun(cfg, nil)
	require.NoError(t, err)
	instances, err := run.Instances()
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.True(t, instances[0].Done)

	solveInstances(t, cfg, instances)
}

func TestSnapshotRoundTrip(t *testing.T) {
	run, err := NewRun(DefaultConfig(1), makeCalls(t, 2))
	require.NoError(t, err)
	instances, err := run.Instances()
	require.NoError(t, err)

	data, err := instances[0].Snapshot.MarshalBinary()
	require.NoError(t, err)

	var restored Snapshot
	require.NoError(t, restored.UnmarshalBinary(data))
	require.Empty(t, cmp.Diff(instances[0].Snapshot, restored, bigIntCompare))
}

func TestConfigValidation(t *testing.T) {
	_, err := NewCircuit(Config{Limit: 0})
	require.Error(t, err)
	_, err = NewCircuit(Config{Limit: -3})
	require.Error(t, err)
	_, err = NewRun(Config{Limit: 0}, nil)
	require.Error(t, err)
	_, err = NewCircuit(DefaultConfig(4))
	require.NoError(t, err)
}
