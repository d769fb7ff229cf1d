package ecrecover

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/vivijj/era-zkevm-circuits/gadgets/queue"
)

// CallParamsValue locates one call's input and output words in memory.
// It is packed into fixed 32-bit limbs of the request key: input offset
// in limb 0, output offset in limb 2, input page in limb 4, output page
// in limb 5.
type CallParamsValue struct {
	InputPage    uint32
	InputOffset  uint32
	OutputPage   uint32
	OutputOffset uint32
}

// Key packs the call parameters into the 256-bit request key.
func (p CallParamsValue) Key() *big.Int {
	key := new(big.Int)
	key.Or(key, new(big.Int).SetUint64(uint64(p.InputOffset)))
	key.Or(key, new(big.Int).Lsh(new(big.Int).SetUint64(uint64(p.OutputOffset)), 64))
	key.Or(key, new(big.Int).Lsh(new(big.Int).SetUint64(uint64(p.InputPage)), 128))
	key.Or(key, new(big.Int).Lsh(new(big.Int).SetUint64(uint64(p.OutputPage)), 160))
	return key
}

// RequestValue is the native form of one request queue entry.
type RequestValue struct {
	Timestamp uint32
	Params    CallParamsValue
}

// CallInput is one full precompile call: the request plus the four
// words the call reads from memory, in read order.
type CallInput struct {
	Request RequestValue
	Hash    *big.Int
	V       *big.Int
	R       *big.Int
	S       *big.Int
}

// Snapshot is the hidden FSM state carried between circuit instances:
// the queue states after an instance finished its cycles. It serializes
// with CBOR so provers can persist it between instances.
type Snapshot struct {
	Requests queue.StateValue `cbor:"1,keyasint"`
	Memory   queue.StateValue `cbor:"2,keyasint"`
}

func (s Snapshot) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(s)
}

func (s *Snapshot) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, s)
}
