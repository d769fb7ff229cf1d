package ecrecover

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/rangecheck"

	"github.com/vivijj/era-zkevm-circuits/gadgets/queue"
	"github.com/vivijj/era-zkevm-circuits/gadgets/u256"
)

// Request is one entry of the request queue: a precompile call
// demanding a public key recovery. The key word packs the memory call
// parameters.
type Request struct {
	Address   frontend.Variable
	AuxByte   frontend.Variable
	Timestamp frontend.Variable
	Key       u256.Word
}

func (r Request) encode() []frontend.Variable {
	enc := []frontend.Variable{r.Address, r.AuxByte, r.Timestamp}
	return append(enc, r.Key.Limbs[:]...)
}

// callParams are the memory coordinates of one call, unpacked from
// fixed limbs of the request key.
type callParams struct {
	inputPage    frontend.Variable
	inputOffset  frontend.Variable
	outputPage   frontend.Variable
	outputOffset frontend.Variable
}

func callParamsFromKey(key u256.Word) callParams {
	return callParams{
		inputOffset:  key.Limbs[0],
		outputOffset: key.Limbs[2],
		inputPage:    key.Limbs[4],
		outputPage:   key.Limbs[5],
	}
}

func encodeMemoryQuery(ts, page, index, rwFlag frontend.Variable, value u256.Word) []frontend.Variable {
	enc := []frontend.Variable{ts, page, index, rwFlag}
	return append(enc, value.Limbs[:]...)
}

// Circuit drains up to Limit recovery requests in one instance.
//
// Observable input: the initial request and memory queue states.
// Hidden FSM state: the mid-drain queue states carried between
// instances. The Start flag selects which pair seeds the live queues.
// The only public value is the commitment over the closed-form record.
type Circuit struct {
	Start frontend.Variable

	InitialRequestsState queue.State
	InitialMemoryState   queue.State

	FSMInputRequests queue.State
	FSMInputMemory   queue.State

	Requests    []Request
	MemoryReads [][MemoryReadsPerCall]u256.Word

	Commitment frontend.Variable `gnark:",public"`

	cfg Config
}

// NewCircuit returns a circuit skeleton for compilation, sized for
// cfg.Limit requests per instance.
func NewCircuit(cfg Config) (*Circuit, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Circuit{
		Requests:    make([]Request, cfg.Limit),
		MemoryReads: make([][MemoryReadsPerCall]u256.Word, cfg.Limit),
		cfg:         cfg,
	}, nil
}

func (c *Circuit) Define(api frontend.API) error {
	if len(c.Requests) != c.cfg.Limit || len(c.MemoryReads) != c.cfg.Limit {
		return fmt.Errorf("witness arity %d/%d does not match limit %d",
			len(c.Requests), len(c.MemoryReads), c.cfg.Limit)
	}

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("compression hash: %w", err)
	}
	eng, err := newEngine(api)
	if err != nil {
		return err
	}
	rc := rangecheck.New(api)

	// Externally supplied initial states must be producer-side states:
	// nothing consumed yet.
	c.InitialRequestsState.EnforceTrivialHead(api)
	c.InitialMemoryState.EnforceTrivialHead(api)

	reqState := queue.SelectState(api, c.Start, c.InitialRequestsState, c.FSMInputRequests)
	memState := queue.SelectState(api, c.Start, c.InitialMemoryState, c.FSMInputMemory)

	requests := queue.FromState(api, &h, reqState)
	memory := queue.FromState(api, &h, memState)

	for cycle := 0; cycle < c.cfg.Limit; cycle++ {
		shouldProcess := api.Sub(1, requests.IsEmpty())

		req := c.Requests[cycle]
		u256.Check(api, req.Key)
		rc.Check(req.Timestamp, 32)
		requests.Pop(shouldProcess, req.encode())

		// Only the dedicated precompile may appear in this queue.
		api.AssertIsEqual(api.Mul(shouldProcess, api.Sub(req.Address, FormalAddress)), 0)
		api.AssertIsEqual(api.Mul(shouldProcess, api.Sub(req.AuxByte, PrecompileAuxByte)), 0)

		params := callParamsFromKey(req.Key)
		tsRead := req.Timestamp
		tsWrite := api.Add(tsRead, 1)

		reads := c.MemoryReads[cycle]
		for j := 0; j < MemoryReadsPerCall; j++ {
			u256.Check(api, reads[j])
			memory.Push(shouldProcess,
				encodeMemoryQuery(tsRead, params.inputPage, params.inputOffset, 0, reads[j]))
			params.inputOffset = api.Add(params.inputOffset, 1)
		}

		msgHash, v, r, s := reads[0], reads[1], reads[2], reads[3]
		recID := u256.LowByte(api, v)

		success, written, err := eng.recover(recID, r, s, msgHash, c.cfg.AllowZeroMessage)
		if err != nil {
			return err
		}

		var successWord u256.Word
		successWord.Limbs[0] = success
		for i := 1; i < u256.NbLimbs; i++ {
			successWord.Limbs[i] = 0
		}

		memory.Push(shouldProcess,
			encodeMemoryQuery(tsWrite, params.outputPage, params.outputOffset, 1, successWord))
		params.outputOffset = api.Add(params.outputOffset, 1)
		memory.Push(shouldProcess,
			encodeMemoryQuery(tsWrite, params.outputPage, params.outputOffset, 1, written))
	}

	done := requests.EnforceConsistency()

	finalRequests := requests.State()
	finalMemory := memory.State()

	// The final memory state becomes observable only on completion.
	zeroState := queue.State{Head: 0, Tail: 0, Length: 0}
	observableMemory := queue.SelectState(api, done, finalMemory, zeroState)

	h.Reset()
	h.Write(c.Start, done)
	writeState(&h, c.InitialRequestsState)
	writeState(&h, c.InitialMemoryState)
	writeState(&h, observableMemory)
	writeState(&h, c.FSMInputRequests)
	writeState(&h, c.FSMInputMemory)
	writeState(&h, finalRequests)
	writeState(&h, finalMemory)
	api.AssertIsEqual(h.Sum(), c.Commitment)

	return nil
}

func writeState(h *mimc.MiMC, s queue.State) {
	h.Write(s.Head, s.Tail, s.Length)
}
