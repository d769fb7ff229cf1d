package ecrecover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/secp256k1"
	secpfp "github.com/consensys/gnark-crypto/ecc/secp256k1/fp"
	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"golang.org/x/crypto/sha3"

	"github.com/vivijj/era-zkevm-circuits/gadgets/queue"
	"github.com/vivijj/era-zkevm-circuits/gadgets/u256"
)

// The native side mirrors the circuit cycle for cycle: it maintains the
// same queue commitments with the same compression function, runs the
// recovery natively and emits per-instance witness assignments plus the
// continuation snapshots.

func nativeAbsorb(state *big.Int, items []*big.Int) *big.Int {
	h := mimc.NewMiMC()
	var e fr.Element
	e.SetBigInt(state)
	b := e.Bytes()
	h.Write(b[:])
	for _, it := range items {
		e.SetBigInt(it)
		b = e.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func nativeHash(items []*big.Int) *big.Int {
	h := mimc.NewMiMC()
	var e fr.Element
	for _, it := range items {
		e.SetBigInt(it)
		b := e.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

type nativeQueue struct {
	head, tail *big.Int
	length     uint64
}

func newNativeQueue(v queue.StateValue) *nativeQueue {
	return &nativeQueue{head: new(big.Int).Set(v.Head), tail: new(big.Int).Set(v.Tail), length: v.Length}
}

func (q *nativeQueue) push(items []*big.Int) {
	q.tail = nativeAbsorb(q.tail, items)
	q.length++
}

func (q *nativeQueue) pop(items []*big.Int) {
	q.head = nativeAbsorb(q.head, items)
	q.length--
}

func (q *nativeQueue) state() queue.StateValue {
	return queue.StateValue{Head: new(big.Int).Set(q.head), Tail: new(big.Int).Set(q.tail), Length: q.length}
}

func wordLimbValues(v *big.Int) []*big.Int {
	out := make([]*big.Int, u256.NbLimbs)
	mask := new(big.Int).SetUint64(0xffffffff)
	t := new(big.Int).Set(v)
	for i := range out {
		out[i] = new(big.Int).And(t, mask)
		t = new(big.Int).Rsh(t, 32)
	}
	return out
}

func requestItemValues(rv RequestValue) []*big.Int {
	items := []*big.Int{
		big.NewInt(FormalAddress),
		big.NewInt(PrecompileAuxByte),
		new(big.Int).SetUint64(uint64(rv.Timestamp)),
	}
	return append(items, wordLimbValues(rv.Params.Key())...)
}

func memoryItemValues(ts, page, index, rwFlag uint64, value *big.Int) []*big.Int {
	items := []*big.Int{
		new(big.Int).SetUint64(ts),
		new(big.Int).SetUint64(page),
		new(big.Int).SetUint64(index),
		new(big.Int).SetUint64(rwFlag),
	}
	return append(items, wordLimbValues(value)...)
}

// nativeRecover replays the in-circuit recovery on native integers and
// returns the success bit and the written word.
func nativeRecover(call CallInput, allowZeroMessage bool) (bool, *big.Int) {
	p := secpfp.Modulus()
	n := secpfr.Modulus()

	vByte := new(big.Int).And(call.V, big.NewInt(0xff)).Uint64()
	yIsOdd := vByte&1 == 1
	xOverflow := vByte&2 == 2

	bad := false

	x := new(big.Int).Set(call.R)
	if xOverflow {
		x.Add(x, n)
		if x.BitLen() > 256 {
			bad = true
			x.And(x, maxU256())
		}
	}
	if x.Cmp(p) >= 0 {
		bad = true
		x.SetUint64(0)
	}
	if call.R.Sign() == 0 || call.S.Sign() == 0 {
		bad = true
	}
	if !allowZeroMessage && call.Hash.Sign() == 0 {
		bad = true
	}

	t := new(big.Int).Exp(x, big.NewInt(3), p)
	t.Add(t, big.NewInt(curveB))
	t.Mod(t, p)
	if t.Sign() == 0 {
		return false, new(big.Int)
	}
	legendre := new(big.Int).Exp(t, new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1), p)
	if legendre.Cmp(new(big.Int).Sub(p, big.NewInt(1))) == 0 {
		return false, new(big.Int)
	}
	if bad {
		return false, new(big.Int)
	}

	y := new(big.Int).Exp(t, new(big.Int).Rsh(new(big.Int).Add(p, big.NewInt(1)), 2), p)
	if (y.Bit(0) == 1) != yIsOdd {
		y.Sub(p, y)
	}

	rMod := new(big.Int).Mod(call.R, n)
	rInv := new(big.Int).ModInverse(rMod, n)
	u1 := new(big.Int).Mul(new(big.Int).Mod(call.S, n), rInv)
	u1.Mod(u1, n)
	u2 := new(big.Int).Mul(new(big.Int).Mod(call.Hash, n), rInv)
	u2.Neg(u2)
	u2.Mod(u2, n)

	var pt, a1, a2 secp256k1.G1Affine
	pt.X.SetBigInt(x)
	pt.Y.SetBigInt(y)
	a1.ScalarMultiplication(&pt, u1)
	a2.ScalarMultiplicationBase(u2)

	var acc, other secp256k1.G1Jac
	acc.FromAffine(&a1)
	other.FromAffine(&a2)
	acc.AddAssign(&other)
	if acc.Z.IsZero() {
		return false, new(big.Int)
	}

	var q secp256k1.G1Affine
	q.FromJacobian(&acc)
	qx := q.X.Bytes()
	qy := q.Y.Bytes()

	k := sha3.NewLegacyKeccak256()
	k.Write(qx[:])
	k.Write(qy[:])
	digest := k.Sum(nil)
	return true, new(big.Int).SetBytes(digest[12:])
}

func maxU256() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}

// Instance is one circuit instance of a run: its witness assignment,
// the continuation snapshot it produces and the public commitment.
type Instance struct {
	Assignment *Circuit
	Snapshot   Snapshot
	Done       bool
	Commitment *big.Int
}

// Run simulates a full application of the precompile natively and
// splits it into circuit instances of cfg.Limit cycles each.
type Run struct {
	cfg             Config
	calls           []CallInput
	initialRequests queue.StateValue
	initialMemory   queue.StateValue
}

func NewRun(cfg Config, calls []CallInput) (*Run, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	reqQ := newNativeQueue(queue.EmptyStateValue())
	for _, c := range calls {
		reqQ.push(requestItemValues(c.Request))
	}
	return &Run{
		cfg:             cfg,
		calls:           calls,
		initialRequests: reqQ.state(),
		initialMemory:   queue.EmptyStateValue(),
	}, nil
}

// InitialRequestsState returns the producer-side state of the full
// request queue, the observable input of every instance.
func (r *Run) InitialRequestsState() queue.StateValue { return r.initialRequests }

// Instances drains the run and returns one witness per circuit
// instance. A run with no calls still yields one (trivially done)
// instance.
func (r *Run) Instances() ([]Instance, error) {
	reqQ := newNativeQueue(r.initialRequests)
	memQ := newNativeQueue(r.initialMemory)

	var out []Instance
	next := 0
	start := true
	fsmReq := queue.EmptyStateValue()
	fsmMem := queue.EmptyStateValue()

	for {
		asn, err := NewCircuit(r.cfg)
		if err != nil {
			return nil, err
		}
		asn.Start = boolBit(start)
		asn.InitialRequestsState = r.initialRequests.Assign()
		asn.InitialMemoryState = r.initialMemory.Assign()
		asn.FSMInputRequests = fsmReq.Assign()
		asn.FSMInputMemory = fsmMem.Assign()

		for cycle := 0; cycle < r.cfg.Limit; cycle++ {
			if reqQ.length == 0 {
				asn.Requests[cycle] = zeroRequest()
				for j := range asn.MemoryReads[cycle] {
					asn.MemoryReads[cycle][j] = u256.ValueOf(new(big.Int))
				}
				continue
			}

			call := r.calls[next]
			next++
			reqQ.pop(requestItemValues(call.Request))

			params := call.Request.Params
			ts := uint64(call.Request.Timestamp)
			reads := []*big.Int{call.Hash, call.V, call.R, call.S}
			for j, w := range reads {
				memQ.push(memoryItemValues(ts, uint64(params.InputPage), uint64(params.InputOffset)+uint64(j), 0, w))
				asn.MemoryReads[cycle][j] = u256.ValueOf(w)
			}

			success, written := nativeRecover(call, r.cfg.AllowZeroMessage)
			successValue := new(big.Int)
			if success {
				successValue.SetUint64(1)
			}
			memQ.push(memoryItemValues(ts+1, uint64(params.OutputPage), uint64(params.OutputOffset), 1, successValue))
			memQ.push(memoryItemValues(ts+1, uint64(params.OutputPage), uint64(params.OutputOffset)+1, 1, written))

			asn.Requests[cycle] = Request{
				Address:   FormalAddress,
				AuxByte:   PrecompileAuxByte,
				Timestamp: call.Request.Timestamp,
				Key:       u256.ValueOf(params.Key()),
			}
		}

		done := reqQ.length == 0
		finalReq := reqQ.state()
		finalMem := memQ.state()
		obsOutMem := queue.EmptyStateValue()
		if done {
			obsOutMem = finalMem
		}

		commitment := commitmentValue(start, done,
			r.initialRequests, r.initialMemory, obsOutMem,
			fsmReq, fsmMem, finalReq, finalMem)
		asn.Commitment = commitment

		out = append(out, Instance{
			Assignment: asn,
			Snapshot:   Snapshot{Requests: finalReq, Memory: finalMem},
			Done:       done,
			Commitment: commitment,
		})

		if done {
			if next != len(r.calls) {
				return nil, fmt.Errorf("drained after %d of %d calls", next, len(r.calls))
			}
			return out, nil
		}
		start = false
		fsmReq = finalReq
		fsmMem = finalMem
	}
}

func boolBit(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

func zeroRequest() Request {
	return Request{Address: 0, AuxByte: 0, Timestamp: 0, Key: u256.ValueOf(new(big.Int))}
}

func stateItems(v queue.StateValue) []*big.Int {
	return []*big.Int{v.Head, v.Tail, new(big.Int).SetUint64(v.Length)}
}

func commitmentValue(start, done bool, states ...queue.StateValue) *big.Int {
	items := []*big.Int{boolBit(start), boolBit(done)}
	for _, s := range states {
		items = append(items, stateItems(s)...)
	}
	return nativeHash(items)
}
