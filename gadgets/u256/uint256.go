// Package u256 implements a 256-bit VM memory word as a circuit gadget.
//
// A word is represented as eight 32-bit limbs in little-endian order over
// the native field. The package provides the carrying/borrowing arithmetic
// and masking operations the precompile call loop needs; it is not a
// general big-integer gadget. Non-native modular arithmetic lives in
// [github.com/consensys/gnark/std/math/emulated].
package u256

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/bits"
	"github.com/consensys/gnark/std/rangecheck"
)

// NbLimbs is the number of 32-bit limbs in a word.
const NbLimbs = 8

// limbBits is the width of a single limb.
const limbBits = 32

// Word is a 256-bit word as eight little-endian 32-bit limbs.
type Word struct {
	Limbs [NbLimbs]frontend.Variable
}

// ValueOf returns a word witness assignment for v. The value must fit in
// 256 bits, otherwise high bits are dropped.
func ValueOf(v *big.Int) Word {
	var w Word
	mask := new(big.Int).SetUint64(0xffffffff)
	t := new(big.Int).Set(v)
	for i := 0; i < NbLimbs; i++ {
		w.Limbs[i] = new(big.Int).And(t, mask)
		t = new(big.Int).Rsh(t, limbBits)
	}
	return w
}

// Zero returns the all-zero word as an in-circuit constant.
func Zero() Word {
	var w Word
	for i := range w.Limbs {
		w.Limbs[i] = 0
	}
	return w
}

// Check range-checks every limb to 32 bits. Words coming from the witness
// (memory read values) must be checked before use; words produced by the
// package operations are already constrained.
func Check(api frontend.API, a Word) {
	rc := rangecheck.New(api)
	for i := range a.Limbs {
		rc.Check(a.Limbs[i], limbBits)
	}
}

// Add returns a + b and the carry-out bit.
func Add(api frontend.API, a, b Word) (Word, frontend.Variable) {
	var r Word
	carry := frontend.Variable(0)
	for i := 0; i < NbLimbs; i++ {
		s := api.Add(api.Add(a.Limbs[i], b.Limbs[i]), carry)
		bs := bits.ToBinary(api, s, bits.WithNbDigits(limbBits+1))
		r.Limbs[i] = bits.FromBinary(api, bs[:limbBits])
		carry = bs[limbBits]
	}
	return r, carry
}

// Sub returns a - b and the borrow-out bit. The borrow is 1 exactly when
// b > a.
func Sub(api frontend.API, a, b Word) (Word, frontend.Variable) {
	var r Word
	shift := new(big.Int).Lsh(big.NewInt(1), limbBits)
	borrow := frontend.Variable(0)
	for i := 0; i < NbLimbs; i++ {
		// d = 2^32 + a_i - b_i - borrow, always in [0, 2^33)
		d := api.Sub(api.Add(a.Limbs[i], shift), api.Add(b.Limbs[i], borrow))
		bs := bits.ToBinary(api, d, bits.WithNbDigits(limbBits+1))
		r.Limbs[i] = bits.FromBinary(api, bs[:limbBits])
		borrow = api.Sub(1, bs[limbBits])
	}
	return r, borrow
}

// IsZero returns 1 if the word is zero. Limbs must be range-checked; the
// limb sum then fits the native field without wraparound.
func IsZero(api frontend.API, a Word) frontend.Variable {
	s := frontend.Variable(0)
	for i := range a.Limbs {
		s = api.Add(s, a.Limbs[i])
	}
	return api.IsZero(s)
}

// Select returns a if cond is 1 and b otherwise, limb-wise.
func Select(api frontend.API, cond frontend.Variable, a, b Word) Word {
	var r Word
	for i := range r.Limbs {
		r.Limbs[i] = api.Select(cond, a.Limbs[i], b.Limbs[i])
	}
	return r
}

// Mask returns the word unchanged when keep is 1 and the zero word when
// keep is 0.
func Mask(api frontend.API, a Word, keep frontend.Variable) Word {
	var r Word
	for i := range r.Limbs {
		r.Limbs[i] = api.Mul(a.Limbs[i], keep)
	}
	return r
}

// ToBits decomposes the word into 256 bits, least significant first.
func ToBits(api frontend.API, a Word) []frontend.Variable {
	res := make([]frontend.Variable, 0, NbLimbs*limbBits)
	for i := 0; i < NbLimbs; i++ {
		res = append(res, bits.ToBinary(api, a.Limbs[i], bits.WithNbDigits(limbBits))...)
	}
	return res
}

// FromBits packs up to 256 little-endian bits into a word. The bits must
// already be constrained boolean.
func FromBits(api frontend.API, bs []frontend.Variable) Word {
	if len(bs) > NbLimbs*limbBits {
		panic("u256: too many bits")
	}
	r := Zero()
	for i := 0; i < NbLimbs; i++ {
		lo := i * limbBits
		if lo >= len(bs) {
			break
		}
		hi := min(lo+limbBits, len(bs))
		r.Limbs[i] = bits.FromBinary(api, bs[lo:hi])
	}
	return r
}

// LowByte returns the least significant byte of the word.
func LowByte(api frontend.API, a Word) frontend.Variable {
	bs := bits.ToBinary(api, a.Limbs[0], bits.WithNbDigits(limbBits))
	return bits.FromBinary(api, bs[:8])
}

// AssertIsEqual enforces limb-wise equality of two words.
func AssertIsEqual(api frontend.API, a, b Word) {
	for i := range a.Limbs {
		api.AssertIsEqual(a.Limbs[i], b.Limbs[i])
	}
}
