package ecrecover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"

	"github.com/vivijj/era-zkevm-circuits/gadgets/u256"
)

// wordToElement reinterprets a 256-bit memory word as a non-native field
// element. The result carries the raw 256-bit value, which may exceed
// the modulus; it is handled by the emulated field's lazy reduction and
// must be normalized (reduced) before any canonical-form use.
func wordToElement[T emulated.FieldParams](api frontend.API, f *emulated.Field[T], w u256.Word) *emulated.Element[T] {
	return f.FromBits(u256.ToBits(api, w)...)
}

// wordToElementMasked is wordToElement except that a word equal to the
// additive identity is swapped for the multiplicative identity, and the
// was-zero flag is returned. Downstream inversions stay well defined and
// the caller masks dependent results with the flag.
func wordToElementMasked[T emulated.FieldParams](api frontend.API, f *emulated.Field[T], w u256.Word) (*emulated.Element[T], frontend.Variable) {
	isZero := u256.IsZero(api, w)
	el := wordToElement(api, f, w)
	return f.Select(isZero, f.One(), el), isZero
}

// elementToWord converts a field element back to a 256-bit word. The
// element is strictly reduced first, so the produced limbs are the
// unique canonical representation.
func elementToWord[T emulated.FieldParams](api frontend.API, f *emulated.Field[T], e *emulated.Element[T]) u256.Word {
	r := f.ReduceStrict(e)
	return u256.FromBits(api, f.ToBits(r))
}
