package ecrecover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha3"
	"github.com/consensys/gnark/std/math/bits"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/vivijj/era-zkevm-circuits/gadgets/u256"
	"github.com/vivijj/era-zkevm-circuits/gadgets/weierstrass"
)

// nbExceptionFlags is the number of failure conditions a single call can
// raise. Their order is fixed: recovery-id overflow, x out of range,
// r zero, s zero, message zero, t zero, t non-residue, point at
// infinity.
const nbExceptionFlags = 8

// recover runs public key recovery for one precompile call and returns
// the success bit together with the 256-bit word to write back: the
// recovered address zero-extended to 32 bytes, or zero when any
// exception fired.
//
// recID is the low byte of the v word. Bit 0 selects the parity of the
// candidate y, bit 1 switches the candidate x from r to r + n, higher
// bits are ignored.
func (e *engine) recover(
	recID frontend.Variable,
	r, s, msgHash u256.Word,
	allowZeroMessage bool,
) (frontend.Variable, u256.Word, error) {
	var exceptions [nbExceptionFlags]frontend.Variable

	nWord := u256.ValueOf(emulated.Secp256k1Fr{}.Modulus())
	pWord := u256.ValueOf(emulated.Secp256k1Fp{}.Modulus())

	recBits := bits.ToBinary(e.api, recID, bits.WithNbDigits(8))
	yIsOdd, xOverflow := recBits[0], recBits[1]

	// The candidate x is r or r + n. Adding n may push the candidate out
	// of 256 bits, which cannot be a valid x.
	rPlusN, carried := u256.Add(e.api, r, nWord)
	x := u256.Select(e.api, xOverflow, rPlusN, r)
	exceptions[0] = e.api.And(xOverflow, carried)

	// x must be a base field element. Out-of-range candidates are masked
	// to zero so the conversion below stays well formed.
	_, inRange := u256.Sub(e.api, x, pWord)
	x = u256.Mask(e.api, x, inRange)
	exceptions[1] = e.api.Sub(1, inRange)

	xFe := wordToElement(e.api, e.fp, x)
	rFe, rIsZero := wordToElementMasked(e.api, e.fr, r)
	exceptions[2] = rIsZero
	sFe, sIsZero := wordToElementMasked(e.api, e.fr, s)
	exceptions[3] = sIsZero

	var hFe *emulated.Element[emulated.Secp256k1Fr]
	if allowZeroMessage {
		hFe = wordToElement(e.api, e.fr, msgHash)
		exceptions[4] = 0
	} else {
		var hIsZero frontend.Variable
		hFe, hIsZero = wordToElementMasked(e.api, e.fr, msgHash)
		exceptions[4] = hIsZero
	}

	// t = x^3 + b decides whether a point with abscissa x exists at all.
	t := e.fp.Add(e.fp.Mul(e.fp.Mul(xFe, xFe), xFe), e.fp.NewElement(curveB))
	tIsZero := e.fp.IsZero(t)
	exceptions[5] = tIsZero
	t = e.fp.Select(tIsZero, e.fp.NewElement(validTSubstitute), t)

	legendre, y := e.legendreAndRoot(t)

	// Match the parity of the root to the recovery id.
	y = e.fp.ReduceStrict(y)
	lowestBit := e.fp.ToBits(y)[0]
	swap := e.api.Xor(lowestBit, yIsOdd)
	y = e.fp.Select(swap, e.fp.Neg(y), y)

	// legendre is 1 or p-1 here, never 0: t was masked away from zero.
	tIsNonResidue := e.fp.IsZero(e.fp.Add(legendre, e.fp.One()))
	exceptions[6] = tIsNonResidue

	// Zero would not do as a substitute abscissa, x = 0 gives t = b = 7
	// which is again a non-residue.
	xSel := e.fp.Select(tIsNonResidue, e.fp.NewElement(validXSubstitute), xFe)
	ySel := e.fp.Select(tIsNonResidue, e.fp.NewElement(validYSubstitute), y)

	// Q = (s*X - hash*G) / r, computed as (s/r)*X + (-hash/r)*G.
	rInv := e.fr.Inverse(rFe)
	sByRInv := e.fr.Mul(sFe, rInv)
	hashByRInvNeg := e.fr.Neg(e.fr.Mul(hFe, rInv))

	point := e.curve.FromAffine(&weierstrass.AffinePoint[emulated.Secp256k1Fp]{X: *xSel, Y: *ySel})
	sTimesX := e.jointScalarMul(point, sByRInv)
	hashTimesG := e.fixedBaseMul(hashByRInvNeg)

	gen := e.generatorAffine()
	hashAff, hashIsInf := e.curve.ToAffineOrDefault(hashTimesG, gen)
	added := e.curve.AddMixed(sTimesX, hashAff)
	q := e.curve.Select(hashIsInf, sTimesX, added)

	qAff, qIsInf := e.curve.ToAffineOrDefault(q, gen)
	exceptions[7] = qIsInf

	anyException := exceptions[0]
	for _, f := range exceptions[1:] {
		anyException = e.api.Or(anyException, f)
	}
	success := e.api.Sub(1, anyException)

	written, err := e.addressOf(qAff)
	if err != nil {
		return nil, u256.Word{}, err
	}
	written = u256.Mask(e.api, written, success)
	return success, written, nil
}

// legendreAndRoot returns t^((p-1)/2) and the square root candidate
// t^((p+1)/4), both as quotients of partial products over a shared
// ladder of successive squarings t^(2^i). The root exponent is valid
// since p = 3 mod 4. t must not be zero.
func (e *engine) legendreAndRoot(t *emulated.Element[emulated.Secp256k1Fp]) (legendre, root *emulated.Element[emulated.Secp256k1Fp]) {
	powers := make([]*emulated.Element[emulated.Secp256k1Fp], nbSquarings)
	powers[0] = t
	for i := 1; i < nbSquarings; i++ {
		powers[i] = e.fp.Mul(powers[i-1], powers[i-1])
	}

	den := powers[legendreDenIdx[0]]
	for _, idx := range legendreDenIdx[1:] {
		den = e.fp.Mul(den, powers[idx])
	}
	legendre = e.fp.Div(powers[legendreNumIdx], den)

	den = powers[sqrtDenIdx[0]]
	for _, idx := range sqrtDenIdx[1:] {
		den = e.fp.Mul(den, powers[idx])
	}
	root = e.fp.Div(powers[sqrtNumIdx], den)
	return legendre, root
}

// addressOf hashes the affine coordinates (64 bytes, big endian) with
// keccak256 and keeps the low 20 digest bytes, zero extended to a
// 256-bit word.
func (e *engine) addressOf(q *weierstrass.AffinePoint[emulated.Secp256k1Fp]) (u256.Word, error) {
	h, err := sha3.NewLegacyKeccak256(e.api)
	if err != nil {
		return u256.Word{}, err
	}

	data := make([]uints.U8, 0, 64)
	for _, coord := range []*emulated.Element[emulated.Secp256k1Fp]{&q.X, &q.Y} {
		w := elementToWord(e.api, e.fp, coord)
		wBits := u256.ToBits(e.api, w)
		for i := 31; i >= 0; i-- {
			data = append(data, e.uapi.ByteValueOf(bits.FromBinary(e.api, wBits[8*i:8*i+8])))
		}
	}
	h.Write(data)
	digest := h.Sum() // 32 bytes, big endian

	var out u256.Word
	for k := range out.Limbs {
		limb := frontend.Variable(0)
		for j := 0; j < 4; j++ {
			lePos := 4*k + j
			if lePos > 19 {
				continue
			}
			limb = e.api.Add(limb, e.api.Mul(digest[31-lePos].Val, 1<<(8*j)))
		}
		out.Limbs[k] = limb
	}
	return out, nil
}
