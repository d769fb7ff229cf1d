package ecrecover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/bits"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/emulated/emparams"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/vivijj/era-zkevm-circuits/gadgets/u256"
	"github.com/vivijj/era-zkevm-circuits/gadgets/weierstrass"
)

// engine bundles the emulated fields and the curve gadget used by the
// recovery routine. One engine serves all cycles of a circuit instance.
type engine struct {
	api   frontend.API
	fp    *emulated.Field[emulated.Secp256k1Fp]
	fr    *emulated.Field[emulated.Secp256k1Fr]
	wide  *emulated.Field[emparams.Mod1e512]
	curve *weierstrass.Curve[emulated.Secp256k1Fp]
	uapi  *uints.BinaryField[uints.U64]

	tables *fixedBaseTables
}

func newEngine(api frontend.API) (*engine, error) {
	fp, err := emulated.NewField[emulated.Secp256k1Fp](api)
	if err != nil {
		return nil, fmt.Errorf("base field: %w", err)
	}
	fr, err := emulated.NewField[emulated.Secp256k1Fr](api)
	if err != nil {
		return nil, fmt.Errorf("scalar field: %w", err)
	}
	wide, err := emulated.NewField[emparams.Mod1e512](api)
	if err != nil {
		return nil, fmt.Errorf("wide ring: %w", err)
	}
	curve, err := weierstrass.New[emulated.Secp256k1Fp](api, big.NewInt(curveB))
	if err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}
	uapi, err := uints.New[uints.U64](api)
	if err != nil {
		return nil, fmt.Errorf("binary field: %w", err)
	}
	return &engine{
		api:    api,
		fp:     fp,
		fr:     fr,
		wide:   wide,
		curve:  curve,
		uapi:   uapi,
		tables: newFixedBaseTables(api),
	}, nil
}

// generatorAffine returns the base point as an in-circuit constant. It
// doubles as the placeholder for infinity-safe affine conversions.
func (e *engine) generatorAffine() *weierstrass.AffinePoint[emulated.Secp256k1Fp] {
	g := generator()
	return &weierstrass.AffinePoint[emulated.Secp256k1Fp]{
		X: *e.fp.NewElement(g.X.BigInt(new(big.Int))),
		Y: *e.fp.NewElement(g.Y.BigInt(new(big.Int))),
	}
}

// roundedHighProduct computes round(k * m / 2^256) through the fixed
// half-group-order offset: the full 512-bit product plus (n-1)/2, high
// 256 bits taken. Operands are small enough that the wide ring never
// wraps.
func (e *engine) roundedHighProduct(kBits []frontend.Variable, m *big.Int) *emulated.Element[emulated.Secp256k1Fr] {
	k := e.wide.FromBits(kBits...)
	prod := e.wide.Mul(k, e.wide.NewElement(m))
	sum := e.wide.Add(prod, e.wide.NewElement(halfGroupOrder))
	sum = e.wide.Reduce(sum)
	highBits := e.wide.ToBits(sum)[256:512]
	return e.fr.FromBits(highBits...)
}

// decomposeScalar splits a reduced scalar s into two half-width scalars
// k1, k2 with s*P == k1*P + k2*phi(P) once the returned negation flags
// are applied to the corresponding precomputed tables. Each returned
// scalar is below 2^132; a candidate exceeding the bound is replaced by
// its negation and flagged.
func (e *engine) decomposeScalar(s *emulated.Element[emulated.Secp256k1Fr]) (
	k1, k2 *emulated.Element[emulated.Secp256k1Fr],
	k1Negated, k2Negated frontend.Variable,
) {
	sr := e.fr.ReduceStrict(s)
	sBits := e.fr.ToBits(sr)

	c1 := e.roundedHighProduct(sBits, glvB2)
	c2 := e.roundedHighProduct(sBits, glvB1)

	a1 := e.fr.NewElement(glvA1)
	b1 := e.fr.NewElement(glvB1)
	a2 := e.fr.NewElement(glvA2)
	b2 := e.fr.NewElement(glvB2)

	k1 = e.fr.Sub(sr, e.fr.Add(e.fr.Mul(c1, a1), e.fr.Mul(c2, a2)))
	k2 = e.fr.Sub(e.fr.Mul(c1, b1), e.fr.Mul(c2, b2))

	maxWord := u256.ValueOf(maxDecompScalar)

	// The bound check is a subtraction from 2^132 - 1: the borrow fires
	// exactly when the canonical scalar is strictly above the bound.
	k1 = e.fr.ReduceStrict(k1)
	_, k1Negated = u256.Sub(e.api, maxWord, elementToWord(e.api, e.fr, k1))
	k1 = e.fr.Select(k1Negated, e.fr.Neg(k1), k1)

	k2 = e.fr.ReduceStrict(k2)
	_, k2Negated = u256.Sub(e.api, maxWord, elementToWord(e.api, e.fr, k2))
	k2 = e.fr.Select(k2Negated, e.fr.Neg(k2), k2)

	return k1, k2, k1Negated, k2Negated
}

// toWindows returns the 33 four-bit windows of a decomposition scalar,
// most significant first. The scalar is strictly reduced and all bits at
// position 132 and above are asserted zero; the most significant window
// carries only bits [128, 132).
func (e *engine) toWindows(k *emulated.Element[emulated.Secp256k1Fr]) []frontend.Variable {
	kr := e.fr.ReduceStrict(k)
	kBits := e.fr.ToBits(kr)

	high := frontend.Variable(0)
	for _, b := range kBits[scalarMaxBits:] {
		high = e.api.Add(high, b)
	}
	e.api.AssertIsEqual(high, 0)

	windows := make([]frontend.Variable, 0, nbWindows)
	for pos := nbWindows - 1; pos >= 0; pos-- {
		windows = append(windows, bits.FromBinary(e.api, kBits[pos*windowWidth:(pos+1)*windowWidth]))
	}
	return windows
}

type affineTable [tableSize]*weierstrass.AffinePoint[emulated.Secp256k1Fp]

// selectEntry obliviously picks the table entry matching a non-zero
// window value by a linear scan of equality tests against 1..15. For
// window value zero the first entry is returned; the caller discards the
// dependent addition in that case.
func (e *engine) selectEntry(tbl *affineTable, window frontend.Variable) *weierstrass.AffinePoint[emulated.Secp256k1Fp] {
	sel := tbl[0]
	for i := 2; i <= tableSize; i++ {
		hit := e.api.IsZero(e.api.Sub(window, i))
		sel = e.curve.SelectAffine(hit, tbl[i-1], sel)
	}
	return sel
}

// jointScalarMul computes s*P with the GLV split: both half scalars are
// consumed simultaneously by a width-4 windowed double-and-add over
// precomputed multiples of P and of its endomorphism image.
func (e *engine) jointScalarMul(
	point *weierstrass.Point[emulated.Secp256k1Fp],
	s *emulated.Element[emulated.Secp256k1Fr],
) *weierstrass.Point[emulated.Secp256k1Fp] {
	k1, k2, k1Negated, k2Negated := e.decomposeScalar(s)

	gen := e.generatorAffine()
	betaEl := e.fp.NewElement(beta)

	// 15 non-zero multiples P, 2P, ..., 15P in affine form.
	var table affineTable
	pAff, _ := e.curve.ToAffineOrDefault(point, gen)
	table[0] = pAff
	tmp := point
	for i := 1; i < tableSize; i++ {
		tmp = e.curve.AddMixed(tmp, pAff)
		table[i], _ = e.curve.ToAffineOrDefault(tmp, gen)
	}

	// endomorphism image: x scaled by beta, y unchanged
	var endoTable affineTable
	for i := range table {
		endoTable[i] = &weierstrass.AffinePoint[emulated.Secp256k1Fp]{
			X: *e.fp.Mul(&table[i].X, betaEl),
			Y: table[i].Y,
		}
	}

	// fold the decomposition negation flags into the tables
	for i := range table {
		table[i] = e.curve.SelectAffine(k1Negated, e.curve.NegAffine(table[i]), table[i])
		endoTable[i] = e.curve.SelectAffine(k2Negated, e.curve.NegAffine(endoTable[i]), endoTable[i])
	}

	w1 := e.toWindows(k1)
	w2 := e.toWindows(k2)

	acc := e.curve.Zero()
	for idx := 0; idx < nbWindows; idx++ {
		skip1 := e.api.IsZero(w1[idx])
		skip2 := e.api.IsZero(w2[idx])

		sel1 := e.selectEntry(&table, w1[idx])
		added := e.curve.AddMixed(acc, sel1)
		acc = e.curve.Select(skip1, acc, added)

		sel2 := e.selectEntry(&endoTable, w2[idx])
		added = e.curve.AddMixed(acc, sel2)
		acc = e.curve.Select(skip2, acc, added)

		if idx != nbWindows-1 {
			for j := 0; j < windowWidth; j++ {
				acc = e.curve.Double(acc)
			}
		}
	}
	return acc
}
