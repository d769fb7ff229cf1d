package ecrecover

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/secp256k1"
	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/test"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/vivijj/era-zkevm-circuits/gadgets/weierstrass"
)

func affineValue(p secp256k1.G1Affine) weierstrass.AffinePoint[emulated.Secp256k1Fp] {
	return weierstrass.AffinePoint[emulated.Secp256k1Fp]{
		X: emulated.ValueOf[emulated.Secp256k1Fp](p.X.BigInt(new(big.Int))),
		Y: emulated.ValueOf[emulated.Secp256k1Fp](p.Y.BigInt(new(big.Int))),
	}
}

type jointMulCircuit struct {
	P    weierstrass.AffinePoint[emulated.Secp256k1Fp]
	S    emulated.Element[emulated.Secp256k1Fr]
	Want weierstrass.AffinePoint[emulated.Secp256k1Fp]
}

func (c *jointMulCircuit) Define(api frontend.API) error {
	eng, err := newEngine(api)
	if err != nil {
		return err
	}
	got := eng.jointScalarMul(eng.curve.FromAffine(&c.P), &c.S)
	aff, isInf := eng.curve.ToAffineOrDefault(got, eng.generatorAffine())
	api.AssertIsEqual(isInf, 0)
	eng.curve.AssertIsEqualAffine(aff, &c.Want)
	return nil
}

func jointMulWitness(t *testing.T, s *big.Int) *jointMulCircuit {
	t.Helper()
	base, err := rand.Int(rand.Reader, secpfr.Modulus())
	require.NoError(t, err)
	var p, want secp256k1.G1Affine
	p.ScalarMultiplicationBase(base)
	want.ScalarMultiplication(&p, s)
	return &jointMulCircuit{
		P:    affineValue(p),
		S:    emulated.ValueOf[emulated.Secp256k1Fr](s),
		Want: affineValue(want),
	}
}

func TestJointScalarMul(t *testing.T) {
	assert := test.NewAssert(t)

	n := secpfr.Modulus()
	scalars := []*big.Int{
		big.NewInt(1),
		big.NewInt(2),
		big.NewInt(0xffff),
		new(big.Int).Sub(n, big.NewInt(1)),
		new(big.Int).Rsh(n, 1),
	}
	for i := 0; i < 3; i++ {
		s, err := rand.Int(rand.Reader, n)
		require.NoError(t, err)
		scalars = append(scalars, s)
	}
	for _, s := range scalars {
		err := test.IsSolved(&jointMulCircuit{}, jointMulWitness(t, s), ecc.BN254.ScalarField())
		assert.NoError(err)
	}
}

type zeroScalarCircuit struct {
	P weierstrass.AffinePoint[emulated.Secp256k1Fp]
}

func (c *zeroScalarCircuit) Define(api frontend.API) error {
	eng, err := newEngine(api)
	if err != nil {
		return err
	}
	got := eng.jointScalarMul(eng.curve.FromAffine(&c.P), eng.fr.Zero())
	_, isInf := eng.curve.ToAffineOrDefault(got, eng.generatorAffine())
	api.AssertIsEqual(isInf, 1)

	fixed := eng.fixedBaseMul(eng.fr.Zero())
	_, isInf = eng.curve.ToAffineOrDefault(fixed, eng.generatorAffine())
	api.AssertIsEqual(isInf, 1)
	return nil
}

func TestZeroScalar(t *testing.T) {
	assert := test.NewAssert(t)
	base, err := rand.Int(rand.Reader, secpfr.Modulus())
	require.NoError(t, err)
	var p secp256k1.G1Affine
	p.ScalarMultiplicationBase(base)
	err = test.IsSolved(&zeroScalarCircuit{}, &zeroScalarCircuit{P: affineValue(p)}, ecc.BN254.ScalarField())
	assert.NoError(err)
}

type multiplierAgreementCircuit struct {
	S    emulated.Element[emulated.Secp256k1Fr]
	Want weierstrass.AffinePoint[emulated.Secp256k1Fp]
}

func (c *multiplierAgreementCircuit) Define(api frontend.API) error {
	eng, err := newEngine(api)
	if err != nil {
		return err
	}
	gen := eng.generatorAffine()

	windowed := eng.jointScalarMul(eng.curve.FromAffine(gen), &c.S)
	windowedAff, isInf := eng.curve.ToAffineOrDefault(windowed, gen)
	api.AssertIsEqual(isInf, 0)
	eng.curve.AssertIsEqualAffine(windowedAff, &c.Want)

	fixed := eng.fixedBaseMul(&c.S)
	fixedAff, isInf := eng.curve.ToAffineOrDefault(fixed, gen)
	api.AssertIsEqual(isInf, 0)
	eng.curve.AssertIsEqualAffine(fixedAff, &c.Want)
	return nil
}

// Both multipliers must agree with the native reference on the same
// scalar.
func TestMultiplierAgreement(t *testing.T) {
	assert := test.NewAssert(t)

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 5
	properties := gopter.NewProperties(params)

	properties.Property("windowed and fixed-base agree with reference", prop.ForAll(
		func(lo, hi uint64) bool {
			s := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 192)
			s.Or(s, new(big.Int).SetUint64(lo))
			s.Mod(s, secpfr.Modulus())

			var want secp256k1.G1Affine
			want.ScalarMultiplicationBase(s)
			witness := &multiplierAgreementCircuit{
				S:    emulated.ValueOf[emulated.Secp256k1Fr](s),
				Want: affineValue(want),
			}
			err := test.IsSolved(&multiplierAgreementCircuit{}, witness, ecc.BN254.ScalarField())
			assert.NoError(err)
			return err == nil
		},
		gen.UInt64(), gen.UInt64(),
	))
	properties.TestingRun(t)
}

func TestFixedBaseTableValues(t *testing.T) {
	fixedBaseOnce.Do(computeFixedBaseLimbs)

	// spot check a handful of table rows against the reference
	for _, tc := range []struct {
		pos int
		val uint64
	}{
		{0, 1}, {0, 255}, {7, 42}, {31, 1}, {31, 128},
	} {
		s := new(big.Int).Lsh(new(big.Int).SetUint64(tc.val), uint(8*tc.pos))
		var want secp256k1.G1Affine
		want.ScalarMultiplicationBase(s)
		wantX := splitLimbs(want.X.BigInt(new(big.Int)))
		wantY := splitLimbs(want.Y.BigInt(new(big.Int)))
		for c := 0; c < 4; c++ {
			require.Equal(t, wantX[c], fixedBaseLimbs[tc.pos][c][tc.val], "x limb %d at pos %d byte %d", c, tc.pos, tc.val)
			require.Equal(t, wantY[c], fixedBaseLimbs[tc.pos][4+c][tc.val], "y limb %d at pos %d byte %d", c, tc.pos, tc.val)
		}
	}
}
