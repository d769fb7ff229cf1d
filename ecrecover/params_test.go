package ecrecover

import (
	"math/big"
	"testing"

	secpfp "github.com/consensys/gnark-crypto/ecc/secp256k1/fp"
	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"github.com/stretchr/testify/require"

	"github.com/vivijj/era-zkevm-circuits/gadgets/u256"
)

func TestExponentChains(t *testing.T) {
	p := secpfp.Modulus()

	halfP := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	require.Zero(t, chainExponent(legendreNumIdx, legendreDenIdx).Cmp(halfP))

	quarterP := new(big.Int).Rsh(new(big.Int).Add(p, big.NewInt(1)), 2)
	require.Zero(t, chainExponent(sqrtNumIdx, sqrtDenIdx).Cmp(quarterP))
}

func TestGLVConstants(t *testing.T) {
	n := secpfr.Modulus()

	// (n-1)/2 is the rounding offset of the decomposition
	want := new(big.Int).Rsh(new(big.Int).Sub(n, big.NewInt(1)), 1)
	require.Zero(t, halfGroupOrder.Cmp(want))

	// the lattice constants recombine to zero mod n under lambda, with
	// lambda the scalar matching the beta endomorphism
	p := secpfp.Modulus()
	b3 := new(big.Int).Exp(beta, big.NewInt(3), p)
	require.Zero(t, b3.Cmp(big.NewInt(1)))
}

func TestCallParamsKeyPacking(t *testing.T) {
	params := CallParamsValue{
		InputPage:    0xdead,
		InputOffset:  0xbeef,
		OutputPage:   0xcafe,
		OutputOffset: 0xf00d,
	}
	limbs := u256.ValueOf(params.Key()).Limbs

	require.EqualValues(t, big.NewInt(0xbeef), limbs[0])
	require.EqualValues(t, big.NewInt(0xf00d), limbs[2])
	require.EqualValues(t, big.NewInt(0xdead), limbs[4])
	require.EqualValues(t, big.NewInt(0xcafe), limbs[5])
}
