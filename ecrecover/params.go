// Package ecrecover implements the zkEVM ecrecover precompile circuit:
// a bounded, queue-fed call loop that pops precompile requests, reads
// (hash, v, r, s) from the memory log, recovers the signer address of a
// secp256k1 ECDSA signature fully in-circuit and writes back a success
// word and the recovered address.
//
// Every data-dependent choice inside the circuit is an arithmetic
// selection; there is no control flow on witness values anywhere.
package ecrecover

import (
	"fmt"
	"math/big"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/secp256k1"
)

// MemoryReadsPerCall is the number of ordered memory reads a single
// precompile call performs: hash, recovery id, r, s.
const MemoryReadsPerCall = 4

// MemoryWritesPerCall is the number of ordered memory writes a single
// precompile call performs: success word and recovered value.
const MemoryWritesPerCall = 2

// FormalAddress is the precompile address a request must route to.
const FormalAddress = 1

// PrecompileAuxByte tags log queue entries that target a precompile.
const PrecompileAuxByte = 3

const (
	curveB = 7

	// Substitute triple used when t = x³ + b is zero or a non-residue:
	// x = 9 gives t = 16, a quadratic residue with root 4. Letting x be
	// zero would not do, t = 7 is again a non-residue.
	validXSubstitute = 9
	validYSubstitute = 4
	validTSubstitute = validXSubstitute + curveB

	windowWidth   = 4
	nbWindows     = 33
	tableSize     = (1 << windowWidth) - 1
	nbSquarings   = 256
	scalarMaxBits = nbWindows * windowWidth // decomposition scalars fit 132 bits
)

// beta is a primitive cube root of unity in the base field: the GLV
// endomorphism maps (x, y) to (beta*x, y) and multiplies scalars by
// lambda.
var beta, _ = new(big.Int).SetString("55594575648329892869085402983802832744385952214688224221778511981742606582254", 10)

// GLV lattice constants, algorithm 3.74 of Hankerson–Menezes–Vanstone.
// b2 == a1 for this curve.
var (
	glvA1, _ = new(big.Int).SetString("3086d221a7d46bcde86c90e49284eb15", 16)
	glvB1, _ = new(big.Int).SetString("e4437ed6010e88286f547fa90abfe4c3", 16)
	glvA2, _ = new(big.Int).SetString("114ca50f7a8e2f3f657c1108d9d44cfd8", 16)
	glvB2    = glvA1

	// (n-1)/2, the fixed-point rounding offset for the 512-bit
	// decomposition multiplies.
	halfGroupOrder, _ = new(big.Int).SetString("7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0", 16)
)

// Exponentiation chains over the shared squaring ladder t^(2^i).
//
// For p = 2^256 - 2^32 - 2^9 - 2^8 - 2^7 - 2^6 - 2^4 - 1:
//
//	(p-1)/2 = 2^255 - (2^31 + 2^8 + 2^7 + 2^6 + 2^5 + 2^3 + 2^0)
//	(p+1)/4 = 2^254 - (2^30 + 2^7 + 2^6 + 2^5 + 2^4 + 2^2)
//
// so the Legendre symbol is t^(2^255) divided by the product of ladder
// entries at the first index set, and the square-root candidate is
// t^(2^254) divided by the product at the second. The sets are fixed
// curve constants; init verifies them against the prime bit-for-bit.
var (
	legendreNumIdx  = 255
	legendreDenIdx  = []int{0, 3, 5, 6, 7, 8, 31}
	sqrtNumIdx      = 254
	sqrtDenIdx      = []int{2, 4, 5, 6, 7, 30}
	maxDecompScalar = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), scalarMaxBits), big.NewInt(1))
)

func chainExponent(numIdx int, denIdx []int) *big.Int {
	e := new(big.Int).Lsh(big.NewInt(1), uint(numIdx))
	den := bitset.New(nbSquarings)
	for _, i := range denIdx {
		den.Set(uint(i))
	}
	for i, ok := den.NextSet(0); ok; i, ok = den.NextSet(i + 1) {
		e.Sub(e, new(big.Int).Lsh(big.NewInt(1), uint(i)))
	}
	return e
}

func init() {
	p := ecc.SECP256K1.BaseField()

	want := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	if chainExponent(legendreNumIdx, legendreDenIdx).Cmp(want) != 0 {
		panic("ecrecover: legendre exponent chain does not match (p-1)/2")
	}
	want = new(big.Int).Rsh(new(big.Int).Add(p, big.NewInt(1)), 2)
	if chainExponent(sqrtNumIdx, sqrtDenIdx).Cmp(want) != 0 {
		panic("ecrecover: square root exponent chain does not match (p+1)/4")
	}

	// beta must be a non-trivial cube root of unity
	b3 := new(big.Int).Exp(beta, big.NewInt(3), p)
	if b3.Cmp(big.NewInt(1)) != 0 || beta.Cmp(big.NewInt(1)) == 0 {
		panic("ecrecover: beta is not a cube root of unity")
	}
}

// generator returns the secp256k1 base point.
func generator() *secp256k1.G1Affine {
	_, g := secp256k1.Generators()
	return &g
}

// Config parametrizes one circuit instance.
type Config struct {
	// Limit is the cycle budget: the maximum number of precompile calls
	// processed by one instance. Must fit an unsigned 32-bit counter.
	Limit int

	// AllowZeroMessage controls whether an all-zero message digest is
	// accepted without raising an exception flag.
	AllowZeroMessage bool
}

// DefaultConfig is the production parametrization: zero digests are
// legal.
func DefaultConfig(limit int) Config {
	return Config{Limit: limit, AllowZeroMessage: true}
}

func (cfg Config) validate() error {
	if cfg.Limit <= 0 {
		return fmt.Errorf("cycle limit must be positive, got %d", cfg.Limit)
	}
	if uint64(cfg.Limit) > uint64(^uint32(0)) {
		return fmt.Errorf("cycle limit %d exceeds 32-bit counter", cfg.Limit)
	}
	return nil
}
