package ecrecover

import (
	"math/big"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc/secp256k1"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/logger"
	"github.com/consensys/gnark/std/lookup/logderivlookup"
	"github.com/consensys/gnark/std/math/bits"
	"github.com/consensys/gnark/std/math/emulated"
	"golang.org/x/sync/errgroup"

	"github.com/vivijj/era-zkevm-circuits/gadgets/weierstrass"
)

const (
	fixedBasePositions = 32 // one per byte of the scalar
	fixedBaseEntries   = 256
	fixedBaseColumns   = 8 // four x limbs, four y limbs
)

// fixedBaseLimbs[pos][col][b] holds one 64-bit limb of b * 2^(8*pos) * G
// in affine form. Columns 0..3 are the x limbs, 4..7 the y limbs, both
// little endian. Row 0 is all zeros and never consumed.
var (
	fixedBaseLimbs [fixedBasePositions][fixedBaseColumns][fixedBaseEntries]uint64
	fixedBaseOnce  sync.Once
)

func splitLimbs(v *big.Int) [4]uint64 {
	var out [4]uint64
	mask := new(big.Int).SetUint64(^uint64(0))
	t := new(big.Int).Set(v)
	for i := 0; i < 4; i++ {
		out[i] = new(big.Int).And(t, mask).Uint64()
		t.Rsh(t, 64)
	}
	return out
}

func computeFixedBaseLimbs() {
	log := logger.Logger()
	start := time.Now()

	var g errgroup.Group
	for pos := 0; pos < fixedBasePositions; pos++ {
		pos := pos
		g.Go(func() error {
			var base secp256k1.G1Jac
			base.FromAffine(generator())
			for i := 0; i < 8*pos; i++ {
				base.DoubleAssign()
			}
			var acc secp256k1.G1Jac
			var aff secp256k1.G1Affine
			x, y := new(big.Int), new(big.Int)
			for b := 1; b < fixedBaseEntries; b++ {
				acc.AddAssign(&base)
				aff.FromJacobian(&acc)
				xl := splitLimbs(aff.X.BigInt(x))
				yl := splitLimbs(aff.Y.BigInt(y))
				for c := 0; c < 4; c++ {
					fixedBaseLimbs[pos][c][b] = xl[c]
					fixedBaseLimbs[pos][4+c][b] = yl[c]
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().Dur("took", time.Since(start)).Msg("computed fixed-base generator tables")
}

// fixedBaseTables exposes the precomputed generator multiples as lookup
// tables, one per affine coordinate limb per byte position.
type fixedBaseTables struct {
	cols [fixedBasePositions][fixedBaseColumns]logderivlookup.Table
}

func newFixedBaseTables(api frontend.API) *fixedBaseTables {
	fixedBaseOnce.Do(computeFixedBaseLimbs)
	t := &fixedBaseTables{}
	for pos := 0; pos < fixedBasePositions; pos++ {
		for c := 0; c < fixedBaseColumns; c++ {
			tbl := logderivlookup.New(api)
			for b := 0; b < fixedBaseEntries; b++ {
				tbl.Insert(fixedBaseLimbs[pos][c][b])
			}
			t.cols[pos][c] = tbl
		}
	}
	return t
}

// fixedBaseMul computes s*G by adding one looked-up table point per
// scalar byte. Bytes equal to zero skip their addition; a zero scalar
// yields the point at infinity.
func (e *engine) fixedBaseMul(s *emulated.Element[emulated.Secp256k1Fr]) *weierstrass.Point[emulated.Secp256k1Fp] {
	sr := e.fr.ReduceStrict(s)
	isZero := e.fr.IsZero(sr)
	sBits := e.fr.ToBits(sr)

	acc := e.curve.Zero()
	for pos := fixedBasePositions - 1; pos >= 0; pos-- {
		byteVal := bits.FromBinary(e.api, sBits[8*pos:8*pos+8])

		var limbs [fixedBaseColumns]frontend.Variable
		for c := 0; c < fixedBaseColumns; c++ {
			limbs[c] = e.tables.cols[pos][c].Lookup(byteVal)[0]
		}
		entry := &weierstrass.AffinePoint[emulated.Secp256k1Fp]{
			X: *e.fp.NewElement(limbs[:4]),
			Y: *e.fp.NewElement(limbs[4:]),
		}

		added := e.curve.AddMixed(acc, entry)
		acc = e.curve.Select(e.api.IsZero(byteVal), acc, added)
	}
	return e.curve.Select(isZero, e.curve.Zero(), acc)
}
