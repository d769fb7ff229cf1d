// Package weierstrass implements projective point arithmetic over an
// emulated base field for short Weierstrass curves y² = x³ + b (a = 0).
//
// All group operations use the complete formulas of Renes, Costello and
// Batina (eprint 2015/1060, algorithms 8 and 9), so there is no
// data-dependent branching anywhere: the point at infinity, doubling
// through addition and cancellation are all handled by the same
// straight-line computation. This is what lets the scalar multipliers in
// the ecrecover circuit accumulate obliviously selected table entries
// without ever inspecting them.
package weierstrass

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"
)

// AffinePoint is a point in affine coordinates. It cannot represent the
// point at infinity; conversions from projective coordinates return an
// explicit infinity flag together with a caller-chosen placeholder.
type AffinePoint[B emulated.FieldParams] struct {
	X, Y emulated.Element[B]
}

// Point is a point in homogeneous projective coordinates (X : Y : Z).
// The point at infinity is (0 : 1 : 0).
type Point[B emulated.FieldParams] struct {
	X, Y, Z emulated.Element[B]
}

// Curve provides group operations on [Point] and [AffinePoint].
type Curve[B emulated.FieldParams] struct {
	api frontend.API
	fp  *emulated.Field[B]

	b3 *emulated.Element[B] // 3*b, the only curve constant the formulas need
}

// New returns a curve gadget for y² = x³ + b over the emulated field B.
func New[B emulated.FieldParams](api frontend.API, b *big.Int) (*Curve[B], error) {
	fp, err := emulated.NewField[B](api)
	if err != nil {
		return nil, err
	}
	b3 := new(big.Int).Mul(b, big.NewInt(3))
	return &Curve[B]{
		api: api,
		fp:  fp,
		b3:  fp.NewElement(b3),
	}, nil
}

// Field returns the underlying emulated base field.
func (c *Curve[B]) Field() *emulated.Field[B] {
	return c.fp
}

// Zero returns the point at infinity.
func (c *Curve[B]) Zero() *Point[B] {
	return &Point[B]{
		X: *c.fp.Zero(),
		Y: *c.fp.One(),
		Z: *c.fp.Zero(),
	}
}

// FromAffine lifts an affine point to projective coordinates.
func (c *Curve[B]) FromAffine(p *AffinePoint[B]) *Point[B] {
	return &Point[B]{X: p.X, Y: p.Y, Z: *c.fp.One()}
}

// AddMixed returns p + q using the complete mixed addition formulas. The
// projective operand may be any point including infinity; the affine
// operand is assumed to be a finite curve point.
func (c *Curve[B]) AddMixed(p *Point[B], q *AffinePoint[B]) *Point[B] {
	f := c.fp
	x1, y1, z1 := &p.X, &p.Y, &p.Z
	x2, y2 := &q.X, &q.Y

	t0 := f.Mul(x1, x2)
	t1 := f.Mul(y1, y2)
	t3 := f.Add(x2, y2)
	t4 := f.Add(x1, y1)
	t3 = f.Mul(t3, t4)
	t4 = f.Add(t0, t1)
	t3 = f.Sub(t3, t4) // x1*y2 + x2*y1
	t4 = f.Mul(y2, z1)
	t4 = f.Add(t4, y1) // y1 + y2*z1
	y3 := f.Mul(x2, z1)
	y3 = f.Add(y3, x1) // x1 + x2*z1
	x3 := f.Add(t0, t0)
	t0 = f.Add(x3, t0) // 3*x1*x2
	t2 := f.Mul(c.b3, z1)
	z3 := f.Add(t1, t2) // y1*y2 + 3b*z1
	t1 = f.Sub(t1, t2)  // y1*y2 - 3b*z1
	y3 = f.Mul(c.b3, y3)
	x3 = f.Mul(t4, y3)
	t2 = f.Mul(t3, t1)
	x3 = f.Sub(t2, x3)
	y3 = f.Mul(y3, t0)
	t1 = f.Mul(t1, z3)
	y3 = f.Add(t1, y3)
	t0 = f.Mul(t0, t3)
	z3 = f.Mul(z3, t4)
	z3 = f.Add(z3, t0)

	return &Point[B]{X: *x3, Y: *y3, Z: *z3}
}

// Double returns 2p using the exception-free doubling formulas.
func (c *Curve[B]) Double(p *Point[B]) *Point[B] {
	f := c.fp
	x, y, z := &p.X, &p.Y, &p.Z

	t0 := f.Mul(y, y)
	z3 := f.Add(t0, t0)
	z3 = f.Add(z3, z3)
	z3 = f.Add(z3, z3) // 8*y^2
	t1 := f.Mul(y, z)
	t2 := f.Mul(z, z)
	t2 = f.Mul(c.b3, t2) // 3b*z^2
	x3 := f.Mul(t2, z3)
	y3 := f.Add(t0, t2)
	z3 = f.Mul(t1, z3)
	t1 = f.Add(t2, t2)
	t2 = f.Add(t1, t2) // 9b*z^2
	t0 = f.Sub(t0, t2) // y^2 - 9b*z^2
	y3 = f.Mul(t0, y3)
	y3 = f.Add(x3, y3)
	t1 = f.Mul(x, y)
	x3 = f.Mul(t0, t1)
	x3 = f.Add(x3, x3)

	return &Point[B]{X: *x3, Y: *y3, Z: *z3}
}

// Select returns a when cond is 1 and b otherwise, coordinate-wise.
func (c *Curve[B]) Select(cond frontend.Variable, a, b *Point[B]) *Point[B] {
	return &Point[B]{
		X: *c.fp.Select(cond, &a.X, &b.X),
		Y: *c.fp.Select(cond, &a.Y, &b.Y),
		Z: *c.fp.Select(cond, &a.Z, &b.Z),
	}
}

// SelectAffine returns a when cond is 1 and b otherwise.
func (c *Curve[B]) SelectAffine(cond frontend.Variable, a, b *AffinePoint[B]) *AffinePoint[B] {
	return &AffinePoint[B]{
		X: *c.fp.Select(cond, &a.X, &b.X),
		Y: *c.fp.Select(cond, &a.Y, &b.Y),
	}
}

// NegAffine returns (x, -y).
func (c *Curve[B]) NegAffine(p *AffinePoint[B]) *AffinePoint[B] {
	return &AffinePoint[B]{X: p.X, Y: *c.fp.Neg(&p.Y)}
}

// ToAffineOrDefault converts p to affine coordinates. When p is the
// point at infinity the returned point is def and the returned flag is
// 1. The division is always well defined: Z is swapped for 1 under the
// infinity flag before inversion.
func (c *Curve[B]) ToAffineOrDefault(p *Point[B], def *AffinePoint[B]) (*AffinePoint[B], frontend.Variable) {
	f := c.fp
	isInf := f.IsZero(&p.Z)
	zSafe := f.Select(isInf, f.One(), &p.Z)
	zInv := f.Inverse(zSafe)
	x := f.Mul(&p.X, zInv)
	y := f.Mul(&p.Y, zInv)
	res := &AffinePoint[B]{
		X: *f.Select(isInf, &def.X, x),
		Y: *f.Select(isInf, &def.Y, y),
	}
	return res, isInf
}

// AssertIsEqualAffine enforces equality of two affine points.
func (c *Curve[B]) AssertIsEqualAffine(a, b *AffinePoint[B]) {
	c.fp.AssertIsEqual(&a.X, &b.X)
	c.fp.AssertIsEqual(&a.Y, &b.Y)
}
