package geom

import (
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Coord is a coordinate or distance in micrometers.
type Coord = int64

// Point is a location in the plane, in micrometers.
type Point struct {
	X, Y Coord
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Div returns p scaled down by n, rounding toward zero.
func (p Point) Div(n Coord) Point {
	return Point{p.X / n, p.Y / n}
}

// Mul returns p scaled up by n.
func (p Point) Mul(n Coord) Point {
	return Point{p.X * n, p.Y * n}
}

// Dot returns the dot product p · q.
func Dot(p, q Point) Coord {
	return p.X*q.X + p.Y*q.Y
}

// Cross returns the 2D cross product p × q. Positive when q points
// counter-clockwise of p.
func Cross(p, q Point) Coord {
	return p.X*q.Y - p.Y*q.X
}

// Turn90CCW returns p rotated a quarter turn counter-clockwise.
func Turn90CCW(p Point) Point {
	return Point{-p.Y, p.X}
}

// Size2 returns the squared length of the vector p.
func (p Point) Size2() Coord {
	return p.X*p.X + p.Y*p.Y
}

// Size returns the length of the vector p, rounded to the nearest
// micrometer.
func (p Point) Size() Coord {
	return Coord(math.Round(math.Sqrt(float64(p.Size2()))))
}

// ShorterThan reports whether the vector p is shorter than length.
// Cheap component checks avoid the multiplication in the common case.
func (p Point) ShorterThan(length Coord) bool {
	x, y := p.X, p.Y
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	if x > length || y > length {
		return false
	}
	return x*x+y*y < length*length
}

// Resized returns the vector p scaled to the given length. A zero vector
// stays zero.
func (p Point) Resized(length Coord) Point {
	size := p.Size()
	if size == 0 {
		return Point{}
	}
	return Point{p.X * length / size, p.Y * length / size}
}

// F returns p as a float64 vector for numeric kernels.
func (p Point) F() v2.Vec {
	return v2.Vec{X: float64(p.X), Y: float64(p.Y)}
}

// FromF rounds a float64 vector back to micrometer coordinates.
func FromF(v v2.Vec) Point {
	return Point{Coord(math.Round(v.X)), Coord(math.Round(v.Y))}
}
