package game

import "math"

// Vec2 is a 2D vector on the court. Components are kept at fixed precision so
// snapshots compare equal when nothing moved.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// fix rounds to 4 decimal places.
func fix(n float64) float64 {
	if math.IsNaN(n) {
		return 0
	}
	return math.Round(n*10000) / 10000
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{X: fix(x), Y: fix(y)}
}

func (v Vec2) Plus(o Vec2) Vec2 {
	return Vec2{X: fix(v.X + o.X), Y: fix(v.Y + o.Y)}
}

// FlipX mirrors the horizontal component.
func (v Vec2) FlipX() Vec2 {
	return Vec2{X: -v.X, Y: v.Y}
}

// FlipY mirrors the vertical component.
func (v Vec2) FlipY() Vec2 {
	return Vec2{X: v.X, Y: -v.Y}
}
