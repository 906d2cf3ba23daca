package geom

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestVec2_Arithmetic(t *testing.T) {
	a := Vec2{X: 3, Y: 4}
	b := Vec2{X: 1, Y: -2}

	if got := a.Add(b); got != (Vec2{X: 4, Y: 2}) {
		t.Errorf("Add() = %v, want {4 2}", got)
	}
	if got := a.Sub(b); got != (Vec2{X: 2, Y: 6}) {
		t.Errorf("Sub() = %v, want {2 6}", got)
	}
	if got := a.Scale(2); got != (Vec2{X: 6, Y: 8}) {
		t.Errorf("Scale() = %v, want {6 8}", got)
	}
	if got := a.Len(); math.Abs(got-5) > epsilon {
		t.Errorf("Len() = %f, want 5", got)
	}
	if got := a.Dist(Vec2{}); math.Abs(got-5) > epsilon {
		t.Errorf("Dist() = %f, want 5", got)
	}
	if got := a.Lerp(Vec2{X: 5, Y: 8}, 0.5); got != (Vec2{X: 4, Y: 6}) {
		t.Errorf("Lerp() = %v, want {4 6}", got)
	}
}

func TestVec2_ScreenAngle(t *testing.T) {
	tests := []struct {
		name string
		v    Vec2
		want float64
	}{
		{name: "right", v: Vec2{X: 1, Y: 0}, want: 0},
		{name: "up the screen", v: Vec2{X: 0, Y: -1}, want: math.Pi / 2},
		{name: "down the screen", v: Vec2{X: 0, Y: 1}, want: -math.Pi / 2},
		{name: "up and right", v: Vec2{X: 1, Y: -1}, want: math.Pi / 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.ScreenAngle(); math.Abs(got-tt.want) > epsilon {
				t.Errorf("ScreenAngle() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Error("1.5 should be finite")
	}
	if IsFinite(math.NaN()) {
		t.Error("NaN should not be finite")
	}
	if IsFinite(math.Inf(-1)) {
		t.Error("-Inf should not be finite")
	}
	if (Vec2{X: 1, Y: math.Inf(1)}).IsFinite() {
		t.Error("vector with infinite component should not be finite")
	}
}
