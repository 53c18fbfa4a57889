package math

import (
	"math"
	"testing"
)

func TestQuatNormalize(t *testing.T) {
	tests := []struct {
		name string
		q    Quat
		want Quat
	}{
		{"already unit", QuatIdentity(), QuatIdentity()},
		{"scaled", Quat{W: 4}, QuatIdentity()},
		{"zero", Quat{}, QuatIdentity()},
		{"nan", Quat{X: float32(math.NaN())}, QuatIdentity()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}

	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	if abs(n.Length()-1) > 1e-5 {
		t.Errorf("Normalize().Length() = %v, want 1", n.Length())
	}
}

func TestQuatMat3RotatesAxis(t *testing.T) {
	// 90 degrees about Y maps +X to -Z.
	q := QuatFromAxisAngle(Vec3{Y: 1}, float32(math.Pi/2))
	got := q.Mat3().MulVec3(Vec3{X: 1})
	want := Vec3{Z: -1}
	if got.Distance(want) > 1e-5 {
		t.Errorf("rotated = %v, want %v", got, want)
	}
}

func TestQuatMat3Orthonormal(t *testing.T) {
	q := Quat{X: 0.3, Y: -0.2, Z: 0.7, W: 0.5}
	r := q.Mat3()
	p := r.Mul(r.Transpose())
	id := Mat3Identity()
	for i := range p {
		if abs(p[i]-id[i]) > 1e-5 {
			t.Fatalf("R*Rᵀ[%d] = %v, want %v", i, p[i], id[i])
		}
	}
}

func TestQuatMulIdentity(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{X: 1}, 0.4)
	if got := q.Mul(QuatIdentity()); got != q {
		t.Errorf("q * identity = %v, want %v", got, q)
	}
}
