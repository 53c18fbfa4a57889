package splat

import "github.com/Faultbox/splatview/pkg/math"

// CovarianceFloats is the number of floats stored per splat covariance.
const CovarianceFloats = 6

// ComputeCovariance returns the upper triangle (xx, xy, xz, yy, yz, zz) of
// Σ = (R·S)(R·S)ᵀ for the given scale and rotation.
func ComputeCovariance(scale math.Vec3, rotation math.Quat) [6]float32 {
	m := rotation.Mat3().Mul(math.Mat3Diagonal(scale))
	return m.Mul(m.Transpose()).Upper()
}

// TransformCovariance returns the upper triangle of T Σ Tᵀ where T is the
// linear part of transform.
func TransformCovariance(cov [6]float32, transform math.Mat4) [6]float32 {
	t := transform.Mat3()
	return t.Mul(math.SymmetricFromUpper(cov)).Mul(t.Transpose()).Upper()
}

// BuildCovariances computes and caches the covariance of every splat.
func (b *Buffer) BuildCovariances() {
	if cap(b.covariances) >= b.count*CovarianceFloats {
		b.covariances = b.covariances[:b.count*CovarianceFloats]
	} else {
		b.covariances = make([]float32, b.count*CovarianceFloats)
	}
	for i := 0; i < b.count; i++ {
		cov := ComputeCovariance(b.Scale(i), b.Rotation(i))
		copy(b.covariances[i*CovarianceFloats:], cov[:])
	}
	b.covStale = false
}

// Covariance returns the cached covariance of splat i, rebuilding the cache
// first if scales or rotations changed since the last build.
func (b *Buffer) Covariance(i int) [6]float32 {
	b.checkIndex(i)
	if b.covStale {
		b.BuildCovariances()
	}
	return [6]float32(b.covariances[i*CovarianceFloats:])
}
