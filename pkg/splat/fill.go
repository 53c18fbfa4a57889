package splat

import "github.com/Faultbox/splatview/pkg/math"

// Floats per splat written by the Fill* methods.
const (
	CenterFloats           = 3
	ScaleFloats            = 3
	RotationFloats         = 4
	ColorFloats            = 4
	CenterCovarianceFloats = CenterFloats + CovarianceFloats
)

// FillCenterArray writes every center into dst starting at splat slot
// destOffset. A non-nil transform is applied to each center.
func (b *Buffer) FillCenterArray(dst []float32, destOffset int, transform *math.Mat4) {
	for i := 0; i < b.count; i++ {
		c := b.Center(i)
		if transform != nil {
			c = transform.TransformPoint(c)
		}
		o := (destOffset + i) * CenterFloats
		dst[o], dst[o+1], dst[o+2] = c.X, c.Y, c.Z
	}
}

// FillScaleArray writes every scale into dst starting at splat slot destOffset.
func (b *Buffer) FillScaleArray(dst []float32, destOffset int) {
	for i := 0; i < b.count; i++ {
		s := b.Scale(i)
		o := (destOffset + i) * ScaleFloats
		dst[o], dst[o+1], dst[o+2] = s.X, s.Y, s.Z
	}
}

// FillRotationArray writes every rotation as (w, x, y, z).
func (b *Buffer) FillRotationArray(dst []float32, destOffset int) {
	for i := 0; i < b.count; i++ {
		q := b.Rotation(i)
		o := (destOffset + i) * RotationFloats
		dst[o], dst[o+1], dst[o+2], dst[o+3] = q.W, q.X, q.Y, q.Z
	}
}

// FillColorArray writes every color as RGBA floats in [0, 1].
func (b *Buffer) FillColorArray(dst []float32, destOffset int) {
	for i := 0; i < b.count; i++ {
		c := b.Color(i)
		o := (destOffset + i) * ColorFloats
		for k := 0; k < 4; k++ {
			dst[o+k] = float32(c[k]) / 255
		}
	}
}

// FillCovarianceArray writes every covariance upper triangle. A non-nil
// transform maps each covariance to T Σ Tᵀ.
func (b *Buffer) FillCovarianceArray(dst []float32, destOffset int, transform *math.Mat4) {
	for i := 0; i < b.count; i++ {
		cov := b.Covariance(i)
		if transform != nil {
			cov = TransformCovariance(cov, *transform)
		}
		copy(dst[(destOffset+i)*CovarianceFloats:], cov[:])
	}
}

// FillCenterCovarianceArray writes the interleaved GPU record of every splat:
// center xyz followed by the six covariance terms.
func (b *Buffer) FillCenterCovarianceArray(dst []float32, destOffset int, transform *math.Mat4) {
	for i := 0; i < b.count; i++ {
		c := b.Center(i)
		cov := b.Covariance(i)
		if transform != nil {
			c = transform.TransformPoint(c)
			cov = TransformCovariance(cov, *transform)
		}
		o := (destOffset + i) * CenterCovarianceFloats
		dst[o], dst[o+1], dst[o+2] = c.X, c.Y, c.Z
		copy(dst[o+CenterFloats:], cov[:])
	}
}

// Centers returns all centers packed as xyz triples.
func (b *Buffer) Centers() []float32 {
	out := make([]float32, b.count*CenterFloats)
	b.FillCenterArray(out, 0, nil)
	return out
}
