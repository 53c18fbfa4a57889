package splat

import (
	"cmp"
	"slices"

	"github.com/chewxy/math32"

	"github.com/Faultbox/splatview/pkg/math"
)

// quantize encodes v relative to ref. ok is false when v fell outside the
// representable range and was clamped.
func (b *Buffer) quantize(v, ref float32) (q uint16, ok bool) {
	sr := float32(b.scaleRange)
	f := math32.Floor((v-ref)/b.scaleFactor+0.5) + sr
	switch {
	case f < 0 || math32.IsNaN(f):
		return 0, false
	case f > 2*sr:
		return uint16(2 * b.scaleRange), false
	}
	return uint16(f), true
}

func (b *Buffer) dequantize(q uint16, ref float32) float32 {
	return (float32(q)-float32(b.scaleRange))*b.scaleFactor + ref
}

// BucketCenter returns the reference center of bucket k.
func (b *Buffer) BucketCenter(k int) math.Vec3 {
	if k < 0 || k >= b.bucketCount {
		panic("splat: bucket index out of range")
	}
	off := b.bucketOffset() + k*BytesPerBucket
	return math.Vec3{X: b.f32(off), Y: b.f32(off + 4), Z: b.f32(off + 8)}
}

// SetBucketCenter moves the reference of bucket k. Quantized offsets are not
// rewritten, so member centers shift with the reference.
func (b *Buffer) SetBucketCenter(k int, c math.Vec3) {
	if k < 0 || k >= b.bucketCount {
		panic("splat: bucket index out of range")
	}
	off := b.bucketOffset() + k*BytesPerBucket
	b.putF32(off, c.X)
	b.putF32(off+4, c.Y)
	b.putF32(off+8, c.Z)
	b.covStale = true
}

// CompressStats summarizes a Compress run.
type CompressStats struct {
	Buckets int
	// Clamped counts center components that fell outside their bucket's
	// representable range.
	Clamped int
}

// Compress builds a quantized copy of src. Splats are grouped by the
// BlockSize grid cell their center falls in, keeping source order within a
// cell, and the grouped sequence is cut into buckets of BucketSize. Each
// bucket's reference is the midpoint of its members' bounding box.
func Compress(src *Buffer, opts QuantizeOptions) (*Buffer, CompressStats) {
	opts = opts.withDefaults()
	n := src.Count()
	dst := NewQuantized(n, opts)

	type cell struct{ x, y, z int32 }
	cells := make([]cell, n)
	order := make([]int, n)
	for i := range order {
		c := src.Center(i)
		cells[i] = cell{
			x: int32(math32.Floor(c.X / opts.BlockSize)),
			y: int32(math32.Floor(c.Y / opts.BlockSize)),
			z: int32(math32.Floor(c.Z / opts.BlockSize)),
		}
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ca, cb := cells[a], cells[b]
		if c := cmp.Compare(ca.x, cb.x); c != 0 {
			return c
		}
		if c := cmp.Compare(ca.y, cb.y); c != 0 {
			return c
		}
		return cmp.Compare(ca.z, cb.z)
	})

	stats := CompressStats{Buckets: dst.BucketCount()}
	for k := 0; k < dst.BucketCount(); k++ {
		start := k * opts.BucketSize
		end := min(start+opts.BucketSize, n)
		lo := src.Center(order[start])
		hi := lo
		for _, idx := range order[start+1 : end] {
			c := src.Center(idx)
			lo = lo.Min(c)
			hi = hi.Max(c)
		}
		dst.SetBucketCenter(k, lo.Midpoint(hi))
	}

	for i, idx := range order {
		stats.Clamped += dst.setCenter(i, src.Center(idx))
		dst.SetScale(i, src.Scale(idx))
		dst.SetRotation(i, src.Rotation(idx))
		dst.SetColor(i, src.Color(idx))
	}
	return dst, stats
}
