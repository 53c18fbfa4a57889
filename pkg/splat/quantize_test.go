package splat

import (
	"bytes"
	"testing"

	"github.com/Faultbox/splatview/pkg/math"
)

func absDiff(a, b float32) float32 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestQuantizedCenterRoundTrip(t *testing.T) {
	opts := QuantizeOptions{BucketSize: 4, BlockSize: 5, ScaleRange: DefaultScaleRange}
	b := NewQuantized(8, opts)
	b.SetBucketCenter(0, math.Vec3{X: 10, Y: -3, Z: 0.5})
	b.SetBucketCenter(1, math.Vec3{X: -20, Y: 4, Z: 100})

	centers := []math.Vec3{
		{X: 10, Y: -3, Z: 0.5},
		{X: 12.4, Y: -5.4, Z: 2.9},
		{X: 7.51, Y: -0.61, Z: -1.7},
		{X: 10.0001, Y: -3.3333, Z: 0.77},
		{X: -20, Y: 4, Z: 100},
		{X: -22.49, Y: 6.49, Z: 97.6},
		{X: -18.1, Y: 3.2, Z: 101.1},
		{X: -19.999, Y: 4.001, Z: 100.0},
	}
	sf := b.ScaleFactor()
	for i, c := range centers {
		b.SetCenter(i, c)
		got := b.Center(i)
		for k, v := range got.Array() {
			if d := absDiff(v, c.Array()[k]); d > sf {
				t.Errorf("center %d axis %d: got %v, want %v (err %v > %v)", i, k, v, c.Array()[k], d, sf)
			}
		}
	}
}

func TestQuantizedCenterClamps(t *testing.T) {
	b := NewQuantized(1, QuantizeOptions{BucketSize: 1, BlockSize: 2})
	if n := b.setCenter(0, math.Vec3{X: 50, Y: -50}); n != 2 {
		t.Errorf("setCenter clamped %d components, want 2", n)
	}
	got := b.Center(0)
	if absDiff(got.X, 1) > b.ScaleFactor() || absDiff(got.Y, -1) > b.ScaleFactor() {
		t.Errorf("clamped center = %v, want (1, -1, 0)", got)
	}
}

func TestQuantizedHalfFloats(t *testing.T) {
	b := NewQuantized(1, DefaultQuantizeOptions())
	b.SetScale(0, math.Vec3{X: 0.5, Y: 0.25, Z: 1.5})
	if got := b.Scale(0); got != (math.Vec3{X: 0.5, Y: 0.25, Z: 1.5}) {
		t.Errorf("Scale(0) = %v", got)
	}
	q := math.Quat{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9}.Normalize()
	b.SetRotation(0, q)
	got := b.Rotation(0)
	if got.Dot(q) < 0.999 {
		t.Errorf("Rotation(0) = %v, want ~%v", got, q)
	}
}

func TestParseQuantized(t *testing.T) {
	b := NewQuantized(5, QuantizeOptions{BucketSize: 2, BlockSize: 4})
	b.SetBucketCenter(2, math.Vec3{X: 1, Y: 1, Z: 1})
	b.SetCenter(4, math.Vec3{X: 1.5, Y: 0.5, Z: 1})

	parsed, err := Parse(bytes.Clone(b.Bytes()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.BucketCount() != 3 || parsed.BucketSize() != 2 || parsed.BlockSize() != 4 {
		t.Fatalf("parsed buckets = %d x %d (block %v)", parsed.BucketCount(), parsed.BucketSize(), parsed.BlockSize())
	}
	if got, want := parsed.Center(4), b.Center(4); got != want {
		t.Errorf("Center(4) = %v, want %v", got, want)
	}
}

func TestCompress(t *testing.T) {
	src := New(5)
	centers := []math.Vec3{
		{X: 12, Y: 0, Z: 0}, // cell (2,0,0)
		{X: 1, Y: 1, Z: 1},  // cell (0,0,0)
		{X: 13, Y: 1, Z: 0}, // cell (2,0,0)
		{X: 2, Y: 2, Z: 2},  // cell (0,0,0)
		{X: 3, Y: 0, Z: 4},  // cell (0,0,0)
	}
	for i, c := range centers {
		src.SetCenter(i, c)
		src.SetColor(i, [4]uint8{uint8(i), 0, 0, 255})
	}

	dst, stats := Compress(src, QuantizeOptions{BucketSize: 3, BlockSize: 5})
	if dst.Level() != Quantized || dst.Count() != 5 {
		t.Fatalf("Compress() level/count = %v/%d", dst.Level(), dst.Count())
	}
	if stats.Buckets != 2 {
		t.Errorf("stats.Buckets = %d, want 2", stats.Buckets)
	}

	// Grouped by cell, stable within a cell.
	wantOrder := []uint8{1, 3, 4, 0, 2}
	for i, want := range wantOrder {
		if got := dst.Color(i)[0]; got != want {
			t.Errorf("slot %d holds source splat %d, want %d", i, got, want)
		}
	}
	if stats.Clamped != 0 {
		t.Errorf("stats.Clamped = %d, want 0", stats.Clamped)
	}
	for i, want := range wantOrder {
		got := dst.Center(i)
		c := centers[want]
		if got.Distance(c) > 2*dst.ScaleFactor() {
			t.Errorf("slot %d center = %v, want %v", i, got, c)
		}
	}
}
