package splat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Faultbox/splatview/pkg/math"
)

// createTestHeader encodes a header the way a foreign writer would.
func createTestHeader(major, level uint8, count, bucketSize, bucketCount uint32, blockSize float32) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(major)
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(level)
	binary.Write(buf, binary.LittleEndian, count)
	binary.Write(buf, binary.LittleEndian, bucketSize)
	binary.Write(buf, binary.LittleEndian, bucketCount)
	binary.Write(buf, binary.LittleEndian, blockSize)
	if level == uint8(Quantized) {
		binary.Write(buf, binary.LittleEndian, uint32(BytesPerBucket))
	} else {
		binary.Write(buf, binary.LittleEndian, uint32(0))
	}
	binary.Write(buf, binary.LittleEndian, uint32(DefaultScaleRange))
	out := make([]byte, HeaderSize)
	copy(out, buf.Bytes())
	return out
}

func TestBytesPerSplat(t *testing.T) {
	if got := BytesPerSplat(Uncompressed); got != 44 {
		t.Errorf("BytesPerSplat(Uncompressed) = %d, want 44", got)
	}
	if got := BytesPerSplat(Quantized); got != 24 {
		t.Errorf("BytesPerSplat(Quantized) = %d, want 24", got)
	}
}

func TestRegionSizeInvariant(t *testing.T) {
	tests := []struct {
		name string
		buf  *Buffer
		want int
	}{
		{"empty", New(0), HeaderSize},
		{"uncompressed", New(10), HeaderSize + 10*44},
		{"quantized one bucket", NewQuantized(10, QuantizeOptions{BucketSize: 16}), HeaderSize + 10*24 + 12},
		{"quantized partial bucket", NewQuantized(33, QuantizeOptions{BucketSize: 16}), HeaderSize + 33*24 + 3*12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.buf.Bytes()); got != tt.want {
				t.Errorf("len(Bytes()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	b := New(3)
	b.SetCenter(1, math.Vec3{X: 1, Y: 2, Z: 3})
	b.SetScale(2, math.Vec3{X: 0.5, Y: 0.25, Z: 2})
	b.SetColor(0, [4]uint8{10, 20, 30, 40})

	parsed, err := Parse(bytes.Clone(b.Bytes()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Count() != 3 || parsed.Level() != Uncompressed {
		t.Fatalf("parsed count/level = %d/%v, want 3/uncompressed", parsed.Count(), parsed.Level())
	}
	if got := parsed.Center(1); got != (math.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("Center(1) = %v", got)
	}
	if got := parsed.Scale(2); got != (math.Vec3{X: 0.5, Y: 0.25, Z: 2}) {
		t.Errorf("Scale(2) = %v", got)
	}
	if got := parsed.Color(0); got != [4]uint8{10, 20, 30, 40} {
		t.Errorf("Color(0) = %v", got)
	}
	if got := parsed.Rotation(2); got != math.QuatIdentity() {
		t.Errorf("Rotation(2) = %v, want identity", got)
	}
}

func TestParse_Errors(t *testing.T) {
	valid := New(2).Bytes()
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", make([]byte, 100), ErrTruncatedData},
		{"bad version", createTestHeader(2, 0, 0, 0, 0, 0), ErrUnsupportedVersion},
		{"bad level", createTestHeader(1, 7, 0, 0, 0, 0), ErrUnknownCompressionLevel},
		{"truncated body", valid[:len(valid)-1], ErrTruncatedData},
		{"trailing bytes", append(bytes.Clone(valid), 0), ErrSizeMismatch},
		{"zero bucket size", createTestHeader(1, 1, 4, 0, 1, 5), ErrInvalidBuckets},
		{"too few buckets", createTestHeader(1, 1, 40, 16, 2, 5), ErrInvalidBuckets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSetRotationNormalizes(t *testing.T) {
	b := New(1)
	b.SetRotation(0, math.Quat{W: 2})
	if got := b.Rotation(0); got != math.QuatIdentity() {
		t.Errorf("Rotation(0) = %v, want identity", got)
	}

	b.SetRotation(0, math.Quat{X: 3, W: 4})
	q := b.Rotation(0)
	if d := q.Length() - 1; d > 1e-6 || d < -1e-6 {
		t.Errorf("stored rotation length = %v, want 1", q.Length())
	}
}

func TestSetScaleClampsNegative(t *testing.T) {
	b := New(1)
	b.SetScale(0, math.Vec3{X: -1, Y: 2, Z: -0.5})
	if got := b.Scale(0); got != (math.Vec3{Y: 2}) {
		t.Errorf("Scale(0) = %v, want (0, 2, 0)", got)
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	b := New(2)
	defer func() {
		if recover() == nil {
			t.Error("Center(2) did not panic")
		}
	}()
	b.Center(2)
}

func TestBounds(t *testing.T) {
	b := New(3)
	b.SetCenter(0, math.Vec3{X: -1, Y: 5, Z: 0})
	b.SetCenter(1, math.Vec3{X: 2, Y: 0, Z: 1})
	b.SetCenter(2, math.Vec3{X: 0, Y: 1, Z: -3})
	lo, hi := b.Bounds()
	if lo != (math.Vec3{X: -1, Y: 0, Z: -3}) || hi != (math.Vec3{X: 2, Y: 5, Z: 1}) {
		t.Errorf("Bounds() = %v, %v", lo, hi)
	}
}
