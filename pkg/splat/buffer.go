// Package splat implements the Gaussian splat buffer: a self-describing binary
// region holding per-splat centers, scales, colors and rotations at one of two
// compression levels.
package splat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/x448/float16"

	"github.com/Faultbox/splatview/pkg/math"
)

// Buffer format constants.
const (
	HeaderSize     = 1024
	VersionMajor   = 1
	VersionMinor   = 0
	BytesPerBucket = 12

	DefaultBucketSize = 256
	DefaultBlockSize  = 5.0
	DefaultScaleRange = 32767
)

// Errors returned when decoding a buffer.
var (
	ErrTruncatedData           = errors.New("splat: truncated data")
	ErrUnsupportedVersion      = errors.New("splat: unsupported version")
	ErrUnknownCompressionLevel = errors.New("splat: unknown compression level")
	ErrSizeMismatch            = errors.New("splat: region size does not match header")
	ErrInvalidBuckets          = errors.New("splat: invalid bucket table")
)

// CompressionLevel selects the per-component storage widths.
type CompressionLevel uint8

const (
	// Uncompressed stores centers, scales and rotations as float32.
	Uncompressed CompressionLevel = 0
	// Quantized stores centers as 16-bit bucket-relative offsets and
	// scales and rotations as half floats.
	Quantized CompressionLevel = 1
)

func (l CompressionLevel) String() string {
	switch l {
	case Uncompressed:
		return "uncompressed"
	case Quantized:
		return "quantized"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

type componentWidths struct {
	center, scale, color, rotation int
}

func (w componentWidths) total() int {
	return w.center + w.scale + w.color + w.rotation
}

var levelWidths = map[CompressionLevel]componentWidths{
	Uncompressed: {center: 12, scale: 12, color: 4, rotation: 16},
	Quantized:    {center: 6, scale: 6, color: 4, rotation: 8},
}

// BytesPerSplat returns the body size of one splat at the given level.
func BytesPerSplat(level CompressionLevel) int {
	return levelWidths[level].total()
}

// header is the fixed prefix of a buffer, packed little-endian.
type header struct {
	VersionMajor   uint8
	VersionMinor   uint8
	Reserved       uint8
	Level          uint8
	Count          uint32
	BucketSize     uint32
	BucketCount    uint32
	BlockSize      float32
	BytesPerBucket uint32
	ScaleRange     uint32
}

// QuantizeOptions configures a quantized buffer.
type QuantizeOptions struct {
	BucketSize int
	BlockSize  float32
	ScaleRange int
}

// DefaultQuantizeOptions returns the standard bucket parameters.
func DefaultQuantizeOptions() QuantizeOptions {
	return QuantizeOptions{
		BucketSize: DefaultBucketSize,
		BlockSize:  DefaultBlockSize,
		ScaleRange: DefaultScaleRange,
	}
}

func (o QuantizeOptions) withDefaults() QuantizeOptions {
	def := DefaultQuantizeOptions()
	if o.BucketSize <= 0 {
		o.BucketSize = def.BucketSize
	}
	if o.BlockSize <= 0 {
		o.BlockSize = def.BlockSize
	}
	if o.ScaleRange <= 0 || o.ScaleRange > DefaultScaleRange {
		o.ScaleRange = def.ScaleRange
	}
	return o
}

// Buffer is a splat buffer. All accessors read and write the underlying byte
// region; the region always satisfies
// len == HeaderSize + count*BytesPerSplat(level) + bucketCount*BytesPerBucket.
type Buffer struct {
	data  []byte
	level CompressionLevel
	count int

	bucketSize  int
	bucketCount int
	blockSize   float32
	scaleRange  int
	scaleFactor float32

	widths componentWidths

	covariances []float32
	covStale    bool
}

// New allocates a zeroed uncompressed buffer for count splats.
func New(count int) *Buffer {
	if count < 0 {
		panic("splat: negative count")
	}
	b := &Buffer{level: Uncompressed, count: count, widths: levelWidths[Uncompressed], covStale: true}
	b.data = make([]byte, b.expectedSize())
	b.writeHeader()
	for i := 0; i < count; i++ {
		b.SetRotation(i, math.QuatIdentity())
	}
	return b
}

// NewQuantized allocates a zeroed quantized buffer for count splats with
// ceil(count/BucketSize) buckets centered at the origin.
func NewQuantized(count int, opts QuantizeOptions) *Buffer {
	if count < 0 {
		panic("splat: negative count")
	}
	opts = opts.withDefaults()
	b := &Buffer{
		level:      Quantized,
		count:      count,
		widths:     levelWidths[Quantized],
		bucketSize: opts.BucketSize,
		blockSize:  opts.BlockSize,
		scaleRange: opts.ScaleRange,
		covStale:   true,
	}
	b.bucketCount = (count + b.bucketSize - 1) / b.bucketSize
	b.scaleFactor = (b.blockSize / 2) / float32(b.scaleRange)
	b.data = make([]byte, b.expectedSize())
	b.writeHeader()
	for i := 0; i < count; i++ {
		b.SetRotation(i, math.QuatIdentity())
		b.SetCenter(i, math.Vec3{})
	}
	return b
}

// Parse wraps an encoded region. The buffer takes ownership of data.
func Parse(data []byte) (*Buffer, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedData, HeaderSize, len(data))
	}

	var h header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrTruncatedData, err)
	}
	if h.VersionMajor != VersionMajor {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, h.VersionMajor, h.VersionMinor)
	}
	level := CompressionLevel(h.Level)
	widths, ok := levelWidths[level]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompressionLevel, h.Level)
	}

	b := &Buffer{
		data:        data,
		level:       level,
		count:       int(h.Count),
		widths:      widths,
		bucketSize:  int(h.BucketSize),
		bucketCount: int(h.BucketCount),
		blockSize:   h.BlockSize,
		scaleRange:  int(h.ScaleRange),
		covStale:    true,
	}

	if level == Quantized {
		switch {
		case b.bucketSize <= 0:
			return nil, fmt.Errorf("%w: bucket size %d", ErrInvalidBuckets, b.bucketSize)
		case b.bucketCount*b.bucketSize < b.count:
			return nil, fmt.Errorf("%w: %d buckets of %d cannot hold %d splats", ErrInvalidBuckets, b.bucketCount, b.bucketSize, b.count)
		case h.BytesPerBucket != BytesPerBucket:
			return nil, fmt.Errorf("%w: %d bytes per bucket", ErrInvalidBuckets, h.BytesPerBucket)
		case b.scaleRange <= 0 || b.scaleRange > DefaultScaleRange:
			return nil, fmt.Errorf("%w: scale range %d", ErrInvalidBuckets, b.scaleRange)
		case !(b.blockSize > 0):
			return nil, fmt.Errorf("%w: block size %v", ErrInvalidBuckets, b.blockSize)
		}
		b.scaleFactor = (b.blockSize / 2) / float32(b.scaleRange)
	} else {
		b.bucketCount = 0
	}

	want := b.expectedSize()
	if len(data) < want {
		return nil, fmt.Errorf("%w: have %d bytes, header describes %d", ErrTruncatedData, len(data), want)
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: have %d bytes, header describes %d", ErrSizeMismatch, len(data), want)
	}
	return b, nil
}

func (b *Buffer) expectedSize() int {
	return HeaderSize + b.count*b.widths.total() + b.bucketCount*BytesPerBucket
}

func (b *Buffer) writeHeader() {
	h := header{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		Level:        uint8(b.level),
		Count:        uint32(b.count),
		BucketSize:   uint32(b.bucketSize),
		BucketCount:  uint32(b.bucketCount),
		BlockSize:    b.blockSize,
		ScaleRange:   uint32(b.scaleRange),
	}
	if b.level == Quantized {
		h.BytesPerBucket = BytesPerBucket
	}
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, h)
	clear(b.data[:HeaderSize])
	copy(b.data, buf.Bytes())
}

// Bytes returns the encoded region. It aliases the buffer's storage.
func (b *Buffer) Bytes() []byte { return b.data }

// Count returns the number of splats.
func (b *Buffer) Count() int { return b.count }

// Level returns the compression level.
func (b *Buffer) Level() CompressionLevel { return b.level }

// BucketSize returns the number of splats per bucket (quantized only).
func (b *Buffer) BucketSize() int { return b.bucketSize }

// BucketCount returns the number of buckets (quantized only).
func (b *Buffer) BucketCount() int { return b.bucketCount }

// BlockSize returns the edge length a bucket's centers may span.
func (b *Buffer) BlockSize() float32 { return b.blockSize }

// ScaleFactor returns the world-space size of one quantized center step.
func (b *Buffer) ScaleFactor() float32 { return b.scaleFactor }

func (b *Buffer) centerOffset() int   { return HeaderSize }
func (b *Buffer) scaleOffset() int    { return b.centerOffset() + b.count*b.widths.center }
func (b *Buffer) colorOffset() int    { return b.scaleOffset() + b.count*b.widths.scale }
func (b *Buffer) rotationOffset() int { return b.colorOffset() + b.count*b.widths.color }
func (b *Buffer) bucketOffset() int   { return b.rotationOffset() + b.count*b.widths.rotation }

func (b *Buffer) checkIndex(i int) {
	if i < 0 || i >= b.count {
		panic(fmt.Sprintf("splat: index %d out of range [0, %d)", i, b.count))
	}
}

func (b *Buffer) f32(off int) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b.data[off:]))
}

func (b *Buffer) putF32(off int, v float32) {
	binary.LittleEndian.PutUint32(b.data[off:], gomath.Float32bits(v))
}

func (b *Buffer) f16(off int) float32 {
	return float16.Frombits(binary.LittleEndian.Uint16(b.data[off:])).Float32()
}

func (b *Buffer) putF16(off int, v float32) {
	binary.LittleEndian.PutUint16(b.data[off:], float16.Fromfloat32(v).Bits())
}

// Center returns the world-space center of splat i.
func (b *Buffer) Center(i int) math.Vec3 {
	b.checkIndex(i)
	off := b.centerOffset() + i*b.widths.center
	if b.level == Uncompressed {
		return math.Vec3{X: b.f32(off), Y: b.f32(off + 4), Z: b.f32(off + 8)}
	}
	ref := b.BucketCenter(i / b.bucketSize)
	return math.Vec3{
		X: b.dequantize(binary.LittleEndian.Uint16(b.data[off:]), ref.X),
		Y: b.dequantize(binary.LittleEndian.Uint16(b.data[off+2:]), ref.Y),
		Z: b.dequantize(binary.LittleEndian.Uint16(b.data[off+4:]), ref.Z),
	}
}

// SetCenter stores the center of splat i. Quantized centers are clamped to
// the range of the splat's bucket.
func (b *Buffer) SetCenter(i int, c math.Vec3) {
	b.setCenter(i, c)
}

// setCenter reports how many components were clamped.
func (b *Buffer) setCenter(i int, c math.Vec3) int {
	b.checkIndex(i)
	off := b.centerOffset() + i*b.widths.center
	if b.level == Uncompressed {
		b.putF32(off, c.X)
		b.putF32(off+4, c.Y)
		b.putF32(off+8, c.Z)
		return 0
	}
	ref := b.BucketCenter(i / b.bucketSize).Array()
	clamped := 0
	for k, v := range c.Array() {
		q, ok := b.quantize(v, ref[k])
		if !ok {
			clamped++
		}
		binary.LittleEndian.PutUint16(b.data[off+2*k:], q)
	}
	return clamped
}

// Scale returns the per-axis scale of splat i.
func (b *Buffer) Scale(i int) math.Vec3 {
	b.checkIndex(i)
	off := b.scaleOffset() + i*b.widths.scale
	if b.level == Uncompressed {
		return math.Vec3{X: b.f32(off), Y: b.f32(off + 4), Z: b.f32(off + 8)}
	}
	return math.Vec3{X: b.f16(off), Y: b.f16(off + 2), Z: b.f16(off + 4)}
}

// SetScale stores the scale of splat i. Negative components are stored as 0.
func (b *Buffer) SetScale(i int, s math.Vec3) {
	b.checkIndex(i)
	s = s.Max(math.Vec3{})
	off := b.scaleOffset() + i*b.widths.scale
	if b.level == Uncompressed {
		b.putF32(off, s.X)
		b.putF32(off+4, s.Y)
		b.putF32(off+8, s.Z)
	} else {
		b.putF16(off, s.X)
		b.putF16(off+2, s.Y)
		b.putF16(off+4, s.Z)
	}
	b.covStale = true
}

// Rotation returns the orientation of splat i.
func (b *Buffer) Rotation(i int) math.Quat {
	b.checkIndex(i)
	off := b.rotationOffset() + i*b.widths.rotation
	if b.level == Uncompressed {
		return math.Quat{W: b.f32(off), X: b.f32(off + 4), Y: b.f32(off + 8), Z: b.f32(off + 12)}
	}
	return math.Quat{W: b.f16(off), X: b.f16(off + 2), Y: b.f16(off + 4), Z: b.f16(off + 6)}
}

// SetRotation normalizes q and stores it for splat i in (w, x, y, z) order.
func (b *Buffer) SetRotation(i int, q math.Quat) {
	b.checkIndex(i)
	q = q.Normalize()
	off := b.rotationOffset() + i*b.widths.rotation
	if b.level == Uncompressed {
		b.putF32(off, q.W)
		b.putF32(off+4, q.X)
		b.putF32(off+8, q.Y)
		b.putF32(off+12, q.Z)
	} else {
		b.putF16(off, q.W)
		b.putF16(off+2, q.X)
		b.putF16(off+4, q.Y)
		b.putF16(off+6, q.Z)
	}
	b.covStale = true
}

// Color returns the RGBA color of splat i.
func (b *Buffer) Color(i int) [4]uint8 {
	b.checkIndex(i)
	off := b.colorOffset() + i*b.widths.color
	return [4]uint8(b.data[off : off+4])
}

// SetColor stores the RGBA color of splat i.
func (b *Buffer) SetColor(i int, c [4]uint8) {
	b.checkIndex(i)
	off := b.colorOffset() + i*b.widths.color
	copy(b.data[off:off+4], c[:])
}

// Alpha returns the opacity byte of splat i.
func (b *Buffer) Alpha(i int) uint8 {
	b.checkIndex(i)
	return b.data[b.colorOffset()+i*b.widths.color+3]
}

// Bounds returns the axis-aligned box of all centers. An empty buffer
// returns two zero vectors.
func (b *Buffer) Bounds() (lo, hi math.Vec3) {
	if b.count == 0 {
		return math.Vec3{}, math.Vec3{}
	}
	lo = b.Center(0)
	hi = lo
	for i := 1; i < b.count; i++ {
		c := b.Center(i)
		lo = lo.Min(c)
		hi = hi.Max(c)
	}
	return lo, hi
}
