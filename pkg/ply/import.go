package ply

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/splatview/pkg/math"
	"github.com/Faultbox/splatview/pkg/splat"
)

// shC0 is the zeroth-order spherical harmonic basis constant.
const shC0 = 0.28209479177387814

// DefaultScale is applied on every axis when a file carries no scale properties.
const DefaultScale = 0.01

// Import errors.
var (
	ErrTruncatedData   = errors.New("ply: truncated vertex data")
	ErrMissingPosition = errors.New("ply: missing x/y/z properties")
)

// Options control how vertices are converted to splats.
type Options struct {
	// CompressionLevel of the produced buffer.
	CompressionLevel splat.CompressionLevel
	// Quantize configures buckets when CompressionLevel is splat.Quantized.
	Quantize splat.QuantizeOptions
	Logger   *zap.Logger
}

// vertexFields resolves the optional properties of a header once.
type vertexFields struct {
	pos      [3]Property
	scale    [3]Property
	rot      [4]Property
	dc       [3]Property
	rgb      [3]Property
	opacity  Property
	hasScale bool
	hasRot   bool
	hasDC    bool
	hasRGB   bool
	hasAlpha bool
}

func lookup(h *Header, names ...string) ([]Property, bool) {
	props := make([]Property, len(names))
	for i, n := range names {
		p, ok := h.Property(n)
		if !ok {
			return nil, false
		}
		props[i] = p
	}
	return props, true
}

func resolveFields(h *Header) (*vertexFields, error) {
	f := &vertexFields{}
	pos, ok := lookup(h, "x", "y", "z")
	if !ok {
		return nil, ErrMissingPosition
	}
	copy(f.pos[:], pos)
	if p, ok := lookup(h, "scale_0", "scale_1", "scale_2"); ok {
		copy(f.scale[:], p)
		f.hasScale = true
	}
	if p, ok := lookup(h, "rot_0", "rot_1", "rot_2", "rot_3"); ok {
		copy(f.rot[:], p)
		f.hasRot = true
	}
	if p, ok := lookup(h, "f_dc_0", "f_dc_1", "f_dc_2"); ok {
		copy(f.dc[:], p)
		f.hasDC = true
	}
	if p, ok := lookup(h, "red", "green", "blue"); ok {
		copy(f.rgb[:], p)
		f.hasRGB = true
	}
	f.opacity, f.hasAlpha = h.Property("opacity")
	return f, nil
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// toByte rounds v and clamps it to [0, 255].
func toByte(v float32) uint8 {
	switch {
	case math32.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math32.Floor(v + 0.5))
}

func (f *vertexFields) importance(row []byte) float32 {
	if !f.hasScale {
		return 0
	}
	size := math32.Exp(float32(f.scale[0].value(row))) *
		math32.Exp(float32(f.scale[1].value(row))) *
		math32.Exp(float32(f.scale[2].value(row)))
	opacity := float32(1)
	if f.hasAlpha {
		opacity = sigmoid(float32(f.opacity.value(row)))
	}
	return size * opacity
}

func (f *vertexFields) store(b *splat.Buffer, i int, row []byte) {
	b.SetCenter(i, math.Vec3{
		X: float32(f.pos[0].value(row)),
		Y: float32(f.pos[1].value(row)),
		Z: float32(f.pos[2].value(row)),
	})

	if f.hasScale {
		b.SetScale(i, math.Vec3{
			X: math32.Exp(float32(f.scale[0].value(row))),
			Y: math32.Exp(float32(f.scale[1].value(row))),
			Z: math32.Exp(float32(f.scale[2].value(row))),
		})
	} else {
		b.SetScale(i, math.Vec3{X: DefaultScale, Y: DefaultScale, Z: DefaultScale})
	}
	if f.hasRot {
		b.SetRotation(i, math.Quat{
			W: float32(f.rot[0].value(row)),
			X: float32(f.rot[1].value(row)),
			Y: float32(f.rot[2].value(row)),
			Z: float32(f.rot[3].value(row)),
		})
	} else {
		b.SetRotation(i, math.QuatIdentity())
	}

	color := [4]uint8{255, 0, 0, 255}
	switch {
	case f.hasDC:
		for k := 0; k < 3; k++ {
			color[k] = toByte((0.5 + shC0*float32(f.dc[k].value(row))) * 255)
		}
	case f.hasRGB:
		for k := 0; k < 3; k++ {
			v := float32(f.rgb[k].value(row))
			if f.rgb[k].Type == Float32 || f.rgb[k].Type == Float64 {
				v *= 255
			}
			color[k] = toByte(v)
		}
	}
	if f.hasAlpha {
		color[3] = toByte(sigmoid(float32(f.opacity.value(row))) * 255)
	}
	b.SetColor(i, color)
}

// Parse converts a PLY file image into a splat buffer. Splats are ordered
// by descending importance (volume times opacity); ties keep file order.
func Parse(data []byte, opts Options) (*splat.Buffer, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()

	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	fields, err := resolveFields(h)
	if err != nil {
		return nil, err
	}

	if h.DataOffset > len(data) || h.VertexCount > (len(data)-h.DataOffset)/h.RowSize {
		return nil, fmt.Errorf("%w: %d vertices of %d bytes, have %d bytes",
			ErrTruncatedData, h.VertexCount, h.RowSize, max(len(data)-h.DataOffset, 0))
	}
	body := data[h.DataOffset:]
	row := func(i int) []byte {
		return body[i*h.RowSize : (i+1)*h.RowSize]
	}

	n := h.VertexCount
	importance := make([]float32, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
		importance[i] = fields.importance(row(i))
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(importance[b], importance[a])
	})

	buf := splat.New(n)
	for i, src := range order {
		fields.store(buf, i, row(src))
	}

	if opts.CompressionLevel == splat.Quantized {
		var stats splat.CompressStats
		buf, stats = splat.Compress(buf, opts.Quantize)
		if stats.Clamped > 0 {
			log.Warn("center components clamped during quantization",
				zap.Int("clamped", stats.Clamped),
				zap.Int("buckets", stats.Buckets))
		}
	}

	log.Info("imported PLY",
		zap.Int("splats", n),
		zap.Int("properties", len(h.Properties)),
		zap.Stringer("level", buf.Level()),
		zap.Duration("took", time.Since(start)))
	return buf, nil
}

// ParseFile reads and converts a PLY file.
func ParseFile(path string, opts Options) (*splat.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PLY file: %w", err)
	}
	buf, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return buf, nil
}
