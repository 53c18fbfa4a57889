// Package sorter orders splat indices by view depth on a background
// goroutine, one request at a time.
package sorter

import (
	"errors"
	"fmt"
	gomath "math"
)

// DefaultDepthBuckets is the number of counting-sort buckets.
const DefaultDepthBuckets = 1 << 16

var ErrInvalidConfig = errors.New("sorter: invalid config")

// Config sizes the sort arena.
type Config struct {
	SplatCount   int
	DepthBuckets int
}

func (c Config) withDefaults() Config {
	if c.DepthBuckets == 0 {
		c.DepthBuckets = DefaultDepthBuckets
	}
	return c
}

// Validate checks the sizes.
func (c Config) Validate() error {
	if c.SplatCount < 0 {
		return fmt.Errorf("%w: splat count %d", ErrInvalidConfig, c.SplatCount)
	}
	if c.DepthBuckets < 1 {
		return fmt.Errorf("%w: depth buckets %d", ErrInvalidConfig, c.DepthBuckets)
	}
	return nil
}

// Region is a word range within the arena.
type Region struct {
	Offset int
	Len    int
}

func (r Region) end() int { return r.Offset + r.Len }

// Layout places every sort buffer in one slab of 32-bit words. Regions are
// laid out back to back and never overlap.
type Layout struct {
	ViewProj    Region
	Indices     Region
	Centers     Region
	Depths      Region
	Mapped      Region
	Frequencies Region
	Sorted      Region
	Words       int
}

// NewLayout computes the arena layout for cfg.
func NewLayout(cfg Config) (Layout, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Layout{}, err
	}
	n := cfg.SplatCount
	var l Layout
	next := 0
	place := func(words int) Region {
		r := Region{Offset: next, Len: words}
		next += words
		return r
	}
	l.ViewProj = place(16)
	l.Indices = place(n)
	l.Centers = place(3 * n)
	l.Depths = place(n)
	l.Mapped = place(n)
	l.Frequencies = place(cfg.DepthBuckets)
	l.Sorted = place(n)
	l.Words = next
	return l, nil
}

// Bytes returns the arena size in bytes.
func (l Layout) Bytes() int { return l.Words * 4 }

// Float32View reads and writes float32 values stored as bits in a word
// region.
type Float32View struct {
	words []uint32
}

// Len returns the number of values.
func (v Float32View) Len() int { return len(v.words) }

// At returns value i.
func (v Float32View) At(i int) float32 { return gomath.Float32frombits(v.words[i]) }

// Set stores value i.
func (v Float32View) Set(i int, f float32) { v.words[i] = gomath.Float32bits(f) }

// Arena is the shared memory of one sort worker.
type Arena struct {
	layout Layout
	words  []uint32
}

// NewArena allocates an arena for cfg.
func NewArena(cfg Config) (*Arena, error) {
	l, err := NewLayout(cfg)
	if err != nil {
		return nil, err
	}
	return &Arena{layout: l, words: make([]uint32, l.Words)}, nil
}

// Layout returns the arena layout.
func (a *Arena) Layout() Layout { return a.layout }

func (a *Arena) region(r Region) []uint32 {
	return a.words[r.Offset:r.end():r.end()]
}

// ViewProj returns the 16-float view-projection region.
func (a *Arena) ViewProj() Float32View { return Float32View{a.region(a.layout.ViewProj)} }

// Indices returns the input index region.
func (a *Arena) Indices() []uint32 { return a.region(a.layout.Indices) }

// Centers returns the packed xyz center region.
func (a *Arena) Centers() Float32View { return Float32View{a.region(a.layout.Centers)} }

// Depths returns the per-entry depth region.
func (a *Arena) Depths() Float32View { return Float32View{a.region(a.layout.Depths)} }

// Mapped returns the per-entry bucket region.
func (a *Arena) Mapped() []uint32 { return a.region(a.layout.Mapped) }

// Frequencies returns the bucket histogram region.
func (a *Arena) Frequencies() []uint32 { return a.region(a.layout.Frequencies) }

// Sorted returns the output index region.
func (a *Arena) Sorted() []uint32 { return a.region(a.layout.Sorted) }
