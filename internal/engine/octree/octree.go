// Package octree partitions splat centers into a bounded-depth octree whose
// leaves are the unit of visibility culling.
package octree

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faultbox/splatview/pkg/math"
)

// Default construction limits.
const (
	DefaultMaxDepth          = 8
	DefaultMaxIndicesPerLeaf = 5000
)

var (
	ErrInvalidConfig   = errors.New("octree: invalid config")
	ErrIndexOutOfRange = errors.New("octree: index out of range")
)

// CenterSource provides splat centers by index.
type CenterSource interface {
	Count() int
	Center(i int) math.Vec3
}

// Config bounds the tree shape.
type Config struct {
	MaxDepth          int `yaml:"max_depth"`
	MaxIndicesPerLeaf int `yaml:"max_indices_per_leaf"`
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxDepth:          DefaultMaxDepth,
		MaxIndicesPerLeaf: DefaultMaxIndicesPerLeaf,
	}
}

// Validate checks the limits.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth %d", ErrInvalidConfig, c.MaxDepth)
	}
	if c.MaxIndicesPerLeaf < 1 {
		return fmt.Errorf("%w: max indices per leaf %d", ErrInvalidConfig, c.MaxIndicesPerLeaf)
	}
	return nil
}

// Node is an axis-aligned box. Leaves own splat indices; internal nodes own
// exactly eight children.
type Node struct {
	Min, Max, Center math.Vec3
	Depth            int
	ID               int
	Indices          []uint32
	Children         []*Node

	// Distance is a per-frame annotation written by the frame gatherer.
	Distance float32
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Size returns the length of the box diagonal.
func (n *Node) Size() float32 { return n.Max.Distance(n.Min) }

// Contains reports whether p lies inside the closed box.
func (n *Node) Contains(p math.Vec3) bool {
	return p.X >= n.Min.X && p.X <= n.Max.X &&
		p.Y >= n.Min.Y && p.Y <= n.Max.Y &&
		p.Z >= n.Min.Z && p.Z <= n.Max.Z
}

// Tree is an immutable octree over a center source.
type Tree struct {
	Root *Node

	cfg    Config
	leaves []*Node
	nodes  int
}

type builder struct {
	ctx    context.Context
	src    CenterSource
	cfg    Config
	added  []uint64
	nextID int
	leaves []*Node
}

// Build indexes every center of src.
func Build(ctx context.Context, src CenterSource, cfg Config) (*Tree, error) {
	n := src.Count()
	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return BuildIndices(ctx, src, indices, cfg)
}

// BuildIndices indexes the given subset of src. An index listed more than
// once is kept only in the first leaf that claims it.
func BuildIndices(ctx context.Context, src CenterSource, indices []uint32, cfg Config) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	count := src.Count()

	var lo, hi math.Vec3
	for k, idx := range indices {
		if int(idx) >= count {
			return nil, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, count)
		}
		c := src.Center(int(idx))
		if k == 0 {
			lo, hi = c, c
			continue
		}
		lo = lo.Min(c)
		hi = hi.Max(c)
	}

	b := &builder{
		ctx:   ctx,
		src:   src,
		cfg:   cfg,
		added: make([]uint64, (count+63)/64),
	}
	root := b.newNode(lo, hi, 0)
	root.Indices = indices
	if err := b.process(root); err != nil {
		return nil, err
	}
	return &Tree{Root: root, cfg: cfg, leaves: b.leaves, nodes: b.nextID}, nil
}

func (b *builder) newNode(lo, hi math.Vec3, depth int) *Node {
	n := &Node{Min: lo, Max: hi, Center: lo.Midpoint(hi), Depth: depth, ID: b.nextID}
	b.nextID++
	return n
}

func (b *builder) process(n *Node) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}

	if len(n.Indices) <= b.cfg.MaxIndicesPerLeaf || n.Depth >= b.cfg.MaxDepth {
		kept := n.Indices[:0:0]
		for _, idx := range n.Indices {
			word, bit := idx/64, uint64(1)<<(idx%64)
			if b.added[word]&bit != 0 {
				continue
			}
			b.added[word] |= bit
			kept = append(kept, idx)
		}
		n.Indices = kept
		if len(kept) > 0 {
			b.leaves = append(b.leaves, n)
		}
		return nil
	}

	var buckets [8][]uint32
	for _, idx := range n.Indices {
		o := octant(b.src.Center(int(idx)), n.Center)
		buckets[o] = append(buckets[o], idx)
	}

	n.Children = make([]*Node, 8)
	for o := range n.Children {
		lo, hi := n.Min, n.Center
		if o&1 != 0 {
			lo.X, hi.X = n.Center.X, n.Max.X
		}
		if o&2 != 0 {
			lo.Y, hi.Y = n.Center.Y, n.Max.Y
		}
		if o&4 != 0 {
			lo.Z, hi.Z = n.Center.Z, n.Max.Z
		}
		child := b.newNode(lo, hi, n.Depth+1)
		child.Indices = buckets[o]
		n.Children[o] = child
	}
	n.Indices = nil

	for _, child := range n.Children {
		if err := b.process(child); err != nil {
			return err
		}
	}
	return nil
}

// octant returns the child slot of p: bit 0 for x, bit 1 for y, bit 2 for z,
// set when the coordinate is at or above the split point.
func octant(p, mid math.Vec3) int {
	o := 0
	if p.X >= mid.X {
		o |= 1
	}
	if p.Y >= mid.Y {
		o |= 2
	}
	if p.Z >= mid.Z {
		o |= 4
	}
	return o
}

// Config returns the limits the tree was built with.
func (t *Tree) Config() Config { return t.cfg }

// VisitLeaves calls fn for every leaf holding at least one index, in
// depth-first order.
func (t *Tree) VisitLeaves(fn func(*Node)) {
	for _, n := range t.leaves {
		fn(n)
	}
}

// Leaves returns the non-empty leaves. The slice is shared.
func (t *Tree) Leaves() []*Node { return t.leaves }

// CountLeaves returns the number of leaves, empty ones included.
func (t *Tree) CountLeaves() int {
	count := 0
	var walk func(*Node)
	walk = func(n *Node) {
		if n.IsLeaf() {
			count++
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return count
}

// Stats summarizes tree occupancy.
type Stats struct {
	Nodes          int
	Leaves         int
	NonEmptyLeaves int
	Indexed        int
	MaxIndices     int
	AvgIndices     float64
	MaxDepth       int
}

// Stats walks the tree and reports occupancy.
func (t *Tree) Stats() Stats {
	s := Stats{Nodes: t.nodes, Leaves: t.CountLeaves(), NonEmptyLeaves: len(t.leaves)}
	for _, n := range t.leaves {
		s.Indexed += len(n.Indices)
		s.MaxIndices = max(s.MaxIndices, len(n.Indices))
		s.MaxDepth = max(s.MaxDepth, n.Depth)
	}
	if s.NonEmptyLeaves > 0 {
		s.AvgIndices = float64(s.Indexed) / float64(s.NonEmptyLeaves)
	}
	return s
}
