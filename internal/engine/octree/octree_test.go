package octree

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/Faultbox/splatview/pkg/math"
	"github.com/Faultbox/splatview/pkg/splat"
)

var _ CenterSource = (*splat.Buffer)(nil)

type points []math.Vec3

func (p points) Count() int             { return len(p) }
func (p points) Center(i int) math.Vec3 { return p[i] }

func randomPoints(n int, seed int64) points {
	rng := rand.New(rand.NewSource(seed))
	p := make(points, n)
	for i := range p {
		p[i] = math.Vec3{X: rng.Float32()*200 - 100, Y: rng.Float32() * 20, Z: rng.Float32()*200 - 100}
	}
	return p
}

func TestBuildEmpty(t *testing.T) {
	tree, err := Build(context.Background(), points{}, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tree.Root.IsLeaf() || len(tree.Root.Indices) != 0 {
		t.Errorf("root = %+v, want empty leaf", tree.Root)
	}
	if got := tree.CountLeaves(); got != 1 {
		t.Errorf("CountLeaves() = %d, want 1", got)
	}
	visited := 0
	tree.VisitLeaves(func(*Node) { visited++ })
	if visited != 0 {
		t.Errorf("VisitLeaves visited %d leaves, want 0", visited)
	}
}

func TestBuildCompleteness(t *testing.T) {
	tests := []struct {
		name string
		pts  points
		cfg  Config
	}{
		{"single leaf", randomPoints(50, 1), Config{MaxDepth: 8, MaxIndicesPerLeaf: 100}},
		{"split", randomPoints(20000, 2), Config{MaxDepth: 8, MaxIndicesPerLeaf: 64}},
		{"depth capped", randomPoints(5000, 3), Config{MaxDepth: 2, MaxIndicesPerLeaf: 1}},
		{"grid on split planes", gridPoints(), Config{MaxDepth: 8, MaxIndicesPerLeaf: 2}},
		{"coincident", make(points, 40), Config{MaxDepth: 4, MaxIndicesPerLeaf: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Build(context.Background(), tt.pts, tt.cfg)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}

			seen := make([]int, len(tt.pts))
			tree.VisitLeaves(func(n *Node) {
				if !n.IsLeaf() || len(n.Indices) == 0 {
					t.Errorf("VisitLeaves yielded node %d with %d children, %d indices", n.ID, len(n.Children), len(n.Indices))
				}
				if len(n.Indices) > tt.cfg.MaxIndicesPerLeaf && n.Depth < tt.cfg.MaxDepth {
					t.Errorf("leaf %d at depth %d holds %d indices", n.ID, n.Depth, len(n.Indices))
				}
				for _, idx := range n.Indices {
					seen[idx]++
					if !n.Contains(tt.pts[idx]) {
						t.Errorf("point %d %v outside leaf %d [%v, %v]", idx, tt.pts[idx], n.ID, n.Min, n.Max)
					}
				}
			})
			for idx, c := range seen {
				if c != 1 {
					t.Errorf("index %d appears in %d leaves, want 1", idx, c)
				}
			}

			s := tree.Stats()
			if s.Indexed != len(tt.pts) {
				t.Errorf("Stats().Indexed = %d, want %d", s.Indexed, len(tt.pts))
			}
			if s.MaxDepth > tt.cfg.MaxDepth {
				t.Errorf("Stats().MaxDepth = %d exceeds %d", s.MaxDepth, tt.cfg.MaxDepth)
			}
		})
	}
}

// gridPoints returns integer lattice points, many of which fall exactly on
// split planes.
func gridPoints() points {
	var p points
	for x := 0; x <= 4; x++ {
		for y := 0; y <= 4; y++ {
			for z := 0; z <= 4; z++ {
				p = append(p, math.Vec3{X: float32(x), Y: float32(y), Z: float32(z)})
			}
		}
	}
	return p
}

func TestBuildSplitsIntoEightChildren(t *testing.T) {
	tree, err := Build(context.Background(), randomPoints(1000, 4), Config{MaxDepth: 8, MaxIndicesPerLeaf: 500})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(tree.Root.Children) != 8 {
		t.Fatalf("root has %d children, want 8", len(tree.Root.Children))
	}
	ids := map[int]bool{}
	var walk func(*Node)
	walk = func(n *Node) {
		if ids[n.ID] {
			t.Errorf("duplicate node id %d", n.ID)
		}
		ids[n.ID] = true
		for _, c := range n.Children {
			if c.Depth != n.Depth+1 {
				t.Errorf("child depth %d under depth %d", c.Depth, n.Depth)
			}
			walk(c)
		}
	}
	walk(tree.Root)
	if len(ids) != tree.Stats().Nodes {
		t.Errorf("walked %d nodes, Stats().Nodes = %d", len(ids), tree.Stats().Nodes)
	}
}

func TestBuildIndicesDeduplicates(t *testing.T) {
	pts := points{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	tree, err := BuildIndices(context.Background(), pts, []uint32{0, 1, 1, 2, 0}, Config{MaxDepth: 3, MaxIndicesPerLeaf: 1})
	if err != nil {
		t.Fatalf("BuildIndices failed: %v", err)
	}
	if got := tree.Stats().Indexed; got != 3 {
		t.Errorf("Indexed = %d, want 3", got)
	}
}

func TestBuildErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, randomPoints(10, 5), DefaultConfig()); !errors.Is(err, context.Canceled) {
		t.Errorf("Build with canceled context error = %v, want context.Canceled", err)
	}
	if _, err := Build(context.Background(), points{}, Config{MaxDepth: 8}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Build with zero leaf size error = %v, want ErrInvalidConfig", err)
	}
	if _, err := BuildIndices(context.Background(), points{{}}, []uint32{3}, DefaultConfig()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("BuildIndices out of range error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestNodeSize(t *testing.T) {
	n := &Node{Min: math.Vec3{}, Max: math.Vec3{X: 2, Y: 3, Z: 6}}
	if got := n.Size(); got != 7 {
		t.Errorf("Size() = %v, want 7", got)
	}
}
