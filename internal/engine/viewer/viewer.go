// Package viewer drives a loaded splat scene frame by frame: it culls octree
// nodes against the camera, hands the visible indices to the sort worker and
// uploads each completed order to the GPU.
package viewer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/chewxy/math32"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/splatview/internal/config"
	"github.com/Faultbox/splatview/internal/engine/octree"
	"github.com/Faultbox/splatview/internal/engine/sorter"
	"github.com/Faultbox/splatview/pkg/math"
	"github.com/Faultbox/splatview/pkg/splat"
)

var (
	ErrNoSink = errors.New("viewer: nil sink")
	ErrClosed = errors.New("viewer: closed")
)

// Sink receives GPU-ready scene data.
type Sink interface {
	// UploadAttributes replaces the per-splat attribute arrays. colors holds
	// 4 floats per splat, centerCovariances 9.
	UploadAttributes(colors, centerCovariances []float32, count int) error
	// UploadIndices replaces the draw order. Only the first renderCount
	// indices are drawn.
	UploadIndices(indices []uint32, renderCount int) error
}

// State is the orchestrator's per-frame phase.
type State int

const (
	StateIdle State = iota
	StateGathering
	StateSortRequested
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateGathering:
		return "Gathering"
	case StateSortRequested:
		return "SortRequested"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CameraState is a snapshot of the camera for one frame. FovX and FovY are
// full angles in radians.
type CameraState struct {
	Position   math.Vec3
	View       math.Mat4
	Projection math.Mat4
	FovX, FovY float32
}

// Forward returns the world-space viewing direction encoded in View.
func (c CameraState) Forward() math.Vec3 {
	return math.Vec3{X: -c.View[2], Y: -c.View[6], Z: -c.View[10]}.Normalize()
}

func (c CameraState) valid() bool {
	return c.Position.IsFinite() && c.View.IsFinite() && c.Projection.IsFinite() &&
		c.FovX > 0 && c.FovY > 0 && !math32.IsInf(c.FovX, 0) && !math32.IsInf(c.FovY, 0)
}

// Stats describes the loaded scene and the last gather.
type Stats struct {
	State   State
	Session uuid.UUID

	Splats int
	Leaves int

	VisibleNodes int
	RenderCount  int
	SortCount    int

	Sorts     uint64
	Discarded uint64
	Coalesced uint64
	Skipped   uint64
	LastSort  time.Duration
}

// Viewer owns the scene, its octree and the sort worker.
type Viewer struct {
	cfg  config.ViewerConfig
	sink Sink
	log  *zap.Logger

	buf     *splat.Buffer
	tree    *octree.Tree
	worker  *sorter.Worker
	session uuid.UUID
	seq     uint64
	state   State
	force   bool
	closed  bool

	lastPosition math.Vec3
	lastForward  math.Vec3

	visible []*octree.Node
	stats   Stats
}

// New creates a viewer with no scene loaded.
func New(cfg config.ViewerConfig, sink Sink, log *zap.Logger) (*Viewer, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Viewer{
		cfg:  cfg,
		sink: sink,
		log:  log.Named("viewer"),
	}, nil
}

// Load replaces the current scene with buf. The buffer is compacted in
// place and must not be modified afterwards.
func (v *Viewer) Load(ctx context.Context, buf *splat.Buffer) (err error) {
	if v.closed {
		return ErrClosed
	}
	if err := v.Unload(); err != nil {
		return err
	}

	cs := buf.Compact(v.cfg.AlphaThreshold)
	v.log.Info("scene compacted",
		zap.Int("splats", cs.CountAfter),
		zap.Int("removed", cs.Removed()),
		zap.String("size", humanize.IBytes(uint64(cs.BytesAfter))),
		zap.String("saved", humanize.IBytes(uint64(cs.BytesBefore-cs.BytesAfter))))

	start := time.Now()
	var tree *octree.Tree
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buf.BuildCovariances()
		return nil
	})
	g.Go(func() error {
		t, err := octree.Build(gctx, buf, v.cfg.Octree)
		tree = t
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("viewer: preparing scene: %w", err)
	}

	n := buf.Count()
	worker := sorter.NewWorker(v.log)
	if err := worker.Init(sorter.Config{SplatCount: n, DepthBuckets: v.cfg.DepthBuckets}, buf.Centers()); err != nil {
		return multierr.Append(fmt.Errorf("viewer: starting sorter: %w", err), worker.Close())
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, worker.Close())
		}
	}()

	colors := make([]float32, n*splat.ColorFloats)
	buf.FillColorArray(colors, 0)
	centerCov := make([]float32, n*splat.CenterCovarianceFloats)
	buf.FillCenterCovarianceArray(centerCov, 0, nil)
	if err := v.sink.UploadAttributes(colors, centerCov, n); err != nil {
		return fmt.Errorf("viewer: uploading attributes: %w", err)
	}

	identity := make([]uint32, n)
	for i := range identity {
		identity[i] = uint32(i)
	}
	if err := v.sink.UploadIndices(identity, n); err != nil {
		return fmt.Errorf("viewer: uploading indices: %w", err)
	}

	v.buf = buf
	v.tree = tree
	v.worker = worker
	v.session = uuid.New()
	v.seq = 0
	v.state = StateIdle
	v.force = true

	ts := tree.Stats()
	v.stats = Stats{
		Session:     v.session,
		Splats:      n,
		Leaves:      ts.NonEmptyLeaves,
		RenderCount: n,
	}
	v.log.Info("scene loaded",
		zap.Stringer("session", v.session),
		zap.Int("splats", n),
		zap.Int("nodes", ts.Nodes),
		zap.Int("leaves", ts.NonEmptyLeaves),
		zap.Int("depth", ts.MaxDepth),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Loaded reports whether a scene is loaded.
func (v *Viewer) Loaded() bool { return v.worker != nil }

// Buffer returns the loaded scene, or nil.
func (v *Viewer) Buffer() *splat.Buffer { return v.buf }

// Tree returns the loaded scene's octree, or nil.
func (v *Viewer) Tree() *octree.Tree { return v.tree }

// Update advances one frame. It applies a finished sort, then starts a new
// one if the camera moved enough since the last gather.
func (v *Viewer) Update(cam CameraState) error {
	if v.closed {
		return ErrClosed
	}
	if v.worker == nil {
		return nil
	}

	if res, ok := v.worker.Poll(); ok {
		if err := v.apply(res); err != nil {
			return err
		}
	}
	if v.worker.Busy() {
		v.stats.Coalesced++
		return nil
	}

	if !cam.valid() {
		v.stats.Skipped++
		v.log.Debug("skipping degenerate camera", zap.Any("position", cam.Position))
		return nil
	}
	forward := cam.Forward()
	if !v.force && !v.moved(cam.Position, forward) {
		return nil
	}

	v.state = StateGathering
	sortCount, renderCount := v.gather(cam, v.force)

	v.seq++
	req := sorter.Request{
		Session:     v.session,
		Seq:         v.seq,
		ViewProj:    cam.Projection.Mul(cam.View),
		SortCount:   sortCount,
		RenderCount: renderCount,
	}
	if err := v.worker.Submit(req); err != nil {
		v.state = StateIdle
		return fmt.Errorf("viewer: submitting sort: %w", err)
	}
	v.state = StateSortRequested
	v.force = false
	v.lastPosition = cam.Position
	v.lastForward = forward
	return nil
}

func (v *Viewer) moved(pos, forward math.Vec3) bool {
	return forward.Dot(v.lastForward) <= v.cfg.DirectionThreshold ||
		pos.Distance(v.lastPosition) >= v.cfg.MoveThreshold
}

func (v *Viewer) apply(res sorter.Result) error {
	if res.Session != v.session {
		v.stats.Discarded++
		v.log.Debug("discarding stale sort", zap.Stringer("session", res.Session), zap.Uint64("seq", res.Seq))
		return nil
	}
	v.state = StateIdle
	v.stats.Sorts++
	v.stats.LastSort = res.Duration
	if err := v.sink.UploadIndices(v.worker.Sorted()[:res.RenderCount], res.RenderCount); err != nil {
		return fmt.Errorf("viewer: uploading indices: %w", err)
	}
	return nil
}

// gather writes the indices of every visible leaf into the worker input,
// nearest node first. Nodes within MaxSortDistance form the sorted prefix.
func (v *Viewer) gather(cam CameraState, all bool) (sortCount, renderCount int) {
	cosX := math32.Cos(cam.FovX/2) - v.cfg.FrustumMargin
	cosY := math32.Cos(cam.FovY/2) - v.cfg.FrustumMargin

	v.visible = v.visible[:0]
	v.tree.VisitLeaves(func(n *octree.Node) {
		toNode := n.Center.Sub(cam.Position)
		n.Distance = math32.Max(toNode.Length(), v.cfg.MinNodeDistance)
		if all {
			v.visible = append(v.visible, n)
			return
		}

		dir := cam.View.TransformDirection(toNode.Normalize())
		yz := math.Vec3{Y: dir.Y, Z: dir.Z}.Normalize()
		xz := math.Vec3{X: dir.X, Z: dir.Z}.Normalize()
		// Camera space looks down -Z.
		outY := -yz.Z < cosY
		outX := -xz.Z < cosX
		if (outX || outY) && n.Distance > max(n.Size(), v.cfg.MinNodeDistance) {
			return
		}
		v.visible = append(v.visible, n)
	})
	slices.SortStableFunc(v.visible, func(a, b *octree.Node) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	input := v.worker.Input()
	sorting := true
	for _, n := range v.visible {
		copy(input[renderCount:], n.Indices)
		renderCount += len(n.Indices)
		if sorting && n.Distance <= v.cfg.MaxSortDistance {
			sortCount = renderCount
		} else {
			sorting = false
		}
	}

	v.stats.VisibleNodes = len(v.visible)
	v.stats.SortCount = sortCount
	v.stats.RenderCount = renderCount
	return sortCount, renderCount
}

// State returns the current phase.
func (v *Viewer) State() State { return v.state }

// Stats returns a snapshot of the scene and frame counters.
func (v *Viewer) Stats() Stats {
	s := v.stats
	s.State = v.state
	return s
}

// Unload drops the current scene and stops its sort worker.
func (v *Viewer) Unload() error {
	if v.worker == nil {
		return nil
	}
	err := v.worker.Close()
	v.log.Debug("scene unloaded", zap.Stringer("session", v.session))

	v.buf = nil
	v.tree = nil
	v.worker = nil
	v.session = uuid.Nil
	v.state = StateIdle
	v.force = false
	v.visible = nil
	v.stats = Stats{}
	if err != nil {
		return fmt.Errorf("viewer: stopping sorter: %w", err)
	}
	return nil
}

// Close unloads the scene and closes the sink if it is an io.Closer.
func (v *Viewer) Close() error {
	if v.closed {
		return ErrClosed
	}
	err := v.Unload()
	if c, ok := v.sink.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	v.closed = true
	return err
}
