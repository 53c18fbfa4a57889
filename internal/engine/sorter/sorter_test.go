package sorter

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/Faultbox/splatview/pkg/math"
)

func TestLayoutRegionsDisjoint(t *testing.T) {
	l, err := NewLayout(Config{SplatCount: 10, DepthBuckets: 32})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	regions := []Region{l.ViewProj, l.Indices, l.Centers, l.Depths, l.Mapped, l.Frequencies, l.Sorted}
	want := []int{16, 10, 30, 10, 10, 32, 10}
	next := 0
	for i, r := range regions {
		if r.Offset != next || r.Len != want[i] {
			t.Errorf("region %d = %+v, want offset %d len %d", i, r, next, want[i])
		}
		next = r.end()
	}
	if l.Words != next || l.Bytes() != 4*next {
		t.Errorf("Words = %d, Bytes = %d, want %d words", l.Words, l.Bytes(), next)
	}
}

func TestLayoutDefaultsAndErrors(t *testing.T) {
	l, err := NewLayout(Config{SplatCount: 1})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	if l.Frequencies.Len != DefaultDepthBuckets {
		t.Errorf("Frequencies.Len = %d, want %d", l.Frequencies.Len, DefaultDepthBuckets)
	}
	if _, err := NewLayout(Config{SplatCount: -1}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative count error = %v, want ErrInvalidConfig", err)
	}
}

func TestArenaViewsAreCapped(t *testing.T) {
	a, err := NewArena(Config{SplatCount: 4, DepthBuckets: 8})
	if err != nil {
		t.Fatalf("NewArena failed: %v", err)
	}
	idx := a.Indices()
	if cap(idx) != 4 {
		t.Errorf("cap(Indices()) = %d, want 4", cap(idx))
	}
	a.Centers().Set(11, 2.5)
	if got := a.Centers().At(11); got != 2.5 {
		t.Errorf("Centers().At(11) = %v, want 2.5", got)
	}
	if a.Depths().Len() != 4 || a.ViewProj().Len() != 16 {
		t.Errorf("view lengths = %d/%d", a.Depths().Len(), a.ViewProj().Len())
	}
}

// newTestArena loads centers and fills the input with identity indices.
func newTestArena(t *testing.T, centers []math.Vec3, buckets int, viewProj math.Mat4) *Arena {
	t.Helper()
	a, err := NewArena(Config{SplatCount: len(centers), DepthBuckets: buckets})
	if err != nil {
		t.Fatalf("NewArena failed: %v", err)
	}
	for i, c := range centers {
		a.Centers().Set(3*i, c.X)
		a.Centers().Set(3*i+1, c.Y)
		a.Centers().Set(3*i+2, c.Z)
		a.Indices()[i] = uint32(i)
	}
	for i, f := range viewProj {
		a.ViewProj().Set(i, f)
	}
	return a
}

func cameraViewProj(eye, target math.Vec3) math.Mat4 {
	proj := math.Perspective(1, 1.5, 0.1, 500)
	return proj.Mul(math.LookAt(eye, target, math.Vec3{Y: 1}))
}

func TestSortFrontToBack(t *testing.T) {
	centers := []math.Vec3{{Z: 5}, {Z: -5}, {Z: 0}, {Z: 8}}
	a := newTestArena(t, centers, DefaultDepthBuckets, cameraViewProj(math.Vec3{Z: 10}, math.Vec3{}))

	Sort(a, 4, 4)
	if diff := cmp.Diff([]uint32{3, 0, 2, 1}, a.Sorted()); diff != "" {
		t.Errorf("sorted mismatch (-want +got):\n%s", diff)
	}
}

func TestSortRemainderUnchanged(t *testing.T) {
	centers := []math.Vec3{{Z: 1}, {Z: 3}, {Z: 2}, {Z: 9}, {Z: -9}, {Z: 0}}
	vp := math.Identity() // depth = z
	a := newTestArena(t, centers, 16, vp)
	copy(a.Indices(), []uint32{1, 2, 0, 4, 3, 5})

	Sort(a, 3, 5)
	if diff := cmp.Diff([]uint32{0, 2, 1, 4, 3}, a.Sorted()[:5]); diff != "" {
		t.Errorf("sorted mismatch (-want +got):\n%s", diff)
	}
}

func TestSortStableWithinBucket(t *testing.T) {
	centers := []math.Vec3{{Z: 1}, {Z: 1}, {Z: 0}, {Z: 1}, {Z: 0}}
	a := newTestArena(t, centers, 4, math.Identity())
	Sort(a, 5, 5)
	if diff := cmp.Diff([]uint32{2, 4, 0, 1, 3}, a.Sorted()); diff != "" {
		t.Errorf("sorted mismatch (-want +got):\n%s", diff)
	}
}

func TestSortZeroRange(t *testing.T) {
	centers := []math.Vec3{{X: 1, Z: 2}, {X: 5, Z: 2}, {X: -3, Z: 2}}
	a := newTestArena(t, centers, 8, math.Identity())
	copy(a.Indices(), []uint32{2, 0, 1})
	Sort(a, 3, 3)
	if diff := cmp.Diff([]uint32{2, 0, 1}, a.Sorted()); diff != "" {
		t.Errorf("sorted mismatch (-want +got):\n%s", diff)
	}
}

func TestSortMonotonicDepth(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	centers := make([]math.Vec3, 5000)
	for i := range centers {
		centers[i] = math.Vec3{X: rng.Float32()*100 - 50, Y: rng.Float32()*10 - 5, Z: rng.Float32()*100 - 50}
	}
	vp := cameraViewProj(math.Vec3{X: 80, Y: 20, Z: 80}, math.Vec3{})
	a := newTestArena(t, centers, 1024, vp)
	Sort(a, len(centers), len(centers))

	depth := func(idx uint32) float32 {
		c := centers[idx]
		return vp[2]*c.X + vp[6]*c.Y + vp[10]*c.Z
	}
	lo, hi := depth(0), depth(0)
	for i := range centers {
		d := depth(uint32(i))
		lo, hi = min(lo, d), max(hi, d)
	}
	tol := (hi - lo) / 1023 * 1.01

	seen := make([]bool, len(centers))
	sorted := a.Sorted()
	for i, idx := range sorted {
		if seen[idx] {
			t.Fatalf("index %d emitted twice", idx)
		}
		seen[idx] = true
		if i > 0 && depth(idx) < depth(sorted[i-1])-tol {
			t.Fatalf("depth decreases at %d: %v after %v", i, depth(idx), depth(sorted[i-1]))
		}
	}
}

func waitResult(t *testing.T, w *Worker) Result {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := w.Poll(); ok {
			return r
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for sort result")
	return Result{}
}

func TestWorkerLifecycle(t *testing.T) {
	w := NewWorker(nil)
	if err := w.Submit(Request{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Submit before Init error = %v, want ErrNotInitialized", err)
	}

	centers := []float32{0, 0, 5, 0, 0, -5, 0, 0, 0}
	if err := w.Init(Config{SplatCount: 3, DepthBuckets: 64}, centers); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := w.Init(Config{SplatCount: 3}, centers); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init error = %v, want ErrAlreadyInitialized", err)
	}
	copy(w.Input(), []uint32{0, 1, 2})

	session := uuid.New()
	req := Request{Session: session, Seq: 7, ViewProj: cameraViewProj(math.Vec3{Z: 10}, math.Vec3{}), SortCount: 3, RenderCount: 3}
	if err := w.Submit(req); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := w.Submit(req); !errors.Is(err, ErrSortInFlight) {
		t.Errorf("Submit while in flight error = %v, want ErrSortInFlight", err)
	}
	if !w.Busy() {
		t.Error("Busy() = false with a request outstanding")
	}

	r := waitResult(t, w)
	if r.Session != session || r.Seq != 7 || r.RenderCount != 3 || r.SortCount != 3 {
		t.Errorf("result = %+v", r)
	}
	if diff := cmp.Diff([]uint32{0, 2, 1}, w.Sorted()); diff != "" {
		t.Errorf("sorted mismatch (-want +got):\n%s", diff)
	}
	if w.Busy() {
		t.Error("Busy() = true after Poll")
	}

	if err := w.Submit(Request{RenderCount: 4}); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("oversized Submit error = %v, want ErrCapacityExceeded", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close error = %v, want ErrClosed", err)
	}
	if err := w.Submit(req); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close error = %v, want ErrClosed", err)
	}
}

func TestWorkerEmptySort(t *testing.T) {
	w := NewWorker(nil)
	defer w.Close()
	if err := w.Init(Config{SplatCount: 0}, nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := w.Submit(Request{Seq: 1}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	r, ok := w.Poll()
	if !ok {
		t.Fatal("empty sort did not complete immediately")
	}
	if r.Seq != 1 || r.RenderCount != 0 || len(w.Sorted()) != 0 {
		t.Errorf("result = %+v, sorted = %v", r, w.Sorted())
	}
}

func TestWorkerInitRejectsCenterMismatch(t *testing.T) {
	w := NewWorker(nil)
	defer w.Close()
	if err := w.Init(Config{SplatCount: 2}, []float32{1, 2, 3}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Init error = %v, want ErrInvalidConfig", err)
	}
}
