package sorter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/splatview/pkg/math"
)

var (
	ErrNotInitialized     = errors.New("sorter: worker not initialized")
	ErrAlreadyInitialized = errors.New("sorter: worker already initialized")
	ErrSortInFlight       = errors.New("sorter: sort already in flight")
	ErrCapacityExceeded   = errors.New("sorter: request exceeds arena capacity")
	ErrClosed             = errors.New("sorter: worker closed")
)

// Request asks for the current input indices to be sorted.
type Request struct {
	Session     uuid.UUID
	Seq         uint64
	ViewProj    math.Mat4
	SortCount   int
	RenderCount int
}

// Result reports a completed sort. The output region holds RenderCount
// indices until the next Submit.
type Result struct {
	Session     uuid.UUID
	Seq         uint64
	SortCount   int
	RenderCount int
	Duration    time.Duration
}

// Worker owns a sort arena and a goroutine that sorts it on request. At
// most one request is in flight; callers poll for its completion.
type Worker struct {
	log *zap.Logger

	mu     sync.Mutex
	arena  *Arena
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	requests chan Request
	results  chan Result
	inFlight atomic.Bool
}

// NewWorker creates an uninitialized worker.
func NewWorker(log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		log:      log.Named("sorter"),
		requests: make(chan Request, 1),
		results:  make(chan Result, 1),
	}
}

// Init allocates the arena for cfg, loads centers (packed xyz, three per
// splat) and starts the sort goroutine.
func (w *Worker) Init(cfg Config, centers []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.closed:
		return ErrClosed
	case w.arena != nil:
		return ErrAlreadyInitialized
	}
	cfg = cfg.withDefaults()
	if len(centers) != 3*cfg.SplatCount {
		return fmt.Errorf("%w: %d center floats for %d splats", ErrInvalidConfig, len(centers), cfg.SplatCount)
	}
	arena, err := NewArena(cfg)
	if err != nil {
		return err
	}
	view := arena.Centers()
	for i, f := range centers {
		view.Set(i, f)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.arena = arena
	w.cfg = cfg
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)

	w.log.Info("sort worker started",
		zap.Int("splats", cfg.SplatCount),
		zap.Int("depth_buckets", cfg.DepthBuckets),
		zap.String("arena", humanize.IBytes(uint64(arena.Layout().Bytes()))))
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			start := time.Now()
			Sort(w.arena, req.SortCount, req.RenderCount)
			w.results <- resultFor(req, time.Since(start))
		}
	}
}

func resultFor(req Request, took time.Duration) Result {
	return Result{
		Session:     req.Session,
		Seq:         req.Seq,
		SortCount:   req.SortCount,
		RenderCount: req.RenderCount,
		Duration:    took,
	}
}

// Config returns the configuration the worker was initialized with.
func (w *Worker) Config() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Busy reports whether a request is awaiting Poll.
func (w *Worker) Busy() bool { return w.inFlight.Load() }

// Input returns the input index region. It may only be written while the
// worker is not busy.
func (w *Worker) Input() []uint32 {
	if a := w.loadArena(); a != nil {
		return a.Indices()
	}
	return nil
}

// Sorted returns the output index region. It holds the result of the last
// polled sort until the next Submit.
func (w *Worker) Sorted() []uint32 {
	if a := w.loadArena(); a != nil {
		return a.Sorted()
	}
	return nil
}

func (w *Worker) loadArena() *Arena {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.arena
}

// Submit hands a request to the worker. The first req.RenderCount entries
// of Input must already be filled.
func (w *Worker) Submit(req Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.closed:
		return ErrClosed
	case w.arena == nil:
		return ErrNotInitialized
	case req.SortCount < 0 || req.RenderCount < 0 || req.SortCount > req.RenderCount:
		return fmt.Errorf("%w: sort %d of %d", ErrInvalidConfig, req.SortCount, req.RenderCount)
	case req.RenderCount > w.cfg.SplatCount:
		return fmt.Errorf("%w: %d > %d", ErrCapacityExceeded, req.RenderCount, w.cfg.SplatCount)
	}
	if !w.inFlight.CompareAndSwap(false, true) {
		return ErrSortInFlight
	}

	if req.RenderCount == 0 {
		w.results <- resultFor(req, 0)
		return nil
	}
	vp := w.arena.ViewProj()
	for i, f := range req.ViewProj {
		vp.Set(i, f)
	}
	w.requests <- req
	return nil
}

// Poll returns the completed result, if any, without blocking.
func (w *Worker) Poll() (Result, bool) {
	select {
	case r := <-w.results:
		w.inFlight.Store(false)
		return r, true
	default:
		return Result{}, false
	}
}

// Close stops the sort goroutine and waits for it to exit.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		w.log.Debug("sort worker stopped")
	}
	return nil
}
