// Package app runs the interactive splat viewer: window, input, camera,
// frame orchestration and rendering.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/splatview/internal/config"
	"github.com/Faultbox/splatview/internal/engine/camera"
	"github.com/Faultbox/splatview/internal/engine/input"
	"github.com/Faultbox/splatview/internal/engine/renderer"
	"github.com/Faultbox/splatview/internal/engine/scene"
	"github.com/Faultbox/splatview/internal/engine/viewer"
	"github.com/Faultbox/splatview/internal/engine/window"
	"github.com/Faultbox/splatview/pkg/math"
)

const title = "splatview"

// App is the viewer application.
type App struct {
	cfg *config.Config
	log *zap.Logger

	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	viewer   *viewer.Viewer

	scenePath string
}

// New creates the window, GL context, renderer and viewer.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{cfg: cfg, log: log}

	var err error
	a.window, err = window.New(window.ConfigFrom(title, cfg.Graphics), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer must come after the window: it needs the GL context.
	width, height := a.window.DrawableSize()
	a.renderer, err = renderer.New(renderer.Config{Width: width, Height: height}, log)
	if err != nil {
		a.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	a.viewer, err = viewer.New(cfg.Viewer, a.renderer, log)
	if err != nil {
		a.renderer.Close()
		a.window.Close()
		return nil, err
	}

	a.input = input.New()
	a.camera = camera.NewOrbitCamera(camera.Lens{
		FocalX: cfg.Camera.FocalX,
		FocalY: cfg.Camera.FocalY,
		Near:   cfg.Camera.Near,
		Far:    cfg.Camera.Far,
	})
	a.camera.Up = math.Vec3{X: cfg.Camera.Up[0], Y: cfg.Camera.Up[1], Z: cfg.Camera.Up[2]}
	a.camera.DragSensitivity = cfg.Camera.DragSensitivity
	a.camera.ZoomSensitivity = cfg.Camera.ZoomSensitivity

	log.Info("viewer initialized")
	return a, nil
}

// Open loads a scene file and frames the camera on it.
func (a *App) Open(ctx context.Context, path string) error {
	buf, err := scene.Load(path, a.cfg.Import, a.log)
	if err != nil {
		return err
	}
	if err := a.viewer.Load(ctx, buf); err != nil {
		return err
	}
	a.scenePath = path
	a.frame()
	return nil
}

func (a *App) frame() {
	buf := a.viewer.Buffer()
	if buf == nil || buf.Count() == 0 {
		return
	}
	lo, hi := buf.Bounds()
	_, height := a.window.DrawableSize()
	a.camera.FitToBounds(lo, hi, height)
}

// Run starts the main loop. It returns when the window closes or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()
	var minFrame time.Duration
	if a.cfg.Graphics.FPSLimit > 0 {
		minFrame = time.Second / time.Duration(a.cfg.Graphics.FPSLimit)
	}

	a.log.Info("starting main loop")

	for a.running {
		now := time.Now()
		dt := now.Sub(lastTime)
		lastTime = now

		if ctx.Err() != nil || a.input.Update() {
			a.running = false
			break
		}
		a.handleEvents(ctx)
		a.handleCamera()

		width, height := a.window.DrawableSize()
		state := a.camera.State(width, height)
		if err := a.viewer.Update(state); err != nil {
			return fmt.Errorf("update error: %w", err)
		}

		a.renderer.Begin()
		a.renderer.Draw(state.View, state.Projection)
		a.renderer.End()
		a.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			a.updateTitle(frameCount)
			a.log.Debug("fps", zap.Int("count", frameCount), zap.Duration("dt", dt))
			frameCount = 0
			fpsTimer = time.Now()
		}

		if minFrame > 0 {
			if spent := time.Since(now); spent < minFrame {
				time.Sleep(minFrame - spent)
			}
		}
	}

	return nil
}

func (a *App) handleEvents(ctx context.Context) {
	for _, event := range a.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			a.renderer.Resize(a.window.DrawableSize())
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				a.running = false
			case sdl.SCANCODE_F:
				a.frame()
			}
		case input.EventDrop:
			if err := a.Open(ctx, event.Path); err != nil {
				a.log.Error("failed to open dropped file", zap.String("path", event.Path), zap.Error(err))
			}
		}
	}
}

func (a *App) handleCamera() {
	if dx, dy := a.input.Drag(sdl.BUTTON_LEFT); dx != 0 || dy != 0 {
		a.camera.HandleDrag(dx, dy)
	}
	if wheel := a.input.Wheel(); wheel != 0 {
		a.camera.HandleZoom(wheel)
	}

	var forward, right, up float32
	if a.input.IsKeyDown(sdl.SCANCODE_W) {
		forward++
	}
	if a.input.IsKeyDown(sdl.SCANCODE_S) {
		forward--
	}
	if a.input.IsKeyDown(sdl.SCANCODE_D) {
		right++
	}
	if a.input.IsKeyDown(sdl.SCANCODE_A) {
		right--
	}
	if a.input.IsKeyDown(sdl.SCANCODE_E) {
		up++
	}
	if a.input.IsKeyDown(sdl.SCANCODE_Q) {
		up--
	}
	if forward != 0 || right != 0 || up != 0 {
		a.camera.HandleMovement(forward, right, up)
	}
}

func (a *App) updateTitle(fps int) {
	if a.scenePath == "" {
		a.window.SetTitle(fmt.Sprintf("%s - %d fps", title, fps))
		return
	}
	s := a.viewer.Stats()
	a.window.SetTitle(fmt.Sprintf("%s - %s - %d fps - %s/%s splats",
		title, filepath.Base(a.scenePath), fps,
		humanize.Comma(int64(s.RenderCount)), humanize.Comma(int64(s.Splats))))
}

// Close releases the viewer, renderer and window.
func (a *App) Close() error {
	a.log.Info("closing viewer")

	var err error
	if a.viewer != nil {
		// Closes the renderer as the viewer's sink.
		err = multierr.Append(err, a.viewer.Close())
	}
	if a.window != nil {
		a.window.Close()
	}
	return err
}
