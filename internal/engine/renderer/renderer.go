// Package renderer draws splat scenes with OpenGL. It implements the
// viewer's Sink: attributes live in float textures and the draw order in an
// instanced index buffer.
package renderer

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/splatview/internal/engine/renderer/shaders"
	"github.com/Faultbox/splatview/internal/engine/shader"
	"github.com/Faultbox/splatview/pkg/math"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger

	program *shader.Program

	vao      uint32
	quadVBO  uint32
	indexVBO uint32

	colorTex     uint32
	centerCovTex uint32

	splats        int
	renderCount   int
	indexCapacity int
}

var quad = []float32{
	-2, -2,
	2, -2,
	-2, 2,
	2, 2,
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{
		config: cfg,
		log:    log.Named("renderer"),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	program, err := shader.Compile(shaders.SplatVertexShader, shaders.SplatFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create splat program: %w", err)
	}
	r.program = program
	if err := program.Require("uView", "uProjection", "uFocal", "uViewport", "uTextureWidth", "uColors", "uCenterCovariance"); err != nil {
		program.Delete()
		return nil, err
	}

	r.createBuffers()
	r.colorTex = newFloatTexture()
	r.centerCovTex = newFloatTexture()

	// Splats arrive sorted front to back; accumulate "under" what is
	// already drawn.
	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.ONE_MINUS_DST_ALPHA, gl.ONE)

	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

func (r *Renderer) createBuffers() {
	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	gl.GenBuffers(1, &r.quadVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quad)*4, gl.Ptr(quad), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))

	gl.GenBuffers(1, &r.indexVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.indexVBO)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribIPointer(1, 1, gl.UNSIGNED_INT, 4, gl.PtrOffset(0))
	gl.VertexAttribDivisor(1, 1)

	gl.BindVertexArray(0)
}

func newFloatTexture() uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return tex
}

func uploadTexture(tex uint32, data []float32) {
	rows := len(data) / (TextureWidth * texelFloats)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, TextureWidth, int32(rows), 0, gl.RGBA, gl.FLOAT, gl.Ptr(data))
}

// UploadAttributes replaces the color and center+covariance textures.
func (r *Renderer) UploadAttributes(colors, centerCovariances []float32, count int) error {
	if len(colors) < count*texelFloats || len(centerCovariances) < count*centerCovarianceFloats {
		return fmt.Errorf("renderer: attribute arrays too short for %d splats", count)
	}
	colorImage := packColors(colors, count)
	centerCovImage := packCenterCovariance(centerCovariances, count)
	uploadTexture(r.colorTex, colorImage)
	uploadTexture(r.centerCovTex, centerCovImage)
	if err := glError("upload attributes"); err != nil {
		return err
	}

	r.splats = count
	r.renderCount = 0
	r.log.Debug("attributes uploaded",
		zap.Int("splats", count),
		zap.String("textures", humanize.IBytes(uint64(4*(len(colorImage)+len(centerCovImage))))))
	return nil
}

// UploadIndices replaces the draw order.
func (r *Renderer) UploadIndices(indices []uint32, renderCount int) error {
	if renderCount > len(indices) {
		return fmt.Errorf("renderer: render count %d exceeds %d indices", renderCount, len(indices))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, r.indexVBO)
	if renderCount > 0 {
		if renderCount > r.indexCapacity {
			gl.BufferData(gl.ARRAY_BUFFER, renderCount*4, gl.Ptr(indices), gl.DYNAMIC_DRAW)
			r.indexCapacity = renderCount
		} else {
			gl.BufferSubData(gl.ARRAY_BUFFER, 0, renderCount*4, gl.Ptr(indices))
		}
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	r.renderCount = renderCount
	return glError("upload indices")
}

// Resize handles window resize. width and height are drawable pixels.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Begin starts a new frame. The clear alpha must be zero for front-to-back
// blending to accumulate.
func (r *Renderer) Begin() {
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// Draw renders the current draw order from the given camera.
func (r *Renderer) Draw(view, projection math.Mat4) {
	if r.renderCount == 0 {
		return
	}
	w, h := float32(r.config.Width), float32(r.config.Height)

	r.program.Use()
	gl.UniformMatrix4fv(r.program.Uniform("uView"), 1, false, view.Ptr())
	gl.UniformMatrix4fv(r.program.Uniform("uProjection"), 1, false, projection.Ptr())
	// Pixel focal lengths implied by the projection.
	gl.Uniform2f(r.program.Uniform("uFocal"), projection[0]*w/2, projection[5]*h/2)
	gl.Uniform2f(r.program.Uniform("uViewport"), w, h)
	gl.Uniform1i(r.program.Uniform("uTextureWidth"), TextureWidth)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.colorTex)
	gl.Uniform1i(r.program.Uniform("uColors"), 0)
	gl.ActiveTexture(gl.TEXTURE1)
	gl.BindTexture(gl.TEXTURE_2D, r.centerCovTex)
	gl.Uniform1i(r.program.Uniform("uCenterCovariance"), 1)

	gl.BindVertexArray(r.vao)
	gl.DrawArraysInstanced(gl.TRIANGLE_STRIP, 0, 4, int32(r.renderCount))
	gl.BindVertexArray(0)
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.UseProgram(0)
}

// RenderCount returns the number of splats drawn per frame.
func (r *Renderer) RenderCount() int { return r.renderCount }

// Close cleans up renderer resources.
func (r *Renderer) Close() error {
	r.log.Info("closing renderer")
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	for _, buf := range []*uint32{&r.quadVBO, &r.indexVBO} {
		if *buf != 0 {
			gl.DeleteBuffers(1, buf)
			*buf = 0
		}
	}
	for _, tex := range []*uint32{&r.colorTex, &r.centerCovTex} {
		if *tex != 0 {
			gl.DeleteTextures(1, tex)
			*tex = 0
		}
	}
	if r.program != nil {
		r.program.Delete()
	}
	return glError("close")
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("renderer: %s: GL error 0x%x", op, code)
	}
	return nil
}
