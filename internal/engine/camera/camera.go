// Package camera provides the orbit camera used to inspect splat scenes.
package camera

import (
	gomath "math"

	"github.com/chewxy/math32"

	"github.com/Faultbox/splatview/internal/engine/viewer"
	"github.com/Faultbox/splatview/pkg/math"
)

// Lens holds pinhole intrinsics in pixels.
type Lens struct {
	FocalX float32
	FocalY float32
	Near   float32
	Far    float32
}

// DefaultLens returns the intrinsics scenes are usually captured with.
func DefaultLens() Lens {
	return Lens{FocalX: 1159.588, FocalY: 1164.660, Near: 0.1, Far: 500}
}

// FovX returns the full horizontal field of view in radians for a viewport
// width in pixels.
func (l Lens) FovX(width int) float32 {
	return float32(2 * gomath.Atan(float64(width)/(2*float64(l.FocalX))))
}

// FovY returns the full vertical field of view in radians.
func (l Lens) FovY(height int) float32 {
	return float32(2 * gomath.Atan(float64(height)/(2*float64(l.FocalY))))
}

// Projection returns the perspective matrix for a width x height viewport.
func (l Lens) Projection(width, height int) math.Mat4 {
	if height <= 0 {
		height = 1
	}
	return math.Perspective(l.FovY(height), float32(width)/float32(height), l.Near, l.Far)
}

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center math.Vec3
	// Up is the world up axis; orbit angles are measured around it.
	Up math.Vec3

	// Spherical coordinates
	Distance float32
	Pitch    float32 // radians above the horizon
	Yaw      float32 // radians around Up

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	Lens Lens
}

// NewOrbitCamera creates an orbit camera with default settings.
func NewOrbitCamera(lens Lens) *OrbitCamera {
	return &OrbitCamera{
		Up:              math.Vec3{Y: 1},
		Distance:        5,
		Pitch:           0.3,
		MinDistance:     0.1,
		MaxDistance:     1000,
		MinPitch:        -1.55,
		MaxPitch:        1.55,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		Lens:            lens,
	}
}

// upRotation maps the +Y frame onto Up.
func (c *OrbitCamera) upRotation() math.Mat3 {
	up := c.Up.Normalize()
	y := math.Vec3{Y: 1}
	if up == (math.Vec3{}) || up == y {
		return math.Mat3Identity()
	}
	axis := y.Cross(up)
	if axis.Length() < 1e-6 {
		// Antiparallel.
		return math.QuatFromAxisAngle(math.Vec3{X: 1}, float32(gomath.Pi)).Mat3()
	}
	angle := float32(gomath.Acos(float64(y.Dot(up))))
	return math.QuatFromAxisAngle(axis.Normalize(), angle).Mat3()
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	offset := math.Vec3{
		X: c.Distance * math32.Cos(c.Pitch) * math32.Sin(c.Yaw),
		Y: c.Distance * math32.Sin(c.Pitch),
		Z: c.Distance * math32.Cos(c.Pitch) * math32.Cos(c.Yaw),
	}
	return c.Center.Add(c.upRotation().MulVec3(offset))
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, c.Up.Normalize())
}

// Forward returns the unit viewing direction.
func (c *OrbitCamera) Forward() math.Vec3 {
	return c.Center.Sub(c.Position()).Normalize()
}

// Projection returns the lens projection for a width x height viewport.
func (c *OrbitCamera) Projection(width, height int) math.Mat4 {
	return c.Lens.Projection(width, height)
}

// State snapshots the camera for one frame.
func (c *OrbitCamera) State(width, height int) viewer.CameraState {
	return viewer.CameraState{
		Position:   c.Position(),
		View:       c.ViewMatrix(),
		Projection: c.Projection(width, height),
		FovX:       c.Lens.FovX(width),
		FovY:       c.Lens.FovY(height),
	}
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.Yaw -= deltaX * c.DragSensitivity
	c.Pitch += deltaY * c.DragSensitivity
	c.Pitch = min(max(c.Pitch, c.MinPitch), c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = min(max(c.Distance, c.MinDistance), c.MaxDistance)
}

// HandleMovement pans the center point in the orbit plane.
func (c *OrbitCamera) HandleMovement(forward, right, up float32) {
	// Speed scales with distance for consistent feel
	speed := c.Distance * 0.01

	dir := math.Vec3{X: math32.Sin(c.Yaw), Z: math32.Cos(c.Yaw)}
	side := math.Vec3{X: math32.Cos(c.Yaw), Z: -math32.Sin(c.Yaw)}
	// W moves into the scene, away from the camera.
	move := dir.Scale(-forward).Add(side.Scale(right)).Add(math.Vec3{Y: up})
	c.Center = c.Center.Add(c.upRotation().MulVec3(move.Scale(speed)))
}

// FitToBounds centers the camera on a bounding box and backs off until the
// box fills the vertical field of view of a viewport height pixels tall.
func (c *OrbitCamera) FitToBounds(lo, hi math.Vec3, height int) {
	c.Center = lo.Midpoint(hi)

	radius := hi.Distance(lo) / 2
	half := c.Lens.FovY(height) / 2
	if s := math32.Sin(half); s > 0 {
		c.Distance = radius / s
	}
	c.Distance = min(max(c.Distance, c.MinDistance), c.MaxDistance)
	c.Pitch = 0.3
	c.Yaw = 0
}
