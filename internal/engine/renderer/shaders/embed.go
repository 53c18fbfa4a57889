// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// SplatVertexShader projects one splat's 3D covariance to a screen-space
// ellipse and expands the instanced quad to cover it.
//
//go:embed splat.vert
var SplatVertexShader string

// SplatFragmentShader evaluates the Gaussian falloff and emits premultiplied
// color for front-to-back blending.
//
//go:embed splat.frag
var SplatFragmentShader string
