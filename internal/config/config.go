// Package config handles viewer configuration loading and management.
package config

import (
	"github.com/Faultbox/splatview/internal/engine/octree"
)

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Camera   CameraConfig   `yaml:"camera"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Import   ImportConfig   `yaml:"import"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
}

// CameraConfig holds the camera intrinsics and orbit controls.
type CameraConfig struct {
	FocalX float32 `yaml:"focal_x"`
	FocalY float32 `yaml:"focal_y"`
	Near   float32 `yaml:"near"`
	Far    float32 `yaml:"far"`
	// Up is the scene's world up axis.
	Up [3]float32 `yaml:"up"`

	DragSensitivity float32 `yaml:"drag_sensitivity"`
	ZoomSensitivity float32 `yaml:"zoom_sensitivity"`
}

// ViewerConfig holds the per-frame culling and sorting thresholds.
type ViewerConfig struct {
	// AlphaThreshold removes splats whose alpha is at or below it on load.
	AlphaThreshold uint8 `yaml:"alpha_threshold"`
	// MaxSortDistance bounds the nodes whose splats are depth sorted; nodes
	// further away are drawn in node order.
	MaxSortDistance float32 `yaml:"max_sort_distance"`
	FrustumMargin   float32 `yaml:"frustum_margin"`
	// DirectionThreshold and MoveThreshold decide when the camera moved
	// enough to gather again.
	DirectionThreshold float32 `yaml:"direction_threshold"`
	MoveThreshold      float32 `yaml:"move_threshold"`
	MinNodeDistance    float32 `yaml:"min_node_distance"`
	DepthBuckets       int     `yaml:"depth_buckets"`

	Octree octree.Config `yaml:"octree"`
}

// ImportConfig holds point-cloud conversion settings.
type ImportConfig struct {
	CompressionLevel int     `yaml:"compression_level"`
	BucketSize       int     `yaml:"bucket_size"`
	BlockSize        float32 `yaml:"block_size"`
	// CompressFiles wraps written splat files in zstd.
	CompressFiles bool `yaml:"compress_files"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// DefaultViewer returns the default viewer thresholds.
func DefaultViewer() ViewerConfig {
	return ViewerConfig{
		AlphaThreshold:     0,
		MaxSortDistance:    125,
		FrustumMargin:      0.4,
		DirectionThreshold: 0.95,
		MoveThreshold:      1.0,
		MinNodeDistance:    1e-4,
		DepthBuckets:       1 << 16,
		Octree:             octree.DefaultConfig(),
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Camera: CameraConfig{
			FocalX:          1159.588,
			FocalY:          1164.660,
			Near:            0.1,
			Far:             500,
			Up:              [3]float32{0, 1, 0},
			DragSensitivity: 0.005,
			ZoomSensitivity: 0.1,
		},
		Viewer: DefaultViewer(),
		Import: ImportConfig{
			CompressionLevel: 0,
			BucketSize:       256,
			BlockSize:        5.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
