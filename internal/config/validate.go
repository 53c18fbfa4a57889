package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned for out-of-range settings.
var ErrInvalid = errors.New("config: invalid value")

// Validate checks settings that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	switch {
	case c.Graphics.Width <= 0 || c.Graphics.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Graphics.Width, c.Graphics.Height)
	case c.Camera.FocalX <= 0 || c.Camera.FocalY <= 0:
		return fmt.Errorf("%w: focal lengths %v, %v", ErrInvalid, c.Camera.FocalX, c.Camera.FocalY)
	case c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near:
		return fmt.Errorf("%w: clip planes %v..%v", ErrInvalid, c.Camera.Near, c.Camera.Far)
	case c.Viewer.DepthBuckets < 1:
		return fmt.Errorf("%w: depth buckets %d", ErrInvalid, c.Viewer.DepthBuckets)
	case c.Import.CompressionLevel < 0 || c.Import.CompressionLevel > 1:
		return fmt.Errorf("%w: compression level %d", ErrInvalid, c.Import.CompressionLevel)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Logging.Level)
	}
	if err := c.Viewer.Octree.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
