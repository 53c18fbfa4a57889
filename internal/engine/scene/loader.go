// Package scene opens splat scenes from disk in any supported format.
package scene

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Faultbox/splatview/internal/config"
	"github.com/Faultbox/splatview/pkg/ply"
	"github.com/Faultbox/splatview/pkg/splat"
)

// ErrUnknownFormat is returned for files with an unrecognized extension.
var ErrUnknownFormat = errors.New("scene: unknown file format")

// Format is an on-disk scene format.
type Format int

const (
	FormatPLY Format = iota
	FormatSplat
)

// Extension is the canonical extension for splat buffer files.
const Extension = ".ksplat"

func (f Format) String() string {
	switch f {
	case FormatPLY:
		return "ply"
	case FormatSplat:
		return "ksplat"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// DetectFormat picks the format from the file extension. A trailing .zst
// is ignored; compression is detected from content.
func DetectFormat(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".zst")
	switch filepath.Ext(name) {
	case ".ply":
		return FormatPLY, nil
	case Extension:
		return FormatSplat, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// ImportOptions maps import settings onto point-cloud importer options.
func ImportOptions(cfg config.ImportConfig, log *zap.Logger) ply.Options {
	q := splat.DefaultQuantizeOptions()
	if cfg.BucketSize > 0 {
		q.BucketSize = cfg.BucketSize
	}
	if cfg.BlockSize > 0 {
		q.BlockSize = cfg.BlockSize
	}
	return ply.Options{
		CompressionLevel: splat.CompressionLevel(cfg.CompressionLevel),
		Quantize:         q,
		Logger:           log,
	}
}

// Load reads a scene, importing point clouds with cfg.
func Load(path string, cfg config.ImportConfig, log *zap.Logger) (*splat.Buffer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var buf *splat.Buffer
	switch format {
	case FormatPLY:
		buf, err = ply.ParseFile(path, ImportOptions(cfg, log))
	case FormatSplat:
		buf, err = splat.ParseFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}

	log.Info("scene read",
		zap.String("path", path),
		zap.Stringer("format", format),
		zap.Stringer("level", buf.Level()),
		zap.String("splats", humanize.Comma(int64(buf.Count()))),
		zap.String("size", humanize.IBytes(uint64(len(buf.Bytes())))),
		zap.Duration("took", time.Since(start)))
	return buf, nil
}
