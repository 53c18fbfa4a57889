// splattool is a CLI utility for inspecting and converting splat scenes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/splatview/internal/config"
	"github.com/Faultbox/splatview/internal/engine/octree"
	"github.com/Faultbox/splatview/internal/engine/scene"
	"github.com/Faultbox/splatview/internal/logger"
	"github.com/Faultbox/splatview/pkg/splat"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New("warn", logger.FileConfig{}, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		err = cmdInfo(args, log)
	case "convert", "c":
		err = cmdConvert(args, log)
	case "compact":
		err = cmdCompact(args, log)
	case "octree":
		err = cmdOctree(args, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", e)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`splattool - Gaussian splat scene utility

Usage:
  splattool <command> [options]

Commands:
  info <file>...                           Show scene information
  convert [-level N] [-zstd] <in> <out>    Convert a .ply or .ksplat to .ksplat
  compact [-alpha N] [-zstd] <in> <out>    Drop transparent splats
  octree [-depth N] [-leaf N] <file>       Show octree occupancy

Examples:
  splattool info garden.ply
  splattool convert -level 1 -zstd garden.ply garden.ksplat
  splattool compact -alpha 8 garden.ksplat garden-small.ksplat
  splattool octree -leaf 2000 garden.ksplat`)
}

func cmdInfo(args []string, log *zap.Logger) error {
	if len(args) < 1 {
		return errors.New("usage: splattool info <file>...")
	}

	// Report every file, then fail if any could not be read.
	var errs error
	for _, path := range args {
		buf, err := scene.Load(path, config.Default().Import, log)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		printInfo(path, buf)
	}
	return errs
}

func printInfo(path string, buf *splat.Buffer) {
	lo, hi := buf.Bounds()
	transparent := 0
	for i := 0; i < buf.Count(); i++ {
		if buf.Alpha(i) == 0 {
			transparent++
		}
	}

	fmt.Printf("Scene:       %s\n", path)
	fmt.Printf("Splats:      %s\n", humanize.Comma(int64(buf.Count())))
	fmt.Printf("Level:       %s (%d B/splat)\n", buf.Level(), splat.BytesPerSplat(buf.Level()))
	fmt.Printf("Size:        %s\n", humanize.IBytes(uint64(len(buf.Bytes()))))
	if buf.Level() == splat.Quantized {
		fmt.Printf("Buckets:     %d x %d (block %.2f)\n", buf.BucketCount(), buf.BucketSize(), buf.BlockSize())
	}
	fmt.Printf("Bounds:      (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	fmt.Printf("Transparent: %s\n", humanize.Comma(int64(transparent)))
	fmt.Println()
}

func cmdConvert(args []string, log *zap.Logger) error {
	cfg := config.Default().Import
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	level := fs.Int("level", cfg.CompressionLevel, "Compression level (0 = uncompressed, 1 = quantized)")
	bucket := fs.Int("bucket", cfg.BucketSize, "Splats per quantization bucket")
	block := fs.Float64("block", float64(cfg.BlockSize), "Quantization block size")
	compress := fs.Bool("zstd", cfg.CompressFiles, "Wrap the output in zstd")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return errors.New("usage: splattool convert [options] <in> <out>")
	}
	cfg.CompressionLevel = *level
	cfg.BucketSize = *bucket
	cfg.BlockSize = float32(*block)
	if cfg.CompressionLevel < 0 || cfg.CompressionLevel > 1 {
		return fmt.Errorf("unknown compression level %d", cfg.CompressionLevel)
	}

	start := time.Now()
	buf, err := scene.Load(fs.Arg(0), cfg, log)
	if err != nil {
		return err
	}
	// .ksplat input keeps its own level; re-encode if it differs.
	if target := splat.CompressionLevel(cfg.CompressionLevel); buf.Level() != target {
		if target == splat.Quantized {
			var stats splat.CompressStats
			buf, stats = splat.Compress(buf, scene.ImportOptions(cfg, log).Quantize)
			fmt.Printf("Quantized into %d buckets (%d values clamped)\n", stats.Buckets, stats.Clamped)
		} else {
			buf = decode(buf)
		}
	}

	if err := buf.WriteFile(fs.Arg(1), *compress); err != nil {
		return err
	}
	written, err := os.Stat(fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s: %s splats, %s in %v\n",
		fs.Arg(1), humanize.Comma(int64(buf.Count())), humanize.IBytes(uint64(written.Size())),
		time.Since(start).Round(time.Millisecond))
	return nil
}

// decode copies a buffer into an uncompressed one.
func decode(src *splat.Buffer) *splat.Buffer {
	dst := splat.New(src.Count())
	for i := 0; i < src.Count(); i++ {
		dst.SetCenter(i, src.Center(i))
		dst.SetScale(i, src.Scale(i))
		dst.SetRotation(i, src.Rotation(i))
		dst.SetColor(i, src.Color(i))
	}
	return dst
}

func cmdCompact(args []string, log *zap.Logger) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	alpha := fs.Int("alpha", 0, "Drop splats with alpha at or below this value")
	compress := fs.Bool("zstd", false, "Wrap the output in zstd")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return errors.New("usage: splattool compact [options] <in> <out>")
	}
	if *alpha < 0 || *alpha > 255 {
		return fmt.Errorf("alpha %d out of range 0-255", *alpha)
	}

	buf, err := scene.Load(fs.Arg(0), config.Default().Import, log)
	if err != nil {
		return err
	}
	stats := buf.Compact(uint8(*alpha))
	if err := buf.WriteFile(fs.Arg(1), *compress); err != nil {
		return err
	}

	fmt.Printf("Removed %s of %s splats\n", humanize.Comma(int64(stats.Removed())), humanize.Comma(int64(stats.CountBefore)))
	fmt.Printf("Size: %s -> %s\n", humanize.IBytes(uint64(stats.BytesBefore)), humanize.IBytes(uint64(stats.BytesAfter)))
	if stats.Clamped > 0 {
		fmt.Printf("Clamped: %d quantized values\n", stats.Clamped)
	}
	return nil
}

func cmdOctree(args []string, log *zap.Logger) error {
	def := octree.DefaultConfig()
	fs := flag.NewFlagSet("octree", flag.ExitOnError)
	depth := fs.Int("depth", def.MaxDepth, "Maximum tree depth")
	leaf := fs.Int("leaf", def.MaxIndicesPerLeaf, "Maximum splats per leaf")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: splattool octree [options] <file>")
	}

	buf, err := scene.Load(fs.Arg(0), config.Default().Import, log)
	if err != nil {
		return err
	}
	start := time.Now()
	tree, err := octree.Build(context.Background(), buf, octree.Config{MaxDepth: *depth, MaxIndicesPerLeaf: *leaf})
	if err != nil {
		return err
	}
	took := time.Since(start)

	s := tree.Stats()
	fmt.Printf("Nodes:       %s\n", humanize.Comma(int64(s.Nodes)))
	fmt.Printf("Leaves:      %s (%s non-empty)\n", humanize.Comma(int64(s.Leaves)), humanize.Comma(int64(s.NonEmptyLeaves)))
	fmt.Printf("Indexed:     %s\n", humanize.Comma(int64(s.Indexed)))
	fmt.Printf("Per leaf:    avg %.1f, max %d\n", s.AvgIndices, s.MaxIndices)
	fmt.Printf("Depth:       %d\n", s.MaxDepth)
	fmt.Printf("Build time:  %v\n", took.Round(time.Microsecond))
	return nil
}
