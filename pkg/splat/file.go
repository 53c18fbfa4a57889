package splat

import (
	"bytes"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ParseFile reads a buffer from disk. Files written with compression are
// detected by their zstd frame magic and decoded transparently.
func ParseFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading splat file: %w", err)
	}
	if bytes.HasPrefix(data, zstdMagic) {
		data, err = decompress(data)
		if err != nil {
			return nil, fmt.Errorf("decompressing splat file: %w", err)
		}
	}
	return Parse(data)
}

// WriteFile writes the encoded region to path, optionally zstd-compressed.
func (b *Buffer) WriteFile(path string, compress bool) error {
	data := b.data
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		data = enc.EncodeAll(b.data, make([]byte, 0, len(b.data)/2))
		if err := enc.Close(); err != nil {
			return fmt.Errorf("closing zstd encoder: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing splat file: %w", err)
	}
	return nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
