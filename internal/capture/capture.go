// Package capture provides region capture functions for the verifier.
package capture

import (
	"context"
	"fmt"
	"os"

	"github.com/starford/vizbase/internal/verify"
)

// MaxImageSize caps how many bytes a capture may return.
const MaxImageSize = 20 << 20 // 20 MB

// Bytes returns a capture that yields data unchanged.
func Bytes(data []byte) verify.CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return data, nil
	}
}

// File returns a capture that reads an already rendered image from disk.
func File(path string) verify.CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("capture: stat %s: %w", path, err)
		}
		if info.Size() > MaxImageSize {
			return nil, fmt.Errorf("capture: %s too large: %d bytes (max %d)", path, info.Size(), MaxImageSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("capture: read %s: %w", path, err)
		}
		return data, nil
	}
}
