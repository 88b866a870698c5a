package mapfile

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// CompressFileComplete decorates a FileCompleteFunc so each retired file
// is zstd-compressed to "<path>.zst" and deleted. next, when non-nil,
// receives the compressed path; on a compression failure the original
// file is kept and next receives the original path.
func CompressFileComplete(next FileCompleteFunc, log Logger) FileCompleteFunc {
	return func(path string) {
		compressed, err := compressFile(path)
		if err != nil {
			log.Error("failed to compress retired file", "path", path, "error", err)
			if next != nil {
				next(path)
			}
			return
		}
		if next != nil {
			next(compressed)
		}
	}
}

func compressFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	target := path + ".zst"
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}

	enc, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to finish compressing %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to close %s: %w", target, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove %s after compression: %w", path, err)
	}
	return target, nil
}
