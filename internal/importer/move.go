package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// relocate places src at dst. With move the source is renamed, falling back to
// copy and delete across filesystems. The copy aborts when ctx is done.
func relocate(ctx context.Context, src, dst string, move bool) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if move {
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
	}

	if err := copyFile(ctx, src, dst); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy file: %w", err)
	}

	if move {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("failed to remove source file: %w", err)
		}
	}
	return nil
}

// copyFile copies src to dst, checking ctx between chunks
func copyFile(ctx context.Context, src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, &ctxReader{ctx: ctx, r: srcFile}); err != nil {
		return err
	}

	if info, err := srcFile.Stat(); err == nil {
		os.Chtimes(dst, info.ModTime(), info.ModTime())
	}

	return dstFile.Sync()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
