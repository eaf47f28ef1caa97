package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"foodlog"
)

// FileStore writes media into a local directory.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Store writes data to a hidden temp file in the target directory and renames
// it into place, so a failed write never leaves a file under the final name.
func (s *FileStore) Store(ctx context.Context, data []byte, ext string) (Ref, error) {
	if err := validate(data); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", foodlog.ErrStorage, err)
	}

	dir, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: resolve media dir: %w", foodlog.ErrStorage, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create media dir: %w", foodlog.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", foodlog.ErrStorage, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("%w: write media: %w", foodlog.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("%w: sync media: %w", foodlog.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close media: %w", foodlog.ErrStorage, err)
	}

	target := filepath.Join(dir, NewName(ext))
	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("%w: commit media: %w", foodlog.ErrStorage, err)
	}
	committed = true

	slog.Info("MEDIA: Stored file", "path", target, "bytes", len(data))
	return Ref(target), nil
}
