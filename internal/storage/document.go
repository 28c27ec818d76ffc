package storage

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2/maybe"
	"github.com/pkg/errors"
)

// ErrNotExist is returned when a document is absent
var ErrNotExist = os.ErrNotExist

// Exists reports whether path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadDocument decodes the document at path into v
func ReadDocument(codec Codec, path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", filepath.Base(path))
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// WriteDocument encodes v and replaces path atomically
func WriteDocument(codec Codec, path string, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return WriteFileAtomic(path, data, 0o644)
}

// WriteFileAtomic replaces path with data through a synced temp file in the same
// directory. A file that already exists keeps its permissions; perm applies to new files.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}
	if err := maybe.WriteFile(path, data, perm); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
