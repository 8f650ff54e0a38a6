package editor

import (
	"os"
	"path/filepath"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// ErrCodeSourceIO marks failures reading or writing a component file.
const ErrCodeSourceIO = "ERR_SOURCE_IO"

// ReadFile loads a component file.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.NewIOError(ErrCodeSourceIO, "cannot read "+path, err)
	}

	return string(data), nil
}

// WriteFile replaces a component file atomically, keeping its permissions.
func WriteFile(path, source string) error {
	fail := func(err error) error {
		return apperrors.NewIOError(ErrCodeSourceIO, "cannot write "+path, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}

	return nil
}
