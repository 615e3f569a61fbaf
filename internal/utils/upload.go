package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

var ErrBadFilename = errors.New("invalid upload filename")

// UploadName reduces a client-supplied filename to its base name.  Files are
// stored under their original name, so a later upload with the same name
// replaces the earlier file.
func UploadName(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		return "", ErrBadFilename
	}
	return name, nil
}

// SaveUpload copies fh into dir/<original filename>.  The content is written
// to a temp file in dir first and renamed into place only after a successful
// close, so a failed upload never leaves a truncated file under the final name.
func SaveUpload(fh *multipart.FileHeader, dir string) (string, error) {
	name, err := UploadName(fh.Filename)
	if err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := WriteFileAtomic(filepath.Join(dir, name), src); err != nil {
		return "", err
	}
	return name, nil
}

// WriteFileAtomic streams r into path via a sibling temp file.
func WriteFileAtomic(path string, r io.Reader) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, r); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close upload: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod upload: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename upload: %w", err)
	}
	return nil
}
