package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// AudioVault owns the durable directory that finished recordings are moved
// into. Recorders write to a transient location (e.g. the OS temp dir); the
// vault takes ownership of the file once the note is submitted.
type AudioVault struct {
	dir string

	// Swapped in tests to simulate cross-device moves.
	rename func(oldpath, newpath string) error
	remove func(name string) error
}

// NewAudioVault creates dir if necessary and returns a vault rooted there.
func NewAudioVault(dir string) (*AudioVault, error) {
	if dir == "" {
		return nil, errors.New("store: audio directory must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("store: resolve %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("store: create %q: %w", abs, err)
	}
	return &AudioVault{dir: abs, rename: os.Rename, remove: os.Remove}, nil
}

// Dir returns the absolute vault directory.
func (v *AudioVault) Dir() string { return v.dir }

// Contains reports whether path already lives inside the vault.
func (v *AudioVault) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(v.dir, abs)
	return err == nil && !strings.HasPrefix(rel, "..") && rel != "."
}

// Persist moves the file at src into the vault under name (the original
// extension is kept) and returns the durable path. Files already inside the
// vault are returned unchanged. Across filesystems the file is copied; a
// source that cannot be removed afterwards is only logged, since the vault
// copy is already the durable one.
func (v *AudioVault) Persist(src, name string) (string, error) {
	if v.Contains(src) {
		return src, nil
	}
	if err := ValidateKey(name); err != nil {
		return "", err
	}
	dst := filepath.Join(v.dir, name+filepath.Ext(src))

	err := v.rename(src, dst)
	if err == nil {
		return dst, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "", fmt.Errorf("store: move %q: %w", src, err)
	}
	// Different filesystem: copy then drop the source.
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	if err := v.remove(src); err != nil {
		slog.Warn("audio copied but source not removed", "src", src, "dst", dst, "err", err)
	}
	return dst, nil
}

// Delete removes the file at path. A missing file is not an error.
func (v *AudioVault) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: delete audio %q: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("store: open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("store: create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("store: copy %q: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("store: close %q: %w", dst, err)
	}
	return nil
}
