package toolcache

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Cache is a host-level directory tree storing extracted tool artifacts
// keyed by (tool, version, architecture). An entry is only valid once
// its completion marker exists, so a crashed extract is treated as a
// miss and written again. Entries are immutable after that: a hit is
// returned without revalidating its contents.
type Cache struct {
	root string
}

func New(root string) *Cache {
	return &Cache{root: root}
}

// version keys are stored without the release tag prefix
func cacheVersion(version string) string {
	return strings.TrimPrefix(version, "v")
}

func (c *Cache) entryDir(tool, version, arch string) string {
	return filepath.Join(c.root, tool, cacheVersion(version), arch)
}

func (c *Cache) markerFile(tool, version, arch string) string {
	return c.entryDir(tool, version, arch) + ".complete"
}

// TempDir creates a scratch directory on the same filesystem as the
// cache, so a finished extract can be renamed into place atomically.
func (c *Cache) TempDir() (string, error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache root: %w", err)
	}
	dir, err := os.MkdirTemp(c.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	return dir, nil
}

// Find returns the directory of a cached entry, or "" on a miss. A miss
// is not an error.
func (c *Cache) Find(tool, version, arch string) string {
	dir := c.entryDir(tool, version, arch)
	if _, err := os.Stat(c.markerFile(tool, version, arch)); err != nil {
		return ""
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return ""
	}
	return dir
}

// Add moves srcDir into the cache under the given key and marks the
// entry complete. Adding a key that already exists is harmless: the
// existing entry wins and srcDir is discarded.
func (c *Cache) Add(srcDir, tool, version, arch string) (string, error) {
	if dir := c.Find(tool, version, arch); dir != "" {
		_ = os.RemoveAll(srcDir)
		return dir, nil
	}
	dir := c.entryDir(tool, version, arch)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	// leftover from an interrupted extract
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear incomplete cache entry: %w", err)
	}
	if err := os.Rename(srcDir, dir); err != nil {
		return "", fmt.Errorf("failed to move artifact into cache: %w", err)
	}
	if err := os.WriteFile(c.markerFile(tool, version, arch), nil, 0o644); err != nil {
		return "", fmt.Errorf("failed to write cache marker: %w", err)
	}
	return dir, nil
}

// ExtractTarGz unpacks a gzip-compressed tar stream into dst, which must
// already exist. Entries escaping dst are rejected.
func ExtractTarGz(r io.Reader, dst string) error {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		target, err := safeJoin(dst, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := extractFile(tarReader, target, header.FileInfo().Mode()); err != nil {
				return fmt.Errorf("failed to extract %s: %w", header.Name, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", header.Name, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", header.Name, err)
			}
		}
	}
}

func extractFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func safeJoin(dst, name string) (string, error) {
	target := filepath.Join(dst, name)
	if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) && target != filepath.Clean(dst) {
		return "", fmt.Errorf("archive entry %s escapes extraction directory", name)
	}
	return target, nil
}
