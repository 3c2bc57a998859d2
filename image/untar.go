package image

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// untar extracts r (an uncompressed tar stream) into dir, preserving
// ownership, mode, mtimes, and extended attributes. dir must already exist.
func untar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target := filepath.Join(dir, filepath.Clean(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := extractDir(target, hdr); err != nil {
				return fmt.Errorf("extract dir %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			if err := extractSymlink(target, hdr); err != nil {
				return fmt.Errorf("extract symlink %s: %w", hdr.Name, err)
			}
		case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
			if err := extractDev(target, hdr); err != nil {
				return fmt.Errorf("extract device %s: %w", hdr.Name, err)
			}
		default:
			if err := extractReg(target, hdr, tr); err != nil {
				return fmt.Errorf("extract file %s: %w", hdr.Name, err)
			}
		}
	}
}

func setXattrs(path string, xattrs map[string]string) error {
	for attr, data := range xattrs {
		if err := unix.Setxattr(path, attr, []byte(data), 0); err != nil {
			return fmt.Errorf("setxattr %s: %w", attr, err)
		}
	}
	return nil
}

func extractDir(path string, hdr *tar.Header) error {
	fi := hdr.FileInfo()
	if err := os.MkdirAll(path, fi.Mode()); err != nil {
		return err
	}
	if err := os.Chown(path, hdr.Uid, hdr.Gid); err != nil && !os.IsPermission(err) {
		return err
	}
	if err := setXattrs(path, hdr.Xattrs); err != nil { //nolint:staticcheck // hdr.Xattrs populated by archive/tar
		return err
	}
	return os.Chtimes(path, time.Now(), fi.ModTime())
}

func extractReg(path string, hdr *tar.Header, r *tar.Reader) error {
	fi := hdr.FileInfo()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode()) //nolint:gosec // path derived from validated layer store
	if err != nil {
		return err
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return err
	}
	if n != hdr.Size {
		_ = f.Close()
		return fmt.Errorf("short write: expected %d bytes, wrote %d", hdr.Size, n)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Chown(path, hdr.Uid, hdr.Gid); err != nil && !os.IsPermission(err) {
		return err
	}
	if err := setXattrs(path, hdr.Xattrs); err != nil { //nolint:staticcheck
		return err
	}
	return os.Chtimes(path, fi.ModTime(), fi.ModTime())
}

func extractSymlink(path string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(hdr.Linkname, path); err != nil {
		return err
	}
	return os.Lchown(path, hdr.Uid, hdr.Gid)
}

func extractDev(path string, hdr *tar.Header) error {
	fi := hdr.FileInfo()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_EXCL|os.O_WRONLY|os.O_CREATE, fi.Mode()) //nolint:gosec // synthetic device placeholder
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chown(path, hdr.Uid, hdr.Gid)
}
