package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// copyFile copies src over dst atomically and returns the number of bytes
// written. When dst already holds the same bytes it is left alone and
// changed is false; only the permission bits are brought in line.
func copyFile(src, dst string) (written int64, changed bool, err error) {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return 0, false, err
	}
	perm := srcInfo.Mode().Perm()

	same, err := sameContent(src, dst, srcInfo.Size())
	if err != nil {
		return 0, false, err
	}
	if same {
		if dstInfo, err := os.Lstat(dst); err == nil && dstInfo.Mode().Perm() != perm {
			if err := os.Chmod(dst, perm); err != nil {
				return 0, false, fmt.Errorf("chmod: %w", err)
			}
		}
		return 0, false, nil
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".ccsync-*")
	if err != nil {
		return 0, false, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if written, err = io.Copy(tmp, in); err != nil {
		return 0, false, err
	}
	if err = tmp.Sync(); err != nil {
		return 0, false, err
	}
	if err = tmp.Close(); err != nil {
		return 0, false, err
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return 0, false, err
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return 0, false, err
	}
	return written, true, nil
}

// checkDestParents fails with ErrDestEscapes when any existing directory
// between destDir and dst is a symbolic link. destDir itself may be one.
func checkDestParents(destDir, dst string) error {
	rel, err := filepath.Rel(destDir, filepath.Dir(dst))
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	cur := destDir
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrDestEscapes, cur)
		}
	}
	return nil
}

// sameContent reports whether dst exists as a regular file with exactly the
// bytes of src. A size mismatch short-circuits before any reads.
func sameContent(src, dst string, srcSize int64) (bool, error) {
	dstInfo, err := os.Lstat(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !dstInfo.Mode().IsRegular() || dstInfo.Size() != srcSize {
		return false, nil
	}

	a, err := fileDigest(src)
	if err != nil {
		return false, err
	}
	b, err := fileDigest(dst)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// fileDigest returns the SHA-256 digest of a file's contents.
func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// digestHex is fileDigest rendered as lowercase hex.
func digestHex(path string) (string, error) {
	sum, err := fileDigest(path)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}
