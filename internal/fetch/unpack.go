package fetch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/logging"
)

// Unpack extracts a zip archive into {dir of archive}/{dirName} and returns
// that directory. dirName defaults to the archive name without ".zip".
// The archive is removed only after every entry was extracted.
func Unpack(archive, dirName string) (string, error) {
	const op = "unpack"
	if dirName == "" {
		dirName = strings.TrimSuffix(filepath.Base(archive), ".zip")
	}
	dest := filepath.Join(filepath.Dir(archive), dirName)
	log := logging.For("fetch").WithField("archive", archive)

	if err := extractZip(archive, dest); err != nil {
		return "", err
	}

	if err := os.Remove(archive); err != nil {
		return "", lerrors.E(op, lerrors.ErrIO, archive, err)
	}
	log.WithField("dest", dest).Info("unpacked")
	return dest, nil
}

func extractZip(archive, dest string) error {
	const op = "unpack"
	r, err := zip.OpenReader(archive)
	if err != nil {
		if os.IsNotExist(err) {
			return lerrors.E(op, lerrors.ErrNotFound, archive, err)
		}
		return lerrors.E(op, lerrors.ErrArchive, archive, err)
	}
	defer func() { _ = r.Close() }()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return lerrors.E(op, lerrors.ErrIO, dest, err)
	}

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return lerrors.E(op, lerrors.ErrArchive, archive, err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return lerrors.E(op, lerrors.ErrIO, target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return lerrors.E(op, lerrors.ErrIO, target, err)
		}

		rc, err := f.Open()
		if err != nil {
			return lerrors.E(op, lerrors.ErrArchive, f.Name, err)
		}
		err = extractFile(rc, target, f.Mode())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// safeJoin rejects entries that would land outside dest.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("absolute path in archive: %q", name)
	}
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes destination: %q", name)
	}
	return target, nil
}

// extractFile writes a file to disk.
func extractFile(src io.Reader, destPath string, mode os.FileMode) error {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return lerrors.E("unpack", lerrors.ErrIO, destPath, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return lerrors.E("unpack", lerrors.ErrIO, destPath, writeErr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lerrors.E("unpack", lerrors.ErrArchive, destPath, err)
		}
	}
	if err := f.Close(); err != nil {
		return lerrors.E("unpack", lerrors.ErrIO, destPath, err)
	}
	return nil
}
