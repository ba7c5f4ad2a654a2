package depmanager

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

func isArchive(url string) bool {
	return strings.HasSuffix(url, ".zip") || strings.HasSuffix(url, ".tar.xz")
}

// extract copies the wanted executables out of a downloaded release archive
// into destDir, matching entries by base name.
func extract(archivePath, url, destDir string, wanted []BinaryName) error {
	targets := make(map[string]struct{}, len(wanted))
	for _, bin := range wanted {
		targets[string(bin)] = struct{}{}
	}

	var (
		found int
		err   error
	)

	switch {
	case strings.HasSuffix(url, ".tar.xz"):
		found, err = extractTarXZ(archivePath, destDir, targets)
	case strings.HasSuffix(url, ".zip"):
		found, err = extractZip(archivePath, destDir, targets)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(url))
	}

	if err != nil {
		return err
	}

	if found != len(targets) {
		return fmt.Errorf("found %d of %d binaries in archive", found, len(targets))
	}

	return nil
}

func extractTarXZ(path, destDir string, targets map[string]struct{}) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open tar.xz: %w", err)
	}
	defer file.Close()

	xzReader, err := xz.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("create xz reader: %w", err)
	}

	tarReader := tar.NewReader(xzReader)
	found := 0

	for found < len(targets) {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return found, fmt.Errorf("read tar header: %w", err)
		}

		name := filepath.Base(header.Name)
		if _, ok := targets[name]; !ok || header.Typeflag != tar.TypeReg {
			continue
		}

		if err := writeExecutable(filepath.Join(destDir, name), tarReader); err != nil {
			return found, err
		}

		found++
	}

	return found, nil
}

func extractZip(path, destDir string, targets map[string]struct{}) (int, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	found := 0

	for _, file := range reader.File {
		name := filepath.Base(file.Name)
		if _, ok := targets[name]; !ok || file.FileInfo().IsDir() {
			continue
		}

		src, err := file.Open()
		if err != nil {
			return found, fmt.Errorf("open %s in zip: %w", name, err)
		}

		err = writeExecutable(filepath.Join(destDir, name), src)
		src.Close()

		if err != nil {
			return found, err
		}

		found++
	}

	return found, nil
}

func writeExecutable(dest string, src io.Reader) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dest), err)
	}

	_, err = io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}

	return nil
}
