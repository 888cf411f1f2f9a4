// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bundle turns finished jobs into what the caller receives: the
// single converted document when exactly one job succeeded, otherwise a
// ZIP archive of every successful output.
package bundle

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/docswap/pkg/types"
)

// ArchiveName is the filename used whenever results are bundled.
const ArchiveName = "converted_files.zip"

// Bundle selects the deliverable for jobs. Jobs that failed or produced an
// empty buffer are skipped. One success yields that artifact unchanged;
// zero or several yield ArchiveName. Entry names that collide get a
// " (n)" suffix before the extension.
func Bundle(jobs []*types.ConversionJob) (types.Artifact, error) {
	var outputs []types.Artifact
	for _, j := range jobs {
		if j == nil || !j.Succeeded() {
			continue
		}
		outputs = append(outputs, j.Output)
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return Archive(outputs)
}

// Archive zips artifacts into ArchiveName, in order.
func Archive(artifacts []types.Artifact) (types.Artifact, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := NewNamer()
	for _, a := range artifacts {
		if len(a.Data) == 0 {
			continue
		}
		hdr := &zip.FileHeader{
			Name:     names.Unique(a.Name),
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return types.Artifact{}, fmt.Errorf("adding %s: %w", hdr.Name, err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return types.Artifact{}, fmt.Errorf("writing %s: %w", hdr.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return types.Artifact{}, fmt.Errorf("closing archive: %w", err)
	}
	return types.Artifact{Name: ArchiveName, Data: buf.Bytes()}, nil
}

// Namer hands out unique, flat file names.
type Namer struct {
	seen map[string]bool
}

// NewNamer returns an empty Namer.
func NewNamer() *Namer {
	return &Namer{seen: make(map[string]bool)}
}

// Unique returns name reduced to its base, or the first free
// "base (n).ext" variant when it was already handed out. Comparison is
// case-insensitive so archives unpack cleanly on any filesystem.
func (n *Namer) Unique(name string) string {
	name = filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if name == "/" || name == "." {
		name = "document"
	}
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; n.seen[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
	n.seen[strings.ToLower(candidate)] = true
	return candidate
}

var errEmptyArtifact = errors.New("artifact has no data")

// WriteFile stores a in dir under its own (flattened) name using a
// temporary file and rename, so readers never see a partial document.
// It returns the destination path.
func WriteFile(dir string, a types.Artifact) (string, error) {
	if len(a.Data) == 0 {
		return "", fmt.Errorf("writing %s: %w", a.Name, errEmptyArtifact)
	}
	name := filepath.Base(filepath.Clean("/" + a.Name))
	if name == "/" || name == "." || name == ".." {
		return "", fmt.Errorf("writing %q: invalid name", a.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	dest := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	bw := bufio.NewWriterSize(tmp, 64<<10)
	if _, err := bw.Write(a.Data); err != nil {
		cleanup()
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("syncing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("chmod %s: %w", dest, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("renaming into %s: %w", dest, err)
	}
	return dest, nil
}
