// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scratch manages the private temporary directory each upload
// batch works in. The directory and everything under it are removed by
// Close, whether the batch succeeded or not.
package scratch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// fallbackName replaces names that sanitize to nothing.
const fallbackName = "upload"

// Dir is one batch's scratch directory.
type Dir struct {
	Path string

	names map[string]bool
}

// New creates docswap-<uuid> under base, or under the OS temp dir when base
// is empty. The directory is readable only by the current user.
func New(base string) (*Dir, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch base %s: %w", base, err)
	}
	path := filepath.Join(base, "docswap-"+uuid.NewString())
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	return &Dir{Path: path, names: make(map[string]bool)}, nil
}

// Save copies r into the directory under the sanitized form of name and
// returns the stored name. Repeated names get a numeric prefix so no
// upload overwrites another.
func (d *Dir) Save(name string, r io.Reader) (string, error) {
	stored := SecureFilename(name)
	if stored == "" {
		stored = fallbackName
	}
	base := stored
	for i := 1; d.names[stored]; i++ {
		stored = fmt.Sprintf("%d_%s", i, base)
	}
	d.names[stored] = true

	f, err := os.OpenFile(filepath.Join(d.Path, stored), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("saving %s: %w", stored, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("saving %s: %w", stored, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("saving %s: %w", stored, err)
	}
	return stored, nil
}

// Open returns a reader for a previously saved file.
func (d *Dir) Open(stored string) (*os.File, error) {
	if stored != filepath.Base(stored) {
		return nil, fmt.Errorf("opening %q: not a scratch file name", stored)
	}
	return os.Open(filepath.Join(d.Path, stored))
}

// ReadFile returns the contents of a previously saved file.
func (d *Dir) ReadFile(stored string) ([]byte, error) {
	f, err := d.Open(stored)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Close removes the directory tree. It is safe to call more than once.
func (d *Dir) Close() error {
	if d == nil || d.Path == "" {
		return nil
	}
	if err := os.RemoveAll(d.Path); err != nil {
		return fmt.Errorf("removing scratch dir %s: %w", d.Path, err)
	}
	return nil
}

// SecureFilename reduces name to a safe ASCII file name: compatibility
// decomposition drops accents, path separators and whitespace runs become
// single underscores, anything outside [A-Za-z0-9_.-] is removed, and
// leading or trailing dots and underscores are trimmed. Names whose stem is
// a Windows device name (CON, NUL, COM1...) get a leading underscore. The
// result may be empty.
func SecureFilename(name string) string {
	var ascii strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			ascii.WriteRune(r)
		}
	}
	s := strings.NewReplacer("/", " ", "\\", " ").Replace(ascii.String())
	s = strings.Join(strings.Fields(s), "_")

	var out strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			out.WriteRune(r)
		}
	}
	s = strings.Trim(out.String(), "._")
	if stem, _, _ := strings.Cut(s, "."); deviceNames[strings.ToUpper(stem)] {
		s = "_" + s
	}
	return s
}

// deviceNames are reserved by Windows regardless of extension.
var deviceNames = func() map[string]bool {
	m := map[string]bool{"CON": true, "PRN": true, "AUX": true, "NUL": true}
	for i := 0; i <= 9; i++ {
		m[fmt.Sprintf("COM%d", i)] = true
		m[fmt.Sprintf("LPT%d", i)] = true
	}
	return m
}()
