// Package static maps request paths onto files below a document root.
//
// Resolution canonicalizes both the root and the candidate path (symlinks and
// ".." segments resolved) and refuses anything that lands outside the root
// before the file is opened.
package static

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotFound  = errors.New("file not found")
	ErrForbidden = errors.New("path outside document root")
)

// Containment selects how a canonical path is checked against the root.
type Containment int

const (
	// ContainSegment requires the path to be the root itself or to continue
	// with a separator after it.
	ContainSegment Containment = iota

	// ContainPrefix is a plain string prefix test. A sibling such as
	// /srv/www-secrets passes for the root /srv/www.
	ContainPrefix
)

// ParseContainment maps a config value to a Containment mode.
func ParseContainment(s string) (Containment, error) {
	switch strings.ToLower(s) {
	case "", "segment":
		return ContainSegment, nil
	case "prefix":
		return ContainPrefix, nil
	default:
		return 0, fmt.Errorf("unknown containment mode %q", s)
	}
}

func (c Containment) String() string {
	if c == ContainPrefix {
		return "prefix"
	}
	return "segment"
}

// Options tunes a Resolver.
type Options struct {
	Containment Containment

	// SniffUnknown detects the content type from the file head when the
	// extension table has no entry.
	SniffUnknown bool
}

// Resolver resolves request paths against a fixed document root. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	root string
	opts Options
}

func NewResolver(root string, opts Options) *Resolver {
	return &Resolver{root: root, opts: opts}
}

// Root returns the document root as configured.
func (r *Resolver) Root() string {
	return r.root
}

// Containment returns the rule used to keep targets inside the root.
func (r *Resolver) Containment() Containment {
	return r.opts.Containment
}

// ResolvedFile is an opened file inside the document root. The caller must
// Close it.
type ResolvedFile struct {
	Path     string
	Size     int64
	MimeType string

	file *os.File
}

func (f *ResolvedFile) Read(p []byte) (int, error) {
	return f.file.Read(p)
}

func (f *ResolvedFile) Close() error {
	return f.file.Close()
}

// Resolve turns a request path into an opened file. The path is appended to
// the root verbatim; no URL decoding takes place. It returns an error
// wrapping ErrForbidden when the canonical path escapes the root and one
// wrapping ErrNotFound when the file cannot be canonicalized or opened.
func (r *Resolver) Resolve(requestPath string) (*ResolvedFile, error) {
	if requestPath == "/" {
		requestPath = "/index.html"
	}
	candidate := r.root + requestPath

	root, err := canonicalize(r.root)
	if err != nil {
		return nil, fmt.Errorf("%w: document root: %v", ErrNotFound, err)
	}
	target, err := canonicalize(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if !r.contains(root, target) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, requestPath)
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	// Directories open fine on most systems but are never served.
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, requestPath)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seek: %v", ErrNotFound, err)
	}

	mt := MimeType(candidate)
	if mt == DefaultMimeType && r.opts.SniffUnknown && size > 0 {
		mt, err = sniff(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: sniff: %v", ErrNotFound, err)
		}
	}

	return &ResolvedFile{
		Path:     target,
		Size:     size,
		MimeType: mt,
		file:     f,
	}, nil
}

func (r *Resolver) contains(root, target string) bool {
	if r.opts.Containment == ContainPrefix {
		return strings.HasPrefix(target, root)
	}

	if target == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

// canonicalize resolves symlinks and ".." and returns an absolute path. The
// path must exist.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

// sniff detects the content type from the head of f and rewinds it.
func sniff(f *os.File) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}
