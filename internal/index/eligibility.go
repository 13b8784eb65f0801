package index

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docdex/internal/config"
)

// Skip reasons recorded in metrics and logs.
const (
	ReasonIneligible = "ineligible"
	ReasonTooLarge   = "too_large"
	ReasonSymlink    = "symlink"
	ReasonUnreadable = "unreadable"
)

// Eligibility decides which files are indexed. The same predicate is used
// by full scans, watcher events and the watcher's own filtering, so a file
// can never be indexed by one path and rejected by another.
type Eligibility struct {
	extensions  map[string]struct{}
	excludeDirs map[string]struct{}
	prefixes    []string
	suffixes    []string
	maxFileSize int64
}

// NewEligibility builds the predicate from the paths configuration.
func NewEligibility(cfg config.PathsConfig) *Eligibility {
	e := &Eligibility{
		extensions:  make(map[string]struct{}, len(cfg.Extensions)),
		excludeDirs: make(map[string]struct{}, len(cfg.ExcludeDirs)),
		prefixes:    cfg.IgnorePrefixes,
		suffixes:    cfg.IgnoreSuffixes,
		maxFileSize: cfg.MaxFileSize,
	}
	for _, ext := range cfg.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.extensions[ext] = struct{}{}
	}
	for _, d := range cfg.ExcludeDirs {
		e.excludeDirs[d] = struct{}{}
	}
	return e
}

// MaxFileSize is the largest file, in bytes, that is indexed. Zero means
// no limit.
func (e *Eligibility) MaxFileSize() int64 { return e.maxFileSize }

// IgnoreDir reports whether the directory at path is never descended into.
func (e *Eligibility) IgnoreDir(path string) bool {
	name := filepath.Base(path)
	if _, ok := e.excludeDirs[name]; ok {
		return true
	}
	return e.hiddenName(name)
}

// IgnoreFile reports whether the file at path is not indexable by name:
// hidden or temporary, or outside the extension allow-list.
func (e *Eligibility) IgnoreFile(path string) bool {
	name := filepath.Base(path)
	if e.hiddenName(name) {
		return true
	}
	for _, suffix := range e.suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	_, ok := e.extensions[strings.ToLower(filepath.Ext(name))]
	return !ok
}

func (e *Eligibility) hiddenName(name string) bool {
	for _, prefix := range e.prefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// SkipReason returns why the file at path with info must not be indexed,
// or "" when it is eligible. path must lie under root; every directory
// between root and path is checked as well.
func (e *Eligibility) SkipReason(root, path string, info fs.FileInfo) string {
	if info.Mode()&fs.ModeSymlink != 0 {
		return ReasonSymlink
	}
	if !info.Mode().IsRegular() || e.IgnoreFile(path) || e.excludedAncestor(root, path) {
		return ReasonIneligible
	}
	if e.maxFileSize > 0 && info.Size() > e.maxFileSize {
		return ReasonTooLarge
	}
	return ""
}

func (e *Eligibility) excludedAncestor(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	if rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if e.IgnoreDir(part) {
			return true
		}
	}
	return false
}

// Walk calls fn for every candidate file under root in lexical order.
// Excluded directories are pruned, symlinks are never followed, and files
// failing IgnoreFile are not reported. Size limits are left to the caller,
// which has to stat the file anyway. Unreadable directories are skipped.
func (e *Eligibility) Walk(ctx context.Context, root string, fn func(path string) error) error {
	return e.WalkReporting(ctx, root, fn, nil)
}

// WalkReporting is Walk that also calls unreadable, when non-nil, for every
// entry below root that could not be read. Nothing under such a directory
// is reported to fn on this pass.
func (e *Eligibility) WalkReporting(ctx context.Context, root string, fn func(path string) error, unreadable func(path string, err error)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d == nil || path == root {
				return err
			}
			if unreadable != nil {
				unreadable(path, err)
			}
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if path != root && e.IgnoreDir(path) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || e.IgnoreFile(path) {
			return nil
		}
		return fn(path)
	})
}
