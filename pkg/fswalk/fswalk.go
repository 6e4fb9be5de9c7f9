// Package fswalk implements the path-safe directory traversal shared by
// signing and verification: it rejects symlinks, hard links, oversized or
// overcounted trees, and path-traversal escapes before a single byte of
// untrusted file content is ever hashed.
package fswalk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// VaultDir is the reserved subdirectory name excluded from every walk and
// from integrity computation.
const VaultDir = ".vault"

const (
	// MaxFiles bounds the number of regular files a skill directory may
	// contain.
	MaxFiles = 10000
	// MaxFileSize bounds the size of any single file, in bytes (100 MiB).
	MaxFileSize = 100 * 1024 * 1024
	// MaxTotalSize bounds the sum of all file sizes, in bytes (500 MiB).
	MaxTotalSize = 500 * 1024 * 1024
)

// Context distinguishes install-time (fail-closed) from runtime (fail-open
// with limited relaxations) callers.
type Context int

const (
	ContextInstall Context = iota
	ContextRuntime
)

// Options configures a walk.
type Options struct {
	// Context selects which caller is walking; only ContextRuntime may
	// honor SkipHardlinkCheck.
	Context Context
	// SkipHardlinkCheck relaxes the hard-link rejection. Only effective
	// when Context == ContextRuntime; ignored at install time.
	SkipHardlinkCheck bool
}

// Entry describes one regular file discovered by Walk.
type Entry struct {
	// Path is the root-relative, forward-slash-normalized path.
	Path string
	// AbsPath is the absolute filesystem path to the file.
	AbsPath string
	// Size is the file size in bytes as reported by the entry's own stat,
	// taken at walk time; callers that hash read the file again without
	// re-checking its size.
	Size int64
}

// ErrorCode identifies the category of a walk failure.
type ErrorCode string

const (
	ErrSymlink  ErrorCode = "E_SYMLINK"
	ErrHardlink ErrorCode = "E_HARDLINK"
	ErrLimits   ErrorCode = "E_LIMITS"
	ErrTraversal ErrorCode = "E_INTEGRITY_MISMATCH"
)

// Error is a walk failure tagged with a stable code and, where applicable,
// the offending path.
type Error struct {
	Code ErrorCode
	Path string
	Msg  string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Msg, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Walk recurses root, returning a sorted, root-relative file list. It
// rejects symlinks unconditionally, rejects hard-linked regular files
// unless the caller is in runtime context with SkipHardlinkCheck set,
// enforces MaxFiles/MaxFileSize/MaxTotalSize (file-count check happens
// before the size check is allowed to fire, to bound worst-case work on a
// maliciously large tree), skips VaultDir entirely, and rejects any entry
// whose resolved path escapes root.
func Walk(root string, opts Options) ([]Entry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fswalk: resolve root: %w", err)
	}
	absRoot = filepath.Clean(absRoot)

	var entries []Entry
	fileCount := 0
	var totalSize int64

	walkErr := filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("fswalk: walk %s: %w", path, err)
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return fmt.Errorf("fswalk: relativize %s: %w", path, relErr)
		}
		if rel == "." {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == VaultDir {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are rejected unconditionally, including symlinks to
		// directories (os.DirEntry.Type() reports the link itself, not
		// its target, since WalkDir does not follow symlinks).
		if d.Type()&os.ModeSymlink != 0 {
			return &Error{Code: ErrSymlink, Path: slashRel, Msg: "symbolic link not permitted"}
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if err := checkTraversal(absRoot, path, slashRel); err != nil {
			return err
		}

		info, statErr := d.Info()
		if statErr != nil {
			return fmt.Errorf("fswalk: stat %s: %w", path, statErr)
		}

		if !(opts.Context == ContextRuntime && opts.SkipHardlinkCheck) {
			if linkCount(info) > 1 {
				return &Error{Code: ErrHardlink, Path: slashRel, Msg: "hard-linked file not permitted"}
			}
		}

		fileCount++
		if fileCount > MaxFiles {
			return &Error{Code: ErrLimits, Msg: fmt.Sprintf("file count exceeds limit of %d", MaxFiles)}
		}

		size := info.Size()
		if size > MaxFileSize {
			return &Error{Code: ErrLimits, Path: slashRel, Msg: fmt.Sprintf("file size exceeds limit of %d bytes", MaxFileSize)}
		}
		totalSize += size
		if totalSize > MaxTotalSize {
			return &Error{Code: ErrLimits, Msg: fmt.Sprintf("total size exceeds limit of %d bytes", MaxTotalSize)}
		}

		entries = append(entries, Entry{Path: slashRel, AbsPath: path, Size: size})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// checkTraversal resolves path against root and rejects it if it escapes
// the root after normalization, or if its root-relative form contains a
// leading ".." segment or is absolute.
func checkTraversal(absRoot, path, slashRel string) error {
	if filepath.IsAbs(slashRel) || strings.HasPrefix(slashRel, "../") || slashRel == ".." {
		return &Error{Code: ErrTraversal, Path: slashRel, Msg: "path escapes skill root"}
	}
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, absRoot+string(filepath.Separator)) && cleaned != absRoot {
		return &Error{Code: ErrTraversal, Path: slashRel, Msg: "resolved path escapes skill root"}
	}
	return nil
}

// NormalizePath validates a manifest-declared path against the same
// traversal rules Walk applies, without touching the filesystem — used by
// the integrity verifier to reject untrusted manifest keys before reading
// them.
func NormalizePath(root, declaredPath string) (absPath string, err error) {
	if filepath.IsAbs(declaredPath) {
		return "", &Error{Code: ErrTraversal, Path: declaredPath, Msg: "absolute path not permitted"}
	}
	for _, seg := range strings.Split(declaredPath, "/") {
		if seg == ".." {
			return "", &Error{Code: ErrTraversal, Path: declaredPath, Msg: "path contains .. segment"}
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("fswalk: resolve root: %w", err)
	}
	absRoot = filepath.Clean(absRoot)

	candidate := filepath.Clean(filepath.Join(absRoot, filepath.FromSlash(declaredPath)))
	if candidate != absRoot && !strings.HasPrefix(candidate, absRoot+string(filepath.Separator)) {
		return "", &Error{Code: ErrTraversal, Path: declaredPath, Msg: "resolved path escapes skill root"}
	}
	return candidate, nil
}
