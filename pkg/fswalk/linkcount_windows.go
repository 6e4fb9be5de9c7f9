//go:build windows

package fswalk

import "os"

// linkCount is not meaningfully exposed by os.FileInfo on Windows; hard
// links are rare enough there that callers rely on the symlink and
// traversal checks instead.
func linkCount(info os.FileInfo) uint64 {
	return 1
}
