//go:build !unix

package tailer

import "os"

// fileID falls back to the path on platforms without inode information.
// Replacement of the file behind the same path is then detected by the
// size-shrink heuristic in the poll loop.
func fileID(path string, _ os.FileInfo) string {
	return path
}
