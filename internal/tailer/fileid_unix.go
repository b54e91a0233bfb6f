//go:build unix

package tailer

import (
	"fmt"
	"os"
	"syscall"
)

// fileID derives a stable identity for the file behind path. Device and
// inode survive renames but not replacement, which is exactly the rotation
// signal the engine needs.
func fileID(path string, info os.FileInfo) string {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return fmt.Sprintf("%s dev=%d ino=%d", path, st.Dev, st.Ino)
	}
	return path
}
