//go:build unix

package prereq

import "golang.org/x/sys/unix"

// freeDiskSpace returns the bytes available to unprivileged users on the
// filesystem containing path.
func freeDiskSpace(path string) (uint64, error) {
	if path == "" {
		path = "."
	}

	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
