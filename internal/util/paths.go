package util

import (
	"os"
	"path/filepath"
)

// SharePath returns the directory that engine-upload should read static
// content (the engine helper scripts and the nbdkit upload plugin) from.
// If ENGINE_UPLOAD_DIR is set, this path is $ENGINE_UPLOAD_DIR/share,
// otherwise it is /usr/share/engine-upload.
func SharePath(path ...string) string {
	varDir := os.Getenv("ENGINE_UPLOAD_DIR")
	usrDir := "/usr/share/engine-upload"
	if varDir != "" {
		usrDir = filepath.Join(varDir, "share")
	}

	items := []string{usrDir}
	items = append(items, path...)
	return filepath.Join(items...)
}

// CachePath returns the directory that engine-upload should use for transient
// working data. If ENGINE_UPLOAD_DIR is set, this path is
// $ENGINE_UPLOAD_DIR/cache, otherwise it is /var/cache/engine-upload.
func CachePath(path ...string) string {
	varDir := os.Getenv("ENGINE_UPLOAD_DIR")
	cacheDir := "/var/cache/engine-upload"
	if varDir != "" {
		cacheDir = filepath.Join(varDir, "cache")
	}

	items := []string{cacheDir}
	items = append(items, path...)
	return filepath.Join(items...)
}

// IsUnixSocket returns true if the given path is either a Unix socket
// or a symbolic link pointing at a Unix socket.
func IsUnixSocket(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeSocket) == os.ModeSocket
}
