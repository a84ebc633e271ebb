//go:build !windows

package scanner

import (
	"io/fs"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// platformRootInfo holds platform-specific root information
type platformRootInfo struct {
	dev uint64
}

// getPlatformRootInfo returns platform-specific info about the root path
func getPlatformRootInfo(path string) platformRootInfo {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return platformRootInfo{}
	}
	return platformRootInfo{dev: uint64(stat.Dev)}
}

// shouldSkipDir returns true if the directory should be skipped
func shouldSkipDir(path string, d fs.DirEntry, rootInfo platformRootInfo, seenItems *sync.Map) bool {
	info, err := d.Info()
	if err != nil {
		return false
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}

	// Skip if different filesystem (mount point)
	if uint64(stat.Dev) != rootInfo.dev {
		return true
	}

	// Skip if already seen this inode (firmlinks on macOS)
	if _, exists := seenItems.LoadOrStore(uint64(stat.Ino), true); exists {
		return true
	}

	return false
}

// isDuplicateLink reports whether a hard-linked file was already indexed
func isDuplicateLink(info fs.FileInfo, seenItems *sync.Map) bool {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat.Nlink <= 1 {
		return false
	}
	_, exists := seenItems.LoadOrStore(uint64(stat.Ino), true)
	return exists
}

// ownerIDs returns the numeric owner and group of an entry
func ownerIDs(info fs.FileInfo) (uid, gid string, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", "", false
	}
	return strconv.FormatUint(uint64(stat.Uid), 10), strconv.FormatUint(uint64(stat.Gid), 10), true
}
