//go:build windows

package scanner

import (
	"io/fs"
	"sync"
)

// platformRootInfo holds platform-specific root information
type platformRootInfo struct{}

// getPlatformRootInfo returns platform-specific info about the root path
func getPlatformRootInfo(path string) platformRootInfo {
	return platformRootInfo{}
}

// shouldSkipDir returns true if the directory should be skipped
// Drives are separate volumes on Windows, so there are no mount points to detect.
func shouldSkipDir(path string, d fs.DirEntry, rootInfo platformRootInfo, seenItems *sync.Map) bool {
	return false
}

// isDuplicateLink reports whether a hard-linked file was already indexed
func isDuplicateLink(info fs.FileInfo, seenItems *sync.Map) bool {
	return false
}

// ownerIDs is unavailable without security descriptors; entries carry no owner fields
func ownerIDs(info fs.FileInfo) (uid, gid string, ok bool) {
	return "", "", false
}
