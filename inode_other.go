//go:build !unix

package dupfind

import "io/fs"

type fileID struct {
	dev uint64
	ino uint64
}

func fileIdentity(fs.FileInfo) (fileID, bool) {
	return fileID{}, false
}
