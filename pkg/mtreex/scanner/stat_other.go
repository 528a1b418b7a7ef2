//go:build !unix

package scanner

import (
	"io/fs"
	"strconv"
)

const deviceFormat = "native"

type statInfo struct {
	ok           bool
	uid, gid     int64
	nlink        int64
	major, minor int64
}

// sysStat reports nothing on platforms without POSIX inodes; ownership and
// device keywords are left out of the manifest there.
func sysStat(fs.FileInfo) statInfo {
	return statInfo{}
}

func userName(uid int64) string {
	return strconv.FormatInt(uid, 10)
}

func groupName(gid int64) string {
	return strconv.FormatInt(gid, 10)
}
