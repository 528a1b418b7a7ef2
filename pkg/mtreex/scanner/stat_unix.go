//go:build unix

package scanner

import (
	"io/fs"
	"os/user"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// deviceFormat names the device number encoding written for devices.
const deviceFormat = "native"

// statInfo holds the inode fields not exposed by fs.FileInfo.
type statInfo struct {
	ok           bool
	uid, gid     int64
	nlink        int64
	major, minor int64
}

// sysStat extracts ownership, link count and device numbers from info.
func sysStat(info fs.FileInfo) statInfo {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return statInfo{}
	}
	rdev := uint64(st.Rdev)
	return statInfo{
		ok:    true,
		uid:   int64(st.Uid),
		gid:   int64(st.Gid),
		nlink: int64(st.Nlink),
		major: int64(unix.Major(rdev)),
		minor: int64(unix.Minor(rdev)),
	}
}

var (
	userNames  sync.Map // int64 -> string
	groupNames sync.Map // int64 -> string
)

// userName resolves a UID to a user name.
// Falls back to the decimal UID if it cannot be resolved.
func userName(uid int64) string {
	if v, ok := userNames.Load(uid); ok {
		return v.(string)
	}
	id := strconv.FormatInt(uid, 10)
	name := id
	if u, err := user.LookupId(id); err == nil {
		name = u.Username
	}
	userNames.Store(uid, name)
	return name
}

// groupName resolves a GID to a group name.
// Falls back to the decimal GID if it cannot be resolved.
func groupName(gid int64) string {
	if v, ok := groupNames.Load(gid); ok {
		return v.(string)
	}
	id := strconv.FormatInt(gid, 10)
	name := id
	if g, err := user.LookupGroupId(id); err == nil {
		name = g.Name
	}
	groupNames.Store(gid, name)
	return name
}
