package scanner

import (
	"io/fs"
	"os"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// Describe reads the non-digest keywords among keywords for the file at
// full, whose lstat result is info. Keywords that do not apply to the file
// (size on a directory, link on a regular file) are left out. The returned
// attributes are complete except for an unreadable link target, which is
// reported as the error.
func Describe(full string, info fs.FileInfo, keywords []string) (mtree.Attributes, error) {
	attrs := mtree.Attributes{}
	st := sysStat(info)
	mode := info.Mode()

	var linkErr error
	for _, k := range keywords {
		switch k {
		case mtree.KeywordType:
			attrs[k] = EntryType(mode)
		case mtree.KeywordMode:
			attrs[k] = PermBits(mode)
		case mtree.KeywordTime:
			attrs[k] = info.ModTime().UTC()
		case mtree.KeywordSize:
			if mode.IsRegular() {
				attrs[k] = info.Size()
			}
		case mtree.KeywordLink:
			if mode&fs.ModeSymlink != 0 {
				target, err := os.Readlink(full)
				if err != nil {
					linkErr = err
					continue
				}
				attrs[k] = target
			}
		case mtree.KeywordUid:
			if st.ok {
				attrs[k] = st.uid
			}
		case mtree.KeywordGid:
			if st.ok {
				attrs[k] = st.gid
			}
		case mtree.KeywordNlink:
			if st.ok {
				attrs[k] = st.nlink
			}
		case mtree.KeywordUname:
			if st.ok {
				attrs[k] = userName(st.uid)
			}
		case mtree.KeywordGname:
			if st.ok {
				attrs[k] = groupName(st.gid)
			}
		case mtree.KeywordDevice:
			if st.ok && mode&fs.ModeDevice != 0 {
				attrs[k] = mtree.NewDevice(deviceFormat, st.major, st.minor)
			}
		}
	}
	return attrs, linkErr
}

// EntryType maps a file mode onto a manifest type.
func EntryType(m fs.FileMode) mtree.EntryType {
	switch {
	case m.IsDir():
		return mtree.TypeDir
	case m&fs.ModeSymlink != 0:
		return mtree.TypeLink
	case m&fs.ModeNamedPipe != 0:
		return mtree.TypeFifo
	case m&fs.ModeSocket != 0:
		return mtree.TypeSocket
	case m&fs.ModeCharDevice != 0:
		return mtree.TypeChar
	case m&fs.ModeDevice != 0:
		return mtree.TypeBlock
	default:
		return mtree.TypeFile
	}
}

// PermBits returns the permission bits of m with setuid, setgid and
// sticky in their traditional octal positions.
func PermBits(m fs.FileMode) mtree.Mode {
	bits := mtree.Mode(m.Perm())
	if m&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		bits |= 0o1000
	}
	return bits
}
