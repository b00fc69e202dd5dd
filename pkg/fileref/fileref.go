// Copyright © 2018 One Concern

package fileref

import (
	"os"
	"strings"

	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"golang.org/x/sys/unix"
)

// Version of the fileref object format
const Version = 1

// NamespaceSeparator separates a namespace from a symlink target
const NamespaceSeparator = "::"

// Kind of file system object
type Kind uint8

// Supported kinds
const (
	KindUnknown Kind = iota
	RegularFile
	Symlink
	Directory
)

func (k Kind) String() string {
	switch k {
	case RegularFile:
		return "file"
	case Symlink:
		return "symlink"
	case Directory:
		return "directory"
	default:
		return "unknown"
	}
}

// KindOf derives the kind from the type bits of a unix mode
func KindOf(mode uint32) Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return RegularFile
	case unix.S_IFLNK:
		return Symlink
	case unix.S_IFDIR:
		return Directory
	default:
		return KindUnknown
	}
}

// Encoding of the content of a fileref
type Encoding uint8

// Encodings
const (
	EncodingNone Encoding = iota
	EncodingUTF8
	EncodingBase64
	EncodingBlobvec
)

func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf-8"
	case EncodingBase64:
		return "base64"
	case EncodingBlobvec:
		return "blobvec"
	default:
		return ""
	}
}

func parseEncoding(s string) (Encoding, bool) {
	switch s {
	case "":
		return EncodingNone, true
	case "utf-8":
		return EncodingUTF8, true
	case "base64":
		return EncodingBase64, true
	case "blobvec":
		return EncodingBlobvec, true
	default:
		return EncodingNone, false
	}
}

// BlobvecEntry describes one chunk of a regular file
type BlobvecEntry struct {
	Offset int64
	Length int64
	ID     digest.ID
}

// End offset of the chunk
func (e BlobvecEntry) End() int64 {
	return e.Offset + e.Length
}

// Fileref describes one file system object.
//
// Data holds the raw inline content: the target of a symlink, or the
// content of a small regular file. Blobvec is only set with EncodingBlobvec.
type Fileref struct {
	Path     string
	Size     int64
	Mtime    int64
	Ctime    int64
	Mode     uint32
	Encoding Encoding
	Data     []byte
	Blobvec  []BlobvecEntry
}

// Kind of the object, from its mode
func (f *Fileref) Kind() Kind {
	return KindOf(f.Mode)
}

// Perm returns the permission bits, including setuid, setgid and sticky bits
func (f *Fileref) Perm() uint32 {
	return f.Mode & 07777
}

// FileMode converts the unix mode to an os.FileMode
func (f *Fileref) FileMode() os.FileMode {
	m := os.FileMode(f.Mode & 0777)
	switch f.Kind() {
	case Directory:
		m |= os.ModeDir
	case Symlink:
		m |= os.ModeSymlink
	}
	if f.Mode&unix.S_ISUID != 0 {
		m |= os.ModeSetuid
	}
	if f.Mode&unix.S_ISGID != 0 {
		m |= os.ModeSetgid
	}
	if f.Mode&unix.S_ISVTX != 0 {
		m |= os.ModeSticky
	}
	return m
}

// SymlinkTarget returns the link target, without its namespace prefix
func (f *Fileref) SymlinkTarget() string {
	_, target := SplitNamespace(string(f.Data))
	return target
}

// Namespace of a symlink target, if any
func (f *Fileref) Namespace() string {
	ns, _ := SplitNamespace(string(f.Data))
	return ns
}

// SplitNamespace splits "ns::target" into its namespace and target
func SplitNamespace(s string) (string, string) {
	if i := strings.Index(s, NamespaceSeparator); i >= 0 {
		return s[:i], s[i+len(NamespaceSeparator):]
	}
	return "", s
}

// CleanPath strips leading slashes. An empty path becomes ".".
func CleanPath(p string) string {
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// IDs returns the content ids of the blobvec, in order
func (f *Fileref) IDs() []digest.ID {
	ids := make([]digest.ID, len(f.Blobvec))
	for i, e := range f.Blobvec {
		ids[i] = e.ID
	}
	return ids
}

// Validate the fileref against the object schema.
// Violations are reported as status.ErrProtocol.
func (f *Fileref) Validate() error {
	if f.Path == "" {
		return status.ErrProtocol.Wrapf("missing path")
	}
	if f.Size < 0 {
		return status.Pathf(status.ErrProtocol, f.Path, "negative size %d", f.Size)
	}

	switch f.Kind() {
	case Directory:
		if f.Encoding != EncodingNone || len(f.Data) > 0 || len(f.Blobvec) > 0 {
			return status.Pathf(status.ErrProtocol, f.Path, "directory carries data")
		}
	case Symlink:
		if f.Encoding != EncodingUTF8 && f.Encoding != EncodingBase64 {
			return status.Pathf(status.ErrProtocol, f.Path, "symlink without target")
		}
		if len(f.Blobvec) > 0 {
			return status.Pathf(status.ErrProtocol, f.Path, "symlink carries a blobvec")
		}
	case RegularFile:
		switch f.Encoding {
		case EncodingNone:
			if len(f.Data) > 0 || len(f.Blobvec) > 0 {
				return status.Pathf(status.ErrProtocol, f.Path, "data without encoding")
			}
		case EncodingUTF8, EncodingBase64:
			if len(f.Blobvec) > 0 {
				return status.Pathf(status.ErrProtocol, f.Path, "both inline data and blobvec")
			}
			if int64(len(f.Data)) != f.Size {
				return status.Pathf(status.ErrProtocol, f.Path, "inline data has %d bytes, size is %d", len(f.Data), f.Size)
			}
		case EncodingBlobvec:
			if len(f.Data) > 0 {
				return status.Pathf(status.ErrProtocol, f.Path, "both inline data and blobvec")
			}
			return validateBlobvec(f.Path, f.Size, f.Blobvec)
		}
	default:
		return status.Pathf(status.ErrProtocol, f.Path, "unsupported mode %o", f.Mode)
	}
	return nil
}

func validateBlobvec(path string, size int64, entries []BlobvecEntry) error {
	if len(entries) == 0 {
		return status.Pathf(status.ErrProtocol, path, "empty blobvec")
	}
	var end int64
	for i, e := range entries {
		if e.Offset < end || e.Length <= 0 {
			return status.Pathf(status.ErrProtocol, path, "blobvec entry %d at %d overlaps or is empty", i, e.Offset)
		}
		if e.Offset > size || e.Length > size-e.Offset {
			return status.Pathf(status.ErrProtocol, path, "blobvec entry %d at %d of length %d goes beyond size %d", i, e.Offset, e.Length, size)
		}
		if !digest.Valid(string(e.ID)) {
			return status.Pathf(status.ErrProtocol, path, "blobvec entry %d has invalid content id %q", i, e.ID)
		}
		end = e.End()
	}
	return nil
}
