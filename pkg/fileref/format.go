package fileref

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// String returns the path of the object, and the target of a symlink
func (f *Fileref) String() string {
	if f.Kind() == Symlink {
		return f.Path + " -> " + string(f.Data)
	}
	return f.Path
}

// Format renders the fileref as one listing line. The long form mimics ls -l
// and appends the encoding of regular files.
func (f *Fileref) Format(long bool) string {
	if !long {
		return f.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %10d %s %s",
		f.FileMode(), f.Size, time.Unix(f.Mtime, 0).UTC().Format("2006-01-02 15:04:05"), f.String())

	if f.Kind() == RegularFile {
		switch f.Encoding {
		case EncodingBlobvec:
			var stored int64
			for _, e := range f.Blobvec {
				stored += e.Length
			}
			fmt.Fprintf(&b, " [blobvec: %d blobs, %s]", len(f.Blobvec), units.BytesSize(float64(stored)))
		case EncodingUTF8, EncodingBase64:
			fmt.Fprintf(&b, " [%s]", f.Encoding)
		}
	}
	return b.String()
}
