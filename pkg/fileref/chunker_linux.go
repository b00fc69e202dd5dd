package fileref

import (
	"golang.org/x/sys/unix"
)

// seekData finds the next data region at or after off.
// Filesystems without hole detection report everything as data.
func seekData(fd int, off, size int64) (int64, bool, error) {
	if off >= size {
		return 0, false, nil
	}
	pos, err := unix.Seek(fd, off, unix.SEEK_DATA)
	switch err {
	case nil:
		if pos >= size {
			return 0, false, nil
		}
		return pos, true, nil
	case unix.ENXIO:
		return 0, false, nil
	case unix.EINVAL, unix.EOPNOTSUPP:
		return off, true, nil
	default:
		return 0, false, err
	}
}

// seekHole finds the end of the data region starting at off
func seekHole(fd int, off, size int64) (int64, error) {
	pos, err := unix.Seek(fd, off, unix.SEEK_HOLE)
	switch err {
	case nil:
		if pos > size {
			pos = size
		}
		return pos, nil
	case unix.ENXIO, unix.EINVAL, unix.EOPNOTSUPP:
		return size, nil
	default:
		return 0, err
	}
}
