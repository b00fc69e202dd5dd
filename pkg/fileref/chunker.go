// Copyright © 2018 One Concern

package fileref

import (
	"github.com/oneconcern/fileref/pkg/digest"
)

// Chunk splits the data regions of an open file into blobvec entries of
// at most chunkSize bytes. data is the mapping of the first size bytes of
// the file. A zero chunkSize yields one entry per data region.
//
// Holes are located with SEEK_DATA and SEEK_HOLE where the platform
// supports them. Otherwise the whole file is one data region.
func Chunk(fd int, data []byte, size, chunkSize int64, algo digest.Algorithm) ([]BlobvecEntry, error) {
	if chunkSize <= 0 {
		chunkSize = size
	}
	if int64(len(data)) < size {
		size = int64(len(data))
	}

	var entries []BlobvecEntry
	for cursor := int64(0); cursor < size; {
		start, ok, err := seekData(fd, cursor, size)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		end, err := seekHole(fd, start, size)
		if err != nil {
			return nil, err
		}

		for off := start; off < end; {
			n := chunkSize
			if end-off < n {
				n = end - off
			}
			d, err := sum(algo, data[off:off+n])
			if err != nil {
				return nil, err
			}
			entries = append(entries, BlobvecEntry{Offset: off, Length: n, ID: d.ID()})
			off += n
		}
		cursor = end
	}
	return entries, nil
}

// hasData tells if a file has some non-hole region
func hasData(fd int, size int64) (bool, error) {
	if size == 0 {
		return false, nil
	}
	_, ok, err := seekData(fd, 0, size)
	return ok, err
}
