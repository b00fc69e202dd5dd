// Copyright © 2018 One Concern

// Package fileref turns file system objects into content addressed
// filerefs, and back.
//
// A fileref records the metadata of a regular file, a symbolic link or a
// directory. Small regular files carry their content inline. Larger ones
// are described by a blobvec: the ordered (offset, length, content id)
// triples covering the data regions of the file. Holes in sparse files
// are never hashed nor stored.
//
// Creating a fileref opens the path before classifying it, with
// O_NOFOLLOW, and only falls back to lstat when the path turns out to
// be a symbolic link. Classifying with stat first would let the object
// change type between the check and its use.
package fileref
