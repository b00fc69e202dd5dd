// Copyright © 2018 One Concern

// Package storage provides the interface to the key/value backends holding
// content blobs.
//
// This package supports the following backends:
//   - local file system, or in-memory file system (localfs)
//   - embedded badger key/value database (bdgr)
//   - S3 (sthree)
package storage
