// Copyright © 2018 One Concern

// Package status declares the errors returned by storage backends.
//
// Each of them extends one of the kinds of pkg/fileref/status, so that callers
// of the content store may classify backend failures without knowing the backend.
package status

import fstatus "github.com/oneconcern/fileref/pkg/fileref/status"

var (
	// ErrNotExists is a missing key
	ErrNotExists = fstatus.ErrNotFound.Extend("key does not exist")

	// ErrExists is a key written with NoOverWrite which is already present
	ErrExists = fstatus.ErrExists.Extend("key exists already")

	// ErrObjectTooBig is an object which cannot be read into memory
	ErrObjectTooBig = fstatus.ErrUnsupported.Extend("object too big to be read into memory")

	ErrUnauthorized = fstatus.ErrIO.Extend("unauthorized")
	ErrForbidden    = fstatus.ErrIO.Extend("forbidden")

	// ErrInvalidResource is a badly named bucket, directory or key
	ErrInvalidResource = fstatus.ErrInvalidArgument.Extend("invalid storage resource")

	// ErrStorageAPI is any other failure reported by a remote backend
	ErrStorageAPI = fstatus.ErrIO.Extend("storage API error")

	// ErrUnsupportedBackend is a backend URL with an unknown scheme
	ErrUnsupportedBackend = fstatus.ErrUnsupported.Extend("unsupported storage backend")
)
