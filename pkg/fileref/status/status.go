// Copyright © 2018 One Concern

// Package status declares the error kinds returned by the fileref,
// archive, content and cache packages.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between the packages that
// produce them.
package status

import (
	"fmt"
	"os"

	"github.com/oneconcern/fileref/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidArgument reports a bad parameter: chunk size, hash name, malformed archive
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidFormat reports a content id that cannot be decoded
	ErrInvalidFormat = ErrInvalidArgument.Extend("invalid format")

	// ErrNotFound reports a missing path or a missing content id
	ErrNotFound = errors.New("not found")

	// ErrProtocol reports a decoded object violating the fileref schema
	ErrProtocol = errors.New("protocol error")

	// ErrIO reports a failed filesystem call
	ErrIO = errors.New("i/o error")

	// ErrExists reports an extraction target already present
	ErrExists = errors.New("already exists")

	// ErrUnsupported reports an unsupported file type or a forbidden operation
	ErrUnsupported = errors.New("unsupported")
)

// PathError carries the error kind, the failing operation and the path it applied to.
type PathError struct {
	Kind *errors.Error
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + " " + e.Path + ": " + msg
	} else {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *PathError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Path builds a PathError of the given kind
func Path(kind *errors.Error, op, path string, err error) error {
	return &PathError{Kind: kind, Op: op, Path: path, Err: err}
}

// Pathf builds a PathError with a formatted cause
func Pathf(kind *errors.Error, path string, format string, args ...interface{}) error {
	return &PathError{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// IO wraps a failed syscall on path. Missing files are reported as ErrNotFound
// and existing ones as ErrExists, while keeping the OS error in the chain.
func IO(op, path string, err error) error {
	kind := ErrIO
	switch {
	case errors.Is(err, unix.ENOENT), os.IsNotExist(err):
		kind = ErrNotFound
	case errors.Is(err, unix.EEXIST), os.IsExist(err):
		kind = ErrExists
	}
	return &PathError{Kind: kind, Op: op, Path: path, Err: err}
}
