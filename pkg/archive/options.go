// Copyright © 2018 One Concern

package archive

import (
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/walk"
	"go.uber.org/zap"
)

// CreatorOption configures a Creator
type CreatorOption func(*Creator)

// Hash sets the digest algorithm of the content ids
func Hash(algo digest.Algorithm) CreatorOption {
	return func(c *Creator) {
		c.options = append(c.options, fileref.Algorithm(algo))
	}
}

// ChunkSize sets the maximum size of a blob. Zero means whole data runs.
func ChunkSize(n int64) CreatorOption {
	return func(c *Creator) {
		c.options = append(c.options, fileref.ChunkSize(n))
	}
}

// SmallFileThreshold sets the size up to which file content is kept inline
func SmallFileThreshold(n int64) CreatorOption {
	return func(c *Creator) {
		c.options = append(c.options, fileref.SmallFileThreshold(n))
	}
}

// Namespace prefixes symlink targets
func Namespace(ns string) CreatorOption {
	return func(c *Creator) {
		c.options = append(c.options, fileref.Namespace(ns))
	}
}

// Store sets where blobs are written. Without a store only ids are computed.
func Store(s content.Storer) CreatorOption {
	return func(c *Creator) {
		c.store = s
	}
}

// MaxInFlight bounds the number of concurrent blob writes
func MaxInFlight(n int) CreatorOption {
	return func(c *Creator) {
		if n > 0 {
			c.maxInFlight = n
		}
	}
}

// Order of the directory walk
func Order(o walk.Order) CreatorOption {
	return func(c *Creator) {
		c.order = o
	}
}

// IgnoreFailedRead logs objects which cannot be read and carries on
func IgnoreFailedRead(enabled bool) CreatorOption {
	return func(c *Creator) {
		c.ignoreFailedRead = enabled
	}
}

// Visit is called with every fileref added to the archive. Returning
// walk.Stop ends the archive there, other errors abort it.
func Visit(fn func(*fileref.Fileref) error) CreatorOption {
	return func(c *Creator) {
		c.visit = fn
	}
}

// CreatorLogger sets the logger of a Creator
func CreatorLogger(l *zap.Logger) CreatorOption {
	return func(c *Creator) {
		if l != nil {
			c.l = l
		}
	}
}

// ExtractorOption configures an Extractor
type ExtractorOption func(*Extractor)

// Loader sets where blobs are read from
func Loader(l content.Loader) ExtractorOption {
	return func(x *Extractor) {
		x.loader = l
	}
}

// Overwrite replaces existing objects instead of failing
func Overwrite(enabled bool) ExtractorOption {
	return func(x *Extractor) {
		x.overwrite = enabled
	}
}

// Trace is called with every fileref right before it is written
func Trace(fn func(*fileref.Fileref)) ExtractorOption {
	return func(x *Extractor) {
		x.trace = fn
	}
}

// ExtractMaxInFlight bounds the number of concurrent blob reads per file
func ExtractMaxInFlight(n int) ExtractorOption {
	return func(x *Extractor) {
		if n > 0 {
			x.maxInFlight = n
		}
	}
}

// VerifyDigests checks every loaded blob against its content id
func VerifyDigests(enabled bool) ExtractorOption {
	return func(x *Extractor) {
		x.verify = enabled
	}
}

// ExtractorLogger sets the logger of an Extractor
func ExtractorLogger(l *zap.Logger) ExtractorOption {
	return func(x *Extractor) {
		if l != nil {
			x.l = l
		}
	}
}
