// Copyright © 2018 One Concern

package fileref

import (
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref/status"
)

type params struct {
	algo      digest.Algorithm
	hashName  string
	chunkSize int64
	threshold int64
	name      string
	namespace string
}

func defaultParams() params {
	return params{algo: digest.Default}
}

func (p *params) validate() error {
	if p.hashName != "" {
		a, err := digest.ParseAlgorithm(p.hashName)
		if err != nil {
			return err
		}
		p.algo = a
	}
	if !p.algo.Valid() {
		return status.ErrInvalidArgument.Wrapf("unknown hash algorithm %d", p.algo)
	}
	if p.chunkSize < 0 {
		return status.ErrInvalidArgument.Wrapf("negative chunk size %d", p.chunkSize)
	}
	if p.threshold < 0 {
		return status.ErrInvalidArgument.Wrapf("negative small file threshold %d", p.threshold)
	}
	return nil
}

// Option for fileref creation
type Option func(*params)

// Hash selects the hash algorithm by name, e.g. "sha1" or "sha256"
func Hash(name string) Option {
	return func(p *params) {
		p.hashName = name
	}
}

// Algorithm selects the hash algorithm
func Algorithm(a digest.Algorithm) Option {
	return func(p *params) {
		p.algo = a
		p.hashName = ""
	}
}

// ChunkSize bounds the length of blobvec entries. Zero means one chunk per data region.
func ChunkSize(n int64) Option {
	return func(p *params) {
		p.chunkSize = n
	}
}

// SmallFileThreshold makes regular files up to n bytes carry their content inline.
// Zero disables inline content.
func SmallFileThreshold(n int64) Option {
	return func(p *params) {
		p.threshold = n
	}
}

// Name records the object under this path rather than the one it is read from
func Name(name string) Option {
	return func(p *params) {
		p.name = name
	}
}

// Namespace prefixes symlink targets with "ns::"
func Namespace(ns string) Option {
	return func(p *params) {
		p.namespace = ns
	}
}
