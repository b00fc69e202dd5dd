// Copyright © 2018 One Concern

// Package archive collects filerefs into archives, and extracts them back
// into a directory tree.
package archive

import (
	"bytes"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Archive is an ordered collection of filerefs
type Archive struct {
	Entries []*fileref.Fileref
}

// Len is the number of entries
func (a *Archive) Len() int {
	return len(a.Entries)
}

// IDs returns the distinct content ids referenced by the archive, in order
// of first appearance
func (a *Archive) IDs() []digest.ID {
	seen := make(map[digest.ID]struct{})
	var ids []digest.ID
	for _, f := range a.Entries {
		for _, e := range f.Blobvec {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// MarshalJSON encodes the archive as a JSON array of filerefs
func (a *Archive) MarshalJSON() ([]byte, error) {
	return Encode(a)
}

// UnmarshalJSON decodes an array or a path-keyed object of filerefs
func (a *Archive) UnmarshalJSON(b []byte) error {
	v, err := Decode(b)
	if err != nil {
		return err
	}
	*a = *v
	return nil
}

// Encode the archive as a JSON array of filerefs
func Encode(a *Archive) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range a.Entries {
		b, err := fileref.Encode(f)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EncodeMap encodes the archive as a JSON object keyed by path
func EncodeMap(a *Archive) ([]byte, error) {
	m := make(map[string]jsoniter.RawMessage, len(a.Entries))
	for _, f := range a.Entries {
		if _, ok := m[f.Path]; ok {
			return nil, status.Pathf(status.ErrInvalidArgument, f.Path, "duplicate path in archive")
		}
		b, err := fileref.Encode(f)
		if err != nil {
			return nil, err
		}
		m[f.Path] = b
	}
	return json.Marshal(m)
}

// Decode an archive from either a JSON array of filerefs or a JSON object
// keyed by path. Object entries are ordered by path, so directories come
// before their content. The key overrides the path embedded in the entry.
func Decode(b []byte) (*Archive, error) {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, status.ErrInvalidArgument.Wrapf("empty archive")
	}

	switch trimmed[0] {
	case '[':
		var raw []jsoniter.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, status.ErrInvalidArgument.Wrapf("malformed archive: %v", err)
		}
		a := &Archive{Entries: make([]*fileref.Fileref, 0, len(raw))}
		for _, r := range raw {
			f, err := fileref.Decode(r)
			if err != nil {
				return nil, err
			}
			a.Entries = append(a.Entries, f)
		}
		return a, nil

	case '{':
		var raw map[string]jsoniter.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, status.ErrInvalidArgument.Wrapf("malformed archive: %v", err)
		}
		paths := make([]string, 0, len(raw))
		for p := range raw {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		a := &Archive{Entries: make([]*fileref.Fileref, 0, len(raw))}
		for _, p := range paths {
			if p == "" {
				return nil, status.ErrProtocol.Wrapf("empty path key in archive")
			}
			f, err := fileref.DecodeWithPath(raw[p], p)
			if err != nil {
				return nil, err
			}
			a.Entries = append(a.Entries, f)
		}
		return a, nil

	default:
		return nil, status.ErrInvalidArgument.Wrapf("archive must be a JSON array or object")
	}
}

// List renders one line per entry
func List(a *Archive, long bool) []string {
	lines := make([]string, 0, len(a.Entries))
	for _, f := range a.Entries {
		lines = append(lines, f.Format(long))
	}
	return lines
}
