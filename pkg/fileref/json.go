// Copyright © 2018 One Concern

package fileref

import (
	"encoding/base64"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const objectType = "fileref"

// wireFileref is the JSON shape of a fileref object.
// Pointers tell missing required fields apart from zero values.
type wireFileref struct {
	Version  *int           `json:"version"`
	Type     *string        `json:"type"`
	Path     *string        `json:"path,omitempty"`
	Size     *int64         `json:"size"`
	Mtime    *int64         `json:"mtime"`
	Ctime    *int64         `json:"ctime"`
	Mode     *uint32        `json:"mode"`
	Data     *string        `json:"data,omitempty"`
	Encoding string         `json:"encoding,omitempty"`
	Blobvec  []BlobvecEntry `json:"blobvec,omitempty"`
}

// MarshalJSON encodes an entry as the tuple [offset, length, id]
func (e BlobvecEntry) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 48+len(e.ID))
	b = append(b, '[')
	b = strconv.AppendInt(b, e.Offset, 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, e.Length, 10)
	b = append(b, ',')
	b = strconv.AppendQuote(b, string(e.ID))
	return append(b, ']'), nil
}

// UnmarshalJSON decodes the tuple [offset, length, id]
func (e *BlobvecEntry) UnmarshalJSON(b []byte) error {
	var tuple []jsoniter.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return status.ErrProtocol.Wrapf("blobvec entry is not an array: %v", err)
	}
	if len(tuple) != 3 {
		return status.ErrProtocol.Wrapf("blobvec entry has %d elements, expected 3", len(tuple))
	}
	var v BlobvecEntry
	if err := json.Unmarshal(tuple[0], &v.Offset); err != nil {
		return status.ErrProtocol.Wrapf("blobvec offset: %v", err)
	}
	if err := json.Unmarshal(tuple[1], &v.Length); err != nil {
		return status.ErrProtocol.Wrapf("blobvec length: %v", err)
	}
	var id string
	if err := json.Unmarshal(tuple[2], &id); err != nil {
		return status.ErrProtocol.Wrapf("blobvec content id: %v", err)
	}
	v.ID = digest.ID(id)
	*e = v
	return nil
}

// Encode a fileref to its JSON object form
func Encode(f *Fileref) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(toWire(f))
}

// MarshalJSON encodes the fileref to its JSON object form
func (f *Fileref) MarshalJSON() ([]byte, error) {
	return Encode(f)
}

// UnmarshalJSON decodes and validates a fileref
func (f *Fileref) UnmarshalJSON(b []byte) error {
	v, err := Decode(b)
	if err != nil {
		return err
	}
	*f = *v
	return nil
}

func toWire(f *Fileref) wireFileref {
	version, typ := Version, objectType
	size, mtime, ctime, mode := f.Size, f.Mtime, f.Ctime, f.Mode
	path := f.Path
	w := wireFileref{
		Version:  &version,
		Type:     &typ,
		Path:     &path,
		Size:     &size,
		Mtime:    &mtime,
		Ctime:    &ctime,
		Mode:     &mode,
		Encoding: f.Encoding.String(),
	}
	switch f.Encoding {
	case EncodingUTF8:
		s := string(f.Data)
		w.Data = &s
	case EncodingBase64:
		s := base64.StdEncoding.EncodeToString(f.Data)
		w.Data = &s
	case EncodingBlobvec:
		w.Blobvec = f.Blobvec
	}
	return w
}

// Decode a fileref from its JSON object form.
//
// Malformed JSON is reported as status.ErrInvalidArgument, a well formed
// object which violates the fileref schema as status.ErrProtocol.
func Decode(b []byte) (*Fileref, error) {
	return DecodeWithPath(b, "")
}

// DecodeWithPath decodes a fileref and, if path is not empty, uses it
// instead of the embedded path.
func DecodeWithPath(b []byte, path string) (*Fileref, error) {
	if !json.Valid(b) {
		return nil, status.ErrInvalidArgument.Wrapf("fileref is not valid JSON")
	}
	var w wireFileref
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, status.ErrProtocol.Wrap(err)
	}
	return fromWire(&w, path)
}

func fromWire(w *wireFileref, path string) (*Fileref, error) {
	if path == "" && w.Path != nil {
		path = *w.Path
	}
	if path == "" {
		return nil, status.ErrProtocol.Wrapf("fileref has no path")
	}
	path = CleanPath(path)

	if w.Version == nil || *w.Version != Version {
		return nil, status.Pathf(status.ErrProtocol, path, "unsupported fileref version")
	}
	if w.Type == nil || *w.Type != objectType {
		return nil, status.Pathf(status.ErrProtocol, path, "object is not a fileref")
	}
	for name, v := range map[string]*int64{"size": w.Size, "mtime": w.Mtime, "ctime": w.Ctime} {
		if v == nil {
			return nil, status.Pathf(status.ErrProtocol, path, "missing %s", name)
		}
	}
	if w.Mode == nil {
		return nil, status.Pathf(status.ErrProtocol, path, "missing mode")
	}

	f := &Fileref{
		Path:  path,
		Size:  *w.Size,
		Mtime: *w.Mtime,
		Ctime: *w.Ctime,
		Mode:  *w.Mode,
	}

	enc, ok := parseEncoding(w.Encoding)
	if !ok {
		return nil, status.Pathf(status.ErrProtocol, path, "unknown encoding %q", w.Encoding)
	}
	if w.Data != nil && enc == EncodingNone {
		// data without an explicit encoding is raw text
		enc = EncodingUTF8
	}
	f.Encoding = enc

	switch enc {
	case EncodingUTF8, EncodingBase64:
		if w.Data == nil {
			return nil, status.Pathf(status.ErrProtocol, path, "%s encoding without data", enc)
		}
		if enc == EncodingBase64 {
			data, err := base64.StdEncoding.DecodeString(*w.Data)
			if err != nil {
				return nil, status.Pathf(status.ErrProtocol, path, "bad base64 data: %v", err)
			}
			f.Data = data
		} else {
			f.Data = []byte(*w.Data)
		}
	case EncodingBlobvec:
		if w.Data != nil {
			return nil, status.Pathf(status.ErrProtocol, path, "both inline data and blobvec")
		}
		f.Blobvec = w.Blobvec
	default:
		if len(w.Blobvec) > 0 {
			return nil, status.Pathf(status.ErrProtocol, path, "blobvec without blobvec encoding")
		}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
