// Copyright © 2018 One Concern

package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/oneconcern/fileref/internal/pipeline"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref/status"
)

const (
	// IndexName is the name of the archive index in a bundle
	IndexName = "index.json"

	blobsDir = "blobs"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// WriteBundle writes the archive and every blob it references as a tar
// stream: the index first, then one entry per distinct content id.
// The stream is zstd compressed when asked to.
func WriteBundle(ctx context.Context, w io.Writer, a *Archive, loader content.Loader, compress bool) (err error) {
	index, err := Encode(a)
	if err != nil {
		return err
	}

	if compress {
		zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return status.ErrIO.Wrap(err)
		}
		defer func() {
			if cerr := zw.Close(); cerr != nil && err == nil {
				err = status.ErrIO.Wrap(cerr)
			}
		}()
		w = zw
	}

	tw := tar.NewWriter(w)
	now := time.Now()
	if err := writeEntry(tw, IndexName, index, now); err != nil {
		return err
	}

	ids := a.IDs()
	if len(ids) > 0 && loader == nil {
		return status.ErrInvalidArgument.Wrapf("no content loader to fetch %d blobs from", len(ids))
	}
	err = pipeline.Ordered(ctx, len(ids), pipeline.DefaultMaxInFlight,
		func(ctx context.Context, i int) ([]byte, error) {
			return loader.Load(ctx, ids[i])
		},
		func(i int, data []byte) error {
			return writeEntry(tw, path.Join(blobsDir, string(ids[i])), data, now)
		},
	)
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return status.ErrIO.Wrap(err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte, mtime time.Time) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  mtime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return status.ErrIO.Wrap(err)
	}
	if _, err := tw.Write(data); err != nil {
		return status.ErrIO.Wrap(err)
	}
	return nil
}

// ReadBundle reads a bundle, compressed or not. The blobs are verified and
// loaded into an in-memory store.
func ReadBundle(ctx context.Context, r io.Reader, opts ...content.Option) (*Archive, *content.BlobStore, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, status.ErrIO.Wrap(err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	store := content.NewMemory(opts...)
	var a *Archive
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, status.ErrInvalidArgument.Wrapf("malformed bundle: %v", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, status.ErrIO.Wrap(err)
		}
		switch dir, name := path.Split(hdr.Name); {
		case hdr.Name == IndexName:
			if a, err = Decode(data); err != nil {
				return nil, nil, err
			}
		case dir == blobsDir+"/":
			if err := store.Add(ctx, digest.ID(name), data); err != nil {
				return nil, nil, err
			}
		}
	}
	if a == nil {
		return nil, nil, status.ErrProtocol.Wrapf("bundle has no %s", IndexName)
	}
	return a, store, nil
}
