// Package walk visits a directory tree without following symbolic links.
package walk

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref/status"
)

// Order of traversal
type Order uint8

// Traversal orders
const (
	// PreOrder visits a directory before its children, depth first
	PreOrder Order = iota
	// PostOrder visits a directory after its children, depth first
	PostOrder
	// BreadthFirst visits all entries at one depth before going deeper
	BreadthFirst
)

func (o Order) String() string {
	switch o {
	case PreOrder:
		return "pre-order"
	case PostOrder:
		return "post-order"
	case BreadthFirst:
		return "breadth-first"
	default:
		return "unknown"
	}
}

var (
	// Stop may be returned by a visit function to end the walk early without error
	Stop = errors.New("stop walking")

	// SkipDir may be returned when visiting a directory in PreOrder or
	// BreadthFirst to skip its content
	SkipDir = filepath.SkipDir
)

// Entry is a visited file system object
type Entry struct {
	// Path relative to the walk root. The root itself is ".".
	Path string
	// FullPath is the root joined with Path
	FullPath string
	// Info is the lstat of the object
	Info os.FileInfo
}

// IsDir tells if the entry is a directory
func (e Entry) IsDir() bool {
	return e.Info != nil && e.Info.IsDir()
}

// Func visits an entry. err is not nil when the entry could not be read, in
// which case returning nil carries on with the walk.
type Func func(e Entry, err error) error

// Walk visits root and everything below it, in the given order.
// Entries of a directory are visited in lexical order.
func Walk(ctx context.Context, root string, order Order, fn Func) error {
	info, err := os.Lstat(root)
	if err != nil {
		err = fn(Entry{Path: ".", FullPath: root}, status.IO("lstat", root, err))
	} else {
		w := walker{ctx: ctx, root: root, fn: fn}
		e := Entry{Path: ".", FullPath: root, Info: info}
		if order == BreadthFirst {
			err = w.breadthFirst(e)
		} else {
			err = w.depthFirst(e, order == PostOrder)
		}
	}
	if err == Stop || err == SkipDir { //nolint:errorlint
		return nil
	}
	return err
}

type walker struct {
	ctx  context.Context
	root string
	fn   Func
}

func (w *walker) children(e Entry) ([]Entry, error) {
	dirents, err := os.ReadDir(e.FullPath)
	if err != nil {
		return nil, status.IO("readdir", e.FullPath, err)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		child := Entry{
			Path:     filepath.Join(e.Path, d.Name()),
			FullPath: filepath.Join(e.FullPath, d.Name()),
		}
		if child.Info, err = d.Info(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// removed since listed
				continue
			}
			return nil, status.IO("lstat", child.FullPath, err)
		}
		entries = append(entries, child)
	}
	return entries, nil
}

func (w *walker) depthFirst(e Entry, post bool) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if !e.IsDir() {
		return w.fn(e, nil)
	}

	if !post {
		if err := w.fn(e, nil); err != nil {
			if err == SkipDir { //nolint:errorlint
				return nil
			}
			return err
		}
	}

	children, err := w.children(e)
	if err != nil {
		if err = w.fn(e, err); err != nil {
			return err
		}
	}
	for _, child := range children {
		if err := w.depthFirst(child, post); err != nil {
			return err
		}
	}

	if post {
		return w.fn(e, nil)
	}
	return nil
}

func (w *walker) breadthFirst(root Entry) error {
	queue := []Entry{root}
	for len(queue) > 0 {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		e := queue[0]
		queue = queue[1:]

		if err := w.fn(e, nil); err != nil {
			if err == SkipDir && e.IsDir() { //nolint:errorlint
				continue
			}
			return err
		}
		if !e.IsDir() {
			continue
		}

		children, err := w.children(e)
		if err != nil {
			if err = w.fn(e, err); err != nil {
				return err
			}
			continue
		}
		queue = append(queue, children...)
	}
	return nil
}
