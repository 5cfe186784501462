package interfaces

import (
	"errors"
	"io"
)

// ErrAttachmentNotFound is returned for an unknown owner or file name.
var ErrAttachmentNotFound = errors.New("attachment not found")

// AttachmentStore keeps the documents uploaded for a customer. Owners and
// file names are sanitized by the store; the names it returns are the ones
// to use for later lookups.
type AttachmentStore interface {
	// AddFiles copies local files into the owner's folder.
	AddFiles(owner string, paths []string) error
	// Put stores one document read from r and returns its stored name.
	Put(owner, name string, r io.Reader) (string, error)
	ListFiles(owner string) ([]string, error)
	Open(owner, name string) (io.ReadCloser, error)
	DeleteFile(owner, name string) error
	DeleteAll(owner string) error
}
