// Package attachments stores customer documents on the local filesystem, one
// folder per customer.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
)

type FileStore struct {
	baseDir string
	logger  *log.Logger
}

// New returns a FileStore rooted at baseDir, creating it if needed.
func New(baseDir string, logger *log.Logger) (*FileStore, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, logger: logger}, nil
}

// sanitizeOwner keeps letters, digits, spaces, '-' and '_'.
func sanitizeOwner(owner string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, owner))
}

// sanitizeName keeps letters, digits, '.', '-' and '_' of the base name.
func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, filepath.Base(name))
	if strings.Trim(name, ".") == "" {
		return "file"
	}
	return name
}

func (s *FileStore) ownerDir(owner string) (string, error) {
	safe := sanitizeOwner(owner)
	if safe == "" {
		return "", fmt.Errorf("invalid attachment owner %q", owner)
	}
	return filepath.Join(s.baseDir, safe), nil
}

func (s *FileStore) AddFiles(owner string, paths []string) error {
	var errs []error
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			s.logger.Error("failed to open attachment", "owner", owner, "path", p, "err", err)
			errs = append(errs, err)
			continue
		}
		_, err = s.Put(owner, filepath.Base(p), f)
		f.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Put writes r under a sanitized form of name. An existing file is never
// replaced; the new one gets a _1, _2, ... suffix instead.
func (s *FileStore) Put(owner, name string, r io.Reader) (string, error) {
	dir, err := s.ownerDir(owner)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}

	safe := sanitizeName(name)
	ext := filepath.Ext(safe)
	base := strings.TrimSuffix(safe, ext)
	for n := 1; ; n++ {
		f, err := os.OpenFile(filepath.Join(dir, safe), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			safe = fmt.Sprintf("%s_%d%s", base, n, ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create attachment: %w", err)
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write attachment: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close attachment: %w", err)
		}
		s.logger.Info("attachment added", "owner", owner, "file", safe)
		return safe, nil
	}
}

// ListFiles returns the owner's file names in lexical order; an owner with no
// folder has none.
func (s *FileStore) ListFiles(owner string) ([]string, error) {
	dir, err := s.ownerDir(owner)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *FileStore) path(owner, name string) (string, error) {
	dir, err := s.ownerDir(owner)
	if err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || name != sanitizeName(name) {
		return "", fmt.Errorf("%q: %w", name, interfaces.ErrAttachmentNotFound)
	}
	return filepath.Join(dir, name), nil
}

func (s *FileStore) Open(owner, name string) (io.ReadCloser, error) {
	p, err := s.path(owner, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", name, interfaces.ErrAttachmentNotFound)
	}
	return f, err
}

func (s *FileStore) DeleteFile(owner, name string) error {
	p, err := s.path(owner, name)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%q: %w", name, interfaces.ErrAttachmentNotFound)
	}
	if err == nil {
		s.logger.Info("attachment deleted", "owner", owner, "file", name)
	}
	return err
}

// DeleteAll removes the owner's folder. Removing an owner without files is
// not an error.
func (s *FileStore) DeleteAll(owner string) error {
	dir, err := s.ownerDir(owner)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}
	s.logger.Info("attachments deleted", "owner", owner)
	return nil
}

var _ interfaces.AttachmentStore = (*FileStore)(nil)
