package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/tunedesk/internal/config"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported_file_type")
	ErrFileTooLarge        = errors.New("file_too_large")
	ErrEmptyFile           = errors.New("empty_file")
)

var allowedExtensions = map[string]struct{}{
	".csv":  {},
	".xlsx": {},
}

var Module = fx.Module("storage",
	fx.Provide(New),
)

// StoredFile describes an upload after it has been written to disk.
type StoredFile struct {
	FileName         string
	OriginalFileName string
	Path             string
	Size             int64
}

// Store writes report uploads under a per-category directory.
type Store struct {
	dir      string
	maxBytes int64
	log      *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Store {
	return &Store{
		dir:      cfg.Upload.Dir,
		maxBytes: cfg.Upload.MaxBytes,
		log:      log.Named("storage"),
	}
}

// Save copies r to <dir>/<category>/<ulid>-<slug><ext>. The file is removed again when the
// content exceeds the configured size limit.
func (s *Store) Save(category schema.Category, originalName string, r io.Reader) (*StoredFile, error) {
	if !category.Valid() {
		return nil, schema.ErrUnknownCategory
	}
	originalName = filepath.Base(strings.TrimSpace(originalName))
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, ErrUnsupportedFileType
	}

	dir := filepath.Join(s.dir, category.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	fileName := StoredName(originalName)
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	size, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		s.discard(path)
		return nil, fmt.Errorf("write upload file: %w", copyErr)
	case closeErr != nil:
		s.discard(path)
		return nil, fmt.Errorf("close upload file: %w", closeErr)
	case s.maxBytes > 0 && size > s.maxBytes:
		s.discard(path)
		return nil, ErrFileTooLarge
	case size == 0:
		s.discard(path)
		return nil, ErrEmptyFile
	}

	return &StoredFile{
		FileName:         fileName,
		OriginalFileName: originalName,
		Path:             path,
		Size:             size,
	}, nil
}

// Remove deletes a stored upload. Missing files are not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) discard(path string) {
	if err := s.Remove(path); err != nil {
		s.log.Warn("failed to discard upload", zap.String("path", path), zap.Error(err))
	}
}

// StoredName builds a unique, filesystem-safe name that keeps the original extension.
func StoredName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := slug.Make(strings.TrimSuffix(originalName, filepath.Ext(originalName)))
	if base == "" {
		base = "report"
	}
	return fmt.Sprintf("%s-%s%s", strings.ToLower(ulid.Make().String()), base, ext)
}
