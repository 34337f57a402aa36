package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stemsi/taskbook/internal/model"
)

const (
	recordExt  = ".json"
	tempMarker = recordExt + ".tmp."
)

// FileRecordRepository keeps each record in <root>/<name>.json.
//
// Writes go to a temp file in the same directory which is synced and then
// renamed over the target, so a crash leaves either the old or the new file.
type FileRecordRepository struct {
	root string
	log  zerolog.Logger
}

// NewFileRecordRepository creates root if needed and removes temp files left
// behind by interrupted writes.
func NewFileRecordRepository(root string, log zerolog.Logger) (*FileRecordRepository, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	r := &FileRecordRepository{
		root: root,
		log:  log.With().Str("component", "file_record_repository").Logger(),
	}

	swept, err := r.SweepTemp()
	if err != nil {
		return nil, fmt.Errorf("sweep temp files: %w", err)
	}
	if swept > 0 {
		r.log.Warn().Int("count", swept).Msg("Removed leftover temp files")
	}
	return r, nil
}

func (r *FileRecordRepository) path(name string) string {
	return filepath.Join(r.root, name+recordExt)
}

func (r *FileRecordRepository) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(r.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrRecordNotFound
	}
	return data, err
}

func (r *FileRecordRepository) Create(ctx context.Context, name string, data []byte) error {
	_, err := os.Stat(r.path(name))
	switch {
	case err == nil:
		return ErrRecordExists
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return writeFileAtomicDurable(r.path(name), data, 0o644)
}

func (r *FileRecordRepository) Replace(ctx context.Context, name string, data []byte) error {
	if _, err := os.Stat(r.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrRecordNotFound
		}
		return err
	}
	return writeFileAtomicDurable(r.path(name), data, 0o644)
}

func (r *FileRecordRepository) Delete(ctx context.Context, name string) error {
	if err := os.Remove(r.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrRecordNotFound
		}
		return err
	}
	return fsyncDir(r.root)
}

func (r *FileRecordRepository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), recordExt)
		if !model.ValidSubjectName(name) {
			r.log.Debug().Str("file", e.Name()).Msg("Skipping file with invalid subject name")
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SweepTemp deletes temp files from interrupted writes and returns how many
// were removed. Only safe while no write is in flight.
func (r *FileRecordRepository) SweepTemp() (int, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), tempMarker) {
			continue
		}
		if err := os.Remove(filepath.Join(r.root, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
