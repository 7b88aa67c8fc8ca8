package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

const metaSuffix = ".meta.json"

// DatasetStore keeps uploaded datasets on disk: one content file per
// dataset plus a metadata sidecar. The mutex serializes writes; reads of
// distinct datasets do not contend on the filesystem.
type DatasetStore struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewDatasetStore(fs afero.Fs, dir string, logger *slog.Logger) (*DatasetStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DatasetStore{fs: fs, dir: dir, logger: logger}, nil
}

func (s *DatasetStore) Save(ctx context.Context, meta *domain.DatasetMetadata, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ext := ".csv"
	if meta.FileType == domain.DatasetTypeJSON {
		ext = ".json"
	}
	meta.FileKey = meta.ID + ext

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, meta.FileKey), content, 0o644); err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, meta.ID+metaSuffix), metaBytes, 0o644); err != nil {
		return err
	}

	s.logger.Info("dataset stored",
		"id", meta.ID, "name", meta.Name, "samples", meta.TotalSamples, "bytes", len(content))
	return nil
}

func (s *DatasetStore) Load(ctx context.Context, id string) (*domain.DatasetMetadata, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, nil, err
	}

	content, err := afero.ReadFile(s.fs, filepath.Join(s.dir, meta.FileKey))
	if err != nil {
		return nil, nil, &domain.NotFoundError{Kind: "dataset file", ID: id}
	}
	return meta, content, nil
}

func (s *DatasetStore) List(ctx context.Context) ([]*domain.DatasetMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}

	var metas []*domain.DatasetMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), metaSuffix)
		meta, err := s.readMeta(id)
		if err != nil {
			s.logger.Warn("dataset metadata unreadable", "id", id, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].CreatedAt.After(metas[j].CreatedAt) })
	return metas, nil
}

func (s *DatasetStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(filepath.Join(s.dir, meta.FileKey)); err != nil {
		return err
	}
	if err := s.fs.Remove(filepath.Join(s.dir, id+metaSuffix)); err != nil {
		return err
	}

	s.logger.Info("dataset deleted", "id", id, "name", meta.Name)
	return nil
}

func (s *DatasetStore) readMeta(id string) (*domain.DatasetMetadata, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, id+metaSuffix))
	if err != nil {
		return nil, &domain.NotFoundError{Kind: "dataset", ID: id}
	}
	var meta domain.DatasetMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
