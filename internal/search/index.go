package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// mappingVersion is bumped whenever buildIndexMapping changes, which makes
// Open discard the old index.
const mappingVersion = "catalog-1"

const versionFile = "mapping.version"

// Index wraps a Bleve index of books. All methods are safe for concurrent use.
type Index struct {
	mu     sync.RWMutex // write-locked only while Rebuild swaps the index
	index  bleve.Index
	path   string
	logger *slog.Logger
}

// Open opens the index stored in dir, creating it when missing, corrupt or
// built with an older mapping.
func Open(dir string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	indexPath := filepath.Join(dir, "index")
	versionPath := filepath.Join(dir, versionFile)

	var index bleve.Index
	if _, err := os.Stat(indexPath); err == nil {
		version, _ := os.ReadFile(versionPath) //#nosec G304 -- path derived from configured data directory
		if string(version) != mappingVersion {
			logger.Info("search index mapping changed, rebuilding", "old_version", string(version), "new_version", mappingVersion)
		} else if index, err = bleve.Open(indexPath); err != nil {
			logger.Warn("failed to open search index, recreating", "path", indexPath, "error", err)
			index = nil
		}
	}

	if index == nil {
		var err error
		if index, err = create(indexPath, versionPath); err != nil {
			return nil, err
		}
		logger.Info("created search index", "path", indexPath, "mapping_version", mappingVersion)
	}

	return &Index{index: index, path: indexPath, logger: logger}, nil
}

func create(indexPath, versionPath string) (bleve.Index, error) {
	if err := os.RemoveAll(indexPath); err != nil {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	index, err := bleve.New(indexPath, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o600); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("write mapping version: %w", err)
	}
	return index, nil
}

// Close closes the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or replaces one book document.
func (s *Index) IndexBook(doc *BookDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Index(doc.ID, doc.toMap()); err != nil {
		return fmt.Errorf("index book %s: %w", doc.ID, err)
	}
	return nil
}

// IndexBooks adds or replaces documents in batches.
func (s *Index) IndexBooks(docs []*BookDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.toMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Delete removes a book document. Removing a missing document is not an error.
func (s *Index) Delete(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// Count returns the number of indexed documents.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document. Callers reindex from the catalog afterwards.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	index, err := create(s.path, filepath.Join(filepath.Dir(s.path), versionFile))
	if err != nil {
		return err
	}
	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}
